package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/charlesng35/fundraiser/pkg/logger"
	"github.com/charlesng35/fundraiser/pkg/metrics"
)

const (
	defaultEndpoint = "http://ip-api.com/json"
	defaultTimeout  = 2 * time.Second
	responseFields  = "status,message,country,regionName,city,lat,lon,timezone,org"
)

// Config configures the HTTP resolver.
type Config struct {
	Endpoint   string
	Timeout    time.Duration
	HTTPClient *http.Client
	// BreakerTimeout is how long the breaker stays open before probing again.
	BreakerTimeout time.Duration
	// BreakerFailures is the number of consecutive failures that opens the breaker.
	BreakerFailures uint32
}

// Client resolves locations through an ip-api compatible HTTP endpoint. Calls are guarded
// by a circuit breaker so a failing provider does not slow down logins.
type Client struct {
	endpoint string
	http     *http.Client
	cb       *gobreaker.CircuitBreaker[*Location]
	log      *zap.Logger
}

type apiResponse struct {
	Status     string   `json:"status"`
	Message    string   `json:"message"`
	Country    string   `json:"country"`
	RegionName string   `json:"regionName"`
	City       string   `json:"city"`
	Lat        *float64 `json:"lat"`
	Lon        *float64 `json:"lon"`
	Timezone   string   `json:"timezone"`
	Org        string   `json:"org"`
}

// NewClient constructs a Client.
func NewClient(cfg Config) *Client {
	endpoint := strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/")
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = 5
	}
	openFor := cfg.BreakerTimeout
	if openFor <= 0 {
		openFor = time.Minute
	}

	log := logger.WithModule("geo")
	cb := gobreaker.NewCircuitBreaker[*Location](gobreaker.Settings{
		Name:        "geo-lookup",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     openFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: func(err error) bool {
			// A caller giving up says nothing about the provider's health.
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return &Client{
		endpoint: endpoint,
		http:     httpClient,
		cb:       cb,
		log:      log,
	}
}

// Resolve looks up ip. Private, loopback and unparsable addresses are skipped.
func (c *Client) Resolve(ctx context.Context, ip string) (*Location, error) {
	parsed := net.ParseIP(strings.TrimSpace(ip))
	if parsed == nil || !routable(parsed) {
		metrics.GeoLookups.WithLabelValues("skipped").Inc()
		return nil, nil
	}

	loc, err := c.cb.Execute(func() (*Location, error) {
		return c.lookup(ctx, parsed.String())
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.GeoLookups.WithLabelValues("rejected").Inc()
		} else {
			metrics.GeoLookups.WithLabelValues("failure").Inc()
		}
		return nil, err
	}

	metrics.GeoLookups.WithLabelValues("success").Inc()
	return loc, nil
}

func (c *Client) lookup(ctx context.Context, ip string) (*Location, error) {
	target := fmt.Sprintf("%s/%s?fields=%s", c.endpoint, url.PathEscape(ip), responseFields)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("geo: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("geo: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("geo: unexpected status %d", resp.StatusCode)
	}

	var body apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("geo: decode response: %w", err)
	}
	if !strings.EqualFold(body.Status, "success") {
		return nil, fmt.Errorf("geo: lookup failed: %s", body.Message)
	}

	return &Location{
		Country:      body.Country,
		City:         body.City,
		Region:       body.RegionName,
		Latitude:     body.Lat,
		Longitude:    body.Lon,
		Timezone:     body.Timezone,
		Organization: body.Org,
	}, nil
}

func routable(ip net.IP) bool {
	return !(ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() ||
		ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() || ip.IsMulticast())
}

// BreakerOpen reports whether lookups are currently being rejected by the circuit breaker.
func (c *Client) BreakerOpen() bool {
	return c.cb.State() == gobreaker.StateOpen
}
