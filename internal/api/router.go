package api

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/charlesng35/fundraiser/internal/app"
	iauth "github.com/charlesng35/fundraiser/internal/auth"
	"github.com/charlesng35/fundraiser/internal/auth/providers"
	"github.com/charlesng35/fundraiser/internal/handlers"
	"github.com/charlesng35/fundraiser/internal/middleware"
	"github.com/charlesng35/fundraiser/internal/monitoring"
	"github.com/charlesng35/fundraiser/internal/monitoring/checks"
	"github.com/charlesng35/fundraiser/internal/services"
)

// Services bundles the collaborators the HTTP layer delegates to.
type Services struct {
	DB            *gorm.DB
	JWT           *iauth.JWTService
	Sessions      *iauth.SessionService
	Authenticator *iauth.Authenticator
	Users         *providers.LocalProvider
	Audit         *services.AuditService
	Campaigns     *services.CampaignService
	// Health defaults to a manager probing the database.
	Health *monitoring.HealthManager
}

func (s Services) validate() error {
	switch {
	case s.DB == nil:
		return errors.New("database handle must be provided")
	case s.JWT == nil:
		return errors.New("jwt service must be provided")
	case s.Sessions == nil:
		return errors.New("session service must be provided")
	case s.Authenticator == nil:
		return errors.New("authenticator must be provided")
	case s.Users == nil:
		return errors.New("local provider must be provided")
	case s.Audit == nil:
		return errors.New("audit service must be provided")
	case s.Campaigns == nil:
		return errors.New("campaign service must be provided")
	}
	return nil
}

// NewRouter builds the Gin engine, wires middleware and registers the API routes.
func NewRouter(cfg *app.Config, svc Services) (*gin.Engine, error) {
	if cfg == nil {
		return nil, errors.New("config must be provided")
	}
	if err := svc.validate(); err != nil {
		return nil, err
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())

	// Health endpoints (public)
	health := svc.Health
	if health == nil {
		health = monitoring.NewHealthManager(0)
		health.RegisterReadiness(checks.Database(svc.DB))
	}
	healthHandler := handlers.NewHealthHandler(health)
	r.GET("/health", healthHandler.Ready)
	r.GET("/health/live", healthHandler.Live)
	r.GET("/health/ready", healthHandler.Ready)

	api := r.Group("/api")
	var authOpts []middleware.AuthOption
	if cfg.Sessions.EnforceActive {
		authOpts = append(authOpts, middleware.RequireActiveSession(svc.Sessions))
	}
	requireAuth := middleware.Auth(svc.JWT, authOpts...)

	registerAuthRoutes(api, requireAuth, handlers.NewAuthHandler(svc.Authenticator, svc.Users))

	protected := api.Group("")
	protected.Use(requireAuth)
	registerSessionRoutes(protected, handlers.NewSessionHandler(svc.Sessions))
	registerAuditRoutes(protected, handlers.NewAuditHandler(svc.Audit))
	registerCampaignRoutes(protected, handlers.NewCampaignHandler(svc.Campaigns))

	if cfg.Monitoring.Prometheus.Enabled {
		endpoint := strings.TrimSpace(cfg.Monitoring.Prometheus.Endpoint)
		if endpoint == "" {
			endpoint = "/metrics"
		}
		r.GET(endpoint, gin.WrapH(promhttp.Handler()))
	}

	// NotFound fallback
	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}
