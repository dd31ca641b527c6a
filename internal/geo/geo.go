package geo

import (
	"context"
	"strings"
)

// Location is the geographic information resolved for an IP address. Any field may be empty.
type Location struct {
	Country      string
	City         string
	Region       string
	Latitude     *float64
	Longitude    *float64
	Timezone     string
	Organization string
}

// FullLocation joins the populated place names, most specific first.
func (l *Location) FullLocation() string {
	if l == nil {
		return ""
	}
	parts := make([]string, 0, 3)
	for _, part := range []string{l.City, l.Region, l.Country} {
		if part = strings.TrimSpace(part); part != "" {
			parts = append(parts, part)
		}
	}
	return strings.Join(parts, ", ")
}

// Resolver looks up the location of an IP address. Implementations return (nil, nil)
// when the address cannot be located.
type Resolver interface {
	Resolve(ctx context.Context, ip string) (*Location, error)
}

// Noop never resolves anything.
type Noop struct{}

func (Noop) Resolve(context.Context, string) (*Location, error) { return nil, nil }
