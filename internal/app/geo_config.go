package app

import "github.com/charlesng35/fundraiser/internal/geo"

// ClientConfig converts GeoConfig into geo client parameters.
func (c GeoConfig) ClientConfig() geo.Config {
	return geo.Config{
		Endpoint:        c.Endpoint,
		Timeout:         c.Timeout,
		BreakerFailures: c.BreakerFailures,
		BreakerTimeout:  c.BreakerTimeout,
	}
}
