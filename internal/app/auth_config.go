package app

import (
	"time"

	"github.com/charlesng35/fundraiser/internal/auth"
	"github.com/charlesng35/fundraiser/internal/auth/providers"
)

// JWTServiceConfig converts AuthConfig into the parameters expected by the JWT service.
func (c AuthConfig) JWTServiceConfig() auth.JWTConfig {
	ttl := c.JWT.TTL
	if ttl <= 0 {
		ttl = auth.DefaultAccessTokenTTL
	}

	days := c.Refresh.TokenDays
	if days <= 0 {
		days = auth.DefaultRefreshTokenDays
	}

	return auth.JWTConfig{
		Secret:           c.JWT.Secret,
		Issuer:           c.JWT.Issuer,
		Audience:         c.JWT.Audience,
		AccessTokenTTL:   ttl,
		RefreshTokenDays: days,
	}
}

// RefreshTokenLifetime returns the validity of a newly minted refresh token.
func (c AuthConfig) RefreshTokenLifetime() time.Duration {
	return time.Duration(c.JWTServiceConfig().RefreshTokenDays) * 24 * time.Hour
}

// LocalProviderConfig converts AuthConfig into LocalProvider parameters.
func (c AuthConfig) LocalProviderConfig() providers.LocalConfig {
	return providers.LocalConfig{AutoConfirm: c.Local.AutoConfirm}
}
