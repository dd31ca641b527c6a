package auth

import (
	"context"
	"time"

	"github.com/charlesng35/fundraiser/internal/models"
)

// CredentialStore is the identity provider behind the authentication core.
// Lookups return (nil, nil) when no user matches.
type CredentialStore interface {
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	FindByID(ctx context.Context, userID string) (*models.User, error)
	CheckPassword(user *models.User, password string) bool
	UserClaims(ctx context.Context, userID string) ([]models.UserClaim, error)
	RoleClaims(ctx context.Context, userID string) ([]models.RoleClaim, error)
	Roles(ctx context.Context, userID string) ([]models.Role, error)
	// UpdateRefreshToken stores token/expiry only if the user's refresh token still equals
	// previous. It reports whether a row was updated.
	UpdateRefreshToken(ctx context.Context, userID, previous, token string, expiry time.Time) (bool, error)
}
