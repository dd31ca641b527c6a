package auth

import (
	apperrors "github.com/charlesng35/fundraiser/pkg/errors"
)

// Domain errors returned by the authentication core. Unknown usernames and wrong passwords
// share one code so that callers cannot enumerate accounts.
var (
	ErrInvalidCredentials = apperrors.Unauthorized("User.InvalidCredentials", "Invalid username or password")
	ErrNotConfirmed       = apperrors.Failure("User.NotConfirmed", "Email address has not been confirmed")
	ErrInactive           = apperrors.Failure("User.Inactive", "Account is inactive")
	ErrUserNotFound       = apperrors.NotFound("User.NotFound", "User not found")
	ErrSessionNotFound    = apperrors.NotFound("Session.NotFound", "Session not found or already closed")
	ErrInvalidToken       = apperrors.Unauthorized("Token.Invalid", "Access token is invalid")
	ErrRefreshMismatch    = apperrors.Unauthorized("RefreshToken.Mismatch", "Refresh token does not match")
	ErrRefreshPersist     = apperrors.Failure("RefreshToken.PersistFailed", "Refresh token could not be saved")
)
