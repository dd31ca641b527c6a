package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/charlesng35/fundraiser/internal/models"
	"github.com/charlesng35/fundraiser/internal/notifications"
	"github.com/charlesng35/fundraiser/internal/reqctx"
	apperrors "github.com/charlesng35/fundraiser/pkg/errors"
	"github.com/charlesng35/fundraiser/pkg/logger"
	"github.com/charlesng35/fundraiser/pkg/metrics"
)

// Notifier accepts admin alerts without blocking.
type Notifier interface {
	Enqueue(n notifications.Notification) bool
}

// LoginRequest carries the credentials presented by the client.
type LoginRequest struct {
	Username string
	Password string
}

// LoginResult is returned on a successful login.
type LoginResult struct {
	UserID       string    `json:"user_id"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	SessionID    string    `json:"session_id"`
	Expiry       time.Time `json:"refresh_token_expiry"`
}

// LogoutResult is returned when a session is closed.
type LogoutResult struct {
	LogoutAt time.Time `json:"logout_at"`
}

// TokenResult is returned by a successful token refresh.
type TokenResult struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	Expiry       time.Time `json:"refresh_token_expiry"`
}

// AuthenticatorConfig wires the collaborators of the Authenticator.
type AuthenticatorConfig struct {
	Store    CredentialStore
	Sessions *SessionService
	Tokens   *JWTService
	Notifier Notifier
	// ResolveGeo enables geo enrichment of login sessions.
	ResolveGeo bool
}

// Authenticator orchestrates login, logout and token refresh. Domain failures are returned
// as AppErrors; anything unexpected is logged, reported to administrators and replaced by
// a generic error.
type Authenticator struct {
	store      CredentialStore
	sessions   *SessionService
	tokens     *JWTService
	notifier   Notifier
	resolveGeo bool
	locks      *keyedMutex
	log        *zap.Logger
}

// NewAuthenticator validates the configuration and builds an Authenticator.
func NewAuthenticator(cfg AuthenticatorConfig) (*Authenticator, error) {
	switch {
	case cfg.Store == nil:
		return nil, errors.New("authenticator: credential store is required")
	case cfg.Sessions == nil:
		return nil, errors.New("authenticator: session service is required")
	case cfg.Tokens == nil:
		return nil, errors.New("authenticator: token service is required")
	}

	return &Authenticator{
		store:      cfg.Store,
		sessions:   cfg.Sessions,
		tokens:     cfg.Tokens,
		notifier:   cfg.Notifier,
		resolveGeo: cfg.ResolveGeo,
		locks:      newKeyedMutex(),
		log:        logger.WithModule("auth"),
	}, nil
}

// Login verifies credentials, opens a session and issues tokens.
func (a *Authenticator) Login(ctx context.Context, rc reqctx.RequestContext, req LoginRequest) (result LoginResult, err error) {
	defer a.guard(ctx, "Login", &err)

	user, err := a.store.FindByUsername(ctx, strings.TrimSpace(req.Username))
	if err != nil {
		return LoginResult{}, err
	}
	if user == nil {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		return LoginResult{}, ErrInvalidCredentials
	}
	if !user.EmailConfirmed {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		return LoginResult{}, ErrNotConfirmed
	}
	if !user.IsActive {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		return LoginResult{}, ErrInactive
	}
	if !a.store.CheckPassword(user, req.Password) {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		return LoginResult{}, ErrInvalidCredentials
	}

	var session *models.UserSession
	if a.resolveGeo {
		session, err = a.sessions.CreateSession(ctx, user.ID, rc.IP, rc.UserAgent)
	} else {
		session, err = a.sessions.CreateSessionWithoutGeo(ctx, user.ID, rc.UserAgent, rc.IP)
	}
	if err != nil {
		return LoginResult{}, err
	}

	issued := false
	defer func() {
		if !issued {
			a.abandonSession(ctx, rc, user, session.ID)
		}
	}()

	issue, err := a.issueLocked(ctx, user.ID, session.ID)
	if err != nil {
		return LoginResult{}, err
	}
	issued = true

	metrics.AuthAttempts.WithLabelValues("success").Inc()
	a.log.Info("user logged in", zap.String("user_id", user.ID), zap.String("session_id", session.ID))

	return LoginResult{
		UserID:       user.ID,
		AccessToken:  issue.AccessToken,
		RefreshToken: issue.RefreshToken,
		SessionID:    session.ID,
		Expiry:       issue.Expiry,
	}, nil
}

// Logout closes a single session.
func (a *Authenticator) Logout(ctx context.Context, rc reqctx.RequestContext, sessionID string) (result LogoutResult, err error) {
	defer a.guard(ctx, "Logout", &err)

	at, err := a.sessions.EndSession(ctx, rc, sessionID)
	if err != nil {
		return LogoutResult{}, err
	}
	return LogoutResult{LogoutAt: at}, nil
}

// RefreshToken exchanges an access token, expired or not, plus the current refresh token
// for a new access token and the current or rotated refresh token.
func (a *Authenticator) RefreshToken(ctx context.Context, rc reqctx.RequestContext, accessToken, refreshToken string) (result TokenResult, err error) {
	defer a.guard(ctx, "RefreshToken", &err)

	claims, err := a.tokens.ValidateExpiredTokenPrincipal(accessToken)
	if err != nil {
		return TokenResult{}, ErrInvalidToken.WithInternal(err)
	}

	unlock := a.locks.Lock(claims.UserID)
	defer unlock()

	user, err := a.store.FindByID(ctx, claims.UserID)
	if err != nil {
		return TokenResult{}, err
	}
	if user == nil {
		return TokenResult{}, ErrUserNotFound
	}
	if refreshToken == "" || user.RefreshToken != refreshToken {
		return TokenResult{}, ErrRefreshMismatch
	}

	issue, err := a.issue(ctx, user, claims.SessionID)
	if err != nil {
		return TokenResult{}, err
	}

	return TokenResult{
		AccessToken:  issue.AccessToken,
		RefreshToken: issue.RefreshToken,
		Expiry:       issue.Expiry,
	}, nil
}

// issueLocked re-reads the user under the per-user lock before issuing, so concurrent
// logins and refreshes observe each other's rotations.
func (a *Authenticator) issueLocked(ctx context.Context, userID, sessionID string) (TokenIssue, error) {
	unlock := a.locks.Lock(userID)
	defer unlock()

	user, err := a.store.FindByID(ctx, userID)
	if err != nil {
		return TokenIssue{}, err
	}
	if user == nil {
		return TokenIssue{}, ErrUserNotFound
	}
	return a.issue(ctx, user, sessionID)
}

// issue builds the subject and validates the refresh token. Callers hold the user's lock.
// A rotated token is persisted with a compare-and-swap against the value read from the
// store; when another process won the swap its still valid pair is returned instead.
func (a *Authenticator) issue(ctx context.Context, user *models.User, sessionID string) (TokenIssue, error) {
	subject, err := a.subject(ctx, user, sessionID)
	if err != nil {
		return TokenIssue{}, err
	}

	issue, err := a.tokens.ValidateAndRotateRefreshToken(user, subject)
	if err != nil {
		return TokenIssue{}, err
	}

	if !issue.Rotated {
		return issue, nil
	}

	ok, err := a.store.UpdateRefreshToken(ctx, user.ID, user.RefreshToken, issue.RefreshToken, issue.Expiry)
	if err != nil {
		return TokenIssue{}, err
	}
	if !ok {
		return a.adoptWinner(ctx, user, subject)
	}

	user.RefreshToken = issue.RefreshToken
	expiry := issue.Expiry
	user.RefreshTokenExpiry = &expiry
	return issue, nil
}

func (a *Authenticator) adoptWinner(ctx context.Context, user *models.User, subject Subject) (TokenIssue, error) {
	winner, err := a.store.FindByID(ctx, user.ID)
	if err != nil {
		return TokenIssue{}, err
	}
	if winner == nil {
		return TokenIssue{}, ErrRefreshPersist
	}

	issue, err := a.tokens.ValidateAndRotateRefreshToken(winner, subject)
	if err != nil {
		return TokenIssue{}, err
	}
	if issue.Rotated {
		return TokenIssue{}, ErrRefreshPersist
	}

	user.RefreshToken = winner.RefreshToken
	user.RefreshTokenExpiry = winner.RefreshTokenExpiry
	return issue, nil
}

// abandonSession closes a session opened by a login that failed afterwards.
func (a *Authenticator) abandonSession(ctx context.Context, rc reqctx.RequestContext, user *models.User, sessionID string) {
	rc = rc.WithActor(user.ID, user.Username, user.FullName)
	if _, err := a.sessions.EndSession(context.WithoutCancel(ctx), rc, sessionID); err != nil {
		a.log.Warn("failed to close session of failed login",
			zap.String("user_id", user.ID),
			zap.String("session_id", sessionID),
			zap.Error(err),
		)
	}
}

func (a *Authenticator) subject(ctx context.Context, user *models.User, sessionID string) (Subject, error) {
	userClaims, err := a.store.UserClaims(ctx, user.ID)
	if err != nil {
		return Subject{}, err
	}
	roleClaims, err := a.store.RoleClaims(ctx, user.ID)
	if err != nil {
		return Subject{}, err
	}
	roles, err := a.store.Roles(ctx, user.ID)
	if err != nil {
		return Subject{}, err
	}

	subject := Subject{
		UserID:    user.ID,
		Username:  user.Username,
		FullName:  user.FullName,
		Email:     user.Email,
		SessionID: sessionID,
	}
	for _, c := range userClaims {
		subject.UserGrants = append(subject.UserGrants, Grant{Type: c.Type, Value: c.Value})
	}
	for _, c := range roleClaims {
		subject.RoleGrants = append(subject.RoleGrants, Grant{Type: c.Type, Value: c.Value})
	}
	for _, r := range roles {
		subject.Roles = append(subject.Roles, r.Name)
	}
	return subject, nil
}

// guard converts whatever leaves an operation into the error contract of the coordinator.
// It must be deferred directly so that recover sees panics.
func (a *Authenticator) guard(ctx context.Context, operation string, errp *error) {
	if r := recover(); r != nil {
		*errp = a.unexpected(operation, fmt.Errorf("panic: %v", r))
		return
	}

	err := *errp
	if err == nil {
		return
	}

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		if appErr.Kind == apperrors.KindCancelled {
			a.log.Warn("operation cancelled", zap.String("operation", operation), zap.Bool("cancelled", true))
		}
		*errp = appErr
		return
	}

	if apperrors.IsCancellation(err) || (ctx != nil && ctx.Err() != nil) {
		a.log.Warn("operation cancelled", zap.String("operation", operation), zap.Bool("cancelled", true), zap.Error(err))
		*errp = apperrors.ErrCancelled.WithInternal(err)
		return
	}

	*errp = a.unexpected(operation, err)
}

func (a *Authenticator) unexpected(operation string, err error) error {
	logger.Critical("unexpected failure",
		zap.String("module", "auth"),
		zap.String("operation", operation),
		zap.Error(err),
	)

	if a.notifier != nil {
		a.notifier.Enqueue(notifications.Notification{
			Subject:   "Unexpected failure in " + operation,
			Body:      err.Error(),
			Operation: operation,
		})
	}

	return apperrors.ErrInternalServer.WithInternal(err)
}
