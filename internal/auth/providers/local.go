package providers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/fundraiser/internal/audit"
	"github.com/charlesng35/fundraiser/internal/auth"
	"github.com/charlesng35/fundraiser/internal/models"
	"github.com/charlesng35/fundraiser/internal/reqctx"
	"github.com/charlesng35/fundraiser/internal/services"
	"github.com/charlesng35/fundraiser/pkg/crypto"
	apperrors "github.com/charlesng35/fundraiser/pkg/errors"
	"github.com/charlesng35/fundraiser/pkg/logger"
	"github.com/charlesng35/fundraiser/pkg/validator"
)

const (
	// DefaultRoleID is assigned to every self-registered user when the role exists.
	DefaultRoleID = "user"

	minPasswordLength = 8
	securityStampSize = 16
)

var (
	ErrUserConflict    = apperrors.Conflict("User.Conflict", "Username or email is already in use")
	ErrInvalidPassword = apperrors.Unauthorized("User.InvalidPassword", "Current password is incorrect")
)

// LocalConfig defines tunable behaviour for the local provider.
type LocalConfig struct {
	// AutoConfirm marks registered users as having a confirmed email address.
	AutoConfirm bool
}

// RegisterInput captures the details required to register a new local user.
type RegisterInput struct {
	Username string
	Email    string
	Password string
	FullName string
}

// ProfileInput holds optional profile changes.
type ProfileInput struct {
	FullName *string
	Email    *string
}

// LocalProvider is the gorm backed credential store. Lookups are read-only; user mutations
// go through the audit interceptor.
type LocalProvider struct {
	db          *gorm.DB
	interceptor *audit.Interceptor
	autoConfirm bool
	log         *zap.Logger
}

var _ auth.CredentialStore = (*LocalProvider)(nil)

// NewLocalProvider builds a provider backed by db.
func NewLocalProvider(db *gorm.DB, interceptor *audit.Interceptor, cfg LocalConfig) (*LocalProvider, error) {
	if db == nil {
		return nil, errors.New("local provider: db is required")
	}
	if interceptor == nil {
		return nil, errors.New("local provider: audit interceptor is required")
	}
	return &LocalProvider{
		db:          db,
		interceptor: interceptor,
		autoConfirm: cfg.AutoConfirm,
		log:         logger.WithModule("auth.local"),
	}, nil
}

// FindByUsername matches the username exactly, ignoring case.
func (p *LocalProvider) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, nil
	}
	return p.findOne(ctx, "LOWER(username) = LOWER(?)", username)
}

// FindByID loads a user by primary key.
func (p *LocalProvider) FindByID(ctx context.Context, userID string) (*models.User, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, nil
	}
	return p.findOne(ctx, "id = ?", userID)
}

func (p *LocalProvider) findOne(ctx context.Context, query string, args ...any) (*models.User, error) {
	var user models.User
	err := p.db.WithContext(ctx).Where(query, args...).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("local provider: query user: %w", err)
	}
	return &user, nil
}

// CheckPassword verifies password against the stored bcrypt hash.
func (p *LocalProvider) CheckPassword(user *models.User, password string) bool {
	if user == nil || user.PasswordHash == "" || password == "" {
		return false
	}
	return crypto.VerifyPassword(user.PasswordHash, password)
}

// UserClaims returns the claims granted directly to the user.
func (p *LocalProvider) UserClaims(ctx context.Context, userID string) ([]models.UserClaim, error) {
	var claims []models.UserClaim
	if err := p.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("type ASC, value ASC").
		Find(&claims).Error; err != nil {
		return nil, fmt.Errorf("local provider: load user claims: %w", err)
	}
	return claims, nil
}

// RoleClaims returns the claims of every role the user belongs to.
func (p *LocalProvider) RoleClaims(ctx context.Context, userID string) ([]models.RoleClaim, error) {
	var claims []models.RoleClaim
	if err := p.db.WithContext(ctx).
		Joins("JOIN user_roles ON user_roles.role_id = role_claims.role_id").
		Where("user_roles.user_id = ?", userID).
		Order("role_claims.type ASC, role_claims.value ASC").
		Find(&claims).Error; err != nil {
		return nil, fmt.Errorf("local provider: load role claims: %w", err)
	}
	return claims, nil
}

// Roles returns the roles assigned to the user ordered by name.
func (p *LocalProvider) Roles(ctx context.Context, userID string) ([]models.Role, error) {
	var roles []models.Role
	if err := p.db.WithContext(ctx).
		Joins("JOIN user_roles ON user_roles.role_id = roles.id").
		Where("user_roles.user_id = ?", userID).
		Order("roles.name ASC").
		Find(&roles).Error; err != nil {
		return nil, fmt.Errorf("local provider: load roles: %w", err)
	}
	return roles, nil
}

// UpdateRefreshToken replaces the refresh token only while it still equals previous.
func (p *LocalProvider) UpdateRefreshToken(ctx context.Context, userID, previous, token string, expiry time.Time) (bool, error) {
	result := p.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ? AND refresh_token = ?", userID, previous).
		Updates(map[string]any{
			"refresh_token":        token,
			"refresh_token_expiry": expiry,
		})
	if result.Error != nil {
		return false, fmt.Errorf("local provider: update refresh token: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// Register creates a new local user with a hashed password and assigns the default role.
// A self-registration without an authenticated caller is attributed to the new user.
func (p *LocalProvider) Register(ctx context.Context, rc reqctx.RequestContext, input RegisterInput) (*models.User, error) {
	username := strings.TrimSpace(input.Username)
	email := strings.ToLower(strings.TrimSpace(input.Email))
	switch {
	case validator.Var(username, "username") != nil:
		return nil, apperrors.NewBadRequest("username must be 3-64 letters, digits, dots, dashes or underscores")
	case !validEmail(email):
		return nil, apperrors.NewBadRequest("a valid email address is required")
	case len(input.Password) < minPasswordLength:
		return nil, apperrors.NewBadRequest(fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}

	hashed, err := crypto.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("local provider: hash password: %w", err)
	}
	stamp, err := crypto.GenerateToken(securityStampSize)
	if err != nil {
		return nil, fmt.Errorf("local provider: security stamp: %w", err)
	}

	user := &models.User{
		Username:       username,
		Email:          email,
		FullName:       strings.TrimSpace(input.FullName),
		PasswordHash:   hashed,
		SecurityStamp:  stamp,
		EmailConfirmed: p.autoConfirm,
		IsActive:       true,
	}
	user.ID = models.NewID()

	changes := []audit.Change{audit.Create(user)}

	var role models.Role
	err = p.db.WithContext(ctx).Where("id = ?", DefaultRoleID).Take(&role).Error
	switch {
	case err == nil:
		changes = append(changes, audit.Create(&models.UserRole{UserID: user.ID, RoleID: role.ID}))
	case errors.Is(err, gorm.ErrRecordNotFound):
		p.log.Warn("default role missing, registering without role", zap.String("role", DefaultRoleID))
	default:
		return nil, fmt.Errorf("local provider: load default role: %w", err)
	}

	if rc.Anonymous() {
		rc = rc.WithActor(user.ID, user.Username, user.FullName)
	}

	if err := p.interceptor.CommitWithAudit(ctx, rc, changes...); err != nil {
		return nil, translate("register user", err)
	}

	p.log.Info("user registered", zap.String("user_id", user.ID), zap.String("username", user.Username))
	return user, nil
}

// UpdateProfile changes the user's full name and/or email.
func (p *LocalProvider) UpdateProfile(ctx context.Context, rc reqctx.RequestContext, userID string, input ProfileInput) (*models.User, error) {
	user, err := p.requireUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	original := audit.Snapshot(user)

	if input.FullName != nil {
		user.FullName = strings.TrimSpace(*input.FullName)
	}
	if input.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*input.Email))
		if !validEmail(email) {
			return nil, apperrors.NewBadRequest("a valid email address is required")
		}
		if email != user.Email {
			user.Email = email
			user.EmailConfirmed = p.autoConfirm
		}
	}

	if err := p.interceptor.CommitWithAudit(ctx, rc, audit.Update(user, original)); err != nil {
		return nil, translate("update profile", err)
	}
	return user, nil
}

// ChangePassword verifies the current password, stores the new hash and rolls the security
// stamp. The refresh token is revoked so that every device has to log in again.
func (p *LocalProvider) ChangePassword(ctx context.Context, rc reqctx.RequestContext, userID, current, next string) error {
	if len(next) < minPasswordLength {
		return apperrors.NewBadRequest(fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}

	user, err := p.requireUser(ctx, userID)
	if err != nil {
		return err
	}
	if !p.CheckPassword(user, current) {
		return ErrInvalidPassword
	}
	original := audit.Snapshot(user)

	hashed, err := crypto.HashPassword(next)
	if err != nil {
		return fmt.Errorf("local provider: hash password: %w", err)
	}
	stamp, err := crypto.GenerateToken(securityStampSize)
	if err != nil {
		return fmt.Errorf("local provider: security stamp: %w", err)
	}

	user.PasswordHash = hashed
	user.SecurityStamp = stamp
	user.RefreshToken = ""
	user.RefreshTokenExpiry = nil

	if err := p.interceptor.CommitWithAudit(ctx, rc, audit.Update(user, original)); err != nil {
		return translate("change password", err)
	}
	return nil
}

// ConfirmEmail marks the user's email address as confirmed.
func (p *LocalProvider) ConfirmEmail(ctx context.Context, rc reqctx.RequestContext, userID string) error {
	user, err := p.requireUser(ctx, userID)
	if err != nil {
		return err
	}
	if user.EmailConfirmed {
		return nil
	}
	original := audit.Snapshot(user)
	user.EmailConfirmed = true

	if err := p.interceptor.CommitWithAudit(ctx, rc, audit.Update(user, original)); err != nil {
		return translate("confirm email", err)
	}
	return nil
}

func (p *LocalProvider) requireUser(ctx context.Context, userID string) (*models.User, error) {
	user, err := p.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, auth.ErrUserNotFound
	}
	return user, nil
}

func translate(op string, err error) error {
	switch {
	case services.IsUniqueConstraintError(err):
		return ErrUserConflict.WithInternal(err)
	case apperrors.IsCancellation(err):
		return apperrors.ErrCancelled.WithInternal(err)
	default:
		return fmt.Errorf("local provider: %s: %w", op, err)
	}
}

func validEmail(email string) bool {
	return validator.Var(email, "required,email") == nil
}
