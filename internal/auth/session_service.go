package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/fundraiser/internal/geo"
	"github.com/charlesng35/fundraiser/internal/models"
	"github.com/charlesng35/fundraiser/internal/reqctx"
	"github.com/charlesng35/fundraiser/pkg/crypto"
	apperrors "github.com/charlesng35/fundraiser/pkg/errors"
	"github.com/charlesng35/fundraiser/pkg/logger"
	"github.com/charlesng35/fundraiser/pkg/metrics"
	"github.com/charlesng35/fundraiser/pkg/pagination"
)

const (
	sessionTokenBytes = 32
	systemActor       = "system"
	sessionOrder      = "login_at DESC, id DESC"
)

// SessionConfig describes tunable behaviour for the SessionService.
type SessionConfig struct {
	Clock func() time.Time
	Geo   geo.Resolver
}

// SessionQuery filters and pages a user's sessions. A nil ActiveOnly returns every session.
type SessionQuery struct {
	ActiveOnly *bool
	Page       int
	PageSize   int
}

// SessionDetail is the full projection of a session.
type SessionDetail struct {
	ID             string     `json:"id"`
	UserID         string     `json:"user_id"`
	IPAddress      *string    `json:"ip_address"`
	UserAgent      string     `json:"user_agent"`
	DeviceType     *string    `json:"device_type"`
	Country        *string    `json:"country"`
	City           *string    `json:"city"`
	Region         *string    `json:"region"`
	Latitude       *float64   `json:"latitude"`
	Longitude      *float64   `json:"longitude"`
	Timezone       *string    `json:"timezone"`
	Organization   *string    `json:"organization"`
	FullLocation   *string    `json:"full_location"`
	LoginAt        time.Time  `json:"login_at"`
	LastActivityAt time.Time  `json:"last_activity_at"`
	LogoutAt       *time.Time `json:"logout_at"`
	IsActive       bool       `json:"is_active"`
}

// SessionSummary is the compact projection used by session lists.
type SessionSummary struct {
	ID             string     `json:"id"`
	DeviceType     *string    `json:"device_type"`
	IPAddress      *string    `json:"ip_address"`
	FullLocation   *string    `json:"full_location"`
	LoginAt        time.Time  `json:"login_at"`
	LastActivityAt time.Time  `json:"last_activity_at"`
	LogoutAt       *time.Time `json:"logout_at"`
	IsActive       bool       `json:"is_active"`
}

// SessionService records logins and their lifecycle. It never caches session state.
type SessionService struct {
	db  *gorm.DB
	geo geo.Resolver
	now func() time.Time
	log *zap.Logger
}

// NewSessionService constructs a session manager backed by the provided database.
func NewSessionService(db *gorm.DB, cfg SessionConfig) (*SessionService, error) {
	if db == nil {
		return nil, errors.New("session service: db is required")
	}

	clock := time.Now
	if cfg.Clock != nil {
		clock = cfg.Clock
	}

	resolver := cfg.Geo
	if resolver == nil {
		resolver = geo.Noop{}
	}

	return &SessionService{
		db:  db,
		geo: resolver,
		now: clock,
		log: logger.WithModule("sessions"),
	}, nil
}

// CreateSession records a login enriched with best-effort geo data. Geo failures are
// ignored; persistence failures are returned.
func (s *SessionService) CreateSession(ctx context.Context, userID string, ip *string, userAgent string) (*models.UserSession, error) {
	return s.create(ctx, userID, ip, userAgent, s.locate(ctx, ip))
}

// CreateSessionWithoutGeo records a login without any geo lookup.
func (s *SessionService) CreateSessionWithoutGeo(ctx context.Context, userID, userAgent string, ip *string) (*models.UserSession, error) {
	return s.create(ctx, userID, ip, userAgent, nil)
}

func (s *SessionService) create(ctx context.Context, userID string, ip *string, userAgent string, loc *geo.Location) (*models.UserSession, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, apperrors.NewBadRequest("user id is required")
	}

	token, err := crypto.GenerateToken(sessionTokenBytes)
	if err != nil {
		return nil, fmt.Errorf("session service: generate session token: %w", err)
	}

	now := s.now()
	session := &models.UserSession{
		UserID:         userID,
		IPAddress:      trimmed(ip),
		UserAgent:      strings.TrimSpace(userAgent),
		DeviceType:     ClassifyDevice(userAgent),
		LoginAt:        now,
		LastActivityAt: now,
		IsActive:       true,
		SessionToken:   &token,
	}
	applyLocation(session, loc)

	if err := s.db.WithContext(ctx).Create(session).Error; err != nil {
		return nil, fmt.Errorf("session service: create session: %w", err)
	}

	metrics.ActiveSessions.Inc()
	return session, nil
}

func (s *SessionService) locate(ctx context.Context, ip *string) (loc *geo.Location) {
	addr := trimmed(ip)
	if addr == nil {
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			s.log.Warn("geo lookup panicked", zap.String("ip", *addr), zap.Any("panic", r))
			loc = nil
		}
	}()

	loc, err := s.geo.Resolve(ctx, *addr)
	if err != nil {
		s.log.Warn("geo lookup failed", zap.String("ip", *addr), zap.Error(err))
		return nil
	}
	return loc
}

// GetSessions returns a page of full session details, newest login first.
func (s *SessionService) GetSessions(ctx context.Context, userID string, query SessionQuery) (pagination.Page[SessionDetail], error) {
	rows, params, total, err := s.page(ctx, userID, query)
	if err != nil {
		return pagination.Page[SessionDetail]{}, err
	}
	return pagination.Map(pagination.New(rows, params, total), toDetail), nil
}

// GetSessionSummaries returns a page of compact session rows, newest login first.
func (s *SessionService) GetSessionSummaries(ctx context.Context, userID string, query SessionQuery) (pagination.Page[SessionSummary], error) {
	rows, params, total, err := s.page(ctx, userID, query)
	if err != nil {
		return pagination.Page[SessionSummary]{}, err
	}
	return pagination.Map(pagination.New(rows, params, total), toSummary), nil
}

// GetActiveSessions lists every active session of the user, newest login first.
func (s *SessionService) GetActiveSessions(ctx context.Context, userID string) ([]SessionDetail, error) {
	var rows []models.UserSession
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND is_active = ?", userID, true).
		Order(sessionOrder).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("session service: list active sessions: %w", err)
	}

	out := make([]SessionDetail, 0, len(rows))
	for _, row := range rows {
		out = append(out, toDetail(row))
	}
	return out, nil
}

// GetSessionHistory pages through every session of the user, newest login first.
func (s *SessionService) GetSessionHistory(ctx context.Context, userID string, page, pageSize int) (pagination.Page[SessionSummary], error) {
	return s.GetSessionSummaries(ctx, userID, SessionQuery{Page: page, PageSize: pageSize})
}

func (s *SessionService) page(ctx context.Context, userID string, query SessionQuery) ([]models.UserSession, pagination.Params, int64, error) {
	params := pagination.Params{Page: query.Page, PageSize: query.PageSize}.Normalize()

	base := s.db.WithContext(ctx).Model(&models.UserSession{}).Where("user_id = ?", userID)
	if query.ActiveOnly != nil {
		base = base.Where("is_active = ?", *query.ActiveOnly)
	}

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, params, 0, fmt.Errorf("session service: count sessions: %w", err)
	}

	var rows []models.UserSession
	if err := base.Session(&gorm.Session{}).
		Order(sessionOrder).
		Offset(params.Offset()).
		Limit(params.PageSize).
		Find(&rows).Error; err != nil {
		return nil, params, 0, fmt.Errorf("session service: list sessions: %w", err)
	}
	return rows, params, total, nil
}

// UpdateLastActivity touches every active session of the user in one statement.
// Failures are logged, never returned.
func (s *SessionService) UpdateLastActivity(ctx context.Context, userID string) {
	now := s.now()
	err := s.db.WithContext(ctx).
		Model(&models.UserSession{}).
		Where("user_id = ? AND is_active = ? AND login_at <= ?", userID, true, now).
		Update("last_activity_at", now).Error
	if err != nil {
		s.log.Warn("update last activity failed", zap.String("user_id", userID), zap.Error(err))
	}
}

// LogoutSession closes the user's active session holding sessionToken, or every active
// session of the user when sessionToken is nil. Failures are logged, never returned.
func (s *SessionService) LogoutSession(ctx context.Context, userID string, sessionToken *string) {
	now := s.now()
	query := s.db.WithContext(ctx).
		Model(&models.UserSession{}).
		Where("user_id = ? AND is_active = ?", userID, true)
	if sessionToken != nil {
		query = query.Where("session_token = ?", *sessionToken)
	}

	result := query.Updates(closeUpdates(now, nil))
	if result.Error != nil {
		s.log.Warn("logout session failed", zap.String("user_id", userID), zap.Error(result.Error))
		return
	}
	if result.RowsAffected > 0 {
		metrics.ActiveSessions.Sub(float64(result.RowsAffected))
	}
}

// LogoutAllSessions closes every active session of the user.
func (s *SessionService) LogoutAllSessions(ctx context.Context, userID string) {
	s.LogoutSession(ctx, userID, nil)
}

// EndSession closes one active session by id in a single keyed update and returns the
// logout time. When the request context names an actor, only that actor's session matches.
func (s *SessionService) EndSession(ctx context.Context, rc reqctx.RequestContext, sessionID string) (time.Time, error) {
	if strings.TrimSpace(sessionID) == "" {
		return time.Time{}, ErrSessionNotFound
	}

	now := rc.Now
	if now.IsZero() {
		now = s.now()
	}

	query := s.db.WithContext(ctx).
		Model(&models.UserSession{}).
		Where("id = ? AND is_active = ?", sessionID, true)
	if rc.ActorID != "" {
		query = query.Where("user_id = ?", rc.ActorID)
	}

	actor := rc.ActorName
	result := query.Updates(closeUpdates(now, &actor))
	if result.Error != nil {
		return time.Time{}, fmt.Errorf("session service: end session: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return time.Time{}, ErrSessionNotFound
	}

	metrics.ActiveSessions.Sub(float64(result.RowsAffected))
	return now, nil
}

// IsSessionActive reports whether sessionID belongs to userID and is still open.
func (s *SessionService) IsSessionActive(ctx context.Context, userID, sessionID string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.UserSession{}).
		Where("id = ? AND user_id = ? AND is_active = ?", sessionID, userID, true).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("session service: check session: %w", err)
	}
	return count > 0, nil
}

// ExpireIdleSessions closes active sessions whose last activity is older than idle.
func (s *SessionService) ExpireIdleSessions(ctx context.Context, idle time.Duration) (int64, error) {
	if idle <= 0 {
		return 0, nil
	}

	now := s.now()
	actor := systemActor
	result := s.db.WithContext(ctx).
		Model(&models.UserSession{}).
		Where("is_active = ? AND last_activity_at < ?", true, now.Add(-idle)).
		Updates(map[string]any{
			"is_active":   false,
			"logout_at":   now,
			"modified_by": actor,
			"modified_at": now,
		})
	if result.Error != nil {
		return 0, fmt.Errorf("session service: expire idle sessions: %w", result.Error)
	}
	if result.RowsAffected > 0 {
		metrics.ActiveSessions.Sub(float64(result.RowsAffected))
	}
	return result.RowsAffected, nil
}

func closeUpdates(now time.Time, actor *string) map[string]any {
	updates := map[string]any{
		"is_active":        false,
		"logout_at":        now,
		"last_activity_at": now,
		"modified_at":      now,
	}
	if actor != nil && *actor != "" {
		updates["modified_by"] = *actor
	}
	return updates
}

func applyLocation(session *models.UserSession, loc *geo.Location) {
	if loc == nil {
		return
	}
	session.Country = optional(loc.Country)
	session.City = optional(loc.City)
	session.Region = optional(loc.Region)
	session.Latitude = loc.Latitude
	session.Longitude = loc.Longitude
	session.Timezone = optional(loc.Timezone)
	session.Organization = optional(loc.Organization)
	session.FullLocation = optional(loc.FullLocation())
}

func toDetail(s models.UserSession) SessionDetail {
	return SessionDetail{
		ID:             s.ID,
		UserID:         s.UserID,
		IPAddress:      s.IPAddress,
		UserAgent:      s.UserAgent,
		DeviceType:     s.DeviceType,
		Country:        s.Country,
		City:           s.City,
		Region:         s.Region,
		Latitude:       s.Latitude,
		Longitude:      s.Longitude,
		Timezone:       s.Timezone,
		Organization:   s.Organization,
		FullLocation:   s.FullLocation,
		LoginAt:        s.LoginAt,
		LastActivityAt: s.LastActivityAt,
		LogoutAt:       s.LogoutAt,
		IsActive:       s.IsActive,
	}
}

func toSummary(s models.UserSession) SessionSummary {
	return SessionSummary{
		ID:             s.ID,
		DeviceType:     s.DeviceType,
		IPAddress:      s.IPAddress,
		FullLocation:   s.FullLocation,
		LoginAt:        s.LoginAt,
		LastActivityAt: s.LastActivityAt,
		LogoutAt:       s.LogoutAt,
		IsActive:       s.IsActive,
	}
}

func optional(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}

func trimmed(value *string) *string {
	if value == nil {
		return nil
	}
	return optional(*value)
}
