package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/charlesng35/fundraiser/internal/models"
	apperrors "github.com/charlesng35/fundraiser/pkg/errors"
	"github.com/charlesng35/fundraiser/pkg/pagination"
)

// ErrAuditNotFound is returned when an audit row does not exist.
var ErrAuditNotFound = apperrors.NotFound("Audit.NotFound", "Audit entry not found")

// AuditFilters encapsulates optional filters when querying audit trails.
type AuditFilters struct {
	Username string
	Action   string
	FullName string
	From     *time.Time
	To       *time.Time
	Search   string
}

// AuditSummary is the list projection of an audit row.
type AuditSummary struct {
	ID             string             `json:"id"`
	Username       string             `json:"username"`
	FullName       string             `json:"full_name"`
	IPAddress      *string            `json:"ip_address"`
	EntityName     string             `json:"entity_name"`
	Action         models.AuditAction `json:"action"`
	Timestamp      time.Time          `json:"timestamp"`
	ChangedColumns []string           `json:"changed_columns"`
	Summary        string             `json:"summary"`
}

// AuditDetail adds the key and value maps to the summary.
type AuditDetail struct {
	AuditSummary
	KeyValues map[string]any `json:"key_values"`
	OldValues map[string]any `json:"old_values"`
	NewValues map[string]any `json:"new_values"`
}

// AuditService is the read side of the audit trail. Rows are written only by the audit
// interceptor.
type AuditService struct {
	db *gorm.DB
}

// NewAuditService constructs an AuditService using the provided database handle.
func NewAuditService(db *gorm.DB) (*AuditService, error) {
	if db == nil {
		return nil, errors.New("audit service: db is required")
	}
	return &AuditService{db: db}, nil
}

// GetAuditByID returns a single audit row.
func (s *AuditService) GetAuditByID(ctx context.Context, id string) (*AuditDetail, error) {
	ctx = ensureContext(ctx)

	var row models.AuditTrail
	err := s.db.WithContext(ctx).Take(&row, "id = ?", strings.TrimSpace(id)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrAuditNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("audit service: get audit: %w", err)
	}

	detail := toAuditDetail(row)
	return &detail, nil
}

// GetPagedAudits returns audit rows matching filters, newest first.
func (s *AuditService) GetPagedAudits(ctx context.Context, filters AuditFilters, page, pageSize int) (pagination.Page[AuditSummary], error) {
	ctx = ensureContext(ctx)
	params := pagination.Params{Page: page, PageSize: pageSize}.Normalize()

	query := s.applyAuditFilters(s.db.WithContext(ctx).Model(&models.AuditTrail{}), filters)

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return pagination.Page[AuditSummary]{}, fmt.Errorf("audit service: count audits: %w", err)
	}

	var rows []models.AuditTrail
	if err := query.Session(&gorm.Session{}).
		Order("timestamp DESC, id DESC").
		Offset(params.Offset()).
		Limit(params.PageSize).
		Find(&rows).Error; err != nil {
		return pagination.Page[AuditSummary]{}, fmt.Errorf("audit service: list audits: %w", err)
	}

	return pagination.Map(pagination.New(rows, params, total), toAuditSummary), nil
}

func (s *AuditService) applyAuditFilters(query *gorm.DB, filters AuditFilters) *gorm.DB {
	like := " LIKE ? ESCAPE '" + likeEscape + "'"

	if v := strings.TrimSpace(filters.Username); v != "" {
		query = query.Where("LOWER(username) = ?", strings.ToLower(v))
	}
	if v := strings.TrimSpace(filters.Action); v != "" {
		query = query.Where("LOWER(action) = ?", strings.ToLower(v))
	}
	if v := strings.TrimSpace(filters.FullName); v != "" {
		query = query.Where("LOWER(full_name)"+like, likePattern(v))
	}
	if filters.From != nil {
		query = query.Where("timestamp >= ?", *filters.From)
	}
	if filters.To != nil {
		query = query.Where("timestamp <= ?", *filters.To)
	}
	if v := strings.TrimSpace(filters.Search); v != "" {
		pattern := likePattern(v)
		columns := "LOWER(" + s.textCast("changed_columns") + ")"
		query = query.Where(
			"LOWER(username)"+like+" OR LOWER(action)"+like+" OR "+columns+like+" OR LOWER(entity_name)"+like,
			pattern, pattern, pattern, pattern,
		)
	}
	return query
}

// textCast renders a JSON column as text for the active dialect.
func (s *AuditService) textCast(column string) string {
	switch s.db.Dialector.Name() {
	case "mysql":
		return "CAST(" + column + " AS CHAR)"
	case "sqlite":
		return column
	default:
		return "CAST(" + column + " AS TEXT)"
	}
}

func toAuditSummary(row models.AuditTrail) AuditSummary {
	columns := []string(row.ChangedColumns)
	if columns == nil {
		columns = []string{}
	}
	return AuditSummary{
		ID:             row.ID,
		Username:       row.Username,
		FullName:       row.FullName,
		IPAddress:      row.IPAddress,
		EntityName:     row.EntityName,
		Action:         row.Action,
		Timestamp:      row.Timestamp,
		ChangedColumns: columns,
		Summary:        row.Summary,
	}
}

func toAuditDetail(row models.AuditTrail) AuditDetail {
	return AuditDetail{
		AuditSummary: toAuditSummary(row),
		KeyValues:    jsonMap(row.KeyValues),
		OldValues:    jsonMap(row.OldValues),
		NewValues:    jsonMap(row.NewValues),
	}
}

func jsonMap(m datatypes.JSONMap) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return map[string]any(m)
}
