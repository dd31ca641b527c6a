package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/charlesng35/fundraiser/internal/audit"
	"github.com/charlesng35/fundraiser/internal/models"
	"github.com/charlesng35/fundraiser/internal/reqctx"
	apperrors "github.com/charlesng35/fundraiser/pkg/errors"
	"github.com/charlesng35/fundraiser/pkg/pagination"
)

var (
	ErrCampaignNotFound = apperrors.NotFound("Campaign.NotFound", "Campaign not found")
	ErrCampaignConflict = apperrors.Conflict("Campaign.Conflict", "A campaign with this title already exists")
)

// CreateCampaignInput captures the fields required to open a campaign.
type CreateCampaignInput struct {
	Title       string
	Description string
	GoalAmount  int64
	Currency    string
	IsPublished bool
}

// UpdateCampaignInput holds optional campaign changes; nil fields are left untouched.
type UpdateCampaignInput struct {
	Title       *string
	Description *string
	GoalAmount  *int64
	Currency    *string
	IsPublished *bool
}

// CampaignListOptions controls pagination and filtering for campaign queries.
type CampaignListOptions struct {
	Page          int
	PageSize      int
	OwnerID       string
	PublishedOnly bool
	Search        string
}

// CampaignService manages campaigns. Every mutation is committed together with its audit rows.
type CampaignService struct {
	db          *gorm.DB
	interceptor *audit.Interceptor
}

// NewCampaignService constructs a CampaignService.
func NewCampaignService(db *gorm.DB, interceptor *audit.Interceptor) (*CampaignService, error) {
	if db == nil {
		return nil, errors.New("campaign service: db is required")
	}
	if interceptor == nil {
		return nil, errors.New("campaign service: audit interceptor is required")
	}
	return &CampaignService{db: db, interceptor: interceptor}, nil
}

// Create opens a campaign owned by the acting user.
func (s *CampaignService) Create(ctx context.Context, rc reqctx.RequestContext, input CreateCampaignInput) (*models.Campaign, error) {
	ctx = ensureContext(ctx)
	if strings.TrimSpace(rc.ActorID) == "" {
		return nil, apperrors.ErrUnauthorized
	}

	campaign := &models.Campaign{
		OwnerID:     rc.ActorID,
		Title:       strings.TrimSpace(input.Title),
		Description: strings.TrimSpace(input.Description),
		GoalAmount:  input.GoalAmount,
		Currency:    strings.ToUpper(strings.TrimSpace(input.Currency)),
		IsPublished: input.IsPublished,
	}
	if err := validateCampaign(campaign); err != nil {
		return nil, err
	}

	if err := s.interceptor.CommitWithAudit(ctx, rc, audit.Create(campaign)); err != nil {
		return nil, s.translate("create campaign", err)
	}
	return campaign, nil
}

// Get loads a campaign by id.
func (s *CampaignService) Get(ctx context.Context, id string) (*models.Campaign, error) {
	ctx = ensureContext(ctx)

	var campaign models.Campaign
	err := s.db.WithContext(ctx).Take(&campaign, "id = ?", strings.TrimSpace(id)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrCampaignNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("campaign service: load campaign: %w", err)
	}
	return &campaign, nil
}

// List returns campaigns ordered by creation time, newest first.
func (s *CampaignService) List(ctx context.Context, opts CampaignListOptions) (pagination.Page[models.Campaign], error) {
	ctx = ensureContext(ctx)
	params := pagination.Params{Page: opts.Page, PageSize: opts.PageSize}.Normalize()

	query := s.db.WithContext(ctx).Model(&models.Campaign{})
	if owner := strings.TrimSpace(opts.OwnerID); owner != "" {
		query = query.Where("owner_id = ?", owner)
	}
	if opts.PublishedOnly {
		query = query.Where("is_published = ?", true)
	}
	if term := strings.TrimSpace(opts.Search); term != "" {
		query = query.Where("LOWER(title) LIKE ? ESCAPE '"+likeEscape+"'", likePattern(term))
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return pagination.Page[models.Campaign]{}, fmt.Errorf("campaign service: count campaigns: %w", err)
	}

	var campaigns []models.Campaign
	if err := query.Session(&gorm.Session{}).
		Order("created_at DESC, id DESC").
		Offset(params.Offset()).
		Limit(params.PageSize).
		Find(&campaigns).Error; err != nil {
		return pagination.Page[models.Campaign]{}, fmt.Errorf("campaign service: list campaigns: %w", err)
	}

	return pagination.New(campaigns, params, total), nil
}

// Update applies the supplied changes to a campaign.
func (s *CampaignService) Update(ctx context.Context, rc reqctx.RequestContext, id string, input UpdateCampaignInput) (*models.Campaign, error) {
	campaign, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	original := audit.Snapshot(campaign)

	if input.Title != nil {
		campaign.Title = strings.TrimSpace(*input.Title)
	}
	if input.Description != nil {
		campaign.Description = strings.TrimSpace(*input.Description)
	}
	if input.GoalAmount != nil {
		campaign.GoalAmount = *input.GoalAmount
	}
	if input.Currency != nil {
		campaign.Currency = strings.ToUpper(strings.TrimSpace(*input.Currency))
	}
	if input.IsPublished != nil {
		campaign.IsPublished = *input.IsPublished
	}
	if err := validateCampaign(campaign); err != nil {
		return nil, err
	}

	if err := s.interceptor.CommitWithAudit(ensureContext(ctx), rc, audit.Update(campaign, original)); err != nil {
		return nil, s.translate("update campaign", err)
	}
	return campaign, nil
}

// Delete removes a campaign.
func (s *CampaignService) Delete(ctx context.Context, rc reqctx.RequestContext, id string) error {
	campaign, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.interceptor.CommitWithAudit(ensureContext(ctx), rc, audit.Delete(campaign)); err != nil {
		return s.translate("delete campaign", err)
	}
	return nil
}

func (s *CampaignService) translate(op string, err error) error {
	switch {
	case IsUniqueConstraintError(err):
		return ErrCampaignConflict.WithInternal(err)
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrCampaignNotFound
	case apperrors.IsCancellation(err):
		return apperrors.ErrCancelled.WithInternal(err)
	default:
		return fmt.Errorf("campaign service: %s: %w", op, err)
	}
}

func validateCampaign(c *models.Campaign) error {
	switch {
	case c.Title == "":
		return apperrors.NewBadRequest("title is required")
	case len(c.Title) > 200:
		return apperrors.NewBadRequest("title must be at most 200 characters")
	case c.GoalAmount <= 0:
		return apperrors.NewBadRequest("goal amount must be positive")
	case len(c.Currency) != 3:
		return apperrors.NewBadRequest("currency must be a three-letter ISO code")
	}
	return nil
}
