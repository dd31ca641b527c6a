package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/fundraiser/internal/middleware"
	"github.com/charlesng35/fundraiser/internal/models"
	"github.com/charlesng35/fundraiser/internal/services"
	"github.com/charlesng35/fundraiser/pkg/errors"
	"github.com/charlesng35/fundraiser/pkg/response"
)

// PermissionManageCampaigns lets a user change campaigns owned by others.
const PermissionManageCampaigns = "campaign.manage"

type CampaignHandler struct {
	svc *services.CampaignService
}

func NewCampaignHandler(svc *services.CampaignService) *CampaignHandler {
	return &CampaignHandler{svc: svc}
}

type createCampaignRequest struct {
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description"`
	GoalAmount  int64  `json:"goal_amount" validate:"gt=0"`
	Currency    string `json:"currency" validate:"required,len=3"`
	IsPublished bool   `json:"is_published"`
}

type updateCampaignRequest struct {
	Title       *string `json:"title" validate:"omitempty,max=200"`
	Description *string `json:"description"`
	GoalAmount  *int64  `json:"goal_amount" validate:"omitempty,gt=0"`
	Currency    *string `json:"currency" validate:"omitempty,len=3"`
	IsPublished *bool   `json:"is_published"`
}

// GET /api/campaigns
func (h *CampaignHandler) List(c *gin.Context) {
	page, err := h.svc.List(requestContext(c), services.CampaignListOptions{
		Page:          parseIntQuery(c, "page", 1),
		PageSize:      parseIntQuery(c, "per_page", 50),
		OwnerID:       c.Query("owner_id"),
		PublishedOnly: c.Query("published") == "true",
		Search:        c.Query("search"),
	})
	if err != nil {
		fail(c, err)
		return
	}
	response.Paged(c, page)
}

// GET /api/campaigns/:id
func (h *CampaignHandler) Get(c *gin.Context) {
	campaign, err := h.svc.Get(requestContext(c), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, campaign)
}

// POST /api/campaigns
func (h *CampaignHandler) Create(c *gin.Context) {
	var req createCampaignRequest
	if !bindAndValidate(c, &req) {
		return
	}

	campaign, err := h.svc.Create(requestContext(c), callerContext(c), services.CreateCampaignInput{
		Title:       req.Title,
		Description: req.Description,
		GoalAmount:  req.GoalAmount,
		Currency:    req.Currency,
		IsPublished: req.IsPublished,
	})
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusCreated, campaign)
}

// PATCH /api/campaigns/:id
func (h *CampaignHandler) Update(c *gin.Context) {
	var req updateCampaignRequest
	if !bindAndValidate(c, &req) {
		return
	}
	if _, ok := h.authorize(c); !ok {
		return
	}

	campaign, err := h.svc.Update(requestContext(c), callerContext(c), c.Param("id"), services.UpdateCampaignInput{
		Title:       req.Title,
		Description: req.Description,
		GoalAmount:  req.GoalAmount,
		Currency:    req.Currency,
		IsPublished: req.IsPublished,
	})
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, campaign)
}

// DELETE /api/campaigns/:id
func (h *CampaignHandler) Delete(c *gin.Context) {
	if _, ok := h.authorize(c); !ok {
		return
	}

	if err := h.svc.Delete(requestContext(c), callerContext(c), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// authorize loads the campaign and checks that the caller owns it or may manage campaigns.
func (h *CampaignHandler) authorize(c *gin.Context) (*models.Campaign, bool) {
	actor, ok := currentActor(c)
	if !ok {
		return nil, false
	}

	campaign, err := h.svc.Get(requestContext(c), c.Param("id"))
	if err != nil {
		fail(c, err)
		return nil, false
	}
	if campaign.OwnerID == actor.UserID {
		return campaign, true
	}
	if claims, ok := middleware.ClaimsFrom(c); ok && claims.HasGrant(middleware.GrantPermission, PermissionManageCampaigns) {
		return campaign, true
	}

	response.Error(c, errors.ErrForbidden)
	return nil, false
}
