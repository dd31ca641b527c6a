package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/fundraiser/internal/services"
	"github.com/charlesng35/fundraiser/pkg/response"
)

type AuditHandler struct {
	svc *services.AuditService
}

func NewAuditHandler(svc *services.AuditService) *AuditHandler {
	return &AuditHandler{svc: svc}
}

// GET /api/audit
func (h *AuditHandler) List(c *gin.Context) {
	filters := services.AuditFilters{
		Username: c.Query("username"),
		Action:   c.Query("action"),
		FullName: c.Query("full_name"),
		Search:   c.Query("search"),
	}

	var err error
	if filters.From, err = parseTimeQuery(c, "from"); err != nil {
		response.Error(c, err)
		return
	}
	if filters.To, err = parseTimeQuery(c, "to"); err != nil {
		response.Error(c, err)
		return
	}

	page, err := h.svc.GetPagedAudits(requestContext(c), filters, parseIntQuery(c, "page", 1), parseIntQuery(c, "per_page", 50))
	if err != nil {
		fail(c, err)
		return
	}
	response.Paged(c, page)
}

// GET /api/audit/:id
func (h *AuditHandler) Get(c *gin.Context) {
	detail, err := h.svc.GetAuditByID(requestContext(c), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, detail)
}
