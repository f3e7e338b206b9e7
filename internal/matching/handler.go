package matching

import (
	"github.com/courtmate/tennis-platform/pkg/common"
	"github.com/courtmate/tennis-platform/pkg/middleware"
	"github.com/courtmate/tennis-platform/pkg/tracing"
	"github.com/gin-gonic/gin"
)

// Handler handles HTTP requests for partner matching
type Handler struct {
	service *Service
}

// NewHandler creates a new matching handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// FindMatches lists compatible partners for the caller
func (h *Handler) FindMatches(c *gin.Context) {
	playerID, ok := common.RequireUserID(c, middleware.GetUserID)
	if !ok {
		return
	}

	var filters MatchFilters
	if !common.BindQuery(c, &filters) || !common.ValidateRequest(c, &filters) {
		return
	}

	matches, err := h.service.FindMatches(c.Request.Context(), playerID, filters, filters.Limit)
	if common.HandleServiceError(c, err, "failed to find matches") {
		return
	}

	middleware.AddSpanAttributes(c, tracing.CandidateCountKey.Int(len(matches)))
	common.SuccessResponseWithMeta(c, matches, &common.Meta{Count: len(matches)})
}

// SuggestPartners lists the most compatible partners with next steps
func (h *Handler) SuggestPartners(c *gin.Context) {
	playerID, ok := common.RequireUserID(c, middleware.GetUserID)
	if !ok {
		return
	}

	var q struct {
		Limit int `form:"limit" validate:"omitempty,min=1,max=20"`
	}
	if !common.BindQuery(c, &q) || !common.ValidateRequest(c, &q) {
		return
	}

	suggestions, err := h.service.SuggestPartners(c.Request.Context(), playerID, q.Limit)
	if common.HandleServiceError(c, err, "failed to suggest partners") {
		return
	}

	common.SuccessResponseWithMeta(c, suggestions, &common.Meta{Count: len(suggestions)})
}

// GetStatistics reports the caller's matching prospects
func (h *Handler) GetStatistics(c *gin.Context) {
	playerID, ok := common.RequireUserID(c, middleware.GetUserID)
	if !ok {
		return
	}

	stats, err := h.service.MatchStatistics(c.Request.Context(), playerID)
	if common.HandleServiceError(c, err, "failed to get match statistics") {
		return
	}

	common.SuccessResponse(c, stats)
}

// RegisterRoutes registers matching routes on an authenticated group
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	matches := rg.Group("/matches")
	{
		matches.GET("", h.FindMatches)
		matches.GET("/partners", h.SuggestPartners)
		matches.GET("/stats", h.GetStatistics)
	}
}
