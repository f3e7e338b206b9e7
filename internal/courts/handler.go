package courts

import (
	"net/http"

	"github.com/courtmate/tennis-platform/pkg/common"
	"github.com/courtmate/tennis-platform/pkg/middleware"
	"github.com/courtmate/tennis-platform/pkg/tracing"
	"github.com/gin-gonic/gin"
)

// Handler handles HTTP requests for courts
type Handler struct {
	service *Service
}

// NewHandler creates a new courts handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type listQuery struct {
	Filters
	SortBy SortMode `form:"sort_by" validate:"omitempty,court_sort"`
	Limit  int      `form:"limit" validate:"omitempty,min=1,max=100"`
}

func bindListQuery(c *gin.Context) (listQuery, bool) {
	var q listQuery
	if !common.BindQuery(c, &q) || !common.ValidateRequest(c, &q) {
		return q, false
	}
	date, ok := common.ParseDateQuery(c, "date")
	if !ok {
		return q, false
	}
	q.Date = date
	return q, true
}

// GetRecommended returns courts scored for the caller
func (h *Handler) GetRecommended(c *gin.Context) {
	playerID, ok := common.RequireUserID(c, middleware.GetUserID)
	if !ok {
		return
	}
	q, ok := bindListQuery(c)
	if !ok {
		return
	}

	recs, err := h.service.Recommend(c.Request.Context(), playerID, q.Filters, q.SortBy, q.Limit)
	if common.HandleServiceError(c, err, "failed to recommend courts") {
		return
	}

	sortBy := q.SortBy
	if sortBy == "" {
		sortBy = SortRecommended
	}
	middleware.AddSpanAttributes(c, tracing.CourtCountKey.Int(len(recs)))
	common.SuccessResponseWithMeta(c, recs, &common.Meta{Count: len(recs), SortBy: string(sortBy)})
}

// ListCourts browses courts without scoring
func (h *Handler) ListCourts(c *gin.Context) {
	q, ok := bindListQuery(c)
	if !ok {
		return
	}

	courts, err := h.service.ListAll(c.Request.Context(), q.Filters, q.SortBy, q.Limit)
	if common.HandleServiceError(c, err, "failed to list courts") {
		return
	}

	common.SuccessResponseWithMeta(c, courts, &common.Meta{Count: len(courts), SortBy: string(q.SortBy)})
}

// GetSortOptions lists the supported sort modes
func (h *Handler) GetSortOptions(c *gin.Context) {
	common.SuccessResponse(c, h.service.SortOptions())
}

// GetTrending returns the busiest areas of the last week
func (h *Handler) GetTrending(c *gin.Context) {
	trending, err := h.service.TrendingLocations(c.Request.Context())
	if common.HandleServiceError(c, err, "failed to get trending locations") {
		return
	}

	common.SuccessResponse(c, trending)
}

// GetAvailableSlots lists a court's free hourly slots on a date
func (h *Handler) GetAvailableSlots(c *gin.Context) {
	courtID, ok := common.ParseUUIDParam(c, "id", "court ID")
	if !ok {
		return
	}
	date, ok := common.ParseDateQuery(c, "date")
	if !ok {
		return
	}
	if date == nil {
		common.ErrorResponse(c, http.StatusBadRequest, "date is required")
		return
	}

	slots, err := h.service.AvailableSlots(c.Request.Context(), courtID, *date)
	if common.HandleServiceError(c, err, "failed to get available slots") {
		return
	}

	common.SuccessResponseWithMeta(c, slots, &common.Meta{Count: len(slots)})
}

// RegisterRoutes registers court routes on an authenticated group
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	courts := rg.Group("/courts")
	{
		courts.GET("", h.ListCourts)
		courts.GET("/recommended", h.GetRecommended)
		courts.GET("/trending", h.GetTrending)
		courts.GET("/sort-options", h.GetSortOptions)
		courts.GET("/:id/slots", h.GetAvailableSlots)
	}
}
