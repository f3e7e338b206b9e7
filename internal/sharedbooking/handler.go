package sharedbooking

import (
	"context"

	"github.com/courtmate/tennis-platform/pkg/common"
	"github.com/courtmate/tennis-platform/pkg/middleware"
	"github.com/courtmate/tennis-platform/pkg/tracing"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Handler handles HTTP requests for shared bookings
type Handler struct {
	service *Service
}

// NewHandler creates a new shared booking handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// bindOptionalJSON binds a body that clients may omit entirely.
func bindOptionalJSON(c *gin.Context, obj interface{}) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	return common.BindJSON(c, obj) && common.ValidateRequest(c, obj)
}

// caller resolves the authenticated player and the :id path parameter.
func caller(c *gin.Context) (playerID, bookingID uuid.UUID, ok bool) {
	if playerID, ok = common.RequireUserID(c, middleware.GetUserID); !ok {
		return
	}
	if bookingID, ok = common.ParseUUIDParam(c, "id", "shared booking ID"); !ok {
		return
	}
	middleware.AddSpanAttributes(c, tracing.SharedBookingIDKey.String(bookingID.String()))
	return
}

// SuggestCourts lists fair meeting courts for the caller and a partner
func (h *Handler) SuggestCourts(c *gin.Context) {
	playerID, ok := common.RequireUserID(c, middleware.GetUserID)
	if !ok {
		return
	}
	partnerID, ok := common.ParseUUIDQuery(c, "partner_id", "partner ID", true)
	if !ok {
		return
	}
	var q struct {
		Limit int `form:"limit" validate:"omitempty,min=1,max=20"`
	}
	if !common.BindQuery(c, &q) || !common.ValidateRequest(c, &q) {
		return
	}

	points, err := h.service.SuggestCourts(c.Request.Context(), playerID, partnerID, q.Limit)
	if common.HandleServiceError(c, err, "failed to suggest courts") {
		return
	}

	common.SuccessResponseWithMeta(c, points, &common.Meta{Count: len(points)})
}

// Propose opens a shared booking with a partner
func (h *Handler) Propose(c *gin.Context) {
	playerID, ok := common.RequireUserID(c, middleware.GetUserID)
	if !ok {
		return
	}

	var req ProposeRequest
	if !common.BindJSON(c, &req) || !common.ValidateRequest(c, &req) {
		return
	}

	sb, err := h.service.Propose(c.Request.Context(), playerID, req)
	if common.HandleServiceError(c, err, "failed to create proposal") {
		return
	}

	common.CreatedResponse(c, sb)
}

// Accept accepts a proposal as the invited partner
func (h *Handler) Accept(c *gin.Context) {
	playerID, id, ok := caller(c)
	if !ok {
		return
	}
	var req RespondRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	sb, err := h.service.Accept(c.Request.Context(), id, playerID, req.Notes)
	if common.HandleServiceError(c, err, "failed to accept proposal") {
		return
	}

	common.SuccessResponse(c, sb)
}

// CounterPropose suggests a different slot
func (h *Handler) CounterPropose(c *gin.Context) {
	playerID, id, ok := caller(c)
	if !ok {
		return
	}
	var req CounterRequest
	if !common.BindJSON(c, &req) || !common.ValidateRequest(c, &req) {
		return
	}

	sb, err := h.service.CounterPropose(c.Request.Context(), id, playerID, req)
	if common.HandleServiceError(c, err, "failed to counter-propose") {
		return
	}

	common.SuccessResponse(c, sb)
}

// AcceptCounterProposal takes the partner's alternative
func (h *Handler) AcceptCounterProposal(c *gin.Context) {
	playerID, id, ok := caller(c)
	if !ok {
		return
	}

	sb, err := h.service.AcceptCounterProposal(c.Request.Context(), id, playerID)
	if common.HandleServiceError(c, err, "failed to accept counter-proposal") {
		return
	}

	common.SuccessResponse(c, sb)
}

// Decline turns a proposal down
func (h *Handler) Decline(c *gin.Context) {
	h.cancel(c, h.service.Decline, "failed to decline proposal")
}

// Cancel withdraws from a negotiation
func (h *Handler) Cancel(c *gin.Context) {
	h.cancel(c, h.service.Cancel, "failed to cancel shared booking")
}

type cancelFunc func(ctx context.Context, id, playerID uuid.UUID, reason string) (*SharedBooking, error)

func (h *Handler) cancel(c *gin.Context, fn cancelFunc, failure string) {
	playerID, id, ok := caller(c)
	if !ok {
		return
	}
	var req CancelRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	sb, err := fn(c.Request.Context(), id, playerID, req.Reason)
	if common.HandleServiceError(c, err, failure) {
		return
	}

	common.SuccessResponse(c, sb)
}

// Confirm books the agreed slot
func (h *Handler) Confirm(c *gin.Context) {
	playerID, id, ok := caller(c)
	if !ok {
		return
	}

	sb, err := h.service.Confirm(c.Request.Context(), id, playerID)
	if common.HandleServiceError(c, err, "failed to confirm shared booking") {
		return
	}

	common.SuccessResponse(c, sb)
}

// Get returns one shared booking
func (h *Handler) Get(c *gin.Context) {
	playerID, id, ok := caller(c)
	if !ok {
		return
	}

	view, err := h.service.Get(c.Request.Context(), id, playerID)
	if common.HandleServiceError(c, err, "failed to get shared booking") {
		return
	}

	common.SuccessResponse(c, view)
}

// List returns the caller's shared bookings
func (h *Handler) List(c *gin.Context) {
	playerID, ok := common.RequireUserID(c, middleware.GetUserID)
	if !ok {
		return
	}
	var q struct {
		IncludeExpired bool `form:"include_expired"`
	}
	if !common.BindQuery(c, &q) {
		return
	}

	views, err := h.service.ListForPlayer(c.Request.Context(), playerID, q.IncludeExpired)
	if common.HandleServiceError(c, err, "failed to list shared bookings") {
		return
	}

	common.SuccessResponseWithMeta(c, views, &common.Meta{Count: len(views)})
}

// Pending returns proposals waiting on the caller
func (h *Handler) Pending(c *gin.Context) {
	playerID, ok := common.RequireUserID(c, middleware.GetUserID)
	if !ok {
		return
	}

	views, err := h.service.PendingForPlayer(c.Request.Context(), playerID)
	if common.HandleServiceError(c, err, "failed to list pending proposals") {
		return
	}

	common.SuccessResponseWithMeta(c, views, &common.Meta{Count: len(views)})
}

// GetStatistics reports negotiation outcomes
func (h *Handler) GetStatistics(c *gin.Context) {
	stats, err := h.service.Statistics(c.Request.Context())
	if common.HandleServiceError(c, err, "failed to get shared booking statistics") {
		return
	}

	common.SuccessResponse(c, stats)
}

// RegisterRoutes registers shared booking routes on an authenticated group.
// Extra middleware, such as idempotency, applies to the mutating routes.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, mutating ...gin.HandlerFunc) {
	sb := rg.Group("/shared-bookings")
	{
		sb.GET("", h.List)
		sb.GET("/pending", h.Pending)
		sb.GET("/stats", h.GetStatistics)
		sb.GET("/suggestions", h.SuggestCourts)
		sb.GET("/:id", h.Get)

		writes := sb.Group("", mutating...)
		writes.POST("", h.Propose)
		writes.POST("/:id/accept", h.Accept)
		writes.POST("/:id/counter", h.CounterPropose)
		writes.POST("/:id/accept-counter", h.AcceptCounterProposal)
		writes.POST("/:id/decline", h.Decline)
		writes.POST("/:id/cancel", h.Cancel)
		writes.POST("/:id/confirm", h.Confirm)
	}
}
