package notifications

import (
	"github.com/courtmate/tennis-platform/pkg/common"
	"github.com/courtmate/tennis-platform/pkg/middleware"
	"github.com/gin-gonic/gin"
)

// Handler serves a player's delivery log
type Handler struct {
	service *Service
}

// NewHandler creates a new notifications handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers notification routes on an authenticated group
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/notifications", h.GetNotifications)
}

// GetNotifications returns the caller's notifications, newest first
func (h *Handler) GetNotifications(c *gin.Context) {
	playerID, ok := common.RequireUserID(c, middleware.GetUserID)
	if !ok {
		return
	}
	var q struct {
		Limit  int `form:"limit" validate:"omitempty,min=1,max=100"`
		Offset int `form:"offset" validate:"omitempty,min=0"`
	}
	if !common.BindQuery(c, &q) || !common.ValidateRequest(c, &q) {
		return
	}

	notifications, err := h.service.ListForPlayer(c.Request.Context(), playerID, q.Limit, q.Offset)
	if common.HandleServiceError(c, err, "failed to get notifications") {
		return
	}

	common.SuccessResponseWithMeta(c, notifications, &common.Meta{Count: len(notifications)})
}
