package common

import (
	"errors"
	"net/http"
	"time"

	"github.com/courtmate/tennis-platform/pkg/logger"
	"github.com/courtmate/tennis-platform/pkg/validation"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const dateLayout = "2006-01-02"

// HandleServiceError writes err as the response and reports whether it did.
// AppErrors keep their status and taxonomy code; anything else is logged and
// answered with a 500 carrying fallbackMessage.
//
//	sb, err := h.service.Propose(ctx, playerID, req)
//	if common.HandleServiceError(c, err, "failed to create proposal") {
//	    return
//	}
func HandleServiceError(c *gin.Context, err error, fallbackMessage string) bool {
	if err == nil {
		return false
	}

	var appErr *AppError
	if !errors.As(err, &appErr) {
		appErr = NewInternalErrorWithError(fallbackMessage, err)
	}
	if appErr.Code >= http.StatusInternalServerError {
		logger.ErrorContext(c.Request.Context(), fallbackMessage, zap.Error(err))
		_ = c.Error(err)
	}
	AppErrorResponse(c, appErr)
	return true
}

// invalidInput answers 400 with the INVALID_INPUT code.
func invalidInput(c *gin.Context, message string) {
	AppErrorResponse(c, NewValidationError(message))
}

func parseUUID(c *gin.Context, raw, displayName string, required bool) (uuid.UUID, bool) {
	if raw == "" {
		if required {
			invalidInput(c, displayName+" is required")
			return uuid.Nil, false
		}
		return uuid.Nil, true
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		invalidInput(c, "invalid "+displayName)
		return uuid.Nil, false
	}
	return id, true
}

// ParseUUIDParam reads a required UUID path parameter.
func ParseUUIDParam(c *gin.Context, paramName, displayName string) (uuid.UUID, bool) {
	return parseUUID(c, c.Param(paramName), displayName, true)
}

// ParseUUIDQuery reads a UUID query parameter. A missing optional parameter
// yields uuid.Nil.
func ParseUUIDQuery(c *gin.Context, paramName, displayName string, required bool) (uuid.UUID, bool) {
	return parseUUID(c, c.Query(paramName), displayName, required)
}

// ParseDateQuery reads an optional YYYY-MM-DD query parameter.
func ParseDateQuery(c *gin.Context, paramName string) (*time.Time, bool) {
	raw := c.Query(paramName)
	if raw == "" {
		return nil, true
	}
	date, err := time.Parse(dateLayout, raw)
	if err != nil {
		invalidInput(c, "invalid "+paramName+": expected YYYY-MM-DD")
		return nil, false
	}
	return &date, true
}

// BindJSON decodes the body into obj or answers 400.
func BindJSON(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		invalidInput(c, err.Error())
		return false
	}
	return true
}

// BindQuery decodes the query string into obj or answers 400.
func BindQuery(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindQuery(obj); err != nil {
		invalidInput(c, err.Error())
		return false
	}
	return true
}

// ValidateRequest runs the shared validator over a bound request.
func ValidateRequest(c *gin.Context, obj interface{}) bool {
	if err := validation.ValidateStruct(obj); err != nil {
		invalidInput(c, err.Error())
		return false
	}
	return true
}

// RequireUserID returns the authenticated player or answers 401.
func RequireUserID(c *gin.Context, getUserID func(*gin.Context) (uuid.UUID, error)) (uuid.UUID, bool) {
	id, err := getUserID(c)
	if err != nil {
		ErrorResponse(c, http.StatusUnauthorized, "unauthorized")
		return uuid.Nil, false
	}
	return id, true
}
