package common

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response represents a standard API response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorInfo  `json:"error,omitempty"`
	Meta    *Meta       `json:"meta,omitempty"`
}

// ErrorInfo contains error details
type ErrorInfo struct {
	Code      int    `json:"code"`
	ErrorCode string `json:"error_code,omitempty"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable,omitempty"`
}

// Meta carries list metadata such as result counts and applied sorting.
type Meta struct {
	Count  int         `json:"count"`
	SortBy string      `json:"sort_by,omitempty"`
	Stats  interface{} `json:"stats,omitempty"`
}

// SuccessResponse sends data with 200.
func SuccessResponse(c *gin.Context, data interface{}) {
	respond(c, http.StatusOK, data, nil)
}

// SuccessResponseWithMeta sends a list with its count and sorting.
func SuccessResponseWithMeta(c *gin.Context, data interface{}, meta *Meta) {
	respond(c, http.StatusOK, data, meta)
}

// CreatedResponse sends a newly created resource with 201.
func CreatedResponse(c *gin.Context, data interface{}) {
	respond(c, http.StatusCreated, data, nil)
}

func respond(c *gin.Context, status int, data interface{}, meta *Meta) {
	c.JSON(status, Response{Success: true, Data: data, Meta: meta})
}

// ErrorResponse sends a plain error without a taxonomy code.
func ErrorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, Response{Error: &ErrorInfo{Code: statusCode, Message: message}})
}

// AppErrorResponse sends err with its taxonomy code and retry hint.
func AppErrorResponse(c *gin.Context, err *AppError) {
	c.JSON(err.Code, Response{Error: &ErrorInfo{
		Code:      err.Code,
		ErrorCode: err.ErrorCode,
		Message:   err.Message,
		Retryable: err.Retryable(),
	}})
}
