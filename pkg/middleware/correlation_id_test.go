package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/courtmate/tennis-platform/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestCorrelationID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	provided := uuid.NewString()

	tests := []struct {
		name     string
		header   string
		keepSame bool
	}{
		{"reuses a valid id", provided, true},
		{"replaces a non-uuid id", "abc", false},
		{"generates when missing", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var fromCtx string
			router := gin.New()
			router.Use(CorrelationID())
			router.GET("/", func(c *gin.Context) {
				fromCtx = logger.CorrelationIDFromContext(c.Request.Context())
				c.Status(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set(CorrelationIDHeader, tt.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			got := w.Header().Get(CorrelationIDHeader)
			_, err := uuid.Parse(got)
			assert.NoError(t, err)
			assert.Equal(t, got, fromCtx)
			if tt.keepSame {
				assert.Equal(t, provided, got)
			} else {
				assert.NotEqual(t, tt.header, got)
			}
		})
	}
}

func TestCORS_AllowsConfiguredOrigin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(CORS([]string{"https://app.courtmate.example"}))
	router.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Origin", "https://app.courtmate.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://app.courtmate.example", w.Header().Get("Access-Control-Allow-Origin"))
}
