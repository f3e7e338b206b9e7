package middleware

import (
	"errors"
	"strings"
	"time"

	"github.com/courtmate/tennis-platform/pkg/common"
	"github.com/courtmate/tennis-platform/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	playerIDKey    = "player_id"
	playerEmailKey = "player_email"

	clockSkew = 30 * time.Second
)

// Claims is the bearer token payload. Subject is the player ID.
type Claims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// AuthMiddleware accepts HS256 bearer tokens signed with jwtSecret and puts
// the player on the gin and request contexts.
func AuthMiddleware(jwtSecret string) gin.HandlerFunc {
	key := []byte(jwtSecret)
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(clockSkew),
	)
	keyFunc := func(*jwt.Token) (interface{}, error) { return key, nil }

	return func(c *gin.Context) {
		raw, err := bearerToken(c.GetHeader("Authorization"))
		if err != nil {
			reject(c, err.Error())
			return
		}

		claims := &Claims{}
		if _, err := parser.ParseWithClaims(raw, claims, keyFunc); err != nil {
			reject(c, "invalid or expired token")
			return
		}
		playerID, err := uuid.Parse(claims.Subject)
		if err != nil {
			reject(c, "invalid token subject")
			return
		}

		c.Set(playerIDKey, playerID)
		c.Set(playerEmailKey, claims.Email)
		c.Request = c.Request.WithContext(logger.ContextWithPlayerID(c.Request.Context(), playerID.String()))
		c.Next()
	}
}

func bearerToken(header string) (string, error) {
	if header == "" {
		return "", errors.New("authorization required")
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", errors.New("invalid authorization header format")
	}
	return strings.TrimSpace(token), nil
}

func reject(c *gin.Context, message string) {
	common.AppErrorResponse(c, common.NewUnauthorizedError(message))
	c.Abort()
}

// GetUserID returns the authenticated player.
func GetUserID(c *gin.Context) (uuid.UUID, error) {
	if id, ok := c.Value(playerIDKey).(uuid.UUID); ok {
		return id, nil
	}
	return uuid.Nil, common.ErrUnauthorized
}
