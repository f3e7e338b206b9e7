package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/courtmate/tennis-platform/pkg/common"
	"github.com/courtmate/tennis-platform/pkg/logger"
	redisclient "github.com/courtmate/tennis-platform/pkg/redis"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// IdempotencyKeyHeader lets clients retry a proposal or confirmation safely.
const IdempotencyKeyHeader = "Idempotency-Key"

type replayEntry struct {
	Status      int             `json:"status"`
	Body        json.RawMessage `json:"body"`
	RequestHash string          `json:"request_hash"`
}

type capturingWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *capturingWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// Idempotency replays the stored 2xx response when a player repeats a POST
// with the same Idempotency-Key. Reusing a key with a different body is a 422.
// A nil client disables the check.
func Idempotency(redis redisclient.ClientInterface, ttl time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(IdempotencyKeyHeader)
		if redis == nil || key == "" || c.Request.Method != http.MethodPost {
			c.Next()
			return
		}

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			common.ErrorResponse(c, http.StatusBadRequest, "failed to read request body")
			c.Abort()
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		ctx := c.Request.Context()
		hash := requestHash(c.FullPath(), body)
		playerID, _ := GetUserID(c)
		redisKey := "idempotency:" + playerID.String() + ":" + key

		cached, err := redis.GetString(ctx, redisKey)
		switch {
		case err == nil:
			var entry replayEntry
			if jsonErr := json.Unmarshal([]byte(cached), &entry); jsonErr == nil {
				if entry.RequestHash != hash {
					common.ErrorResponse(c, http.StatusUnprocessableEntity,
						"Idempotency-Key has already been used with a different request")
					c.Abort()
					return
				}
				c.Header("Idempotent-Replayed", "true")
				c.Data(entry.Status, "application/json; charset=utf-8", entry.Body)
				c.Abort()
				return
			}
		case !errors.Is(err, redisclient.Nil):
			logger.WarnContext(ctx, "idempotency lookup failed", zap.Error(err))
		}

		writer := &capturingWriter{ResponseWriter: c.Writer, body: &bytes.Buffer{}}
		c.Writer = writer

		c.Next()

		status := writer.Status()
		if status < 200 || status >= 300 {
			return
		}

		data, err := json.Marshal(replayEntry{Status: status, Body: writer.body.Bytes(), RequestHash: hash})
		if err != nil {
			return
		}
		if err := redis.SetWithExpiration(ctx, redisKey, data, ttl); err != nil {
			logger.WarnContext(ctx, "failed to store idempotent response",
				zap.String("key", key),
				zap.Error(err),
			)
		}
	}
}

func requestHash(route string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(route))
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}
