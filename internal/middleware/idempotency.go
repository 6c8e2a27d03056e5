package middleware

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	internalRedis "tuition/internal/redis"
)

const (
	idempotencyHeader = "Idempotency-Key"
	replayedHeader    = "Idempotent-Replayed"
	inFlightLockTTL   = 30 * time.Second
)

// responseWriter wraps gin.ResponseWriter to capture the response.
type responseWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *responseWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *responseWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// IdempotencyMiddleware replays the stored response for a repeated
// Idempotency-Key and holds a lock while the first request is in flight, so
// a client retry never processes the same payment twice. Redis errors fall
// through to normal processing.
func IdempotencyMiddleware(cache internalRedis.ResponseCacheInterface, locks internalRedis.LockStoreInterface, logger *slog.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}

	return func(c *gin.Context) {
		// Only apply to mutating methods.
		if c.Request.Method != http.MethodPost && c.Request.Method != http.MethodPut && c.Request.Method != http.MethodPatch {
			c.Next()
			return
		}

		key := c.GetHeader(idempotencyHeader)
		if key == "" {
			c.Next()
			return
		}
		if user := AdminUser(c); user != "" {
			key = user + ":" + key
		}

		ctx := context.WithoutCancel(c.Request.Context())

		cached, err := cache.GetResponse(ctx, key)
		if err != nil {
			logger.Warn("idempotency cache unavailable", "error", err)
			c.Next()
			return
		}
		if cached != nil {
			replay(c, cached)
			return
		}

		token, acquired, err := locks.AcquireLock(ctx, "idempotency:"+key, inFlightLockTTL)
		if err != nil {
			logger.Warn("idempotency lock unavailable", "error", err)
			c.Next()
			return
		}
		if !acquired {
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "a request with this Idempotency-Key is already in progress"})
			return
		}
		defer func() {
			if err := locks.ReleaseLock(ctx, "idempotency:"+key, token); err != nil {
				logger.Warn("failed to release idempotency lock", "error", err)
			}
		}()

		// The first request may have finished between the cache check and the lock.
		if cached, err := cache.GetResponse(ctx, key); err == nil && cached != nil {
			replay(c, cached)
			return
		}

		w := &responseWriter{
			ResponseWriter: c.Writer,
			body:           &bytes.Buffer{},
		}
		c.Writer = w

		c.Next()

		status := c.Writer.Status()
		if status >= 200 && status < 500 && status != http.StatusConflict {
			response := internalRedis.CachedResponse{
				StatusCode: status,
				Body:       w.body.Bytes(),
				Headers:    extractResponseHeaders(c),
			}
			if err := cache.SetResponse(ctx, key, &response, internalRedis.ResponseTTL); err != nil {
				logger.Warn("failed to cache idempotent response", "error", err)
			}
		}
	}
}

func replay(c *gin.Context, cached *internalRedis.CachedResponse) {
	for k, v := range cached.Headers {
		for _, val := range v {
			c.Header(k, val)
		}
	}
	c.Header(replayedHeader, "true")

	contentType := cached.Headers.Get("Content-Type")
	if contentType == "" {
		contentType = "application/json"
	}
	c.Data(cached.StatusCode, contentType, cached.Body)
	c.Abort()
}

// extractResponseHeaders extracts headers to cache.
func extractResponseHeaders(c *gin.Context) http.Header {
	headers := make(http.Header)
	// Only cache Content-Type header.
	if ct := c.Writer.Header().Get("Content-Type"); ct != "" {
		headers.Set("Content-Type", ct)
	}
	return headers
}
