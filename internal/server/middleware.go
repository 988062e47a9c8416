package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/GomuGomuu/ope-ope/internal/embedder"
	"github.com/GomuGomuu/ope-ope/internal/log"
	"github.com/GomuGomuu/ope-ope/internal/matcher"
)

const requestIDHeader = "X-Request-ID"

// requestID tags every request with an id, reusing one supplied by the caller.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.InfoLogger.Info().
			Str("request_id", c.GetString("request_id")).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}

// requestTimeout bounds the request context, and with it any embedding call. Zero disables it.
func requestTimeout(timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if timeout <= 0 {
			c.Next()
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, matcher.ErrInvalidArgument), errors.Is(err, embedder.ErrEmptyText):
		return http.StatusBadRequest
	case errors.Is(err, matcher.ErrNoCandidates):
		return http.StatusNotFound
	case errors.Is(err, matcher.ErrNotReady), errors.Is(err, embedder.ErrUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, matcher.ErrCatalogInconsistency):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.ErrorLogger.Error().Err(err).Str("request_id", c.GetString("request_id")).Msg("🔥 Request failed")
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
