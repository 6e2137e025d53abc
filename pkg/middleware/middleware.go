// Package middleware holds the gin middleware shared by the ingest and admin
// surfaces.
package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	apperrors "nest/pkg/errors"
	"nest/pkg/logging"
)

const RequestIDHeader = "X-Request-ID"

const maxRequestIDLen = 128

type ctxLogger interface {
	InfowCtx(ctx context.Context, msg string, keysAndValues ...interface{})
	WarnwCtx(ctx context.Context, msg string, keysAndValues ...interface{})
	ErrorwCtx(ctx context.Context, msg string, keysAndValues ...interface{})
}

// RequestID propagates a caller supplied X-Request-ID, or mints one, into the
// request context and the response.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" || len(id) > maxRequestIDLen {
			id = uuid.NewString()
		}
		c.Header(RequestIDHeader, id)
		c.Request = c.Request.WithContext(logging.WithRequestID(c.Request.Context(), id))
		c.Next()
	}
}

// AccessLog writes one line per request after the handler chain returns.
// Server errors log at error level, client errors at warn.
func AccessLog(log ctxLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := []interface{}{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"latency_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
			"bytes_in", c.Request.ContentLength,
		}
		if errs := c.Errors.ByType(gin.ErrorTypePrivate); len(errs) > 0 {
			fields = append(fields, "error", errs.String())
		}

		ctx := c.Request.Context()
		switch {
		case status >= http.StatusInternalServerError:
			log.ErrorwCtx(ctx, "http_request", fields...)
		case status >= http.StatusBadRequest:
			log.WarnwCtx(ctx, "http_request", fields...)
		default:
			log.InfowCtx(ctx, "http_request", fields...)
		}
	}
}

// Recover answers a handler panic with the INTERNAL_ERROR envelope.
func Recover(log ctxLogger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		appErr := apperrors.FromPanic(recovered)
		log.ErrorwCtx(c.Request.Context(), "panic_recovered",
			"error", appErr.Cause,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"stack", appErr.Details["stack"],
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, apperrors.ToErrorResponse(appErr))
	})
}
