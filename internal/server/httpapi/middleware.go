package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/dmitrijs2005/usersvc/internal/server/auth"
)

const (
	headerRequestID = "X-Request-ID"
	ctxOperator     = "operator"
)

func (s *Server) requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(headerRequestID))
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		c.Set(headerRequestID, id)
		c.Header(headerRequestID, id)
		c.Next()
	}
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		s.logger.Info(c.Request.Context(), "http_request",
			"method", method,
			"path", path,
			"status", c.Writer.Status(),
			"latency_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
			"request_id", c.GetString(headerRequestID),
		)
	}
}

// timeoutMiddleware bounds the request context; upstream calls and storage
// honour it.
func (s *Server) timeoutMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.timeout <= 0 {
			c.Next()
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), s.timeout)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// bearerAuthMiddleware requires "Authorization: Bearer <jwt>" when a secret
// key is configured, and is a no-op otherwise.
func (s *Server) bearerAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.jwtSecret == nil {
			c.Next()
			return
		}

		header := strings.TrimSpace(c.GetHeader("Authorization"))
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			abortError(c, http.StatusUnauthorized, "unauthorized", "missing bearer token")
			return
		}

		operator, err := auth.OperatorFromToken(strings.TrimSpace(token), s.jwtSecret)
		if err != nil {
			s.logger.Warn(c.Request.Context(), "http_auth_rejected", "error", err, "request_id", c.GetString(headerRequestID))
			abortError(c, http.StatusUnauthorized, "unauthorized", "invalid bearer token")
			return
		}

		c.Set(ctxOperator, operator)
		c.Next()
	}
}
