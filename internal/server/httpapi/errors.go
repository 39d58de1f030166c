package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dmitrijs2005/usersvc/internal/common"
)

// statusFor maps service errors to an HTTP status and a stable error code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, common.ErrValidation):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, common.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, common.ErrAlreadyExists):
		return http.StatusConflict, "already_exists"
	case errors.Is(err, common.ErrUnauthorized), errors.Is(err, common.ErrInvalidToken):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, common.ErrUpstreamUnavailable):
		return http.StatusServiceUnavailable, "upstream_unavailable"
	case errors.Is(err, common.ErrConsistencyFault):
		return http.StatusInternalServerError, "consistency_fault"
	case errors.Is(err, common.ErrStorageFault):
		return http.StatusInternalServerError, "storage_fault"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func abortError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}

// writeError answers with the mapped status. Internal details are logged,
// not returned, for 5xx answers.
func (s *Server) writeError(c *gin.Context, err error) {
	status, code := statusFor(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		s.logger.Error(c.Request.Context(), "http_request_failed",
			"path", c.Request.URL.Path, "error", err, "request_id", c.GetString(headerRequestID))
		if status == http.StatusInternalServerError {
			msg = http.StatusText(status)
		}
	}
	abortError(c, status, code, msg)
}
