package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/discussion-review/internal/domain/apperr"
)

// statusFor maps an error kind to its HTTP status
func statusFor(err error) int {
	switch apperr.KindOf(err) {
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindPermission:
		return http.StatusForbidden
	case apperr.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes the error envelope. Store and unknown failures are
// logged in full and reported without internals.
func (h *Handlers) respondError(c *gin.Context, op string, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		h.logger.Error("Request failed", "op", op, "path", c.Request.URL.Path, "error", err)
		msg = "internal error"
	} else {
		h.logger.Info("Request rejected", "op", op, "status", status, "kind", apperr.KindOf(err).String(), "error", err)
	}

	c.JSON(status, Response{
		Success: false,
		Error:   msg,
		Kind:    apperr.KindOf(err).String(),
	})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, Response{
		Success: false,
		Error:   msg,
		Kind:    apperr.KindValidation.String(),
	})
}
