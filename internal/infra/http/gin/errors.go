package ginserver

import (
	"errors"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"peerrent/internal/app/middleware"
	"peerrent/internal/app/outcome"
	"peerrent/internal/domain/reservation"
)

type errorResponse struct {
	Error   string `json:"error"`
	Outcome string `json:"outcome"`
	Code    string `json:"code,omitempty"`
}

// statusFor maps the error taxonomy onto HTTP. A lost range race and a stale version are both
// conflicts the caller resolves by reloading.
func statusFor(err error) (int, string) {
	if errors.Is(err, middleware.ErrKeyReused) {
		return http.StatusUnprocessableEntity, outcome.Invalid
	}
	label := outcome.Classify(err)
	switch label {
	case outcome.Invalid:
		return http.StatusBadRequest, label
	case outcome.RuleViolation:
		return http.StatusUnprocessableEntity, label
	case outcome.Conflict, outcome.StorageConflict:
		return http.StatusConflict, label
	case outcome.NotFound:
		return http.StatusNotFound, label
	case outcome.Canceled:
		return http.StatusServiceUnavailable, label
	}
	return http.StatusInternalServerError, label
}

func writeError(c *gin.Context, err error) {
	status, label := statusFor(err)
	resp := errorResponse{Error: err.Error(), Outcome: label}
	var v *reservation.RuleViolation
	if errors.As(err, &v) {
		resp.Code = string(v.Code)
	}
	if status == http.StatusInternalServerError {
		resp.Error = "internal error"
		_ = c.Error(err)
	}
	c.JSON(status, resp)
}
