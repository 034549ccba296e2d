package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"novacontent/internal/app"
	"novacontent/internal/model"
	"novacontent/internal/queue"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func respondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{Error: APIError{Message: msg, Code: code}})
}

func respondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

// classify maps a pipeline error onto an HTTP status and error code.
func classify(err error) (int, string) {
	var stageErr *model.StageError
	switch {
	case errors.Is(err, model.ErrInvalidInput):
		return http.StatusBadRequest, "invalid_input"
	case errors.Is(err, model.ErrNicheNotFound):
		return http.StatusNotFound, "niche_not_found"
	case errors.Is(err, model.ErrProductionNotFound):
		return http.StatusNotFound, "production_not_found"
	case errors.Is(err, queue.ErrJobNotFound):
		return http.StatusNotFound, "job_not_found"
	case errors.Is(err, model.ErrQuotaExceeded):
		return http.StatusTooManyRequests, "quota_exceeded"
	case errors.Is(err, app.ErrGenerationDisabled):
		return http.StatusServiceUnavailable, "generation_disabled"
	case errors.As(err, &stageErr):
		return http.StatusBadGateway, stageErr.Stage + "_failed"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func respondErr(c *gin.Context, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	respondError(c, status, code, err)
}
