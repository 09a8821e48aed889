package handlers

import (
	"errors"
	"net/http"

	"fieldjob-backend/internal/capture"
	"fieldjob-backend/internal/completion"
	"fieldjob-backend/internal/media"
	"fieldjob-backend/internal/models"
	"fieldjob-backend/internal/upload"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// statusFor maps package sentinels to HTTP statuses.
func statusFor(err error) int {
	var uploadErr *upload.Error
	switch {
	case errors.Is(err, models.ErrNotFound),
		errors.Is(err, media.ErrNotFound),
		errors.Is(err, completion.ErrSessionNotFound),
		errors.Is(err, completion.ErrNoCompletion):
		return http.StatusNotFound
	case errors.Is(err, capture.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, media.ErrLocked),
		errors.Is(err, media.ErrFinalized),
		errors.Is(err, media.ErrDuplicate),
		errors.Is(err, media.ErrInvalidTransition),
		errors.Is(err, capture.ErrInvalidState),
		errors.Is(err, capture.ErrDeviceBusy):
		return http.StatusConflict
	case errors.Is(err, capture.ErrUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, media.ErrUnsupported):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, media.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.As(err, &uploadErr), errors.Is(err, media.ErrEmptyURL):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, msg string, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		logrus.WithError(err).WithField("path", c.FullPath()).Error(msg)
	}
	_ = c.Error(err)
	c.JSON(code, models.ErrorResponse{Error: msg, Message: err.Error()})
}
