package handler

import (
	"errors"
	"net/http"

	"github.com/bytesize-travel/service-curation/internal/application"
	"github.com/bytesize-travel/service-curation/internal/domain/content"
	"github.com/bytesize-travel/service-curation/internal/domain/run"
	"github.com/bytesize-travel/service-curation/internal/lock"
	"github.com/bytesize-travel/service-curation/internal/response"
	"github.com/bytesize-travel/service-curation/internal/selection"
	"github.com/gin-gonic/gin"
)

// writeError maps domain errors to HTTP statuses.
func writeError(c *gin.Context, err error) {
	_ = c.Error(err)

	status := http.StatusInternalServerError
	message := "internal server error"

	switch {
	case errors.Is(err, selection.ErrNoEligibleContent):
		status, message = http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, content.ErrContentNotFound), errors.Is(err, run.ErrRunNotFound):
		status, message = http.StatusNotFound, err.Error()
	case errors.Is(err, content.ErrInvalidContent), errors.Is(err, application.ErrUnknownCadence):
		status, message = http.StatusBadRequest, err.Error()
	case errors.Is(err, lock.ErrLockHeld):
		status, message = http.StatusConflict, "a publication for this cadence is already running"
	case errors.Is(err, content.ErrRepositoryUnavailable):
		status, message = http.StatusServiceUnavailable, "content repository unavailable"
	}

	response.Fail(c, status, message)
}
