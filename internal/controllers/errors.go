package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"convoy_tracker/internal/gpxio"
	"convoy_tracker/internal/models"
)

// handleServiceError writes the HTTP response for an error returned by the
// services layer.
func handleServiceError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, gpxio.ErrInvalidGPX):
		status = http.StatusBadRequest
	case errors.Is(err, models.ErrNotLeader), errors.Is(err, models.ErrUnauthorized):
		status = http.StatusForbidden
	default:
		switch models.Kind(err) {
		case models.KindNotFound:
			status = http.StatusNotFound
		case models.KindInvalidArgument:
			status = http.StatusBadRequest
		case models.KindConflict:
			status = http.StatusConflict
		}
	}
	if status == http.StatusInternalServerError {
		logrus.WithError(err).WithField("path", c.FullPath()).Error("Request failed")
		c.JSON(status, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}
