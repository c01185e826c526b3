package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/irfndi/kdp-pulse/internal/database"
	"github.com/irfndi/kdp-pulse/internal/middleware"
	"github.com/irfndi/kdp-pulse/internal/utils"
)

// respondError maps err onto a status code: validation failures are 400,
// missing rows 404 and everything else 500
func respondError(c *gin.Context, logger *logrus.Logger, err error, message string) {
	switch {
	case utils.IsValidationError(err):
		body := gin.H{"error": err.Error()}
		if fields := utils.FieldErrors(err); fields != nil {
			body = gin.H{"error": "invalid request", "fields": fields}
		}
		c.JSON(http.StatusBadRequest, body)
	case errors.Is(err, database.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": message + " not found"})
	default:
		middleware.RecordError(c, err, message)
		logger.WithFields(logrus.Fields{
			"path":  c.FullPath(),
			"error": err.Error(),
		}).Error(message)
		c.JSON(http.StatusInternalServerError, gin.H{"error": message})
	}
}

func orDefaultLogger(logger *logrus.Logger) *logrus.Logger {
	if logger == nil {
		return logrus.New()
	}
	return logger
}
