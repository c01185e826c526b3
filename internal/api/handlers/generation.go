package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/irfndi/kdp-pulse/internal/services"
)

// GenerationRunner produces fresh snapshots on demand
type GenerationRunner interface {
	RunForUser(ctx context.Context, userID string, now time.Time) (*services.GenerationReport, error)
}

type GenerationHandler struct {
	runner GenerationRunner
	now    func() time.Time
	logger *logrus.Logger
}

func NewGenerationHandler(runner GenerationRunner, logger *logrus.Logger) *GenerationHandler {
	return &GenerationHandler{
		runner: runner,
		now:    time.Now,
		logger: orDefaultLogger(logger),
	}
}

// GenerateSnapshots scores every tracked listing of the user right now
func (h *GenerationHandler) GenerateSnapshots(c *gin.Context) {
	userID := c.Param("user_id")

	report, err := h.runner.RunForUser(c.Request.Context(), userID, h.now())
	if err != nil {
		respondError(c, h.logger, err, "user")
		return
	}

	h.logger.WithFields(logrus.Fields{
		"user_id":   userID,
		"processed": report.Processed,
		"failed":    len(report.Failed),
	}).Info("On-demand snapshot generation completed")
	c.JSON(http.StatusOK, report)
}
