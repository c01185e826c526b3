package handlers

import (
	"context"
	"math"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/irfndi/kdp-pulse/internal/models"
	"github.com/irfndi/kdp-pulse/internal/services"
	"github.com/irfndi/kdp-pulse/internal/utils"
)

// WeightsStore persists personalised driver weights
type WeightsStore interface {
	GetDriverWeights(ctx context.Context, userID string) (*models.DriverWeights, error)
	SaveDriverWeights(ctx context.Context, userID string, w models.DriverWeights) error
}

type WeightsHandler struct {
	store  WeightsStore
	logger *logrus.Logger
}

func NewWeightsHandler(store WeightsStore, logger *logrus.Logger) *WeightsHandler {
	return &WeightsHandler{store: store, logger: orDefaultLogger(logger)}
}

type WeightsResponse struct {
	UserID  string               `json:"user_id"`
	Custom  bool                 `json:"custom"`
	Weights models.DriverWeights `json:"weights"`
}

// GetWeights returns the weights the scorer will use for the user
func (h *WeightsHandler) GetWeights(c *gin.Context) {
	userID := c.Param("user_id")

	stored, err := h.store.GetDriverWeights(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.logger, err, "failed to load driver weights")
		return
	}

	resp := WeightsResponse{UserID: userID, Weights: models.DefaultDriverWeights()}
	if stored != nil {
		resp.Custom = true
		resp.Weights = services.NormalizeWeights(*stored)
	}
	c.JSON(http.StatusOK, resp)
}

// PutWeights stores the user's weights renormalised to sum to one
func (h *WeightsHandler) PutWeights(c *gin.Context) {
	userID := c.Param("user_id")

	var w models.DriverWeights
	if err := c.ShouldBindJSON(&w); err != nil {
		if !utils.IsValidationError(err) {
			err = utils.NewValidationErrorf("invalid request body: %v", err)
		}
		respondError(c, h.logger, err, "invalid request body")
		return
	}
	if sum := w.Sum(); !(sum > 0) || math.IsInf(sum, 0) {
		respondError(c, h.logger, utils.NewValidationError("weights must sum to a positive finite number"), "invalid weights")
		return
	}

	normalized := services.NormalizeWeights(w)
	if err := h.store.SaveDriverWeights(c.Request.Context(), userID, normalized); err != nil {
		respondError(c, h.logger, err, "failed to save driver weights")
		return
	}

	h.logger.WithField("user_id", userID).Info("Driver weights updated")
	c.JSON(http.StatusOK, WeightsResponse{UserID: userID, Custom: true, Weights: normalized})
}
