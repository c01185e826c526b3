package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/irfndi/kdp-pulse/internal/database"
	"github.com/irfndi/kdp-pulse/internal/logging"
	"github.com/irfndi/kdp-pulse/internal/middleware"
	"github.com/irfndi/kdp-pulse/internal/models"
	"github.com/irfndi/kdp-pulse/internal/services"
	"github.com/irfndi/kdp-pulse/internal/utils"
)

// SnapshotReader reads a user's stored snapshots
type SnapshotReader interface {
	ListSnapshots(ctx context.Context, userID string, f models.SnapshotFilter) ([]models.Snapshot, error)
	GetSnapshot(ctx context.Context, userID, id string) (*models.Snapshot, error)
}

// FeedbackEventWriter appends to the durable feedback log
type FeedbackEventWriter interface {
	InsertFeedbackEvent(ctx context.Context, e *models.FeedbackEvent) error
}

// NotificationHandler serves ranked notifications and accepts feedback on them
type NotificationHandler struct {
	snapshots     SnapshotReader
	ledgers       services.FeedbackLedgerStore
	events        FeedbackEventWriter
	ranker        *services.RelevanceRanker
	snapshotLimit int
	logger        *logrus.Logger
}

func NewNotificationHandler(
	snapshots SnapshotReader,
	ledgers services.FeedbackLedgerStore,
	events FeedbackEventWriter,
	ranker *services.RelevanceRanker,
	snapshotLimit int,
	logger *logrus.Logger,
) *NotificationHandler {
	return &NotificationHandler{
		snapshots:     snapshots,
		ledgers:       ledgers,
		events:        events,
		ranker:        ranker,
		snapshotLimit: snapshotLimit,
		logger:        orDefaultLogger(logger),
	}
}

type NotificationsResponse struct {
	UserID        string                   `json:"user_id"`
	Count         int                      `json:"count"`
	Notifications []models.RankedCandidate `json:"notifications"`
}

type FeedbackResponse struct {
	Event        models.FeedbackEvent   `json:"event"`
	Notification models.RankedCandidate `json:"notification"`
}

func (h *NotificationHandler) parseRankQuery(c *gin.Context) (services.RankOptions, error) {
	opts := h.ranker.Options()
	opts.ASIN = c.Query("asin")

	if s := c.Query("status"); s != "" {
		status := models.Status(s)
		if !status.Valid() {
			return opts, utils.NewValidationErrorf("invalid status %q", s)
		}
		opts.Status = status
	}
	if s := c.Query("recommended_only"); s != "" {
		v, err := strconv.ParseBool(s)
		if err != nil {
			return opts, utils.NewValidationErrorf("invalid recommended_only %q", s)
		}
		opts.RecommendedOnly = v
	}
	if s := c.Query("limit"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v < 0 {
			return opts, utils.NewValidationErrorf("invalid limit %q", s)
		}
		opts.Limit = v
	}
	return opts, nil
}

// GetNotifications returns the user's snapshots ranked against their ledger
func (h *NotificationHandler) GetNotifications(c *gin.Context) {
	userID := c.Param("user_id")
	opts, err := h.parseRankQuery(c)
	if err != nil {
		respondError(c, h.logger, err, "invalid query")
		return
	}

	ctx := c.Request.Context()
	snapshots, err := h.snapshots.ListSnapshots(ctx, userID, models.SnapshotFilter{
		ASIN:   opts.ASIN,
		Status: opts.Status,
		Limit:  h.snapshotLimit,
	})
	if err != nil {
		respondError(c, h.logger, err, "failed to load snapshots")
		return
	}

	ledger, err := h.ledgers.Load(ctx, userID)
	if err != nil {
		respondError(c, h.logger, err, "failed to load feedback ledger")
		return
	}

	ranked := h.ranker.Rank(snapshots, ledger, opts)
	middleware.AddSpanAttribute(c, "notifications.count", len(ranked))
	c.JSON(http.StatusOK, NotificationsResponse{
		UserID:        userID,
		Count:         len(ranked),
		Notifications: ranked,
	})
}

// SubmitFeedback records one helpful/not-helpful action on a notification
// and returns it rescored under the updated ledger
func (h *NotificationHandler) SubmitFeedback(c *gin.Context) {
	userID := c.Param("user_id")
	snapshotID := c.Param("snapshot_id")
	// snapshot ids are uuids; anything else can never match a row
	if _, err := uuid.Parse(snapshotID); err != nil {
		respondError(c, h.logger, fmt.Errorf("snapshot id %q: %w", snapshotID, database.ErrNotFound), "snapshot")
		return
	}

	var req models.FeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if !utils.IsValidationError(err) {
			err = utils.NewValidationErrorf("invalid request body: %v", err)
		}
		respondError(c, h.logger, err, "invalid request body")
		return
	}

	ctx := c.Request.Context()
	snap, err := h.snapshots.GetSnapshot(ctx, userID, snapshotID)
	if err != nil {
		respondError(c, h.logger, err, "snapshot")
		return
	}

	event := models.FeedbackEvent{
		UserID:     userID,
		SnapshotID: snap.ID,
		ASIN:       snap.ASIN,
		Sign:       req.Sign,
	}
	if err := h.events.InsertFeedbackEvent(ctx, &event); err != nil {
		respondError(c, h.logger, err, "failed to store feedback")
		return
	}
	if err := h.ledgers.Record(ctx, userID, *snap, req.Sign); err != nil {
		respondError(c, h.logger, err, "failed to record feedback")
		return
	}

	ledger, err := h.ledgers.Load(ctx, userID)
	if err != nil {
		respondError(c, h.logger, err, "failed to load feedback ledger")
		return
	}
	score := h.ranker.Score(*snap, ledger, h.ranker.Options().NetImpactNudge)

	logging.LogBusinessEvent(h.logger, "feedback_recorded", map[string]interface{}{
		"user_id":     userID,
		"snapshot_id": snap.ID,
		"sign":        req.Sign,
		"score":       score,
	})

	c.JSON(http.StatusOK, FeedbackResponse{
		Event: event,
		Notification: models.RankedCandidate{
			Snapshot:    *snap,
			Score:       score,
			Recommended: score >= services.RecommendThreshold,
		},
	})
}
