package cache

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/irfndi/kdp-pulse/internal/models"
)

const (
	signPos = "pos"
	signNeg = "neg"
)

// LedgerStoreStats tracks store usage
type LedgerStoreStats struct {
	Loads   int64 `json:"loads"`
	Records int64 `json:"records"`
	Errors  int64 `json:"errors"`
	mu      sync.RWMutex
}

// RedisFeedbackStore keeps one hash per user. Each field is
// "<dimension>:<key>:<pos|neg>" holding a vote count.
type RedisFeedbackStore struct {
	redis  *redis.Client
	prefix string
	stats  *LedgerStoreStats
	logger *logrus.Logger
}

// NewRedisFeedbackStore creates a Redis-backed feedback ledger store
func NewRedisFeedbackStore(redisClient *redis.Client, logger *logrus.Logger) *RedisFeedbackStore {
	if logger == nil {
		logger = logrus.New()
	}
	return &RedisFeedbackStore{
		redis:  redisClient,
		prefix: "feedback_ledger:",
		stats:  &LedgerStoreStats{},
		logger: logger,
	}
}

func (s *RedisFeedbackStore) key(userID string) string {
	return s.prefix + userID
}

func ledgerField(v models.LedgerVote, sign models.FeedbackSign) string {
	suffix := signNeg
	if sign == models.FeedbackPositive {
		suffix = signPos
	}
	return string(v.Dimension) + ":" + v.Key + ":" + suffix
}

// Load returns the user's ledger. A user without feedback gets an empty ledger.
func (s *RedisFeedbackStore) Load(ctx context.Context, userID string) (*models.FeedbackLedger, error) {
	fields, err := s.redis.HGetAll(ctx, s.key(userID)).Result()
	if err != nil {
		s.countError()
		return nil, fmt.Errorf("failed to load feedback ledger: %w", err)
	}

	ledger := models.NewFeedbackLedger()
	for field, raw := range fields {
		n, err := strconv.Atoi(raw)
		if err != nil {
			s.logger.WithFields(logrus.Fields{
				"user_id": userID,
				"field":   field,
			}).Warn("Skipping malformed feedback ledger field")
			continue
		}
		applyField(ledger, field, n)
	}

	s.stats.mu.Lock()
	s.stats.Loads++
	s.stats.mu.Unlock()
	return ledger, nil
}

func applyField(ledger *models.FeedbackLedger, field string, n int) {
	first := strings.Index(field, ":")
	last := strings.LastIndex(field, ":")
	if first <= 0 || last <= first {
		return
	}
	dim, key, sign := field[:first], field[first+1:last], field[last+1:]

	m := ledger.Tallies(models.LedgerDimension(dim))
	if m == nil {
		return
	}

	t := m[key]
	switch sign {
	case signPos:
		t.Pos = n
	case signNeg:
		t.Neg = n
	default:
		return
	}
	m[key] = t
}

// Record applies one feedback action. All tallies are incremented in a
// single MULTI/EXEC so concurrent actions never lose votes.
func (s *RedisFeedbackStore) Record(ctx context.Context, userID string, snap models.Snapshot, sign models.FeedbackSign) error {
	if !sign.Valid() {
		return fmt.Errorf("invalid feedback sign %q", sign)
	}

	key := s.key(userID)
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, v := range models.FeedbackVotes(snap) {
			pipe.HIncrBy(ctx, key, ledgerField(v, sign), 1)
		}
		return nil
	})
	if err != nil {
		s.countError()
		return fmt.Errorf("failed to record feedback: %w", err)
	}

	s.stats.mu.Lock()
	s.stats.Records++
	s.stats.mu.Unlock()

	s.logger.WithFields(logrus.Fields{
		"user_id":     userID,
		"snapshot_id": snap.ID,
		"sign":        sign,
	}).Debug("Recorded feedback")
	return nil
}

// Reset drops the user's ledger
func (s *RedisFeedbackStore) Reset(ctx context.Context, userID string) error {
	if err := s.redis.Del(ctx, s.key(userID)).Err(); err != nil {
		s.countError()
		return fmt.Errorf("failed to reset feedback ledger: %w", err)
	}
	return nil
}

// GetStats returns a copy of the usage counters
func (s *RedisFeedbackStore) GetStats() LedgerStoreStats {
	s.stats.mu.RLock()
	defer s.stats.mu.RUnlock()
	return LedgerStoreStats{
		Loads:   s.stats.Loads,
		Records: s.stats.Records,
		Errors:  s.stats.Errors,
	}
}

func (s *RedisFeedbackStore) countError() {
	s.stats.mu.Lock()
	s.stats.Errors++
	s.stats.mu.Unlock()
}
