package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrDeliverySuspended is returned while the breaker is open
var ErrDeliverySuspended = errors.New("digest delivery suspended")

// BreakerState is the state of a DeliveryBreaker
type BreakerState int

const (
	BreakerClosed BreakerState = iota
	BreakerOpen
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// DeliveryBreakerConfig holds configuration for the delivery breaker
type DeliveryBreakerConfig struct {
	FailureThreshold int           `json:"failure_threshold"` // consecutive failures before opening
	CoolDown         time.Duration `json:"cool_down"`         // time open before a trial send
}

// DeliveryBreakerStats holds counters for the delivery breaker
type DeliveryBreakerStats struct {
	Attempts     int64     `json:"attempts"`
	Delivered    int64     `json:"delivered"`
	Failed       int64     `json:"failed"`
	Rejected     int64     `json:"rejected"`
	StateChanges int64     `json:"state_changes"`
	LastFailure  time.Time `json:"last_failure"`
}

// DeliveryBreaker stops hammering the messaging API after repeated failures.
// While open every send is rejected; after CoolDown a single trial send
// decides whether to close again.
type DeliveryBreaker struct {
	cfg    DeliveryBreakerConfig
	logger *logrus.Logger
	now    func() time.Time

	mu       sync.Mutex
	state    BreakerState
	failures int
	openedAt time.Time
	trialing bool
	stats    DeliveryBreakerStats
}

// NewDeliveryBreaker creates a closed breaker
func NewDeliveryBreaker(cfg DeliveryBreakerConfig, logger *logrus.Logger) *DeliveryBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.CoolDown <= 0 {
		cfg.CoolDown = 5 * time.Minute
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &DeliveryBreaker{cfg: cfg, logger: logger, now: time.Now}
}

// Execute runs fn unless the breaker is open. fn runs without the lock held.
func (b *DeliveryBreaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if !b.allow() {
		return ErrDeliverySuspended
	}
	err := fn(ctx)
	b.record(err)
	return err
}

func (b *DeliveryBreaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.stats.Attempts++
	switch b.state {
	case BreakerOpen:
		if b.now().Sub(b.openedAt) < b.cfg.CoolDown {
			b.stats.Rejected++
			return false
		}
		b.setState(BreakerHalfOpen)
		b.trialing = true
		return true
	case BreakerHalfOpen:
		if b.trialing {
			b.stats.Rejected++
			return false
		}
		b.trialing = true
		return true
	default:
		return true
	}
}

func (b *DeliveryBreaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.trialing = false
	if err == nil {
		b.stats.Delivered++
		b.failures = 0
		b.setState(BreakerClosed)
		return
	}

	b.stats.Failed++
	b.stats.LastFailure = b.now()
	b.failures++
	if b.state == BreakerHalfOpen || b.failures >= b.cfg.FailureThreshold {
		b.openedAt = b.now()
		b.setState(BreakerOpen)
	}
}

func (b *DeliveryBreaker) setState(s BreakerState) {
	if b.state == s {
		return
	}
	old := b.state
	b.state = s
	b.stats.StateChanges++
	b.logger.WithFields(logrus.Fields{
		"old_state": old.String(),
		"new_state": s.String(),
		"failures":  b.failures,
	}).Info("Digest delivery breaker state changed")
}

// State returns the current breaker state
func (b *DeliveryBreaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Stats returns a copy of the counters
func (b *DeliveryBreaker) Stats() DeliveryBreakerStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stats
}

// Reset closes the breaker and clears the failure count
func (b *DeliveryBreaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.trialing = false
	b.setState(BreakerClosed)
}
