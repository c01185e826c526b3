package handlers

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/irfndi/kdp-pulse/internal/models"
	"github.com/irfndi/kdp-pulse/internal/services"
)

type MockSnapshotReader struct {
	mock.Mock
}

func (m *MockSnapshotReader) ListSnapshots(ctx context.Context, userID string, f models.SnapshotFilter) ([]models.Snapshot, error) {
	args := m.Called(ctx, userID, f)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Snapshot), args.Error(1)
}

func (m *MockSnapshotReader) GetSnapshot(ctx context.Context, userID, id string) (*models.Snapshot, error) {
	args := m.Called(ctx, userID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Snapshot), args.Error(1)
}

type MockLedgerStore struct {
	mock.Mock
}

func (m *MockLedgerStore) Load(ctx context.Context, userID string) (*models.FeedbackLedger, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.FeedbackLedger), args.Error(1)
}

func (m *MockLedgerStore) Record(ctx context.Context, userID string, s models.Snapshot, sign models.FeedbackSign) error {
	args := m.Called(ctx, userID, s, sign)
	return args.Error(0)
}

type MockEventWriter struct {
	mock.Mock
}

func (m *MockEventWriter) InsertFeedbackEvent(ctx context.Context, e *models.FeedbackEvent) error {
	args := m.Called(ctx, e)
	return args.Error(0)
}

type MockWeightsStore struct {
	mock.Mock
}

func (m *MockWeightsStore) GetDriverWeights(ctx context.Context, userID string) (*models.DriverWeights, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.DriverWeights), args.Error(1)
}

func (m *MockWeightsStore) SaveDriverWeights(ctx context.Context, userID string, w models.DriverWeights) error {
	args := m.Called(ctx, userID, w)
	return args.Error(0)
}

type MockGenerationRunner struct {
	mock.Mock
}

func (m *MockGenerationRunner) RunForUser(ctx context.Context, userID string, now time.Time) (*services.GenerationReport, error) {
	args := m.Called(ctx, userID, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.GenerationReport), args.Error(1)
}

type stubChecker struct {
	err error
}

func (s stubChecker) HealthCheck(context.Context) error { return s.err }
