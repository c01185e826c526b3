package services

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/irfndi/kdp-pulse/internal/models"
)

type mockSampleReader struct{ mock.Mock }

func (m *mockSampleReader) GetSamples(ctx context.Context, listingID int64, from, to time.Time) ([]models.Sample, error) {
	args := m.Called(ctx, listingID, from, to)
	samples, _ := args.Get(0).([]models.Sample)
	return samples, args.Error(1)
}

type mockListingCatalog struct{ mock.Mock }

func (m *mockListingCatalog) ListTrackedListings(ctx context.Context, userID string) ([]models.Listing, error) {
	args := m.Called(ctx, userID)
	listings, _ := args.Get(0).([]models.Listing)
	return listings, args.Error(1)
}

type mockUserDirectory struct{ mock.Mock }

func (m *mockUserDirectory) ListUsers(ctx context.Context) ([]models.User, error) {
	args := m.Called(ctx)
	users, _ := args.Get(0).([]models.User)
	return users, args.Error(1)
}

func (m *mockUserDirectory) GetUser(ctx context.Context, userID string) (*models.User, error) {
	args := m.Called(ctx, userID)
	user, _ := args.Get(0).(*models.User)
	return user, args.Error(1)
}

func (m *mockUserDirectory) GetDriverWeights(ctx context.Context, userID string) (*models.DriverWeights, error) {
	args := m.Called(ctx, userID)
	w, _ := args.Get(0).(*models.DriverWeights)
	return w, args.Error(1)
}

type mockSnapshotStore struct{ mock.Mock }

func (m *mockSnapshotStore) InsertSnapshot(ctx context.Context, s *models.Snapshot) error {
	return m.Called(ctx, s).Error(0)
}

func (m *mockSnapshotStore) UpsertDailyRollup(ctx context.Context, r models.DailyRollup) error {
	return m.Called(ctx, r).Error(0)
}

type mockLedgerStore struct{ mock.Mock }

func (m *mockLedgerStore) Load(ctx context.Context, userID string) (*models.FeedbackLedger, error) {
	args := m.Called(ctx, userID)
	l, _ := args.Get(0).(*models.FeedbackLedger)
	return l, args.Error(1)
}

func (m *mockLedgerStore) Record(ctx context.Context, userID string, s models.Snapshot, sign models.FeedbackSign) error {
	return m.Called(ctx, userID, s, sign).Error(0)
}

type mockDigestSender struct{ mock.Mock }

func (m *mockDigestSender) SendDigest(ctx context.Context, user models.User, candidates []models.RankedCandidate) error {
	return m.Called(ctx, user, candidates).Error(0)
}

type generatorFixture struct {
	samples  *mockSampleReader
	listings *mockListingCatalog
	users    *mockUserDirectory
	store    *mockSnapshotStore
	gen      *SnapshotGenerator
}

func newGeneratorFixture(cfg SnapshotGeneratorConfig) *generatorFixture {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	f := &generatorFixture{
		samples:  new(mockSampleReader),
		listings: new(mockListingCatalog),
		users:    new(mockUserDirectory),
		store:    new(mockSnapshotStore),
	}
	f.gen = NewSnapshotGenerator(cfg, f.samples, f.listings, f.users, f.store, logger)
	return f
}

func testGeneratorConfig() SnapshotGeneratorConfig {
	cfg := DefaultSnapshotGeneratorConfig()
	cfg.ReadsPerSecond = 0
	cfg.NetImpactNudge = false
	return cfg
}

func snapshotFor(asin string) interface{} {
	return mock.MatchedBy(func(s *models.Snapshot) bool { return s.ASIN == asin })
}

func rollupFor(asin string) interface{} {
	return mock.MatchedBy(func(r models.DailyRollup) bool { return r.ASIN == asin })
}

func TestNewSnapshotGenerator_Defaults(t *testing.T) {
	gen := NewSnapshotGenerator(SnapshotGeneratorConfig{}, nil, nil, nil, nil, nil)

	assert.Equal(t, 30, gen.cfg.WindowDays)
	assert.Equal(t, 8, gen.cfg.MaxConcurrency)
	assert.Equal(t, 20*time.Second, gen.cfg.ListingTimeout)
	assert.Equal(t, DefaultAlgoVersion, gen.cfg.AlgoVersion)
	assert.Equal(t, "0 6 * * *", gen.cfg.Schedule)
	assert.Equal(t, "UTC", gen.cfg.Timezone)
	assert.NotNil(t, gen.logger)
	assert.NotNil(t, gen.limiter)
	assert.False(t, gen.IsRunning())
	assert.Nil(t, gen.LastReport())
}

func TestSnapshotGenerator_Run_IsolatesFailures(t *testing.T) {
	f := newGeneratorFixture(testGeneratorConfig())
	now := time.Date(2024, 6, 1, 6, 0, 0, 0, time.UTC)

	f.users.On("ListUsers", mock.Anything).Return([]models.User{{ID: "u1"}, {ID: "u2"}, {ID: "u3"}}, nil)
	f.users.On("GetDriverWeights", mock.Anything, "u1").Return(&models.DriverWeights{Reviews: 1, BSR: 1}, nil)
	f.users.On("GetDriverWeights", mock.Anything, "u2").Return(nil, errors.New("weights unavailable"))
	f.users.On("GetDriverWeights", mock.Anything, "u3").Return(nil, nil)

	f.listings.On("ListTrackedListings", mock.Anything, "u1").Return([]models.Listing{
		{ID: 1, UserID: "u1", ASIN: "B01", Country: "US"},
		{ID: 2, UserID: "u1", ASIN: "B02", Country: "US"},
	}, nil)
	f.listings.On("ListTrackedListings", mock.Anything, "u2").Return([]models.Listing{
		{ID: 3, UserID: "u2", ASIN: "B03", Country: "DE"},
	}, nil)
	f.listings.On("ListTrackedListings", mock.Anything, "u3").Return(nil, errors.New("catalog down"))

	f.samples.On("GetSamples", mock.Anything, int64(1), mock.Anything, mock.Anything).Return(improvingSamples(now), nil)
	f.samples.On("GetSamples", mock.Anything, int64(2), mock.Anything, mock.Anything).Return(nil, errors.New("read timeout"))
	f.samples.On("GetSamples", mock.Anything, int64(3), mock.Anything, mock.Anything).Return(nil, nil)

	f.store.On("InsertSnapshot", mock.Anything, snapshotFor("B01")).Return(nil)
	f.store.On("UpsertDailyRollup", mock.Anything, rollupFor("B01")).Return(nil)
	f.store.On("InsertSnapshot", mock.Anything, snapshotFor("B03")).Return(nil)
	f.store.On("UpsertDailyRollup", mock.Anything, rollupFor("B03")).Return(errors.New("rollup conflict"))

	report, err := f.gen.Run(context.Background(), now)
	require.NoError(t, err)

	assert.Equal(t, 3, report.Users)
	assert.Equal(t, 1, report.Processed)
	require.Len(t, report.Failed, 3)
	assert.Equal(t, now, report.StartedAt)
	assert.GreaterOrEqual(t, report.Duration, time.Duration(0))

	byASIN := make(map[string]FailedListing)
	for _, fl := range report.Failed {
		byASIN[fl.ASIN] = fl
	}
	assert.Contains(t, byASIN["B02"].Error, "read timeout")
	assert.Equal(t, int64(2), byASIN["B02"].ListingID)
	assert.Contains(t, byASIN["B03"].Error, "rollup conflict")
	assert.Equal(t, "u3", byASIN[""].UserID)
	assert.Contains(t, byASIN[""].Error, "catalog down")

	f.store.AssertNotCalled(t, "InsertSnapshot", mock.Anything, snapshotFor("B02"))
	assert.Same(t, report, f.gen.LastReport())
}

func TestSnapshotGenerator_Run_PersistsScoredSnapshot(t *testing.T) {
	f := newGeneratorFixture(testGeneratorConfig())
	now := time.Date(2024, 6, 1, 6, 0, 0, 0, time.UTC)
	prevWindow, currWindow := ComparisonWindows(now, 30)

	f.users.On("ListUsers", mock.Anything).Return([]models.User{{ID: "u1"}}, nil)
	f.users.On("GetDriverWeights", mock.Anything, "u1").Return(nil, nil)
	f.listings.On("ListTrackedListings", mock.Anything, "u1").Return([]models.Listing{{ID: 1, UserID: "u1", ASIN: "B01", Country: "US"}}, nil)
	f.samples.On("GetSamples", mock.Anything, int64(1), prevWindow.Start, prevWindow.End).Return(improvingSamples(now), nil).Once()
	f.samples.On("GetSamples", mock.Anything, int64(1), currWindow.Start, currWindow.End).Return(improvingSamples(now), nil).Once()

	var stored *models.Snapshot
	f.store.On("InsertSnapshot", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		stored = args.Get(1).(*models.Snapshot)
	}).Return(nil)
	expected := BuildSnapshot(SnapshotInput{
		Listing: models.Listing{ID: 1, ASIN: "B01", Country: "US"},
		Samples: improvingSamples(now),
		Prev:    prevWindow,
		Curr:    currWindow,
		Weights: models.DefaultDriverWeights(),
		Now:     now,
	})
	f.store.On("UpsertDailyRollup", mock.Anything, models.DailyRollup{
		UserID:    "u1",
		ASIN:      "B01",
		Date:      time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		Better:    1,
		NetImpact: expected.NetImpact,
	}).Return(nil)

	report, err := f.gen.Run(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Processed)
	assert.Empty(t, report.Failed)

	require.NotNil(t, stored)
	assert.Equal(t, "u1", stored.UserID)
	assert.Equal(t, models.StatusBetter, stored.Status)
	assert.Equal(t, DefaultAlgoVersion, stored.AlgoVersion)
	assert.True(t, stored.CreatedAt.Equal(now))
	f.samples.AssertExpectations(t)
	f.store.AssertExpectations(t)
}

func TestSnapshotGenerator_Run_ListUsersError(t *testing.T) {
	f := newGeneratorFixture(testGeneratorConfig())
	f.users.On("ListUsers", mock.Anything).Return(nil, errors.New("connection refused"))

	report, err := f.gen.Run(context.Background(), time.Now())

	assert.Nil(t, report)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to list users")
	f.listings.AssertNotCalled(t, "ListTrackedListings", mock.Anything, mock.Anything)
}

func TestSnapshotGenerator_Run_CanceledContext(t *testing.T) {
	f := newGeneratorFixture(testGeneratorConfig())
	f.users.On("ListUsers", mock.Anything).Return([]models.User{{ID: "u1"}}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := f.gen.Run(ctx, time.Now())

	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, report)
	assert.Equal(t, 0, report.Users)
	f.listings.AssertNotCalled(t, "ListTrackedListings", mock.Anything, mock.Anything)
}

func TestSnapshotGenerator_RunForUser(t *testing.T) {
	t.Run("single user", func(t *testing.T) {
		f := newGeneratorFixture(testGeneratorConfig())
		now := time.Date(2024, 6, 1, 6, 0, 0, 0, time.UTC)

		f.users.On("GetUser", mock.Anything, "u1").Return(&models.User{ID: "u1"}, nil)
		f.users.On("GetDriverWeights", mock.Anything, "u1").Return(nil, nil)
		f.listings.On("ListTrackedListings", mock.Anything, "u1").Return([]models.Listing{{ID: 9, ASIN: "B09"}}, nil)
		f.samples.On("GetSamples", mock.Anything, int64(9), mock.Anything, mock.Anything).Return(nil, nil)
		f.store.On("InsertSnapshot", mock.Anything, snapshotFor("B09")).Return(nil)
		f.store.On("UpsertDailyRollup", mock.Anything, rollupFor("B09")).Return(nil)

		report, err := f.gen.RunForUser(context.Background(), "u1", now)
		require.NoError(t, err)
		assert.Equal(t, 1, report.Users)
		assert.Equal(t, 1, report.Processed)
		assert.Empty(t, report.Failed)
		f.users.AssertNotCalled(t, "ListUsers", mock.Anything)
	})

	t.Run("unknown user", func(t *testing.T) {
		f := newGeneratorFixture(testGeneratorConfig())
		notFound := errors.New("not found")
		f.users.On("GetUser", mock.Anything, "ghost").Return(nil, notFound)

		report, err := f.gen.RunForUser(context.Background(), "ghost", time.Now())
		assert.Nil(t, report)
		assert.ErrorIs(t, err, notFound)
	})
}

func TestSnapshotGenerator_Digest(t *testing.T) {
	now := time.Date(2024, 6, 1, 6, 0, 0, 0, time.UTC)
	chatID := int64(4242)

	setup := func(user models.User) (*generatorFixture, *mockLedgerStore, *mockDigestSender) {
		f := newGeneratorFixture(testGeneratorConfig())
		ledgers := new(mockLedgerStore)
		sender := new(mockDigestSender)
		f.gen.WithDigest(ledgers, sender)

		f.users.On("ListUsers", mock.Anything).Return([]models.User{user}, nil)
		f.users.On("GetDriverWeights", mock.Anything, user.ID).Return(nil, nil)
		f.listings.On("ListTrackedListings", mock.Anything, user.ID).Return([]models.Listing{
			{ID: 1, ASIN: "B01"},
			{ID: 2, ASIN: "B02"},
		}, nil)
		f.samples.On("GetSamples", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil, nil)
		f.store.On("InsertSnapshot", mock.Anything, mock.Anything).Return(nil)
		f.store.On("UpsertDailyRollup", mock.Anything, mock.Anything).Return(nil)
		return f, ledgers, sender
	}

	t.Run("sends only recommended snapshots", func(t *testing.T) {
		user := models.User{ID: "u1", TelegramChatID: &chatID}
		f, ledgers, sender := setup(user)

		// low confidence halves feedback, so five asin upvotes land exactly on the threshold
		ledger := models.NewFeedbackLedger()
		ledger.ASIN["B01"] = models.Tally{Pos: 5}
		ledgers.On("Load", mock.Anything, "u1").Return(ledger, nil)

		var delivered []models.RankedCandidate
		sender.On("SendDigest", mock.Anything, user, mock.Anything).Run(func(args mock.Arguments) {
			delivered = args.Get(2).([]models.RankedCandidate)
		}).Return(nil)

		_, err := f.gen.Run(context.Background(), now)
		require.NoError(t, err)

		require.Len(t, delivered, 1)
		assert.Equal(t, "B01", delivered[0].ASIN)
		assert.Equal(t, RecommendThreshold, delivered[0].Score)
		assert.True(t, delivered[0].Recommended)
	})

	t.Run("nothing recommended", func(t *testing.T) {
		user := models.User{ID: "u1", TelegramChatID: &chatID}
		f, ledgers, sender := setup(user)
		ledgers.On("Load", mock.Anything, "u1").Return(models.NewFeedbackLedger(), nil)

		_, err := f.gen.Run(context.Background(), now)
		require.NoError(t, err)
		sender.AssertNotCalled(t, "SendDigest", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("user without chat", func(t *testing.T) {
		f, ledgers, sender := setup(models.User{ID: "u1"})

		_, err := f.gen.Run(context.Background(), now)
		require.NoError(t, err)
		ledgers.AssertNotCalled(t, "Load", mock.Anything, mock.Anything)
		sender.AssertNotCalled(t, "SendDigest", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("delivery failure does not fail the run", func(t *testing.T) {
		user := models.User{ID: "u1", TelegramChatID: &chatID}
		f, ledgers, sender := setup(user)

		ledger := models.NewFeedbackLedger()
		ledger.ASIN["B02"] = models.Tally{Pos: 9}
		ledgers.On("Load", mock.Anything, "u1").Return(ledger, nil)
		sender.On("SendDigest", mock.Anything, user, mock.Anything).Return(errors.New("telegram 429"))

		report, err := f.gen.Run(context.Background(), now)
		require.NoError(t, err)
		assert.Equal(t, 2, report.Processed)
		assert.Empty(t, report.Failed)
		sender.AssertNumberOfCalls(t, "SendDigest", 1)
	})
}

func TestSnapshotGenerator_StartStop(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		f := newGeneratorFixture(testGeneratorConfig())
		require.NoError(t, f.gen.Start())
		assert.False(t, f.gen.IsRunning())
		f.gen.Stop()
	})

	t.Run("enabled", func(t *testing.T) {
		cfg := testGeneratorConfig()
		cfg.Enabled = true
		cfg.Schedule = "@every 1h"
		f := newGeneratorFixture(cfg)

		require.NoError(t, f.gen.Start())
		assert.True(t, f.gen.IsRunning())
		assert.Error(t, f.gen.Start())

		f.gen.Stop()
		assert.False(t, f.gen.IsRunning())
		f.gen.Stop()
	})

	t.Run("restart after stop gets a live context", func(t *testing.T) {
		cfg := testGeneratorConfig()
		cfg.Enabled = true
		cfg.Schedule = "@every 1h"
		f := newGeneratorFixture(cfg)

		require.NoError(t, f.gen.Start())
		stopped := f.gen.runContext()
		f.gen.Stop()
		assert.ErrorIs(t, stopped.Err(), context.Canceled)

		require.NoError(t, f.gen.Start())
		defer f.gen.Stop()
		assert.NoError(t, f.gen.runContext().Err())
	})

	t.Run("invalid schedule", func(t *testing.T) {
		cfg := testGeneratorConfig()
		cfg.Enabled = true
		cfg.Schedule = "every tuesday"
		f := newGeneratorFixture(cfg)

		err := f.gen.Start()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to schedule snapshot generation")
		assert.False(t, f.gen.IsRunning())
	})

	t.Run("invalid timezone", func(t *testing.T) {
		cfg := testGeneratorConfig()
		cfg.Enabled = true
		cfg.Timezone = "Mars/Olympus_Mons"
		f := newGeneratorFixture(cfg)

		err := f.gen.Start()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to load timezone")
	})
}

func TestSnapshotGenerator_ScheduledRun(t *testing.T) {
	cfg := testGeneratorConfig()
	cfg.Enabled = true
	cfg.Schedule = "@every 1h"
	f := newGeneratorFixture(cfg)
	f.gen.logger.SetOutput(io.Discard)
	f.gen.logger.SetLevel(logrus.InfoLevel)
	hook := logtest.NewLocal(f.gen.logger)

	f.users.On("ListUsers", mock.MatchedBy(func(ctx context.Context) bool { return ctx.Err() == nil })).
		Return([]models.User{}, nil)

	require.NoError(t, f.gen.Start())
	f.gen.Stop()
	require.NoError(t, f.gen.Start())
	defer f.gen.Stop()

	f.gen.scheduledRun()

	f.users.AssertNumberOfCalls(t, "ListUsers", 1)
	var event *logrus.Entry
	for _, e := range hook.AllEntries() {
		if e.Data["event_type"] == "generation_run" {
			event = e
		}
	}
	require.NotNil(t, event)
	assert.Equal(t, "business", event.Data["event"])
	assert.Equal(t, 0, event.Data["details"].(map[string]interface{})["users"])
	require.NotNil(t, f.gen.LastReport())
}
