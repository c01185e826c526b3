package database

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
)

// Schema is applied in order by Migrate. Every statement is idempotent.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id               TEXT PRIMARY KEY,
		email            TEXT NOT NULL DEFAULT '',
		telegram_chat_id BIGINT,
		created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS listings (
		id         BIGSERIAL PRIMARY KEY,
		user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		asin       TEXT NOT NULL,
		country    TEXT NOT NULL DEFAULT 'US',
		title      TEXT NOT NULL DEFAULT '',
		page_count INTEGER,
		price      DOUBLE PRECISION,
		interior   TEXT NOT NULL DEFAULT 'black',
		tracked    BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (user_id, asin, country)
	)`,
	`CREATE TABLE IF NOT EXISTS listing_samples (
		id           BIGSERIAL PRIMARY KEY,
		listing_id   BIGINT NOT NULL REFERENCES listings(id) ON DELETE CASCADE,
		captured_at  TIMESTAMPTZ NOT NULL,
		bsr          DOUBLE PRECISION,
		price        DOUBLE PRECISION,
		review_count DOUBLE PRECISION
	)`,
	`CREATE INDEX IF NOT EXISTS idx_listing_samples_listing_time ON listing_samples (listing_id, captured_at)`,
	`CREATE TABLE IF NOT EXISTS listing_snapshots (
		id           UUID PRIMARY KEY,
		user_id      TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		listing_id   BIGINT NOT NULL REFERENCES listings(id) ON DELETE CASCADE,
		asin         TEXT NOT NULL,
		status       TEXT NOT NULL,
		net_impact   DOUBLE PRECISION NOT NULL,
		sentiment    TEXT NOT NULL,
		drivers      TEXT[] NOT NULL DEFAULT '{}',
		confidence   TEXT NOT NULL,
		details      JSONB NOT NULL,
		algo_version TEXT NOT NULL,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_listing_snapshots_user_time ON listing_snapshots (user_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS daily_rollups (
		user_id        TEXT NOT NULL,
		asin           TEXT NOT NULL,
		day            DATE NOT NULL,
		better         INTEGER NOT NULL DEFAULT 0,
		worse          INTEGER NOT NULL DEFAULT 0,
		stable         INTEGER NOT NULL DEFAULT 0,
		net_impact_avg DOUBLE PRECISION NOT NULL DEFAULT 0,
		PRIMARY KEY (user_id, asin, day)
	)`,
	`CREATE TABLE IF NOT EXISTS user_driver_weights (
		user_id    TEXT PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
		reviews    DOUBLE PRECISION NOT NULL,
		bsr        DOUBLE PRECISION NOT NULL,
		royalty    DOUBLE PRECISION NOT NULL,
		price      DOUBLE PRECISION NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS feedback_events (
		id          BIGSERIAL PRIMARY KEY,
		user_id     TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		snapshot_id UUID NOT NULL REFERENCES listing_snapshots(id) ON DELETE CASCADE,
		asin        TEXT NOT NULL,
		sign        TEXT NOT NULL CHECK (sign IN ('positive', 'negative')),
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
}

// Migrate applies Schema to the database
func Migrate(ctx context.Context, pool DatabasePool) error {
	for i, stmt := range Schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement %d: %w", i, err)
		}
	}
	logrus.WithField("statements", len(Schema)).Info("Database schema is up to date")
	return nil
}
