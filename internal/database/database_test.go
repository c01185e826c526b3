package database

import (
	"context"
	"errors"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/irfndi/kdp-pulse/internal/config"
)

func TestPostgresDB_Close_NilPool(t *testing.T) {
	db := &PostgresDB{Pool: nil}

	assert.NotPanics(t, func() {
		db.Close()
	})
}

func TestRedisClient_Close_NilClient(t *testing.T) {
	client := &RedisClient{Client: nil}

	assert.NotPanics(t, func() {
		client.Close()
	})
}

func TestDSN(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.DatabaseConfig
		want string
	}{
		{
			name: "database url wins",
			cfg: config.DatabaseConfig{
				Host:        "ignored",
				DatabaseURL: "postgres://kdp:secret@db:5432/kdp?sslmode=require",
			},
			want: "postgres://kdp:secret@db:5432/kdp?sslmode=require",
		},
		{
			name: "built from components",
			cfg: config.DatabaseConfig{
				Host:     "localhost",
				Port:     5432,
				User:     "postgres",
				Password: "postgres",
				DBName:   "kdp_pulse",
				SSLMode:  "disable",
			},
			want: "host=localhost port=5432 user=postgres password=postgres dbname=kdp_pulse sslmode=disable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DSN(&tt.cfg))
		})
	}
}

func TestNewPostgresConnection_InvalidConfig(t *testing.T) {
	cfg := &config.DatabaseConfig{DatabaseURL: "postgres://%zz"}

	db, err := NewPostgresConnection(cfg)
	assert.Error(t, err)
	assert.Nil(t, db)
	assert.Contains(t, err.Error(), "failed to parse database config")
}

func TestNewRedisConnection_Unreachable(t *testing.T) {
	cfg := config.RedisConfig{Host: "127.0.0.1", Port: 1}

	client, err := NewRedisConnection(cfg)
	assert.Error(t, err)
	assert.Nil(t, client)
	assert.Contains(t, err.Error(), "failed to connect to Redis")
}

func TestMigrate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	for range Schema {
		mock.ExpectExec("CREATE").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	}

	require.NoError(t, Migrate(context.Background(), mock))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrate_StopsOnError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS users").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS listings").WillReturnError(errors.New("permission denied"))

	err = Migrate(context.Background(), mock)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "statement 1")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTracedPool_DelegatesToPool(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	traced := NewTracedPool(mock)

	mock.ExpectExec("DELETE FROM feedback_events").WillReturnResult(pgxmock.NewResult("DELETE", 3))
	tag, err := traced.Exec(context.Background(), "DELETE FROM feedback_events")
	require.NoError(t, err)
	assert.Equal(t, int64(3), tag.RowsAffected())

	mock.ExpectQuery("SELECT 1").WillReturnError(errors.New("boom"))
	_, err = traced.Query(context.Background(), "SELECT 1")
	assert.EqualError(t, err, "boom")

	mock.ExpectQuery("SELECT 2").WillReturnRows(pgxmock.NewRows([]string{"n"}).AddRow(2))
	var n int
	require.NoError(t, traced.QueryRow(context.Background(), "SELECT 2").Scan(&n))
	assert.Equal(t, 2, n)

	assert.NoError(t, mock.ExpectationsWereMet())
}
