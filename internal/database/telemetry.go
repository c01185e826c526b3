package database

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/irfndi/kdp-pulse/internal/database"

// TracedPool wraps a DatabasePool and records one span per statement
type TracedPool struct {
	pool   DatabasePool
	tracer trace.Tracer
}

// NewTracedPool wraps pool with the global tracer provider
func NewTracedPool(pool DatabasePool) *TracedPool {
	return &TracedPool{
		pool:   pool,
		tracer: otel.Tracer(tracerName),
	}
}

func (db *TracedPool) start(ctx context.Context, op, sql string) (context.Context, trace.Span) {
	return db.tracer.Start(ctx, "db."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.statement", sql),
		),
	)
}

func finish(span trace.Span, err error) {
	if err != nil && err != pgx.ErrNoRows {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (db *TracedPool) Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	ctx, span := db.start(ctx, "query", sql)
	rows, err := db.pool.Query(ctx, sql, args...)
	finish(span, err)
	return rows, err
}

// QueryRow ends its span before the row is scanned, so scan errors are not recorded
func (db *TracedPool) QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row {
	ctx, span := db.start(ctx, "query_row", sql)
	row := db.pool.QueryRow(ctx, sql, args...)
	span.End()
	return row
}

func (db *TracedPool) Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	ctx, span := db.start(ctx, "exec", sql)
	tag, err := db.pool.Exec(ctx, sql, args...)
	if err == nil {
		span.SetAttributes(attribute.Int64("db.rows_affected", tag.RowsAffected()))
	}
	finish(span, err)
	return tag, err
}
