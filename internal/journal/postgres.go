package journal

import (
	"context"
	"time"

	"freqtrade-mcp/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresJournal appends entries to the mcp_journal table.
type PostgresJournal struct {
	pool   PgxPool
	tracer trace.Tracer
}

func NewPostgresJournal(pool PgxPool, tracer trace.Tracer) *PostgresJournal {
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("journal")
	}
	return &PostgresJournal{pool: pool, tracer: tracer}
}

func (j *PostgresJournal) RunMigrations(ctx context.Context) error {
	_, err := j.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS mcp_journal (
			id          UUID PRIMARY KEY,
			tool        TEXT NOT NULL,
			mode        TEXT NOT NULL,
			pair        TEXT NOT NULL DEFAULT '',
			side        TEXT NOT NULL DEFAULT '',
			amount      DOUBLE PRECISION NOT NULL DEFAULT 0,
			outcome     TEXT NOT NULL,
			error_text  TEXT NOT NULL DEFAULT '',
			created_at  TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_mcp_journal_created_at ON mcp_journal (created_at DESC);
	`)
	return err
}

func (j *PostgresJournal) Record(ctx context.Context, entry domain.JournalEntry) error {
	_, span := j.tracer.Start(ctx, "journal.postgres.record")
	defer span.End()

	_, err := j.pool.Exec(ctx,
		`INSERT INTO mcp_journal (id, tool, mode, pair, side, amount, outcome, error_text, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		entry.ID, entry.Tool, string(entry.Mode), entry.Pair, entry.Side, entry.Amount,
		string(entry.Outcome), entry.Error, entry.Timestamp,
	)
	return err
}

func (j *PostgresJournal) Recent(ctx context.Context, limit int) ([]domain.JournalEntry, error) {
	_, span := j.tracer.Start(ctx, "journal.postgres.recent")
	defer span.End()

	rows, err := j.pool.Query(ctx,
		`SELECT id::text, tool, mode, pair, side, amount, outcome, error_text, created_at
		 FROM mcp_journal
		 ORDER BY created_at DESC
		 LIMIT $1`,
		NormalizeLimit(limit),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]domain.JournalEntry, 0)
	for rows.Next() {
		var (
			e         domain.JournalEntry
			mode      string
			outcome   string
			createdAt time.Time
		)
		if err := rows.Scan(&e.ID, &e.Tool, &mode, &e.Pair, &e.Side, &e.Amount, &outcome, &e.Error, &createdAt); err != nil {
			return nil, err
		}
		e.Mode = domain.Mode(mode)
		e.Outcome = domain.JournalOutcome(outcome)
		e.Timestamp = createdAt.UTC()
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
