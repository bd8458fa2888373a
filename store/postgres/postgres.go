// Package postgres implements a maestro.TraceSink backed by PostgreSQL.
//
// The Sink accepts an externally-owned *pgxpool.Pool via constructor
// injection; the caller creates and closes the pool.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/avencia/maestro"
)

// Sink persists execution traces in PostgreSQL.
type Sink struct {
	pool *pgxpool.Pool
}

var _ maestro.TraceSink = (*Sink)(nil)

// New creates a Sink over the given pool.
func New(pool *pgxpool.Pool) *Sink {
	return &Sink{pool: pool}
}

// Init creates the trace tables.
func (s *Sink) Init(ctx context.Context) error {
	tables := []string{
		`CREATE TABLE IF NOT EXISTS traces (
			id TEXT PRIMARY KEY,
			start_time TIMESTAMPTZ NOT NULL,
			end_time TIMESTAMPTZ NOT NULL,
			step_count INT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS trace_steps (
			trace_id TEXT NOT NULL REFERENCES traces(id) ON DELETE CASCADE,
			idx INT NOT NULL,
			agent_id TEXT NOT NULL,
			input TEXT NOT NULL,
			output TEXT,
			error TEXT,
			ts TIMESTAMPTZ NOT NULL,
			duration_ms BIGINT NOT NULL,
			metadata JSONB,
			PRIMARY KEY (trace_id, idx)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_trace_steps_agent ON trace_steps(agent_id)`,
	}
	for _, t := range tables {
		if _, err := s.pool.Exec(ctx, t); err != nil {
			return fmt.Errorf("postgres: create tables: %w", err)
		}
	}
	return nil
}

// SaveTrace stores the trace and its steps in one transaction.
func (s *Sink) SaveTrace(ctx context.Context, trace *maestro.ExecutionTrace) error {
	steps := trace.Steps()

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO traces (id, start_time, end_time, step_count) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO UPDATE SET end_time = EXCLUDED.end_time, step_count = EXCLUDED.step_count`,
		trace.ID(), trace.StartTime(), trace.EndTime(), len(steps))
	if err != nil {
		return fmt.Errorf("postgres: insert trace: %w", err)
	}

	for _, step := range steps {
		var metadata []byte
		if len(step.Metadata) > 0 {
			metadata, _ = json.Marshal(step.Metadata)
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO trace_steps (trace_id, idx, agent_id, input, output, error, ts, duration_ms, metadata)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			 ON CONFLICT (trace_id, idx) DO UPDATE SET
			   output = EXCLUDED.output, error = EXCLUDED.error, duration_ms = EXCLUDED.duration_ms`,
			trace.ID(), step.Index, step.AgentID, step.Input,
			nullable(step.Output), nullable(step.Err),
			step.Timestamp, step.Duration.Milliseconds(), metadata)
		if err != nil {
			return fmt.Errorf("postgres: insert step %d: %w", step.Index, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit: %w", err)
	}
	return nil
}

// nullable maps "" to NULL.
func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
