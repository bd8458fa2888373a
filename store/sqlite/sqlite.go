// Package sqlite implements a maestro.TraceSink backed by pure-Go
// SQLite. Zero CGO required. Completed execution traces are stored for
// offline inspection; nothing is ever read back into a run.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/avencia/maestro"

	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

// Option configures a Sink.
type Option func(*Sink)

// WithLogger sets a structured logger for the sink.
func WithLogger(l *slog.Logger) Option {
	return func(s *Sink) { s.logger = l }
}

// Sink persists execution traces in a local SQLite file.
type Sink struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ maestro.TraceSink = (*Sink)(nil)

// nopLogger discards all output.
var nopLogger = slog.New(discardHandler{})

type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }

// New creates a Sink using a local SQLite file at dbPath. A single
// shared connection serializes writers, eliminating SQLITE_BUSY errors
// from concurrent ensemble runs.
func New(dbPath string, opts ...Option) *Sink {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		// sql.Open only fails when the driver is not registered; with the
		// blank import above that never happens.
		panic(fmt.Sprintf("sqlite: open driver: %v", err))
	}
	db.SetMaxOpenConns(1)
	s := &Sink{db: db, logger: nopLogger}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Init creates the trace tables.
func (s *Sink) Init(ctx context.Context) error {
	tables := []string{
		`CREATE TABLE IF NOT EXISTS traces (
			id TEXT PRIMARY KEY,
			start_time INTEGER NOT NULL,
			end_time INTEGER NOT NULL,
			step_count INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS trace_steps (
			trace_id TEXT NOT NULL,
			idx INTEGER NOT NULL,
			agent_id TEXT NOT NULL,
			input TEXT NOT NULL,
			output TEXT,
			error TEXT,
			timestamp INTEGER NOT NULL,
			duration_ms INTEGER NOT NULL,
			metadata TEXT,
			PRIMARY KEY (trace_id, idx)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_trace_steps_agent ON trace_steps(agent_id)`,
	}
	for _, t := range tables {
		if _, err := s.db.ExecContext(ctx, t); err != nil {
			return fmt.Errorf("sqlite: create tables: %w", err)
		}
	}
	return nil
}

// SaveTrace stores the trace and its steps in one transaction.
func (s *Sink) SaveTrace(ctx context.Context, trace *maestro.ExecutionTrace) error {
	start := time.Now()
	steps := trace.Steps()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO traces (id, start_time, end_time, step_count) VALUES (?, ?, ?, ?)`,
		trace.ID(), trace.StartTime().UnixMilli(), trace.EndTime().UnixMilli(), len(steps))
	if err != nil {
		return fmt.Errorf("sqlite: insert trace: %w", err)
	}

	for _, step := range steps {
		var metadata any
		if len(step.Metadata) > 0 {
			b, err := json.Marshal(step.Metadata)
			if err == nil {
				metadata = string(b)
			}
		}
		_, err = tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO trace_steps
			 (trace_id, idx, agent_id, input, output, error, timestamp, duration_ms, metadata)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			trace.ID(), step.Index, step.AgentID, step.Input,
			nullable(step.Output), nullable(step.Err),
			step.Timestamp.UnixMilli(), step.Duration.Milliseconds(), metadata)
		if err != nil {
			return fmt.Errorf("sqlite: insert step %d: %w", step.Index, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit: %w", err)
	}
	s.logger.Debug("trace saved", "trace", trace.ID(), "steps", len(steps), "took", time.Since(start))
	return nil
}

// Close releases the database handle.
func (s *Sink) Close() error {
	return s.db.Close()
}

// nullable maps "" to NULL.
func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
