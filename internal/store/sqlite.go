package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
)

// SQLite is a file-backed Store using database/sql with the sqlite3 driver.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database file and ensures the schema
// exists. Foreign keys are enabled on every pooled connection via the DSN,
// which is what makes pipeline deletion cascade to runs and records.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path must not be empty")
	}

	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	s := &SQLite{db: db}
	if err := s.ensureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// ensureSchema creates the tables if they do not exist.
func (s *SQLite) ensureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS pipelines (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			configuration TEXT NOT NULL,
			created_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			pipeline_id TEXT NOT NULL REFERENCES pipelines(id) ON DELETE CASCADE,
			status TEXT NOT NULL,
			destination TEXT NOT NULL,
			input_file TEXT NOT NULL,
			input_checksum TEXT NOT NULL DEFAULT '',
			output_file TEXT NOT NULL DEFAULT '',
			output_bytes INTEGER NOT NULL DEFAULT 0,
			record_count INTEGER NOT NULL DEFAULT 0,
			error_message TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL,
			finished_at DATETIME
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_pipeline_id ON runs(pipeline_id)`,
		`CREATE TABLE IF NOT EXISTS output_records (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			pipeline_id TEXT NOT NULL,
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			data TEXT NOT NULL,
			created_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_output_records_run_id ON output_records(run_id)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}

	return nil
}

func (s *SQLite) CreatePipeline(ctx context.Context, p *Pipeline) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO pipelines (id, name, configuration, created_at) VALUES (?, ?, ?, ?)`,
		p.ID, p.Name, string(p.Config), p.CreatedAt)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return ErrNameTaken
		}
		return fmt.Errorf("create pipeline: %w", err)
	}
	return nil
}

func (s *SQLite) GetPipeline(ctx context.Context, id uuid.UUID) (*Pipeline, error) {
	var p Pipeline
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, configuration, created_at FROM pipelines WHERE id = ?`, id).
		Scan(&p.ID, &p.Name, &raw, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get pipeline: %w", err)
	}
	p.Config = json.RawMessage(raw)
	return &p, nil
}

func (s *SQLite) ListPipelines(ctx context.Context) ([]Pipeline, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, configuration, created_at FROM pipelines ORDER BY created_at DESC, name`)
	if err != nil {
		return nil, fmt.Errorf("list pipelines: %w", err)
	}
	defer rows.Close()

	var pipelines []Pipeline
	for rows.Next() {
		var p Pipeline
		var raw string
		if err := rows.Scan(&p.ID, &p.Name, &raw, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan pipeline: %w", err)
		}
		p.Config = json.RawMessage(raw)
		pipelines = append(pipelines, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return pipelines, nil
}

func (s *SQLite) DeletePipeline(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM pipelines WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete pipeline: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete pipeline: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLite) CreateRun(ctx context.Context, r *Run) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, pipeline_id, status, destination, input_file, input_checksum, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.PipelineID, r.Status, r.Destination, r.InputFile, r.InputChecksum, r.CreatedAt)
	if err != nil {
		return fmt.Errorf("create run: %w", err)
	}
	return nil
}

func (s *SQLite) GetRun(ctx context.Context, id uuid.UUID) (*Run, error) {
	var r Run
	err := s.db.QueryRowContext(ctx,
		`SELECT id, pipeline_id, status, destination, input_file, input_checksum,
		        output_file, output_bytes, record_count, error_message, created_at, finished_at
		 FROM runs WHERE id = ?`, id).
		Scan(&r.ID, &r.PipelineID, &r.Status, &r.Destination, &r.InputFile, &r.InputChecksum,
			&r.OutputFile, &r.OutputBytes, &r.RecordCount, &r.ErrorMessage, &r.CreatedAt, &r.FinishedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get run: %w", err)
	}
	return &r, nil
}

func (s *SQLite) ListRuns(ctx context.Context, pipelineID uuid.UUID) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, pipeline_id, status, destination, input_file, input_checksum,
		        output_file, output_bytes, record_count, error_message, created_at, finished_at
		 FROM runs WHERE pipeline_id = ? ORDER BY created_at DESC`, pipelineID)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.PipelineID, &r.Status, &r.Destination, &r.InputFile, &r.InputChecksum,
			&r.OutputFile, &r.OutputBytes, &r.RecordCount, &r.ErrorMessage, &r.CreatedAt, &r.FinishedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return runs, nil
}

func (s *SQLite) CompleteRunFile(ctx context.Context, id uuid.UUID, outputFile string, outputBytes int64) error {
	return s.updateRun(ctx,
		`UPDATE runs SET status = ?, output_file = ?, output_bytes = ?, finished_at = ? WHERE id = ?`,
		StatusCompleted, outputFile, outputBytes, time.Now().UTC(), id)
}

func (s *SQLite) CompleteRunRecords(ctx context.Context, id uuid.UUID, recordCount int64) error {
	return s.updateRun(ctx,
		`UPDATE runs SET status = ?, record_count = ?, finished_at = ? WHERE id = ?`,
		StatusCompleted, recordCount, time.Now().UTC(), id)
}

func (s *SQLite) FailRun(ctx context.Context, id uuid.UUID, message string) error {
	return s.updateRun(ctx,
		`UPDATE runs SET status = ?, error_message = ?, finished_at = ? WHERE id = ?`,
		StatusFailed, message, time.Now().UTC(), id)
}

// updateRun executes a run UPDATE and maps zero affected rows to ErrNotFound.
func (s *SQLite) updateRun(ctx context.Context, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLite) BeginRecordBatch(ctx context.Context, pipelineID, runID uuid.UUID) (RecordBatch, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin record batch: %w", err)
	}
	return &sqliteRecordBatch{tx: tx, pipelineID: pipelineID, runID: runID}, nil
}

func (s *SQLite) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLite) Close() {
	s.db.Close()
}

// sqliteRecordBatch writes output records through a database/sql transaction.
type sqliteRecordBatch struct {
	tx         *sql.Tx
	pipelineID uuid.UUID
	runID      uuid.UUID
}

func (b *sqliteRecordBatch) Insert(ctx context.Context, fields map[string]any) error {
	data, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	_, err = b.tx.ExecContext(ctx,
		`INSERT INTO output_records (pipeline_id, run_id, data, created_at) VALUES (?, ?, ?, ?)`,
		b.pipelineID, b.runID, string(data), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("insert record: %w", err)
	}
	return nil
}

func (b *sqliteRecordBatch) Commit(ctx context.Context) error {
	return b.tx.Commit()
}

func (b *sqliteRecordBatch) Rollback(ctx context.Context) error {
	err := b.tx.Rollback()
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return err
}
