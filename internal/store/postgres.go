package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hey-granth/databridge/internal/config"
)

// pgUniqueViolation is the PostgreSQL error code for unique constraint violations.
const pgUniqueViolation = "23505"

// Postgres is a PostgreSQL-backed Store using a pgx connection pool.
type Postgres struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects to PostgreSQL and ensures the schema exists.
func OpenPostgres(ctx context.Context, cfg config.DatabaseConfig) (*Postgres, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &Postgres{pool: pool}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return s, nil
}

// ensureSchema creates the tables if they do not exist.
func (s *Postgres) ensureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS pipelines (
			id UUID PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			configuration JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS runs (
			id UUID PRIMARY KEY,
			pipeline_id UUID NOT NULL REFERENCES pipelines(id) ON DELETE CASCADE,
			status TEXT NOT NULL,
			destination TEXT NOT NULL,
			input_file TEXT NOT NULL,
			input_checksum TEXT NOT NULL DEFAULT '',
			output_file TEXT NOT NULL DEFAULT '',
			output_bytes BIGINT NOT NULL DEFAULT 0,
			record_count BIGINT NOT NULL DEFAULT 0,
			error_message TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL,
			finished_at TIMESTAMPTZ
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_pipeline_id ON runs(pipeline_id)`,
		`CREATE TABLE IF NOT EXISTS output_records (
			id BIGSERIAL PRIMARY KEY,
			pipeline_id UUID NOT NULL,
			run_id UUID NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			data JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_output_records_run_id ON output_records(run_id)`,
	}

	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}

	return nil
}

func (s *Postgres) CreatePipeline(ctx context.Context, p *Pipeline) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO pipelines (id, name, configuration, created_at) VALUES ($1, $2, $3, $4)`,
		p.ID, p.Name, []byte(p.Config), p.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return ErrNameTaken
		}
		return fmt.Errorf("create pipeline: %w", err)
	}
	return nil
}

func (s *Postgres) GetPipeline(ctx context.Context, id uuid.UUID) (*Pipeline, error) {
	var p Pipeline
	var raw []byte
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, configuration, created_at FROM pipelines WHERE id = $1`, id).
		Scan(&p.ID, &p.Name, &raw, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get pipeline: %w", err)
	}
	p.Config = json.RawMessage(raw)
	return &p, nil
}

func (s *Postgres) ListPipelines(ctx context.Context) ([]Pipeline, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, configuration, created_at FROM pipelines ORDER BY created_at DESC, name`)
	if err != nil {
		return nil, fmt.Errorf("list pipelines: %w", err)
	}
	defer rows.Close()

	var pipelines []Pipeline
	for rows.Next() {
		var p Pipeline
		var raw []byte
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

func (s *Postgres) DeletePipeline(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM pipelines WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete pipeline: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Postgres) CreateRun(ctx context.Context, r *Run) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (id, pipeline_id, status, destination, input_file, input_checksum, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		r.ID, r.PipelineID, r.Status, r.Destination, r.InputFile, r.InputChecksum, r.CreatedAt)
	if err != nil {
		return fmt.Errorf("create run: %w", err)
	}
	return nil
}

func (s *Postgres) GetRun(ctx context.Context, id uuid.UUID) (*Run, error) {
	var r Run
	err := s.pool.QueryRow(ctx,
		`SELECT id, pipeline_id, status, destination, input_file, input_checksum,
		        output_file, output_bytes, record_count, error_message, created_at, finished_at
		 FROM runs WHERE id = $1`, id).
		Scan(&r.ID, &r.PipelineID, &r.Status, &r.Destination, &r.InputFile, &r.InputChecksum,
			&r.OutputFile, &r.OutputBytes, &r.RecordCount, &r.ErrorMessage, &r.CreatedAt, &r.FinishedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get run: %w", err)
	}
	return &r, nil
}

func (s *Postgres) ListRuns(ctx context.Context, pipelineID uuid.UUID) ([]Run, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, pipeline_id, status, destination, input_file, input_checksum,
		        output_file, output_bytes, record_count, error_message, created_at, finished_at
		 FROM runs WHERE pipeline_id = $1 ORDER BY created_at DESC`, pipelineID)
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

func (s *Postgres) CompleteRunFile(ctx context.Context, id uuid.UUID, outputFile string, outputBytes int64) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, output_file = $2, output_bytes = $3, finished_at = $4 WHERE id = $5`,
		StatusCompleted, outputFile, outputBytes, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("complete run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Postgres) CompleteRunRecords(ctx context.Context, id uuid.UUID, recordCount int64) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, record_count = $2, finished_at = $3 WHERE id = $4`,
		StatusCompleted, recordCount, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("complete run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Postgres) FailRun(ctx context.Context, id uuid.UUID, message string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, error_message = $2, finished_at = $3 WHERE id = $4`,
		StatusFailed, message, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("fail run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Postgres) BeginRecordBatch(ctx context.Context, pipelineID, runID uuid.UUID) (RecordBatch, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin record batch: %w", err)
	}
	return &pgRecordBatch{tx: tx, pipelineID: pipelineID, runID: runID}, nil
}

func (s *Postgres) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Postgres) Close() {
	s.pool.Close()
}

// pgRecordBatch writes output records through a pgx transaction.
type pgRecordBatch struct {
	tx         pgx.Tx
	pipelineID uuid.UUID
	runID      uuid.UUID
}

func (b *pgRecordBatch) Insert(ctx context.Context, fields map[string]any) error {
	data, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	_, err = b.tx.Exec(ctx,
		`INSERT INTO output_records (pipeline_id, run_id, data, created_at) VALUES ($1, $2, $3, $4)`,
		b.pipelineID, b.runID, data, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("insert record: %w", err)
	}
	return nil
}

func (b *pgRecordBatch) Commit(ctx context.Context) error {
	return b.tx.Commit(ctx)
}

func (b *pgRecordBatch) Rollback(ctx context.Context) error {
	err := b.tx.Rollback(ctx)
	if errors.Is(err, pgx.ErrTxClosed) {
		return nil
	}
	return err
}
