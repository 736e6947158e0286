// Package store persists pipelines, runs, and run output records.
//
// Two backends implement the Store interface: PostgreSQL via pgx for
// shared deployments, and SQLite via database/sql for single-node use.
// Open selects the backend based on configuration. Both backends create
// their schema on startup, so no external migration step is required.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hey-granth/databridge/internal/config"
)

// Run status values.
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Sentinel errors shared by both backends.
var (
	// ErrNotFound is returned when a pipeline or run does not exist.
	ErrNotFound = errors.New("not found")

	// ErrNameTaken is returned when a pipeline name is already in use.
	ErrNameTaken = errors.New("pipeline name already taken")
)

// Pipeline is a stored transformation pipeline.
type Pipeline struct {
	ID        uuid.UUID
	Name      string
	Config    json.RawMessage
	CreatedAt time.Time
}

// Run records a single execution of a pipeline against one input file.
type Run struct {
	ID            uuid.UUID
	PipelineID    uuid.UUID
	Status        string
	Destination   string
	InputFile     string
	InputChecksum string
	OutputFile    string
	OutputBytes   int64
	RecordCount   int64
	ErrorMessage  string
	CreatedAt     time.Time
	FinishedAt    *time.Time
}

// Store is the persistence contract shared by both backends.
type Store interface {
	CreatePipeline(ctx context.Context, p *Pipeline) error
	GetPipeline(ctx context.Context, id uuid.UUID) (*Pipeline, error)
	ListPipelines(ctx context.Context) ([]Pipeline, error)
	DeletePipeline(ctx context.Context, id uuid.UUID) error

	CreateRun(ctx context.Context, r *Run) error
	GetRun(ctx context.Context, id uuid.UUID) (*Run, error)
	ListRuns(ctx context.Context, pipelineID uuid.UUID) ([]Run, error)
	CompleteRunFile(ctx context.Context, id uuid.UUID, outputFile string, outputBytes int64) error
	CompleteRunRecords(ctx context.Context, id uuid.UUID, recordCount int64) error
	FailRun(ctx context.Context, id uuid.UUID, message string) error

	// BeginRecordBatch opens a transaction for writing output records.
	// Records only become visible after Commit; a failed run rolls back
	// and leaves no records behind.
	BeginRecordBatch(ctx context.Context, pipelineID, runID uuid.UUID) (RecordBatch, error)

	Ping(ctx context.Context) error
	Close()
}

// RecordBatch writes output records inside a single transaction.
// A batch must end with exactly one Commit or Rollback call.
// Rollback after Commit is a no-op, so it is safe to defer.
type RecordBatch interface {
	Insert(ctx context.Context, fields map[string]any) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Open connects to the backend selected by cfg.Driver.
func Open(ctx context.Context, cfg config.DatabaseConfig) (Store, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		return OpenPostgres(ctx, cfg)
	case config.DriverSQLite:
		return OpenSQLite(ctx, cfg.Path)
	default:
		return nil, fmt.Errorf("unsupported database driver: %q", cfg.Driver)
	}
}
