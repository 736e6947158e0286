// Package pipeline implements the run lifecycle around the transform
// engine: pipeline definitions, run records, artifact storage, bounded
// run concurrency, and run telemetry.
//
// The service is intentionally synchronous. A trigger request carries the
// whole input file, the run executes on the request goroutine, and the
// response is the terminal run document (completed or failed). The limiter
// caps how many of those requests execute at once.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hey-granth/databridge/internal/config"
	"github.com/hey-granth/databridge/internal/engine"
	"github.com/hey-granth/databridge/internal/logging"
	"github.com/hey-granth/databridge/internal/storage"
	"github.com/hey-granth/databridge/internal/store"
	"github.com/hey-granth/databridge/internal/telemetry"
)

// ErrNoArtifact is returned when a run has no output file to download.
// Record-store runs and failed runs never have one.
var ErrNoArtifact = errors.New("run has no output file")

// maxPipelineNameLength caps pipeline names at the column width.
const maxPipelineNameLength = 255

// ValidationError rejects a request before any run record exists.
// Fields carries one entry per failing field, in API shape.
type ValidationError struct {
	Fields []engine.FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		msgs[i] = f.Error()
	}
	return strings.Join(msgs, "; ")
}

// Service wires the transform engine to its collaborators: the store for
// pipelines, runs, and output records; file storage for inputs and
// artifacts; and the limiter for bounded run concurrency.
type Service struct {
	store   store.Store
	files   *storage.Files
	limiter *RunLimiter
	timeout time.Duration
}

// NewService creates a Service using the run settings from cfg.
func NewService(st store.Store, files *storage.Files, cfg config.RunsConfig) *Service {
	return &Service{
		store:   st,
		files:   files,
		limiter: NewRunLimiter(cfg.MaxConcurrent, cfg.MaxWaitTime),
		timeout: cfg.Timeout,
	}
}

// CreatePipeline validates and stores a new pipeline definition. A
// definition that fails validation is never saved. Duplicate names
// surface as store.ErrNameTaken.
func (s *Service) CreatePipeline(ctx context.Context, name string, rawConfig json.RawMessage) (*store.Pipeline, error) {
	var fields []engine.FieldError

	name = strings.TrimSpace(name)
	if name == "" {
		fields = append(fields, engine.FieldError{Field: "name", Message: "Required."})
	} else if len(name) > maxPipelineNameLength {
		fields = append(fields, engine.FieldError{Field: "name", Message: "Must be at most 255 characters."})
	}

	if len(rawConfig) == 0 {
		fields = append(fields, engine.FieldError{Field: "configuration", Message: "Required."})
	} else {
		fields = append(fields, engine.ValidateConfig(rawConfig)...)
	}

	if len(fields) > 0 {
		return nil, &ValidationError{Fields: fields}
	}

	p := &store.Pipeline{
		ID:        uuid.New(),
		Name:      name,
		Config:    rawConfig,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.CreatePipeline(ctx, p); err != nil {
		return nil, err
	}

	logging.FromContext(ctx).Info("pipeline created", "pipeline_id", p.ID, "name", p.Name)
	return p, nil
}

// GetPipeline returns a pipeline by ID.
func (s *Service) GetPipeline(ctx context.Context, id uuid.UUID) (*store.Pipeline, error) {
	return s.store.GetPipeline(ctx, id)
}

// ListPipelines returns all pipelines, newest first.
func (s *Service) ListPipelines(ctx context.Context) ([]store.Pipeline, error) {
	return s.store.ListPipelines(ctx)
}

// DeletePipeline removes a pipeline and, by cascade, its runs and output
// records.
func (s *Service) DeletePipeline(ctx context.Context, id uuid.UUID) error {
	if err := s.store.DeletePipeline(ctx, id); err != nil {
		return err
	}
	logging.FromContext(ctx).Info("pipeline deleted", "pipeline_id", id)
	return nil
}

// ListRuns returns the runs of one pipeline, newest first. Unknown
// pipelines report store.ErrNotFound rather than an empty list.
func (s *Service) ListRuns(ctx context.Context, pipelineID uuid.UUID) ([]store.Run, error) {
	if _, err := s.store.GetPipeline(ctx, pipelineID); err != nil {
		return nil, err
	}
	return s.store.ListRuns(ctx, pipelineID)
}

// GetRun returns a run by ID.
func (s *Service) GetRun(ctx context.Context, id uuid.UUID) (*store.Run, error) {
	return s.store.GetRun(ctx, id)
}

// RunInput is what a trigger request supplies: the uploaded file plus
// destination and output naming choices.
type RunInput struct {
	FileName    string
	Data        []byte
	Destination string // "csv"/"file", "database"/"record-store", empty for file
	OutputName  string // optional artifact name, file destination only
}

// Run executes a pipeline against one uploaded file and returns the
// terminal run record.
//
// Destination and file-type problems reject the request before a run
// record exists: unknown destinations as *ValidationError, unsupported
// extensions as *engine.UnsupportedFormatError. Once the run record is
// created every failure is folded into it as a failed status with the
// error message persisted, and Run still returns the record.
func (s *Service) Run(ctx context.Context, pipelineID uuid.UUID, in RunInput) (*store.Run, error) {
	p, err := s.store.GetPipeline(ctx, pipelineID)
	if err != nil {
		return nil, err
	}

	dest, err := engine.ResolveDestination(in.Destination)
	if err != nil {
		return nil, &ValidationError{Fields: []engine.FieldError{{
			Field:   "destination",
			Message: fmt.Sprintf("%q is not a valid choice.", in.Destination),
		}}}
	}

	format, err := engine.FormatFromExtension(in.FileName)
	if err != nil {
		return nil, err
	}

	// Stored configurations were validated at creation, so a parse
	// failure here means the stored row was tampered with.
	cfg, fieldErrs := engine.ParseConfig(p.Config)
	if len(fieldErrs) > 0 {
		return nil, &ValidationError{Fields: fieldErrs}
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.Release()

	runID := uuid.New()

	inputFile, err := s.files.SaveUpload(runID, in.FileName, in.Data)
	if err != nil {
		return nil, fmt.Errorf("save upload: %w", err)
	}

	run := &store.Run{
		ID:            runID,
		PipelineID:    p.ID,
		Status:        store.StatusPending,
		Destination:   string(dest),
		InputFile:     inputFile,
		InputChecksum: storage.Checksum(in.Data),
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.store.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}

	log := logging.WithFields(ctx, "run_id", runID, "pipeline", p.Name)
	log.Info("run started", "destination", string(dest), "file", in.FileName)

	telemetry.RunStarted()
	start := time.Now()

	runCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	outcome := s.execute(runCtx, run, cfg, format, dest, in)
	elapsed := time.Since(start)

	if outcome.Succeeded {
		if err := s.completeRun(ctx, run.ID, outcome.Artifact); err != nil {
			telemetry.RunFinished(store.StatusFailed, string(dest), elapsed)
			return nil, err
		}
		telemetry.RunFinished(store.StatusCompleted, string(dest), elapsed)
		log.Info("run completed",
			"records", outcome.Artifact.Records,
			"output_bytes", outcome.Artifact.Bytes,
			"duration_ms", elapsed.Milliseconds())
	} else {
		if err := s.store.FailRun(ctx, run.ID, outcome.Message); err != nil {
			telemetry.RunFinished(store.StatusFailed, string(dest), elapsed)
			return nil, fmt.Errorf("fail run: %w", err)
		}
		telemetry.RunFinished(store.StatusFailed, string(dest), elapsed)
		log.Warn("run failed", "error", outcome.Message, "duration_ms", elapsed.Milliseconds())
	}

	return s.store.GetRun(ctx, run.ID)
}

// execute drives the engine with per-run sink adapters. For the record
// store destination all inserts go through one transaction: commit only
// after the engine succeeds, so a failed run leaves zero records behind.
func (s *Service) execute(ctx context.Context, run *store.Run, cfg *engine.PipelineConfig, format engine.Format, dest engine.Destination, in RunInput) engine.Outcome {
	req := engine.RunRequest{
		PipelineID:  run.PipelineID.String(),
		RunID:       run.ID.String(),
		Config:      cfg,
		Input:       in.Data,
		Format:      format,
		Destination: dest,
		OutputName:  in.OutputName,
	}

	files := &outputSink{files: s.files, runID: run.ID}

	if dest != engine.DestinationRecords {
		return engine.Execute(ctx, req, files, nil)
	}

	batch, err := s.store.BeginRecordBatch(ctx, run.PipelineID, run.ID)
	if err != nil {
		return engine.Outcome{Message: fmt.Sprintf("begin record batch: %v", err)}
	}
	defer batch.Rollback(ctx)

	outcome := engine.Execute(ctx, req, files, &batchSink{batch: batch})
	if !outcome.Succeeded {
		return outcome
	}
	if err := batch.Commit(ctx); err != nil {
		return engine.Outcome{Message: fmt.Sprintf("commit records: %v", err)}
	}
	return outcome
}

// completeRun records the artifact on the run and bumps output counters.
func (s *Service) completeRun(ctx context.Context, runID uuid.UUID, a *engine.Artifact) error {
	switch a.Destination {
	case engine.DestinationRecords:
		if err := s.store.CompleteRunRecords(ctx, runID, int64(a.Records)); err != nil {
			return fmt.Errorf("complete run: %w", err)
		}
		telemetry.RecordsWritten(int64(a.Records))
	default:
		if err := s.store.CompleteRunFile(ctx, runID, a.Locator, a.Bytes); err != nil {
			return fmt.Errorf("complete run: %w", err)
		}
		telemetry.OutputBytes(a.Bytes)
	}
	return nil
}

// OpenArtifact opens a run's output file for download. Runs without an
// output file return ErrNoArtifact.
func (s *Service) OpenArtifact(ctx context.Context, runID uuid.UUID) (*store.Run, *os.File, error) {
	run, err := s.store.GetRun(ctx, runID)
	if err != nil {
		return nil, nil, err
	}
	if run.OutputFile == "" {
		return nil, nil, ErrNoArtifact
	}
	f, err := s.files.Open(run.OutputFile)
	if err != nil {
		return nil, nil, fmt.Errorf("open artifact: %w", err)
	}
	return run, f, nil
}

// Ping reports store connectivity for health checks.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// WaitForRuns blocks until in-flight runs finish or the context is
// cancelled. Called during graceful shutdown.
func (s *Service) WaitForRuns(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}

// RunnerStatus reports current limiter occupancy.
func (s *Service) RunnerStatus() LimiterStatus {
	return s.limiter.Status()
}

// outputSink adapts run-scoped artifact storage to the engine's FileStore.
type outputSink struct {
	files *storage.Files
	runID uuid.UUID
}

func (o *outputSink) Store(ctx context.Context, name string, data []byte) (string, error) {
	return o.files.SaveOutput(o.runID, name, data)
}

// batchSink adapts an open record transaction to the engine's RecordStore.
// The batch is already bound to one pipeline and run, so the IDs the
// engine passes are redundant here.
type batchSink struct {
	batch store.RecordBatch
}

func (b *batchSink) InsertRecord(ctx context.Context, pipelineID, runID string, fields map[string]any) error {
	return b.batch.Insert(ctx, fields)
}
