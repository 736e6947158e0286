package store

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
)

// openTestStore creates a SQLite store backed by a temp file.
func openTestStore(t *testing.T) *SQLite {
	t.Helper()

	s, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("OpenSQLite() error = %v", err)
	}
	t.Cleanup(s.Close)

	return s
}

func testPipeline(name string) *Pipeline {
	return &Pipeline{
		ID:        uuid.New(),
		Name:      name,
		Config:    json.RawMessage(`{"column_selection": ["item"]}`),
		CreatedAt: time.Now().UTC(),
	}
}

// ----------------------------------------------------------------------------
// Pipelines
// ----------------------------------------------------------------------------

func TestPipelineRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	p := testPipeline("monthly-report")
	if err := s.CreatePipeline(ctx, p); err != nil {
		t.Fatalf("CreatePipeline() error = %v", err)
	}

	got, err := s.GetPipeline(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetPipeline() error = %v", err)
	}

	if got.ID != p.ID {
		t.Errorf("ID = %v, want %v", got.ID, p.ID)
	}
	if got.Name != "monthly-report" {
		t.Errorf("Name = %q, want %q", got.Name, "monthly-report")
	}
	if string(got.Config) != string(p.Config) {
		t.Errorf("Config = %s, want %s", got.Config, p.Config)
	}
	if got.CreatedAt.IsZero() {
		t.Error("CreatedAt should not be zero")
	}
}

func TestPipelineNameUnique(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.CreatePipeline(ctx, testPipeline("dupe")); err != nil {
		t.Fatalf("CreatePipeline() error = %v", err)
	}

	err := s.CreatePipeline(ctx, testPipeline("dupe"))
	if !errors.Is(err, ErrNameTaken) {
		t.Errorf("CreatePipeline() error = %v, want ErrNameTaken", err)
	}
}

func TestGetPipelineNotFound(t *testing.T) {
	s := openTestStore(t)

	_, err := s.GetPipeline(context.Background(), uuid.New())
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("GetPipeline() error = %v, want ErrNotFound", err)
	}
}

func TestListPipelines(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for _, name := range []string{"alpha", "beta", "gamma"} {
		if err := s.CreatePipeline(ctx, testPipeline(name)); err != nil {
			t.Fatalf("CreatePipeline(%s) error = %v", name, err)
		}
	}

	pipelines, err := s.ListPipelines(ctx)
	if err != nil {
		t.Fatalf("ListPipelines() error = %v", err)
	}
	if len(pipelines) != 3 {
		t.Errorf("len(pipelines) = %d, want 3", len(pipelines))
	}
}

func TestDeletePipeline(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	p := testPipeline("doomed")
	if err := s.CreatePipeline(ctx, p); err != nil {
		t.Fatalf("CreatePipeline() error = %v", err)
	}

	if err := s.DeletePipeline(ctx, p.ID); err != nil {
		t.Fatalf("DeletePipeline() error = %v", err)
	}

	if _, err := s.GetPipeline(ctx, p.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetPipeline() after delete error = %v, want ErrNotFound", err)
	}

	if err := s.DeletePipeline(ctx, p.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("DeletePipeline() twice error = %v, want ErrNotFound", err)
	}
}

func TestDeletePipelineCascadesRuns(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	p := testPipeline("cascade")
	if err := s.CreatePipeline(ctx, p); err != nil {
		t.Fatalf("CreatePipeline() error = %v", err)
	}

	run := pendingRun(p.ID)
	if err := s.CreateRun(ctx, run); err != nil {
		t.Fatalf("CreateRun() error = %v", err)
	}

	if err := s.DeletePipeline(ctx, p.ID); err != nil {
		t.Fatalf("DeletePipeline() error = %v", err)
	}

	if _, err := s.GetRun(ctx, run.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetRun() after pipeline delete error = %v, want ErrNotFound", err)
	}
}

// ----------------------------------------------------------------------------
// Runs
// ----------------------------------------------------------------------------

func pendingRun(pipelineID uuid.UUID) *Run {
	return &Run{
		ID:            uuid.New(),
		PipelineID:    pipelineID,
		Status:        StatusPending,
		Destination:   "file",
		InputFile:     "uploads/sales.csv",
		InputChecksum: "deadbeef",
		CreatedAt:     time.Now().UTC(),
	}
}

func TestRunLifecycleFile(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	p := testPipeline("runs")
	if err := s.CreatePipeline(ctx, p); err != nil {
		t.Fatalf("CreatePipeline() error = %v", err)
	}

	run := pendingRun(p.ID)
	if err := s.CreateRun(ctx, run); err != nil {
		t.Fatalf("CreateRun() error = %v", err)
	}

	got, err := s.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetRun() error = %v", err)
	}
	if got.Status != StatusPending {
		t.Errorf("Status = %q, want %q", got.Status, StatusPending)
	}
	if got.FinishedAt != nil {
		t.Errorf("FinishedAt = %v, want nil for pending run", got.FinishedAt)
	}
	if got.InputChecksum != "deadbeef" {
		t.Errorf("InputChecksum = %q, want %q", got.InputChecksum, "deadbeef")
	}

	if err := s.CompleteRunFile(ctx, run.ID, "outputs/result.csv", 512); err != nil {
		t.Fatalf("CompleteRunFile() error = %v", err)
	}

	got, err = s.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetRun() error = %v", err)
	}
	if got.Status != StatusCompleted {
		t.Errorf("Status = %q, want %q", got.Status, StatusCompleted)
	}
	if got.OutputFile != "outputs/result.csv" {
		t.Errorf("OutputFile = %q, want %q", got.OutputFile, "outputs/result.csv")
	}
	if got.OutputBytes != 512 {
		t.Errorf("OutputBytes = %d, want 512", got.OutputBytes)
	}
	if got.FinishedAt == nil {
		t.Error("FinishedAt should be set after completion")
	}
}

func TestRunLifecycleRecords(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	p := testPipeline("records")
	if err := s.CreatePipeline(ctx, p); err != nil {
		t.Fatalf("CreatePipeline() error = %v", err)
	}

	run := pendingRun(p.ID)
	run.Destination = "record-store"
	if err := s.CreateRun(ctx, run); err != nil {
		t.Fatalf("CreateRun() error = %v", err)
	}

	if err := s.CompleteRunRecords(ctx, run.ID, 42); err != nil {
		t.Fatalf("CompleteRunRecords() error = %v", err)
	}

	got, err := s.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetRun() error = %v", err)
	}
	if got.Status != StatusCompleted {
		t.Errorf("Status = %q, want %q", got.Status, StatusCompleted)
	}
	if got.RecordCount != 42 {
		t.Errorf("RecordCount = %d, want 42", got.RecordCount)
	}
	if got.OutputFile != "" {
		t.Errorf("OutputFile = %q, want empty for record run", got.OutputFile)
	}
}

func TestFailRun(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	p := testPipeline("failing")
	if err := s.CreatePipeline(ctx, p); err != nil {
		t.Fatalf("CreatePipeline() error = %v", err)
	}

	run := pendingRun(p.ID)
	if err := s.CreateRun(ctx, run); err != nil {
		t.Fatalf("CreateRun() error = %v", err)
	}

	msg := "column_mapping references missing columns: ['ghost']"
	if err := s.FailRun(ctx, run.ID, msg); err != nil {
		t.Fatalf("FailRun() error = %v", err)
	}

	got, err := s.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetRun() error = %v", err)
	}
	if got.Status != StatusFailed {
		t.Errorf("Status = %q, want %q", got.Status, StatusFailed)
	}
	if got.ErrorMessage != msg {
		t.Errorf("ErrorMessage = %q, want %q", got.ErrorMessage, msg)
	}
	if got.FinishedAt == nil {
		t.Error("FinishedAt should be set after failure")
	}
}

func TestUpdateMissingRun(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.FailRun(ctx, uuid.New(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("FailRun() error = %v, want ErrNotFound", err)
	}
	if err := s.CompleteRunFile(ctx, uuid.New(), "x.csv", 1); !errors.Is(err, ErrNotFound) {
		t.Errorf("CompleteRunFile() error = %v, want ErrNotFound", err)
	}
}

func TestListRunsNewestFirst(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	p := testPipeline("ordered")
	if err := s.CreatePipeline(ctx, p); err != nil {
		t.Fatalf("CreatePipeline() error = %v", err)
	}

	older := pendingRun(p.ID)
	older.CreatedAt = time.Now().UTC().Add(-time.Hour)
	newer := pendingRun(p.ID)

	if err := s.CreateRun(ctx, older); err != nil {
		t.Fatalf("CreateRun() error = %v", err)
	}
	if err := s.CreateRun(ctx, newer); err != nil {
		t.Fatalf("CreateRun() error = %v", err)
	}

	runs, err := s.ListRuns(ctx, p.ID)
	if err != nil {
		t.Fatalf("ListRuns() error = %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("len(runs) = %d, want 2", len(runs))
	}
	if runs[0].ID != newer.ID {
		t.Errorf("runs[0].ID = %v, want newest run %v", runs[0].ID, newer.ID)
	}
}

// ----------------------------------------------------------------------------
// Record batches
// ----------------------------------------------------------------------------

func countRecords(t *testing.T, s *SQLite, runID uuid.UUID) int {
	t.Helper()

	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM output_records WHERE run_id = ?`, runID).Scan(&n)
	if err != nil {
		t.Fatalf("count records: %v", err)
	}
	return n
}

func TestRecordBatchCommit(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	p := testPipeline("batch-commit")
	if err := s.CreatePipeline(ctx, p); err != nil {
		t.Fatalf("CreatePipeline() error = %v", err)
	}
	run := pendingRun(p.ID)
	if err := s.CreateRun(ctx, run); err != nil {
		t.Fatalf("CreateRun() error = %v", err)
	}

	batch, err := s.BeginRecordBatch(ctx, p.ID, run.ID)
	if err != nil {
		t.Fatalf("BeginRecordBatch() error = %v", err)
	}

	rows := []map[string]any{
		{"item": "widget", "amount": 150.0},
		{"item": "gizmo", "amount": nil},
	}
	for _, fields := range rows {
		if err := batch.Insert(ctx, fields); err != nil {
			t.Fatalf("Insert() error = %v", err)
		}
	}

	if err := batch.Commit(ctx); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	// Rollback after commit must be a safe no-op
	if err := batch.Rollback(ctx); err != nil {
		t.Errorf("Rollback() after commit error = %v", err)
	}

	if n := countRecords(t, s, run.ID); n != 2 {
		t.Errorf("record count = %d, want 2", n)
	}
}

func TestRecordBatchRollback(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	p := testPipeline("batch-rollback")
	if err := s.CreatePipeline(ctx, p); err != nil {
		t.Fatalf("CreatePipeline() error = %v", err)
	}
	run := pendingRun(p.ID)
	if err := s.CreateRun(ctx, run); err != nil {
		t.Fatalf("CreateRun() error = %v", err)
	}

	batch, err := s.BeginRecordBatch(ctx, p.ID, run.ID)
	if err != nil {
		t.Fatalf("BeginRecordBatch() error = %v", err)
	}
	if err := batch.Insert(ctx, map[string]any{"item": "widget"}); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if err := batch.Rollback(ctx); err != nil {
		t.Fatalf("Rollback() error = %v", err)
	}

	if n := countRecords(t, s, run.ID); n != 0 {
		t.Errorf("record count = %d, want 0 after rollback", n)
	}
}

func TestRecordDataIsJSON(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	p := testPipeline("record-json")
	if err := s.CreatePipeline(ctx, p); err != nil {
		t.Fatalf("CreatePipeline() error = %v", err)
	}
	run := pendingRun(p.ID)
	if err := s.CreateRun(ctx, run); err != nil {
		t.Fatalf("CreateRun() error = %v", err)
	}

	batch, err := s.BeginRecordBatch(ctx, p.ID, run.ID)
	if err != nil {
		t.Fatalf("BeginRecordBatch() error = %v", err)
	}
	if err := batch.Insert(ctx, map[string]any{"item": "widget", "amount": 150.0, "note": nil}); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if err := batch.Commit(ctx); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}

	var raw string
	err = s.db.QueryRow(`SELECT data FROM output_records WHERE run_id = ?`, run.ID).Scan(&raw)
	if err != nil {
		t.Fatalf("select record data: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		t.Fatalf("record data is not valid JSON: %v", err)
	}
	if decoded["item"] != "widget" {
		t.Errorf("item = %v, want widget", decoded["item"])
	}
	if decoded["amount"] != 150.0 {
		t.Errorf("amount = %v, want 150", decoded["amount"])
	}
	if v, ok := decoded["note"]; !ok || v != nil {
		t.Errorf("note = %v (present=%t), want explicit null", v, ok)
	}
}

func TestPing(t *testing.T) {
	s := openTestStore(t)
	if err := s.Ping(context.Background()); err != nil {
		t.Errorf("Ping() error = %v", err)
	}
}
