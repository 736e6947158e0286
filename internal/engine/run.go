package engine

// run.go drives a complete pipeline run: decode, transform, write. The
// orchestrator never returns an error; every failure ends up in the
// Outcome so the caller can record it on the run and move on.

import (
	"context"
	"fmt"
	"strings"
)

// Destination selects where a run writes its output.
type Destination string

const (
	DestinationFile    Destination = "file"
	DestinationRecords Destination = "record-store"
)

// ResolveDestination maps a request selector to a Destination. The file
// destination answers to "csv" or "file", the record store to "database"
// or "record-store". An empty selector defaults to the file destination.
func ResolveDestination(selector string) (Destination, error) {
	switch strings.ToLower(strings.TrimSpace(selector)) {
	case "", "csv", "file":
		return DestinationFile, nil
	case "database", "record-store":
		return DestinationRecords, nil
	default:
		return "", fmt.Errorf("unknown destination '%s'", selector)
	}
}

// FileStore persists a named byte artifact and returns a locator for
// retrieving it later.
type FileStore interface {
	Store(ctx context.Context, name string, data []byte) (string, error)
}

// RecordStore receives one structured record per output row. Fields map
// column names to nil, float64, or string.
type RecordStore interface {
	InsertRecord(ctx context.Context, pipelineID, runID string, fields map[string]any) error
}

// RunRequest carries everything a single run needs. Input is the complete
// uploaded file; Format must already be resolved from the file name.
type RunRequest struct {
	PipelineID  string
	RunID       string
	Config      *PipelineConfig
	Input       []byte
	Format      Format
	Destination Destination
	OutputName  string // optional artifact name for the file destination
}

// Artifact describes what a successful run produced. Destination tags
// which fields are meaningful: File/Locator/Bytes for the file
// destination, Records for the record store.
type Artifact struct {
	Destination Destination
	File        string
	Locator     string
	Bytes       int64
	Records     int
}

// Outcome is the terminal state of a run: a succeeded run carries the
// artifact, a failed run carries the failure message.
type Outcome struct {
	Succeeded bool
	Artifact  *Artifact
	Message   string
}

func succeeded(a *Artifact) Outcome { return Outcome{Succeeded: true, Artifact: a} }

func failed(err error) Outcome { return Outcome{Message: err.Error()} }

// Execute performs one run to completion. Runs are single-threaded:
// stages apply in order on the calling goroutine, and records go to the
// store one row at a time.
func Execute(ctx context.Context, req RunRequest, files FileStore, records RecordStore) Outcome {
	if err := ctx.Err(); err != nil {
		return failed(err)
	}

	rs, err := Read(req.Input, req.Format)
	if err != nil {
		return failed(err)
	}

	rs, err = Apply(rs, req.Config)
	if err != nil {
		return failed(err)
	}

	switch req.Destination {
	case DestinationFile:
		name := req.OutputName
		if name == "" {
			name = DefaultOutputName(req.PipelineID, req.RunID)
		}
		data, err := WriteCSV(rs)
		if err != nil {
			return failed(err)
		}
		locator, err := files.Store(ctx, name, data)
		if err != nil {
			return failed(err)
		}
		return succeeded(&Artifact{
			Destination: DestinationFile,
			File:        name,
			Locator:     locator,
			Bytes:       int64(len(data)),
		})

	case DestinationRecords:
		for _, row := range rs.Rows {
			if err := records.InsertRecord(ctx, req.PipelineID, req.RunID, recordFields(row, rs.Columns)); err != nil {
				return failed(err)
			}
		}
		return succeeded(&Artifact{
			Destination: DestinationRecords,
			Records:     len(rs.Rows),
		})

	default:
		return failed(fmt.Errorf("unknown destination '%s'", req.Destination))
	}
}

// DefaultOutputName is the artifact name used when a run does not specify
// one.
func DefaultOutputName(pipelineID, runID string) string {
	return fmt.Sprintf("pipeline_%s_run_%s.csv", pipelineID, runID)
}
