package web

// handlers.go implements the pipeline API. Request and response documents
// are defined here as DTOs instead of exposing store types directly, so the
// wire format stays stable when the persistence shape changes.

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hey-granth/databridge/internal/engine"
	"github.com/hey-granth/databridge/internal/pipeline"
	"github.com/hey-granth/databridge/internal/store"
)

// createPipelineRequest is the POST /api/pipelines payload.
type createPipelineRequest struct {
	Name          string          `json:"name"`
	Configuration json.RawMessage `json:"configuration"`
}

// pipelineDoc is a pipeline definition on the wire.
type pipelineDoc struct {
	ID            uuid.UUID       `json:"id"`
	Name          string          `json:"name"`
	Configuration json.RawMessage `json:"configuration"`
	CreatedAt     time.Time       `json:"created_at"`
}

// runDoc is a run record on the wire. Status is pending, completed, or
// failed; the remaining fields are populated according to the destination
// and outcome.
type runDoc struct {
	ID            uuid.UUID  `json:"id"`
	PipelineID    uuid.UUID  `json:"pipeline_id"`
	Status        string     `json:"status"`
	Destination   string     `json:"destination"`
	InputFile     string     `json:"input_file"`
	InputChecksum string     `json:"input_checksum"`
	OutputFile    string     `json:"output_file,omitempty"`
	OutputBytes   int64      `json:"output_bytes,omitempty"`
	RecordCount   int64      `json:"record_count,omitempty"`
	ErrorMessage  string     `json:"error_message,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	FinishedAt    *time.Time `json:"finished_at,omitempty"`
}

func toPipelineDoc(p *store.Pipeline) pipelineDoc {
	return pipelineDoc{
		ID:            p.ID,
		Name:          p.Name,
		Configuration: p.Config,
		CreatedAt:     p.CreatedAt,
	}
}

func toRunDoc(r *store.Run) runDoc {
	return runDoc{
		ID:            r.ID,
		PipelineID:    r.PipelineID,
		Status:        r.Status,
		Destination:   r.Destination,
		InputFile:     r.InputFile,
		InputChecksum: r.InputChecksum,
		OutputFile:    r.OutputFile,
		OutputBytes:   r.OutputBytes,
		RecordCount:   r.RecordCount,
		ErrorMessage:  r.ErrorMessage,
		CreatedAt:     r.CreatedAt,
		FinishedAt:    r.FinishedAt,
	}
}

// pathID parses a UUID path parameter, writing a 404 on failure. A
// malformed ID can never name an existing resource, so it reads the same
// as an unknown one.
func pathID(w http.ResponseWriter, r *http.Request, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		respondError(w, http.StatusNotFound, "HTTP_404", "Not found.", nil)
		return uuid.Nil, false
	}
	return id, true
}

// handleCreatePipeline creates a pipeline definition
// @Summary Create a pipeline
// @Description Validate and store a reusable transformation pipeline
// @Tags pipelines
// @Accept json
// @Produce json
// @Param pipeline body createPipelineRequest true "Pipeline definition"
// @Success 201 {object} pipelineDoc
// @Failure 400 {object} errorEnvelope "Validation failed"
// @Router /pipelines [post]
func (s *Server) handleCreatePipeline(w http.ResponseWriter, r *http.Request) {
	var req createPipelineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", msgInvalidPayload, nil)
		return
	}

	p, err := s.service.CreatePipeline(r.Context(), req.Name, req.Configuration)
	if err != nil {
		respondServiceError(w, r, err, msgInvalidPayload)
		return
	}

	respondJSON(w, http.StatusCreated, toPipelineDoc(p))
}

// handleListPipelines lists pipeline definitions
// @Summary List pipelines
// @Tags pipelines
// @Produce json
// @Success 200 {array} pipelineDoc
// @Router /pipelines [get]
func (s *Server) handleListPipelines(w http.ResponseWriter, r *http.Request) {
	pipelines, err := s.service.ListPipelines(r.Context())
	if err != nil {
		respondServiceError(w, r, err, msgInvalidParams)
		return
	}

	docs := make([]pipelineDoc, len(pipelines))
	for i := range pipelines {
		docs[i] = toPipelineDoc(&pipelines[i])
	}
	respondJSON(w, http.StatusOK, docs)
}

// handleGetPipeline returns one pipeline definition
// @Summary Get a pipeline
// @Tags pipelines
// @Produce json
// @Param pipelineID path string true "Pipeline ID"
// @Success 200 {object} pipelineDoc
// @Failure 404 {object} errorEnvelope
// @Router /pipelines/{pipelineID} [get]
func (s *Server) handleGetPipeline(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "pipelineID")
	if !ok {
		return
	}

	p, err := s.service.GetPipeline(r.Context(), id)
	if err != nil {
		respondServiceError(w, r, err, msgInvalidParams)
		return
	}
	respondJSON(w, http.StatusOK, toPipelineDoc(p))
}

// handleDeletePipeline removes a pipeline and its runs
// @Summary Delete a pipeline
// @Tags pipelines
// @Param pipelineID path string true "Pipeline ID"
// @Success 204 "Deleted"
// @Failure 404 {object} errorEnvelope
// @Router /pipelines/{pipelineID} [delete]
func (s *Server) handleDeletePipeline(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "pipelineID")
	if !ok {
		return
	}

	if err := s.service.DeletePipeline(r.Context(), id); err != nil {
		respondServiceError(w, r, err, msgInvalidParams)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleListRuns lists the runs of a pipeline
// @Summary List runs
// @Tags runs
// @Produce json
// @Param pipelineID path string true "Pipeline ID"
// @Success 200 {array} runDoc
// @Failure 404 {object} errorEnvelope
// @Router /pipelines/{pipelineID}/runs [get]
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "pipelineID")
	if !ok {
		return
	}

	runs, err := s.service.ListRuns(r.Context(), id)
	if err != nil {
		respondServiceError(w, r, err, msgInvalidParams)
		return
	}

	docs := make([]runDoc, len(runs))
	for i := range runs {
		docs[i] = toRunDoc(&runs[i])
	}
	respondJSON(w, http.StatusOK, docs)
}

// handleRun executes a pipeline against an uploaded file
// @Summary Run a pipeline
// @Description Upload a CSV or Excel file and execute the pipeline against it synchronously. The response is the terminal run document, whether the run completed or failed.
// @Tags runs
// @Accept multipart/form-data
// @Produce json
// @Param pipelineID path string true "Pipeline ID"
// @Param file formData file true "Input file (.csv, .xls, .xlsx)"
// @Param destination formData string false "Output destination: csv (default) or database"
// @Param output_name formData string false "Artifact name for the csv destination"
// @Success 200 {object} runDoc
// @Failure 400 {object} errorEnvelope "Unsupported file type or invalid parameters"
// @Failure 404 {object} errorEnvelope
// @Router /pipelines/{pipelineID}/run [post]
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "pipelineID")
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Runs.MaxFileSize)

	// Small in-memory threshold; larger uploads spill to temp files that
	// FormFile reads back. The whole input is materialized either way.
	if err := r.ParseMultipartForm(10 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE",
				"The uploaded file exceeds the size limit.", nil)
			return
		}
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", msgInvalidParams,
			[]engine.FieldError{{Field: "file", Message: "Must be a multipart upload."}})
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", msgInvalidParams,
			[]engine.FieldError{{Field: "file", Message: "Required."}})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		respondServiceError(w, r, err, msgInvalidParams)
		return
	}

	run, err := s.service.Run(r.Context(), id, pipeline.RunInput{
		FileName:    header.Filename,
		Data:        data,
		Destination: r.FormValue("destination"),
		OutputName:  r.FormValue("output_name"),
	})
	if err != nil {
		respondServiceError(w, r, err, msgInvalidParams)
		return
	}

	respondJSON(w, http.StatusOK, toRunDoc(run))
}

// handleGetRun returns one run record
// @Summary Get a run
// @Tags runs
// @Produce json
// @Param runID path string true "Run ID"
// @Success 200 {object} runDoc
// @Failure 404 {object} errorEnvelope
// @Router /runs/{runID} [get]
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "runID")
	if !ok {
		return
	}

	run, err := s.service.GetRun(r.Context(), id)
	if err != nil {
		respondServiceError(w, r, err, msgInvalidParams)
		return
	}
	respondJSON(w, http.StatusOK, toRunDoc(run))
}

// handleDownload streams a run's output artifact
// @Summary Download a run artifact
// @Tags runs
// @Produce text/csv
// @Param runID path string true "Run ID"
// @Success 200 {file} file "CSV attachment"
// @Failure 404 {object} errorEnvelope "Unknown run, or the run has no output file"
// @Router /runs/{runID}/download [get]
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "runID")
	if !ok {
		return
	}

	run, f, err := s.service.OpenArtifact(r.Context(), id)
	if err != nil {
		respondServiceError(w, r, err, msgInvalidParams)
		return
	}
	defer f.Close()

	// The stored locator is outputs/<run-id>/<name>; only the name is the
	// client's business.
	name := path.Base(run.OutputFile)
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	http.ServeContent(w, r, name, run.CreatedAt, f)
}

// healthDoc is the GET /health response.
type healthDoc struct {
	Status string       `json:"status"`
	Runner runnerStatus `json:"runner"`
}

type runnerStatus struct {
	ActiveRuns int `json:"active_runs"`
	Capacity   int `json:"capacity"`
}

// handleHealth reports liveness and store connectivity
// @Summary Health check
// @Tags meta
// @Produce json
// @Success 200 {object} healthDoc
// @Failure 503 {object} healthDoc "Store unreachable"
// @Router /health [get]
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ls := s.service.RunnerStatus()
	doc := healthDoc{
		Status: "ok",
		Runner: runnerStatus{ActiveRuns: ls.Active, Capacity: ls.MaxConcurrent},
	}

	if err := s.service.Ping(r.Context()); err != nil {
		doc.Status = "degraded"
		respondJSON(w, http.StatusServiceUnavailable, doc)
		return
	}
	respondJSON(w, http.StatusOK, doc)
}

// handleLanding serves a minimal landing page pointing at the API docs.
func (s *Server) handleLanding(w http.ResponseWriter, r *http.Request) {
	landingHandler.ServeHTTP(w, r)
}
