package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/akarX23/iisc-deas-project-1/internal/benchconfig"
	"github.com/akarX23/iisc-deas-project-1/internal/orchestrator"
)

type configRequest struct {
	Content string `json:"content"`
}

type configResponse struct {
	OK      bool   `json:"ok"`
	Status  string `json:"status"`
	Content string `json:"content"`
}

// handleLoadConfigs returns the saved configuration JSON (or the default
// array when none exists). Load never fails; parse problems surface as an
// error descriptor inside the content.
func (s *Server) handleLoadConfigs(w http.ResponseWriter, r *http.Request) {
	content := benchconfig.Load(s.cfg.ConfigFile)
	writeJSON(w, http.StatusOK, configResponse{OK: true, Content: content})
}

// handleValidateConfigs validates the posted JSON and, on success, writes the
// handoff file the lifecycle script consumes.
func (s *Server) handleValidateConfigs(w http.ResponseWriter, r *http.Request) {
	var req configRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeValidationError(w, "invalid json: "+err.Error())
		return
	}

	res := benchconfig.ValidateAndSave(req.Content, s.cfg.HandoffPath)
	writeJSON(w, http.StatusOK, configResponse{OK: res.OK, Status: res.Status, Content: res.JSON})
}

// handleSaveConfigs validates the posted JSON and persists it to the editable
// configuration file.
func (s *Server) handleSaveConfigs(w http.ResponseWriter, r *http.Request) {
	var req configRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeValidationError(w, "invalid json: "+err.Error())
		return
	}

	configs, err := benchconfig.Validate(req.Content)
	if err != nil {
		writeAPIError(w, err)
		return
	}
	if err := benchconfig.Save(s.cfg.ConfigFile, configs); err != nil {
		s.logger.Error("saving configs", "error", err)
		writeAPIError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, configResponse{
		OK:      true,
		Status:  fmt.Sprintf("saved %d configuration(s)", len(configs)),
		Content: benchconfig.Load(s.cfg.ConfigFile),
	})
}

// handleRunBatch validates the posted configuration and runs the batch,
// streaming progress as Server-Sent Events: one "log" event per output line,
// then a final "done" event carrying the batch result. A batch rejected
// before producing output (invalid configs, another batch still running)
// never opens the stream and comes back as a plain JSON error instead.
func (s *Server) handleRunBatch(w http.ResponseWriter, r *http.Request) {
	var req configRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeValidationError(w, "invalid json: "+err.Error())
		return
	}

	configs, err := benchconfig.Validate(req.Content)
	if err != nil {
		writeAPIError(w, err)
		return
	}

	stream, err := newSSEStream(w)
	if err != nil {
		writeValidationError(w, err.Error())
		return
	}

	// The orchestrator blocks until the lifecycle script exits; lines are
	// flushed to the client as they arrive from the same goroutine.
	result, err := s.batches.RunBatch(r.Context(), configs, func(line string) {
		stream.send("log", map[string]string{"line": line})
	})
	if err != nil {
		writeAPIError(w, err)
		return
	}

	if !result.OK {
		s.logger.Error("batch run failed", "batch_id", result.ID, "exit_code", result.ExitCode, "status", result.Status)
	}
	stream.send("done", doneEvent(result))
}

type donePayload struct {
	ID       string `json:"id"`
	OK       bool   `json:"ok"`
	Status   string `json:"status"`
	ExitCode int    `json:"exit_code"`
	Results  any    `json:"results,omitempty"`
	Rendered string `json:"rendered,omitempty"`
}

func doneEvent(result orchestrator.BatchResult) donePayload {
	p := donePayload{
		ID:       result.ID,
		OK:       result.OK,
		Status:   result.Status,
		ExitCode: result.ExitCode,
	}
	if result.Results != nil {
		p.Results = result.Results
		p.Rendered = result.Results.Render()
	}
	return p
}

// handleListRuns returns the recorded batch history, newest first.
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	batches, err := s.history.ListBatches()
	if err != nil {
		s.logger.Error("listing batches", "error", err)
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, batches)
}

// handleLoadResults aggregates results.csv files under the requested glob
// pattern (default from config).
func (s *Server) handleLoadResults(w http.ResponseWriter, r *http.Request) {
	pattern := r.URL.Query().Get("pattern")
	if pattern == "" {
		pattern = s.cfg.ResultsGlob
	}

	table, err := s.aggregator.Aggregate(pattern)
	if err != nil {
		writeAPIError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"columns":  table.Columns,
		"rows":     table.Rows,
		"rendered": table.Render(),
	})
}

// sseStream writes Server-Sent Events. The stream headers are committed on
// the first event, so a handler that has not sent anything yet can still fall
// back to a plain JSON error response.
type sseStream struct {
	w       http.ResponseWriter
	flusher http.Flusher
	started bool
}

func newSSEStream(w http.ResponseWriter) (*sseStream, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming not supported")
	}
	return &sseStream{w: w, flusher: flusher}, nil
}

func (s *sseStream) send(event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	if !s.started {
		h := s.w.Header()
		h.Set("Content-Type", "text/event-stream")
		h.Set("Cache-Control", "no-cache")
		h.Set("Connection", "keep-alive")
		h.Set("X-Accel-Buffering", "no")
		s.started = true
	}
	fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event, data)
	s.flusher.Flush()
}
