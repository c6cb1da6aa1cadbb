package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/akarX23/iisc-deas-project-1/internal/config"
	"github.com/akarX23/iisc-deas-project-1/internal/web"
)

// Server is the operator console: a JSON config editor, a run trigger with
// live log streaming, and result/history views, all thin wiring over the
// store, orchestrator, and aggregator.
type Server struct {
	cfg        *config.Config
	batches    BatchService
	aggregator ResultsService
	history    HistoryReader
	logger     *slog.Logger
	mux        *http.ServeMux
	webHandler *web.Handler
}

func NewServer(cfg *config.Config, batches BatchService, agg ResultsService, history HistoryReader, logger *slog.Logger) *Server {
	s := &Server{
		cfg:        cfg,
		batches:    batches,
		aggregator: agg,
		history:    history,
		logger:     logger,
		mux:        http.NewServeMux(),
		webHandler: web.NewHandler(),
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.requestIDMiddleware(s.logMiddleware(s.mux))
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /api/configs", s.handleLoadConfigs)
	s.mux.HandleFunc("PUT /api/configs", s.handleSaveConfigs)
	s.mux.HandleFunc("POST /api/configs/validate", s.handleValidateConfigs)

	s.mux.HandleFunc("POST /api/runs", s.handleRunBatch)
	s.mux.HandleFunc("GET /api/runs", s.handleListRuns)

	s.mux.HandleFunc("GET /api/results", s.handleLoadResults)

	s.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Dashboard assets (must be last).
	s.mux.HandleFunc("GET /", s.webHandler.ServeStatic)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
