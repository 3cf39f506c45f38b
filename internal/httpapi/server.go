package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"quantsim/internal/live"
	"quantsim/internal/store"
)

// StatusServer serves the live simulation model and the run history.
type StatusServer struct {
	model *live.Model
	runs  store.RunStore
	log   *slog.Logger
}

// NewStatusServer creates a status server. Either model or runs may be nil,
// in which case the routes backed by it answer 503.
func NewStatusServer(model *live.Model, runs store.RunStore, log *slog.Logger) *StatusServer {
	if log == nil {
		log = slog.Default().With("component", "httpapi")
	}
	return &StatusServer{model: model, runs: runs, log: log}
}

// RegisterRoutes registers all API routes on the given mux.
func (s *StatusServer) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/trades", s.handleTrades)
	mux.HandleFunc("GET /api/report", s.handleReport)
	mux.HandleFunc("GET /api/stream", s.handleStream)
	mux.HandleFunc("GET /api/runs", s.handleRuns)
	mux.HandleFunc("GET /api/runs/{id}", s.handleRun)
	mux.HandleFunc("GET /api/runs/{id}/events/{engine}", s.handleEvents)
}

// Handler returns an http.Handler with CORS middleware.
func (s *StatusServer) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return corsMiddleware(mux)
}

// Serve listens on addr until ctx is cancelled, then shuts down gracefully.
func (s *StatusServer) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.log.Info("status server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("status server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down status server: %w", err)
	}
	return nil
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// ---------------------------------------------------------------------------
// Live simulation
// ---------------------------------------------------------------------------

func (s *StatusServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if s.model == nil {
		writeError(w, http.StatusServiceUnavailable, "no simulation running")
		return
	}
	writeJSON(w, s.model.Snapshot())
}

func (s *StatusServer) handleTrades(w http.ResponseWriter, r *http.Request) {
	if s.model == nil {
		writeError(w, http.StatusServiceUnavailable, "no simulation running")
		return
	}
	writeJSON(w, s.model.RecentTrades())
}

func (s *StatusServer) handleReport(w http.ResponseWriter, r *http.Request) {
	if s.model == nil {
		writeError(w, http.StatusServiceUnavailable, "no simulation running")
		return
	}
	rep, ok := s.model.Report()
	if !ok {
		writeError(w, http.StatusNotFound, "simulation still running")
		return
	}
	writeJSON(w, convertReport(rep))
}

// handleStream sends the current snapshot, then every update, as
// server-sent events until the client disconnects or the run finishes.
func (s *StatusServer) handleStream(w http.ResponseWriter, r *http.Request) {
	if s.model == nil {
		writeError(w, http.StatusServiceUnavailable, "no simulation running")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	id, updates := s.model.Subscribe(64)
	defer s.model.Unsubscribe(id)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	snap := s.model.Snapshot()
	if err := writeEvent(w, "snapshot", snap); err != nil {
		return
	}
	flusher.Flush()
	if snap.Closed {
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case u, ok := <-updates:
			if !ok {
				return
			}
			if err := writeEvent(w, "update", u); err != nil {
				s.log.Debug("stream client gone", "error", err)
				return
			}
			flusher.Flush()
			if u.Snapshot.Closed {
				return
			}
		}
	}
}

func writeEvent(w http.ResponseWriter, name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data)
	return err
}

// ---------------------------------------------------------------------------
// Run history
// ---------------------------------------------------------------------------

func (s *StatusServer) handleRuns(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		writeError(w, http.StatusServiceUnavailable, "no run store configured")
		return
	}
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	runs, err := s.runs.ListRuns(r.Context(), limit)
	if err != nil {
		s.log.Error("listing runs", "error", err)
		writeError(w, http.StatusInternalServerError, "listing runs failed")
		return
	}
	out := make([]RunJSON, 0, len(runs))
	for _, run := range runs {
		out = append(out, convertRun(run))
	}
	writeJSON(w, out)
}

func (s *StatusServer) handleRun(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		writeError(w, http.StatusServiceUnavailable, "no run store configured")
		return
	}
	id := r.PathValue("id")
	results, err := s.runs.ListResults(r.Context(), id)
	if err != nil {
		s.log.Error("listing results", "run", id, "error", err)
		writeError(w, http.StatusInternalServerError, "listing results failed")
		return
	}
	if len(results) == 0 {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	out := make([]ResultJSON, 0, len(results))
	for _, res := range results {
		out = append(out, convertSummary(res.Rank, res.Summary, res.Trades, res.PercentChange, res.HasReturn))
	}
	writeJSON(w, out)
}

func (s *StatusServer) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		writeError(w, http.StatusServiceUnavailable, "no run store configured")
		return
	}
	id, engine := r.PathValue("id"), r.PathValue("engine")
	events, err := s.runs.ListEvents(r.Context(), id, engine)
	if err != nil {
		s.log.Error("listing events", "run", id, "engine", engine, "error", err)
		writeError(w, http.StatusInternalServerError, "listing events failed")
		return
	}
	writeJSON(w, convertEvents(events))
}
