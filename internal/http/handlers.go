package httpapi

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/ride-tracker/internal/cancelflow"
	"github.com/example/ride-tracker/internal/ridesync"
	"github.com/example/ride-tracker/internal/smoother"
)

// Canceller submits a user-initiated cancellation. The cancellation flow
// implements it.
type Canceller interface {
	Cancel(ctx context.Context, reason string) error
}

// Server is the ops surface of the tracker process: health, metrics, a
// read-only view of the current sync state, and the cancel endpoint a
// host UI would call.
type Server struct {
	reconciler *ridesync.Reconciler
	smoother   *smoother.Smoother
	cancel     Canceller
	logger     *slog.Logger
	mux        *mux.Router
}

func NewServer(rec *ridesync.Reconciler, sm *smoother.Smoother, cancel Canceller, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{reconciler: rec, smoother: sm, cancel: cancel, logger: logger, mux: mux.NewRouter()}
	s.registerMiddleware()
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) }).Methods("GET")
	s.mux.Handle("/metrics", promhttp.Handler())
	s.mux.HandleFunc("/debug/ride", s.handleRide).Methods("GET")
	s.mux.HandleFunc("/debug/position", s.handlePosition).Methods("GET")
	s.mux.HandleFunc("/ride/cancel", s.handleCancel).Methods("POST")
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

func (s *Server) handleRide(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.reconciler.Snapshot()
	if !ok {
		http.Error(w, "no ride tracked yet", http.StatusNotFound)
		return
	}
	st := s.reconciler.State()
	resp := map[string]any{
		"snapshot":            snap,
		"last_applied_status": st.LastAppliedStatus,
		"last_update_at":      st.LastUpdateAt,
		"online":              st.Online,
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (s *Server) handlePosition(w http.ResponseWriter, r *http.Request) {
	if s.smoother == nil {
		http.Error(w, "smoothing disabled", http.StatusNotFound)
		return
	}
	pos, ok := s.smoother.Position()
	if !ok {
		http.Error(w, "no position yet", http.StatusNotFound)
		return
	}
	target, _ := s.smoother.Target()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"displayed": pos, "target": target})
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	if s.cancel == nil {
		http.Error(w, "cancellation not wired", http.StatusNotFound)
		return
	}
	var body struct {
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.cancel.Cancel(r.Context(), body.Reason); err != nil {
		if errors.Is(err, cancelflow.ErrInFlight) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		// Failure is retryable by the caller; nothing advanced locally.
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func newID() string { b := make([]byte, 8); _, _ = rand.Read(b); return hex.EncodeToString(b) }
