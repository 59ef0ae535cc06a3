// Package ops exposes the operator HTTP surface: pin inspection and
// rotation, failure-counter resets, queue counters. It never touches the
// API traffic path.
package ops

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

import (
	"github.com/gorilla/mux"
)

import (
	"github.com/LauraMoney42/derrite-go/internal/config"
	"github.com/LauraMoney42/derrite-go/internal/pinning"
	"github.com/LauraMoney42/derrite-go/internal/queue"
)

type RotateRequest struct {
	Hashes []string `json:"hashes"`
}

type Server struct {
	cfg      config.OpsCfg
	registry *pinning.Registry
	queue    *queue.Queue
	srv      *http.Server
}

func NewServer(cfg config.OpsCfg, registry *pinning.Registry, q *queue.Queue) *Server {
	return &Server{
		cfg:      cfg,
		registry: registry,
		queue:    q,
	}
}

func (s *Server) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/v1/pins", s.listPinsHandler).Methods(http.MethodGet)
	r.HandleFunc("/v1/pins/{host}", s.rotatePinsHandler).Methods(http.MethodPut)
	r.HandleFunc("/v1/pins/{host}/reset", s.resetFailuresHandler).Methods(http.MethodPost)
	r.HandleFunc("/v1/queue/stats", s.queueStatsHandler).Methods(http.MethodGet)
}

func (s *Server) ListenAndServe() error {
	r := mux.NewRouter()
	s.RegisterRoutes(r)
	s.srv = &http.Server{
		Addr:              s.cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s.srv.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

// ---------------- Handlers ----------------

func (s *Server) listPinsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.registry.Hosts())
}

func (s *Server) rotatePinsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	host := mux.Vars(r)["host"]

	var req RotateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if len(req.Hashes) == 0 {
		errResp(w, http.StatusBadRequest, "hashes is required")
		return
	}

	if err := s.registry.UpdateHashes(host, req.Hashes); err != nil {
		errResp(w, http.StatusBadRequest, "failed to rotate pins: "+err.Error())
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "success", "host": host})
}

func (s *Server) resetFailuresHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	host := mux.Vars(r)["host"]
	s.registry.ResetFailureCount(host)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "success", "host": host})
}

func (s *Server) queueStatsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.queue.Stats())
}

func errResp(w http.ResponseWriter, status int, msg string) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
