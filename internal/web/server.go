// Package web serves the HTTP API and relays lifecycle events to
// WebSocket clients. It is a thin mapping layer over the registry and
// orchestrator.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/mtzanidakis/apiary/internal/config"
	"github.com/mtzanidakis/apiary/internal/natsbus"
	"github.com/mtzanidakis/apiary/internal/orchestrator"
	"github.com/mtzanidakis/apiary/internal/schedule"
	"github.com/mtzanidakis/apiary/internal/store"
	"github.com/mtzanidakis/apiary/internal/swarm"
	"github.com/nats-io/nats.go"
)

type Server struct {
	registry *swarm.Registry
	orch     *orchestrator.Orchestrator
	db       *store.Store
	nats     *natsbus.Client
	hub      *Hub
	cfg      config.WebConfig
}

func NewServer(reg *swarm.Registry, orch *orchestrator.Orchestrator, db *store.Store, natsClient *natsbus.Client, cfg config.WebConfig) *Server {
	return &Server{
		registry: reg,
		orch:     orch,
		db:       db,
		nats:     natsClient,
		hub:      NewHub(),
		cfg:      cfg,
	}
}

func (s *Server) Start(ctx context.Context) error {
	go s.hub.Run(ctx)
	s.subscribeEvents()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/swarms", s.handleListSwarms)
	mux.HandleFunc("POST /api/swarms", s.handleCreateSwarm)
	mux.HandleFunc("GET /api/swarms/{id}", s.handleSwarmStatus)
	mux.HandleFunc("DELETE /api/swarms/{id}", s.handleDestroySwarm)
	mux.HandleFunc("POST /api/swarms/{id}/agents", s.handleSpawnAgent)
	mux.HandleFunc("GET /api/tasks", s.handleListTasks)
	mux.HandleFunc("POST /api/tasks", s.handleRunTask)
	mux.HandleFunc("GET /api/tasks/{id}", s.handleTaskStatus)
	mux.HandleFunc("GET /api/metrics", s.handleMetrics)
	mux.HandleFunc("GET /api/roles", s.handleRoles)
	mux.HandleFunc("GET /api/schedules", s.handleListSchedules)
	mux.HandleFunc("POST /api/schedules", s.handleCreateSchedule)
	mux.HandleFunc("POST /api/schedules/{id}/pause", s.handlePauseSchedule)
	mux.HandleFunc("POST /api/schedules/{id}/resume", s.handleResumeSchedule)
	mux.HandleFunc("DELETE /api/schedules/{id}", s.handleDeleteSchedule)
	mux.HandleFunc("GET /api/memory", s.handleListMemory)
	mux.HandleFunc("GET /api/memory/{key}", s.handleGetMemory)
	mux.HandleFunc("PUT /api/memory/{key}", s.handlePutMemory)
	mux.HandleFunc("/api/ws", s.handleWebSocket)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", s.cfg.Port),
		Handler: s.auth(mux),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// auth enforces a bearer token when one is configured.
func (s *Server) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.Auth != "" && r.Header.Get("Authorization") != "Bearer "+s.cfg.Auth {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// subscribeEvents relays the NATS event stream to WebSocket clients.
func (s *Server) subscribeEvents() {
	if s.nats == nil {
		return
	}
	_, err := s.nats.Subscribe(natsbus.TopicEventsAll, func(msg *nats.Msg) {
		s.hub.Broadcast(json.RawMessage(msg.Data))
	})
	if err != nil {
		slog.Warn("event subscription failed", "error", err)
	}
}

func (s *Server) handleListSwarms(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.registry.ListSwarms())
}

func (s *Server) handleCreateSwarm(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Topology string `json:"topology"`
		Capacity int    `json:"capacity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return
	}
	sw, err := s.registry.CreateSwarm(swarm.Topology(req.Topology), req.Capacity)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sw)
}

func (s *Server) handleSwarmStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	sw, err := s.registry.GetSwarm(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"swarm":  sw,
		"agents": s.registry.ListAgents(id),
	})
}

func (s *Server) handleDestroySwarm(w http.ResponseWriter, r *http.Request) {
	if err := s.registry.DestroySwarm(r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSpawnAgent(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Role         string   `json:"role"`
		Capabilities []string `json:"capabilities,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return
	}
	a, err := s.registry.Spawn(r.PathValue("id"), req.Role, req.Capabilities)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.registry.ListTasks())
}

func (s *Server) handleRunTask(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SwarmID     string `json:"swarm_id"`
		Description string `json:"description"`
		Priority    int    `json:"priority"`
		Strategy    string `json:"strategy,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return
	}
	task, err := s.orch.Run(r.Context(), orchestrator.TaskSpec{
		SwarmID:     req.SwarmID,
		Description: req.Description,
		Priority:    req.Priority,
		Strategy:    req.Strategy,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) handleTaskStatus(w http.ResponseWriter, r *http.Request) {
	t, err := s.registry.GetTask(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.orch.Metrics())
}

func (s *Server) handleRoles(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, swarm.KnownRoles())
}

func (s *Server) handleListSchedules(w http.ResponseWriter, r *http.Request) {
	schedules, err := s.db.ListSchedules()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, schedules)
}

func (s *Server) handleCreateSchedule(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SwarmID     string `json:"swarm_id"`
		Name        string `json:"name"`
		Schedule    string `json:"schedule"`
		Description string `json:"description"`
		Strategy    string `json:"strategy,omitempty"`
		Priority    int    `json:"priority"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return
	}
	if _, err := s.registry.GetSwarm(req.SwarmID); err != nil {
		writeError(w, err)
		return
	}
	if _, err := orchestrator.ParseStrategy(req.Strategy); err != nil {
		writeError(w, err)
		return
	}
	normalized, err := schedule.Normalize(req.Schedule)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	sc := &store.Schedule{
		ID:          uuid.New().String(),
		SwarmID:     req.SwarmID,
		Name:        req.Name,
		Schedule:    normalized,
		Description: req.Description,
		Strategy:    req.Strategy,
		Priority:    req.Priority,
		Status:      "active",
		NextRunAt:   schedule.NextRun(normalized),
	}
	if err := s.db.SaveSchedule(sc); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sc)
}

func (s *Server) handlePauseSchedule(w http.ResponseWriter, r *http.Request) {
	s.setScheduleStatus(w, r.PathValue("id"), "paused")
}

func (s *Server) handleResumeSchedule(w http.ResponseWriter, r *http.Request) {
	s.setScheduleStatus(w, r.PathValue("id"), "active")
}

func (s *Server) setScheduleStatus(w http.ResponseWriter, id, status string) {
	sc, err := s.db.GetSchedule(id)
	if err != nil {
		writeError(w, err)
		return
	}
	if sc == nil {
		http.Error(w, "schedule not found", http.StatusNotFound)
		return
	}
	if err := s.db.UpdateScheduleStatus(id, status); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteSchedule(w http.ResponseWriter, r *http.Request) {
	if err := s.db.DeleteSchedule(r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListMemory(w http.ResponseWriter, r *http.Request) {
	pattern := r.URL.Query().Get("pattern")
	if pattern == "" {
		pattern = "*"
	}
	entries, err := s.db.List(pattern)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleGetMemory(w http.ResponseWriter, r *http.Request) {
	value, ok, err := s.db.Get(r.PathValue("key"))
	if err != nil {
		writeError(w, err)
		return
	}
	if !ok {
		http.Error(w, "key not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"key": r.PathValue("key"), "value": value})
}

func (s *Server) handlePutMemory(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Value      string `json:"value"`
		TTLSeconds int    `json:"ttl_seconds,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return
	}
	ttl := time.Duration(req.TTLSeconds) * time.Second
	if err := s.db.Put(r.PathValue("key"), req.Value, ttl); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("response encode failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, swarm.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, swarm.ErrUnknownTopology),
		errors.Is(err, orchestrator.ErrUnknownStrategy),
		errors.Is(err, orchestrator.ErrCyclicDependency):
		status = http.StatusBadRequest
	}
	http.Error(w, err.Error(), status)
}
