// Package ipc exposes the command surface over NATS request/reply. It
// maps operations one-to-one onto registry and orchestrator calls;
// parsing and transport only, no scheduling logic.
package ipc

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/mtzanidakis/apiary/internal/natsbus"
	"github.com/mtzanidakis/apiary/internal/orchestrator"
	"github.com/mtzanidakis/apiary/internal/swarm"
	"github.com/nats-io/nats.go"
)

type Request struct {
	Op      string          `json:"op"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type Response struct {
	OK     bool          `json:"ok"`
	Error  string        `json:"error,omitempty"`
	Swarm  *swarm.Swarm  `json:"swarm,omitempty"`
	Swarms []swarm.Swarm `json:"swarms,omitempty"`
	Agent  *swarm.Agent  `json:"agent,omitempty"`
	Agents []swarm.Agent `json:"agents,omitempty"`
	Task   *swarm.Task   `json:"task,omitempty"`
	Tasks  []swarm.Task  `json:"tasks,omitempty"`
}

type CreateSwarmRequest struct {
	Topology string `json:"topology"`
	Capacity int    `json:"capacity"`
}

type SwarmIDRequest struct {
	SwarmID string `json:"swarm_id"`
}

type SpawnAgentRequest struct {
	SwarmID      string   `json:"swarm_id"`
	Role         string   `json:"role"`
	Capabilities []string `json:"capabilities,omitempty"`
}

type RunTaskRequest struct {
	SwarmID     string `json:"swarm_id"`
	Description string `json:"description"`
	Priority    int    `json:"priority"`
	Strategy    string `json:"strategy,omitempty"`
}

type TaskIDRequest struct {
	TaskID string `json:"task_id"`
}

type Server struct {
	client   *natsbus.Client
	registry *swarm.Registry
	orch     *orchestrator.Orchestrator
	sub      *nats.Subscription
}

func NewServer(client *natsbus.Client, reg *swarm.Registry, orch *orchestrator.Orchestrator) *Server {
	return &Server{
		client:   client,
		registry: reg,
		orch:     orch,
	}
}

func (s *Server) Start() error {
	sub, err := s.client.Subscribe(natsbus.TopicIPC, s.handle)
	if err != nil {
		return err
	}
	s.sub = sub
	return nil
}

func (s *Server) Stop() {
	if s.sub != nil {
		_ = s.sub.Unsubscribe()
	}
}

func (s *Server) handle(msg *nats.Msg) {
	var req Request
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		respond(msg, Response{Error: "malformed request"})
		return
	}

	switch req.Op {
	case "create-swarm":
		var p CreateSwarmRequest
		if err := json.Unmarshal(req.Payload, &p); err != nil {
			respond(msg, Response{Error: "malformed payload"})
			return
		}
		sw, err := s.registry.CreateSwarm(swarm.Topology(p.Topology), p.Capacity)
		if err != nil {
			respond(msg, Response{Error: err.Error()})
			return
		}
		respond(msg, Response{OK: true, Swarm: &sw})

	case "destroy-swarm":
		var p SwarmIDRequest
		if err := json.Unmarshal(req.Payload, &p); err != nil {
			respond(msg, Response{Error: "malformed payload"})
			return
		}
		if err := s.registry.DestroySwarm(p.SwarmID); err != nil {
			respond(msg, Response{Error: err.Error()})
			return
		}
		respond(msg, Response{OK: true})

	case "spawn-agent":
		var p SpawnAgentRequest
		if err := json.Unmarshal(req.Payload, &p); err != nil {
			respond(msg, Response{Error: "malformed payload"})
			return
		}
		a, err := s.registry.Spawn(p.SwarmID, p.Role, p.Capabilities)
		if err != nil {
			respond(msg, Response{Error: err.Error()})
			return
		}
		respond(msg, Response{OK: true, Agent: &a})

	case "run-task":
		var p RunTaskRequest
		if err := json.Unmarshal(req.Payload, &p); err != nil {
			respond(msg, Response{Error: "malformed payload"})
			return
		}
		// Execution suspends on subtask work; run it off the
		// subscription callback so other commands stay responsive.
		go func() {
			task, err := s.orch.Run(context.Background(), orchestrator.TaskSpec{
				SwarmID:     p.SwarmID,
				Description: p.Description,
				Priority:    p.Priority,
				Strategy:    p.Strategy,
			})
			if err != nil {
				respond(msg, Response{Error: err.Error()})
				return
			}
			respond(msg, Response{OK: true, Task: &task})
		}()

	case "task-status":
		var p TaskIDRequest
		if err := json.Unmarshal(req.Payload, &p); err != nil {
			respond(msg, Response{Error: "malformed payload"})
			return
		}
		t, err := s.registry.GetTask(p.TaskID)
		if err != nil {
			respond(msg, Response{Error: err.Error()})
			return
		}
		respond(msg, Response{OK: true, Task: &t})

	case "swarm-status":
		var p SwarmIDRequest
		if len(req.Payload) > 0 {
			if err := json.Unmarshal(req.Payload, &p); err != nil {
				respond(msg, Response{Error: "malformed payload"})
				return
			}
		}
		if p.SwarmID == "" {
			respond(msg, Response{OK: true, Swarms: s.registry.ListSwarms()})
			return
		}
		sw, err := s.registry.GetSwarm(p.SwarmID)
		if err != nil {
			respond(msg, Response{Error: err.Error()})
			return
		}
		agents := s.registry.ListAgents(p.SwarmID)
		respond(msg, Response{OK: true, Swarm: &sw, Agents: agents})

	default:
		respond(msg, Response{Error: "unknown op: " + req.Op})
	}
}

func respond(msg *nats.Msg, resp Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		slog.Error("ipc response marshal failed", "error", err)
		return
	}
	if err := msg.Respond(data); err != nil {
		slog.Warn("ipc respond failed", "error", err)
	}
}
