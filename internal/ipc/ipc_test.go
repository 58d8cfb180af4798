package ipc

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/mtzanidakis/apiary/internal/config"
	"github.com/mtzanidakis/apiary/internal/natsbus"
	"github.com/mtzanidakis/apiary/internal/orchestrator"
	"github.com/mtzanidakis/apiary/internal/swarm"
)

type testHarness struct {
	client   *natsbus.Client
	registry *swarm.Registry
}

func newTestHarness(t *testing.T) *testHarness {
	t.Helper()

	bus, err := natsbus.New(config.NATSConfig{Port: 0, DataDir: t.TempDir()})
	if err != nil {
		t.Fatalf("create bus: %v", err)
	}
	t.Cleanup(bus.Close)

	client, err := natsbus.NewClient(bus)
	if err != nil {
		t.Fatalf("create client: %v", err)
	}
	t.Cleanup(client.Close)

	reg := swarm.NewRegistry(nil, nil)
	orch := orchestrator.New(reg, &orchestrator.SimulatedExecutor{Scale: 0.001}, nil, swarm.StrategyAuto)

	srv := NewServer(client, reg, orch)
	if err := srv.Start(); err != nil {
		t.Fatalf("start ipc server: %v", err)
	}
	t.Cleanup(srv.Stop)

	return &testHarness{client: client, registry: reg}
}

func (h *testHarness) request(t *testing.T, op string, payload any) Response {
	t.Helper()

	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	data, _ := json.Marshal(Request{Op: op, Payload: raw})

	msg, err := h.client.Request(natsbus.TopicIPC, data, 10*time.Second)
	if err != nil {
		t.Fatalf("request %s: %v", op, err)
	}

	var resp Response
	if err := json.Unmarshal(msg.Data, &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	return resp
}

func TestSwarmLifecycleOverIPC(t *testing.T) {
	h := newTestHarness(t)

	resp := h.request(t, "create-swarm", CreateSwarmRequest{Topology: "mesh", Capacity: 4})
	if !resp.OK || resp.Swarm == nil {
		t.Fatalf("create-swarm failed: %+v", resp)
	}
	swarmID := resp.Swarm.ID

	resp = h.request(t, "spawn-agent", SpawnAgentRequest{SwarmID: swarmID, Role: "coder"})
	if !resp.OK || resp.Agent == nil {
		t.Fatalf("spawn-agent failed: %+v", resp)
	}
	if resp.Agent.Role != "coder" {
		t.Errorf("expected coder, got %s", resp.Agent.Role)
	}

	resp = h.request(t, "swarm-status", SwarmIDRequest{SwarmID: swarmID})
	if !resp.OK || resp.Swarm == nil {
		t.Fatalf("swarm-status failed: %+v", resp)
	}
	if len(resp.Agents) != 1 {
		t.Errorf("expected 1 agent in status, got %d", len(resp.Agents))
	}

	// Without a swarm id the status op lists every swarm.
	resp = h.request(t, "swarm-status", struct{}{})
	if !resp.OK || len(resp.Swarms) != 1 {
		t.Fatalf("expected swarm listing, got %+v", resp)
	}

	resp = h.request(t, "destroy-swarm", SwarmIDRequest{SwarmID: swarmID})
	if !resp.OK {
		t.Fatalf("destroy-swarm failed: %+v", resp)
	}
	resp = h.request(t, "swarm-status", SwarmIDRequest{SwarmID: swarmID})
	if resp.OK || !strings.Contains(resp.Error, "not found") {
		t.Errorf("expected not found after destroy, got %+v", resp)
	}
}

func TestRunTaskOverIPC(t *testing.T) {
	h := newTestHarness(t)

	created := h.request(t, "create-swarm", CreateSwarmRequest{Topology: "star", Capacity: 4})
	if !created.OK {
		t.Fatalf("create-swarm failed: %+v", created)
	}
	swarmID := created.Swarm.ID
	h.request(t, "spawn-agent", SpawnAgentRequest{SwarmID: swarmID, Role: "coder"})
	h.request(t, "spawn-agent", SpawnAgentRequest{SwarmID: swarmID, Role: "tester"})

	resp := h.request(t, "run-task", RunTaskRequest{
		SwarmID:     swarmID,
		Description: "implement ping and test ping",
		Strategy:    "parallel",
	})
	if !resp.OK || resp.Task == nil {
		t.Fatalf("run-task failed: %+v", resp)
	}
	if resp.Task.Status != swarm.TaskCompleted {
		t.Errorf("expected completed task, got %s", resp.Task.Status)
	}
	if len(resp.Task.Results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(resp.Task.Results))
	}

	status := h.request(t, "task-status", TaskIDRequest{TaskID: resp.Task.ID})
	if !status.OK || status.Task.Status != swarm.TaskCompleted {
		t.Errorf("expected task-status to report completion, got %+v", status)
	}
}

func TestIPCRejectsUnknownOp(t *testing.T) {
	h := newTestHarness(t)

	resp := h.request(t, "self-destruct", struct{}{})
	if resp.OK || !strings.Contains(resp.Error, "unknown op") {
		t.Errorf("expected unknown op error, got %+v", resp)
	}
}

func TestIPCRejectsMalformedPayload(t *testing.T) {
	h := newTestHarness(t)

	data, _ := json.Marshal(Request{Op: "create-swarm", Payload: json.RawMessage(`"not an object"`)})
	msg, err := h.client.Request(natsbus.TopicIPC, data, 10*time.Second)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	var resp Response
	if err := json.Unmarshal(msg.Data, &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.OK || resp.Error == "" {
		t.Errorf("expected malformed payload error, got %+v", resp)
	}
}
