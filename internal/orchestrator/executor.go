package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/mtzanidakis/apiary/internal/swarm"
)

// Executor performs the actual work of one subtask. Implementations are
// opaque to the orchestrator: it only cares about success or failure and
// the returned payload.
type Executor interface {
	Execute(ctx context.Context, agent swarm.Agent, st swarm.Subtask) (string, error)
}

// SimulatedExecutor stands in for real job dispatch: it sleeps for the
// subtask's estimated duration (scaled) and reports success.
type SimulatedExecutor struct {
	// Scale multiplies estimated durations. Values below 1 speed up
	// simulated runs; zero or negative means 1.
	Scale float64
}

func (e *SimulatedExecutor) Execute(ctx context.Context, agent swarm.Agent, st swarm.Subtask) (string, error) {
	scale := e.Scale
	if scale <= 0 {
		scale = 1
	}
	d := time.Duration(float64(st.EstimatedDurationMs) * scale * float64(time.Millisecond))

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-timer.C:
	}

	return fmt.Sprintf("%s agent completed %s subtask", agent.Role, st.Type), nil
}
