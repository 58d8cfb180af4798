package orchestrator

import "errors"

var (
	// ErrUnknownStrategy rejects task submission with a strategy outside
	// the parallel/sequential/balanced/adaptive/auto set.
	ErrUnknownStrategy = errors.New("unknown strategy")

	// ErrCyclicDependency means dependency grouping could not make
	// progress: some subtasks wait on each other (or on ids that do not
	// exist in the task).
	ErrCyclicDependency = errors.New("cyclic subtask dependencies")

	// ErrUnassignable marks a subtask with no capable idle agent. It is
	// a policy signal carried inside an ExecutionResult, never a fatal
	// fault.
	ErrUnassignable = errors.New("no capable idle agent")
)
