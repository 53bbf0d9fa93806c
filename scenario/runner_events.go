package scenario

import (
	"github.com/chimera-eth/chimera/events"
	"github.com/google/uuid"
)

// RunStartedEvent describes an event where a scenario run begins execution.
type RunStartedEvent struct {
	// Runner represents the runner which began the run.
	Runner *Runner

	// RunID identifies the run which began.
	RunID uuid.UUID

	// Scenario represents the scenario the run will execute.
	Scenario *Scenario
}

// StepCompletedEvent describes an event where a single scenario step finished executing, whether or not its
// expectation held.
type StepCompletedEvent struct {
	// Runner represents the runner which executed the step.
	Runner *Runner

	// RunID identifies the run the step belongs to.
	RunID uuid.UUID

	// Result describes the executed step's outcome.
	Result *StepResult
}

// RunFinishedEvent describes an event where a scenario run reached a terminal state.
type RunFinishedEvent struct {
	// Runner represents the runner which finished the run.
	Runner *Runner

	// Report describes the finished run's outcome.
	Report *RunReport
}

// RunnerEvents defines event emitters for a Runner.
type RunnerEvents struct {
	// RunStarted emits events indicating a scenario run began execution.
	RunStarted events.EventEmitter[RunStartedEvent]

	// StepCompleted emits events indicating a scenario step finished executing.
	StepCompleted events.EventEmitter[StepCompletedEvent]

	// RunFinished emits events indicating a scenario run reached a terminal state.
	RunFinished events.EventEmitter[RunFinishedEvent]
}
