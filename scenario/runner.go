package scenario

import (
	"math/big"
	"time"

	"github.com/chimera-eth/chimera/account"
	"github.com/chimera-eth/chimera/account/types"
	"github.com/chimera-eth/chimera/logging"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/google/uuid"
	"github.com/holiman/uint256"
	"github.com/looplab/fsm"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Run lifecycle states and the events transitioning between them.
const (
	// RunStatePending is the state of a run before any step executes.
	RunStatePending = "pending"

	// RunStateRunning is the state of a run while steps execute.
	RunStateRunning = "running"

	// RunStatePassed is the terminal state of a run whose every step expectation held.
	RunStatePassed = "passed"

	// RunStateFailed is the terminal state of a run with at least one failed step expectation.
	RunStateFailed = "failed"

	// RunStateErrored is the terminal state of a run aborted by a runner error, such as an unbindable module.
	RunStateErrored = "errored"
)

// StepResult describes the outcome of one executed scenario step.
type StepResult struct {
	// Index is the step's position within the scenario.
	Index int `json:"index"`

	// Op names the operation the step performed.
	Op string `json:"op"`

	// Passed indicates whether the step's expectation held.
	Passed bool `json:"passed"`

	// Error is the text of the error the operation itself produced, if any. An expected error still appears
	// here while Passed remains true.
	Error string `json:"error,omitempty"`

	// Failure is the text of the expectation mismatch, when Passed is false.
	Failure string `json:"failure,omitempty"`

	// Output is the data a call step returned, if any.
	Output hexutil.Bytes `json:"output,omitempty"`

	// CallbackOK reports an uninstall step's lifecycle callback success flag, when applicable.
	CallbackOK *bool `json:"callbackOk,omitempty"`
}

// RunReport describes the complete outcome of one scenario run.
type RunReport struct {
	// RunID identifies the run.
	RunID uuid.UUID `json:"runId"`

	// Scenario is the executed scenario's name.
	Scenario string `json:"scenario"`

	// ScenarioHash is the digest of the executed scenario's content.
	ScenarioHash string `json:"scenarioHash"`

	// Status is the run's terminal lifecycle state.
	Status string `json:"status"`

	// Steps are the per-step outcomes, in execution order.
	Steps []*StepResult `json:"steps"`

	// Passed and Failed count the step expectation outcomes.
	Passed int `json:"passed"`
	Failed int `json:"failed"`

	// PassRate is the fraction of steps whose expectation held, in [0, 1].
	PassRate decimal.Decimal `json:"passRate"`

	// Duration is the run's wall-clock duration.
	Duration time.Duration `json:"duration"`
}

// Runner executes scenarios against fresh simulated accounts, checking each step's expectation and
// journaling the account's audit trail.
type Runner struct {
	// journal is the optional persistent journal runs are recorded to.
	journal *Journal

	// lifecycle tracks the current run's state. Transitions out of a terminal state are rejected, so a run
	// cannot be finished twice.
	lifecycle *fsm.FSM

	// Events defines the event emitters the runner publishes run progress through.
	Events RunnerEvents

	// logger is the runner's sub-logger.
	logger *logging.Logger
}

// NewRunner creates a Runner. A nil journal disables persistence.
func NewRunner(journal *Journal) *Runner {
	return &Runner{
		journal: journal,
		logger:  logging.GlobalLogger.NewSubLogger("module", "runner"),
	}
}

// newLifecycle creates the state machine governing one run.
func newLifecycle() *fsm.FSM {
	return fsm.NewFSM(
		RunStatePending,
		fsm.Events{
			{Name: "start", Src: []string{RunStatePending}, Dst: RunStateRunning},
			{Name: "pass", Src: []string{RunStateRunning}, Dst: RunStatePassed},
			{Name: "fail", Src: []string{RunStateRunning}, Dst: RunStateFailed},
			{Name: "error", Src: []string{RunStatePending, RunStateRunning}, Dst: RunStateErrored},
		},
		fsm.Callbacks{},
	)
}

// Run executes a scenario from start to finish and returns its report. Steps whose expectation fails do not
// stop the run; later steps still execute so a report covers the whole scenario. A non-nil error is returned
// only for runner-level failures (an invalid scenario, an unbindable module, a journal write failure), in
// which case the run is marked errored.
func (r *Runner) Run(s *Scenario) (*RunReport, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	scenarioHash, err := s.Hash()
	if err != nil {
		return nil, err
	}

	runID := uuid.New()
	r.lifecycle = newLifecycle()
	startTime := time.Now()
	report := &RunReport{
		RunID:        runID,
		Scenario:     s.Name,
		ScenarioHash: scenarioHash.Hex(),
	}

	// Open the journal entry before any step executes, so even an aborted run leaves a trace.
	if r.journal != nil {
		if err = r.journal.BeginRun(runID, s.Name, scenarioHash); err != nil {
			return nil, r.abortRun(report, startTime, err)
		}
	}

	// Construct the account and bind the scenario's modules.
	acct := account.NewModularAccount(s.Account.Address, s.Account.Owner, s.Account.EntryPoint)
	env := &ModuleEnv{Log: NewInvocationLog()}
	for _, binding := range s.Modules {
		module, bindErr := NewModule(binding.Kind, binding.Params, env)
		if bindErr != nil {
			return nil, r.abortRun(report, startTime, bindErr)
		}
		if bindErr = acct.BindModule(binding.Address, module); bindErr != nil {
			return nil, r.abortRun(report, startTime, bindErr)
		}
	}

	// Journal the account's audit-trail events as they happen.
	if r.journal != nil {
		r.subscribeAuditTrail(acct, runID)
	}

	if err = r.lifecycle.Event("start"); err != nil {
		return nil, r.abortRun(report, startTime, errors.WithStack(err))
	}
	r.logger.Info("Run started for scenario '", s.Name, "' with ", len(s.Steps), " step(s)")
	r.Events.RunStarted.Publish(RunStartedEvent{Runner: r, RunID: runID, Scenario: s})

	// Execute every step, checking each expectation. Failed expectations are recorded and the run continues.
	for i := range s.Steps {
		result := r.executeStep(acct, i, &s.Steps[i])
		report.Steps = append(report.Steps, result)
		if result.Passed {
			report.Passed++
		} else {
			report.Failed++
			r.logger.Error("Step ", i, " (", result.Op, ") failed its expectation: ", result.Failure)
		}

		if r.journal != nil {
			if err = r.journal.Record(runID, "step", result); err != nil {
				return nil, r.abortRun(report, startTime, err)
			}
		}
		r.Events.StepCompleted.Publish(StepCompletedEvent{Runner: r, RunID: runID, Result: result})
	}

	// Settle the terminal state and finish the report.
	if report.Failed > 0 {
		err = r.lifecycle.Event("fail")
	} else {
		err = r.lifecycle.Event("pass")
	}
	if err != nil {
		return nil, r.abortRun(report, startTime, errors.WithStack(err))
	}

	report.Status = r.lifecycle.Current()
	report.Duration = time.Since(startTime)
	report.PassRate = passRate(report.Passed, len(report.Steps))

	if r.journal != nil {
		if err = r.journal.FinishRun(runID, report.Status, report.Passed, report.Failed); err != nil {
			return nil, err
		}
	}

	r.logger.Info("Run ", report.Status, ": ", report.Passed, "/", len(report.Steps), " step(s) passed")
	r.Events.RunFinished.Publish(RunFinishedEvent{Runner: r, Report: report})
	return report, nil
}

// abortRun transitions the run to the errored state, finishes its journal entry, and returns the cause.
func (r *Runner) abortRun(report *RunReport, startTime time.Time, cause error) error {
	// Terminal states reject further transitions; ignore that error, the cause matters more.
	_ = r.lifecycle.Event("error")
	report.Status = RunStateErrored
	report.Duration = time.Since(startTime)
	if r.journal != nil {
		if err := r.journal.FinishRun(report.RunID, RunStateErrored, report.Passed, report.Failed); err != nil {
			r.logger.Error("Failed to journal the errored run", err)
		}
	}
	return cause
}

// passRate computes the fraction of passed steps, tolerating an empty scenario.
func passRate(passed int, total int) decimal.Decimal {
	if total == 0 {
		return decimal.NewFromInt(1)
	}
	return decimal.NewFromInt(int64(passed)).Div(decimal.NewFromInt(int64(total)))
}

// subscribeAuditTrail journals the account's audit-trail events for a run.
func (r *Runner) subscribeAuditTrail(acct *account.ModularAccount, runID uuid.UUID) {
	record := func(kind string, payload any) {
		if err := r.journal.Record(runID, kind, payload); err != nil {
			r.logger.Error("Failed to journal an account event", err)
		}
	}
	acct.Events.ExecutionInstalled.Subscribe(func(event account.ExecutionInstalledEvent) {
		record("executionInstalled", map[string]any{
			"module": event.Module,
		})
	})
	acct.Events.ExecutionUninstalled.Subscribe(func(event account.ExecutionUninstalledEvent) {
		record("executionUninstalled", map[string]any{
			"module":            event.Module,
			"callbackSucceeded": event.CallbackSucceeded,
		})
	})
	acct.Events.ValidationInstalled.Subscribe(func(event account.ValidationInstalledEvent) {
		record("validationInstalled", map[string]any{
			"module": event.Module,
			"entity": event.Entity,
		})
	})
	acct.Events.ValidationUninstalled.Subscribe(func(event account.ValidationUninstalledEvent) {
		record("validationUninstalled", map[string]any{
			"module":            event.Module,
			"entity":            event.Entity,
			"callbackSucceeded": event.CallbackSucceeded,
		})
	})
	acct.Events.CallDispatched.Subscribe(func(event account.CallDispatchedEvent) {
		record("callDispatched", map[string]any{
			"caller":    event.Call.Caller,
			"selector":  event.Call.Selector.String(),
			"succeeded": event.Result.Succeeded(),
		})
	})
}

// executeStep performs one step's operation and checks its expectation.
func (r *Runner) executeStep(acct *account.ModularAccount, index int, step *Step) *StepResult {
	result := &StepResult{Index: index, Op: step.Op}

	// Perform the operation. Call steps additionally produce output; uninstall steps additionally produce a
	// lifecycle callback success flag.
	var stepErr error
	switch step.Op {
	case OpInstallExecution:
		stepErr = acct.InstallExecution(step.Module, step.ExecutionManifest, step.Data)
	case OpUninstallExecution:
		var callbackOK bool
		callbackOK, stepErr = acct.UninstallExecution(step.Module, step.ExecutionManifest, step.Data)
		if stepErr == nil {
			result.CallbackOK = &callbackOK
		}
	case OpInstallValidation:
		stepErr = acct.InstallValidation(step.Module, step.Entity, step.ValidationManifest, step.Data, step.ReplaceGlobal)
	case OpUninstallValidation:
		var callbackOK bool
		callbackOK, stepErr = acct.UninstallValidation(step.Module, step.Entity, step.Data)
		if stepErr == nil {
			result.CallbackOK = &callbackOK
		}
	case OpCall:
		callResult := acct.Call(callFromSpec(step.Call))
		result.Output = callResult.Output
		stepErr = callResult.Err
	}

	if stepErr != nil {
		result.Error = stepErr.Error()
	}

	// Check the expectation against the outcome.
	if checkErr := step.Expect.Check(stepErr != nil, stepErr, result.Output, result.CallbackOK); checkErr != nil {
		result.Failure = checkErr.Error()
		return result
	}
	result.Passed = true
	return result
}

// callFromSpec converts a scenario call specification into the account's call type.
func callFromSpec(spec *CallSpec) *types.Call {
	call := &types.Call{
		Caller:        spec.Caller,
		Selector:      spec.Selector,
		Data:          spec.Data,
		Authorization: spec.Authorization,
	}
	if spec.Value != nil {
		call.Value, _ = uint256.FromBig((*big.Int)(spec.Value))
	}
	return call
}
