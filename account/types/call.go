package types

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Call describes one incoming call to the account: who is calling, which function they target, and which
// validation entity they assert should approve the call.
type Call struct {
	// Caller is the address the call originates from.
	Caller common.Address `json:"caller"`

	// Selector is the function selector the call targets.
	Selector Selector `json:"selector"`

	// Data is the call argument payload following the selector.
	Data []byte `json:"data"`

	// Value is the native token value attached to the call. A nil value is treated as zero.
	Value *uint256.Int `json:"value"`

	// Authorization is the caller-asserted validation entity. A zero value defers to the account's global
	// validation entity, if one is installed and the target selector permits it.
	Authorization ModuleEntity `json:"authorization"`
}

// ValueOrZero returns the call's attached value, substituting zero for nil.
func (c *Call) ValueOrZero() *uint256.Int {
	if c.Value == nil {
		return uint256.NewInt(0)
	}
	return c.Value
}

// String returns a compact human-readable representation of the call.
func (c *Call) String() string {
	return fmt.Sprintf("call %s from %s (auth %s, value %s, %d data bytes)",
		c.Selector, c.Caller.Hex(), c.Authorization, c.ValueOrZero(), len(c.Data))
}

// CallPhase identifies a stage of the dispatch state machine.
type CallPhase uint8

const (
	// PhaseResolveValidation resolves which validation entity governs the call.
	PhaseResolveValidation CallPhase = iota

	// PhaseRunPreHooks runs pre-validation hooks, runtime validation, and execution pre-hooks.
	PhaseRunPreHooks

	// PhaseRunTarget executes the target function through its owning module.
	PhaseRunTarget

	// PhaseRunPostHooks runs execution post-hooks in reverse registration order.
	PhaseRunPostHooks

	// PhaseDone is the terminal success state.
	PhaseDone

	// PhaseFailed is the terminal failure state; the result error carries the specific failure.
	PhaseFailed
)

// String returns the name of the phase.
func (p CallPhase) String() string {
	switch p {
	case PhaseResolveValidation:
		return "ResolveValidation"
	case PhaseRunPreHooks:
		return "RunPreHooks"
	case PhaseRunTarget:
		return "RunTarget"
	case PhaseRunPostHooks:
		return "RunPostHooks"
	case PhaseDone:
		return "Done"
	case PhaseFailed:
		return "Failed"
	default:
		return fmt.Sprintf("CallPhase(%d)", uint8(p))
	}
}

// TraceStepKind identifies the kind of step recorded in a DispatchTrace.
type TraceStepKind uint8

const (
	// TraceStepPhase records entry into a dispatch phase.
	TraceStepPhase TraceStepKind = iota

	// TraceStepValidationHook records invocation of a pre-validation hook.
	TraceStepValidationHook

	// TraceStepValidator records invocation of the resolved validation entity's runtime validation.
	TraceStepValidator

	// TraceStepPreExecHook records invocation of an execution pre-hook.
	TraceStepPreExecHook

	// TraceStepTarget records execution of the target function by its owning module.
	TraceStepTarget

	// TraceStepPostExecHook records invocation of an execution post-hook.
	TraceStepPostExecHook
)

// TraceStep is one recorded step of a dispatched call.
type TraceStep struct {
	// Kind identifies what the step records.
	Kind TraceStepKind

	// Phase is the dispatch phase the step occurred in. For TraceStepPhase it is the phase being entered.
	Phase CallPhase

	// Hook is the hook configuration invoked, for hook step kinds.
	Hook HookConfig

	// Entity is the validation entity invoked, for TraceStepValidator.
	Entity ModuleEntity

	// Module is the executing module, for TraceStepTarget.
	Module common.Address

	// Err is the error the step produced, if any.
	Err error
}

// DispatchTrace records the ordered steps taken while dispatching a call. It exists for observability: tests
// and scenario expectations use it to verify hook ordering and failure attribution.
type DispatchTrace struct {
	// Steps are the recorded steps, in execution order.
	Steps []TraceStep
}

// Add appends a step to the trace.
func (t *DispatchTrace) Add(step TraceStep) {
	t.Steps = append(t.Steps, step)
}

// HookInvocations returns the hook-invocation steps of the trace (validation hooks, execution pre-hooks, and
// execution post-hooks) in execution order, excluding phase markers, the validator, and the target.
func (t *DispatchTrace) HookInvocations() []TraceStep {
	invocations := make([]TraceStep, 0, len(t.Steps))
	for _, step := range t.Steps {
		switch step.Kind {
		case TraceStepValidationHook, TraceStepPreExecHook, TraceStepPostExecHook:
			invocations = append(invocations, step)
		}
	}
	return invocations
}

// String renders the trace as one line per step.
func (t *DispatchTrace) String() string {
	var b strings.Builder
	for i, step := range t.Steps {
		switch step.Kind {
		case TraceStepPhase:
			fmt.Fprintf(&b, "%d) enter %s", i+1, step.Phase)
		case TraceStepValidationHook:
			fmt.Fprintf(&b, "%d) pre-validation hook %s", i+1, step.Hook)
		case TraceStepValidator:
			fmt.Fprintf(&b, "%d) runtime validation %s", i+1, step.Entity)
		case TraceStepPreExecHook:
			fmt.Fprintf(&b, "%d) pre-execution hook %s", i+1, step.Hook)
		case TraceStepTarget:
			fmt.Fprintf(&b, "%d) execute via %s", i+1, step.Module.Hex())
		case TraceStepPostExecHook:
			fmt.Fprintf(&b, "%d) post-execution hook %s", i+1, step.Hook)
		}
		if step.Err != nil {
			fmt.Fprintf(&b, " -> error: %v", step.Err)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// CallResult is the outcome of one dispatched call.
type CallResult struct {
	// Output is the data returned by the target function, if it executed.
	Output []byte

	// Err is the specific error the call failed with, or nil if the call succeeded.
	Err error

	// Phase is the terminal phase the dispatch reached: PhaseDone or PhaseFailed.
	Phase CallPhase

	// FailedIn is the phase the failure occurred in, when Phase is PhaseFailed.
	FailedIn CallPhase

	// Trace is the ordered record of dispatch steps taken.
	Trace *DispatchTrace
}

// Succeeded indicates whether the call reached the Done state.
func (r *CallResult) Succeeded() bool {
	return r.Phase == PhaseDone
}
