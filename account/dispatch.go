package account

import (
	"fmt"

	"github.com/chimera-eth/chimera/account/state"
	"github.com/chimera-eth/chimera/account/types"
	"github.com/ethereum/go-ethereum/common"
)

// enteredHook is one execution hook frame entered during the pre phase. Post-only hooks enter with a nil
// context; hooks with a pre phase carry the context their pre produced for the paired post.
type enteredHook struct {
	hook types.HookConfig
	ctx  []byte
}

// Call dispatches an incoming call through the account's validation and hook chains to the owning module,
// running the state machine ResolveValidation -> RunPreHooks -> RunTarget -> RunPostHooks -> Done/Failed.
// Execution hooks nest like try/finally frames: pre hooks run in registration order, post hooks in reverse,
// and a frame whose pre completed gets its post even when a later step fails. A post-hook failure makes the
// overall call fail even if the target succeeded; no partial success is observable.
//
// Dispatch itself never mutates the account's storage. Hooks and the target module may re-enter the account
// and mutate it through the install managers. The returned result carries the terminal phase, the specific
// error on failure, and a trace of every step taken. A CallDispatchedEvent is emitted after the terminal
// state is reached.
func (a *ModularAccount) Call(call *types.Call) *types.CallResult {
	trace := &types.DispatchTrace{}
	result := &types.CallResult{Trace: trace}
	a.dispatch(call, result, trace)

	if result.Succeeded() {
		trace.Add(types.TraceStep{Kind: types.TraceStepPhase, Phase: types.PhaseDone})
	} else {
		trace.Add(types.TraceStep{Kind: types.TraceStepPhase, Phase: types.PhaseFailed})
	}

	a.Events.CallDispatched.Publish(CallDispatchedEvent{Account: a, Call: call, Result: result})
	return result
}

// dispatch runs the call state machine, filling in the result.
func (a *ModularAccount) dispatch(call *types.Call, result *types.CallResult, trace *types.DispatchTrace) {
	// ResolveValidation: decide which validation entity governs this call.
	trace.Add(types.TraceStep{Kind: types.TraceStepPhase, Phase: types.PhaseResolveValidation})
	entity, public, err := a.resolveValidation(call)
	if err != nil {
		failResult(result, types.PhaseResolveValidation, err)
		return
	}

	// Non-public associations and global resolutions only accept calls originating from the account itself,
	// its owner, or its entry point.
	if !public && !a.isTrustedCaller(call.Caller) {
		failResult(result, types.PhaseResolveValidation, types.ErrNotAuthorized)
		return
	}

	view := a.storage.GetExecution(call.Selector)

	// RunPreHooks: the entity's pre-validation hooks, its runtime validation, then the selector's execution
	// pre hooks, failing closed before the target on the first rejection.
	trace.Add(types.TraceStep{Kind: types.TraceStepPhase, Phase: types.PhaseRunPreHooks})

	for _, hook := range a.storage.ValidationHooks(entity) {
		hookErr := a.runValidationHook(hook, call)
		trace.Add(types.TraceStep{Kind: types.TraceStepValidationHook, Phase: types.PhaseRunPreHooks, Hook: hook, Err: hookErr})
		if hookErr != nil {
			failResult(result, types.PhaseRunPreHooks, &types.HookFailureError{Hook: hook, Stage: "pre-validation", Err: hookErr})
			return
		}
	}

	if !view.SkipRuntimeValidation {
		validationErr := a.runRuntimeValidation(entity, call)
		trace.Add(types.TraceStep{Kind: types.TraceStepValidator, Phase: types.PhaseRunPreHooks, Entity: entity, Err: validationErr})
		if validationErr != nil {
			failResult(result, types.PhaseRunPreHooks, &types.ValidationFailedError{Entity: entity, Err: validationErr})
			return
		}
	}

	// Enter each execution hook frame in registration order. A pre failure unwinds the frames already
	// entered before failing the call; frames past the failure point are never entered and get no post.
	var entered []enteredHook
	for _, hook := range a.storage.ExecutionHooks(call.Selector) {
		var ctx []byte
		if hook.HasPre {
			var hookErr error
			ctx, hookErr = a.runPreExecutionHook(hook, call)
			trace.Add(types.TraceStep{Kind: types.TraceStepPreExecHook, Phase: types.PhaseRunPreHooks, Hook: hook, Err: hookErr})
			if hookErr != nil {
				a.runPostHooks(entered, trace)
				failResult(result, types.PhaseRunPreHooks, &types.HookFailureError{Hook: hook, Stage: "pre-execution", Err: hookErr})
				return
			}
		}
		entered = append(entered, enteredHook{hook: hook, ctx: ctx})
	}

	// RunTarget: execute through the owning module. A target failure still releases the entered hook frames
	// below before the call reports the failure.
	trace.Add(types.TraceStep{Kind: types.TraceStepPhase, Phase: types.PhaseRunTarget})
	output, targetErr := a.runTarget(view, call)
	result.Output = output
	trace.Add(types.TraceStep{Kind: types.TraceStepTarget, Phase: types.PhaseRunTarget, Module: view.Module, Err: targetErr})

	// RunPostHooks: release the entered frames in reverse registration order.
	trace.Add(types.TraceStep{Kind: types.TraceStepPhase, Phase: types.PhaseRunPostHooks})
	postErr := a.runPostHooks(entered, trace)

	// The target's failure takes precedence over a post-hook failure for error attribution; either one fails
	// the overall call.
	if targetErr != nil {
		failResult(result, types.PhaseRunTarget, targetErr)
		return
	}
	if postErr != nil {
		failResult(result, types.PhaseRunPostHooks, postErr)
		return
	}
	result.Phase = types.PhaseDone
}

// resolveValidation resolves the validation entity governing a call and whether the resolved association is
// public. A zero asserted entity defers to the account's global validation entity. A global entity (asserted
// or deferred to) requires the target selector to allow global validation; a non-global entity requires an
// explicit association with the selector.
func (a *ModularAccount) resolveValidation(call *types.Call) (types.ModuleEntity, bool, error) {
	entity := call.Authorization
	if entity.IsZero() {
		global := a.storage.GlobalValidation()
		if global.IsZero() {
			return types.ModuleEntity{}, false, &types.ValidationMissingError{Entity: entity}
		}
		entity = global
	}

	view := a.storage.GetValidation(entity)
	if !view.Exists {
		return types.ModuleEntity{}, false, &types.ValidationMissingError{Entity: entity}
	}

	if view.IsGlobal {
		if !a.storage.GetExecution(call.Selector).AllowGlobalValidation {
			return types.ModuleEntity{}, false, &types.ValidationMismatchError{Entity: entity, Selector: call.Selector}
		}
		// Global resolutions are never public; the caller policy always applies.
		return entity, false, nil
	}

	public, associated := a.storage.SelectorPublic(entity, call.Selector)
	if !associated {
		return types.ModuleEntity{}, false, &types.ValidationMismatchError{Entity: entity, Selector: call.Selector}
	}
	return entity, public, nil
}

// isTrustedCaller indicates whether an address may use non-public validation associations: the account
// itself, its owner, or its entry point.
func (a *ModularAccount) isTrustedCaller(caller common.Address) bool {
	return caller == a.address || caller == a.owner || caller == a.entryPoint
}

// runValidationHook invokes one pre-validation hook, resolving its module.
func (a *ModularAccount) runValidationHook(hook types.HookConfig, call *types.Call) error {
	hookModule, ok := a.modules[hook.Module].(types.ValidationHookModule)
	if !ok {
		return fmt.Errorf("%w: %s is not a validation hook module", types.ErrModuleNotBound, hook.Module.Hex())
	}
	return hookModule.PreValidationHook(hook.Entity, call)
}

// runRuntimeValidation invokes the resolved entity's own runtime validation.
func (a *ModularAccount) runRuntimeValidation(entity types.ModuleEntity, call *types.Call) error {
	validator, ok := a.modules[entity.Module].(types.ValidationModule)
	if !ok {
		return fmt.Errorf("%w: %s is not a validation module", types.ErrModuleNotBound, entity.Module.Hex())
	}
	return validator.ValidateRuntime(a, entity.Entity, call)
}

// runPreExecutionHook invokes one execution pre hook, returning the context for its paired post.
func (a *ModularAccount) runPreExecutionHook(hook types.HookConfig, call *types.Call) ([]byte, error) {
	hookModule, ok := a.modules[hook.Module].(types.ExecutionHookModule)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not an execution hook module", types.ErrModuleNotBound, hook.Module.Hex())
	}
	return hookModule.PreExecutionHook(hook.Entity, call)
}

// runTarget executes the call through the selector's owning module.
func (a *ModularAccount) runTarget(view state.ExecutionView, call *types.Call) ([]byte, error) {
	if !view.IsSet() {
		return nil, &types.UnrecognizedFunctionError{Selector: call.Selector}
	}
	module, bound := a.modules[view.Module]
	if !bound {
		return nil, fmt.Errorf("%w: %s", types.ErrModuleNotBound, view.Module.Hex())
	}
	executor, ok := module.(types.ExecutionModule)
	if !ok {
		return nil, &types.NotExecutionModuleError{Module: view.Module}
	}
	output, err := executor.ExecuteCall(a, call)
	if err != nil {
		return output, &types.ExecutionRevertedError{Module: view.Module, Selector: call.Selector, Err: err}
	}
	return output, nil
}

// runPostHooks releases entered execution hook frames in reverse order, invoking the post phase of each
// frame whose hook declares one. All posts run even if one fails; the first failure is returned for error
// attribution and later failures remain visible in the trace.
func (a *ModularAccount) runPostHooks(entered []enteredHook, trace *types.DispatchTrace) error {
	var firstErr error
	for i := len(entered) - 1; i >= 0; i-- {
		frame := entered[i]
		if !frame.hook.HasPost {
			continue
		}

		var hookErr error
		hookModule, ok := a.modules[frame.hook.Module].(types.ExecutionHookModule)
		if !ok {
			hookErr = fmt.Errorf("%w: %s is not an execution hook module", types.ErrModuleNotBound, frame.hook.Module.Hex())
		} else {
			hookErr = hookModule.PostExecutionHook(frame.hook.Entity, frame.ctx)
		}
		trace.Add(types.TraceStep{Kind: types.TraceStepPostExecHook, Phase: types.PhaseRunPostHooks, Hook: frame.hook, Err: hookErr})
		if hookErr != nil && firstErr == nil {
			firstErr = &types.HookFailureError{Hook: frame.hook, Stage: "post-execution", Err: hookErr}
		}
	}
	return firstErr
}

// failResult marks a result failed in the given phase with the given error.
func failResult(result *types.CallResult, failedIn types.CallPhase, err error) {
	result.Phase = types.PhaseFailed
	result.FailedIn = failedIn
	result.Err = err
}

// ValidateSignature routes a signature validation request to the entity's module. The entity must have been
// installed with signature validation enabled.
func (a *ModularAccount) ValidateSignature(entity types.ModuleEntity, digest common.Hash, signature []byte) error {
	view := a.storage.GetValidation(entity)
	if !view.Exists {
		return &types.ValidationMissingError{Entity: entity}
	}
	if !view.IsSignatureValidation {
		return &types.SignatureValidationNotAllowedError{Entity: entity}
	}
	validator, ok := a.modules[entity.Module].(types.ValidationModule)
	if !ok {
		return fmt.Errorf("%w: %s is not a validation module", types.ErrModuleNotBound, entity.Module.Hex())
	}
	return validator.ValidateSignature(entity.Entity, digest, signature)
}
