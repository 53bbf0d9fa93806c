package types

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Sentinel errors shared across the account core. More specific failures carry their own error types below so
// callers can inspect them with errors.As.
var (
	// ErrNullModule indicates an install or uninstall operation named the zero module address.
	ErrNullModule = errors.New("module address is null")

	// ErrNotAuthorized indicates the caller lacks the required relationship with the account, e.g. a runtime
	// call to a non-public validation association from an address that is not the account, its owner, or its
	// entry point.
	ErrNotAuthorized = errors.New("caller is not authorized")

	// ErrModuleNotBound indicates an operation referenced a module address with no module instance bound to it.
	ErrModuleNotBound = errors.New("no module bound at address")

	// ErrZeroSelector indicates an install named the zero selector, which is reserved as a sentinel and can
	// never be installed or associated.
	ErrZeroSelector = errors.New("the zero selector is reserved and cannot be installed")
)

// InvalidModuleIDError indicates a module identifier does not follow the "vendor.name.version" convention.
type InvalidModuleIDError struct {
	// ID is the offending module identifier.
	ID string

	// Reason describes what about the identifier was rejected.
	Reason string
}

func (e *InvalidModuleIDError) Error() string {
	return fmt.Sprintf("invalid module id %q: %s", e.ID, e.Reason)
}

// ExecutionFunctionAlreadySetError indicates an install tried to claim a selector that is already owned.
type ExecutionFunctionAlreadySetError struct {
	// Selector is the selector the install tried to claim.
	Selector Selector

	// Owner is the module currently owning the selector.
	Owner common.Address
}

func (e *ExecutionFunctionAlreadySetError) Error() string {
	return fmt.Sprintf("execution function %s is already owned by module %s", e.Selector, e.Owner.Hex())
}

// ModuleFunctionNotAllowedError indicates an install tried to claim a selector belonging to the module
// lifecycle interface itself.
type ModuleFunctionNotAllowedError struct {
	// Selector is the reserved selector the install tried to claim.
	Selector Selector
}

func (e *ModuleFunctionNotAllowedError) Error() string {
	return fmt.Sprintf("selector %s belongs to the module lifecycle interface and cannot be installed", e.Selector)
}

// Erc4337FunctionNotAllowedError indicates an install tried to claim one of the account-abstraction entry
// point's callback selectors. Allowing this would let a module impersonate the callback the trusted entry
// point expects to invoke.
type Erc4337FunctionNotAllowedError struct {
	// Selector is the reserved selector the install tried to claim.
	Selector Selector
}

func (e *Erc4337FunctionNotAllowedError) Error() string {
	return fmt.Sprintf("selector %s is an ERC-4337 entry point callback and cannot be installed", e.Selector)
}

// HookAlreadySetError indicates an install declared a hook configuration that is already registered for the
// same selector or validation entity.
type HookAlreadySetError struct {
	// Hook is the duplicate hook configuration.
	Hook HookConfig
}

func (e *HookAlreadySetError) Error() string {
	return fmt.Sprintf("hook %s is already registered", e.Hook)
}

// ValidationAlreadySetError indicates a selector-scoped validation install named a selector that is already
// associated with a different validation entity, which would make dispatch ambiguous.
type ValidationAlreadySetError struct {
	// Selector is the contested selector.
	Selector Selector

	// Entity is the validation entity currently associated with the selector.
	Entity ModuleEntity
}

func (e *ValidationAlreadySetError) Error() string {
	return fmt.Sprintf("selector %s is already associated with validation entity %s", e.Selector, e.Entity)
}

// GlobalValidationAlreadySetError indicates a global validation install found the global slot occupied by a
// different entity and the caller did not request replacement.
type GlobalValidationAlreadySetError struct {
	// Current is the validation entity currently holding the global slot.
	Current ModuleEntity
}

func (e *GlobalValidationAlreadySetError) Error() string {
	return fmt.Sprintf("global validation is already set to %s and replacement was not requested", e.Current)
}

// ValidationMissingError indicates a call asserted a validation entity that is not installed on the account.
type ValidationMissingError struct {
	// Entity is the asserted validation entity.
	Entity ModuleEntity
}

func (e *ValidationMissingError) Error() string {
	return fmt.Sprintf("validation entity %s is not installed", e.Entity)
}

// ValidationMismatchError indicates the asserted validation entity is installed but does not authorize the
// targeted selector.
type ValidationMismatchError struct {
	// Entity is the asserted validation entity.
	Entity ModuleEntity

	// Selector is the selector the entity does not authorize.
	Selector Selector
}

func (e *ValidationMismatchError) Error() string {
	return fmt.Sprintf("validation entity %s does not authorize selector %s", e.Entity, e.Selector)
}

// UnrecognizedFunctionError indicates a call targeted a selector no installed module owns.
type UnrecognizedFunctionError struct {
	// Selector is the unowned selector.
	Selector Selector
}

func (e *UnrecognizedFunctionError) Error() string {
	return fmt.Sprintf("no installed execution function for selector %s", e.Selector)
}

// NotExecutionModuleError indicates the module owning a selector does not implement the execution capability.
type NotExecutionModuleError struct {
	// Module is the owning module's address.
	Module common.Address
}

func (e *NotExecutionModuleError) Error() string {
	return fmt.Sprintf("module %s is not an execution module", e.Module.Hex())
}

// SignatureValidationNotAllowedError indicates a signature validation request named an entity that was not
// installed with signature validation enabled.
type SignatureValidationNotAllowedError struct {
	// Entity is the validation entity.
	Entity ModuleEntity
}

func (e *SignatureValidationNotAllowedError) Error() string {
	return fmt.Sprintf("validation entity %s is not a signature validator", e.Entity)
}

// InterfaceNotSupportedError indicates a module failed the capability query required for an install.
type InterfaceNotSupportedError struct {
	// Module is the module's address.
	Module common.Address

	// ID is the interface id the module failed to self-report support for.
	ID InterfaceID
}

func (e *InterfaceNotSupportedError) Error() string {
	return fmt.Sprintf("module %s does not support required interface %s", e.Module.Hex(), e.ID)
}

// HookFailureError indicates a pre- or post-hook rejected a dispatched call. It wraps the hook's own error.
type HookFailureError struct {
	// Hook is the hook configuration that failed.
	Hook HookConfig

	// Stage names the hook stage, e.g. "pre-validation", "pre-execution", or "post-execution".
	Stage string

	// Err is the error the hook produced.
	Err error
}

func (e *HookFailureError) Error() string {
	return fmt.Sprintf("%s hook %s failed: %v", e.Stage, e.Hook, e.Err)
}

func (e *HookFailureError) Unwrap() error {
	return e.Err
}

// ValidationFailedError indicates the resolved validation entity's own runtime validation rejected the call.
type ValidationFailedError struct {
	// Entity is the validation entity that rejected the call.
	Entity ModuleEntity

	// Err is the error the validator produced.
	Err error
}

func (e *ValidationFailedError) Error() string {
	return fmt.Sprintf("runtime validation by %s failed: %v", e.Entity, e.Err)
}

func (e *ValidationFailedError) Unwrap() error {
	return e.Err
}

// ExecutionRevertedError indicates the owning module's execution of the target function failed.
type ExecutionRevertedError struct {
	// Module is the executing module's address.
	Module common.Address

	// Selector is the executed selector.
	Selector Selector

	// Err is the error the module produced.
	Err error
}

func (e *ExecutionRevertedError) Error() string {
	return fmt.Sprintf("execution of %s by module %s reverted: %v", e.Selector, e.Module.Hex(), e.Err)
}

func (e *ExecutionRevertedError) Unwrap() error {
	return e.Err
}

// LifecycleCallbackError indicates a module's install lifecycle callback failed or panicked, rejecting the
// install. Uninstall callbacks never produce this error; their failures are insulated and reported as a
// boolean on the uninstall result instead.
type LifecycleCallbackError struct {
	// Module is the module's address.
	Module common.Address

	// Callback names the lifecycle entry point that failed, e.g. "onInstall".
	Callback string

	// Err is the error the callback produced, or a synthesized error if it panicked.
	Err error
}

func (e *LifecycleCallbackError) Error() string {
	return fmt.Sprintf("module %s lifecycle callback %s failed: %v", e.Module.Hex(), e.Callback, e.Err)
}

func (e *LifecycleCallbackError) Unwrap() error {
	return e.Err
}
