package types

import (
	"strings"

	"github.com/Masterminds/semver"
	"github.com/ethereum/go-ethereum/common"
)

// Interface ids for the capability contracts modules may implement. They are derived from the canonical
// function signatures of the corresponding on-chain interfaces, so the values match what a module deployed
// against the standard would self-report.
var (
	// InterfaceIDERC165 is the ERC-165 base interface id (0x01ffc9a7).
	InterfaceIDERC165 = ComputeInterfaceID("supportsInterface(bytes4)")

	// InterfaceIDModule is the base module lifecycle interface id. Every installable module must self-report
	// support for it; installs fail otherwise.
	InterfaceIDModule = ComputeInterfaceID(
		"onInstall(bytes)",
		"onUninstall(bytes)",
		"moduleId()",
	)

	// InterfaceIDValidationModule is the interface id for validation entities.
	InterfaceIDValidationModule = ComputeInterfaceID(
		"validateUserOp(address,uint32,(address,uint256,bytes,bytes,bytes32,uint256,bytes32,bytes,bytes),bytes32)",
		"validateRuntime(address,uint32,address,uint256,bytes,bytes)",
		"validateSignature(address,uint32,address,bytes32,bytes)",
	)

	// InterfaceIDValidationHookModule is the interface id for pre-validation hooks.
	InterfaceIDValidationHookModule = ComputeInterfaceID(
		"preUserOpValidationHook(uint32,(address,uint256,bytes,bytes,bytes32,uint256,bytes32,bytes,bytes),bytes32)",
		"preRuntimeValidationHook(uint32,address,uint256,bytes,bytes)",
		"preSignatureValidationHook(uint32,address,bytes32,bytes)",
	)

	// InterfaceIDExecutionModule is the interface id for modules that own execution functions.
	InterfaceIDExecutionModule = ComputeInterfaceID("executionManifest()")

	// InterfaceIDExecutionHookModule is the interface id for execution hooks.
	InterfaceIDExecutionHookModule = ComputeInterfaceID(
		"preExecutionHook(uint32,address,uint256,bytes)",
		"postExecutionHook(uint32,bytes)",
	)
)

// Module is the base capability contract every installable unit of logic must expose. Modules are in-process
// objects bound at an address on the simulated account; the install delegates invoke the lifecycle entry points
// and require SupportsInterface(InterfaceIDModule) to hold.
type Module interface {
	// ModuleID returns the module's identifier in "vendor.name.version" form, where version is semver.
	ModuleID() string

	// OnInstall is invoked once per install with the caller-provided install payload. An error rejects and
	// rolls back the whole install.
	OnInstall(data []byte) error

	// OnUninstall is invoked once per uninstall with the caller-provided payload. Errors are recorded but
	// never abort the uninstall.
	OnUninstall(data []byte) error

	// SupportsInterface reports whether the module implements the capability named by the interface id.
	SupportsInterface(id InterfaceID) bool
}

// ExecutionModule is a module that owns execution functions: calls dispatched to its selectors are executed
// through ExecuteCall.
type ExecutionModule interface {
	Module

	// ExecuteCall handles a call dispatched to a selector this module owns. The account handle permits
	// re-entrant operations (nested installs, uninstalls, or calls) during execution.
	ExecuteCall(account Account, call *Call) ([]byte, error)
}

// ValidationModule is a module providing validation entities that approve calls.
type ValidationModule interface {
	Module

	// ValidateRuntime decides whether the given call is approved by the entity. An error rejects the call
	// before the target executes.
	ValidateRuntime(account Account, entity EntityID, call *Call) error

	// ValidateSignature decides whether a signature over the digest is valid on behalf of the account.
	ValidateSignature(entity EntityID, digest common.Hash, signature []byte) error
}

// ValidationHookModule is a module providing hooks that run before a validation entity's own validation.
type ValidationHookModule interface {
	Module

	// PreValidationHook runs before runtime validation. An error rejects the call.
	PreValidationHook(entity EntityID, call *Call) error
}

// ExecutionHookModule is a module providing hooks that wrap execution of a target function.
type ExecutionHookModule interface {
	Module

	// PreExecutionHook runs before the target executes. The returned context bytes are passed unchanged to
	// the paired PostExecutionHook. An error rejects the call before the target executes.
	PreExecutionHook(entity EntityID, call *Call) ([]byte, error)

	// PostExecutionHook runs after the target executed, receiving the context produced by the paired
	// PreExecutionHook (nil for post-only hooks). An error fails the overall call.
	PostExecutionHook(entity EntityID, hookContext []byte) error
}

// Account is the surface of the simulated modular account exposed to modules and harness code. Lifecycle
// callbacks and execution functions may re-enter the account through it; the account's invariants hold across
// such nested operations.
type Account interface {
	// Address returns the account's own address.
	Address() common.Address

	// EntryPoint returns the trusted entry point address for the account.
	EntryPoint() common.Address

	// InstallExecution applies an execution manifest on behalf of the module bound at the given address.
	InstallExecution(module common.Address, manifest *ExecutionManifest, installData []byte) error

	// UninstallExecution removes an execution manifest. The returned boolean reports whether the module's
	// uninstall lifecycle callback succeeded; the error covers precondition failures only.
	UninstallExecution(module common.Address, manifest *ExecutionManifest, uninstallData []byte) (bool, error)

	// InstallValidation applies a validation manifest for the (module, entity) validation entity.
	InstallValidation(module common.Address, entity EntityID, manifest *ValidationManifest, installData []byte, replaceGlobal bool) error

	// UninstallValidation removes a validation entity. Return semantics match UninstallExecution.
	UninstallValidation(module common.Address, entity EntityID, uninstallData []byte) (bool, error)

	// Call dispatches a call through the account's validation and hook chains to its owning module.
	Call(call *Call) *CallResult

	// SupportsInterface reports whether any installed module currently declares the interface id.
	SupportsInterface(id InterfaceID) bool
}

// ValidateModuleID checks that a module identifier follows the "vendor.name.version" convention with a parseable
// semver version. The version may itself contain dots (e.g. "1.0.0"), so everything after the second dot is
// treated as the version segment.
func ValidateModuleID(id string) error {
	parts := strings.SplitN(id, ".", 3)
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" {
		return &InvalidModuleIDError{ID: id, Reason: "expected vendor.name.version"}
	}
	if _, err := semver.NewVersion(parts[2]); err != nil {
		return &InvalidModuleIDError{ID: id, Reason: "version segment is not valid semver"}
	}
	return nil
}
