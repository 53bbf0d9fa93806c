package types

// ExecutionFunction declares one execution function a module wishes to claim ownership of.
type ExecutionFunction struct {
	// Selector is the function selector the module will own.
	Selector Selector `json:"selector"`

	// SkipRuntimeValidation indicates calls to this selector bypass the resolved validation entity's own
	// runtime validation function (pre-validation hooks and execution hooks still apply).
	SkipRuntimeValidation bool `json:"skipRuntimeValidation"`

	// AllowGlobalValidation indicates calls to this selector may be approved by the account's global
	// validation entity rather than requiring a selector-scoped association.
	AllowGlobalValidation bool `json:"allowGlobalValidation"`
}

// ManifestExecutionHook declares one execution hook to wrap around calls to a selector.
type ManifestExecutionHook struct {
	// Selector is the execution function the hook wraps. It need not be owned by the installing module; hooks
	// may be attached to any installed execution function.
	Selector Selector `json:"selector"`

	// Entity is the installing module's entity id implementing the hook.
	Entity EntityID `json:"entity"`

	// HasPre indicates the hook runs before the target.
	HasPre bool `json:"hasPre"`

	// HasPost indicates the hook runs after the target.
	HasPost bool `json:"hasPost"`
}

// ExecutionManifest is the declarative description of what a module wishes to install: the execution functions
// it claims, the execution hooks it contributes, and the interface ids it declares support for. Manifests are
// produced by off-chain tooling or scenario files; the install delegate only consumes them.
type ExecutionManifest struct {
	// ExecutionFunctions are the selectors the module claims ownership of, in declaration order.
	ExecutionFunctions []ExecutionFunction `json:"executionFunctions"`

	// ExecutionHooks are the hooks the module contributes, in declaration order. Declaration order is
	// preserved: pre hooks run in this order, post hooks in reverse.
	ExecutionHooks []ManifestExecutionHook `json:"executionHooks"`

	// InterfaceIDs are the ERC-165 interface ids the module declares support for. Each install increments the
	// account's reference count for the id; each uninstall decrements it.
	InterfaceIDs []InterfaceID `json:"interfaceIds"`
}

// ValidationSelector declares one selector a validation entity is permitted to approve.
type ValidationSelector struct {
	// Selector is the execution function the validation entity may approve.
	Selector Selector `json:"selector"`

	// Public marks the association as callable by any runtime caller. Non-public associations only accept
	// calls originating from the account itself or its entry point.
	Public bool `json:"public"`
}

// ValidationManifest is the declarative description of a validation entity install: its scope, the selectors it
// is associated with, and the pre-validation hooks that run before it.
type ValidationManifest struct {
	// IsGlobal requests installation as the account's single global (default) validation entity.
	IsGlobal bool `json:"isGlobal"`

	// IsSignatureValidation indicates the entity may validate signatures on behalf of the account.
	IsSignatureValidation bool `json:"isSignatureValidation"`

	// Selectors are the selector-scoped associations to install, in declaration order.
	Selectors []ValidationSelector `json:"selectors"`

	// PreValidationHooks run before the entity's own validation function, in declaration order. HasPre is
	// implied; HasPost is ignored for validation hooks.
	PreValidationHooks []HookConfig `json:"preValidationHooks"`
}
