package account

import (
	"github.com/chimera-eth/chimera/account/types"
	"github.com/chimera-eth/chimera/events"
	"github.com/ethereum/go-ethereum/common"
)

// ExecutionInstalledEvent describes an event where a module's execution manifest was installed on the
// account. It is emitted exactly once per successful install, after all storage effects.
type ExecutionInstalledEvent struct {
	// Account is the account the manifest was installed on.
	Account *ModularAccount

	// Module is the address of the installed module.
	Module common.Address

	// Manifest is the manifest that was applied.
	Manifest *types.ExecutionManifest
}

// ExecutionUninstalledEvent describes an event where a module's execution manifest was uninstalled from the
// account. It is emitted exactly once per uninstall, after all storage effects, regardless of whether the
// module's own uninstall callback succeeded.
type ExecutionUninstalledEvent struct {
	// Account is the account the manifest was uninstalled from.
	Account *ModularAccount

	// Module is the address of the uninstalled module.
	Module common.Address

	// CallbackSucceeded indicates whether the module's uninstall lifecycle callback completed without error.
	// A failing callback never aborts an uninstall; it is surfaced here instead.
	CallbackSucceeded bool

	// Manifest is the manifest that was removed.
	Manifest *types.ExecutionManifest
}

// ValidationInstalledEvent describes an event where a validation entity was installed on the account.
type ValidationInstalledEvent struct {
	// Account is the account the validation entity was installed on.
	Account *ModularAccount

	// Module is the address of the module providing the entity.
	Module common.Address

	// Entity is the module-scoped entity id.
	Entity types.EntityID

	// Manifest is the manifest that was applied.
	Manifest *types.ValidationManifest
}

// ValidationUninstalledEvent describes an event where a validation entity was uninstalled from the account.
type ValidationUninstalledEvent struct {
	// Account is the account the validation entity was uninstalled from.
	Account *ModularAccount

	// Module is the address of the module providing the entity.
	Module common.Address

	// Entity is the module-scoped entity id.
	Entity types.EntityID

	// CallbackSucceeded indicates whether the module's uninstall lifecycle callback completed without error.
	CallbackSucceeded bool
}

// CallDispatchedEvent describes an event where a call was dispatched through the account, successfully or
// not. It is emitted after the dispatch state machine reached a terminal state.
type CallDispatchedEvent struct {
	// Account is the account the call was dispatched through.
	Account *ModularAccount

	// Call is the dispatched call.
	Call *types.Call

	// Result is the terminal result of the dispatch, including its trace.
	Result *types.CallResult
}

// ModularAccountEvents defines event emitters for a ModularAccount. These events are the account's durable
// audit trail; external observers such as the scenario journal subscribe to them.
type ModularAccountEvents struct {
	// ExecutionInstalled emits events indicating an execution manifest was installed on the account.
	ExecutionInstalled events.EventEmitter[ExecutionInstalledEvent]

	// ExecutionUninstalled emits events indicating an execution manifest was uninstalled from the account.
	ExecutionUninstalled events.EventEmitter[ExecutionUninstalledEvent]

	// ValidationInstalled emits events indicating a validation entity was installed on the account.
	ValidationInstalled events.EventEmitter[ValidationInstalledEvent]

	// ValidationUninstalled emits events indicating a validation entity was uninstalled from the account.
	ValidationUninstalled events.EventEmitter[ValidationUninstalledEvent]

	// CallDispatched emits events indicating a call was dispatched through the account.
	CallDispatched events.EventEmitter[CallDispatchedEvent]
}
