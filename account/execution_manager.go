package account

import (
	"fmt"

	"github.com/chimera-eth/chimera/account/types"
	"github.com/ethereum/go-ethereum/common"
)

// InstallExecution applies a module's execution manifest to the account: it writes selector ownership,
// registers execution hooks, increments interface support counters, and finally invokes the module's
// OnInstall lifecycle callback. The install is atomic: if any step fails, including the callback, every
// storage effect is reverted and the error is returned. On success an ExecutionInstalledEvent is emitted
// exactly once, after all storage effects.
func (a *ModularAccount) InstallExecution(module common.Address, manifest *types.ExecutionManifest, installData []byte) error {
	moduleInstance, err := a.resolveModule(module)
	if err != nil {
		return err
	}

	// The module must self-report support for the base module capability interface.
	if !moduleInstance.SupportsInterface(types.InterfaceIDModule) {
		return &types.InterfaceNotSupportedError{Module: module, ID: types.InterfaceIDModule}
	}

	// Apply every effect under one snapshot so a failure at any step leaves no partial state, even when the
	// lifecycle callback re-entered the account before failing.
	snapshot := a.storage.Snapshot()
	if err = a.applyExecutionInstall(module, moduleInstance, manifest, installData); err != nil {
		a.storage.RevertToSnapshot(snapshot)
		return err
	}
	a.storage.Commit(snapshot)

	a.logger.Info("Installed execution manifest for module ", module.Hex())
	a.Events.ExecutionInstalled.Publish(ExecutionInstalledEvent{
		Account:  a,
		Module:   module,
		Manifest: manifest,
	})
	return nil
}

// applyExecutionInstall performs the storage effects and lifecycle callback of an execution install, in
// manifest order. The caller reverts the storage snapshot if an error is returned.
func (a *ModularAccount) applyExecutionInstall(module common.Address, moduleInstance types.Module, manifest *types.ExecutionManifest, installData []byte) error {
	// Claim selector ownership for each declared execution function, rejecting reserved and already-owned
	// selectors.
	for _, fn := range manifest.ExecutionFunctions {
		if err := checkSelectorInstallable(fn.Selector); err != nil {
			return err
		}
		if err := a.storage.SetExecution(fn.Selector, module, fn.SkipRuntimeValidation, fn.AllowGlobalValidation); err != nil {
			return err
		}
	}

	// Register each declared execution hook. The hook entity belongs to the installing module.
	for _, hook := range manifest.ExecutionHooks {
		config := types.HookConfig{
			Module:  module,
			Entity:  hook.Entity,
			HasPre:  hook.HasPre,
			HasPost: hook.HasPost,
		}
		if err := a.storage.AddExecutionHook(hook.Selector, config); err != nil {
			return err
		}
	}

	// Count each declared interface id.
	for _, id := range manifest.InterfaceIDs {
		a.storage.AddInterfaceSupport(id)
	}

	// Invoke the module's install lifecycle callback last, requiring it to succeed.
	if err := invokeLifecycleCallback(module, "onInstall", func() error {
		return moduleInstance.OnInstall(installData)
	}); err != nil {
		return err
	}
	return nil
}

// UninstallExecution removes a module's execution manifest from the account, applying effects in reverse
// order of install: hooks are removed, selector ownership is cleared, interface counters are decremented,
// and finally the module's OnUninstall callback is invoked. The callback is insulated: its failure (or
// panic) never aborts the uninstall, because removal must always be completable even for a malicious or
// broken module. The returned boolean reports whether the callback succeeded; it is also carried by the
// ExecutionUninstalledEvent emitted after all storage effects. The error return covers only preconditions
// checked before any mutation.
func (a *ModularAccount) UninstallExecution(module common.Address, manifest *types.ExecutionManifest, uninstallData []byte) (bool, error) {
	moduleInstance, err := a.resolveModule(module)
	if err != nil {
		return false, err
	}

	// Uninstall has no failure path past the preconditions, so the snapshot exists only to discard the
	// journal entries recorded below once this is the outermost operation. When the uninstall runs
	// re-entrantly inside an enclosing operation, the entries stay so an enclosing revert unwinds it too.
	snapshot := a.storage.Snapshot()

	// Remove each declared execution hook. A hook missing from installed state is a silent no-op, tolerating
	// manifests that drifted from what was installed; the storage layer debug-logs the discrepancy.
	for i := len(manifest.ExecutionHooks) - 1; i >= 0; i-- {
		hook := manifest.ExecutionHooks[i]
		config := types.HookConfig{
			Module:  module,
			Entity:  hook.Entity,
			HasPre:  hook.HasPre,
			HasPost: hook.HasPost,
		}
		a.storage.RemoveExecutionHook(hook.Selector, config)
	}

	// Clear selector ownership. A selector owned by a different module is skipped so one module's drifted
	// manifest can never clear another module's installation.
	for i := len(manifest.ExecutionFunctions) - 1; i >= 0; i-- {
		selector := manifest.ExecutionFunctions[i].Selector
		view := a.storage.GetExecution(selector)
		if !view.IsSet() {
			continue
		}
		if view.Module != module {
			a.logger.Warn("Uninstall manifest for module ", module.Hex(), " names selector ", selector.String(),
				" owned by module ", view.Module.Hex(), "; skipping")
			continue
		}
		a.storage.ClearExecution(selector)
	}

	// Lower the interface support counters.
	for _, id := range manifest.InterfaceIDs {
		a.storage.RemoveInterfaceSupport(id)
	}

	// Invoke the module's uninstall callback, catching errors and panics alike.
	callbackErr := invokeLifecycleCallback(module, "onUninstall", func() error {
		return moduleInstance.OnUninstall(uninstallData)
	})
	callbackSucceeded := callbackErr == nil
	if !callbackSucceeded {
		a.logger.Warn("Module ", module.Hex(), " uninstall callback failed; uninstall completed anyway", callbackErr)
	}

	a.storage.Commit(snapshot)

	a.logger.Info("Uninstalled execution manifest for module ", module.Hex())
	a.Events.ExecutionUninstalled.Publish(ExecutionUninstalledEvent{
		Account:           a,
		Module:            module,
		CallbackSucceeded: callbackSucceeded,
		Manifest:          manifest,
	})
	return callbackSucceeded, nil
}

// invokeLifecycleCallback runs a module lifecycle entry point, converting both returned errors and panics
// into a LifecycleCallbackError so the harness stays deterministic regardless of module behavior.
func invokeLifecycleCallback(module common.Address, callback string, invoke func() error) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = &types.LifecycleCallbackError{
				Module:   module,
				Callback: callback,
				Err:      fmt.Errorf("callback panicked: %v", recovered),
			}
		}
	}()
	if callbackErr := invoke(); callbackErr != nil {
		return &types.LifecycleCallbackError{Module: module, Callback: callback, Err: callbackErr}
	}
	return nil
}
