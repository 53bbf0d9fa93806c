package account

import (
	"github.com/chimera-eth/chimera/account/types"
	"github.com/ethereum/go-ethereum/common"
)

// InstallValidation installs the (module, entity) validation entity described by the manifest: its entry and
// flags, its claim on the account's global validation slot if requested, its selector-scoped associations,
// and its pre-validation hooks, followed by the module's OnInstall callback. The install is atomic and
// rejects on any inconsistency:
//
//   - a global install finding the slot held by a different entity fails with
//     GlobalValidationAlreadySetError unless replaceGlobal is set, in which case the prior occupant keeps its
//     entry and selector associations but loses global status (silent overwrite is never performed);
//   - a selector already associated with a different validation entity fails with
//     ValidationAlreadySetError, preventing ambiguous dispatch.
//
// On success a ValidationInstalledEvent is emitted exactly once, after all storage effects.
func (a *ModularAccount) InstallValidation(module common.Address, entity types.EntityID, manifest *types.ValidationManifest, installData []byte, replaceGlobal bool) error {
	moduleInstance, err := a.resolveModule(module)
	if err != nil {
		return err
	}
	if !moduleInstance.SupportsInterface(types.InterfaceIDModule) {
		return &types.InterfaceNotSupportedError{Module: module, ID: types.InterfaceIDModule}
	}

	// The module must actually provide validation logic for the entity to be dispatchable.
	if _, ok := moduleInstance.(types.ValidationModule); !ok {
		return &types.InterfaceNotSupportedError{Module: module, ID: types.InterfaceIDValidationModule}
	}

	moduleEntity := types.ModuleEntity{Module: module, Entity: entity}
	snapshot := a.storage.Snapshot()
	if err = a.applyValidationInstall(moduleEntity, moduleInstance, manifest, installData, replaceGlobal); err != nil {
		a.storage.RevertToSnapshot(snapshot)
		return err
	}
	a.storage.Commit(snapshot)

	a.logger.Info("Installed validation entity ", moduleEntity.String())
	a.Events.ValidationInstalled.Publish(ValidationInstalledEvent{
		Account:  a,
		Module:   module,
		Entity:   entity,
		Manifest: manifest,
	})
	return nil
}

// applyValidationInstall performs the storage effects and lifecycle callback of a validation install, in
// manifest order. The caller reverts the storage snapshot if an error is returned.
func (a *ModularAccount) applyValidationInstall(moduleEntity types.ModuleEntity, moduleInstance types.Module, manifest *types.ValidationManifest, installData []byte, replaceGlobal bool) error {
	a.storage.PutValidation(moduleEntity, manifest.IsSignatureValidation)

	if manifest.IsGlobal {
		if err := a.storage.SetGlobalValidation(moduleEntity, replaceGlobal); err != nil {
			return err
		}
	}

	// Associate each declared selector, carrying its public mark on the set's flag bit.
	for _, association := range manifest.Selectors {
		if association.Selector.IsZero() {
			return types.ErrZeroSelector
		}
		if err := a.storage.ClaimSelector(association.Selector, moduleEntity, association.Public); err != nil {
			return err
		}
	}

	// Register the entity's pre-validation hooks, which must be unique.
	for _, hook := range manifest.PreValidationHooks {
		if err := a.storage.AddValidationHook(moduleEntity, hook); err != nil {
			return err
		}
	}

	if err := invokeLifecycleCallback(moduleEntity.Module, "onInstall", func() error {
		return moduleInstance.OnInstall(installData)
	}); err != nil {
		return err
	}
	return nil
}

// UninstallValidation removes the (module, entity) validation entity: its pre-validation hooks, its selector
// claims, its hold on the global slot if any, and finally its entry, followed by the module's insulated
// OnUninstall callback. As with execution uninstalls, the callback's failure never aborts the removal; the
// returned boolean (and the emitted ValidationUninstalledEvent) report whether it succeeded. The error
// return covers only preconditions checked before any mutation, including the entity not being installed.
func (a *ModularAccount) UninstallValidation(module common.Address, entity types.EntityID, uninstallData []byte) (bool, error) {
	moduleInstance, err := a.resolveModule(module)
	if err != nil {
		return false, err
	}

	moduleEntity := types.ModuleEntity{Module: module, Entity: entity}
	if !a.storage.GetValidation(moduleEntity).Exists {
		return false, &types.ValidationMissingError{Entity: moduleEntity}
	}

	snapshot := a.storage.Snapshot()

	// Remove effects in reverse order of install.
	for _, hook := range a.storage.ValidationHooks(moduleEntity) {
		a.storage.RemoveValidationHook(moduleEntity, hook)
	}
	for _, selector := range a.storage.ValidationSelectors(moduleEntity) {
		a.storage.ReleaseSelector(selector, moduleEntity)
	}
	a.storage.ClearGlobalValidation(moduleEntity)
	a.storage.DeleteValidation(moduleEntity)

	callbackErr := invokeLifecycleCallback(module, "onUninstall", func() error {
		return moduleInstance.OnUninstall(uninstallData)
	})
	callbackSucceeded := callbackErr == nil
	if !callbackSucceeded {
		a.logger.Warn("Validation entity ", moduleEntity.String(), " uninstall callback failed; uninstall completed anyway", callbackErr)
	}

	a.storage.Commit(snapshot)

	a.logger.Info("Uninstalled validation entity ", moduleEntity.String())
	a.Events.ValidationUninstalled.Publish(ValidationUninstalledEvent{
		Account:           a,
		Module:            module,
		Entity:            entity,
		CallbackSucceeded: callbackSucceeded,
	})
	return callbackSucceeded, nil
}
