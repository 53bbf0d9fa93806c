package account

import (
	"errors"
	"testing"

	"github.com/chimera-eth/chimera/account/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
)

// TestInstallExecutionBasic verifies a successful install writes selector ownership, hooks, interface
// counters, and invokes the lifecycle callback with the provided payload.
func TestInstallExecutionBasic(t *testing.T) {
	acct := newTestAccount()
	moduleAddr := common.HexToAddress("0xaa")
	module := newTestExecutionModule()
	assert.NoError(t, acct.BindModule(moduleAddr, module))

	selector := types.ComputeSelector("increment()")
	manifest := &types.ExecutionManifest{
		ExecutionFunctions: []types.ExecutionFunction{{Selector: selector, AllowGlobalValidation: true}},
		ExecutionHooks:     []types.ManifestExecutionHook{{Selector: selector, Entity: 9, HasPre: true, HasPost: true}},
		InterfaceIDs:       []types.InterfaceID{types.InterfaceIDExecutionModule},
	}

	var installed []ExecutionInstalledEvent
	acct.Events.ExecutionInstalled.Subscribe(func(event ExecutionInstalledEvent) {
		installed = append(installed, event)
	})

	assert.NoError(t, acct.InstallExecution(moduleAddr, manifest, []byte("payload")))

	assert.EqualValues(t, []types.Selector{selector}, acct.InstalledSelectors())
	assert.True(t, acct.SupportsInterface(types.InterfaceIDExecutionModule))
	assert.EqualValues(t, [][]byte{[]byte("payload")}, module.installPayloads)
	assert.Len(t, installed, 1)
	assert.EqualValues(t, moduleAddr, installed[0].Module)
}

// TestInstallExecutionPreconditions verifies null, unbound, and capability-less modules are rejected before
// any mutation.
func TestInstallExecutionPreconditions(t *testing.T) {
	acct := newTestAccount()
	manifest := singleFunctionManifest(types.ComputeSelector("increment()"), false)

	assert.ErrorIs(t, acct.InstallExecution(common.Address{}, manifest, nil), types.ErrNullModule)
	assert.ErrorIs(t, acct.InstallExecution(common.HexToAddress("0xdd"), manifest, nil), types.ErrModuleNotBound)

	// A module failing the base capability query is rejected.
	refusingAddr := common.HexToAddress("0xee")
	assert.NoError(t, acct.BindModule(refusingAddr, &refusingModule{}))
	err := acct.InstallExecution(refusingAddr, manifest, nil)
	var unsupported *types.InterfaceNotSupportedError
	assert.ErrorAs(t, err, &unsupported)
	assert.Empty(t, acct.InstalledSelectors())
}

// refusingModule fails every capability query, including the base module interface.
type refusingModule struct{}

func (m *refusingModule) ModuleID() string                         { return "chimera.refusing.1.0.0" }
func (m *refusingModule) OnInstall(data []byte) error              { return nil }
func (m *refusingModule) OnUninstall(data []byte) error            { return nil }
func (m *refusingModule) SupportsInterface(types.InterfaceID) bool { return false }

// TestInstallExecutionReservedSelectors verifies the reserved selector tables reject installs.
func TestInstallExecutionReservedSelectors(t *testing.T) {
	acct := newTestAccount()
	moduleAddr := common.HexToAddress("0xaa")
	assert.NoError(t, acct.BindModule(moduleAddr, newTestExecutionModule()))

	// The zero selector sentinel.
	err := acct.InstallExecution(moduleAddr, singleFunctionManifest(types.Selector{}, false), nil)
	assert.ErrorIs(t, err, types.ErrZeroSelector)

	// A module lifecycle selector.
	err = acct.InstallExecution(moduleAddr, singleFunctionManifest(types.ComputeSelector("onInstall(bytes)"), false), nil)
	var lifecycleErr *types.ModuleFunctionNotAllowedError
	assert.ErrorAs(t, err, &lifecycleErr)

	// An entry point callback selector.
	userOpSelector := types.ComputeSelector("validateUserOp((address,uint256,bytes,bytes,bytes32,uint256,bytes32,bytes,bytes),bytes32,uint256)")
	err = acct.InstallExecution(moduleAddr, singleFunctionManifest(userOpSelector, false), nil)
	var erc4337Err *types.Erc4337FunctionNotAllowedError
	assert.ErrorAs(t, err, &erc4337Err)

	assert.Empty(t, acct.InstalledSelectors())
}

// TestInstallExecutionAtomicRollback verifies a failure partway through an install leaves no partial state,
// including the case where the failing step is the module's own lifecycle callback.
func TestInstallExecutionAtomicRollback(t *testing.T) {
	acct := newTestAccount()
	moduleAddr := common.HexToAddress("0xaa")
	module := newTestExecutionModule()
	module.installErr = errors.New("install rejected")
	assert.NoError(t, acct.BindModule(moduleAddr, module))

	selA := types.ComputeSelector("increment()")
	selB := types.ComputeSelector("get()")
	manifest := &types.ExecutionManifest{
		ExecutionFunctions: []types.ExecutionFunction{{Selector: selA}, {Selector: selB}},
		ExecutionHooks:     []types.ManifestExecutionHook{{Selector: selA, Entity: 1, HasPre: true}},
		InterfaceIDs:       []types.InterfaceID{types.InterfaceIDExecutionModule},
	}

	err := acct.InstallExecution(moduleAddr, manifest, nil)
	var callbackErr *types.LifecycleCallbackError
	assert.ErrorAs(t, err, &callbackErr)

	// Every effect written before the callback failed must have been reverted.
	assert.Empty(t, acct.InstalledSelectors())
	assert.False(t, acct.SupportsInterface(types.InterfaceIDExecutionModule))

	// The selectors remain installable afterwards.
	module.installErr = nil
	assert.NoError(t, acct.InstallExecution(moduleAddr, manifest, nil))
	assert.Len(t, acct.InstalledSelectors(), 2)
}

// TestInstallExecutionDuplicateSelector verifies a manifest colliding with an installed selector rolls back
// entirely, leaving the prior owner untouched.
func TestInstallExecutionDuplicateSelector(t *testing.T) {
	acct := newTestAccount()
	addrA := common.HexToAddress("0xaa")
	addrB := common.HexToAddress("0xbb")
	assert.NoError(t, acct.BindModule(addrA, newTestExecutionModule()))
	assert.NoError(t, acct.BindModule(addrB, newTestExecutionModule()))

	shared := types.ComputeSelector("increment()")
	assert.NoError(t, acct.InstallExecution(addrA, singleFunctionManifest(shared, false), nil))

	// The colliding install declares a fresh selector first to prove partial effects roll back.
	fresh := types.ComputeSelector("get()")
	manifest := &types.ExecutionManifest{
		ExecutionFunctions: []types.ExecutionFunction{{Selector: fresh}, {Selector: shared}},
	}
	err := acct.InstallExecution(addrB, manifest, nil)
	var alreadySet *types.ExecutionFunctionAlreadySetError
	assert.ErrorAs(t, err, &alreadySet)
	assert.EqualValues(t, addrA, alreadySet.Owner)

	assert.EqualValues(t, []types.Selector{shared}, acct.InstalledSelectors())
}

// TestUninstallExecutionCompletesDespiteCallbackFailure verifies the asymmetric failure policy: uninstall
// storage effects always land, with a failing (or panicking) callback surfaced only through the returned
// flag and the emitted event.
func TestUninstallExecutionCompletesDespiteCallbackFailure(t *testing.T) {
	for _, panicking := range []bool{false, true} {
		acct := newTestAccount()
		moduleAddr := common.HexToAddress("0xaa")
		module := newTestExecutionModule()
		assert.NoError(t, acct.BindModule(moduleAddr, module))

		selector := types.ComputeSelector("increment()")
		manifest := &types.ExecutionManifest{
			ExecutionFunctions: []types.ExecutionFunction{{Selector: selector}},
			InterfaceIDs:       []types.InterfaceID{types.InterfaceIDExecutionModule},
		}
		assert.NoError(t, acct.InstallExecution(moduleAddr, manifest, nil))

		if panicking {
			module.panicOnUninstall = true
		} else {
			module.uninstallErr = errors.New("uninstall rejected")
		}

		var events []ExecutionUninstalledEvent
		acct.Events.ExecutionUninstalled.Subscribe(func(event ExecutionUninstalledEvent) {
			events = append(events, event)
		})

		callbackOK, err := acct.UninstallExecution(moduleAddr, manifest, nil)
		assert.NoError(t, err)
		assert.False(t, callbackOK)

		// The storage effects landed regardless of the callback outcome.
		assert.Empty(t, acct.InstalledSelectors())
		assert.False(t, acct.SupportsInterface(types.InterfaceIDExecutionModule))
		assert.Len(t, events, 1)
		assert.False(t, events[0].CallbackSucceeded)
	}
}

// TestUninstallExecutionManifestDrift verifies a drifted uninstall manifest cannot clear another module's
// selector and tolerates hooks that were never installed.
func TestUninstallExecutionManifestDrift(t *testing.T) {
	acct := newTestAccount()
	addrA := common.HexToAddress("0xaa")
	addrB := common.HexToAddress("0xbb")
	assert.NoError(t, acct.BindModule(addrA, newTestExecutionModule()))
	assert.NoError(t, acct.BindModule(addrB, newTestExecutionModule()))

	selector := types.ComputeSelector("increment()")
	assert.NoError(t, acct.InstallExecution(addrA, singleFunctionManifest(selector, false), nil))

	// Module B's drifted manifest names module A's selector and a hook that was never registered.
	drifted := &types.ExecutionManifest{
		ExecutionFunctions: []types.ExecutionFunction{{Selector: selector}},
		ExecutionHooks:     []types.ManifestExecutionHook{{Selector: selector, Entity: 5, HasPre: true}},
	}
	callbackOK, err := acct.UninstallExecution(addrB, drifted, nil)
	assert.NoError(t, err)
	assert.True(t, callbackOK)

	// Module A's installation is untouched.
	assert.EqualValues(t, []types.Selector{selector}, acct.InstalledSelectors())
}

// TestInterfaceSupportRoundTrip verifies reference-counted interface support across overlapping installs.
func TestInterfaceSupportRoundTrip(t *testing.T) {
	acct := newTestAccount()
	addrA := common.HexToAddress("0xaa")
	addrB := common.HexToAddress("0xbb")
	assert.NoError(t, acct.BindModule(addrA, newTestExecutionModule()))
	assert.NoError(t, acct.BindModule(addrB, newTestExecutionModule()))

	shared := types.ComputeInterfaceID("sharedCapability()")
	manifestA := &types.ExecutionManifest{
		ExecutionFunctions: []types.ExecutionFunction{{Selector: types.ComputeSelector("increment()")}},
		InterfaceIDs:       []types.InterfaceID{shared},
	}
	manifestB := &types.ExecutionManifest{
		ExecutionFunctions: []types.ExecutionFunction{{Selector: types.ComputeSelector("get()")}},
		InterfaceIDs:       []types.InterfaceID{shared},
	}

	assert.NoError(t, acct.InstallExecution(addrA, manifestA, nil))
	assert.NoError(t, acct.InstallExecution(addrB, manifestB, nil))
	assert.True(t, acct.SupportsInterface(shared))

	// Support persists until the last declaring module is uninstalled.
	_, err := acct.UninstallExecution(addrA, manifestA, nil)
	assert.NoError(t, err)
	assert.True(t, acct.SupportsInterface(shared))
	_, err = acct.UninstallExecution(addrB, manifestB, nil)
	assert.NoError(t, err)
	assert.False(t, acct.SupportsInterface(shared))
}

// TestBindModule verifies module registry preconditions.
func TestBindModule(t *testing.T) {
	acct := newTestAccount()
	module := newTestExecutionModule()

	assert.ErrorIs(t, acct.BindModule(common.Address{}, module), types.ErrNullModule)

	addr := common.HexToAddress("0xaa")
	assert.NoError(t, acct.BindModule(addr, module))
	assert.Error(t, acct.BindModule(addr, module))
	assert.EqualValues(t, module, acct.ModuleAt(addr))

	// A malformed module identifier is rejected at bind time.
	bad := newTestExecutionModule()
	bad.id = "not-an-id"
	err := acct.BindModule(common.HexToAddress("0xbb"), bad)
	var invalidID *types.InvalidModuleIDError
	assert.ErrorAs(t, err, &invalidID)
}
