package account

import (
	"fmt"

	"github.com/chimera-eth/chimera/account/state"
	"github.com/chimera-eth/chimera/account/types"
	"github.com/chimera-eth/chimera/logging"
	"github.com/ethereum/go-ethereum/common"
)

// ModularAccount simulates one ERC-6900 modular smart account: a storage schema of installed execution
// functions, validation entities, and hooks, plus the install/uninstall and dispatch logic operating on it.
// Modules are in-process objects bound at addresses through BindModule; all mutation of the storage schema
// funnels through the two install managers so the schema's invariants cannot be bypassed.
//
// The execution model is single-threaded and synchronous. Module callbacks may re-enter the account during
// their own install, uninstall, or execution; the account's invariants hold across such nested operations.
type ModularAccount struct {
	// address is the account's own address.
	address common.Address

	// owner is the address authorized to operate the account directly.
	owner common.Address

	// entryPoint is the trusted account-abstraction entry point address.
	entryPoint common.Address

	// storage is the account's storage schema. It is kept unexported so mutation only happens through the
	// install managers.
	storage *state.AccountStorage

	// modules is the registry of module instances bound at addresses.
	modules map[common.Address]types.Module

	// Events defines the event emitters the account publishes its audit trail through.
	Events ModularAccountEvents

	// logger is the account's sub-logger.
	logger *logging.Logger
}

// NewModularAccount creates a fresh ModularAccount with the given identity addresses and no installed
// modules.
func NewModularAccount(address common.Address, owner common.Address, entryPoint common.Address) *ModularAccount {
	logger := logging.GlobalLogger.NewSubLogger("module", "account")
	return &ModularAccount{
		address:    address,
		owner:      owner,
		entryPoint: entryPoint,
		storage:    state.NewAccountStorage(logger),
		modules:    make(map[common.Address]types.Module),
		logger:     logger,
	}
}

// Address returns the account's own address.
func (a *ModularAccount) Address() common.Address {
	return a.address
}

// Owner returns the address authorized to operate the account directly.
func (a *ModularAccount) Owner() common.Address {
	return a.owner
}

// EntryPoint returns the trusted entry point address for the account.
func (a *ModularAccount) EntryPoint() common.Address {
	return a.entryPoint
}

// BindModule registers a module instance at an address, making it installable. Binding validates the
// module's identifier but performs no installation; returns an error if the address is null, already bound,
// or the module's identifier is malformed.
func (a *ModularAccount) BindModule(address common.Address, module types.Module) error {
	if address == (common.Address{}) {
		return types.ErrNullModule
	}
	if _, ok := a.modules[address]; ok {
		return fmt.Errorf("a module is already bound at address %s", address.Hex())
	}
	if err := types.ValidateModuleID(module.ModuleID()); err != nil {
		return err
	}
	a.modules[address] = module
	return nil
}

// ModuleAt returns the module instance bound at an address, or nil if none is bound.
func (a *ModularAccount) ModuleAt(address common.Address) types.Module {
	return a.modules[address]
}

// SupportsInterface reports whether any installed module currently declares the interface id. Support is
// reference counted: the id remains supported until every module that declared it is uninstalled.
func (a *ModularAccount) SupportsInterface(id types.InterfaceID) bool {
	return a.storage.SupportsInterface(id)
}

// InstalledSelectors returns the selectors currently owned by installed execution functions, sorted.
func (a *ModularAccount) InstalledSelectors() []types.Selector {
	return a.storage.InstalledSelectors()
}

// InstalledValidations returns the currently installed validation entities, sorted.
func (a *ModularAccount) InstalledValidations() []types.ModuleEntity {
	return a.storage.InstalledValidations()
}

// SupportedInterfaces returns the interface ids currently declared by installed modules, sorted.
func (a *ModularAccount) SupportedInterfaces() []types.InterfaceID {
	return a.storage.SupportedInterfaces()
}

// GlobalValidation returns the account's global validation entity, or the zero entity if none is installed.
func (a *ModularAccount) GlobalValidation() types.ModuleEntity {
	return a.storage.GlobalValidation()
}

// resolveModule returns the bound module for an install/uninstall operation, enforcing the shared
// preconditions: a non-null address and a bound instance.
func (a *ModularAccount) resolveModule(address common.Address) (types.Module, error) {
	if address == (common.Address{}) {
		return nil, types.ErrNullModule
	}
	module, ok := a.modules[address]
	if !ok {
		return nil, fmt.Errorf("%w: %s", types.ErrModuleNotBound, address.Hex())
	}
	return module, nil
}
