package state

import (
	"github.com/chimera-eth/chimera/account/types"
	"github.com/chimera-eth/chimera/logging"
	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// executionEntry is the stored record for one selector: its owning module (zero when unset), its dispatch
// flags, and the execution hooks wrapping calls to it. An entry may exist with a zero module when hooks were
// attached to a selector whose owner has since been uninstalled; the hooks survive and re-apply if the
// selector is installed again.
type executionEntry struct {
	// module is the address of the module owning the selector, or zero when unset.
	module common.Address

	// skipRuntimeValidation indicates calls to the selector bypass the resolved entity's runtime validation.
	skipRuntimeValidation bool

	// allowGlobalValidation indicates the account's global validation entity may approve calls to the selector.
	allowGlobalValidation bool

	// hooks are the execution hooks wrapping calls to the selector, in registration order.
	hooks *OrderedSet[types.HookConfig]
}

// validationEntry is the stored record for one validation entity: its flags, the selectors it is associated
// with (the auxiliary flag bit marks public associations), and its pre-validation hooks.
type validationEntry struct {
	// isGlobal indicates the entity currently holds the account's single global validation slot.
	isGlobal bool

	// isSignatureValidation indicates the entity may validate signatures on behalf of the account.
	isSignatureValidation bool

	// selectors are the selector-scoped associations, with the flag bit marking public associations.
	selectors *OrderedSet[types.Selector]

	// preHooks are the entity's pre-validation hooks, in registration order.
	preHooks *OrderedSet[types.HookConfig]
}

// ExecutionView is a read-only view of a selector's execution entry. Reading an unset selector yields the
// zero view, never an error.
type ExecutionView struct {
	// Module is the owning module's address, or zero when the selector is unset.
	Module common.Address

	// SkipRuntimeValidation indicates calls to the selector bypass runtime validation.
	SkipRuntimeValidation bool

	// AllowGlobalValidation indicates the global validation entity may approve calls to the selector.
	AllowGlobalValidation bool
}

// IsSet indicates whether the selector currently has an owning module.
func (v ExecutionView) IsSet() bool {
	return v.Module != (common.Address{})
}

// ValidationView is a read-only view of a validation entity's entry.
type ValidationView struct {
	// Exists indicates whether the entity is installed at all.
	Exists bool

	// IsGlobal indicates the entity holds the account's global validation slot.
	IsGlobal bool

	// IsSignatureValidation indicates the entity may validate signatures.
	IsSignatureValidation bool
}

// AccountStorage is the canonical storage schema of one simulated modular account: selector ownership,
// validation associations, hook sets, the global validation slot, and reference-counted interface support.
//
// AccountStorage enforces its schema-level invariants in its own mutators (a selector has at most one owner,
// at most one non-global claimant, at most one global validation entity, interface counts never go negative),
// so every mutation is a single guarded read-modify-write that stays correct under re-entrant callers. The
// install managers are the only intended writers; reads never fail and return zero views for absent entries.
//
// All mutators record inverse operations in an undo journal so an enclosing operation can be rolled back
// atomically via Snapshot and RevertToSnapshot.
type AccountStorage struct {
	// executions maps each selector to its execution entry.
	executions map[types.Selector]*executionEntry

	// validations maps each (module, entity) pair to its validation entry.
	validations map[types.ModuleEntity]*validationEntry

	// selectorClaims is the reverse index from selector to the non-global validation entity associated with
	// it, enforcing that a selector is never claimed by two validation entities at once.
	selectorClaims map[types.Selector]types.ModuleEntity

	// globalValidation is the account's single global validation entity, or zero when the slot is empty.
	globalValidation types.ModuleEntity

	// interfaceRefs counts, per interface id, how many installed modules declare support for it.
	interfaceRefs map[types.InterfaceID]uint64

	// journal holds the inverse of every mutation since the last commit, newest last.
	journal []func()

	// logger is used for the diagnostic channel of lenient operations (missing-hook removal, interface
	// count underflow).
	logger *logging.Logger
}

// NewAccountStorage creates an empty AccountStorage logging diagnostics to the provided logger. A nil logger
// falls back to a sub-logger of the global logger.
func NewAccountStorage(logger *logging.Logger) *AccountStorage {
	if logger == nil {
		logger = logging.GlobalLogger.NewSubLogger("module", "account")
	}
	return &AccountStorage{
		executions:     make(map[types.Selector]*executionEntry),
		validations:    make(map[types.ModuleEntity]*validationEntry),
		selectorClaims: make(map[types.Selector]types.ModuleEntity),
		interfaceRefs:  make(map[types.InterfaceID]uint64),
		logger:         logger,
	}
}

// Snapshot marks the current journal position. Mutations made afterwards can be rolled back with
// RevertToSnapshot. Snapshots nest: a re-entrant operation taking its own snapshot inside an enclosing one
// composes correctly, as the journal unwinds LIFO.
func (s *AccountStorage) Snapshot() int {
	return len(s.journal)
}

// RevertToSnapshot undoes every mutation made since the provided snapshot, newest first.
func (s *AccountStorage) RevertToSnapshot(snapshot int) {
	for len(s.journal) > snapshot {
		last := len(s.journal) - 1
		s.journal[last]()
		s.journal = s.journal[:last]
	}
}

// Commit finalizes a successful operation that began at the provided snapshot. Undo entries are discarded
// only when the snapshot is the outermost one; inner (re-entrant) commits keep their entries so an enclosing
// revert can still unwind them.
func (s *AccountStorage) Commit(snapshot int) {
	if snapshot == 0 {
		s.journal = s.journal[:0]
	}
}

// record appends an inverse operation to the undo journal.
func (s *AccountStorage) record(undo func()) {
	s.journal = append(s.journal, undo)
}

// ensureExecution returns the execution entry for a selector, creating an unset one if absent.
func (s *AccountStorage) ensureExecution(selector types.Selector) *executionEntry {
	entry, ok := s.executions[selector]
	if !ok {
		entry = &executionEntry{hooks: NewOrderedSet[types.HookConfig]()}
		s.executions[selector] = entry
		s.record(func() { delete(s.executions, selector) })
	}
	return entry
}

// GetExecution returns the execution view for a selector. An unset selector yields the zero view.
func (s *AccountStorage) GetExecution(selector types.Selector) ExecutionView {
	entry, ok := s.executions[selector]
	if !ok {
		return ExecutionView{}
	}
	return ExecutionView{
		Module:                entry.module,
		SkipRuntimeValidation: entry.skipRuntimeValidation,
		AllowGlobalValidation: entry.allowGlobalValidation,
	}
}

// SetExecution assigns an owning module and dispatch flags to a selector. It fails with
// ExecutionFunctionAlreadySetError if the selector already has an owner; a selector has at most one owning
// module at a time.
func (s *AccountStorage) SetExecution(selector types.Selector, module common.Address, skipRuntimeValidation bool, allowGlobalValidation bool) error {
	if existing, ok := s.executions[selector]; ok && existing.module != (common.Address{}) {
		return &types.ExecutionFunctionAlreadySetError{Selector: selector, Owner: existing.module}
	}

	entry := s.ensureExecution(selector)
	prevSkip, prevAllow := entry.skipRuntimeValidation, entry.allowGlobalValidation
	s.record(func() {
		entry.module = common.Address{}
		entry.skipRuntimeValidation = prevSkip
		entry.allowGlobalValidation = prevAllow
	})

	entry.module = module
	entry.skipRuntimeValidation = skipRuntimeValidation
	entry.allowGlobalValidation = allowGlobalValidation
	return nil
}

// ClearExecution resets a selector's execution entry to the unset state, returning false if the selector has
// no entry. The selector's hook set is preserved; hooks are removed only through RemoveExecutionHook.
func (s *AccountStorage) ClearExecution(selector types.Selector) bool {
	entry, ok := s.executions[selector]
	if !ok {
		return false
	}

	prevModule := entry.module
	prevSkip, prevAllow := entry.skipRuntimeValidation, entry.allowGlobalValidation
	s.record(func() {
		entry.module = prevModule
		entry.skipRuntimeValidation = prevSkip
		entry.allowGlobalValidation = prevAllow
	})

	entry.module = common.Address{}
	entry.skipRuntimeValidation = false
	entry.allowGlobalValidation = false
	return true
}

// AddExecutionHook registers an execution hook for a selector. A duplicate registration fails with
// HookAlreadySetError; the zero hook configuration is rejected as the set's reserved sentinel.
func (s *AccountStorage) AddExecutionHook(selector types.Selector, hook types.HookConfig) error {
	entry := s.ensureExecution(selector)
	if err := entry.hooks.Add(hook); err != nil {
		if err == ErrDuplicateValue {
			return &types.HookAlreadySetError{Hook: hook}
		}
		return err
	}
	s.record(func() { entry.hooks.Remove(hook) })
	return nil
}

// RemoveExecutionHook removes an execution hook from a selector, returning false as a no-op if the hook (or
// the selector's entry) is absent. The leniency tolerates uninstall manifests drifting from installed state.
func (s *AccountStorage) RemoveExecutionHook(selector types.Selector, hook types.HookConfig) bool {
	entry, ok := s.executions[selector]
	if !ok || !entry.hooks.Contains(hook) {
		s.logger.Debug("Removal of unregistered execution hook ", hook.String(), " for selector ", selector.String(), " was a no-op")
		return false
	}

	captured := entry.hooks.captureState()
	s.record(func() { entry.hooks.restoreState(captured) })
	entry.hooks.Remove(hook)
	return true
}

// ExecutionHooks returns a selector's execution hooks in registration order.
func (s *AccountStorage) ExecutionHooks(selector types.Selector) []types.HookConfig {
	entry, ok := s.executions[selector]
	if !ok {
		return nil
	}
	return entry.hooks.Values()
}

// ensureValidation returns the validation entry for an entity, creating an empty one if absent.
func (s *AccountStorage) ensureValidation(entity types.ModuleEntity) *validationEntry {
	entry, ok := s.validations[entity]
	if !ok {
		entry = &validationEntry{
			selectors: NewOrderedSet[types.Selector](),
			preHooks:  NewOrderedSet[types.HookConfig](),
		}
		s.validations[entity] = entry
		s.record(func() { delete(s.validations, entity) })
	}
	return entry
}

// GetValidation returns the validation view for an entity. An absent entity yields the zero view.
func (s *AccountStorage) GetValidation(entity types.ModuleEntity) ValidationView {
	entry, ok := s.validations[entity]
	if !ok {
		return ValidationView{}
	}
	return ValidationView{
		Exists:                true,
		IsGlobal:              entry.isGlobal,
		IsSignatureValidation: entry.isSignatureValidation,
	}
}

// PutValidation creates or updates a validation entity's entry, setting its signature validation flag.
// Global status is managed exclusively through SetGlobalValidation so the single-slot invariant has one
// owner.
func (s *AccountStorage) PutValidation(entity types.ModuleEntity, isSignatureValidation bool) {
	entry := s.ensureValidation(entity)
	prev := entry.isSignatureValidation
	s.record(func() { entry.isSignatureValidation = prev })
	entry.isSignatureValidation = isSignatureValidation
}

// SetGlobalValidation makes an entity the account's global validation entity. If the slot is held by a
// different entity, the call fails with GlobalValidationAlreadySetError unless replace is set, in which case
// the prior occupant keeps its entry and selector associations but loses global status.
func (s *AccountStorage) SetGlobalValidation(entity types.ModuleEntity, replace bool) error {
	current := s.globalValidation
	if current == entity {
		return nil
	}
	if !current.IsZero() && !replace {
		return &types.GlobalValidationAlreadySetError{Current: current}
	}

	// Demote the prior occupant, if any.
	if prior, ok := s.validations[current]; ok {
		prevGlobal := prior.isGlobal
		s.record(func() { prior.isGlobal = prevGlobal })
		prior.isGlobal = false
	}

	entry := s.ensureValidation(entity)
	prevGlobal := entry.isGlobal
	s.record(func() {
		entry.isGlobal = prevGlobal
		s.globalValidation = current
	})
	entry.isGlobal = true
	s.globalValidation = entity
	return nil
}

// ClearGlobalValidation empties the global slot if the provided entity holds it, returning false otherwise.
func (s *AccountStorage) ClearGlobalValidation(entity types.ModuleEntity) bool {
	if s.globalValidation != entity {
		return false
	}

	current := s.globalValidation
	s.record(func() { s.globalValidation = current })
	s.globalValidation = types.ModuleEntity{}

	if entry, ok := s.validations[entity]; ok {
		prevGlobal := entry.isGlobal
		s.record(func() { entry.isGlobal = prevGlobal })
		entry.isGlobal = false
	}
	return true
}

// GlobalValidation returns the entity holding the global validation slot, or the zero entity when empty.
func (s *AccountStorage) GlobalValidation() types.ModuleEntity {
	return s.globalValidation
}

// ClaimSelector associates a selector with a validation entity, marking the association public if requested.
// It fails with ValidationAlreadySetError if the selector is already claimed, whether by a different entity
// (which would make dispatch ambiguous) or redundantly by the same one.
func (s *AccountStorage) ClaimSelector(selector types.Selector, entity types.ModuleEntity, public bool) error {
	if claimant, ok := s.selectorClaims[selector]; ok {
		return &types.ValidationAlreadySetError{Selector: selector, Entity: claimant}
	}

	entry := s.ensureValidation(entity)
	if err := entry.selectors.AddFlagged(selector, public); err != nil {
		return err
	}
	s.record(func() { entry.selectors.Remove(selector) })

	s.selectorClaims[selector] = entity
	s.record(func() { delete(s.selectorClaims, selector) })
	return nil
}

// ReleaseSelector removes a selector association from a validation entity, returning false as a no-op if the
// association does not exist.
func (s *AccountStorage) ReleaseSelector(selector types.Selector, entity types.ModuleEntity) bool {
	entry, ok := s.validations[entity]
	if !ok || !entry.selectors.Contains(selector) {
		return false
	}

	captured := entry.selectors.captureState()
	s.record(func() { entry.selectors.restoreState(captured) })
	entry.selectors.Remove(selector)

	claimant := s.selectorClaims[selector]
	s.record(func() { s.selectorClaims[selector] = claimant })
	delete(s.selectorClaims, selector)
	return true
}

// SelectorClaimant returns the non-global validation entity associated with a selector, or the zero entity
// if the selector is unclaimed.
func (s *AccountStorage) SelectorClaimant(selector types.Selector) types.ModuleEntity {
	return s.selectorClaims[selector]
}

// ValidationSelectors returns the selectors associated with a validation entity, in association order.
func (s *AccountStorage) ValidationSelectors(entity types.ModuleEntity) []types.Selector {
	entry, ok := s.validations[entity]
	if !ok {
		return nil
	}
	return entry.selectors.Values()
}

// SelectorPublic returns the public flag of an entity's selector association. The second return indicates
// whether the association exists at all.
func (s *AccountStorage) SelectorPublic(entity types.ModuleEntity, selector types.Selector) (bool, bool) {
	entry, ok := s.validations[entity]
	if !ok {
		return false, false
	}
	return entry.selectors.Flagged(selector)
}

// AddValidationHook registers a pre-validation hook for an entity. Duplicates fail with
// HookAlreadySetError.
func (s *AccountStorage) AddValidationHook(entity types.ModuleEntity, hook types.HookConfig) error {
	entry := s.ensureValidation(entity)
	if err := entry.preHooks.Add(hook); err != nil {
		if err == ErrDuplicateValue {
			return &types.HookAlreadySetError{Hook: hook}
		}
		return err
	}
	s.record(func() { entry.preHooks.Remove(hook) })
	return nil
}

// RemoveValidationHook removes a pre-validation hook from an entity, returning false as a no-op if absent.
func (s *AccountStorage) RemoveValidationHook(entity types.ModuleEntity, hook types.HookConfig) bool {
	entry, ok := s.validations[entity]
	if !ok || !entry.preHooks.Contains(hook) {
		s.logger.Debug("Removal of unregistered pre-validation hook ", hook.String(), " for entity ", entity.String(), " was a no-op")
		return false
	}

	captured := entry.preHooks.captureState()
	s.record(func() { entry.preHooks.restoreState(captured) })
	entry.preHooks.Remove(hook)
	return true
}

// ValidationHooks returns an entity's pre-validation hooks in registration order.
func (s *AccountStorage) ValidationHooks(entity types.ModuleEntity) []types.HookConfig {
	entry, ok := s.validations[entity]
	if !ok {
		return nil
	}
	return entry.preHooks.Values()
}

// DeleteValidation removes a validation entity's entry entirely, returning false if it does not exist. The
// caller is expected to have released the entity's selector claims and global status first.
func (s *AccountStorage) DeleteValidation(entity types.ModuleEntity) bool {
	entry, ok := s.validations[entity]
	if !ok {
		return false
	}
	s.record(func() { s.validations[entity] = entry })
	delete(s.validations, entity)
	return true
}

// AddInterfaceSupport increments the reference count of an interface id. Multiple modules may declare the
// same interface; the id is reported supported while any of them remains installed.
func (s *AccountStorage) AddInterfaceSupport(id types.InterfaceID) {
	s.record(func() { s.decrementInterface(id) })
	s.interfaceRefs[id]++
}

// RemoveInterfaceSupport decrements the reference count of an interface id. Decrementing an id with no
// remaining references is a warn-logged no-op; the count never goes negative.
func (s *AccountStorage) RemoveInterfaceSupport(id types.InterfaceID) {
	if s.interfaceRefs[id] == 0 {
		s.logger.Warn("Interface support removal for ", id.String(), " had no remaining references and was a no-op")
		return
	}
	s.record(func() { s.interfaceRefs[id]++ })
	s.decrementInterface(id)
}

// decrementInterface lowers an interface id's reference count, deleting the key when it reaches zero so
// introspection only reports live ids.
func (s *AccountStorage) decrementInterface(id types.InterfaceID) {
	if s.interfaceRefs[id] <= 1 {
		delete(s.interfaceRefs, id)
		return
	}
	s.interfaceRefs[id]--
}

// SupportsInterface indicates whether any installed module currently declares the interface id.
func (s *AccountStorage) SupportsInterface(id types.InterfaceID) bool {
	return s.interfaceRefs[id] > 0
}

// InstalledSelectors returns all selectors with an owning module, sorted for deterministic output.
func (s *AccountStorage) InstalledSelectors() []types.Selector {
	selectors := make([]types.Selector, 0, len(s.executions))
	for selector, entry := range s.executions {
		if entry.module != (common.Address{}) {
			selectors = append(selectors, selector)
		}
	}
	slices.SortFunc(selectors, func(a, b types.Selector) int { return a.Cmp(b) })
	return selectors
}

// InstalledValidations returns all installed validation entities, sorted for deterministic output.
func (s *AccountStorage) InstalledValidations() []types.ModuleEntity {
	entities := maps.Keys(s.validations)
	slices.SortFunc(entities, func(a, b types.ModuleEntity) int {
		aPacked, bPacked := a.Pack(), b.Pack()
		return slices.Compare(aPacked[:], bPacked[:])
	})
	return entities
}

// SupportedInterfaces returns all interface ids with a positive reference count, sorted for deterministic
// output.
func (s *AccountStorage) SupportedInterfaces() []types.InterfaceID {
	ids := maps.Keys(s.interfaceRefs)
	slices.SortFunc(ids, func(a, b types.InterfaceID) int { return a.Cmp(b) })
	return ids
}
