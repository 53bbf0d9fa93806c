package scenario

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/chimera-eth/chimera/account/types"
	"github.com/chimera-eth/chimera/utils"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
)

// Built-in module kinds that scenario files may bind. Each kind is a small in-process module exercising a
// distinct aspect of the account core.
const (
	// KindCounter is an execution module maintaining a counter behind increment()/get() selectors.
	KindCounter = "counter"

	// KindOwnerValidator is a validation module approving runtime calls from a configured owner address and
	// signatures derived from a shared secret.
	KindOwnerValidator = "owner-validator"

	// KindDenyValidator is a validation module rejecting every call.
	KindDenyValidator = "deny-validator"

	// KindRecorder is a hook module recording every invocation into the run's shared invocation log; it is
	// the oracle scenarios use to assert hook ordering.
	KindRecorder = "recorder"

	// KindFaulty is a module with configurable lifecycle, hook, and execution failures.
	KindFaulty = "faulty"

	// KindInstaller is an execution module whose execution re-enters the account and installs another
	// manifest, for re-entrancy scenarios.
	KindInstaller = "installer"
)

// Selectors of the counter module's execution functions.
var (
	// SelectorCounterIncrement is the selector of the counter module's increment function.
	SelectorCounterIncrement = types.ComputeSelector("increment()")

	// SelectorCounterGet is the selector of the counter module's read function.
	SelectorCounterGet = types.ComputeSelector("get()")
)

// InvocationLog is an append-only record of labeled module invocations shared by every recorder module of a
// run. Scenarios and tests read it back to verify ordering.
type InvocationLog struct {
	// entries are the recorded invocation labels, in invocation order.
	entries []string
}

// NewInvocationLog creates an empty InvocationLog.
func NewInvocationLog() *InvocationLog {
	return &InvocationLog{}
}

// Append records one invocation label.
func (l *InvocationLog) Append(entry string) {
	l.entries = append(l.entries, entry)
}

// Entries returns the recorded invocation labels in invocation order.
func (l *InvocationLog) Entries() []string {
	return append([]string(nil), l.entries...)
}

// ModuleEnv carries the per-run collaborators built-in modules may need, such as the shared invocation log.
type ModuleEnv struct {
	// Log is the run's shared invocation log, appended to by recorder modules.
	Log *InvocationLog
}

// NewModule instantiates a built-in module of the named kind with kind-specific JSON parameters. Unknown
// kinds and malformed parameters return an error.
func NewModule(kind string, params json.RawMessage, env *ModuleEnv) (types.Module, error) {
	switch kind {
	case KindCounter:
		return &counterModule{}, nil
	case KindOwnerValidator:
		module := &ownerValidatorModule{}
		if err := unmarshalParams(params, module); err != nil {
			return nil, err
		}
		return module, nil
	case KindDenyValidator:
		return &denyValidatorModule{}, nil
	case KindRecorder:
		module := &recorderModule{log: env.Log}
		if err := unmarshalParams(params, module); err != nil {
			return nil, err
		}
		if module.Label == "" {
			return nil, errors.Errorf("recorder module requires a label parameter")
		}
		return module, nil
	case KindFaulty:
		module := &faultyModule{}
		if err := unmarshalParams(params, module); err != nil {
			return nil, err
		}
		return module, nil
	case KindInstaller:
		module := &installerModule{}
		if err := unmarshalParams(params, module); err != nil {
			return nil, err
		}
		return module, nil
	default:
		return nil, errors.Errorf("unknown module kind %q", kind)
	}
}

// unmarshalParams decodes kind-specific parameters into a module, tolerating an absent payload.
func unmarshalParams(params json.RawMessage, into any) error {
	if len(params) == 0 {
		return nil
	}
	if err := json.Unmarshal(params, into); err != nil {
		return errors.WithStack(err)
	}
	return nil
}

// counterModule is an execution module maintaining a uint64 counter. increment() adds one and returns the
// new value; get() returns the current value. Values are returned ABI-style as 32-byte big-endian words.
type counterModule struct {
	// count is the current counter value.
	count uint64
}

func (m *counterModule) ModuleID() string {
	return "chimera.counter.1.0.0"
}

func (m *counterModule) OnInstall(data []byte) error {
	return nil
}

func (m *counterModule) OnUninstall(data []byte) error {
	return nil
}

func (m *counterModule) SupportsInterface(id types.InterfaceID) bool {
	return id == types.InterfaceIDModule || id == types.InterfaceIDERC165 || id == types.InterfaceIDExecutionModule
}

func (m *counterModule) ExecuteCall(account types.Account, call *types.Call) ([]byte, error) {
	switch call.Selector {
	case SelectorCounterIncrement:
		m.count++
		word := uint256.NewInt(m.count).Bytes32()
		return word[:], nil
	case SelectorCounterGet:
		word := uint256.NewInt(m.count).Bytes32()
		return word[:], nil
	default:
		return nil, fmt.Errorf("counter module does not implement selector %s", call.Selector)
	}
}

// ownerValidatorModule is a validation module approving runtime calls originating from a configured owner
// address. Its signature validation accepts signatures equal to keccak256(secret || digest), a deterministic
// stand-in for real cryptographic verification.
type ownerValidatorModule struct {
	// Owner is the address whose runtime calls are approved.
	Owner common.Address `json:"owner"`

	// OwnerHex optionally configures the owner as a hex string for scenario files.
	OwnerHex string `json:"ownerHex,omitempty"`

	// Secret is the shared secret signatures are derived from.
	Secret string `json:"secret,omitempty"`
}

func (m *ownerValidatorModule) ModuleID() string {
	return "chimera.owner-validator.1.0.0"
}

func (m *ownerValidatorModule) OnInstall(data []byte) error {
	// Allow the owner to arrive via the hex parameter form.
	if m.OwnerHex != "" {
		owner, err := utils.HexStringToAddress(m.OwnerHex)
		if err != nil {
			return err
		}
		m.Owner = *owner
	}
	return nil
}

func (m *ownerValidatorModule) OnUninstall(data []byte) error {
	return nil
}

func (m *ownerValidatorModule) SupportsInterface(id types.InterfaceID) bool {
	return id == types.InterfaceIDModule || id == types.InterfaceIDERC165 || id == types.InterfaceIDValidationModule
}

func (m *ownerValidatorModule) ValidateRuntime(account types.Account, entity types.EntityID, call *types.Call) error {
	if call.Caller != m.Owner {
		return fmt.Errorf("caller %s is not the configured owner %s", call.Caller.Hex(), m.Owner.Hex())
	}
	return nil
}

func (m *ownerValidatorModule) ValidateSignature(entity types.EntityID, digest common.Hash, signature []byte) error {
	expected := crypto.Keccak256(append([]byte(m.Secret), digest.Bytes()...))
	if !bytes.Equal(signature, expected) {
		return fmt.Errorf("signature does not match the configured secret for digest %s", digest.Hex())
	}
	return nil
}

// denyValidatorModule is a validation module rejecting every call and signature.
type denyValidatorModule struct{}

func (m *denyValidatorModule) ModuleID() string {
	return "chimera.deny-validator.1.0.0"
}

func (m *denyValidatorModule) OnInstall(data []byte) error {
	return nil
}

func (m *denyValidatorModule) OnUninstall(data []byte) error {
	return nil
}

func (m *denyValidatorModule) SupportsInterface(id types.InterfaceID) bool {
	return id == types.InterfaceIDModule || id == types.InterfaceIDERC165 || id == types.InterfaceIDValidationModule
}

func (m *denyValidatorModule) ValidateRuntime(account types.Account, entity types.EntityID, call *types.Call) error {
	return fmt.Errorf("deny validator rejects all calls")
}

func (m *denyValidatorModule) ValidateSignature(entity types.EntityID, digest common.Hash, signature []byte) error {
	return fmt.Errorf("deny validator rejects all signatures")
}

// recorderModule is a hook module (both execution and validation hooks) appending a labeled entry to the
// run's shared invocation log on every invocation. Pre-execution hooks return their label as the hook
// context so the paired post can assert context plumbing.
type recorderModule struct {
	// Label prefixes every entry the module records.
	Label string `json:"label"`

	// log is the run's shared invocation log.
	log *InvocationLog
}

func (m *recorderModule) ModuleID() string {
	return "chimera.recorder.1.0.0"
}

func (m *recorderModule) OnInstall(data []byte) error {
	return nil
}

func (m *recorderModule) OnUninstall(data []byte) error {
	return nil
}

func (m *recorderModule) SupportsInterface(id types.InterfaceID) bool {
	return id == types.InterfaceIDModule || id == types.InterfaceIDERC165 ||
		id == types.InterfaceIDExecutionHookModule || id == types.InterfaceIDValidationHookModule
}

func (m *recorderModule) PreValidationHook(entity types.EntityID, call *types.Call) error {
	m.log.Append(fmt.Sprintf("%s:preValidation:%d", m.Label, entity))
	return nil
}

func (m *recorderModule) PreExecutionHook(entity types.EntityID, call *types.Call) ([]byte, error) {
	m.log.Append(fmt.Sprintf("%s:pre:%d", m.Label, entity))
	return []byte(fmt.Sprintf("%s:%d", m.Label, entity)), nil
}

func (m *recorderModule) PostExecutionHook(entity types.EntityID, hookContext []byte) error {
	m.log.Append(fmt.Sprintf("%s:post:%d:ctx=%s", m.Label, entity, string(hookContext)))
	return nil
}

// faultyModule is a module with configurable failures at every integration point, used to verify the
// account's failure policies: install atomicity, insulated uninstall callbacks, and fail-closed hooks.
type faultyModule struct {
	// FailOnInstall makes OnInstall return an error.
	FailOnInstall bool `json:"failOnInstall,omitempty"`

	// FailOnUninstall makes OnUninstall return an error.
	FailOnUninstall bool `json:"failOnUninstall,omitempty"`

	// PanicOnUninstall makes OnUninstall panic rather than return.
	PanicOnUninstall bool `json:"panicOnUninstall,omitempty"`

	// OmitModuleInterface makes the module fail the base capability query, rejecting installs.
	OmitModuleInterface bool `json:"omitModuleInterface,omitempty"`

	// FailPreHook makes PreExecutionHook return an error.
	FailPreHook bool `json:"failPreHook,omitempty"`

	// FailPostHook makes PostExecutionHook return an error.
	FailPostHook bool `json:"failPostHook,omitempty"`

	// FailExecute makes ExecuteCall return an error.
	FailExecute bool `json:"failExecute,omitempty"`
}

func (m *faultyModule) ModuleID() string {
	return "chimera.faulty.1.0.0"
}

func (m *faultyModule) OnInstall(data []byte) error {
	if m.FailOnInstall {
		return fmt.Errorf("faulty module install failure")
	}
	return nil
}

func (m *faultyModule) OnUninstall(data []byte) error {
	if m.PanicOnUninstall {
		panic("faulty module uninstall panic")
	}
	if m.FailOnUninstall {
		return fmt.Errorf("faulty module uninstall failure")
	}
	return nil
}

func (m *faultyModule) SupportsInterface(id types.InterfaceID) bool {
	if m.OmitModuleInterface && id == types.InterfaceIDModule {
		return false
	}
	return id == types.InterfaceIDModule || id == types.InterfaceIDERC165 ||
		id == types.InterfaceIDExecutionModule || id == types.InterfaceIDExecutionHookModule ||
		id == types.InterfaceIDValidationModule
}

func (m *faultyModule) ExecuteCall(account types.Account, call *types.Call) ([]byte, error) {
	if m.FailExecute {
		return nil, fmt.Errorf("faulty module execution failure")
	}
	return nil, nil
}

func (m *faultyModule) ValidateRuntime(account types.Account, entity types.EntityID, call *types.Call) error {
	return nil
}

func (m *faultyModule) ValidateSignature(entity types.EntityID, digest common.Hash, signature []byte) error {
	return fmt.Errorf("faulty module does not validate signatures")
}

func (m *faultyModule) PreExecutionHook(entity types.EntityID, call *types.Call) ([]byte, error) {
	if m.FailPreHook {
		return nil, fmt.Errorf("faulty module pre-hook failure")
	}
	return nil, nil
}

func (m *faultyModule) PostExecutionHook(entity types.EntityID, hookContext []byte) error {
	if m.FailPostHook {
		return fmt.Errorf("faulty module post-hook failure")
	}
	return nil
}

// installerModule is an execution module whose execution re-enters the account and installs a configured
// manifest for another module, exercising re-entrant mutation during dispatch.
type installerModule struct {
	// Target is the module address whose manifest is installed on execution.
	Target common.Address `json:"target"`

	// Manifest is the execution manifest installed on execution.
	Manifest *types.ExecutionManifest `json:"manifest"`

	// InstallData is the payload passed to the nested install.
	InstallData hexutil.Bytes `json:"installData,omitempty"`
}

func (m *installerModule) ModuleID() string {
	return "chimera.installer.1.0.0"
}

func (m *installerModule) OnInstall(data []byte) error {
	if m.Manifest == nil {
		return fmt.Errorf("installer module requires a manifest parameter")
	}
	return nil
}

func (m *installerModule) OnUninstall(data []byte) error {
	return nil
}

func (m *installerModule) SupportsInterface(id types.InterfaceID) bool {
	return id == types.InterfaceIDModule || id == types.InterfaceIDERC165 || id == types.InterfaceIDExecutionModule
}

func (m *installerModule) ExecuteCall(account types.Account, call *types.Call) ([]byte, error) {
	if err := account.InstallExecution(m.Target, m.Manifest, m.InstallData); err != nil {
		return nil, err
	}
	return nil, nil
}
