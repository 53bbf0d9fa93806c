package scenario

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/chimera-eth/chimera/account/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"
	"golang.org/x/crypto/sha3"
)

// Step operation names. Each step of a scenario performs exactly one of these against the simulated account.
const (
	// OpInstallExecution installs an execution manifest for a module.
	OpInstallExecution = "installExecution"

	// OpUninstallExecution uninstalls an execution manifest for a module.
	OpUninstallExecution = "uninstallExecution"

	// OpInstallValidation installs a validation entity.
	OpInstallValidation = "installValidation"

	// OpUninstallValidation uninstalls a validation entity.
	OpUninstallValidation = "uninstallValidation"

	// OpCall dispatches a call through the account.
	OpCall = "call"
)

// Scenario is a deterministic, replayable description of one verification run: the account's identity, the
// modules bound for the run, and an ordered list of steps with expectations.
type Scenario struct {
	// Name identifies the scenario in reports and the journal.
	Name string `json:"name"`

	// Account configures the simulated account's identity addresses.
	Account AccountConfig `json:"account"`

	// Modules are the module instances to bind before any step executes.
	Modules []ModuleBinding `json:"modules"`

	// Steps are the operations to execute, in order.
	Steps []Step `json:"steps"`
}

// AccountConfig configures the identity addresses of the simulated account.
type AccountConfig struct {
	// Address is the account's own address.
	Address common.Address `json:"address"`

	// Owner is the address authorized to operate the account directly.
	Owner common.Address `json:"owner"`

	// EntryPoint is the trusted entry point address.
	EntryPoint common.Address `json:"entryPoint"`
}

// ModuleBinding binds one built-in module kind at an address for the duration of a run.
type ModuleBinding struct {
	// Address is the address the module instance is bound at.
	Address common.Address `json:"address"`

	// Kind names the built-in module kind to instantiate, e.g. "counter" or "recorder".
	Kind string `json:"kind"`

	// Params is the kind-specific configuration payload, if any.
	Params json.RawMessage `json:"params,omitempty"`
}

// CallSpec describes the call dispatched by an OpCall step.
type CallSpec struct {
	// Caller is the address the call originates from.
	Caller common.Address `json:"caller"`

	// Selector is the function selector the call targets.
	Selector types.Selector `json:"selector"`

	// Data is the call argument payload.
	Data hexutil.Bytes `json:"data,omitempty"`

	// Value is the native token value attached to the call.
	Value *hexutil.Big `json:"value,omitempty"`

	// Authorization is the caller-asserted validation entity. The zero value defers to the account's global
	// validation entity.
	Authorization types.ModuleEntity `json:"authorization"`
}

// Step is one operation of a scenario. Op selects which of the operation-specific fields apply.
type Step struct {
	// Op names the operation to perform.
	Op string `json:"op"`

	// Module is the module address the operation targets, for install/uninstall ops.
	Module common.Address `json:"module,omitempty"`

	// Entity is the module-scoped entity id, for validation ops.
	Entity types.EntityID `json:"entity,omitempty"`

	// ExecutionManifest is the manifest applied by execution install/uninstall ops.
	ExecutionManifest *types.ExecutionManifest `json:"executionManifest,omitempty"`

	// ValidationManifest is the manifest applied by installValidation.
	ValidationManifest *types.ValidationManifest `json:"validationManifest,omitempty"`

	// Data is the payload passed to the module lifecycle callback, for install/uninstall ops.
	Data hexutil.Bytes `json:"data,omitempty"`

	// ReplaceGlobal requests replacement of an existing global validation entity, for installValidation.
	ReplaceGlobal bool `json:"replaceGlobal,omitempty"`

	// Call is the call dispatched by OpCall.
	Call *CallSpec `json:"call,omitempty"`

	// Expect is the step's expectation. A nil expectation means the step is expected to succeed.
	Expect *Expectation `json:"expect,omitempty"`
}

// Expectation describes the expected outcome of one step. Unset fields are not checked.
type Expectation struct {
	// Failed indicates the step is expected to fail.
	Failed bool `json:"failed,omitempty"`

	// ErrorContains requires the step's error text to contain this substring.
	ErrorContains string `json:"errorContains,omitempty"`

	// Output requires a call step's output to match exactly.
	Output *hexutil.Bytes `json:"output,omitempty"`

	// CallbackOK requires an uninstall step's lifecycle callback success flag to match.
	CallbackOK *bool `json:"callbackOk,omitempty"`
}

// Check evaluates the expectation against a step's outcome, returning a descriptive error on mismatch.
func (e *Expectation) Check(failed bool, stepErr error, output []byte, callbackOK *bool) error {
	// A nil expectation means plain success is expected.
	if e == nil {
		if failed {
			return fmt.Errorf("step failed unexpectedly: %v", stepErr)
		}
		return nil
	}

	if e.Failed != failed {
		if e.Failed {
			return fmt.Errorf("step succeeded but was expected to fail")
		}
		return fmt.Errorf("step failed unexpectedly: %v", stepErr)
	}
	if e.ErrorContains != "" {
		if stepErr == nil {
			return fmt.Errorf("step produced no error, expected one containing %q", e.ErrorContains)
		}
		if !strings.Contains(stepErr.Error(), e.ErrorContains) {
			return fmt.Errorf("step error %q does not contain %q", stepErr.Error(), e.ErrorContains)
		}
	}
	if e.Output != nil && !bytes.Equal(output, *e.Output) {
		return fmt.Errorf("step output %s does not match expected output %s", hexutil.Bytes(output), *e.Output)
	}
	if e.CallbackOK != nil {
		if callbackOK == nil {
			return fmt.Errorf("step has no lifecycle callback result to check")
		}
		if *callbackOK != *e.CallbackOK {
			return fmt.Errorf("lifecycle callback success was %t, expected %t", *callbackOK, *e.CallbackOK)
		}
	}
	return nil
}

// LoadFromFile reads a JSON-serialized Scenario from a provided file path.
func LoadFromFile(path string) (*Scenario, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	scenario := &Scenario{}
	if err = json.Unmarshal(b, scenario); err != nil {
		return nil, errors.WithStack(err)
	}
	return scenario, nil
}

// WriteToFile writes the Scenario to a provided file path in a JSON-serialized format.
func (s *Scenario) WriteToFile(path string) error {
	b, err := json.MarshalIndent(s, "", "\t")
	if err != nil {
		return errors.WithStack(err)
	}
	if err = os.WriteFile(path, b, 0644); err != nil {
		return errors.WithStack(err)
	}
	return nil
}

// Hash returns a digest over the scenario's canonical JSON form, identifying the exact scenario content a
// journaled run executed.
func (s *Scenario) Hash() (common.Hash, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return common.Hash{}, errors.WithStack(err)
	}

	hasher := sha3.NewLegacyKeccak256()
	hasher.Write(b)
	return common.BytesToHash(hasher.Sum(nil)), nil
}

// Validate validates that the Scenario meets baseline requirements before a run: a name, no duplicate module
// bindings, and well-formed steps.
func (s *Scenario) Validate() error {
	if s.Name == "" {
		return errors.Errorf("scenario must have a name")
	}

	seen := make(map[common.Address]struct{}, len(s.Modules))
	for _, binding := range s.Modules {
		if binding.Address == (common.Address{}) {
			return errors.Errorf("module binding has a null address")
		}
		if _, duplicate := seen[binding.Address]; duplicate {
			return errors.Errorf("duplicate module binding at address %s", binding.Address.Hex())
		}
		seen[binding.Address] = struct{}{}
		if binding.Kind == "" {
			return errors.Errorf("module binding at %s has no kind", binding.Address.Hex())
		}
	}

	for i, step := range s.Steps {
		switch step.Op {
		case OpInstallExecution, OpUninstallExecution:
			if step.ExecutionManifest == nil {
				return errors.Errorf("step %d (%s) is missing an execution manifest", i, step.Op)
			}
		case OpInstallValidation:
			if step.ValidationManifest == nil {
				return errors.Errorf("step %d (%s) is missing a validation manifest", i, step.Op)
			}
		case OpUninstallValidation:
			// No manifest needed; the entity's installed state drives removal.
		case OpCall:
			if step.Call == nil {
				return errors.Errorf("step %d (%s) is missing a call specification", i, step.Op)
			}
		default:
			return errors.Errorf("step %d has unknown operation %q", i, step.Op)
		}
	}
	return nil
}
