package scenario

import (
	"encoding/json"
	"testing"

	"github.com/chimera-eth/chimera/account/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
)

// TestNewModuleKinds verifies instantiation of every built-in kind and rejection of unknown ones.
func TestNewModuleKinds(t *testing.T) {
	env := &ModuleEnv{Log: NewInvocationLog()}

	for _, kind := range []string{KindCounter, KindOwnerValidator, KindDenyValidator, KindFaulty, KindInstaller} {
		module, err := NewModule(kind, nil, env)
		assert.NoError(t, err, "kind %q failed to instantiate", kind)
		assert.NotNil(t, module)
	}

	// A recorder requires a label.
	_, err := NewModule(KindRecorder, nil, env)
	assert.Error(t, err)
	module, err := NewModule(KindRecorder, json.RawMessage(`{"label":"A"}`), env)
	assert.NoError(t, err)
	assert.NotNil(t, module)

	// Unknown kinds and malformed parameters are rejected.
	_, err = NewModule("geiger", nil, env)
	assert.Error(t, err)
	_, err = NewModule(KindFaulty, json.RawMessage(`{`), env)
	assert.Error(t, err)
}

// TestCounterModule verifies the counter's increment/get semantics and its ABI-style word encoding.
func TestCounterModule(t *testing.T) {
	module, err := NewModule(KindCounter, nil, &ModuleEnv{})
	assert.NoError(t, err)
	counter := module.(types.ExecutionModule)

	output, err := counter.ExecuteCall(nil, &types.Call{Selector: SelectorCounterIncrement})
	assert.NoError(t, err)
	one := uint256.NewInt(1).Bytes32()
	assert.EqualValues(t, one[:], output)

	output, err = counter.ExecuteCall(nil, &types.Call{Selector: SelectorCounterIncrement})
	assert.NoError(t, err)
	two := uint256.NewInt(2).Bytes32()
	assert.EqualValues(t, two[:], output)

	output, err = counter.ExecuteCall(nil, &types.Call{Selector: SelectorCounterGet})
	assert.NoError(t, err)
	assert.EqualValues(t, two[:], output)

	// Selectors the counter does not implement are rejected.
	_, err = counter.ExecuteCall(nil, &types.Call{Selector: types.ComputeSelector("reset()")})
	assert.Error(t, err)
}

// TestOwnerValidatorModule verifies runtime approval by caller and signature verification by shared secret,
// including the hex-string owner parameter form.
func TestOwnerValidatorModule(t *testing.T) {
	owner := common.HexToAddress("0x2000")
	params := json.RawMessage(`{"ownerHex": "0x0000000000000000000000000000000000002000", "secret": "hunter2"}`)
	module, err := NewModule(KindOwnerValidator, params, &ModuleEnv{})
	assert.NoError(t, err)
	validator := module.(types.ValidationModule)

	// The hex parameter form resolves during the install callback.
	assert.NoError(t, module.OnInstall(nil))
	assert.NoError(t, validator.ValidateRuntime(nil, 1, &types.Call{Caller: owner}))
	assert.Error(t, validator.ValidateRuntime(nil, 1, &types.Call{Caller: common.HexToAddress("0x4000")}))

	digest := crypto.Keccak256Hash([]byte("message"))
	good := crypto.Keccak256(append([]byte("hunter2"), digest.Bytes()...))
	assert.NoError(t, validator.ValidateSignature(1, digest, good))
	assert.Error(t, validator.ValidateSignature(1, digest, []byte("forged")))
}

// TestRecorderModule verifies entries land in the shared invocation log with context plumbing.
func TestRecorderModule(t *testing.T) {
	log := NewInvocationLog()
	module, err := NewModule(KindRecorder, json.RawMessage(`{"label":"A"}`), &ModuleEnv{Log: log})
	assert.NoError(t, err)
	recorder := module.(types.ExecutionHookModule)

	ctx, err := recorder.PreExecutionHook(7, &types.Call{})
	assert.NoError(t, err)
	assert.NoError(t, recorder.PostExecutionHook(7, ctx))
	assert.NoError(t, module.(types.ValidationHookModule).PreValidationHook(3, &types.Call{}))
	assert.EqualValues(t, []string{"A:pre:7", "A:post:7:ctx=A:7", "A:preValidation:3"}, log.Entries())
}

// TestFaultyModule verifies each configured failure point fires.
func TestFaultyModule(t *testing.T) {
	params := json.RawMessage(`{"failOnInstall": true, "failOnUninstall": true, "failPreHook": true, "failPostHook": true, "failExecute": true}`)
	module, err := NewModule(KindFaulty, params, &ModuleEnv{})
	assert.NoError(t, err)

	assert.Error(t, module.OnInstall(nil))
	assert.Error(t, module.OnUninstall(nil))
	faulty := module.(types.ExecutionHookModule)
	_, err = faulty.PreExecutionHook(1, &types.Call{})
	assert.Error(t, err)
	assert.Error(t, faulty.PostExecutionHook(1, nil))
	_, err = module.(types.ExecutionModule).ExecuteCall(nil, &types.Call{})
	assert.Error(t, err)

	// The panic variant panics rather than returning.
	module, err = NewModule(KindFaulty, json.RawMessage(`{"panicOnUninstall": true}`), &ModuleEnv{})
	assert.NoError(t, err)
	assert.Panics(t, func() { _ = module.OnUninstall(nil) })

	// Omitting the base module interface fails the capability query installs depend on.
	module, err = NewModule(KindFaulty, json.RawMessage(`{"omitModuleInterface": true}`), &ModuleEnv{})
	assert.NoError(t, err)
	assert.False(t, module.SupportsInterface(types.InterfaceIDModule))
}
