package account

import (
	"fmt"

	"github.com/chimera-eth/chimera/account/types"
	"github.com/ethereum/go-ethereum/common"
)

// Shared identity addresses used across the package's tests.
var (
	testAccountAddr    = common.HexToAddress("0x1000")
	testOwnerAddr      = common.HexToAddress("0x2000")
	testEntryPointAddr = common.HexToAddress("0x3000")
	testStrangerAddr   = common.HexToAddress("0x4000")
)

// newTestAccount creates a fresh account with the shared test identity addresses.
func newTestAccount() *ModularAccount {
	return NewModularAccount(testAccountAddr, testOwnerAddr, testEntryPointAddr)
}

// testModule is a configurable module used as the base of the package's test doubles. Its lifecycle
// callbacks can be made to fail or panic, and it records the payloads they received.
type testModule struct {
	id                string
	interfaces        []types.InterfaceID
	installErr        error
	uninstallErr      error
	panicOnUninstall  bool
	installPayloads   [][]byte
	uninstallPayloads [][]byte
}

func (m *testModule) ModuleID() string {
	if m.id == "" {
		return "chimera.test-module.1.0.0"
	}
	return m.id
}

func (m *testModule) OnInstall(data []byte) error {
	m.installPayloads = append(m.installPayloads, data)
	return m.installErr
}

func (m *testModule) OnUninstall(data []byte) error {
	m.uninstallPayloads = append(m.uninstallPayloads, data)
	if m.panicOnUninstall {
		panic("uninstall callback panic")
	}
	return m.uninstallErr
}

func (m *testModule) SupportsInterface(id types.InterfaceID) bool {
	if id == types.InterfaceIDModule || id == types.InterfaceIDERC165 {
		return true
	}
	for _, supported := range m.interfaces {
		if id == supported {
			return true
		}
	}
	return false
}

// testExecutionModule executes calls through a configurable function.
type testExecutionModule struct {
	testModule
	execute func(account types.Account, call *types.Call) ([]byte, error)
}

func newTestExecutionModule() *testExecutionModule {
	return &testExecutionModule{
		testModule: testModule{interfaces: []types.InterfaceID{types.InterfaceIDExecutionModule}},
	}
}

func (m *testExecutionModule) ExecuteCall(account types.Account, call *types.Call) ([]byte, error) {
	if m.execute == nil {
		return []byte("ok"), nil
	}
	return m.execute(account, call)
}

// testValidationModule approves or rejects runtime calls and signatures through configurable functions.
type testValidationModule struct {
	testModule
	validateRuntime   func(entity types.EntityID, call *types.Call) error
	validateSignature func(entity types.EntityID, digest common.Hash, signature []byte) error
}

func newTestValidationModule() *testValidationModule {
	return &testValidationModule{
		testModule: testModule{interfaces: []types.InterfaceID{types.InterfaceIDValidationModule}},
	}
}

func (m *testValidationModule) ValidateRuntime(account types.Account, entity types.EntityID, call *types.Call) error {
	if m.validateRuntime == nil {
		return nil
	}
	return m.validateRuntime(entity, call)
}

func (m *testValidationModule) ValidateSignature(entity types.EntityID, digest common.Hash, signature []byte) error {
	if m.validateSignature == nil {
		return nil
	}
	return m.validateSignature(entity, digest, signature)
}

// testHookModule implements both hook capabilities, appending labeled entries to a shared log so tests can
// assert invocation ordering. Failures are configurable per phase.
type testHookModule struct {
	testModule
	label       string
	log         *[]string
	preErr      error
	postErr     error
	preValidErr error
}

func newTestHookModule(label string, log *[]string) *testHookModule {
	return &testHookModule{
		testModule: testModule{interfaces: []types.InterfaceID{
			types.InterfaceIDExecutionHookModule,
			types.InterfaceIDValidationHookModule,
		}},
		label: label,
		log:   log,
	}
}

func (m *testHookModule) record(entry string) {
	if m.log != nil {
		*m.log = append(*m.log, entry)
	}
}

func (m *testHookModule) PreValidationHook(entity types.EntityID, call *types.Call) error {
	m.record(fmt.Sprintf("%s:preValidation:%d", m.label, entity))
	return m.preValidErr
}

func (m *testHookModule) PreExecutionHook(entity types.EntityID, call *types.Call) ([]byte, error) {
	m.record(fmt.Sprintf("%s:pre:%d", m.label, entity))
	if m.preErr != nil {
		return nil, m.preErr
	}
	return []byte(fmt.Sprintf("%s:%d", m.label, entity)), nil
}

func (m *testHookModule) PostExecutionHook(entity types.EntityID, hookContext []byte) error {
	m.record(fmt.Sprintf("%s:post:%d:ctx=%s", m.label, entity, string(hookContext)))
	return m.postErr
}

// singleFunctionManifest builds an execution manifest claiming one selector with no hooks.
func singleFunctionManifest(selector types.Selector, allowGlobal bool) *types.ExecutionManifest {
	return &types.ExecutionManifest{
		ExecutionFunctions: []types.ExecutionFunction{
			{Selector: selector, AllowGlobalValidation: allowGlobal},
		},
	}
}
