package scenario

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/chimera-eth/chimera/account/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

// TestRunnerPassingScenario runs a scenario end to end: install a counter and a recorder hook, install a
// global owner validator, dispatch increment() from the owner, and check the returned counter word.
func TestRunnerPassingScenario(t *testing.T) {
	counterAddr := common.HexToAddress("0xaa")
	validatorAddr := common.HexToAddress("0xbb")
	recorderAddr := common.HexToAddress("0xcc")
	owner := common.HexToAddress("0x2000")

	one := uint256.NewInt(1).Bytes32()
	expectedOutput := hexutil.Bytes(one[:])

	s := &Scenario{
		Name: "counter-with-hooks",
		Account: AccountConfig{
			Address:    common.HexToAddress("0x1000"),
			Owner:      owner,
			EntryPoint: common.HexToAddress("0x3000"),
		},
		Modules: []ModuleBinding{
			{Address: counterAddr, Kind: KindCounter},
			{Address: validatorAddr, Kind: KindOwnerValidator, Params: json.RawMessage(`{"owner": "0x0000000000000000000000000000000000002000"}`)},
			{Address: recorderAddr, Kind: KindRecorder, Params: json.RawMessage(`{"label":"A"}`)},
		},
		Steps: []Step{
			{
				Op:     OpInstallExecution,
				Module: counterAddr,
				ExecutionManifest: &types.ExecutionManifest{
					ExecutionFunctions: []types.ExecutionFunction{
						{Selector: SelectorCounterIncrement, AllowGlobalValidation: true},
					},
				},
			},
			{
				Op:     OpInstallExecution,
				Module: recorderAddr,
				ExecutionManifest: &types.ExecutionManifest{
					ExecutionHooks: []types.ManifestExecutionHook{
						{Selector: SelectorCounterIncrement, Entity: 1, HasPre: true, HasPost: true},
					},
				},
			},
			{
				Op:                 OpInstallValidation,
				Module:             validatorAddr,
				Entity:             1,
				ValidationManifest: &types.ValidationManifest{IsGlobal: true},
			},
			{
				Op:     OpCall,
				Call:   &CallSpec{Caller: owner, Selector: SelectorCounterIncrement},
				Expect: &Expectation{Output: &expectedOutput},
			},
		},
	}

	runner := NewRunner(nil)
	var stepEvents []StepCompletedEvent
	var finished []RunFinishedEvent
	runner.Events.StepCompleted.Subscribe(func(event StepCompletedEvent) {
		stepEvents = append(stepEvents, event)
	})
	runner.Events.RunFinished.Subscribe(func(event RunFinishedEvent) {
		finished = append(finished, event)
	})

	report, err := runner.Run(s)
	assert.NoError(t, err)
	assert.EqualValues(t, RunStatePassed, report.Status)
	assert.EqualValues(t, 4, report.Passed)
	assert.EqualValues(t, 0, report.Failed)
	assert.True(t, report.PassRate.Equal(decimal.NewFromInt(1)))
	assert.EqualValues(t, s.Name, report.Scenario)
	assert.NotEmpty(t, report.ScenarioHash)
	assert.Len(t, stepEvents, 4)
	assert.Len(t, finished, 1)
	assert.EqualValues(t, expectedOutput, report.Steps[3].Output)
}

// TestRunnerFailedExpectationContinues verifies a failed expectation marks the run failed but later steps
// still execute.
func TestRunnerFailedExpectationContinues(t *testing.T) {
	counterAddr := common.HexToAddress("0xaa")
	validatorAddr := common.HexToAddress("0xbb")
	owner := common.HexToAddress("0x2000")

	s := &Scenario{
		Name:    "deny-validator-rejects",
		Account: AccountConfig{Address: common.HexToAddress("0x1000"), Owner: owner, EntryPoint: common.HexToAddress("0x3000")},
		Modules: []ModuleBinding{
			{Address: counterAddr, Kind: KindCounter},
			{Address: validatorAddr, Kind: KindDenyValidator},
		},
		Steps: []Step{
			{
				Op:     OpInstallExecution,
				Module: counterAddr,
				ExecutionManifest: &types.ExecutionManifest{
					ExecutionFunctions: []types.ExecutionFunction{
						{Selector: SelectorCounterIncrement, AllowGlobalValidation: true},
					},
				},
			},
			{
				Op:                 OpInstallValidation,
				Module:             validatorAddr,
				Entity:             1,
				ValidationManifest: &types.ValidationManifest{IsGlobal: true},
			},
			// The deny validator rejects every call, but this step expects success.
			{
				Op:   OpCall,
				Call: &CallSpec{Caller: owner, Selector: SelectorCounterIncrement},
			},
			// Later steps still run: this one expects the rejection and passes.
			{
				Op:     OpCall,
				Call:   &CallSpec{Caller: owner, Selector: SelectorCounterIncrement},
				Expect: &Expectation{Failed: true, ErrorContains: "deny validator"},
			},
		},
	}

	report, err := NewRunner(nil).Run(s)
	assert.NoError(t, err)
	assert.EqualValues(t, RunStateFailed, report.Status)
	assert.EqualValues(t, 3, report.Passed)
	assert.EqualValues(t, 1, report.Failed)
	assert.False(t, report.Steps[2].Passed)
	assert.NotEmpty(t, report.Steps[2].Failure)
	assert.True(t, report.Steps[3].Passed)
}

// TestRunnerUninstallCallbackFlag verifies an uninstall step surfaces its lifecycle callback flag for
// expectations to check.
func TestRunnerUninstallCallbackFlag(t *testing.T) {
	faultyAddr := common.HexToAddress("0xaa")
	manifest := &types.ExecutionManifest{
		ExecutionFunctions: []types.ExecutionFunction{{Selector: SelectorCounterIncrement}},
	}
	callbackFailed := false

	s := &Scenario{
		Name:    "faulty-uninstall",
		Account: AccountConfig{Address: common.HexToAddress("0x1000"), Owner: common.HexToAddress("0x2000"), EntryPoint: common.HexToAddress("0x3000")},
		Modules: []ModuleBinding{
			{Address: faultyAddr, Kind: KindFaulty, Params: json.RawMessage(`{"failOnUninstall": true}`)},
		},
		Steps: []Step{
			{Op: OpInstallExecution, Module: faultyAddr, ExecutionManifest: manifest},
			{
				Op:                OpUninstallExecution,
				Module:            faultyAddr,
				ExecutionManifest: manifest,
				Expect:            &Expectation{CallbackOK: &callbackFailed},
			},
		},
	}

	report, err := NewRunner(nil).Run(s)
	assert.NoError(t, err)
	assert.EqualValues(t, RunStatePassed, report.Status)
	assert.NotNil(t, report.Steps[1].CallbackOK)
	assert.False(t, *report.Steps[1].CallbackOK)
}

// TestRunnerErroredRun verifies runner-level failures abort the run with an errored status.
func TestRunnerErroredRun(t *testing.T) {
	// An invalid scenario never starts.
	_, err := NewRunner(nil).Run(&Scenario{})
	assert.Error(t, err)

	// An unknown module kind aborts during binding.
	s := &Scenario{
		Name:    "unknown-kind",
		Modules: []ModuleBinding{{Address: common.HexToAddress("0xaa"), Kind: "geiger"}},
	}
	_, err = NewRunner(nil).Run(s)
	assert.Error(t, err)
}

// TestRunnerJournalsRun verifies a journaled run leaves a finished summary and its step and audit-trail
// records.
func TestRunnerJournalsRun(t *testing.T) {
	journal, err := OpenJournal(filepath.Join(t.TempDir(), "test.journal"))
	assert.NoError(t, err)
	defer journal.Close()

	counterAddr := common.HexToAddress("0xaa")
	validatorAddr := common.HexToAddress("0xbb")
	owner := common.HexToAddress("0x2000")
	s := &Scenario{
		Name:    "journaled",
		Account: AccountConfig{Address: common.HexToAddress("0x1000"), Owner: owner, EntryPoint: common.HexToAddress("0x3000")},
		Modules: []ModuleBinding{
			{Address: counterAddr, Kind: KindCounter},
			{Address: validatorAddr, Kind: KindOwnerValidator, Params: json.RawMessage(`{"owner": "0x0000000000000000000000000000000000002000"}`)},
		},
		Steps: []Step{
			{
				Op:     OpInstallExecution,
				Module: counterAddr,
				ExecutionManifest: &types.ExecutionManifest{
					ExecutionFunctions: []types.ExecutionFunction{
						{Selector: SelectorCounterIncrement, AllowGlobalValidation: true},
					},
				},
			},
			{
				Op:                 OpInstallValidation,
				Module:             validatorAddr,
				Entity:             1,
				ValidationManifest: &types.ValidationManifest{IsGlobal: true},
			},
			{Op: OpCall, Call: &CallSpec{Caller: owner, Selector: SelectorCounterIncrement}},
		},
	}

	report, err := NewRunner(journal).Run(s)
	assert.NoError(t, err)
	assert.EqualValues(t, RunStatePassed, report.Status)

	summary, err := journal.Run(report.RunID)
	assert.NoError(t, err)
	assert.EqualValues(t, "journaled", summary.Scenario)
	assert.EqualValues(t, RunStatePassed, summary.Status)
	assert.EqualValues(t, 3, summary.Passed)

	records, err := journal.Records(report.RunID)
	assert.NoError(t, err)
	kinds := make(map[string]int)
	for _, record := range records {
		kinds[record.Kind]++
	}
	// Three steps plus the account's audit-trail events.
	assert.EqualValues(t, 3, kinds["step"])
	assert.EqualValues(t, 1, kinds["executionInstalled"])
	assert.EqualValues(t, 1, kinds["validationInstalled"])
	assert.EqualValues(t, 1, kinds["callDispatched"])
}
