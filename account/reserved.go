package account

import (
	"github.com/chimera-eth/chimera/account/types"
)

// packedUserOperation is the canonical tuple type of an ERC-4337 packed user operation, used to derive the
// entry point's callback selectors.
const packedUserOperation = "(address,uint256,bytes,bytes,bytes32,uint256,bytes32,bytes,bytes)"

// moduleLifecycleSelectors is the immutable set of selectors belonging to the module lifecycle interface
// itself. An installed execution function may never claim one of these: the account must always be able to
// reach a module's own lifecycle entry points.
var moduleLifecycleSelectors = selectorTable(
	"onInstall(bytes)",
	"onUninstall(bytes)",
	"moduleId()",
	"supportsInterface(bytes4)",
)

// entryPointCallbackSelectors is the immutable set of ERC-4337 callback selectors the trusted entry point
// invokes on the account. An installed execution function may never claim one of these, closing an
// impersonation attack where a malicious module overrides a callback the entry point expects the account
// itself to handle.
var entryPointCallbackSelectors = selectorTable(
	"validateUserOp("+packedUserOperation+",bytes32,uint256)",
	"executeUserOp("+packedUserOperation+",bytes32)",
)

// selectorTable computes an immutable selector lookup table from canonical function signatures.
func selectorTable(signatures ...string) map[types.Selector]struct{} {
	table := make(map[types.Selector]struct{}, len(signatures))
	for _, signature := range signatures {
		table[types.ComputeSelector(signature)] = struct{}{}
	}
	return table
}

// checkSelectorInstallable decides whether a selector may be claimed by an execution function install,
// consulting both reserved tables.
func checkSelectorInstallable(selector types.Selector) error {
	if selector.IsZero() {
		return types.ErrZeroSelector
	}
	if _, reserved := moduleLifecycleSelectors[selector]; reserved {
		return &types.ModuleFunctionNotAllowedError{Selector: selector}
	}
	if _, reserved := entryPointCallbackSelectors[selector]; reserved {
		return &types.Erc4337FunctionNotAllowedError{Selector: selector}
	}
	return nil
}
