package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestComputeSelector verifies selectors are derived from canonical signatures the same way on-chain
// dispatchers derive them.
func TestComputeSelector(t *testing.T) {
	// The ERC-20 transfer selector is a well-known reference value.
	selector := ComputeSelector("transfer(address,uint256)")
	assert.EqualValues(t, "0xa9059cbb", selector.String())

	// Distinct signatures must produce distinct selectors.
	assert.NotEqualValues(t, ComputeSelector("get()"), ComputeSelector("increment()"))
}

// TestComputeInterfaceID verifies interface ids XOR their member selectors, using the ERC-165 reference value.
func TestComputeInterfaceID(t *testing.T) {
	// ERC-165's interface id is defined as the selector of its single function.
	assert.EqualValues(t, "0x01ffc9a7", InterfaceIDERC165.String())

	// A multi-function interface id is the XOR of its member selectors, so order must not matter.
	a := ComputeInterfaceID("onInstall(bytes)", "onUninstall(bytes)", "moduleId()")
	b := ComputeInterfaceID("moduleId()", "onInstall(bytes)", "onUninstall(bytes)")
	assert.EqualValues(t, a, b)
	assert.EqualValues(t, InterfaceIDModule, a)
}

// TestSelectorFromBytes verifies the width checks on byte-slice conversion.
func TestSelectorFromBytes(t *testing.T) {
	selector, err := SelectorFromBytes([]byte{0xa9, 0x05, 0x9c, 0xbb})
	assert.NoError(t, err)
	assert.EqualValues(t, ComputeSelector("transfer(address,uint256)"), selector)

	_, err = SelectorFromBytes([]byte{0x01, 0x02})
	assert.Error(t, err)
	_, err = SelectorFromBytes([]byte{0x01, 0x02, 0x03, 0x04, 0x05})
	assert.Error(t, err)
}

// TestSelectorJSONRoundTrip verifies selectors serialize as 0x-prefixed hex in JSON documents.
func TestSelectorJSONRoundTrip(t *testing.T) {
	selector := ComputeSelector("increment()")
	encoded, err := json.Marshal(selector)
	assert.NoError(t, err)

	var decoded Selector
	err = json.Unmarshal(encoded, &decoded)
	assert.NoError(t, err)
	assert.EqualValues(t, selector, decoded)

	// Malformed widths must be rejected on decode.
	err = json.Unmarshal([]byte(`"0x0102"`), &decoded)
	assert.Error(t, err)
}

// TestSelectorIsZero verifies the reserved zero sentinel is detected.
func TestSelectorIsZero(t *testing.T) {
	assert.True(t, Selector{}.IsZero())
	assert.False(t, ComputeSelector("get()").IsZero())
}
