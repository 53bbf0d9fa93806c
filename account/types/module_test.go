package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestValidateModuleID verifies the "vendor.name.version" module identifier convention.
func TestValidateModuleID(t *testing.T) {
	// Well-formed identifiers, including semver with prerelease tags.
	assert.NoError(t, ValidateModuleID("chimera.counter.1.0.0"))
	assert.NoError(t, ValidateModuleID("acme.session-keys.2.1.3-rc.1"))

	// Malformed identifiers.
	assert.Error(t, ValidateModuleID(""))
	assert.Error(t, ValidateModuleID("counter"))
	assert.Error(t, ValidateModuleID("chimera.counter"))
	assert.Error(t, ValidateModuleID(".counter.1.0.0"))
	assert.Error(t, ValidateModuleID("chimera..1.0.0"))
	assert.Error(t, ValidateModuleID("chimera.counter.not-a-version"))
}

// TestInterfaceIDConstants verifies the capability interface ids are distinct and non-zero, since the install
// delegates use them to discriminate module capabilities.
func TestInterfaceIDConstants(t *testing.T) {
	ids := []InterfaceID{
		InterfaceIDERC165,
		InterfaceIDModule,
		InterfaceIDValidationModule,
		InterfaceIDValidationHookModule,
		InterfaceIDExecutionModule,
		InterfaceIDExecutionHookModule,
	}
	seen := make(map[InterfaceID]struct{})
	for _, id := range ids {
		assert.False(t, id.IsZero())
		_, duplicate := seen[id]
		assert.False(t, duplicate, "interface id %s is duplicated", id)
		seen[id] = struct{}{}
	}
}
