package types

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
)

// TestModuleEntityPack verifies the canonical packed form: module address followed by big-endian entity id.
func TestModuleEntityPack(t *testing.T) {
	module := common.HexToAddress("0x0102030405060708090a0b0c0d0e0f1011121314")
	entity := ModuleEntity{Module: module, Entity: 0x01020304}

	packed := entity.Pack()
	assert.EqualValues(t, module[:], packed[:20])
	assert.EqualValues(t, []byte{0x01, 0x02, 0x03, 0x04}, packed[20:])

	// Struct equality must match packed-form equality.
	same := ModuleEntity{Module: module, Entity: 0x01020304}
	assert.True(t, entity == same)
	assert.True(t, entity.Pack() == same.Pack())
}

// TestModuleEntityIsZero verifies the unset sentinel is only the all-zero value.
func TestModuleEntityIsZero(t *testing.T) {
	assert.True(t, ModuleEntity{}.IsZero())
	assert.False(t, ModuleEntity{Entity: 1}.IsZero())
	assert.False(t, ModuleEntity{Module: common.HexToAddress("0x01")}.IsZero())
}

// TestHookConfigPack verifies the flags byte encodes the pre/post participation bits.
func TestHookConfigPack(t *testing.T) {
	module := common.HexToAddress("0xaa")
	pre := HookConfig{Module: module, Entity: 7, HasPre: true}
	post := HookConfig{Module: module, Entity: 7, HasPost: true}
	both := HookConfig{Module: module, Entity: 7, HasPre: true, HasPost: true}

	assert.EqualValues(t, byte(0x01), pre.Pack()[24])
	assert.EqualValues(t, byte(0x02), post.Pack()[24])
	assert.EqualValues(t, byte(0x03), both.Pack()[24])

	// Hooks differing only in phase participation are distinct values.
	assert.False(t, pre == post)
	assert.EqualValues(t, pre.ModuleEntity(), post.ModuleEntity())
}
