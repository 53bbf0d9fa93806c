package types

import (
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// EntityID is a module-scoped sub-identifier distinguishing multiple logical roles within one module, e.g. two
// differently-configured validators provided by the same module.
type EntityID uint32

// ModuleEntity identifies a validation entity: the (module address, entity id) pair authorized to approve calls
// either globally or per-selector. The zero value means "unset".
type ModuleEntity struct {
	// Module is the address the owning module instance is bound at.
	Module common.Address `json:"module"`

	// Entity is the module-scoped entity id.
	Entity EntityID `json:"entity"`
}

// IsZero indicates whether this is the unset sentinel value.
func (m ModuleEntity) IsZero() bool {
	return m == ModuleEntity{}
}

// Pack returns the canonical 24-byte packed form: the 20-byte module address followed by the 4-byte big-endian
// entity id. Struct equality matches equality of this packed form.
func (m ModuleEntity) Pack() [24]byte {
	var packed [24]byte
	copy(packed[:20], m.Module[:])
	binary.BigEndian.PutUint32(packed[20:], uint32(m.Entity))
	return packed
}

// String returns a compact human-readable representation, e.g. "0xabc...def/3".
func (m ModuleEntity) String() string {
	return fmt.Sprintf("%s/%d", m.Module.Hex(), m.Entity)
}

// HookConfig describes one pre/post interception point: the module and entity implementing it, and which sides
// of the wrapped operation it participates in. Equality is by the full triple, matching the packed form, so
// hook configurations deduplicate correctly in sets.
type HookConfig struct {
	// Module is the address the hook module instance is bound at.
	Module common.Address `json:"module"`

	// Entity is the module-scoped entity id of the hook.
	Entity EntityID `json:"entity"`

	// HasPre indicates the hook participates in the pre phase.
	HasPre bool `json:"hasPre"`

	// HasPost indicates the hook participates in the post phase.
	HasPost bool `json:"hasPost"`
}

// ModuleEntity returns the (module, entity) pair of the hook.
func (h HookConfig) ModuleEntity() ModuleEntity {
	return ModuleEntity{Module: h.Module, Entity: h.Entity}
}

// Pack returns the canonical 25-byte packed form: the packed ModuleEntity followed by a flags byte with bit 0
// set for HasPre and bit 1 set for HasPost.
func (h HookConfig) Pack() [25]byte {
	var packed [25]byte
	entity := h.ModuleEntity().Pack()
	copy(packed[:24], entity[:])
	if h.HasPre {
		packed[24] |= 0x01
	}
	if h.HasPost {
		packed[24] |= 0x02
	}
	return packed
}

// String returns a compact human-readable representation, e.g. "0xabc...def/3[pre,post]".
func (h HookConfig) String() string {
	phases := ""
	if h.HasPre {
		phases = "pre"
	}
	if h.HasPost {
		if phases != "" {
			phases += ","
		}
		phases += "post"
	}
	return fmt.Sprintf("%s/%d[%s]", h.Module.Hex(), h.Entity, phases)
}
