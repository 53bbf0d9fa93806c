package types

import (
	"bytes"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// Selector is a 4-byte function selector identifying a callable function on the account. The zero selector is
// reserved as a sentinel and can never be installed or stored in a set.
type Selector [4]byte

// ComputeSelector derives the selector for a canonical function signature, e.g. "transfer(address,uint256)".
// The selector is the first four bytes of the keccak256 hash of the signature.
func ComputeSelector(signature string) Selector {
	var s Selector
	copy(s[:], crypto.Keccak256([]byte(signature))[:4])
	return s
}

// SelectorFromBytes converts a byte slice to a Selector. Returns an error if the slice is not exactly four bytes.
func SelectorFromBytes(b []byte) (Selector, error) {
	var s Selector
	if len(b) != len(s) {
		return s, fmt.Errorf("invalid selector length: expected %d bytes, got %d", len(s), len(b))
	}
	copy(s[:], b)
	return s, nil
}

// Bytes returns the selector as a byte slice.
func (s Selector) Bytes() []byte {
	return s[:]
}

// IsZero indicates whether the selector is the reserved zero sentinel.
func (s Selector) IsZero() bool {
	return s == Selector{}
}

// String returns the 0x-prefixed hex representation of the selector.
func (s Selector) String() string {
	return hexutil.Encode(s[:])
}

// Cmp compares two selectors lexicographically, returning -1, 0, or 1. It is used to produce deterministic
// orderings of selector collections.
func (s Selector) Cmp(other Selector) int {
	return bytes.Compare(s[:], other[:])
}

// MarshalText encodes the selector as a 0x-prefixed hex string for use in JSON documents.
func (s Selector) MarshalText() ([]byte, error) {
	return []byte(hexutil.Encode(s[:])), nil
}

// UnmarshalText decodes a 0x-prefixed hex string into the selector, enforcing the four byte width.
func (s *Selector) UnmarshalText(text []byte) error {
	decoded, err := hexutil.Decode(string(text))
	if err != nil {
		return err
	}
	parsed, err := SelectorFromBytes(decoded)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// InterfaceID is a 4-byte ERC-165 interface identifier used for reference-counted capability declarations.
type InterfaceID [4]byte

// ComputeInterfaceID derives an ERC-165 interface id from the canonical signatures of the interface's functions.
// Per ERC-165, the id is the XOR of all member function selectors.
func ComputeInterfaceID(signatures ...string) InterfaceID {
	var id InterfaceID
	for _, signature := range signatures {
		selector := ComputeSelector(signature)
		for i := 0; i < len(id); i++ {
			id[i] ^= selector[i]
		}
	}
	return id
}

// InterfaceIDFromBytes converts a byte slice to an InterfaceID. Returns an error if the slice is not exactly
// four bytes.
func InterfaceIDFromBytes(b []byte) (InterfaceID, error) {
	var id InterfaceID
	if len(b) != len(id) {
		return id, fmt.Errorf("invalid interface id length: expected %d bytes, got %d", len(id), len(b))
	}
	copy(id[:], b)
	return id, nil
}

// IsZero indicates whether the interface id is zero.
func (id InterfaceID) IsZero() bool {
	return id == InterfaceID{}
}

// String returns the 0x-prefixed hex representation of the interface id.
func (id InterfaceID) String() string {
	return hexutil.Encode(id[:])
}

// Cmp compares two interface ids lexicographically, returning -1, 0, or 1.
func (id InterfaceID) Cmp(other InterfaceID) int {
	return bytes.Compare(id[:], other[:])
}

// MarshalText encodes the interface id as a 0x-prefixed hex string.
func (id InterfaceID) MarshalText() ([]byte, error) {
	return []byte(hexutil.Encode(id[:])), nil
}

// UnmarshalText decodes a 0x-prefixed hex string into the interface id.
func (id *InterfaceID) UnmarshalText(text []byte) error {
	decoded, err := hexutil.Decode(string(text))
	if err != nil {
		return err
	}
	parsed, err := InterfaceIDFromBytes(decoded)
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
