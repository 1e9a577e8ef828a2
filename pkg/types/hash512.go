package types

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Hash512Size is the length in bytes of a wide hash (merkle nodes,
// key-hash locks, redeem-script locks).
const Hash512Size = 64

// Hash512 is a 512-bit hash value, used for the block merkle tree and for
// the KeyHash/Redeem lock kinds.
type Hash512 [Hash512Size]byte

// IsZero returns true if the hash is all zeros.
func (h Hash512) IsZero() bool {
	return h == Hash512{}
}

// String returns the hex-encoded hash.
func (h Hash512) String() string {
	return hex.EncodeToString(h[:])
}

// Bytes returns a copy of the hash as a byte slice.
func (h Hash512) Bytes() []byte {
	b := make([]byte, Hash512Size)
	copy(b, h[:])
	return b
}

// MarshalJSON encodes the hash as a hex string.
func (h Hash512) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.String())
}

// UnmarshalJSON decodes a hex string into a hash.
func (h *Hash512) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*h = Hash512{}
		return nil
	}
	decoded, err := hex.DecodeString(s)
	if err != nil {
		return fmt.Errorf("invalid hash hex: %w", err)
	}
	if len(decoded) != Hash512Size {
		return fmt.Errorf("hash must be %d bytes, got %d", Hash512Size, len(decoded))
	}
	copy(h[:], decoded)
	return nil
}

// HexToHash512 converts a hex string to a Hash512.
func HexToHash512(s string) (Hash512, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return Hash512{}, fmt.Errorf("invalid hex: %w", err)
	}
	if len(b) != Hash512Size {
		return Hash512{}, fmt.Errorf("hash must be %d bytes, got %d", Hash512Size, len(b))
	}
	var h Hash512
	copy(h[:], b)
	return h, nil
}
