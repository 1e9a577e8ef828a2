package types

import (
	"encoding/hex"
	"encoding/json"
)

// LockKind identifies the kind of locking condition on an output.
type LockKind uint8

const (
	LockKey     LockKind = 0x01 // Data = 33-byte compressed public key.
	LockKeyHash LockKind = 0x02 // Data = 64-byte hash of a public key.
	LockScript  LockKind = 0x03 // Data = opcode program, see internal/script.
	LockRedeem  LockKind = 0x04 // Data = 64-byte hash of a redeem script.
)

// String returns a human-readable name for the lock kind.
func (k LockKind) String() string {
	switch k {
	case LockKey:
		return "Key"
	case LockKeyHash:
		return "KeyHash"
	case LockScript:
		return "Script"
	case LockRedeem:
		return "Redeem"
	default:
		return "Unknown"
	}
}

// Lock is the tagged union locking condition attached to a UTXO, per
// spec §3 "Output lock". An unlock witness must carry a matching tag.
type Lock struct {
	Kind LockKind `json:"kind"`
	Data []byte   `json:"data"`
}

// lockJSON mirrors Lock with hex-encoded data for wire/storage encoding.
type lockJSON struct {
	Kind LockKind `json:"kind"`
	Data string   `json:"data"`
}

// MarshalJSON encodes the lock with hex-encoded data.
func (l Lock) MarshalJSON() ([]byte, error) {
	return json.Marshal(lockJSON{Kind: l.Kind, Data: hex.EncodeToString(l.Data)})
}

// UnmarshalJSON decodes a lock with hex-encoded data.
func (l *Lock) UnmarshalJSON(data []byte) error {
	var j lockJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	l.Kind = j.Kind
	if j.Data != "" {
		b, err := hex.DecodeString(j.Data)
		if err != nil {
			return err
		}
		l.Data = b
	}
	return nil
}

// Unlock is the witness presented to satisfy a Lock. The Kind must match
// the Lock it is spending; fields unused by a given kind are left zero.
type Unlock struct {
	Kind      LockKind `json:"kind"`
	PubKey    []byte   `json:"pubkey,omitempty"`    // LockKey / LockKeyHash
	Signature []byte   `json:"signature,omitempty"` // LockKey / LockKeyHash / LockRedeem
	Script    []byte   `json:"script,omitempty"`    // LockScript opcode program
	Redeem    []byte   `json:"redeem,omitempty"`    // LockRedeem preimage script
}

// unlockJSON mirrors Unlock with hex-encoded byte fields.
type unlockJSON struct {
	Kind      LockKind `json:"kind"`
	PubKey    string   `json:"pubkey,omitempty"`
	Signature string   `json:"signature,omitempty"`
	Script    string   `json:"script,omitempty"`
	Redeem    string   `json:"redeem,omitempty"`
}

// MarshalJSON encodes the unlock witness with hex-encoded fields.
func (u Unlock) MarshalJSON() ([]byte, error) {
	j := unlockJSON{Kind: u.Kind}
	if len(u.PubKey) > 0 {
		j.PubKey = hex.EncodeToString(u.PubKey)
	}
	if len(u.Signature) > 0 {
		j.Signature = hex.EncodeToString(u.Signature)
	}
	if len(u.Script) > 0 {
		j.Script = hex.EncodeToString(u.Script)
	}
	if len(u.Redeem) > 0 {
		j.Redeem = hex.EncodeToString(u.Redeem)
	}
	return json.Marshal(j)
}

// UnmarshalJSON decodes an unlock witness with hex-encoded fields.
func (u *Unlock) UnmarshalJSON(data []byte) error {
	var j unlockJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	u.Kind = j.Kind
	var err error
	if j.PubKey != "" {
		if u.PubKey, err = hex.DecodeString(j.PubKey); err != nil {
			return err
		}
	}
	if j.Signature != "" {
		if u.Signature, err = hex.DecodeString(j.Signature); err != nil {
			return err
		}
	}
	if j.Script != "" {
		if u.Script, err = hex.DecodeString(j.Script); err != nil {
			return err
		}
	}
	if j.Redeem != "" {
		if u.Redeem, err = hex.DecodeString(j.Redeem); err != nil {
			return err
		}
	}
	return nil
}

// SigningBytes returns the canonical byte encoding used when hashing a lock
// as part of a transaction output (see pkg/tx.Transaction.SigningBytes).
func (l Lock) SigningBytes() []byte {
	buf := make([]byte, 0, len(l.Data)+5)
	buf = append(buf, byte(l.Kind))
	buf = appendUint32(buf, uint32(len(l.Data)))
	buf = append(buf, l.Data...)
	return buf
}

func appendUint32(buf []byte, v uint32) []byte {
	return append(buf, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}
