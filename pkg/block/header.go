package block

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/json"

	"github.com/fbanet/ledgercore/pkg/crypto"
	"github.com/fbanet/ledgercore/pkg/enroll"
	"github.com/fbanet/ledgercore/pkg/types"
)

// Header contains block metadata, per spec.md §3 "Block":
// previous hash, monotonic height, merkle-root of tx hashes, timestamp, a
// validator bitfield (one bit per enrolled validator indicating signature
// inclusion), an aggregated Schnorr signature, and the ordered list of new
// enrollments admitted at this height.
type Header struct {
	Version uint32 `json:"version"`

	PrevHash   types.Hash    `json:"prev_hash"`
	Height     uint64        `json:"height"`
	MerkleRoot types.Hash512 `json:"merkle_root"`
	Timestamp  uint64        `json:"timestamp"`

	// ValidatorBitfield has one bit per validator in the active validator
	// set's canonical (sorted) order at this height; bit i set means that
	// validator's signature contributed to AggregateSig.
	ValidatorBitfield []byte `json:"validator_bitfield"`
	AggregateSig      []byte `json:"aggregate_sig"`

	Enrollments []enroll.Enrollment `json:"enrollments"`
}

type headerJSON struct {
	Version           uint32              `json:"version"`
	PrevHash          types.Hash          `json:"prev_hash"`
	Height            uint64              `json:"height"`
	MerkleRoot        types.Hash512       `json:"merkle_root"`
	Timestamp         uint64              `json:"timestamp"`
	ValidatorBitfield string              `json:"validator_bitfield"`
	AggregateSig      string              `json:"aggregate_sig"`
	Enrollments       []enroll.Enrollment `json:"enrollments"`
}

// MarshalJSON encodes the header with hex-encoded byte fields.
func (h *Header) MarshalJSON() ([]byte, error) {
	j := headerJSON{
		Version:     h.Version,
		PrevHash:    h.PrevHash,
		Height:      h.Height,
		MerkleRoot:  h.MerkleRoot,
		Timestamp:   h.Timestamp,
		Enrollments: h.Enrollments,
	}
	if h.ValidatorBitfield != nil {
		j.ValidatorBitfield = hex.EncodeToString(h.ValidatorBitfield)
	}
	if h.AggregateSig != nil {
		j.AggregateSig = hex.EncodeToString(h.AggregateSig)
	}
	return json.Marshal(j)
}

// UnmarshalJSON decodes a header with hex-encoded byte fields.
func (h *Header) UnmarshalJSON(data []byte) error {
	var j headerJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	h.Version = j.Version
	h.PrevHash = j.PrevHash
	h.Height = j.Height
	h.MerkleRoot = j.MerkleRoot
	h.Timestamp = j.Timestamp
	h.Enrollments = j.Enrollments
	if j.ValidatorBitfield != "" {
		b, err := hex.DecodeString(j.ValidatorBitfield)
		if err != nil {
			return err
		}
		h.ValidatorBitfield = b
	}
	if j.AggregateSig != "" {
		b, err := hex.DecodeString(j.AggregateSig)
		if err != nil {
			return err
		}
		h.AggregateSig = b
	}
	return nil
}

// Hash computes the block header hash. Excludes AggregateSig so the hash
// is stable across the signing round.
func (h *Header) Hash() types.Hash {
	return crypto.Hash(h.SigningBytes())
}

// SigningBytes returns the canonical bytes for hashing/signing.
// Format: version(4) | prev_hash(32) | height(8) | merkle_root(64) |
// timestamp(8) | bitfield_len(4) | bitfield | enrollment_count(4) |
// [enrollment.SigningBytes() length-prefixed]...
func (h *Header) SigningBytes() []byte {
	buf := make([]byte, 0, 160+len(h.ValidatorBitfield))
	buf = binary.LittleEndian.AppendUint32(buf, h.Version)
	buf = append(buf, h.PrevHash[:]...)
	buf = binary.LittleEndian.AppendUint64(buf, h.Height)
	buf = append(buf, h.MerkleRoot[:]...)
	buf = binary.LittleEndian.AppendUint64(buf, h.Timestamp)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(h.ValidatorBitfield)))
	buf = append(buf, h.ValidatorBitfield...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(h.Enrollments)))
	for _, e := range h.Enrollments {
		eb := e.SigningBytes()
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(eb)))
		buf = append(buf, eb...)
	}
	return buf
}

// BitfieldSet reports whether validator index i's bit is set.
func BitfieldSet(bitfield []byte, i int) bool {
	byteIdx := i / 8
	if byteIdx >= len(bitfield) {
		return false
	}
	return bitfield[byteIdx]&(1<<uint(i%8)) != 0
}

// NewBitfield allocates a bitfield sized for n validators.
func NewBitfield(n int) []byte {
	return make([]byte, (n+7)/8)
}

// BitfieldSetBit sets validator index i's bit in-place.
func BitfieldSetBit(bitfield []byte, i int) {
	byteIdx := i / 8
	if byteIdx >= len(bitfield) {
		return
	}
	bitfield[byteIdx] |= 1 << uint(i%8)
}

// BitfieldCount returns the number of set bits.
func BitfieldCount(bitfield []byte) int {
	count := 0
	for _, b := range bitfield {
		for b != 0 {
			count += int(b & 1)
			b >>= 1
		}
	}
	return count
}
