package types

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// HashSize is the width every accumulator node and commitment value is
// normalized to.
const HashSize = 32

// Hash is a 32-byte digest.
type Hash = [HashSize]byte

// ZeroHash is 32 bytes of 0x00.
var ZeroHash Hash

// HashEq performs constant-time comparison of two hashes.
func HashEq(a, b Hash) bool {
	var diff byte
	for i := 0; i < HashSize; i++ {
		diff |= a[i] ^ b[i]
	}
	return diff == 0
}

// HashFromBytes copies b into a Hash. b must be exactly 32 bytes.
func HashFromBytes(b []byte) (Hash, error) {
	var h Hash
	if len(b) != HashSize {
		return h, NewShapeMismatchError("hash", HashSize, len(b))
	}
	copy(h[:], b)
	return h, nil
}

// ParseHash decodes a hex string, with or without a 0x prefix.
func ParseHash(s string) (Hash, error) {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		s = s[2:]
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return ZeroHash, fmt.Errorf("decode hash: %w", err)
	}
	return HashFromBytes(b)
}

// HexHash marshals a Hash as a 0x-prefixed hex JSON string.
type HexHash Hash

func (h HexHash) String() string {
	return "0x" + hex.EncodeToString(h[:])
}

func (h HexHash) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.String())
}

func (h *HexHash) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseHash(s)
	if err != nil {
		return err
	}
	*h = HexHash(parsed)
	return nil
}

// HexBytes marshals an arbitrary byte string as 0x-prefixed hex.
type HexBytes []byte

func (b HexBytes) String() string {
	return "0x" + hex.EncodeToString(b)
}

func (b HexBytes) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.String())
}

func (b *HexBytes) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		s = s[2:]
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return fmt.Errorf("decode hex bytes: %w", err)
	}
	*b = raw
	return nil
}
