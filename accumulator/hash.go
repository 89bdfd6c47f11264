package accumulator

import (
	"hash"
	"sync"

	"golang.org/x/crypto/sha3"

	"sox-verified-go/types"
)

var hasherPool = sync.Pool{
	New: func() interface{} {
		return sha3.NewLegacyKeccak256()
	},
}

// Keccak256 hashes the concatenation of parts with the EVM's Keccak-256.
func Keccak256(parts ...[]byte) types.Hash {
	h := hasherPool.Get().(hash.Hash)
	h.Reset()
	for _, p := range parts {
		h.Write(p)
	}
	var out types.Hash
	h.Sum(out[:0])
	hasherPool.Put(h)
	return out
}

// Extend left-zero-pads v to 32 bytes. Longer values are returned unchanged.
func Extend(v []byte) []byte {
	if len(v) >= types.HashSize {
		return v
	}
	out := make([]byte, types.HashSize)
	copy(out[types.HashSize-len(v):], v)
	return out
}

// HashLeaf is the tree node of a leaf value.
func HashLeaf(v []byte) types.Hash {
	return Keccak256(Extend(v))
}

// HashNode combines two sibling nodes over exactly 64 bytes.
func HashNode(left, right types.Hash) types.Hash {
	return Keccak256(left[:], right[:])
}

// EmptyRoot is the digest of an empty leaf sequence: keccak256("").
func EmptyRoot() types.Hash {
	return Keccak256()
}
