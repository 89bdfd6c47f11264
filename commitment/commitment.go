package commitment

import (
	"bytes"

	errorsmod "cosmossdk.io/errors"

	"sox-verified-go/accumulator"
	"sox-verified-go/primitives"
	"sox-verified-go/types"
)

// Opening is the pair a commitment fixes. On the wire both elements are
// 32-byte accumulator digests; any byte string commits the same way.
type Opening struct {
	A types.HexBytes `json:"a"`
	B types.HexBytes `json:"b"`
}

// Commitment is a binding, non-hiding commitment with its opening.
type Commitment struct {
	C       types.HexHash `json:"c"`
	Opening Opening       `json:"opening"`
}

// Hash returns keccak256(u256(len a) || a || u256(len b) || b). Values are
// hashed in their natural encoding, without 32-byte extension.
func Hash(a, b []byte) types.Hash {
	return accumulator.Keccak256(
		primitives.Uint(uint64(len(a))), a,
		primitives.Uint(uint64(len(b))), b,
	)
}

// Commit binds a and b.
func Commit(a, b []byte) Commitment {
	return Commitment{
		C: types.HexHash(Hash(a, b)),
		Opening: Opening{
			A: bytes.Clone(a),
			B: bytes.Clone(b),
		},
	}
}

// CommitDigests binds two accumulator roots, the form parties exchange.
func CommitDigests(a, b types.Hash) Commitment {
	return Commit(a[:], b[:])
}

// Open checks the opening against c and returns the pair unchanged.
func Open(c types.Hash, o Opening) ([]byte, []byte, error) {
	if got := Hash(o.A, o.B); !types.HashEq(got, c) {
		return nil, nil, errorsmod.Wrapf(types.ErrCommitmentMismatch, "commitment %s does not open to %s",
			types.HexHash(c), types.HexHash(got))
	}
	return o.A, o.B, nil
}

// Verify opens the commitment against its own opening.
func (c Commitment) Verify() error {
	_, _, err := Open(types.Hash(c.C), c.Opening)
	return err
}
