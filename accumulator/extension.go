package accumulator

import (
	"math/bits"

	errorsmod "cosmossdk.io/errors"

	"sox-verified-go/types"
)

// ProveExtension proves that leaves[g] is the last leaf of leaves[:g+1].
//
// The proof elements are the power-of-two peaks of leaves[:g], largest first,
// and all of them sit to the left of the new leaf. The same proof therefore
// re-derives both Digest(leaves[:g]) and Digest(leaves[:g+1]).
func ProveExtension(leaves [][]byte, g int, opts ...Option) (MultiProof, error) {
	if g < 0 || g >= len(leaves) {
		return nil, types.NewIndexOutOfBoundsError(g, len(leaves))
	}
	return Build(leaves[:g+1], opts...).Prove(g)
}

// VerifyExtension checks that nextRoot is prevRoot extended by one leaf value
// at position g.
func VerifyExtension(prevRoot, nextRoot types.Hash, g int, value []byte, proof MultiProof) error {
	if g < 0 {
		return types.NewIndexOutOfBoundsError(g, 0)
	}
	if want := bits.OnesCount(uint(g)); len(proof) != want {
		return errorsmod.Wrapf(types.ErrProofVerificationFailed, "extension at %d: expected %d peaks, got %d", g, want, len(proof))
	}

	prev := EmptyRoot()
	if len(proof) > 0 {
		prev = proof[len(proof)-1]
		for i := len(proof) - 2; i >= 0; i-- {
			prev = HashNode(proof[i], prev)
		}
	}
	if !types.HashEq(prev, prevRoot) {
		return errorsmod.Wrapf(types.ErrProofVerificationFailed, "extension at %d: prefix root mismatch", g)
	}

	next := HashLeaf(value)
	for i := len(proof) - 1; i >= 0; i-- {
		next = HashNode(proof[i], next)
	}
	if !types.HashEq(next, nextRoot) {
		return errorsmod.Wrapf(types.ErrProofVerificationFailed, "extension at %d: extended root mismatch", g)
	}
	return nil
}
