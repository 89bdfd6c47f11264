package accumulator

import (
	"slices"

	errorsmod "cosmossdk.io/errors"

	"sox-verified-go/types"
)

// MultiProof is the ordered sibling list that, together with the claimed
// leaves, recomputes a root. Elements are stored root-to-leaf: the verifier
// consumes them from the tail, bottom layer first.
type MultiProof []types.Hash

// NormalizeIndices sorts indices, drops duplicates and checks every index is
// in [0, size).
func NormalizeIndices(indices []int, size int) ([]int, error) {
	if len(indices) == 0 {
		return nil, errorsmod.Wrap(types.ErrShapeMismatch, "empty index set")
	}
	out := slices.Clone(indices)
	slices.Sort(out)
	out = slices.Compact(out)
	if out[0] < 0 {
		return nil, types.NewIndexOutOfBoundsError(out[0], size)
	}
	if last := out[len(out)-1]; last >= size {
		return nil, types.NewIndexOutOfBoundsError(last, size)
	}
	return out, nil
}

// ProveSubset builds a multi-proof for the leaves at indices.
//
// Per layer, each claimed index looks at its partner index^1. A claimed
// partner is merged, an existing partner is emitted, and a missing partner
// (the node was promoted) emits nothing. The claimed set then moves to the
// parent indices.
func (t *Tree) ProveSubset(indices []int) (MultiProof, error) {
	idx, err := NormalizeIndices(indices, t.size)
	if err != nil {
		return nil, err
	}
	var proof MultiProof
	for _, layer := range t.layers[:len(t.layers)-1] {
		next := make([]int, 0, len(idx))
		for i := 0; i < len(idx); i++ {
			cur := idx[i]
			sib := cur ^ 1
			switch {
			case i+1 < len(idx) && idx[i+1] == sib:
				i++
			case sib < len(layer):
				proof = append(proof, layer[sib])
			}
			next = append(next, cur>>1)
		}
		idx = next
	}
	slices.Reverse(proof)
	return proof, nil
}

// Prove builds the inclusion proof of a single leaf.
func (t *Tree) Prove(index int) (MultiProof, error) {
	return t.ProveSubset([]int{index})
}

// ProveSubset builds the tree over leaves and proves the leaves at indices.
func ProveSubset(leaves [][]byte, indices []int, opts ...Option) (MultiProof, error) {
	return Build(leaves, opts...).ProveSubset(indices)
}

// VerifySubset recomputes the root of a leafCount-leaf tree from the claimed
// values at indices and the proof. indices must be strictly increasing and
// values aligned with them. Every proof element must be consumed.
func VerifySubset(root types.Hash, leafCount int, indices []int, values [][]byte, proof MultiProof) error {
	if len(indices) != len(values) {
		return types.NewShapeMismatchError("claimed values", len(indices), len(values))
	}
	if len(indices) == 0 {
		return errorsmod.Wrap(types.ErrShapeMismatch, "empty index set")
	}
	for i, index := range indices {
		if index < 0 || index >= leafCount {
			return types.NewIndexOutOfBoundsError(index, leafCount)
		}
		if i > 0 && index <= indices[i-1] {
			return errorsmod.Wrapf(types.ErrShapeMismatch, "indices not strictly increasing at position %d", i)
		}
	}

	idx := slices.Clone(indices)
	nodes := make([]types.Hash, len(values))
	for i, v := range values {
		nodes[i] = HashLeaf(v)
	}

	pos := len(proof)
	for width := leafCount; width > 1; width = (width + 1) / 2 {
		nextIdx := make([]int, 0, len(idx))
		nextNodes := make([]types.Hash, 0, len(nodes))
		for i := 0; i < len(idx); i++ {
			cur, node := idx[i], nodes[i]
			sib := cur ^ 1
			parent := node
			switch {
			case i+1 < len(idx) && idx[i+1] == sib:
				parent = HashNode(node, nodes[i+1])
				i++
			case sib < width:
				if pos == 0 {
					return errorsmod.Wrap(types.ErrProofVerificationFailed, "proof too short")
				}
				pos--
				if cur&1 == 1 {
					parent = HashNode(proof[pos], node)
				} else {
					parent = HashNode(node, proof[pos])
				}
			}
			nextIdx = append(nextIdx, cur>>1)
			nextNodes = append(nextNodes, parent)
		}
		idx, nodes = nextIdx, nextNodes
	}

	if pos != 0 {
		return errorsmod.Wrapf(types.ErrProofVerificationFailed, "%d unused proof elements", pos)
	}
	if !types.HashEq(nodes[0], root) {
		return errorsmod.Wrap(types.ErrProofVerificationFailed, "root mismatch")
	}
	return nil
}

// Verify checks a single-leaf inclusion proof.
func Verify(root types.Hash, leafCount, index int, value []byte, proof MultiProof) error {
	return VerifySubset(root, leafCount, []int{index}, [][]byte{value}, proof)
}
