package accumulator

import (
	"bytes"
	"encoding/hex"
	"slices"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"sox-verified-go/types"
)

func byteLeaves(n int) [][]byte {
	out := make([][]byte, n)
	for i := range out {
		out[i] = []byte{byte(i + 1), byte(i >> 8)}
	}
	return out
}

// splitRef computes the root and the minimal sibling set straight from the
// prefix-split definition: root(L) = H(root(L[:p]), root(L[p:])).
func splitRef(nodes []types.Hash, lo int, claimed map[int]bool) (types.Hash, []types.Hash, bool) {
	if len(nodes) == 1 {
		return nodes[0], nil, claimed[lo]
	}
	p := prevPow2(len(nodes) - 1)
	lr, ln, lc := splitRef(nodes[:p], lo, claimed)
	rr, rn, rc := splitRef(nodes[p:], lo+p, claimed)
	needed := append(ln, rn...)
	if lc && !rc {
		needed = append(needed, rr)
	}
	if rc && !lc {
		needed = append(needed, lr)
	}
	return HashNode(lr, rr), needed, lc || rc
}

func leafNodes(leaves [][]byte) []types.Hash {
	out := make([]types.Hash, len(leaves))
	for i, l := range leaves {
		out[i] = HashLeaf(l)
	}
	return out
}

func sortedHex(hs []types.Hash) []string {
	out := make([]string, len(hs))
	for i, h := range hs {
		out[i] = hex.EncodeToString(h[:])
	}
	slices.Sort(out)
	return out
}

func TestExtend(t *testing.T) {
	require.Equal(t, append(make([]byte, 31), 0x05), Extend([]byte{0x05}))
	require.Equal(t, make([]byte, 32), Extend(nil))

	long := bytes.Repeat([]byte{0x07}, 40)
	require.Equal(t, long, Extend(long))

	exact := bytes.Repeat([]byte{0x09}, 32)
	require.Equal(t, exact, Extend(exact))
}

func TestEmptyAndSingleLeaf(t *testing.T) {
	require.Equal(t, Keccak256(nil), EmptyRoot())
	require.Equal(t, EmptyRoot(), Digest(nil))
	require.Equal(t, EmptyRoot(), Build(nil).Root())
	require.Equal(t, 0, Build(nil).Depth())

	one := [][]byte{{0x2a}}
	require.Equal(t, HashLeaf(one[0]), Digest(one))
	tree := Build(one)
	require.Equal(t, HashLeaf(one[0]), tree.Root())
	require.Equal(t, 0, tree.Depth())

	proof, err := tree.Prove(0)
	require.NoError(t, err)
	require.Empty(t, proof)
	require.NoError(t, Verify(tree.Root(), 1, 0, one[0], proof))

	_, err = Build(nil).Prove(0)
	require.ErrorIs(t, err, types.ErrIndexOutOfBounds)
}

func TestBuildFourLeaves(t *testing.T) {
	leaves := byteLeaves(4)
	tree := Build(leaves)
	l := leafNodes(leaves)

	require.Equal(t, 2, tree.Depth())
	node0 := HashNode(l[0], l[1])
	node1 := HashNode(l[2], l[3])
	require.Equal(t, []types.Hash{node0, node1}, tree.layers[1])
	require.Equal(t, HashNode(node0, node1), tree.Root())
}

func TestOddNodeIsPromoted(t *testing.T) {
	leaves := byteLeaves(3)
	l := leafNodes(leaves)
	tree := Build(leaves)

	require.Equal(t, []types.Hash{HashNode(l[0], l[1]), l[2]}, tree.layers[1])
	require.Equal(t, HashNode(HashNode(l[0], l[1]), l[2]), tree.Root())
}

// Five single-byte leaves, claimed set {2,4}.
func TestFiveLeafSubsetProof(t *testing.T) {
	leaves := [][]byte{{0x01}, {0x02}, {0x03}, {0x04}, {0x05}}
	l := leafNodes(leaves)
	root := Digest(leaves)

	want := HashNode(
		HashNode(HashNode(l[0], l[1]), HashNode(l[2], l[3])),
		l[4],
	)
	require.Equal(t, want, root)

	proof, err := ProveSubset(leaves, []int{4, 2})
	require.NoError(t, err)
	require.Equal(t, MultiProof{HashNode(l[0], l[1]), l[3]}, proof)

	require.NoError(t, VerifySubset(root, 5, []int{2, 4}, [][]byte{{0x03}, {0x05}}, proof))

	err = VerifySubset(root, 5, []int{2, 4}, [][]byte{{0x03}, {0x06}}, proof)
	require.ErrorIs(t, err, types.ErrProofVerificationFailed)
}

func TestFastPathMatchesSplitPath(t *testing.T) {
	var sizes []int
	for k := 0; k <= 12; k++ {
		sizes = append(sizes, 1<<k)
	}
	sizes = append(sizes, 3, 5, 6, 7, 9, 1023, 1025)

	for _, n := range sizes {
		leaves := byteLeaves(n)
		ref, _, _ := splitRef(leafNodes(leaves), 0, nil)
		require.Equal(t, ref, Digest(leaves), "digest n=%d", n)
		require.Equal(t, ref, Build(leaves).Root(), "layered n=%d", n)
	}
}

func TestParallelDecompositionIsBitIdentical(t *testing.T) {
	for _, n := range []int{1, 2, 3, 7, 8, 33, 64, 100, 257, 1025} {
		leaves := byteLeaves(n)
		serial := Digest(leaves, WithParallelThreshold(0))
		require.Equal(t, serial, Build(leaves, WithParallelThreshold(0)).Root())

		for _, workers := range []int{2, 3, 4, 8, 16} {
			opts := []Option{WithParallelThreshold(1), WithWorkers(workers)}
			require.Equal(t, serial, Digest(leaves, opts...), "digest n=%d workers=%d", n, workers)
			require.Equal(t, serial, Build(leaves, opts...).Root(), "build n=%d workers=%d", n, workers)
		}
	}
}

func TestSubsetProofsMatchReference(t *testing.T) {
	for n := 1; n <= 9; n++ {
		leaves := byteLeaves(n)
		nodes := leafNodes(leaves)
		tree := Build(leaves)

		for mask := 1; mask < 1<<n; mask++ {
			var indices []int
			claimed := map[int]bool{}
			for i := 0; i < n; i++ {
				if mask&(1<<i) != 0 {
					indices = append(indices, i)
					claimed[i] = true
				}
			}
			root, needed, _ := splitRef(nodes, 0, claimed)

			proof, err := tree.ProveSubset(indices)
			require.NoError(t, err)
			require.Equal(t, sortedHex(needed), sortedHex(proof), "n=%d indices=%v", n, indices)

			values := make([][]byte, len(indices))
			for i, idx := range indices {
				values[i] = leaves[idx]
			}
			require.NoError(t, VerifySubset(root, n, indices, values, proof), "n=%d indices=%v", n, indices)
		}
	}
}

func TestProveSubsetNormalizesIndices(t *testing.T) {
	leaves := byteLeaves(11)
	tree := Build(leaves)

	a, err := tree.ProveSubset([]int{7, 2, 7, 10, 2})
	require.NoError(t, err)
	b, err := tree.ProveSubset([]int{2, 7, 10})
	require.NoError(t, err)
	require.Equal(t, b, a)

	_, err = tree.ProveSubset(nil)
	require.ErrorIs(t, err, types.ErrShapeMismatch)
	_, err = tree.ProveSubset([]int{11})
	require.ErrorIs(t, err, types.ErrIndexOutOfBounds)
	_, err = tree.ProveSubset([]int{-1, 3})
	require.ErrorIs(t, err, types.ErrIndexOutOfBounds)
}

func TestVerifySubsetRejectsMalformedInput(t *testing.T) {
	leaves := byteLeaves(6)
	root := Digest(leaves)
	proof, err := ProveSubset(leaves, []int{1})
	require.NoError(t, err)
	require.NoError(t, Verify(root, 6, 1, leaves[1], proof))

	err = Verify(root, 6, 1, leaves[1], append(MultiProof{root}, proof...))
	require.ErrorIs(t, err, types.ErrProofVerificationFailed)

	err = Verify(root, 6, 1, leaves[1], proof[1:])
	require.ErrorIs(t, err, types.ErrProofVerificationFailed)

	err = Verify(root, 9, 1, leaves[1], proof)
	require.ErrorIs(t, err, types.ErrProofVerificationFailed)

	err = VerifySubset(root, 6, []int{3, 1}, [][]byte{leaves[3], leaves[1]}, proof)
	require.ErrorIs(t, err, types.ErrShapeMismatch)

	err = VerifySubset(root, 6, []int{1}, nil, proof)
	require.ErrorIs(t, err, types.ErrShapeMismatch)

	err = Verify(root, 6, 6, leaves[1], proof)
	require.ErrorIs(t, err, types.ErrIndexOutOfBounds)
}

func flipBit(b []byte) []byte {
	if len(b) == 0 {
		return []byte{0x01}
	}
	out := slices.Clone(b)
	out[len(out)-1] ^= 0x01
	return out
}

func TestProofSoundness(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 48).Draw(t, "n")
		leaves := make([][]byte, n)
		for i := range leaves {
			leaves[i] = rapid.SliceOfN(rapid.Byte(), 0, 40).Draw(t, "leaf")
		}
		indices := rapid.SliceOfNDistinct(rapid.IntRange(0, n-1), 1, n, rapid.ID[int]).Draw(t, "indices")
		slices.Sort(indices)

		root := Digest(leaves)
		if root != Digest(leaves) {
			t.Fatal("digest not deterministic")
		}
		proof, err := ProveSubset(leaves, indices)
		if err != nil {
			t.Fatal(err)
		}
		values := make([][]byte, len(indices))
		for i, idx := range indices {
			values[i] = leaves[idx]
		}
		if err := VerifySubset(root, n, indices, values, proof); err != nil {
			t.Fatalf("honest proof rejected: %v", err)
		}

		which := rapid.IntRange(0, len(values)-1).Draw(t, "mutated value")
		bad := slices.Clone(values)
		bad[which] = flipBit(bad[which])
		if VerifySubset(root, n, indices, bad, proof) == nil {
			t.Fatal("mutated value accepted")
		}

		badRoot := root
		badRoot[0] ^= 0x80
		if VerifySubset(badRoot, n, indices, values, proof) == nil {
			t.Fatal("mutated root accepted")
		}

		if len(proof) > 0 {
			pos := rapid.IntRange(0, len(proof)-1).Draw(t, "mutated element")
			badProof := slices.Clone(proof)
			badProof[pos][31] ^= 0x01
			if VerifySubset(root, n, indices, values, badProof) == nil {
				t.Fatal("mutated proof element accepted")
			}
		}
	})
}

func TestExtensionProofs(t *testing.T) {
	leaves := byteLeaves(40)
	for g := 0; g < len(leaves); g++ {
		prev := Digest(leaves[:g])
		next := Digest(leaves[:g+1])

		proof, err := ProveExtension(leaves, g)
		require.NoError(t, err)
		require.NoError(t, VerifyExtension(prev, next, g, leaves[g], proof), "g=%d", g)

		err = VerifyExtension(prev, next, g, flipBit(leaves[g]), proof)
		require.ErrorIs(t, err, types.ErrProofVerificationFailed, "g=%d", g)

		err = VerifyExtension(next, next, g, leaves[g], proof)
		require.ErrorIs(t, err, types.ErrProofVerificationFailed, "g=%d", g)

		err = VerifyExtension(prev, next, g, leaves[g], append(slices.Clone(proof), prev))
		require.ErrorIs(t, err, types.ErrProofVerificationFailed, "g=%d", g)
	}

	_, err := ProveExtension(leaves, 40)
	require.ErrorIs(t, err, types.ErrIndexOutOfBounds)
}
