package accumulator

import (
	"math/bits"
	"runtime"

	"golang.org/x/sync/errgroup"

	"sox-verified-go/types"
)

// DefaultParallelThreshold is the layer width from which hashing fans out
// across goroutines.
const DefaultParallelThreshold = 4096

type options struct {
	threshold int
	workers   int
}

// Option tunes how a tree is hashed. Options never change the resulting digests.
type Option func(*options)

// WithParallelThreshold sets the minimum layer width hashed concurrently.
// Zero or negative disables parallel hashing.
func WithParallelThreshold(n int) Option {
	return func(o *options) { o.threshold = n }
}

// WithWorkers caps the goroutines used per layer.
func WithWorkers(n int) Option {
	return func(o *options) { o.workers = n }
}

func newOptions(opts []Option) *options {
	o := &options{threshold: DefaultParallelThreshold, workers: runtime.GOMAXPROCS(0)}
	for _, opt := range opts {
		opt(o)
	}
	if o.workers < 1 {
		o.workers = 1
	}
	return o
}

func (o *options) parallel(n int) bool {
	return o.threshold > 0 && o.workers > 1 && n >= o.threshold
}

// forRange runs fn over [0, n) split into at most o.workers contiguous chunks.
// Every index is written by exactly one chunk, so results do not depend on the
// split.
func (o *options) forRange(n int, fn func(lo, hi int)) {
	if !o.parallel(n) {
		fn(0, n)
		return
	}
	chunk := (n + o.workers - 1) / o.workers
	var g errgroup.Group
	for lo := 0; lo < n; lo += chunk {
		lo, hi := lo, min(lo+chunk, n)
		g.Go(func() error {
			fn(lo, hi)
			return nil
		})
	}
	_ = g.Wait()
}

// Tree is the layered form of the accumulator: layers[0] holds leaf nodes,
// the last layer holds the root. Pairs are (2k, 2k+1); a trailing unpaired
// node is promoted unchanged, which reproduces the power-of-two prefix split
// for every leaf count.
type Tree struct {
	layers [][]types.Hash
	size   int
}

// Build hashes leaves and every layer above them.
func Build(leaves [][]byte, opts ...Option) *Tree {
	o := newOptions(opts)
	if len(leaves) == 0 {
		return &Tree{}
	}
	layer := o.hashLeaves(leaves)
	layers := [][]types.Hash{layer}
	for len(layer) > 1 {
		layer = o.nextLayer(layer)
		layers = append(layers, layer)
	}
	return &Tree{layers: layers, size: len(leaves)}
}

// Root returns the accumulator digest.
func (t *Tree) Root() types.Hash {
	if t.size == 0 {
		return EmptyRoot()
	}
	return t.layers[len(t.layers)-1][0]
}

// Len returns the number of leaves.
func (t *Tree) Len() int { return t.size }

// Depth returns the number of layers above the leaves.
func (t *Tree) Depth() int {
	if t.size == 0 {
		return 0
	}
	return len(t.layers) - 1
}

func (o *options) hashLeaves(leaves [][]byte) []types.Hash {
	out := make([]types.Hash, len(leaves))
	o.forRange(len(leaves), func(lo, hi int) {
		for i := lo; i < hi; i++ {
			out[i] = HashLeaf(leaves[i])
		}
	})
	return out
}

func (o *options) nextLayer(cur []types.Hash) []types.Hash {
	pairs := len(cur) / 2
	next := make([]types.Hash, (len(cur)+1)/2)
	o.forRange(pairs, func(lo, hi int) {
		for k := lo; k < hi; k++ {
			next[k] = HashNode(cur[2*k], cur[2*k+1])
		}
	})
	if len(cur)%2 == 1 {
		next[pairs] = cur[len(cur)-1]
	}
	return next
}

// Digest returns the accumulator root of leaves without retaining layers.
// Power-of-two counts take the balanced fast path; other counts are split
// into a power-of-two prefix and a remainder, recursively, joined by one
// node hash per split.
func Digest(leaves [][]byte, opts ...Option) types.Hash {
	o := newOptions(opts)
	n := len(leaves)
	if n == 0 {
		return EmptyRoot()
	}
	nodes := o.hashLeaves(leaves)
	if isPow2(n) {
		return o.balancedRoot(nodes)
	}
	return o.splitRoot(nodes)
}

// splitRoot walks the split recursion iteratively: it collects the roots of
// the power-of-two blocks left to right and folds them from the right.
func (o *options) splitRoot(nodes []types.Hash) types.Hash {
	var peaks []types.Hash
	for len(nodes) > 0 {
		p := prevPow2(len(nodes))
		peaks = append(peaks, o.balancedRoot(nodes[:p]))
		nodes = nodes[p:]
	}
	root := peaks[len(peaks)-1]
	for i := len(peaks) - 2; i >= 0; i-- {
		root = HashNode(peaks[i], root)
	}
	return root
}

// balancedRoot reduces a power-of-two slice. Large inputs are cut into
// power-of-two subtrees hashed concurrently, then combined; the pairing is the
// same as the serial reduction.
func (o *options) balancedRoot(nodes []types.Hash) types.Hash {
	n := len(nodes)
	if o.parallel(n) {
		parts := min(prevPow2(o.workers), n)
		if parts > 1 {
			width := n / parts
			roots := make([]types.Hash, parts)
			var g errgroup.Group
			for i := 0; i < parts; i++ {
				i := i
				g.Go(func() error {
					roots[i] = reduce(nodes[i*width : (i+1)*width])
					return nil
				})
			}
			_ = g.Wait()
			return reduce(roots)
		}
	}
	return reduce(nodes)
}

func reduce(nodes []types.Hash) types.Hash {
	buf := make([]types.Hash, len(nodes))
	copy(buf, nodes)
	for w := len(buf); w > 1; w /= 2 {
		for k := 0; k < w/2; k++ {
			buf[k] = HashNode(buf[2*k], buf[2*k+1])
		}
	}
	return buf[0]
}

func isPow2(n int) bool {
	return n > 0 && n&(n-1) == 0
}

// prevPow2 returns the largest power of two <= n, for n >= 1.
func prevPow2(n int) int {
	return 1 << (bits.Len(uint(n)) - 1)
}
