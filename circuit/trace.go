package circuit

import (
	"bytes"

	"sox-verified-go/accumulator"
	"sox-verified-go/primitives"
	"sox-verified-go/types"
)

// Trace is the evaluated circuit: one value per gate, index-aligned with the
// circuit's gates.
type Trace [][]byte

// Len returns the number of entries.
func (t Trace) Len() int { return len(t) }

// Output returns the value of the final gate.
func (t Trace) Output() []byte {
	if len(t) == 0 {
		return nil
	}
	return t[len(t)-1]
}

// Accepted reports whether the final equality gate matched.
func (t Trace) Accepted() bool {
	return bytes.Equal(t.Output(), primitives.EqualTrue)
}

// Digest returns the trace accumulator root.
func (t Trace) Digest(opts ...accumulator.Option) types.Hash {
	return accumulator.Digest(t, opts...)
}

// PrefixDigest returns the root over the first k entries. These are the
// intermediate digests exchanged during bisection.
func (t Trace) PrefixDigest(k int, opts ...accumulator.Option) (types.Hash, error) {
	if k < 0 || k > len(t) {
		return types.ZeroHash, types.NewIndexOutOfBoundsError(k, len(t)+1)
	}
	return accumulator.Digest(t[:k], opts...), nil
}
