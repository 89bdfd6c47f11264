package circuit

import (
	errorsmod "cosmossdk.io/errors"

	"sox-verified-go/accumulator"
	"sox-verified-go/primitives"
	"sox-verified-go/types"
)

// Circuit is a flat, index-ordered gate list. A gate may only reference gates
// with a smaller index, so the index is the schedule.
//
// The first BlockCount gates are the ciphertext inputs and gate BlockCount is
// the counter input; everything after is an operation gate.
type Circuit struct {
	Version    primitives.Version
	BlockSize  int
	BlockCount int
	Gates      []Gate
}

// GateCount returns the exchange circuit size for n ciphertext blocks.
func GateCount(n int) int {
	return 4*n + 1
}

// Len returns the number of gates.
func (c *Circuit) Len() int { return len(c.Gates) }

// NumInputs returns the length of the leading run of input gates.
func (c *Circuit) NumInputs() int {
	n := 0
	for n < len(c.Gates) && c.Gates[n].IsInput() {
		n++
	}
	return n
}

// Validate checks the structural invariants both parties and the on-chain
// verifier rely on before trusting a circuit/trace pair.
func (c *Circuit) Validate() error {
	set, err := primitives.Lookup(c.Version)
	if err != nil {
		return err
	}
	if err := ValidateBlockSize(c.BlockSize); err != nil {
		return err
	}
	if c.BlockCount < 1 {
		return types.NewShapeMismatchError("circuit block count", 1, c.BlockCount)
	}
	if want := GateCount(c.BlockCount); len(c.Gates) != want {
		return types.NewShapeMismatchError("circuit length", want, len(c.Gates))
	}
	if inputs := c.NumInputs(); inputs != c.BlockCount+1 {
		return types.NewShapeMismatchError("input gate prefix", c.BlockCount+1, inputs)
	}

	for i, g := range c.Gates {
		arity, err := set.Arity(g.Opcode)
		if err != nil {
			return errorsmod.Wrapf(err, "gate %d", i)
		}
		if g.IsInput() && i > c.BlockCount {
			return errorsmod.Wrapf(types.ErrShapeMismatch, "gate %d: input gate after operation gates", i)
		}
		if len(g.Sons) != arity {
			return errorsmod.Wrapf(types.ErrShapeMismatch, "gate %d (%s): expected %d sons, got %d", i, g.Opcode, arity, len(g.Sons))
		}
		for _, son := range g.Sons {
			if son >= i {
				return errorsmod.Wrapf(types.ErrShapeMismatch, "gate %d references later gate %d", i, son)
			}
			if son < -ExchangeSlots.Count() {
				return errorsmod.Wrapf(types.ErrShapeMismatch, "gate %d references constant slot %d of %d", i, son, ExchangeSlots.Count())
			}
		}
	}
	return nil
}

// GateLeaves returns the wire encoding of every gate, the leaves of the
// circuit accumulator.
func (c *Circuit) GateLeaves() [][]byte {
	out := make([][]byte, len(c.Gates))
	for i, g := range c.Gates {
		out[i] = g.Encode()
	}
	return out
}

// Digest returns the circuit accumulator root.
func (c *Circuit) Digest(opts ...accumulator.Option) types.Hash {
	return accumulator.Digest(c.GateLeaves(), opts...)
}
