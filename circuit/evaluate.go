package circuit

import (
	errorsmod "cosmossdk.io/errors"

	"sox-verified-go/primitives"
	"sox-verified-go/types"
)

// KeySize is the length of a revealed key: AES key then counter start.
const KeySize = primitives.AESKeySize + primitives.AESBlockSize

// Key is the secret the vendor reveals to the buyer. The counter is the value
// bound to the counter input gate.
type Key struct {
	AES     [primitives.AESKeySize]byte
	Counter [primitives.AESBlockSize]byte
}

// Bytes returns the 32-byte reveal form.
func (k Key) Bytes() []byte {
	out := make([]byte, 0, KeySize)
	out = append(out, k.AES[:]...)
	return append(out, k.Counter[:]...)
}

// KeyFromBytes parses the reveal form.
func KeyFromBytes(b []byte) (Key, error) {
	var k Key
	if len(b) != KeySize {
		return k, types.NewShapeMismatchError("key", KeySize, len(b))
	}
	copy(k.AES[:], b[:primitives.AESKeySize])
	copy(k.Counter[:], b[primitives.AESKeySize:])
	return k, nil
}

// BlockCount returns ceil(length / blockSize), or 1 for empty input.
func BlockCount(length, blockSize int) int {
	if length == 0 {
		return 1
	}
	return (length + blockSize - 1) / blockSize
}

// SplitBlocks slices input into blockSize chunks. The last chunk is short when
// the length is not a multiple; empty input is a single empty block.
func SplitBlocks(input []byte, blockSize int) ([][]byte, error) {
	if err := ValidateBlockSize(blockSize); err != nil {
		return nil, err
	}
	if input == nil {
		input = []byte{}
	}
	n := BlockCount(len(input), blockSize)
	blocks := make([][]byte, n)
	for b := range blocks {
		lo := min(b*blockSize, len(input))
		hi := min(lo+blockSize, len(input))
		blocks[b] = input[lo:hi:hi]
	}
	return blocks, nil
}

// Evaluate runs the exchange circuit c over input (the ciphertext), producing
// the full trace. The final gate is EqualTrue when the decryption hashes to
// description.
func Evaluate(input []byte, blockSize int, c *Circuit, key Key, description types.Hash) (Trace, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if blockSize != c.BlockSize {
		return nil, types.NewShapeMismatchError("block size", c.BlockSize, blockSize)
	}
	blocks, err := SplitBlocks(input, blockSize)
	if err != nil {
		return nil, err
	}
	if len(blocks) != c.BlockCount {
		return nil, types.NewShapeMismatchError("input blocks", c.BlockCount, len(blocks))
	}
	inputs := append(blocks, key.Counter[:])
	return Execute(c, inputs, ExchangeSlots.Bind(key, description, blockSize))
}

// Execute evaluates gates strictly in index order. inputs supplies the values
// of the leading input gates.
func Execute(c *Circuit, inputs [][]byte, constants Constants) (Trace, error) {
	set, err := primitives.Lookup(c.Version)
	if err != nil {
		return nil, err
	}
	if got := c.NumInputs(); len(inputs) != got {
		return nil, types.NewShapeMismatchError("input values", got, len(inputs))
	}

	trace := make(Trace, len(c.Gates))
	for i, g := range c.Gates {
		if g.IsInput() {
			if i >= len(inputs) {
				return nil, errorsmod.Wrapf(types.ErrShapeMismatch, "gate %d: input gate after operation gates", i)
			}
			trace[i] = inputs[i]
			continue
		}
		operands, err := ResolveOperands(g, trace[:i], constants)
		if err != nil {
			return nil, errorsmod.Wrapf(err, "gate %d", i)
		}
		out, err := set.Apply(g.Opcode, operands)
		if err != nil {
			return nil, errorsmod.Wrapf(err, "gate %d (%s)", i, g.Opcode)
		}
		trace[i] = out
	}
	return trace, nil
}

// ResolveOperands substitutes constants for negative sons and earlier trace
// entries for non-negative ones.
func ResolveOperands(g Gate, prior [][]byte, constants Constants) ([][]byte, error) {
	operands := make([][]byte, len(g.Sons))
	for j, son := range g.Sons {
		if son < 0 {
			v, err := constants.Resolve(son)
			if err != nil {
				return nil, err
			}
			operands[j] = v
			continue
		}
		if son >= len(prior) {
			return nil, types.NewIndexOutOfBoundsError(son, len(prior))
		}
		operands[j] = prior[son]
	}
	return operands, nil
}
