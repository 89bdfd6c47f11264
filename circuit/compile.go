package circuit

import (
	errorsmod "cosmossdk.io/errors"

	"sox-verified-go/primitives"
	"sox-verified-go/types"
)

// DefaultBlockSize is the ciphertext block size used when none is configured.
const DefaultBlockSize = 64

// ValidateBlockSize accepts positive multiples of the AES block size no larger
// than one SHA-256 message block.
func ValidateBlockSize(blockSize int) error {
	if blockSize <= 0 || blockSize > primitives.SHA256BlockSize || blockSize%primitives.AESBlockSize != 0 {
		return errorsmod.Wrapf(types.ErrShapeMismatch, "block size %d is not a multiple of %d in (0, %d]",
			blockSize, primitives.AESBlockSize, primitives.SHA256BlockSize)
	}
	return nil
}

// ConstantSlots names the negative son indices the exchange circuit binds.
type ConstantSlots struct {
	Key           int
	InitialDigest int
	CounterStep   int
	Description   int
}

// ExchangeSlots is the constant layout of every exchange circuit.
var ExchangeSlots = ConstantSlots{
	Key:           -1,
	InitialDigest: -2,
	CounterStep:   -3,
	Description:   -4,
}

// Count returns the number of slots.
func (s ConstantSlots) Count() int { return 4 }

// Bind fills the slots for one exchange.
func (s ConstantSlots) Bind(key Key, description types.Hash, blockSize int) Constants {
	iv := primitives.InitialDigest()
	c := make(Constants, s.Count())
	c.set(s.Key, key.AES[:])
	c.set(s.InitialDigest, iv[:])
	c.set(s.CounterStep, primitives.Uint(uint64(blockSize/primitives.AESBlockSize)))
	c.set(s.Description, description[:])
	return c
}

// Constants holds the values bound to negative son indices. Slot -k is
// stored at position k-1.
type Constants [][]byte

func (c Constants) set(slot int, v []byte) {
	c[-slot-1] = append([]byte(nil), v...)
}

// Resolve returns the value bound to a negative son index.
func (c Constants) Resolve(slot int) ([]byte, error) {
	if slot >= 0 || -slot > len(c) {
		return nil, errorsmod.Wrapf(types.ErrIndexOutOfBounds, "constant slot %d not in [-%d, -1]", slot, len(c))
	}
	return c[-slot-1], nil
}

// CompileExchangeCircuit produces the canonical decrypt-then-hash circuit for
// numBlocks ciphertext blocks of blockSize bytes. With n = numBlocks:
//
//	[0, n)      ciphertext inputs
//	n           counter start input
//	[n+1, 2n)   counter += step
//	[2n, 3n)    AES-CTR(key, block b, counter b)
//	[3n, 4n)    SHA-256 compression chained over the AES outputs
//	4n          EQ(last digest, description)
func CompileExchangeCircuit(numBlocks, blockSize int) (*Circuit, ConstantSlots, error) {
	if numBlocks < 1 {
		return nil, ConstantSlots{}, types.NewShapeMismatchError("ciphertext block count", 1, numBlocks)
	}
	if err := ValidateBlockSize(blockSize); err != nil {
		return nil, ConstantSlots{}, err
	}
	n := numBlocks
	s := ExchangeSlots
	gates := make([]Gate, 0, GateCount(n))

	for i := 0; i <= n; i++ {
		gates = append(gates, InputGate())
	}
	for b := 1; b < n; b++ {
		gates = append(gates, Gate{Opcode: primitives.OpAdd, Sons: []int{counterIndex(n, b-1), s.CounterStep}})
	}
	for b := 0; b < n; b++ {
		gates = append(gates, Gate{Opcode: primitives.OpAESCTR, Sons: []int{s.Key, b, counterIndex(n, b)}})
	}
	for b := 0; b < n; b++ {
		prev := s.InitialDigest
		if b > 0 {
			prev = 3*n + b - 1
		}
		gates = append(gates, Gate{Opcode: primitives.OpSHA256, Sons: []int{prev, 2*n + b}})
	}
	gates = append(gates, Gate{Opcode: primitives.OpEqual, Sons: []int{4*n - 1, s.Description}})

	return &Circuit{
		Version:    primitives.V1,
		BlockSize:  blockSize,
		BlockCount: n,
		Gates:      gates,
	}, s, nil
}

// counterIndex is the gate holding the counter for ciphertext block b.
func counterIndex(n, b int) int {
	return n + b
}
