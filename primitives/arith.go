package primitives

import (
	"bytes"
	"fmt"
	"math/big"

	"sox-verified-go/types"
)

// WordSize is the fixed width of ADD/MUL results, matching uint256.
const WordSize = 32

var wordMask = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 8*WordSize), big.NewInt(1))

// EqualTrue and EqualFalse are the single-byte EQ gate results.
var (
	EqualTrue  = []byte{0x01}
	EqualFalse = []byte{0x00}
)

func wordOperands(op Opcode, operands [][]byte) (*big.Int, *big.Int, error) {
	if err := checkArity(op, operands, 2); err != nil {
		return nil, nil, err
	}
	for i, o := range operands {
		if len(o) > WordSize {
			return nil, nil, types.NewShapeMismatchError(fmt.Sprintf("%s operand %d", op, i), WordSize, len(o))
		}
	}
	return new(big.Int).SetBytes(operands[0]), new(big.Int).SetBytes(operands[1]), nil
}

// truncate keeps the low WordSize bytes of v. Overflow wraps, it is not a fault.
func truncate(v *big.Int) []byte {
	v.And(v, wordMask)
	return v.FillBytes(make([]byte, WordSize))
}

func add(operands [][]byte) ([]byte, error) {
	a, b, err := wordOperands(OpAdd, operands)
	if err != nil {
		return nil, err
	}
	return truncate(a.Add(a, b)), nil
}

func mul(operands [][]byte) ([]byte, error) {
	a, b, err := wordOperands(OpMul, operands)
	if err != nil {
		return nil, err
	}
	return truncate(a.Mul(a, b)), nil
}

// equal compares byte-exactly: operands of different lengths are unequal.
func equal(operands [][]byte) ([]byte, error) {
	if err := checkArity(OpEqual, operands, 2); err != nil {
		return nil, err
	}
	if bytes.Equal(operands[0], operands[1]) {
		return []byte{EqualTrue[0]}, nil
	}
	return []byte{EqualFalse[0]}, nil
}

// Uint encodes v as a big-endian word, the form ADD/MUL constants take.
func Uint(v uint64) []byte {
	return new(big.Int).SetUint64(v).FillBytes(make([]byte, WordSize))
}
