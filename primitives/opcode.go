package primitives

import (
	errorsmod "cosmossdk.io/errors"

	"sox-verified-go/types"
)

// Opcode selects a primitive operation. Values are part of the on-chain wire
// format and never change meaning within an instruction set version.
type Opcode uint32

const (
	OpAdd    Opcode = 0
	OpMul    Opcode = 1
	OpEqual  Opcode = 2
	OpSHA256 Opcode = 3
	OpAESCTR Opcode = 4

	// OpInput marks a gate whose value is supplied externally. It is the
	// reserved maximum opcode (-1 as a signed 32-bit value).
	OpInput Opcode = 0xFFFFFFFF
)

// String returns the gate mnemonic.
func (o Opcode) String() string {
	switch o {
	case OpAdd:
		return "ADD"
	case OpMul:
		return "MUL"
	case OpEqual:
		return "EQ"
	case OpSHA256:
		return "SHA256"
	case OpAESCTR:
		return "AESCTR"
	case OpInput:
		return "INPUT"
	default:
		return "UNKNOWN"
	}
}

// Version tags an instruction set.
type Version uint8

const (
	// V1 is the only instruction set: ADD, MUL, EQ, SHA256, AESCTR.
	V1 Version = 1
)

// InstructionSet is a closed, versioned table of primitive operations.
type InstructionSet struct {
	version Version
}

var v1 = &InstructionSet{version: V1}

// Lookup returns the instruction set for v.
func Lookup(v Version) (*InstructionSet, error) {
	switch v {
	case V1:
		return v1, nil
	default:
		return nil, errorsmod.Wrapf(types.ErrInvalidVersion, "instruction set v%d", v)
	}
}

// Version returns the set's version tag.
func (s *InstructionSet) Version() Version { return s.version }

// Arity returns the operand count op expects, or an error if op is not part
// of the set. Input gates take no operands.
func (s *InstructionSet) Arity(op Opcode) (int, error) {
	switch op {
	case OpAdd, OpMul, OpEqual, OpSHA256:
		return 2, nil
	case OpAESCTR:
		return 3, nil
	case OpInput:
		return 0, nil
	default:
		return 0, errorsmod.Wrapf(types.ErrInvalidVersion, "opcode %d not in instruction set v%d", uint32(op), s.version)
	}
}

// Apply executes op over operands. It is pure and bit-for-bit deterministic.
func (s *InstructionSet) Apply(op Opcode, operands [][]byte) ([]byte, error) {
	switch op {
	case OpAdd:
		return add(operands)
	case OpMul:
		return mul(operands)
	case OpEqual:
		return equal(operands)
	case OpSHA256:
		return compressOperands(operands)
	case OpAESCTR:
		return ctrOperands(operands)
	case OpInput:
		return nil, errorsmod.Wrap(types.ErrShapeMismatch, "input gates are not executable")
	default:
		return nil, errorsmod.Wrapf(types.ErrInvalidVersion, "opcode %d not in instruction set v%d", uint32(op), s.version)
	}
}

func checkArity(op Opcode, operands [][]byte, want int) error {
	if len(operands) != want {
		return types.NewShapeMismatchError(op.String()+" operand count", want, len(operands))
	}
	return nil
}
