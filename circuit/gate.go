package circuit

import (
	"encoding/binary"

	errorsmod "cosmossdk.io/errors"

	"sox-verified-go/primitives"
	"sox-verified-go/types"
)

// WordSize is the width of one word in the gate wire format.
const WordSize = primitives.WordSize

// Gate is one node of the circuit. Non-negative sons index earlier gates of the
// trace; negative sons bind constant slots (-1 is the first slot).
type Gate struct {
	Opcode primitives.Opcode
	Sons   []int
}

// InputGate returns a gate whose value is supplied at evaluation time.
func InputGate() Gate {
	return Gate{Opcode: primitives.OpInput}
}

// IsInput reports whether the gate's value is supplied externally.
func (g Gate) IsInput() bool {
	return g.Opcode == primitives.OpInput
}

// Encode returns the gate wire format consumed by the on-chain verifier: one
// 32-byte big-endian word for the opcode followed by one int256 word per son.
// The input opcode is encoded as 2^256-1.
func (g Gate) Encode() []byte {
	out := make([]byte, WordSize*(1+len(g.Sons)))
	if g.IsInput() {
		for i := 0; i < WordSize; i++ {
			out[i] = 0xff
		}
	} else {
		binary.BigEndian.PutUint32(out[WordSize-4:WordSize], uint32(g.Opcode))
	}
	for i, son := range g.Sons {
		putInt256(out[WordSize*(i+1):WordSize*(i+2)], int64(son))
	}
	return out
}

// DecodeGate parses the wire format produced by Encode.
func DecodeGate(b []byte) (Gate, error) {
	if len(b) == 0 || len(b)%WordSize != 0 {
		return Gate{}, errorsmod.Wrapf(types.ErrMalformedEncoding, "gate encoding of %d bytes", len(b))
	}
	var g Gate
	op := b[:WordSize]
	if allBytes(op, 0xff) {
		g.Opcode = primitives.OpInput
	} else {
		if !allBytes(op[:WordSize-4], 0x00) {
			return Gate{}, errorsmod.Wrap(types.ErrMalformedEncoding, "opcode word out of range")
		}
		g.Opcode = primitives.Opcode(binary.BigEndian.Uint32(op[WordSize-4:]))
		if g.IsInput() {
			return Gate{}, errorsmod.Wrap(types.ErrMalformedEncoding, "input opcode must be encoded as all 0xff")
		}
	}
	for off := WordSize; off < len(b); off += WordSize {
		son, err := int256(b[off : off+WordSize])
		if err != nil {
			return Gate{}, err
		}
		g.Sons = append(g.Sons, son)
	}
	return g, nil
}

func putInt256(dst []byte, v int64) {
	fill := byte(0x00)
	if v < 0 {
		fill = 0xff
	}
	for i := 0; i < WordSize-8; i++ {
		dst[i] = fill
	}
	binary.BigEndian.PutUint64(dst[WordSize-8:], uint64(v))
}

func int256(word []byte) (int, error) {
	v := int64(binary.BigEndian.Uint64(word[WordSize-8:]))
	fill := byte(0x00)
	if v < 0 {
		fill = 0xff
	}
	if !allBytes(word[:WordSize-8], fill) {
		return 0, errorsmod.Wrap(types.ErrMalformedEncoding, "son index does not fit in 64 bits")
	}
	return int(v), nil
}

func allBytes(b []byte, v byte) bool {
	for _, x := range b {
		if x != v {
			return false
		}
	}
	return true
}
