package circuit

import (
	"encoding/binary"

	errorsmod "cosmossdk.io/errors"

	"sox-verified-go/primitives"
	"sox-verified-go/types"
)

// Circuit binary layout, big-endian:
//
//	version u8 | blockSize u32 | blockCount u64 | gateCount u64
//	per gate: opcode u32 | arity u8 | sons int64 * arity
const circuitHeaderSize = 1 + 4 + 8 + 8

// MarshalBinary encodes the circuit for persistence between the agreement and
// a later dispute.
func (c *Circuit) MarshalBinary() ([]byte, error) {
	size := circuitHeaderSize
	for i, g := range c.Gates {
		if len(g.Sons) > 0xff {
			return nil, errorsmod.Wrapf(types.ErrShapeMismatch, "gate %d has %d sons", i, len(g.Sons))
		}
		size += 5 + 8*len(g.Sons)
	}

	out := make([]byte, 0, size)
	out = append(out, byte(c.Version))
	out = binary.BigEndian.AppendUint32(out, uint32(c.BlockSize))
	out = binary.BigEndian.AppendUint64(out, uint64(c.BlockCount))
	out = binary.BigEndian.AppendUint64(out, uint64(len(c.Gates)))
	for _, g := range c.Gates {
		out = binary.BigEndian.AppendUint32(out, uint32(g.Opcode))
		out = append(out, byte(len(g.Sons)))
		for _, son := range g.Sons {
			out = binary.BigEndian.AppendUint64(out, uint64(int64(son)))
		}
	}
	return out, nil
}

// UnmarshalBinary decodes a circuit. It checks framing only; call Validate
// before trusting the result.
func (c *Circuit) UnmarshalBinary(data []byte) error {
	r := reader{buf: data}
	version := r.u8()
	blockSize := r.u32()
	blockCount := r.u64()
	gateCount := r.u64()
	if r.err != nil {
		return r.err
	}
	// every gate takes at least 5 bytes
	if gateCount > uint64(len(r.buf))/5 {
		return errorsmod.Wrapf(types.ErrMalformedEncoding, "gate count %d exceeds payload", gateCount)
	}
	if blockCount > gateCount {
		return errorsmod.Wrapf(types.ErrMalformedEncoding, "block count %d exceeds gate count %d", blockCount, gateCount)
	}

	gates := make([]Gate, gateCount)
	for i := range gates {
		gates[i].Opcode = primitives.Opcode(r.u32())
		arity := int(r.u8())
		if arity > 0 {
			gates[i].Sons = make([]int, arity)
			for j := range gates[i].Sons {
				gates[i].Sons[j] = int(int64(r.u64()))
			}
		}
		if r.err != nil {
			return errorsmod.Wrapf(r.err, "gate %d", i)
		}
	}
	if len(r.buf) != 0 {
		return errorsmod.Wrapf(types.ErrMalformedEncoding, "%d trailing bytes", len(r.buf))
	}

	*c = Circuit{
		Version:    primitives.Version(version),
		BlockSize:  int(blockSize),
		BlockCount: int(blockCount),
		Gates:      gates,
	}
	return nil
}

// MarshalBinary encodes the trace as an entry count followed by
// length-prefixed entries.
func (t Trace) MarshalBinary() ([]byte, error) {
	size := 8
	for _, v := range t {
		size += 4 + len(v)
	}
	out := make([]byte, 0, size)
	out = binary.BigEndian.AppendUint64(out, uint64(len(t)))
	for _, v := range t {
		out = binary.BigEndian.AppendUint32(out, uint32(len(v)))
		out = append(out, v...)
	}
	return out, nil
}

// UnmarshalBinary decodes a trace produced by MarshalBinary.
func (t *Trace) UnmarshalBinary(data []byte) error {
	r := reader{buf: data}
	count := r.u64()
	if r.err != nil {
		return r.err
	}
	if count > uint64(len(r.buf))/4 {
		return errorsmod.Wrapf(types.ErrMalformedEncoding, "entry count %d exceeds payload", count)
	}
	out := make(Trace, count)
	for i := range out {
		out[i] = r.bytes(int(r.u32()))
		if r.err != nil {
			return errorsmod.Wrapf(r.err, "trace entry %d", i)
		}
	}
	if len(r.buf) != 0 {
		return errorsmod.Wrapf(types.ErrMalformedEncoding, "%d trailing bytes", len(r.buf))
	}
	*t = out
	return nil
}

// reader consumes a big-endian buffer and latches the first short read.
type reader struct {
	buf []byte
	err error
}

func (r *reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || len(r.buf) < n {
		r.err = errorsmod.Wrapf(types.ErrMalformedEncoding, "need %d bytes, have %d", n, len(r.buf))
		return nil
	}
	b := r.buf[:n:n]
	r.buf = r.buf[n:]
	return b
}

func (r *reader) u8() uint8 {
	if b := r.take(1); b != nil {
		return b[0]
	}
	return 0
}

func (r *reader) u32() uint32 {
	if b := r.take(4); b != nil {
		return binary.BigEndian.Uint32(b)
	}
	return 0
}

func (r *reader) u64() uint64 {
	if b := r.take(8); b != nil {
		return binary.BigEndian.Uint64(b)
	}
	return 0
}

func (r *reader) bytes(n int) []byte {
	b := r.take(n)
	if b == nil {
		return nil
	}
	return append([]byte{}, b...)
}
