package dispute

import (
	"slices"

	errorsmod "cosmossdk.io/errors"

	"sox-verified-go/accumulator"
	"sox-verified-go/circuit"
	"sox-verified-go/types"
)

// Evidence is what a party retains from the agreement until a dispute
// resolves: the agreed circuit, its own trace, the ciphertext blocks and the
// bound constants.
type Evidence struct {
	Circuit    *circuit.Circuit
	Trace      circuit.Trace
	Ciphertext [][]byte
	Constants  circuit.Constants
}

// Anchors are the values the on-chain verifier already holds when a gate is
// disputed.
type Anchors struct {
	CircuitRoot     types.Hash
	CircuitSize     int
	CiphertextRoot  types.Hash
	CiphertextCount int
	Constants       circuit.Constants
	// CounterStart is the revealed counter, the value of the counter input gate.
	CounterStart []byte
}

// Operand is one resolved son of the disputed gate.
type Operand struct {
	Index    int
	Constant bool
	Value    []byte
}

// Proof is everything the verifier needs to check one gate against the
// committed accumulators.
type Proof struct {
	GateIndex int
	Gate      circuit.Gate
	Operands  []Operand
	Output    []byte

	// GateProof proves Gate.Encode() at GateIndex in the circuit accumulator.
	GateProof accumulator.MultiProof

	// CiphertextIndices are the sons in [0, n), proven against the
	// ciphertext accumulator.
	CiphertextIndices []int
	CiphertextProof   accumulator.MultiProof

	// TraceIndices are the sons in [n, GateIndex), proven against PrefixRoot.
	TraceIndices []int
	TraceProof   accumulator.MultiProof

	// PrefixRoot is the digest of trace[:GateIndex], the last digest both
	// parties agreed on. ExtensionProof extends it by Output to NextRoot.
	PrefixRoot     types.Hash
	NextRoot       types.Hash
	ExtensionProof accumulator.MultiProof

	// InputProof proves Output against the ciphertext accumulator when the
	// disputed gate is a ciphertext input.
	InputProof accumulator.MultiProof
}

// AnchorsOf derives the verifier anchors from a party's own evidence.
func AnchorsOf(ev Evidence, opts ...accumulator.Option) (Anchors, error) {
	if err := ev.check(); err != nil {
		return Anchors{}, err
	}
	return Anchors{
		CircuitRoot:     ev.Circuit.Digest(opts...),
		CircuitSize:     ev.Circuit.Len(),
		CiphertextRoot:  accumulator.Digest(ev.Ciphertext, opts...),
		CiphertextCount: len(ev.Ciphertext),
		Constants:       ev.Constants,
		CounterStart:    ev.Trace[ev.Circuit.BlockCount],
	}, nil
}

func (ev Evidence) check() error {
	if ev.Circuit == nil {
		return errorsmod.Wrap(types.ErrShapeMismatch, "missing circuit")
	}
	if err := ev.Circuit.Validate(); err != nil {
		return err
	}
	if len(ev.Trace) != ev.Circuit.Len() {
		return types.NewShapeMismatchError("trace length", ev.Circuit.Len(), len(ev.Trace))
	}
	if len(ev.Ciphertext) != ev.Circuit.BlockCount {
		return types.NewShapeMismatchError("ciphertext blocks", ev.Circuit.BlockCount, len(ev.Ciphertext))
	}
	return nil
}

// Assemble builds the proof bundle for gate g. The bundle is checked with
// Verify against the party's own prefix digest before it is returned; a
// failure means the evidence is inconsistent.
func Assemble(ev Evidence, g int, opts ...accumulator.Option) (*Proof, error) {
	if err := ev.check(); err != nil {
		return nil, err
	}
	c, trace := ev.Circuit, ev.Trace
	if g < 0 || g >= c.Len() {
		return nil, types.NewIndexOutOfBoundsError(g, c.Len())
	}
	n := c.BlockCount
	gate := c.Gates[g]

	p := &Proof{
		GateIndex: g,
		Gate:      gate,
		Output:    trace[g],
	}

	var err error
	if p.GateProof, err = accumulator.Build(c.GateLeaves(), opts...).Prove(g); err != nil {
		return nil, err
	}

	var ctIdx, trIdx []int
	for _, son := range gate.Sons {
		op := Operand{Index: son}
		switch {
		case son < 0:
			op.Constant = true
			if op.Value, err = ev.Constants.Resolve(son); err != nil {
				return nil, errorsmod.Wrapf(err, "gate %d", g)
			}
		case son < n:
			op.Value = ev.Ciphertext[son]
			ctIdx = append(ctIdx, son)
		default:
			op.Value = trace[son]
			trIdx = append(trIdx, son)
		}
		p.Operands = append(p.Operands, op)
	}

	if len(ctIdx) > 0 {
		if p.CiphertextIndices, err = accumulator.NormalizeIndices(ctIdx, n); err != nil {
			return nil, err
		}
		if p.CiphertextProof, err = accumulator.ProveSubset(ev.Ciphertext, p.CiphertextIndices, opts...); err != nil {
			return nil, err
		}
	}
	if len(trIdx) > 0 {
		if p.TraceIndices, err = accumulator.NormalizeIndices(trIdx, g); err != nil {
			return nil, err
		}
		if p.TraceProof, err = accumulator.ProveSubset(trace[:g], p.TraceIndices, opts...); err != nil {
			return nil, err
		}
	}

	leaves := [][]byte(trace)
	p.PrefixRoot = accumulator.Digest(leaves[:g], opts...)
	p.NextRoot = accumulator.Digest(leaves[:g+1], opts...)
	if p.ExtensionProof, err = accumulator.ProveExtension(leaves, g, opts...); err != nil {
		return nil, err
	}

	if g < n {
		if p.InputProof, err = accumulator.ProveSubset(ev.Ciphertext, []int{g}, opts...); err != nil {
			return nil, err
		}
	}

	anchors, err := AnchorsOf(ev, opts...)
	if err != nil {
		return nil, err
	}
	if err := Verify(p, anchors, p.PrefixRoot); err != nil {
		return nil, errorsmod.Wrapf(err, "assembled proof for gate %d", g)
	}
	return p, nil
}

// values returns the operand values at the given (sorted, unique) indices.
// Every operand referencing the same index must carry the same value.
func (p *Proof) values(indices []int) ([][]byte, error) {
	out := make([][]byte, len(indices))
	for i, idx := range indices {
		found := false
		for _, op := range p.Operands {
			if op.Constant || op.Index != idx {
				continue
			}
			if found && !slices.Equal(out[i], op.Value) {
				return nil, errorsmod.Wrapf(types.ErrProofVerificationFailed, "conflicting values for son %d", idx)
			}
			out[i], found = op.Value, true
		}
		if !found {
			return nil, errorsmod.Wrapf(types.ErrProofVerificationFailed, "no operand for son %d", idx)
		}
	}
	return out, nil
}
