package dispute

import (
	"bytes"
	"slices"

	errorsmod "cosmossdk.io/errors"

	"sox-verified-go/accumulator"
	"sox-verified-go/circuit"
	"sox-verified-go/primitives"
	"sox-verified-go/types"
)

// Verify is the reference verifier. It checks that the gate, its operands
// and its claimed output are consistent with the anchors, the agreed prefix
// digest and the extended digest. agreed is the digest of trace[:GateIndex]
// both parties settled on during bisection; the bundle's own PrefixRoot must
// equal it. Verify does not decide whether Output is the correct result of
// the gate; see Check.
func Verify(p *Proof, a Anchors, agreed types.Hash) error {
	g := p.GateIndex
	n := a.CiphertextCount
	if want := circuit.GateCount(n); n < 1 || a.CircuitSize != want {
		return types.NewShapeMismatchError("circuit size", want, a.CircuitSize)
	}
	if g < 0 || g >= a.CircuitSize {
		return types.NewIndexOutOfBoundsError(g, a.CircuitSize)
	}
	if !types.HashEq(p.PrefixRoot, agreed) {
		return errorsmod.Wrapf(types.ErrProofVerificationFailed, "prefix root %s is not the agreed digest %s",
			types.HexHash(p.PrefixRoot), types.HexHash(agreed))
	}

	if err := accumulator.Verify(a.CircuitRoot, a.CircuitSize, g, p.Gate.Encode(), p.GateProof); err != nil {
		return errorsmod.Wrap(err, "gate inclusion")
	}

	if len(p.Operands) != len(p.Gate.Sons) {
		return types.NewShapeMismatchError("operands", len(p.Gate.Sons), len(p.Operands))
	}
	var ctIdx, trIdx []int
	for j, son := range p.Gate.Sons {
		op := p.Operands[j]
		if op.Index != son || op.Constant != (son < 0) {
			return errorsmod.Wrapf(types.ErrProofVerificationFailed, "operand %d does not match son %d", j, son)
		}
		switch {
		case son < 0:
			want, err := a.Constants.Resolve(son)
			if err != nil {
				return err
			}
			if !bytes.Equal(want, op.Value) {
				return errorsmod.Wrapf(types.ErrProofVerificationFailed, "constant slot %d", son)
			}
		case son < n:
			ctIdx = append(ctIdx, son)
		case son < g:
			trIdx = append(trIdx, son)
		default:
			return errorsmod.Wrapf(types.ErrProofVerificationFailed, "son %d is not before gate %d", son, g)
		}
	}

	if err := p.verifyPool("ciphertext", a.CiphertextRoot, n, ctIdx, p.CiphertextIndices, p.CiphertextProof); err != nil {
		return err
	}
	if err := p.verifyPool("trace", p.PrefixRoot, g, trIdx, p.TraceIndices, p.TraceProof); err != nil {
		return err
	}

	if err := accumulator.VerifyExtension(p.PrefixRoot, p.NextRoot, g, p.Output, p.ExtensionProof); err != nil {
		return errorsmod.Wrap(err, "trace extension")
	}

	switch {
	case g < n:
		if err := accumulator.Verify(a.CiphertextRoot, n, g, p.Output, p.InputProof); err != nil {
			return errorsmod.Wrap(err, "ciphertext input")
		}
	case len(p.InputProof) != 0:
		return errorsmod.Wrapf(types.ErrProofVerificationFailed, "input proof for non-ciphertext gate %d", g)
	}
	if g == n && !bytes.Equal(p.Output, a.CounterStart) {
		return errorsmod.Wrap(types.ErrProofVerificationFailed, "counter input does not match the revealed counter")
	}
	return nil
}

// verifyPool checks the sons that fall in one accumulator. claimed are the
// sons as they appear on the gate; indices is what the proof declares.
func (p *Proof) verifyPool(name string, root types.Hash, size int, claimed, indices []int, proof accumulator.MultiProof) error {
	if len(claimed) == 0 {
		if len(indices) != 0 || len(proof) != 0 {
			return errorsmod.Wrapf(types.ErrProofVerificationFailed, "%s proof for a gate with no %s sons", name, name)
		}
		return nil
	}
	want, err := accumulator.NormalizeIndices(claimed, size)
	if err != nil {
		return err
	}
	if !slices.Equal(want, indices) {
		return errorsmod.Wrapf(types.ErrProofVerificationFailed, "%s indices %v, gate sons give %v", name, indices, want)
	}
	values, err := p.values(want)
	if err != nil {
		return err
	}
	if err := accumulator.VerifySubset(root, size, want, values, proof); err != nil {
		return errorsmod.Wrapf(err, "%s operands", name)
	}
	return nil
}

// Recompute executes the disputed gate over the proven operands. Input gates
// have nothing to execute; their value is pinned by Verify.
func Recompute(p *Proof, version primitives.Version) ([]byte, error) {
	if p.Gate.IsInput() {
		return p.Output, nil
	}
	set, err := primitives.Lookup(version)
	if err != nil {
		return nil, err
	}
	operands := make([][]byte, len(p.Operands))
	for i, op := range p.Operands {
		operands[i] = op.Value
	}
	out, err := set.Apply(p.Gate.Opcode, operands)
	if err != nil {
		return nil, errorsmod.Wrapf(err, "gate %d (%s)", p.GateIndex, p.Gate.Opcode)
	}
	return out, nil
}

// Check verifies the bundle against the agreed prefix and then the claimed
// output. A nil result means the party that produced the bundle computed gate
// GateIndex honestly from the trace both parties agreed on.
func Check(p *Proof, a Anchors, agreed types.Hash, version primitives.Version) error {
	if err := Verify(p, a, agreed); err != nil {
		return err
	}
	out, err := Recompute(p, version)
	if err != nil {
		return err
	}
	if !bytes.Equal(out, p.Output) {
		return errorsmod.Wrapf(types.ErrProofVerificationFailed, "gate %d (%s): claimed output %s, recomputed %s",
			p.GateIndex, p.Gate.Opcode, types.HexBytes(p.Output), types.HexBytes(out))
	}
	return nil
}
