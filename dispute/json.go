package dispute

import (
	"encoding/json"

	errorsmod "cosmossdk.io/errors"

	"sox-verified-go/accumulator"
	"sox-verified-go/circuit"
	"sox-verified-go/types"
)

type operandJSON struct {
	Index    int            `json:"index"`
	Constant bool           `json:"constant,omitempty"`
	Value    types.HexBytes `json:"value"`
}

// ProofJSON is the wire form of a Proof. The gate travels in its 32-byte word
// encoding and every proof is a root-to-leaf list of hex digests.
type ProofJSON struct {
	GateIndex         int             `json:"gate_index"`
	Opcode            string          `json:"opcode"`
	Gate              types.HexBytes  `json:"gate"`
	Operands          []operandJSON   `json:"operands,omitempty"`
	Output            types.HexBytes  `json:"output"`
	GateProof         []types.HexHash `json:"gate_proof,omitempty"`
	CiphertextIndices []int           `json:"ciphertext_indices,omitempty"`
	CiphertextProof   []types.HexHash `json:"ciphertext_proof,omitempty"`
	TraceIndices      []int           `json:"trace_indices,omitempty"`
	TraceProof        []types.HexHash `json:"trace_proof,omitempty"`
	PrefixRoot        types.HexHash   `json:"prefix_root"`
	NextRoot          types.HexHash   `json:"next_root"`
	ExtensionProof    []types.HexHash `json:"extension_proof,omitempty"`
	InputProof        []types.HexHash `json:"input_proof,omitempty"`
}

func toHex(p accumulator.MultiProof) []types.HexHash {
	if len(p) == 0 {
		return nil
	}
	out := make([]types.HexHash, len(p))
	for i, h := range p {
		out[i] = types.HexHash(h)
	}
	return out
}

func fromHex(hs []types.HexHash) accumulator.MultiProof {
	if len(hs) == 0 {
		return nil
	}
	out := make(accumulator.MultiProof, len(hs))
	for i, h := range hs {
		out[i] = types.Hash(h)
	}
	return out
}

// ToJSON converts the proof to its wire form.
func (p *Proof) ToJSON() *ProofJSON {
	pj := &ProofJSON{
		GateIndex:         p.GateIndex,
		Opcode:            p.Gate.Opcode.String(),
		Gate:              p.Gate.Encode(),
		Output:            p.Output,
		GateProof:         toHex(p.GateProof),
		CiphertextIndices: p.CiphertextIndices,
		CiphertextProof:   toHex(p.CiphertextProof),
		TraceIndices:      p.TraceIndices,
		TraceProof:        toHex(p.TraceProof),
		PrefixRoot:        types.HexHash(p.PrefixRoot),
		NextRoot:          types.HexHash(p.NextRoot),
		ExtensionProof:    toHex(p.ExtensionProof),
		InputProof:        toHex(p.InputProof),
	}
	for _, op := range p.Operands {
		pj.Operands = append(pj.Operands, operandJSON{Index: op.Index, Constant: op.Constant, Value: op.Value})
	}
	return pj
}

// Proof converts the wire form back. The opcode mnemonic is informational;
// the gate is taken from its encoding.
func (pj *ProofJSON) Proof() (*Proof, error) {
	gate, err := circuit.DecodeGate(pj.Gate)
	if err != nil {
		return nil, errorsmod.Wrap(err, "proof gate")
	}
	p := &Proof{
		GateIndex:         pj.GateIndex,
		Gate:              gate,
		Output:            pj.Output,
		GateProof:         fromHex(pj.GateProof),
		CiphertextIndices: pj.CiphertextIndices,
		CiphertextProof:   fromHex(pj.CiphertextProof),
		TraceIndices:      pj.TraceIndices,
		TraceProof:        fromHex(pj.TraceProof),
		PrefixRoot:        types.Hash(pj.PrefixRoot),
		NextRoot:          types.Hash(pj.NextRoot),
		ExtensionProof:    fromHex(pj.ExtensionProof),
		InputProof:        fromHex(pj.InputProof),
	}
	for _, op := range pj.Operands {
		p.Operands = append(p.Operands, Operand{Index: op.Index, Constant: op.Constant, Value: op.Value})
	}
	return p, nil
}

func (p *Proof) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.ToJSON())
}

func (p *Proof) UnmarshalJSON(data []byte) error {
	var pj ProofJSON
	if err := json.Unmarshal(data, &pj); err != nil {
		return errorsmod.Wrap(types.ErrMalformedEncoding, err.Error())
	}
	decoded, err := pj.Proof()
	if err != nil {
		return err
	}
	*p = *decoded
	return nil
}

type anchorsJSON struct {
	CircuitRoot     types.HexHash    `json:"circuit_root"`
	CircuitSize     int              `json:"circuit_size"`
	CiphertextRoot  types.HexHash    `json:"ciphertext_root"`
	CiphertextCount int              `json:"ciphertext_count"`
	Constants       []types.HexBytes `json:"constants"`
	CounterStart    types.HexBytes   `json:"counter_start"`
}

func (a Anchors) MarshalJSON() ([]byte, error) {
	aj := anchorsJSON{
		CircuitRoot:     types.HexHash(a.CircuitRoot),
		CircuitSize:     a.CircuitSize,
		CiphertextRoot:  types.HexHash(a.CiphertextRoot),
		CiphertextCount: a.CiphertextCount,
		CounterStart:    a.CounterStart,
	}
	for _, c := range a.Constants {
		aj.Constants = append(aj.Constants, c)
	}
	return json.Marshal(aj)
}

func (a *Anchors) UnmarshalJSON(data []byte) error {
	var aj anchorsJSON
	if err := json.Unmarshal(data, &aj); err != nil {
		return errorsmod.Wrap(types.ErrMalformedEncoding, err.Error())
	}
	*a = Anchors{
		CircuitRoot:     types.Hash(aj.CircuitRoot),
		CircuitSize:     aj.CircuitSize,
		CiphertextRoot:  types.Hash(aj.CiphertextRoot),
		CiphertextCount: aj.CiphertextCount,
		CounterStart:    aj.CounterStart,
	}
	for _, c := range aj.Constants {
		a.Constants = append(a.Constants, c)
	}
	return nil
}
