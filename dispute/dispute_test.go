package dispute

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"sox-verified-go/accumulator"
	"sox-verified-go/circuit"
	"sox-verified-go/primitives"
	"sox-verified-go/types"
)

type fixture struct {
	ev      Evidence
	anchors Anchors
}

// newFixture evaluates the exchange circuit over ct and computes the anchors
// independently of AnchorsOf.
func newFixture(t *testing.T, ct []byte, key circuit.Key, blockSize int) fixture {
	t.Helper()
	plain, err := primitives.CTRBlock(key.AES[:], ct, key.Counter[:])
	require.NoError(t, err)
	desc, err := primitives.DescriptionDigest(plain, blockSize)
	require.NoError(t, err)

	blocks, err := circuit.SplitBlocks(ct, blockSize)
	require.NoError(t, err)
	c, slots, err := circuit.CompileExchangeCircuit(len(blocks), blockSize)
	require.NoError(t, err)
	trace, err := circuit.Evaluate(ct, blockSize, c, key, desc)
	require.NoError(t, err)
	require.True(t, trace.Accepted())

	constants := slots.Bind(key, desc, blockSize)
	return fixture{
		ev: Evidence{Circuit: c, Trace: trace, Ciphertext: blocks, Constants: constants},
		anchors: Anchors{
			CircuitRoot:     accumulator.Digest(c.GateLeaves()),
			CircuitSize:     c.Len(),
			CiphertextRoot:  accumulator.Digest(blocks),
			CiphertextCount: len(blocks),
			Constants:       constants,
			CounterStart:    key.Counter[:],
		},
	}
}

// agreed is the prefix digest an honest bisection settles on for gate g.
func (f fixture) agreed(t *testing.T, g int) types.Hash {
	t.Helper()
	h, err := f.ev.Trace.PrefixDigest(g)
	require.NoError(t, err)
	return h
}

// N all-zero ciphertext blocks under an all-zero key, every gate in [N, 4N].
func TestAllZeroFixtureEveryOperationGate(t *testing.T) {
	for _, n := range []int{1, 2, 3, 5, 8} {
		f := newFixture(t, make([]byte, 64*n), circuit.Key{}, 64)

		derived, err := AnchorsOf(f.ev)
		require.NoError(t, err)
		require.Equal(t, f.anchors, derived)

		for g := n; g <= 4*n; g++ {
			p, err := Assemble(f.ev, g)
			require.NoError(t, err, "n=%d g=%d", n, g)
			require.NoError(t, Verify(p, f.anchors, f.agreed(t, g)), "n=%d g=%d", n, g)
			require.NoError(t, Check(p, f.anchors, f.agreed(t, g), primitives.V1), "n=%d g=%d", n, g)
			require.Equal(t, f.agreed(t, g), p.PrefixRoot)
		}
	}
}

func TestInputGates(t *testing.T) {
	key := circuit.Key{AES: [16]byte{1, 2, 3}, Counter: [16]byte{15: 9}}
	f := newFixture(t, bytes.Repeat([]byte{0x5a}, 150), key, 32)
	n := f.ev.Circuit.BlockCount
	require.Equal(t, 5, n)

	for g := 0; g <= n; g++ {
		p, err := Assemble(f.ev, g)
		require.NoError(t, err, "g=%d", g)
		require.Empty(t, p.Operands)
		require.NoError(t, Check(p, f.anchors, f.agreed(t, g), primitives.V1), "g=%d", g)
		if g < n {
			require.Equal(t, f.ev.Ciphertext[g], p.Output)
		} else {
			require.Empty(t, p.InputProof)
		}
	}

	p, err := Assemble(f.ev, n)
	require.NoError(t, err)
	wrong := f.anchors
	wrong.CounterStart = make([]byte, 16)
	require.ErrorIs(t, Verify(p, wrong, f.agreed(t, n)), types.ErrProofVerificationFailed)
}

func TestOperandPartition(t *testing.T) {
	f := newFixture(t, make([]byte, 4*64), circuit.Key{}, 64)
	n := 4

	// AES gate for block 2: key constant, ciphertext block 2, counter gate n+2.
	p, err := Assemble(f.ev, 2*n+2)
	require.NoError(t, err)
	require.Equal(t, []int{2}, p.CiphertextIndices)
	require.Equal(t, []int{n + 2}, p.TraceIndices)
	require.True(t, p.Operands[0].Constant)
	require.Equal(t, f.ev.Ciphertext[2], p.Operands[1].Value)

	// First counter increment reads the counter input, which is a trace entry.
	p, err = Assemble(f.ev, n+1)
	require.NoError(t, err)
	require.Empty(t, p.CiphertextIndices)
	require.Equal(t, []int{n}, p.TraceIndices)
}

func TestTamperedProofsFail(t *testing.T) {
	f := newFixture(t, bytes.Repeat([]byte{0x33}, 3*64), circuit.Key{AES: [16]byte{7}}, 64)
	g := 2*3 + 1 // AES gate, touches both pools

	fresh := func() *Proof {
		p, err := Assemble(f.ev, g)
		require.NoError(t, err)
		return p
	}

	tamper := map[string]func(p *Proof){
		"output":           func(p *Proof) { p.Output = append([]byte{}, 0x00) },
		"ciphertext value": func(p *Proof) { p.Operands[1].Value = bytes.Repeat([]byte{0x34}, 64) },
		"trace value":      func(p *Proof) { p.Operands[2].Value = primitives.Uint(99) },
		"constant":         func(p *Proof) { p.Operands[0].Value = make([]byte, 16) },
		"gate":             func(p *Proof) { p.Gate.Sons = []int{-1, 0, 4} },
		"gate proof":       func(p *Proof) { p.GateProof[0][0] ^= 1 },
		"ciphertext proof": func(p *Proof) { p.CiphertextProof = p.CiphertextProof[1:] },
		"trace proof":      func(p *Proof) { p.TraceProof[0][5] ^= 1 },
		"prefix root":      func(p *Proof) { p.PrefixRoot[0] ^= 1 },
		"next root":        func(p *Proof) { p.NextRoot[0] ^= 1 },
		"extension proof":  func(p *Proof) { p.ExtensionProof = append(p.ExtensionProof, p.PrefixRoot) },
		"trace indices":    func(p *Proof) { p.TraceIndices = []int{3} },
		"gate index":       func(p *Proof) { p.GateIndex++ },
		"input proof":      func(p *Proof) { p.InputProof = accumulator.MultiProof{p.PrefixRoot} },
	}
	for name, fn := range tamper {
		p := fresh()
		fn(p)
		err := Verify(p, f.anchors, f.agreed(t, g))
		require.Error(t, err, name)
	}

	wrong := f.anchors
	wrong.CiphertextRoot[3] ^= 1
	require.ErrorIs(t, Verify(fresh(), wrong, f.agreed(t, g)), types.ErrProofVerificationFailed)
}

func TestCheatingTraceIsCaught(t *testing.T) {
	f := newFixture(t, bytes.Repeat([]byte{0x01}, 4*64), circuit.Key{}, 64)
	n := 4
	bad := 2*n + 1

	// The cheater replaces one AES output and recomputes everything after it.
	cheat := make(circuit.Trace, len(f.ev.Trace))
	copy(cheat, f.ev.Trace)
	cheat[bad] = bytes.Repeat([]byte{0xee}, 64)
	for i := bad + 1; i < len(cheat); i++ {
		g := f.ev.Circuit.Gates[i]
		ops, err := circuit.ResolveOperands(g, cheat[:i], f.ev.Constants)
		require.NoError(t, err)
		set, err := primitives.Lookup(primitives.V1)
		require.NoError(t, err)
		cheat[i], err = set.Apply(g.Opcode, ops)
		require.NoError(t, err)
	}
	require.Equal(t, primitives.EqualFalse, cheat.Output())

	cheater := f.ev
	cheater.Trace = cheat

	for g := 0; g < len(cheat); g++ {
		honestPrefix, err := f.ev.Trace.PrefixDigest(g + 1)
		require.NoError(t, err)
		cheatPrefix, err := cheat.PrefixDigest(g + 1)
		require.NoError(t, err)
		require.Equal(t, g >= bad, honestPrefix != cheatPrefix, "g=%d", g)
	}

	p, err := Assemble(cheater, bad)
	require.NoError(t, err)
	require.NoError(t, Verify(p, f.anchors, f.agreed(t, bad)))
	require.ErrorIs(t, Check(p, f.anchors, f.agreed(t, bad), primitives.V1), types.ErrProofVerificationFailed)

	honest, err := Assemble(f.ev, bad)
	require.NoError(t, err)
	require.Equal(t, honest.PrefixRoot, p.PrefixRoot)
	require.NotEqual(t, honest.NextRoot, p.NextRoot)
	require.NoError(t, Check(honest, f.anchors, f.agreed(t, bad), primitives.V1))
}

// A cheater who rewrites an earlier trace entry and recomputes the disputed
// gate from it produces a bundle that is consistent with itself. Only the
// agreed prefix digest exposes it.
func TestCheckRejectsForgedPrefix(t *testing.T) {
	f := newFixture(t, make([]byte, 4*64), circuit.Key{}, 64)
	n := 4
	g := 3 * n

	forged := make(circuit.Trace, len(f.ev.Trace))
	copy(forged, f.ev.Trace)
	forged[2*n] = bytes.Repeat([]byte{0xee}, 64)
	ops, err := circuit.ResolveOperands(f.ev.Circuit.Gates[g], forged[:g], f.ev.Constants)
	require.NoError(t, err)
	require.Equal(t, forged[2*n], ops[1])
	set, err := primitives.Lookup(primitives.V1)
	require.NoError(t, err)
	forged[g], err = set.Apply(primitives.OpSHA256, ops)
	require.NoError(t, err)

	cheater := f.ev
	cheater.Trace = forged
	p, err := Assemble(cheater, g)
	require.NoError(t, err)
	require.NotEqual(t, f.ev.Trace[g], p.Output)
	require.NotEqual(t, f.agreed(t, g), p.PrefixRoot)

	// Against its own prefix the bundle is internally consistent.
	require.NoError(t, Check(p, f.anchors, p.PrefixRoot, primitives.V1))

	err = Check(p, f.anchors, f.agreed(t, g), primitives.V1)
	require.ErrorIs(t, err, types.ErrProofVerificationFailed)
	require.ErrorIs(t, Verify(p, f.anchors, f.agreed(t, g)), types.ErrProofVerificationFailed)
}

func TestVerifyRejectsInconsistentCircuitSize(t *testing.T) {
	f := newFixture(t, make([]byte, 3*64), circuit.Key{}, 64)
	p, err := Assemble(f.ev, 2)
	require.NoError(t, err)
	require.NoError(t, Verify(p, f.anchors, f.agreed(t, 2)))

	for _, mutate := range []func(a *Anchors){
		func(a *Anchors) { a.CircuitSize++ },
		func(a *Anchors) { a.CircuitSize-- },
		func(a *Anchors) { a.CiphertextCount = 2 },
		func(a *Anchors) { a.CiphertextCount, a.CircuitSize = 0, 1 },
	} {
		wrong := f.anchors
		mutate(&wrong)
		require.ErrorIs(t, Verify(p, wrong, f.agreed(t, 2)), types.ErrShapeMismatch, "%+v", wrong)
	}
}

func TestAssembleRejectsInconsistentEvidence(t *testing.T) {
	f := newFixture(t, make([]byte, 2*64), circuit.Key{}, 64)

	_, err := Assemble(f.ev, 9)
	require.ErrorIs(t, err, types.ErrIndexOutOfBounds)

	short := f.ev
	short.Trace = short.Trace[:5]
	_, err = Assemble(short, 6)
	require.ErrorIs(t, err, types.ErrShapeMismatch)

	noBlocks := f.ev
	noBlocks.Ciphertext = noBlocks.Ciphertext[:1]
	_, err = Assemble(noBlocks, 6)
	require.ErrorIs(t, err, types.ErrShapeMismatch)

	// A trace whose input prefix disagrees with the ciphertext cannot produce
	// a bundle that verifies.
	swapped := f.ev
	swapped.Trace = append(circuit.Trace{bytes.Repeat([]byte{0xaa}, 64)}, f.ev.Trace[1:]...)
	_, err = Assemble(swapped, 0)
	require.ErrorIs(t, err, types.ErrProofVerificationFailed)
}

func TestProofJSONRoundTrip(t *testing.T) {
	f := newFixture(t, bytes.Repeat([]byte{0x42}, 100), circuit.Key{Counter: [16]byte{15: 1}}, 16)
	n := f.ev.Circuit.BlockCount

	for _, g := range []int{0, n, n + 1, 2*n + 3, 3 * n, 4 * n} {
		p, err := Assemble(f.ev, g)
		require.NoError(t, err)

		raw, err := json.Marshal(p)
		require.NoError(t, err)

		var back Proof
		require.NoError(t, json.Unmarshal(raw, &back))
		require.Equal(t, p, &back, "g=%d", g)
		require.NoError(t, Check(&back, f.anchors, f.agreed(t, g), primitives.V1))
	}

	raw, err := json.Marshal(f.anchors)
	require.NoError(t, err)
	var anchors Anchors
	require.NoError(t, json.Unmarshal(raw, &anchors))
	require.Equal(t, f.anchors.CircuitRoot, anchors.CircuitRoot)
	require.Equal(t, f.anchors.CiphertextCount, anchors.CiphertextCount)

	p, err := Assemble(f.ev, 4*n)
	require.NoError(t, err)
	require.NoError(t, Verify(p, anchors, f.agreed(t, 4*n)))

	var bad Proof
	require.ErrorIs(t, json.Unmarshal([]byte(`{"gate":"0x01"}`), &bad), types.ErrMalformedEncoding)
}
