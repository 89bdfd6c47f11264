package client

import (
	"bytes"
	"time"

	errorsmod "cosmossdk.io/errors"

	"sox-verified-go/accumulator"
	"sox-verified-go/circuit"
	"sox-verified-go/commitment"
	"sox-verified-go/dispute"
	"sox-verified-go/internal/metrics"
	"sox-verified-go/pkg/logger"
	"sox-verified-go/primitives"
	"sox-verified-go/types"
)

type options struct {
	log      *logger.Logger
	metrics  *metrics.Recorder
	treeOpts []accumulator.Option
}

// Option configures a Vendor, Buyer, Session or bisection run.
type Option func(*options)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *logger.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithMetrics records evaluation and proof work on rec.
func WithMetrics(rec *metrics.Recorder) Option {
	return func(o *options) { o.metrics = rec }
}

// WithTreeOptions passes accumulator tuning through to every digest.
func WithTreeOptions(opts ...accumulator.Option) Option {
	return func(o *options) { o.treeOpts = append(o.treeOpts, opts...) }
}

func newOptions(opts []Option) options {
	o := options{log: logger.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = logger.Nop()
	}
	return o
}

// Offer is what a vendor publishes before payment. Everything in it can be
// checked by a buyer holding only the ciphertext.
type Offer struct {
	BlockSize      int           `json:"block_size"`
	BlockCount     int           `json:"block_count"`
	CiphertextRoot types.HexHash `json:"ciphertext_root"`
	CircuitRoot    types.HexHash `json:"circuit_root"`
	Description    types.HexHash `json:"description"`
	KeyCommitment  types.HexHash `json:"key_commitment"`
}

// Anchors derives the verifier anchors from the offer and the revealed key
// alone. The opening must match the offer's key commitment.
func (o Offer) Anchors(opening commitment.Opening) (dispute.Anchors, error) {
	if err := circuit.ValidateBlockSize(o.BlockSize); err != nil {
		return dispute.Anchors{}, err
	}
	if o.BlockCount < 1 {
		return dispute.Anchors{}, types.NewShapeMismatchError("offer block count", 1, o.BlockCount)
	}
	a, c, err := commitment.Open(types.Hash(o.KeyCommitment), opening)
	if err != nil {
		return dispute.Anchors{}, err
	}
	key, err := circuit.KeyFromBytes(append(bytes.Clone(a), c...))
	if err != nil {
		return dispute.Anchors{}, err
	}
	return dispute.Anchors{
		CircuitRoot:     types.Hash(o.CircuitRoot),
		CircuitSize:     circuit.GateCount(o.BlockCount),
		CiphertextRoot:  types.Hash(o.CiphertextRoot),
		CiphertextCount: o.BlockCount,
		Constants:       circuit.ExchangeSlots.Bind(key, types.Hash(o.Description), o.BlockSize),
		CounterStart:    bytes.Clone(key.Counter[:]),
	}, nil
}

// Vendor sells one file.
type Vendor struct {
	opts        options
	key         circuit.Key
	blockSize   int
	ciphertext  []byte
	blocks      [][]byte
	circuit     *circuit.Circuit
	description types.Hash
	commitment  commitment.Commitment
}

// NewVendor keys and encrypts plaintext and compiles the matching circuit.
func NewVendor(plaintext []byte, blockSize int, enc EncryptionBackend, opts ...Option) (*Vendor, error) {
	o := newOptions(opts)
	if err := circuit.ValidateBlockSize(blockSize); err != nil {
		return nil, err
	}
	key, err := enc.Keygen()
	if err != nil {
		return nil, errorsmod.Wrap(err, "keygen")
	}
	ciphertext, err := enc.Encrypt(plaintext, key)
	if err != nil {
		return nil, errorsmod.Wrap(err, "encrypt")
	}
	description, err := primitives.DescriptionDigest(plaintext, blockSize)
	if err != nil {
		return nil, err
	}
	blocks, err := circuit.SplitBlocks(ciphertext, blockSize)
	if err != nil {
		return nil, err
	}
	c, _, err := circuit.CompileExchangeCircuit(len(blocks), blockSize)
	if err != nil {
		return nil, err
	}

	v := &Vendor{
		opts:        o,
		key:         key,
		blockSize:   blockSize,
		ciphertext:  ciphertext,
		blocks:      blocks,
		circuit:     c,
		description: description,
		commitment:  commitment.Commit(key.AES[:], key.Counter[:]),
	}
	o.log.Info("vendor ready", "bytes", len(plaintext), "blocks", len(blocks), "block_size", blockSize)
	return v, nil
}

// Ciphertext returns the encrypted file handed to the buyer.
func (v *Vendor) Ciphertext() []byte { return v.ciphertext }

// Circuit returns the compiled exchange circuit.
func (v *Vendor) Circuit() *circuit.Circuit { return v.circuit }

// Offer publishes the roots, description and key commitment.
func (v *Vendor) Offer() Offer {
	start := time.Now()
	ctRoot := accumulator.Digest(v.blocks, v.opts.treeOpts...)
	v.opts.metrics.ObserveTree("ciphertext", start)

	start = time.Now()
	circuitRoot := v.circuit.Digest(v.opts.treeOpts...)
	v.opts.metrics.ObserveTree("circuit", start)

	return Offer{
		BlockSize:      v.blockSize,
		BlockCount:     len(v.blocks),
		CiphertextRoot: types.HexHash(ctRoot),
		CircuitRoot:    types.HexHash(circuitRoot),
		Description:    types.HexHash(v.description),
		KeyCommitment:  v.commitment.C,
	}
}

// RevealKey opens the key commitment once the buyer has paid.
func (v *Vendor) RevealKey() commitment.Opening {
	v.opts.log.Info("revealing key", "commitment", v.commitment.C.String())
	return v.commitment.Opening
}

// Session evaluates the circuit with the vendor's own key. Its trace is the
// one the vendor defends in a dispute.
func (v *Vendor) Session() (*Session, error) {
	return evaluate(v.ciphertext, v.blockSize, v.circuit, v.key, v.description, v.opts)
}

// Buyer checks an offer against the ciphertext it received.
type Buyer struct {
	opts       options
	offer      Offer
	ciphertext []byte
	circuit    *circuit.Circuit
}

// NewBuyer recompiles the circuit and rejects the offer unless both roots
// match what the buyer computes itself.
func NewBuyer(offer Offer, ciphertext []byte, opts ...Option) (*Buyer, error) {
	o := newOptions(opts)
	if err := circuit.ValidateBlockSize(offer.BlockSize); err != nil {
		return nil, err
	}
	blocks, err := circuit.SplitBlocks(ciphertext, offer.BlockSize)
	if err != nil {
		return nil, err
	}
	if len(blocks) != offer.BlockCount {
		return nil, types.NewShapeMismatchError("offered block count", offer.BlockCount, len(blocks))
	}
	if root := accumulator.Digest(blocks, o.treeOpts...); !types.HashEq(root, types.Hash(offer.CiphertextRoot)) {
		return nil, errorsmod.Wrapf(types.ErrCommitmentMismatch, "ciphertext root %s, offered %s",
			types.HexHash(root), offer.CiphertextRoot)
	}
	c, _, err := circuit.CompileExchangeCircuit(offer.BlockCount, offer.BlockSize)
	if err != nil {
		return nil, err
	}
	if root := c.Digest(o.treeOpts...); !types.HashEq(root, types.Hash(offer.CircuitRoot)) {
		return nil, errorsmod.Wrapf(types.ErrCommitmentMismatch, "circuit root %s, offered %s",
			types.HexHash(root), offer.CircuitRoot)
	}
	o.log.Info("offer accepted", "blocks", offer.BlockCount, "circuit_root", offer.CircuitRoot.String())
	return &Buyer{opts: o, offer: offer, ciphertext: ciphertext, circuit: c}, nil
}

// Receive opens the revealed key, decrypts the file and evaluates the
// circuit. The session's trace ends in EqualFalse when the plaintext does not
// match the offered description; the plaintext is returned either way.
func (b *Buyer) Receive(opening commitment.Opening) (*Session, []byte, error) {
	a, c, err := commitment.Open(types.Hash(b.offer.KeyCommitment), opening)
	if err != nil {
		return nil, nil, err
	}
	key, err := circuit.KeyFromBytes(append(bytes.Clone(a), c...))
	if err != nil {
		return nil, nil, err
	}
	plaintext, err := CTREncryption{}.Decrypt(b.ciphertext, key)
	if err != nil {
		return nil, nil, err
	}
	s, err := evaluate(b.ciphertext, b.offer.BlockSize, b.circuit, key, types.Hash(b.offer.Description), b.opts)
	if err != nil {
		return nil, nil, err
	}
	if !s.Accepted() {
		b.opts.log.Warn("plaintext does not match description", "description", b.offer.Description.String())
	}
	return s, plaintext, nil
}

// Session is one party's evidence for a completed exchange.
type Session struct {
	opts     options
	evidence dispute.Evidence
}

func evaluate(ciphertext []byte, blockSize int, c *circuit.Circuit, key circuit.Key, description types.Hash, o options) (*Session, error) {
	trace, err := circuit.Evaluate(ciphertext, blockSize, c, key, description)
	if err != nil {
		return nil, err
	}
	blocks, err := circuit.SplitBlocks(ciphertext, blockSize)
	if err != nil {
		return nil, err
	}
	for _, g := range c.Gates {
		if !g.IsInput() {
			o.metrics.CountGate(g.Opcode.String(), 1)
		}
	}
	return &Session{
		opts: o,
		evidence: dispute.Evidence{
			Circuit:    c,
			Trace:      trace,
			Ciphertext: blocks,
			Constants:  circuit.ExchangeSlots.Bind(key, description, blockSize),
		},
	}, nil
}

// NewSession wraps evidence produced elsewhere, such as a trace loaded from
// the store.
func NewSession(ev dispute.Evidence, opts ...Option) (*Session, error) {
	if _, err := dispute.AnchorsOf(ev); err != nil {
		return nil, err
	}
	return &Session{opts: newOptions(opts), evidence: ev}, nil
}

// Evidence returns what the session would submit in a dispute.
func (s *Session) Evidence() dispute.Evidence { return s.evidence }

// Trace returns the evaluated trace.
func (s *Session) Trace() circuit.Trace { return s.evidence.Trace }

// Len is the number of gates, the size of the bisection range.
func (s *Session) Len() int { return len(s.evidence.Trace) }

// Accepted reports whether the final equality gate held.
func (s *Session) Accepted() bool { return s.evidence.Trace.Accepted() }

// Anchors returns the verifier anchors implied by this session's evidence.
func (s *Session) Anchors() (dispute.Anchors, error) {
	return dispute.AnchorsOf(s.evidence, s.opts.treeOpts...)
}

// PrefixDigest answers one bisection challenge with the digest of the first
// k trace entries.
func (s *Session) PrefixDigest(k int) (types.Hash, error) {
	start := time.Now()
	defer s.opts.metrics.ObserveTree("trace", start)
	return s.evidence.Trace.PrefixDigest(k, s.opts.treeOpts...)
}

// DisputeProof assembles the bundle for the gate bisection settled on.
func (s *Session) DisputeProof(g int) (*dispute.Proof, error) {
	p, err := dispute.Assemble(s.evidence, g, s.opts.treeOpts...)
	s.opts.metrics.CountProof(err)
	if err != nil {
		s.opts.log.Error("dispute proof failed", "gate", g, "error", err.Error())
		return nil, err
	}
	s.opts.log.Info("dispute proof assembled", "gate", g, "opcode", p.Gate.Opcode.String(),
		"trace_operands", len(p.TraceIndices), "ciphertext_operands", len(p.CiphertextIndices))
	return p, nil
}
