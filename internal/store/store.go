package store

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	errorsmod "cosmossdk.io/errors"
	"github.com/klauspost/compress/zstd"
	"github.com/zeebo/blake3"

	"sox-verified-go/circuit"
	"sox-verified-go/internal/metrics"
	"sox-verified-go/pkg/logger"
	"sox-verified-go/types"
)

// ErrNotFound is returned when no artifact has the requested id.
var ErrNotFound = errorsmod.Register(types.Codespace, 8, "artifact not found")

// Kind partitions the store by artifact type.
type Kind string

const (
	KindCircuit    Kind = "circuit"
	KindTrace      Kind = "trace"
	KindCiphertext Kind = "ciphertext"
	KindProof      Kind = "proof"
)

// ID is the BLAKE3 digest of an artifact's uncompressed bytes.
type ID [32]byte

func (id ID) String() string { return hex.EncodeToString(id[:]) }

// ParseID decodes a hex artifact id.
func ParseID(s string) (ID, error) {
	var id ID
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != len(id) {
		return id, errorsmod.Wrapf(types.ErrMalformedEncoding, "artifact id %q", s)
	}
	copy(id[:], b)
	return id, nil
}

// Store keeps zstd-compressed artifacts on disk under their content id, so the
// circuit and trace agreed on today can be reloaded bit-exact for a dispute
// much later.
type Store struct {
	dir     string
	encoder *zstd.Encoder
	decoder *zstd.Decoder
	log     *logger.Logger
	metrics *metrics.Recorder
}

// Open creates dir if needed. rec may be nil.
func Open(dir string, log *logger.Logger, rec *metrics.Recorder) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(4))
	if err != nil {
		encoder.Close()
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Store{dir: dir, encoder: encoder, decoder: decoder, log: log, metrics: rec}, nil
}

// Close releases the codec resources.
func (s *Store) Close() error {
	s.decoder.Close()
	return s.encoder.Close()
}

func (s *Store) path(kind Kind, id ID) string {
	return filepath.Join(s.dir, string(kind), id.String()+".zst")
}

// Put stores data and returns its id. Storing the same bytes twice is a no-op.
func (s *Store) Put(kind Kind, data []byte) (ID, error) {
	id := ID(blake3.Sum256(data))
	path := s.path(kind, id)
	if _, err := os.Stat(path); err == nil {
		s.log.Debug("artifact already stored", "kind", kind, "id", id.String())
		return id, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return id, fmt.Errorf("create %s dir: %w", kind, err)
	}

	compressed := s.encoder.EncodeAll(data, nil)
	tmp, err := os.CreateTemp(filepath.Dir(path), ".put-*")
	if err != nil {
		return id, fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.Write(compressed); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return id, fmt.Errorf("write %s: %w", kind, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return id, fmt.Errorf("close %s: %w", kind, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return id, fmt.Errorf("commit %s: %w", kind, err)
	}

	s.metrics.CountWrite(string(kind), len(compressed))
	s.log.Info("artifact stored", "kind", kind, "id", id.String(), "raw_bytes", len(data), "stored_bytes", len(compressed))
	return id, nil
}

// Get loads and decompresses an artifact and checks it still hashes to id.
func (s *Store) Get(kind Kind, id ID) ([]byte, error) {
	compressed, err := os.ReadFile(s.path(kind, id))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, errorsmod.Wrapf(ErrNotFound, "%s %s", kind, id)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", kind, err)
	}
	data, err := s.decoder.DecodeAll(compressed, nil)
	if err != nil {
		return nil, errorsmod.Wrapf(types.ErrMalformedEncoding, "decompress %s %s: %v", kind, id, err)
	}
	if ID(blake3.Sum256(data)) != id {
		return nil, errorsmod.Wrapf(types.ErrMalformedEncoding, "%s %s: content does not match id", kind, id)
	}
	return data, nil
}

// PutCircuit stores a circuit in its binary encoding.
func (s *Store) PutCircuit(c *circuit.Circuit) (ID, error) {
	data, err := c.MarshalBinary()
	if err != nil {
		return ID{}, err
	}
	return s.Put(KindCircuit, data)
}

// GetCircuit loads and validates a circuit.
func (s *Store) GetCircuit(id ID) (*circuit.Circuit, error) {
	data, err := s.Get(KindCircuit, id)
	if err != nil {
		return nil, err
	}
	var c circuit.Circuit
	if err := c.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// PutTrace stores a trace in its binary encoding.
func (s *Store) PutTrace(t circuit.Trace) (ID, error) {
	data, err := t.MarshalBinary()
	if err != nil {
		return ID{}, err
	}
	return s.Put(KindTrace, data)
}

// GetTrace loads a trace.
func (s *Store) GetTrace(id ID) (circuit.Trace, error) {
	data, err := s.Get(KindTrace, id)
	if err != nil {
		return nil, err
	}
	var t circuit.Trace
	if err := t.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	return t, nil
}
