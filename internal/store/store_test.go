package store

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"sox-verified-go/circuit"
	"sox-verified-go/internal/metrics"
	"sox-verified-go/types"
)

func openStore(t *testing.T) (*Store, *metrics.Recorder) {
	t.Helper()
	rec := metrics.NewRecorder()
	s, err := Open(t.TempDir(), nil, rec)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, rec
}

func TestPutGetRoundTrip(t *testing.T) {
	s, rec := openStore(t)
	data := bytes.Repeat([]byte("ciphertext block "), 64)

	id, err := s.Put(KindCiphertext, data)
	require.NoError(t, err)

	got, err := s.Get(KindCiphertext, id)
	require.NoError(t, err)
	require.Equal(t, data, got)

	written := testutil.ToFloat64(rec.StoreBytesWritten.WithLabelValues(string(KindCiphertext)))
	require.Greater(t, written, 0.0)
	require.Less(t, written, float64(len(data)))

	// same bytes, same id, nothing rewritten
	again, err := s.Put(KindCiphertext, data)
	require.NoError(t, err)
	require.Equal(t, id, again)
	require.Equal(t, written, testutil.ToFloat64(rec.StoreBytesWritten.WithLabelValues(string(KindCiphertext))))
}

func TestGetMissing(t *testing.T) {
	s, _ := openStore(t)
	_, err := s.Get(KindTrace, ID{1})
	require.True(t, errors.Is(err, ErrNotFound))
}

func TestGetDetectsCorruption(t *testing.T) {
	s, _ := openStore(t)
	id, err := s.Put(KindProof, []byte("proof bundle"))
	require.NoError(t, err)

	other := s.encoder.EncodeAll([]byte("something else"), nil)
	require.NoError(t, os.WriteFile(s.path(KindProof, id), other, 0o644))
	_, err = s.Get(KindProof, id)
	require.True(t, errors.Is(err, types.ErrMalformedEncoding))

	require.NoError(t, os.WriteFile(s.path(KindProof, id), []byte("not zstd"), 0o644))
	_, err = s.Get(KindProof, id)
	require.True(t, errors.Is(err, types.ErrMalformedEncoding))
}

func TestCircuitAndTraceArtifacts(t *testing.T) {
	s, _ := openStore(t)

	c, _, err := circuit.CompileExchangeCircuit(3, circuit.DefaultBlockSize)
	require.NoError(t, err)
	cid, err := s.PutCircuit(c)
	require.NoError(t, err)
	loaded, err := s.GetCircuit(cid)
	require.NoError(t, err)
	require.Equal(t, c.Digest(), loaded.Digest())

	trace := circuit.Trace{[]byte{}, []byte{1, 2, 3}, bytes.Repeat([]byte{9}, 32)}
	tid, err := s.PutTrace(trace)
	require.NoError(t, err)
	loadedTrace, err := s.GetTrace(tid)
	require.NoError(t, err)
	require.Equal(t, trace.Digest(), loadedTrace.Digest())

	// kinds are separate namespaces
	_, err = s.GetTrace(cid)
	require.True(t, errors.Is(err, ErrNotFound))
}

func TestParseID(t *testing.T) {
	s, _ := openStore(t)
	id, err := s.Put(KindCircuit, []byte{0})
	require.NoError(t, err)

	parsed, err := ParseID(id.String())
	require.NoError(t, err)
	require.Equal(t, id, parsed)

	_, err = ParseID("abcd")
	require.Error(t, err)
	_, err = ParseID("zz")
	require.Error(t, err)
}

func TestOpenCreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "store")
	s, err := Open(dir, nil, nil)
	require.NoError(t, err)
	defer s.Close()
	_, err = s.Put(KindCircuit, []byte("x"))
	require.NoError(t, err)
	require.DirExists(t, filepath.Join(dir, string(KindCircuit)))
}
