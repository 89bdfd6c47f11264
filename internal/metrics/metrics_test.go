package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestRecorderCounts(t *testing.T) {
	r := NewRecorder()
	r.CountGate("SHA256", 4)
	r.CountGate("SHA256", 1)
	r.CountProof(nil)
	r.CountProof(errors.New("boom"))
	r.CountWrite("circuit", 128)
	r.ObserveTree("trace", time.Now())
	r.ObserveBisection(5)

	require.Equal(t, 5.0, testutil.ToFloat64(r.GatesEvaluated.WithLabelValues("SHA256")))
	require.Equal(t, 1.0, testutil.ToFloat64(r.ProofsAssembled.WithLabelValues("ok")))
	require.Equal(t, 1.0, testutil.ToFloat64(r.ProofsAssembled.WithLabelValues("error")))
	require.Equal(t, 128.0, testutil.ToFloat64(r.StoreBytesWritten.WithLabelValues("circuit")))
	require.Equal(t, 1, testutil.CollectAndCount(r.TreeBuildTime))
}

func TestNilRecorderIsSafe(t *testing.T) {
	var r *Recorder
	r.CountGate("ADD", 1)
	r.CountProof(nil)
	r.CountWrite("trace", 1)
	r.ObserveTree("circuit", time.Now())
	r.ObserveBisection(1)
}

func TestWriteTextfile(t *testing.T) {
	r := NewRecorder()
	r.CountGate("EQ", 1)

	path := filepath.Join(t.TempDir(), "sox.prom")
	require.NoError(t, r.WriteTextfile(path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(raw), `sox_gates_evaluated_total{opcode="EQ"} 1`)
}
