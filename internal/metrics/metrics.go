package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder holds the Prometheus collectors for one process. It owns its
// registry so tests and the CLI never touch the global default.
type Recorder struct {
	registry *prometheus.Registry

	GatesEvaluated    *prometheus.CounterVec
	ProofsAssembled   *prometheus.CounterVec
	StoreBytesWritten *prometheus.CounterVec
	TreeBuildTime     *prometheus.HistogramVec
	BisectionRounds   prometheus.Histogram
}

// NewRecorder creates and registers every collector.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		GatesEvaluated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "sox",
				Name:      "gates_evaluated_total",
				Help:      "Gates evaluated, by opcode",
			},
			[]string{"opcode"},
		),
		ProofsAssembled: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "sox",
				Name:      "proofs_assembled_total",
				Help:      "Dispute proof bundles assembled, by result",
			},
			[]string{"result"},
		),
		StoreBytesWritten: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "sox",
				Name:      "store_bytes_written_total",
				Help:      "Compressed bytes written to the artifact store, by kind",
			},
			[]string{"kind"},
		),
		TreeBuildTime: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "sox",
				Name:      "tree_build_seconds",
				Help:      "Time spent building accumulator trees, by accumulator",
				Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
			},
			[]string{"accumulator"},
		),
		BisectionRounds: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "sox",
				Name:      "bisection_rounds",
				Help:      "Rounds needed to locate a disputed gate",
				Buckets:   prometheus.LinearBuckets(1, 4, 10),
			},
		),
	}
	r.registry.MustRegister(
		r.GatesEvaluated,
		r.ProofsAssembled,
		r.StoreBytesWritten,
		r.TreeBuildTime,
		r.BisectionRounds,
	)
	return r
}

// Registry exposes the recorder's registry.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// ObserveTree records how long building the named accumulator took.
func (r *Recorder) ObserveTree(accumulator string, start time.Time) {
	if r == nil {
		return
	}
	r.TreeBuildTime.WithLabelValues(accumulator).Observe(time.Since(start).Seconds())
}

// CountGate increments the evaluated-gate counter for an opcode.
func (r *Recorder) CountGate(opcode string, n int) {
	if r == nil {
		return
	}
	r.GatesEvaluated.WithLabelValues(opcode).Add(float64(n))
}

// CountProof records one assembly attempt.
func (r *Recorder) CountProof(err error) {
	if r == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.ProofsAssembled.WithLabelValues(result).Inc()
}

// CountWrite records bytes persisted for an artifact kind.
func (r *Recorder) CountWrite(kind string, n int) {
	if r == nil {
		return
	}
	r.StoreBytesWritten.WithLabelValues(kind).Add(float64(n))
}

// ObserveBisection records the rounds of one bisection game.
func (r *Recorder) ObserveBisection(rounds int) {
	if r == nil {
		return
	}
	r.BisectionRounds.Observe(float64(rounds))
}

// WriteTextfile dumps every metric in the text exposition format, for the
// node exporter textfile collector.
func (r *Recorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}
