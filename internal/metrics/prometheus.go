// Package metrics records run statistics on a private Prometheus registry.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "iceberg"

// Recorder holds the collectors of one run.
type Recorder struct {
	registry    *prometheus.Registry
	Samples     prometheus.Counter
	Degenerate  prometheus.Counter
	Stages      *prometheus.HistogramVec
	Predictions prometheus.Histogram
}

func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		Samples: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "samples_total",
			Help:      "Samples scored.",
		}),
		Degenerate: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "degenerate_samples_total",
			Help:      "Samples whose percentile bounds coincided and were zero-filled.",
		}),
		Stages: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Wall time spent per pipeline stage.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}, []string{"stage"}),
		Predictions: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "prediction_probability",
			Help:      "Distribution of predicted iceberg probabilities.",
			Buckets:   prometheus.LinearBuckets(0.1, 0.1, 9),
		}),
	}
	r.registry.MustRegister(r.Samples, r.Degenerate, r.Stages, r.Predictions)
	return r
}

// ObserveStage records how long a stage took.
func (r *Recorder) ObserveStage(stage string, d time.Duration) {
	r.Stages.WithLabelValues(stage).Observe(d.Seconds())
}

// ObservePredictions counts the scored samples and records their
// probabilities.
func (r *Recorder) ObservePredictions(probs []float32) {
	r.Samples.Add(float64(len(probs)))
	for _, p := range probs {
		r.Predictions.Observe(float64(p))
	}
}

// Gatherer exposes the registry.
func (r *Recorder) Gatherer() prometheus.Gatherer {
	return r.registry
}

// WriteTextfile writes every metric to path in the text exposition format
// understood by the node_exporter textfile collector.
func (r *Recorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}
