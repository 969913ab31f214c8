package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder(t *testing.T) {
	t.Parallel()

	r := NewRecorder()
	r.ObservePredictions([]float32{0.05, 0.5, 0.95})
	r.Degenerate.Add(2)
	r.ObserveStage("load", 20*time.Millisecond)

	assert.Equal(t, 3.0, testutil.ToFloat64(r.Samples))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.Degenerate))
	assert.Equal(t, 1, testutil.CollectAndCount(r.Predictions))
	assert.Equal(t, 1, testutil.CollectAndCount(r.Stages, "iceberg_stage_duration_seconds"))

	n, err := testutil.GatherAndCount(r.Gatherer())
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestWriteTextfile(t *testing.T) {
	t.Parallel()

	r := NewRecorder()
	r.ObservePredictions([]float32{0.25})

	path := filepath.Join(t.TempDir(), "iceberg.prom")
	require.NoError(t, r.WriteTextfile(path))

	body, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(body), "iceberg_samples_total 1")
	assert.Contains(t, string(body), "# TYPE iceberg_prediction_probability histogram")
}
