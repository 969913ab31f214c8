package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Brownie44l1/iceberg-predict/internal/config"
	"github.com/Brownie44l1/iceberg-predict/internal/dataset"
	"github.com/Brownie44l1/iceberg-predict/internal/logging"
	"github.com/Brownie44l1/iceberg-predict/internal/model"
	"github.com/Brownie44l1/iceberg-predict/internal/preprocess"
)

// stubPredictor scores every sample with the mean of its values, which is in
// [0, 1] for normalized input.
type stubPredictor struct {
	err     error
	shapes  [][]int64
	batches []int
	closed  bool
}

func (s *stubPredictor) PredictBatch(ctx context.Context, t *preprocess.Tensor, batchSize int) ([]float32, error) {
	s.shapes = append(s.shapes, t.Shape())
	s.batches = append(s.batches, batchSize)
	if s.err != nil {
		return nil, s.err
	}
	probs := make([]float32, t.N)
	for i := range probs {
		var sum float32
		for _, v := range t.Sample(i) {
			sum += v
		}
		probs[i] = sum / float32(t.SampleSize())
	}
	return probs, nil
}

func (s *stubPredictor) Close() {
	s.closed = true
}

type opener struct {
	predictor *stubPredictor
	err       error
	calls     int
	metadata  model.Metadata
}

func (o *opener) open(modelPath string, metadata model.Metadata, opts model.Options) (model.Predictor, error) {
	o.calls++
	o.metadata = metadata
	if o.err != nil {
		return nil, o.err
	}
	return o.predictor, nil
}

const twoSamples = `[
  {"id": "a", "band_1": [-27.8, -20.1, -31.5, -25.0], "band_2": [-30.2, -22.9, -33.0, -28.4], "inc_angle": 43.9239},
  {"id": "b", "band_1": [-12.2, -14.8, -9.1, -13.0], "band_2": [-21.0, -19.5, -23.3, -20.4], "inc_angle": "na"}
]`

func setup(t *testing.T, doc string) (config.Config, string) {
	t.Helper()

	dir := t.TempDir()
	testPath := filepath.Join(dir, "test.json")
	require.NoError(t, os.WriteFile(testPath, []byte(doc), 0o644))

	cfg := config.Default()
	cfg.ModelPath = filepath.Join(dir, "model.onnx")
	cfg.TestPath = testPath
	cfg.SubmissionPath = filepath.Join(dir, "submission.csv")
	return cfg, dir
}

func readRows(t *testing.T, path string) [][]string {
	t.Helper()

	body, err := os.ReadFile(path)
	require.NoError(t, err)
	var rows [][]string
	for _, line := range strings.Split(strings.TrimSpace(string(body)), "\n") {
		rows = append(rows, strings.Split(line, ","))
	}
	return rows
}

func TestRunEndToEnd(t *testing.T) {
	t.Parallel()

	cfg, _ := setup(t, twoSamples)
	o := &opener{predictor: &stubPredictor{}}

	core, logs := observer.New(zapcore.DebugLevel)
	report, err := Run(context.Background(), cfg, Deps{Logger: zap.New(core), OpenModel: o.open})
	require.NoError(t, err)

	assert.Equal(t, 2, report.Samples)
	assert.Equal(t, 2, report.Dim)
	assert.Empty(t, report.Degenerate)
	assert.NotEmpty(t, report.RunID)
	assert.Contains(t, report.Durations, StagePredict)

	assert.True(t, o.predictor.closed)
	assert.Equal(t, [][]int64{{2, 2, 2, 3}}, o.predictor.shapes)
	assert.Equal(t, []int{32}, o.predictor.batches)

	rows := readRows(t, cfg.SubmissionPath)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"id", "is_iceberg"}, rows[0])
	assert.Equal(t, "a", rows[1][0])
	assert.Equal(t, "b", rows[2][0])

	var messages []string
	for _, entry := range logs.All() {
		if entry.Level == zapcore.InfoLevel {
			messages = append(messages, entry.Message)
		}
	}
	assert.Equal(t, []string{
		"Loading data from " + cfg.TestPath,
		"Loading model from " + cfg.ModelPath,
		"Start predicting...",
		"Saving prediction to " + cfg.SubmissionPath,
		"Done :)",
	}, messages)
}

func TestRunBatchSizeDoesNotChangeOutput(t *testing.T) {
	t.Parallel()

	var outputs []string
	for _, size := range []int{1, 32} {
		cfg, _ := setup(t, twoSamples)
		cfg.BatchSize = size
		o := &opener{predictor: &stubPredictor{}}

		_, err := Run(context.Background(), cfg, Deps{OpenModel: o.open})
		require.NoError(t, err)
		assert.Equal(t, []int{size}, o.predictor.batches)

		body, err := os.ReadFile(cfg.SubmissionPath)
		require.NoError(t, err)
		outputs = append(outputs, string(body))
	}
	assert.Equal(t, outputs[0], outputs[1])
}

func TestRunMalformedInputSkipsModel(t *testing.T) {
	t.Parallel()

	cfg, _ := setup(t, `[{"id": "a", "band_1": [1, 2, 3, 4, 5], "band_2": [1, 2, 3, 4, 5], "inc_angle": 40}]`)
	o := &opener{predictor: &stubPredictor{}}

	_, err := Run(context.Background(), cfg, Deps{OpenModel: o.open})
	require.Error(t, err)
	assert.True(t, errors.Is(err, dataset.ErrMalformedInput))

	var opErr *logging.OperationError
	require.True(t, errors.As(err, &opErr))
	assert.Equal(t, StageLoad, opErr.Operation)

	assert.Zero(t, o.calls)
	assert.NoFileExists(t, cfg.SubmissionPath)
}

func TestRunFailuresLeaveNoOutput(t *testing.T) {
	t.Parallel()

	t.Run("model load", func(t *testing.T) {
		t.Parallel()

		cfg, _ := setup(t, twoSamples)
		loadErr := &model.ModelLoadError{Path: cfg.ModelPath, Err: errors.New("corrupt")}
		o := &opener{err: loadErr}

		_, err := Run(context.Background(), cfg, Deps{OpenModel: o.open})
		assert.True(t, errors.Is(err, model.ErrModelLoad))
		assert.NoFileExists(t, cfg.SubmissionPath)
	})

	t.Run("inference", func(t *testing.T) {
		t.Parallel()

		cfg, _ := setup(t, twoSamples)
		boom := errors.New("boom")
		o := &opener{predictor: &stubPredictor{err: boom}}

		_, err := Run(context.Background(), cfg, Deps{OpenModel: o.open})
		assert.True(t, errors.Is(err, boom))
		assert.True(t, o.predictor.closed)
		assert.NoFileExists(t, cfg.SubmissionPath)
	})

	t.Run("invalid config", func(t *testing.T) {
		t.Parallel()

		cfg, _ := setup(t, twoSamples)
		cfg.BatchSize = 0
		o := &opener{predictor: &stubPredictor{}}

		_, err := Run(context.Background(), cfg, Deps{OpenModel: o.open})
		assert.Error(t, err)
		assert.Zero(t, o.calls)
	})
}

const withFlatSample = `[
  {"id": "a", "band_1": [1, 2, 3, 4], "band_2": [5, 6, 7, 8], "inc_angle": 40},
  {"id": "flat", "band_1": [3, 3, 3, 3], "band_2": [3, 3, 3, 3], "inc_angle": 40}
]`

func TestRunDegenerateSamples(t *testing.T) {
	t.Parallel()

	t.Run("zero filled with warning", func(t *testing.T) {
		t.Parallel()

		cfg, _ := setup(t, withFlatSample)
		o := &opener{predictor: &stubPredictor{}}
		core, logs := observer.New(zapcore.WarnLevel)

		report, err := Run(context.Background(), cfg, Deps{Logger: zap.New(core), OpenModel: o.open})
		require.NoError(t, err)
		assert.Equal(t, []int{1}, report.Degenerate)
		assert.Equal(t, 1, logs.FilterField(zap.String("id", "flat")).Len())

		rows := readRows(t, cfg.SubmissionPath)
		assert.Equal(t, []string{"flat", "0"}, rows[2])
	})

	t.Run("strict fails", func(t *testing.T) {
		t.Parallel()

		cfg, _ := setup(t, withFlatSample)
		cfg.Strict = true
		o := &opener{predictor: &stubPredictor{}}

		_, err := Run(context.Background(), cfg, Deps{OpenModel: o.open})
		assert.True(t, errors.Is(err, preprocess.ErrDegenerateRange))
		assert.Zero(t, o.calls)
	})
}

func TestRunMetadataSidecar(t *testing.T) {
	t.Parallel()

	cfg, dir := setup(t, twoSamples)
	sidecar := filepath.Join(dir, "model.json")
	require.NoError(t, os.WriteFile(sidecar, []byte(`{"input_name": "conv2d_1_input", "image_size": 4}`), 0o644))
	cfg.MetricsPath = filepath.Join(dir, "iceberg.prom")
	o := &opener{predictor: &stubPredictor{}}

	_, err := Run(context.Background(), cfg, Deps{OpenModel: o.open})
	require.NoError(t, err)

	assert.Equal(t, "conv2d_1_input", o.metadata.InputName)
	assert.Equal(t, [][]int64{{2, 4, 4, 3}}, o.predictor.shapes)
	assert.FileExists(t, cfg.MetricsPath)
}
