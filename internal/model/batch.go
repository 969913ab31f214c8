package model

import (
	"context"

	"github.com/pkg/errors"

	"github.com/Brownie44l1/iceberg-predict/internal/preprocess"
)

// Predictor scores a normalized batch, returning one probability per sample
// in input order.
type Predictor interface {
	PredictBatch(ctx context.Context, t *preprocess.Tensor, batchSize int) ([]float32, error)
	Close()
}

// runFunc runs one mini-batch through a model. It receives the flattened
// input in the model's layout together with its shape, and returns the raw
// (n, width) output.
type runFunc func(input []float32, shape []int64) ([]float32, error)

// predictBatches feeds t through run batchSize samples at a time and picks
// the positive-class score of every sample.
func predictBatches(ctx context.Context, t *preprocess.Tensor, batchSize int, metadata Metadata, run runFunc) ([]float32, error) {
	if batchSize <= 0 {
		return nil, errors.Errorf("batch size must be positive, got %d", batchSize)
	}
	positive, err := metadata.PositiveIndex()
	if err != nil {
		return nil, err
	}
	width := metadata.OutputWidth()

	probs := make([]float32, 0, t.N)
	for from := 0; from < t.N; from += batchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		to := from + batchSize
		if to > t.N {
			to = t.N
		}
		chunk := t.Slice(from, to)

		input, shape := chunk.Data, chunk.Shape()
		if metadata.InputLayout == LayoutNCHW {
			input = chunk.NCHW()
			shape = []int64{int64(chunk.N), int64(chunk.Channels), int64(chunk.Height), int64(chunk.Width)}
		}

		out, err := run(input, shape)
		if err != nil {
			return nil, errors.Wrapf(err, "samples %d-%d", from, to-1)
		}
		if len(out) != chunk.N*width {
			return nil, errors.Errorf("model returned %d values for %d samples, want %d", len(out), chunk.N, chunk.N*width)
		}
		for i := 0; i < chunk.N; i++ {
			probs = append(probs, out[i*width+positive])
		}
	}
	return probs, nil
}
