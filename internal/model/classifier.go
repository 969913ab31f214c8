// Package model runs exported image classifiers through ONNX Runtime.
package model

import (
	"context"
	"fmt"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/Brownie44l1/iceberg-predict/internal/preprocess"
)

// Options configure the runtime environment.
type Options struct {
	// SharedLibraryPath points at the onnxruntime shared library. Empty uses
	// the platform default lookup.
	SharedLibraryPath string
}

// Classifier wraps an ONNX Runtime session whose batch dimension is dynamic.
type Classifier struct {
	session  *ort.DynamicAdvancedSession
	Metadata Metadata
}

var _ Predictor = (*Classifier)(nil)

// NewClassifier opens the model at modelPath. The returned Classifier owns the
// runtime environment until Close.
func NewClassifier(modelPath string, metadata Metadata, opts Options) (*Classifier, error) {
	if err := metadata.Validate(); err != nil {
		return nil, &ModelLoadError{Path: modelPath, Err: err}
	}

	if opts.SharedLibraryPath != "" {
		ort.SetSharedLibraryPath(opts.SharedLibraryPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return nil, &ModelLoadError{Path: modelPath, Err: fmt.Errorf("failed to initialize ONNX environment: %w", err)}
	}

	session, err := ort.NewDynamicAdvancedSession(modelPath,
		[]string{metadata.InputName}, []string{metadata.OutputName}, nil)
	if err != nil {
		ort.DestroyEnvironment()
		return nil, &ModelLoadError{Path: modelPath, Err: fmt.Errorf("failed to create ONNX session: %w", err)}
	}

	return &Classifier{
		session:  session,
		Metadata: metadata,
	}, nil
}

// Open is NewClassifier behind the Predictor interface.
func Open(modelPath string, metadata Metadata, opts Options) (Predictor, error) {
	c, err := NewClassifier(modelPath, metadata, opts)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Classifier) PredictBatch(ctx context.Context, t *preprocess.Tensor, batchSize int) ([]float32, error) {
	return predictBatches(ctx, t, batchSize, c.Metadata, c.run)
}

func (c *Classifier) run(input []float32, shape []int64) ([]float32, error) {
	inputTensor, err := ort.NewTensor(ort.NewShape(shape...), input)
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	defer inputTensor.Destroy()

	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(c.Metadata.OutputShape(int(shape[0]))...))
	if err != nil {
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}
	defer outputTensor.Destroy()

	if err := c.session.Run([]ort.ArbitraryTensor{inputTensor}, []ort.ArbitraryTensor{outputTensor}); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	out := make([]float32, len(outputTensor.GetData()))
	copy(out, outputTensor.GetData())
	return out, nil
}

func (c *Classifier) Close() {
	if c.session != nil {
		c.session.Destroy()
	}
	ort.DestroyEnvironment()
}
