// Package pipeline runs one prediction job: load the samples, normalize them,
// score them with the classifier and save the submission.
package pipeline

import (
	"context"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Brownie44l1/iceberg-predict/internal/config"
	"github.com/Brownie44l1/iceberg-predict/internal/dataset"
	"github.com/Brownie44l1/iceberg-predict/internal/logging"
	"github.com/Brownie44l1/iceberg-predict/internal/metrics"
	"github.com/Brownie44l1/iceberg-predict/internal/model"
	"github.com/Brownie44l1/iceberg-predict/internal/preprocess"
	"github.com/Brownie44l1/iceberg-predict/internal/submission"
)

// Stage names used in logs, errors and metrics.
const (
	StageMetadata  = "metadata"
	StageLoad      = "load"
	StageNormalize = "normalize"
	StageModel     = "model"
	StagePredict   = "predict"
	StageSave      = "save"
)

// OpenFunc opens the classifier for a run.
type OpenFunc func(modelPath string, metadata model.Metadata, opts model.Options) (model.Predictor, error)

// Deps are the collaborators of a run. Zero fields get working defaults.
type Deps struct {
	Logger    *zap.Logger
	Metrics   *metrics.Recorder
	OpenModel OpenFunc
}

// Report summarizes a finished run.
type Report struct {
	RunID      string
	Samples    int
	Dim        int
	Degenerate []int
	Durations  map[string]time.Duration
}

// Run executes one prediction job described by cfg.
func Run(ctx context.Context, cfg config.Config, deps Deps) (*Report, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.NewRecorder()
	}
	if deps.OpenModel == nil {
		deps.OpenModel = model.Open
	}

	report := &Report{
		RunID:     uuid.NewString(),
		Durations: make(map[string]time.Duration),
	}
	logger := logging.WithRun(deps.Logger, report.RunID)
	stageErr := func(stage string, err error) error {
		return logging.NewOperationError(stage, report.RunID, err)
	}
	timed := func(stage string, start time.Time) {
		d := time.Since(start)
		report.Durations[stage] = d
		deps.Metrics.ObserveStage(stage, d)
	}

	start := time.Now()
	metadata, err := model.LoadMetadata(metadataPath(cfg))
	if err != nil {
		return nil, stageErr(StageMetadata, err)
	}
	timed(StageMetadata, start)

	logger.Info("Loading data from " + cfg.TestPath)
	start = time.Now()
	batch, err := dataset.Load(cfg.TestPath)
	if err != nil {
		return nil, stageErr(StageLoad, err)
	}
	timed(StageLoad, start)
	report.Samples = batch.Len()
	report.Dim = batch.Dim
	logger.Debug("data loaded", zap.Int("samples", batch.Len()), zap.Int("dim", batch.Dim))

	start = time.Now()
	normalized, err := preprocess.NormalizeBatch(batch, preprocess.Options{
		Percentile: cfg.Percentile,
		Strict:     cfg.Strict,
		Size:       metadata.ImageSize,
	})
	if err != nil {
		return nil, stageErr(StageNormalize, err)
	}
	timed(StageNormalize, start)
	report.Degenerate = normalized.Degenerate
	for _, i := range normalized.Degenerate {
		logger.Warn("NumericDegeneracyWarning: percentile bounds coincide, sample zero-filled",
			zap.Int("sample", i), zap.String("id", string(batch.IDs[i])))
	}
	deps.Metrics.Degenerate.Add(float64(len(normalized.Degenerate)))

	logger.Info("Loading model from " + cfg.ModelPath)
	start = time.Now()
	predictor, err := deps.OpenModel(cfg.ModelPath, metadata, model.Options{SharedLibraryPath: cfg.SharedLibraryPath})
	if err != nil {
		return nil, stageErr(StageModel, err)
	}
	defer predictor.Close()
	timed(StageModel, start)

	logger.Info("Start predicting...", zap.Int("batch_size", cfg.BatchSize))
	start = time.Now()
	probs, err := predictor.PredictBatch(ctx, normalized.Tensor, cfg.BatchSize)
	if err != nil {
		return nil, stageErr(StagePredict, err)
	}
	timed(StagePredict, start)
	deps.Metrics.ObservePredictions(probs)

	logger.Info("Saving prediction to " + cfg.SubmissionPath)
	start = time.Now()
	if err := submission.Write(cfg.SubmissionPath, batch.IDs, probs); err != nil {
		return nil, stageErr(StageSave, err)
	}
	timed(StageSave, start)

	if cfg.MetricsPath != "" {
		if err := deps.Metrics.WriteTextfile(cfg.MetricsPath); err != nil {
			logger.Warn("failed to write metrics", zap.String("path", cfg.MetricsPath), zap.Error(err))
		}
	}

	logger.Info("Done :)")
	return report, nil
}

// metadataPath resolves the metadata file: the configured path, else the
// sidecar next to the model when one exists, else none.
func metadataPath(cfg config.Config) string {
	if cfg.MetadataPath != "" {
		return cfg.MetadataPath
	}
	sidecar := model.MetadataPathFor(cfg.ModelPath)
	if _, err := os.Stat(sidecar); err == nil {
		return sidecar
	}
	return ""
}
