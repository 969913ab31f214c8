package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Brownie44l1/iceberg-predict/internal/config"
	"github.com/Brownie44l1/iceberg-predict/internal/logging"
	"github.com/Brownie44l1/iceberg-predict/internal/pipeline"
)

const usage = `usage: predict [flags] MODEL_PATH TEST

Score every sample of TEST with the classifier at MODEL_PATH and write an
id,is_iceberg CSV.

positional arguments:
  MODEL_PATH  Path to previously saved model
  TEST        Path to the json file where test data is saved

flags:
`

func newFlagSet(cfg *config.Config, configPath *string, out io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet("predict", flag.ContinueOnError)
	fs.SetOutput(out)
	fs.Usage = func() {
		fmt.Fprint(out, usage)
		fs.PrintDefaults()
	}

	fs.IntVar(&cfg.BatchSize, "batch_size", cfg.BatchSize, "Number of samples in a mini-batch")
	fs.StringVar(&cfg.SubmissionPath, "submission_csv_path", cfg.SubmissionPath, "Output path where submission of prediction to be saved")
	fs.StringVar(&cfg.MetadataPath, "metadata_path", cfg.MetadataPath, "Model metadata JSON (default: MODEL_PATH with a .json extension, if present)")
	fs.Float64Var(&cfg.Percentile, "percentile", cfg.Percentile, "Clipping percentile used to normalize each sample")
	fs.BoolVar(&cfg.Strict, "strict", cfg.Strict, "Fail on samples with coinciding percentile bounds instead of zero-filling them")
	fs.StringVar(&cfg.SharedLibraryPath, "onnxruntime_lib", cfg.SharedLibraryPath, "Path to the onnxruntime shared library")
	fs.StringVar(&cfg.MetricsPath, "metrics_path", cfg.MetricsPath, "Write run metrics to this Prometheus textfile")
	fs.StringVar(&cfg.LogLevel, "log_level", cfg.LogLevel, "Log level: debug, info, warn or error")
	fs.StringVar(configPath, "config", "", "JSON file with default values for any flag")
	return fs
}

// parseArgs builds the run configuration. Flags may appear before, between or
// after the positional arguments. Values come from the defaults, then the
// --config file, then explicitly set flags.
func parseArgs(args []string, out io.Writer) (config.Config, error) {
	cfg := config.Default()
	var configPath string
	fs := newFlagSet(&cfg, &configPath, out)

	var positional []string
	rest := args
	for {
		if err := fs.Parse(rest); err != nil {
			return cfg, err
		}
		rest = fs.Args()
		if len(rest) == 0 {
			break
		}
		positional = append(positional, rest[0])
		rest = rest[1:]
	}
	if len(positional) != 2 {
		fs.Usage()
		return cfg, errors.Errorf("expected MODEL_PATH and TEST, got %d positional arguments", len(positional))
	}

	if configPath != "" {
		merged := config.Default()
		if err := config.LoadFile(configPath, &merged); err != nil {
			return cfg, err
		}
		var ignored string
		overlay := newFlagSet(&merged, &ignored, out)
		var setErr error
		fs.Visit(func(f *flag.Flag) {
			if err := overlay.Set(f.Name, f.Value.String()); err != nil && setErr == nil {
				setErr = err
			}
		})
		if setErr != nil {
			return cfg, setErr
		}
		cfg = merged
	}

	cfg.ModelPath = positional[0]
	cfg.TestPath = positional[1]
	return cfg, cfg.Validate()
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cfg, err := parseArgs(args, os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "predict: %v\n", err)
		return 2
	}

	logger, err := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "predict: %v\n", err)
		return 2
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if _, err := pipeline.Run(ctx, cfg, pipeline.Deps{Logger: logger}); err != nil {
		logger.Error("prediction failed", zap.Error(err))
		return 1
	}
	return 0
}
