// Package config holds the settings of one prediction run.
package config

import (
	"os"
	"path/filepath"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"
)

const (
	DefaultBatchSize      = 32
	DefaultSubmissionPath = "./submission.csv"
	DefaultPercentile     = 1.0
	DefaultLogLevel       = "debug"
)

// Config represents one run. The JSON keys match the command-line flags so a
// config file and flags can be mixed.
type Config struct {
	ModelPath         string  `json:"model_path"`
	TestPath          string  `json:"test"`
	MetadataPath      string  `json:"metadata_path"`
	SubmissionPath    string  `json:"submission_csv_path"`
	BatchSize         int     `json:"batch_size"`
	Percentile        float64 `json:"percentile"`
	Strict            bool    `json:"strict"`
	SharedLibraryPath string  `json:"onnxruntime_lib"`
	MetricsPath       string  `json:"metrics_path"`
	LogLevel          string  `json:"log_level"`
}

func Default() Config {
	return Config{
		SubmissionPath: DefaultSubmissionPath,
		BatchSize:      DefaultBatchSize,
		Percentile:     DefaultPercentile,
		LogLevel:       DefaultLogLevel,
	}
}

// LoadFile overlays the JSON file at path onto cfg. Keys absent from the file
// keep their current values.
func LoadFile(path string, cfg *Config) error {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return errors.Errorf("config file must have .json extension, got %q", ext)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return errors.Wrap(err, "failed to read config file")
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return errors.Wrap(err, "failed to parse config file")
	}
	return nil
}

func (c Config) Validate() error {
	if c.ModelPath == "" {
		return errors.New("MODEL_PATH is required")
	}
	if c.TestPath == "" {
		return errors.New("TEST is required")
	}
	if c.SubmissionPath == "" {
		return errors.New("submission_csv_path must not be empty")
	}
	if c.BatchSize <= 0 {
		return errors.Errorf("batch_size must be positive, got %d", c.BatchSize)
	}
	if c.Percentile < 0 || c.Percentile >= 50 {
		return errors.Errorf("percentile must lie in [0, 50), got %g", c.Percentile)
	}
	return nil
}
