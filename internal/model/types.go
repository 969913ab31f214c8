package model

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"
)

const (
	LayoutNHWC = "nhwc"
	LayoutNCHW = "nchw"
)

// Metadata describes how to feed an exported classifier. It is read from a
// JSON file stored next to the model.
type Metadata struct {
	InputName     string   `json:"input_name"`
	OutputName    string   `json:"output_name"`
	InputLayout   string   `json:"input_layout"`
	ImageSize     int      `json:"image_size"`
	Classes       []string `json:"classes"`
	PositiveClass string   `json:"positive_class"`
	// FlatOutput marks models emitting shape (N) rather than (N, width).
	FlatOutput bool `json:"flat_output"`
}

func DefaultMetadata() Metadata {
	return Metadata{
		InputName:   "input",
		OutputName:  "output",
		InputLayout: LayoutNHWC,
	}
}

// MetadataPathFor returns the conventional metadata location for a model:
// the model path with its extension replaced by ".json".
func MetadataPathFor(modelPath string) string {
	return strings.TrimSuffix(modelPath, filepath.Ext(modelPath)) + ".json"
}

// LoadMetadata reads the metadata file at path over the defaults. An empty
// path yields the defaults.
func LoadMetadata(path string) (Metadata, error) {
	metadata := DefaultMetadata()
	if path == "" {
		return metadata, nil
	}

	metaFile, err := os.ReadFile(path)
	if err != nil {
		return metadata, &ModelLoadError{Path: path, Err: errors.Wrap(err, "failed to read metadata")}
	}
	if err := json.Unmarshal(metaFile, &metadata); err != nil {
		return metadata, &ModelLoadError{Path: path, Err: errors.Wrap(err, "failed to parse metadata")}
	}
	metadata.InputLayout = strings.ToLower(metadata.InputLayout)
	if err := metadata.Validate(); err != nil {
		return metadata, &ModelLoadError{Path: path, Err: err}
	}
	return metadata, nil
}

func (m Metadata) Validate() error {
	if m.InputName == "" || m.OutputName == "" {
		return errors.New("input_name and output_name are required")
	}
	if m.InputLayout != LayoutNHWC && m.InputLayout != LayoutNCHW {
		return errors.Errorf("unknown input_layout %q", m.InputLayout)
	}
	if m.FlatOutput && len(m.Classes) > 1 {
		return errors.New("flat_output requires a single output column")
	}
	if m.ImageSize < 0 {
		return errors.Errorf("negative image_size %d", m.ImageSize)
	}
	if _, err := m.PositiveIndex(); err != nil {
		return err
	}
	return nil
}

// OutputShape is the shape of the output for a mini-batch of n samples.
func (m Metadata) OutputShape(n int) []int64 {
	if m.FlatOutput {
		return []int64{int64(n)}
	}
	return []int64{int64(n), int64(m.OutputWidth())}
}

// OutputWidth is the number of scores the model emits per sample.
func (m Metadata) OutputWidth() int {
	if len(m.Classes) > 1 {
		return len(m.Classes)
	}
	return 1
}

// PositiveIndex is the output column holding the probability that is
// reported. Without an explicit positive class the last column is used.
func (m Metadata) PositiveIndex() (int, error) {
	if m.OutputWidth() == 1 {
		return 0, nil
	}
	if m.PositiveClass == "" {
		return len(m.Classes) - 1, nil
	}
	for i, c := range m.Classes {
		if c == m.PositiveClass {
			return i, nil
		}
	}
	return 0, errors.Errorf("positive_class %q not in classes %v", m.PositiveClass, m.Classes)
}
