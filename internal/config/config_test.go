package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	c := Default()
	c.ModelPath = "model.onnx"
	c.TestPath = "test.json"
	return c
}

func TestDefault(t *testing.T) {
	c := Default()
	assert.Equal(t, 32, c.BatchSize)
	assert.Equal(t, "./submission.csv", c.SubmissionPath)
	assert.Equal(t, 1.0, c.Percentile)
	assert.False(t, c.Strict)
}

func TestValidate(t *testing.T) {
	require.NoError(t, validConfig().Validate())

	tests := map[string]func(*Config){
		"missing model":      func(c *Config) { c.ModelPath = "" },
		"missing test":       func(c *Config) { c.TestPath = "" },
		"empty output":       func(c *Config) { c.SubmissionPath = "" },
		"zero batch":         func(c *Config) { c.BatchSize = 0 },
		"negative batch":     func(c *Config) { c.BatchSize = -4 },
		"negative percentil": func(c *Config) { c.Percentile = -1 },
		"percentile 50":      func(c *Config) { c.Percentile = 50 },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			c := validConfig()
			mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "run.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"batch_size": 8, "strict": true, "model_path": "m.onnx"}`), 0o644))

	c := Default()
	require.NoError(t, LoadFile(path, &c))
	assert.Equal(t, 8, c.BatchSize)
	assert.True(t, c.Strict)
	assert.Equal(t, "m.onnx", c.ModelPath)
	assert.Equal(t, DefaultSubmissionPath, c.SubmissionPath)

	assert.Error(t, LoadFile(filepath.Join(dir, "run.yaml"), &c))
	assert.Error(t, LoadFile(filepath.Join(dir, "missing.json"), &c))

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"batch_size": "many"}`), 0o644))
	assert.Error(t, LoadFile(bad, &c))
}
