package model

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrModelLoad matches every *ModelLoadError via errors.Is.
var ErrModelLoad = errors.New("model load failed")

// ModelLoadError reports a model artifact or its metadata that could not be
// opened.
type ModelLoadError struct {
	Path string
	Err  error
}

func (e *ModelLoadError) Error() string {
	return fmt.Sprintf("load model %s: %v", e.Path, e.Err)
}

func (e *ModelLoadError) Unwrap() error {
	return e.Err
}

func (e *ModelLoadError) Is(target error) bool {
	return target == ErrModelLoad
}
