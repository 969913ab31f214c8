// Package preprocess turns raw two-band radar grids into the three-channel
// image tensor the classifier expects.
package preprocess

import (
	"fmt"
	"math"
	"sort"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"

	"github.com/Brownie44l1/iceberg-predict/internal/dataset"
)

// DefaultPercentile is the clipping percentile used when none is given.
const DefaultPercentile = 1.0

// Channels is the channel count of a normalized image.
const Channels = 3

// ErrDegenerateRange matches every *DegenerateRangeError via errors.Is.
var ErrDegenerateRange = errors.New("degenerate percentile range")

// DegenerateRangeError is returned when the clipping bounds of a sample
// coincide, which leaves nothing to rescale against.
type DegenerateRangeError struct {
	Sample int
	Value  float64
}

func (e *DegenerateRangeError) Error() string {
	return fmt.Sprintf("sample %d: percentile bounds both equal %g", e.Sample, e.Value)
}

func (e *DegenerateRangeError) Is(target error) bool {
	return target == ErrDegenerateRange
}

// Percentile returns the p-th percentile of values, interpolating linearly
// between the two closest ranks. values is left untouched.
func Percentile(values []float64, p float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	return percentileSorted(sorted, p)
}

func percentileSorted(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return math.NaN()
	}
	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	return sorted[lo] + (sorted[hi]-sorted[lo])*(rank-float64(lo))
}

// Bounds returns the (percentile, 100-percentile) pair computed jointly over
// every value of the grid.
func Bounds(grid []float64, percentile float64) (vmin, vmax float64) {
	sorted := make([]float64, len(grid))
	copy(sorted, grid)
	sort.Float64s(sorted)
	return percentileSorted(sorted, percentile), percentileSorted(sorted, 100-percentile)
}

// Normalize rescales one (dim, dim, 2) grid so that its percentile bounds map
// to 0 and 1, clips to that range and appends an all-zero third channel.
// The result is a (dim, dim, 3) row-major slice.
func Normalize(grid []float64, dim int, percentile float64) ([]float32, error) {
	if len(grid) != 2*dim*dim {
		return nil, errors.Errorf("grid has %d values, want %d", len(grid), 2*dim*dim)
	}

	vmin, vmax := Bounds(grid, percentile)
	if vmax == vmin {
		return nil, &DegenerateRangeError{Sample: -1, Value: vmin}
	}

	scaled := make([]float64, len(grid))
	copy(scaled, grid)
	floats.AddConst(-vmin, scaled)
	floats.Scale(1/(vmax-vmin), scaled)

	out := make([]float32, dim*dim*Channels)
	for px := 0; px < dim*dim; px++ {
		out[px*Channels] = float32(clip01(scaled[2*px]))
		out[px*Channels+1] = float32(clip01(scaled[2*px+1]))
	}
	return out, nil
}

func clip01(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < 0 {
		return 0
	}
	return v
}

// Options control NormalizeBatch.
type Options struct {
	// Percentile is the lower clipping percentile; the upper one is
	// 100-Percentile. Must lie in [0, 50).
	Percentile float64
	// Strict fails on a sample whose percentile bounds coincide instead of
	// zero-filling it.
	Strict bool
	// Size resamples every image to Size x Size when it is positive and
	// differs from the grid side.
	Size int
}

// Result is a normalized batch.
type Result struct {
	Tensor *Tensor
	// Degenerate lists the samples that were zero-filled, in input order.
	Degenerate []int
}

// NormalizeBatch normalizes every grid of b independently and stacks the
// results in input order.
func NormalizeBatch(b *dataset.Batch, opts Options) (*Result, error) {
	if opts.Percentile < 0 || opts.Percentile >= 50 {
		return nil, errors.Errorf("percentile %g outside [0, 50)", opts.Percentile)
	}

	side := b.Dim
	if opts.Size > 0 {
		side = opts.Size
	}
	t := NewTensor(b.Len(), side, side, Channels)
	res := &Result{Tensor: t}

	for i, grid := range b.Grids {
		img, err := Normalize(grid, b.Dim, opts.Percentile)
		if err != nil {
			var dErr *DegenerateRangeError
			if !errors.As(err, &dErr) {
				return nil, errors.Wrapf(err, "sample %d", i)
			}
			dErr.Sample = i
			if opts.Strict {
				return nil, dErr
			}
			res.Degenerate = append(res.Degenerate, i)
			continue
		}
		if side != b.Dim {
			img = Resample(img, b.Dim, side)
		}
		copy(t.Sample(i), img)
	}
	return res, nil
}
