package preprocess

// Tensor is a dense (N, Height, Width, Channels) float32 array in row-major
// order.
type Tensor struct {
	Data     []float32
	N        int
	Height   int
	Width    int
	Channels int
}

func NewTensor(n, height, width, channels int) *Tensor {
	return &Tensor{
		Data:     make([]float32, n*height*width*channels),
		N:        n,
		Height:   height,
		Width:    width,
		Channels: channels,
	}
}

// SampleSize is the number of values in one sample.
func (t *Tensor) SampleSize() int {
	return t.Height * t.Width * t.Channels
}

// Sample returns the i-th sample. The slice aliases t.Data.
func (t *Tensor) Sample(i int) []float32 {
	n := t.SampleSize()
	return t.Data[i*n : (i+1)*n]
}

// Slice returns samples [from, to) as a tensor sharing t's storage.
func (t *Tensor) Slice(from, to int) *Tensor {
	n := t.SampleSize()
	return &Tensor{
		Data:     t.Data[from*n : to*n],
		N:        to - from,
		Height:   t.Height,
		Width:    t.Width,
		Channels: t.Channels,
	}
}

// Shape returns the NHWC shape.
func (t *Tensor) Shape() []int64 {
	return []int64{int64(t.N), int64(t.Height), int64(t.Width), int64(t.Channels)}
}

// NCHW returns a copy of the data with channels moved ahead of the spatial
// axes.
func (t *Tensor) NCHW() []float32 {
	out := make([]float32, len(t.Data))
	plane := t.Height * t.Width
	for n := 0; n < t.N; n++ {
		src := t.Sample(n)
		dst := out[n*t.SampleSize() : (n+1)*t.SampleSize()]
		for px := 0; px < plane; px++ {
			for c := 0; c < t.Channels; c++ {
				dst[c*plane+px] = src[px*t.Channels+c]
			}
		}
	}
	return out
}
