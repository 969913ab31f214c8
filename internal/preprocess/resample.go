package preprocess

import (
	"image"
	"image/color"

	"github.com/nfnt/resize"
)

// Resample scales a normalized (dim, dim, 3) image to (size, size, 3). Each
// band channel goes through a 16-bit grayscale image and Lanczos3; the zero
// channel stays zero.
func Resample(img []float32, dim, size int) []float32 {
	out := make([]float32, size*size*Channels)
	for c := 0; c < Channels-1; c++ {
		gray := image.NewGray16(image.Rect(0, 0, dim, dim))
		for y := 0; y < dim; y++ {
			for x := 0; x < dim; x++ {
				v := img[(y*dim+x)*Channels+c]
				gray.SetGray16(x, y, color.Gray16{Y: uint16(v*65535 + 0.5)})
			}
		}

		resized := resize.Resize(uint(size), uint(size), gray, resize.Lanczos3)

		bounds := resized.Bounds()
		for y := 0; y < size; y++ {
			for x := 0; x < size; x++ {
				g := color.Gray16Model.Convert(resized.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.Gray16)
				out[(y*size+x)*Channels+c] = float32(g.Y) / 65535.0
			}
		}
	}
	return out
}
