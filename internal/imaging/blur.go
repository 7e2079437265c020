package imaging

import (
	"image"
	"math"
)

type borderMode int

const (
	borderReplicate borderMode = iota
	borderReflect101
)

// Fixed small kernels used when sigma is not given.
var smallGaussianKernels = map[int][]float64{
	1: {1},
	3: {0.25, 0.5, 0.25},
	5: {0.0625, 0.25, 0.375, 0.25, 0.0625},
	7: {0.03125, 0.109375, 0.21875, 0.28125, 0.21875, 0.109375, 0.03125},
}

// GaussianKernel returns a normalized 1-D Gaussian kernel of odd size.
// A non-positive sigma is derived from the size.
func GaussianKernel(size int, sigma float64) []float64 {
	if size < 1 {
		size = 1
	}
	if size%2 == 0 {
		size++
	}
	if sigma <= 0 {
		if k, ok := smallGaussianKernels[size]; ok {
			return append([]float64(nil), k...)
		}
		sigma = 0.3*((float64(size)-1)*0.5-1) + 0.8
	}

	kernel := make([]float64, size)
	half := size / 2
	var sum float64
	for i := range kernel {
		x := float64(i - half)
		kernel[i] = math.Exp(-(x * x) / (2 * sigma * sigma))
		sum += kernel[i]
	}
	for i := range kernel {
		kernel[i] /= sum
	}
	return kernel
}

// GaussianBlur smooths gray with a size×size Gaussian kernel.
func GaussianBlur(gray *image.Gray, size int, sigma float64) *image.Gray {
	return convolveSeparable(ToGray(gray), GaussianKernel(size, sigma), borderReflect101)
}

func borderIndex(i, n int, mode borderMode) int {
	if n == 1 {
		return 0
	}
	switch mode {
	case borderReflect101:
		for i < 0 || i >= n {
			if i < 0 {
				i = -i
			}
			if i >= n {
				i = 2*n - 2 - i
			}
		}
		return i
	default:
		return clampInt(i, 0, n-1)
	}
}

func convolveSeparable(gray *image.Gray, kernel []float64, mode borderMode) *image.Gray {
	w, h := gray.Rect.Dx(), gray.Rect.Dy()
	out := image.NewGray(image.Rect(0, 0, w, h))
	if w == 0 || h == 0 {
		return out
	}
	half := len(kernel) / 2
	tmp := make([]float64, w*h)

	parallelRows(h, func(y0, y1 int) {
		for y := y0; y < y1; y++ {
			row := gray.Pix[y*gray.Stride:]
			for x := 0; x < w; x++ {
				var acc float64
				for k, kv := range kernel {
					acc += kv * float64(row[borderIndex(x+k-half, w, mode)])
				}
				tmp[y*w+x] = acc
			}
		}
	})

	parallelRows(h, func(y0, y1 int) {
		for y := y0; y < y1; y++ {
			for x := 0; x < w; x++ {
				var acc float64
				for k, kv := range kernel {
					acc += kv * tmp[borderIndex(y+k-half, h, mode)*w+x]
				}
				out.Pix[y*out.Stride+x] = uint8(clampInt(int(math.Round(acc)), 0, 255))
			}
		}
	})
	return out
}
