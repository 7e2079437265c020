package imaging

import (
	"image"
	"math"
)

// Threshold sets pixels brighter than t to 255 and the rest to 0.
func Threshold(gray *image.Gray, t uint8) *image.Gray {
	gray = ToGray(gray)
	out := image.NewGray(gray.Rect)
	for i, v := range gray.Pix {
		if v > t {
			out.Pix[i] = 255
		}
	}
	return out
}

// OtsuLevel returns the threshold that maximizes the between-class
// variance of the histogram of gray.
func OtsuLevel(gray *image.Gray) uint8 {
	gray = ToGray(gray)
	var hist [256]float64
	w, h := gray.Rect.Dx(), gray.Rect.Dy()
	for y := 0; y < h; y++ {
		row := gray.Pix[y*gray.Stride : y*gray.Stride+w]
		for _, v := range row {
			hist[v]++
		}
	}
	n := float64(w * h)
	if n == 0 {
		return 0
	}

	var mu float64
	for i := 0; i < 256; i++ {
		mu += float64(i) * hist[i]
	}
	mu /= n

	const eps = 1.1920929e-07
	var mu1, q1, maxSigma float64
	var level int
	for i := 0; i < 256; i++ {
		p := hist[i] / n
		mu1 *= q1
		q1 += p
		q2 := 1 - q1
		if math.Min(q1, q2) < eps || math.Max(q1, q2) > 1-eps {
			continue
		}
		mu1 = (mu1 + float64(i)*p) / q1
		mu2 := (mu - q1*mu1) / q2
		sigma := q1 * q2 * (mu1 - mu2) * (mu1 - mu2)
		if sigma > maxSigma {
			maxSigma = sigma
			level = i
		}
	}
	return uint8(level)
}

// Otsu binarizes gray at its Otsu level.
func Otsu(gray *image.Gray) *image.Gray {
	return Threshold(gray, OtsuLevel(gray))
}

// AdaptiveGaussian binarizes gray against a Gaussian-weighted local mean
// over a blockSize×blockSize window: a pixel becomes 255 when it exceeds
// the local mean minus c. Borders replicate the edge pixels.
func AdaptiveGaussian(gray *image.Gray, blockSize int, c float64) *image.Gray {
	gray = ToGray(gray)
	if blockSize < 3 {
		blockSize = 3
	}
	if blockSize%2 == 0 {
		blockSize++
	}

	mean := convolveSeparable(gray, GaussianKernel(blockSize, 0), borderReplicate)
	idelta := int(math.Ceil(c))

	out := image.NewGray(gray.Rect)
	for i, v := range gray.Pix {
		if int(v)-int(mean.Pix[i]) > -idelta {
			out.Pix[i] = 255
		}
	}
	return out
}
