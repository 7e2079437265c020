package imaging

import "image"

// Processor is the set of grayscale operations the readers run before OCR
// and barcode decoding. Implementations must agree on OpenCV semantics:
// binary outputs are 0/255 and contour areas follow cv::contourArea.
type Processor interface {
	Threshold(gray *image.Gray, t uint8) *image.Gray
	Otsu(gray *image.Gray) *image.Gray
	AdaptiveGaussian(gray *image.Gray, blockSize int, c float64) *image.Gray
	GaussianBlur(gray *image.Gray, size int, sigma float64) *image.Gray
	UpscaleCubic(gray *image.Gray, factor int) *image.Gray
	ExternalContourAreas(mask *image.Gray) []float64
}

// Native runs every operation in Go without cgo.
type Native struct{}

func (Native) Threshold(gray *image.Gray, t uint8) *image.Gray { return Threshold(gray, t) }

func (Native) Otsu(gray *image.Gray) *image.Gray { return Otsu(gray) }

func (Native) AdaptiveGaussian(gray *image.Gray, blockSize int, c float64) *image.Gray {
	return AdaptiveGaussian(gray, blockSize, c)
}

func (Native) GaussianBlur(gray *image.Gray, size int, sigma float64) *image.Gray {
	return GaussianBlur(gray, size, sigma)
}

func (Native) UpscaleCubic(gray *image.Gray, factor int) *image.Gray {
	return UpscaleCubic(gray, factor)
}

func (Native) ExternalContourAreas(mask *image.Gray) []float64 {
	return ExternalContourAreas(mask)
}

// AnyContourLargerThan reports whether p finds an external contour in mask
// enclosing more than minArea.
func AnyContourLargerThan(p Processor, mask *image.Gray, minArea float64) bool {
	if _, ok := p.(Native); ok {
		return HasContourLargerThan(mask, minArea)
	}
	for _, area := range p.ExternalContourAreas(mask) {
		if area > minArea {
			return true
		}
	}
	return false
}

var _ Processor = Native{}
