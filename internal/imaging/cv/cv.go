// Package cv implements the imaging operations on top of OpenCV.
package cv

import (
	"image"

	"gocv.io/x/gocv"

	"github.com/anime-shed/idcard-inspector-go/internal/imaging"
	"github.com/anime-shed/idcard-inspector-go/internal/logger"
)

// Processor runs thresholds, blurs, resizes and contour search through
// gocv. Any conversion failure falls back to the pure Go routine.
type Processor struct {
	fallback imaging.Native
}

// NewProcessor creates an OpenCV backed processor.
func NewProcessor() *Processor {
	return &Processor{}
}

func grayMat(gray *image.Gray) (gocv.Mat, error) {
	gray = imaging.ToGray(gray)
	b := gray.Bounds()
	return gocv.NewMatFromBytes(b.Dy(), b.Dx(), gocv.MatTypeCV8UC1, gray.Pix)
}

func toGray(m gocv.Mat) (*image.Gray, error) {
	img, err := m.ToImage()
	if err != nil {
		return nil, err
	}
	return imaging.ToGray(img), nil
}

// apply converts gray to a Mat, runs op into a fresh destination and
// converts back.
func (p *Processor) apply(name string, gray *image.Gray, op func(src gocv.Mat, dst *gocv.Mat)) (*image.Gray, bool) {
	if gray.Bounds().Empty() {
		return image.NewGray(image.Rect(0, 0, 0, 0)), true
	}
	src, err := grayMat(gray)
	if err != nil {
		logger.WithError(err).WithField("op", name).Warn("OpenCV input conversion failed")
		return nil, false
	}
	defer src.Close()

	dst := gocv.NewMat()
	defer dst.Close()
	op(src, &dst)

	out, err := toGray(dst)
	if err != nil {
		logger.WithError(err).WithField("op", name).Warn("OpenCV output conversion failed")
		return nil, false
	}
	return out, true
}

func (p *Processor) Threshold(gray *image.Gray, t uint8) *image.Gray {
	out, ok := p.apply("threshold", gray, func(src gocv.Mat, dst *gocv.Mat) {
		gocv.Threshold(src, dst, float32(t), 255, gocv.ThresholdBinary)
	})
	if !ok {
		return p.fallback.Threshold(gray, t)
	}
	return out
}

func (p *Processor) Otsu(gray *image.Gray) *image.Gray {
	out, ok := p.apply("otsu", gray, func(src gocv.Mat, dst *gocv.Mat) {
		gocv.Threshold(src, dst, 0, 255, gocv.ThresholdBinary|gocv.ThresholdOtsu)
	})
	if !ok {
		return p.fallback.Otsu(gray)
	}
	return out
}

func (p *Processor) AdaptiveGaussian(gray *image.Gray, blockSize int, c float64) *image.Gray {
	if blockSize < 3 {
		blockSize = 3
	}
	if blockSize%2 == 0 {
		blockSize++
	}
	out, ok := p.apply("adaptive_threshold", gray, func(src gocv.Mat, dst *gocv.Mat) {
		gocv.AdaptiveThreshold(src, dst, 255, gocv.AdaptiveThresholdGaussian, gocv.ThresholdBinary, blockSize, float32(c))
	})
	if !ok {
		return p.fallback.AdaptiveGaussian(gray, blockSize, c)
	}
	return out
}

func (p *Processor) GaussianBlur(gray *image.Gray, size int, sigma float64) *image.Gray {
	if size%2 == 0 {
		size++
	}
	out, ok := p.apply("gaussian_blur", gray, func(src gocv.Mat, dst *gocv.Mat) {
		gocv.GaussianBlur(src, dst, image.Pt(size, size), sigma, sigma, gocv.BorderDefault)
	})
	if !ok {
		return p.fallback.GaussianBlur(gray, size, sigma)
	}
	return out
}

func (p *Processor) UpscaleCubic(gray *image.Gray, factor int) *image.Gray {
	if factor <= 1 {
		return gray
	}
	out, ok := p.apply("resize", gray, func(src gocv.Mat, dst *gocv.Mat) {
		gocv.Resize(src, dst, image.Point{}, float64(factor), float64(factor), gocv.InterpolationCubic)
	})
	if !ok {
		return p.fallback.UpscaleCubic(gray, factor)
	}
	return out
}

func (p *Processor) ExternalContourAreas(mask *image.Gray) []float64 {
	if mask.Bounds().Empty() {
		return nil
	}
	src, err := grayMat(mask)
	if err != nil {
		logger.WithError(err).WithField("op", "find_contours").Warn("OpenCV input conversion failed")
		return p.fallback.ExternalContourAreas(mask)
	}
	defer src.Close()

	contours := gocv.FindContours(src, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	areas := make([]float64, 0, contours.Size())
	for i := 0; i < contours.Size(); i++ {
		areas = append(areas, gocv.ContourArea(contours.At(i)))
	}
	return areas
}

var _ imaging.Processor = (*Processor)(nil)
