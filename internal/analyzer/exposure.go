package analyzer

import (
	"fmt"
	"image"

	"github.com/anime-shed/idcard-inspector-go/internal/imaging"
	"gonum.org/v1/gonum/stat"
)

// ExposureOptions configures the flash glare guard.
type ExposureOptions struct {
	// BrightnessThreshold is the gray level above which a pixel counts as glare.
	BrightnessThreshold uint8
	// MinContourArea is the contour area (px²) a glare blob must exceed.
	MinContourArea float64
}

// DefaultExposureOptions returns the thresholds tuned for ID card captures.
func DefaultExposureOptions() ExposureOptions {
	return ExposureOptions{
		BrightnessThreshold: 240,
		MinContourArea:      500,
	}
}

// ExposureReport describes the glare found in one region.
type ExposureReport struct {
	Overexposed    bool    `json:"overexposed"`
	MeanBrightness float64 `json:"mean_brightness"`
	StdBrightness  float64 `json:"std_brightness"`
	GlareFraction  float64 `json:"glare_fraction"`
}

// ExposureGuard detects flash reflections that make a region unreadable.
type ExposureGuard struct {
	opts ExposureOptions
	proc imaging.Processor
}

// NewExposureGuard creates a guard with the given options.
func NewExposureGuard(opts ExposureOptions) *ExposureGuard {
	return &ExposureGuard{opts: opts, proc: imaging.Native{}}
}

// WithProcessor replaces the thresholding and contour backend.
func (g *ExposureGuard) WithProcessor(p imaging.Processor) *ExposureGuard {
	g.proc = p
	return g
}

// Options returns the guard configuration.
func (g *ExposureGuard) Options() ExposureOptions {
	return g.opts
}

// Overexposed reports whether the region of img inside r contains a
// bright blob whose external contour encloses more than MinContourArea.
func (g *ExposureGuard) Overexposed(img image.Image, r image.Rectangle) bool {
	gray := imaging.ToGray(imaging.Crop(img, r))
	mask := g.proc.Threshold(gray, g.opts.BrightnessThreshold)
	return imaging.AnyContourLargerThan(g.proc, mask, g.opts.MinContourArea)
}

// OverexposedUnion thresholds every region into one shared mask and runs a
// single contour search over it, so a blob straddling adjacent regions is
// measured whole. On glare it returns the index of the region holding the
// most glare pixels; ties go to the earlier region.
func (g *ExposureGuard) OverexposedUnion(img image.Image, regions []image.Rectangle) (int, bool) {
	b := img.Bounds()
	var bbox image.Rectangle
	for _, r := range regions {
		bbox = bbox.Union(r.Add(b.Min).Intersect(b))
	}
	if bbox.Empty() {
		return -1, false
	}

	mask := image.NewGray(image.Rect(0, 0, bbox.Dx(), bbox.Dy()))
	glare := make([]int, len(regions))
	for i, r := range regions {
		abs := r.Add(b.Min).Intersect(b)
		if abs.Empty() {
			continue
		}
		part := g.proc.Threshold(imaging.ToGray(imaging.Crop(img, r)), g.opts.BrightnessThreshold)
		off := abs.Min.Sub(bbox.Min)
		for y := 0; y < abs.Dy(); y++ {
			row := part.Pix[y*part.Stride : y*part.Stride+abs.Dx()]
			dst := mask.Pix[(off.Y+y)*mask.Stride+off.X:]
			for x, v := range row {
				if v != 0 {
					dst[x] = 255
					glare[i]++
				}
			}
		}
	}

	if !imaging.AnyContourLargerThan(g.proc, mask, g.opts.MinContourArea) {
		return -1, false
	}
	worst := 0
	for i, n := range glare {
		if n > glare[worst] {
			worst = i
		}
	}
	return worst, true
}

// Inspect returns brightness statistics for the region alongside the verdict.
func (g *ExposureGuard) Inspect(img image.Image, r image.Rectangle) ExposureReport {
	gray := imaging.ToGray(imaging.Crop(img, r))
	if len(gray.Pix) == 0 {
		return ExposureReport{}
	}

	values := make([]float64, len(gray.Pix))
	glare := 0
	for i, v := range gray.Pix {
		values[i] = float64(v)
		if v > g.opts.BrightnessThreshold {
			glare++
		}
	}
	mean, std := stat.MeanStdDev(values, nil)
	mask := g.proc.Threshold(gray, g.opts.BrightnessThreshold)

	return ExposureReport{
		Overexposed:    imaging.AnyContourLargerThan(g.proc, mask, g.opts.MinContourArea),
		MeanBrightness: mean,
		StdBrightness:  std,
		GlareFraction:  float64(glare) / float64(len(values)),
	}
}

// FlashWarning is the user-facing message for glare over a named field.
func FlashWarning(field string) string {
	return fmt.Sprintf("Flash detected over %s; retake the photo without flash", field)
}
