// Package imaging holds the pixel-level operations the document pipeline
// needs: grayscale conversion, cropping, global/adaptive/Otsu thresholds,
// Gaussian blur, cubic upscaling, external contour areas and perspective
// warping. All outputs are anchored at the origin.
package imaging

import (
	"image"
	"image/draw"
	"runtime"
	"sync"
)

// ToGray converts img to an 8-bit grayscale image.
func ToGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok && g.Rect.Min == (image.Point{}) && g.Stride == g.Rect.Dx() {
		return g
	}
	b := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(gray, gray.Bounds(), img, b.Min, draw.Src)
	return gray
}

// ToRGBA copies img into an RGBA image anchored at the origin.
func ToRGBA(img image.Image) *image.RGBA {
	if r, ok := img.(*image.RGBA); ok && r.Rect.Min == (image.Point{}) && r.Stride == 4*r.Rect.Dx() {
		return r
	}
	b := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	return rgba
}

// Crop copies the part of img inside r, with r expressed relative to the
// image origin. The rectangle is clipped to the image; an empty
// intersection yields an empty image.
func Crop(img image.Image, r image.Rectangle) *image.RGBA {
	b := img.Bounds()
	abs := r.Add(b.Min).Intersect(b)
	out := image.NewRGBA(image.Rect(0, 0, abs.Dx(), abs.Dy()))
	if abs.Empty() {
		return out
	}
	draw.Draw(out, out.Bounds(), img, abs.Min, draw.Src)
	return out
}

// parallelRows splits [0,height) into horizontal strips and runs fn on
// each strip concurrently.
func parallelRows(height int, fn func(y0, y1 int)) {
	if height <= 0 {
		return
	}
	workers := runtime.NumCPU()
	if height < workers {
		workers = height
	}
	rowsPerWorker := (height + workers - 1) / workers

	var wg sync.WaitGroup
	for y0 := 0; y0 < height; y0 += rowsPerWorker {
		y1 := y0 + rowsPerWorker
		if y1 > height {
			y1 = height
		}
		wg.Add(1)
		go func(y0, y1 int) {
			defer wg.Done()
			fn(y0, y1)
		}(y0, y1)
	}
	wg.Wait()
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
