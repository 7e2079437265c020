package imaging

import (
	"image"

	"golang.org/x/image/draw"
)

// UpscaleCubic enlarges gray by an integer factor using Catmull-Rom
// (bicubic) resampling.
func UpscaleCubic(gray *image.Gray, factor int) *image.Gray {
	if factor <= 1 {
		return gray
	}
	b := gray.Bounds()
	dst := image.NewGray(image.Rect(0, 0, b.Dx()*factor, b.Dy()*factor))
	draw.CatmullRom.Scale(dst, dst.Bounds(), gray, b, draw.Src, nil)
	return dst
}
