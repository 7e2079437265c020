package imaging

import (
	"image"
	"image/color"
	"math"
)

// Homography is a 3×3 projective transform stored row-major.
type Homography [9]float64

// IdentityHomography returns the identity transform.
func IdentityHomography() Homography {
	return Homography{1, 0, 0, 0, 1, 0, 0, 0, 1}
}

// Apply maps (x, y) through h. ok is false when the point maps to infinity.
func (h Homography) Apply(x, y float64) (float64, float64, bool) {
	w := h[6]*x + h[7]*y + h[8]
	if math.Abs(w) < 1e-12 {
		return 0, 0, false
	}
	return (h[0]*x + h[1]*y + h[2]) / w, (h[3]*x + h[4]*y + h[5]) / w, true
}

// Normalize scales h so that its bottom-right entry is 1.
func (h Homography) Normalize() Homography {
	if math.Abs(h[8]) < 1e-12 {
		return h
	}
	s := h[8]
	for i := range h {
		h[i] /= s
	}
	return h
}

// Inverse returns the inverse transform; ok is false for singular matrices.
func (h Homography) Inverse() (Homography, bool) {
	a, b, c := h[0], h[1], h[2]
	d, e, f := h[3], h[4], h[5]
	g, k, l := h[6], h[7], h[8]

	c00 := e*l - f*k
	c01 := -(d*l - f*g)
	c02 := d*k - e*g
	det := a*c00 + b*c01 + c*c02
	if math.Abs(det) < 1e-12 {
		return Homography{}, false
	}

	inv := Homography{
		c00, -(b*l - c*k), b*f - c*e,
		c01, a*l - c*g, -(a*f - c*d),
		c02, -(a*k - b*g), a*e - b*d,
	}
	for i := range inv {
		inv[i] /= det
	}
	return inv, true
}

// WarpPerspective renders src through h into a width×height image:
// destination pixel p samples src at h⁻¹(p) with bilinear interpolation.
// Samples outside src are black.
func WarpPerspective(src image.Image, h Homography, width, height int) (*image.RGBA, bool) {
	inv, ok := h.Inverse()
	if !ok {
		return nil, false
	}
	in := ToRGBA(src)
	out := image.NewRGBA(image.Rect(0, 0, width, height))

	parallelRows(height, func(y0, y1 int) {
		for y := y0; y < y1; y++ {
			for x := 0; x < width; x++ {
				sx, sy, ok := inv.Apply(float64(x), float64(y))
				if !ok {
					continue
				}
				out.SetRGBA(x, y, bilinear(in, sx, sy))
			}
		}
	})
	return out, true
}

func bilinear(img *image.RGBA, x, y float64) color.RGBA {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	if x < -1 || y < -1 || x > float64(w) || y > float64(h) {
		return color.RGBA{}
	}
	x0, y0 := int(math.Floor(x)), int(math.Floor(y))
	fx, fy := x-float64(x0), y-float64(y0)

	var acc [4]float64
	for _, s := range [4]struct {
		dx, dy int
		wt     float64
	}{
		{0, 0, (1 - fx) * (1 - fy)},
		{1, 0, fx * (1 - fy)},
		{0, 1, (1 - fx) * fy},
		{1, 1, fx * fy},
	} {
		px, py := x0+s.dx, y0+s.dy
		if s.wt == 0 || px < 0 || py < 0 || px >= w || py >= h {
			continue
		}
		i := img.PixOffset(px, py)
		for c := 0; c < 4; c++ {
			acc[c] += s.wt * float64(img.Pix[i+c])
		}
	}
	return color.RGBA{
		R: uint8(clampInt(int(math.Round(acc[0])), 0, 255)),
		G: uint8(clampInt(int(math.Round(acc[1])), 0, 255)),
		B: uint8(clampInt(int(math.Round(acc[2])), 0, 255)),
		A: uint8(clampInt(int(math.Round(acc[3])), 0, 255)),
	}
}
