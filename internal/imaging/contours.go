package imaging

import (
	"image"
	"math"
)

// Moore neighbourhood, clockwise in image coordinates starting east.
var mooreOffsets = [8]image.Point{
	{1, 0}, {1, 1}, {0, 1}, {-1, 1},
	{-1, 0}, {-1, -1}, {0, -1}, {1, -1},
}

func mooreIndex(d image.Point) int {
	for i, o := range mooreOffsets {
		if o == d {
			return i
		}
	}
	return -1
}

// ExternalContourAreas returns the polygon area enclosed by the outer
// boundary of every 8-connected foreground blob in mask (non-zero pixels).
// Boundaries run through pixel centres, so a filled w×h rectangle has
// area (w-1)·(h-1) and single pixels or lines have area 0.
func ExternalContourAreas(mask *image.Gray) []float64 {
	var areas []float64
	forEachBlob(mask, func(start image.Point) bool {
		areas = append(areas, polygonArea(traceBoundary(mask, start)))
		return true
	})
	return areas
}

// HasContourLargerThan reports whether any blob's outer contour encloses
// more than minArea square pixels. It stops at the first such blob.
func HasContourLargerThan(mask *image.Gray, minArea float64) bool {
	found := false
	forEachBlob(mask, func(start image.Point) bool {
		if polygonArea(traceBoundary(mask, start)) > minArea {
			found = true
			return false
		}
		return true
	})
	return found
}

func isForeground(mask *image.Gray, p image.Point) bool {
	if !p.In(mask.Rect) {
		return false
	}
	return mask.Pix[mask.PixOffset(p.X, p.Y)] != 0
}

// forEachBlob visits blobs in raster order of their first pixel, which
// is always the top-left-most pixel of the blob's outer boundary.
func forEachBlob(mask *image.Gray, visit func(start image.Point) bool) {
	b := mask.Rect
	seen := make([]bool, b.Dx()*b.Dy())
	idx := func(p image.Point) int { return (p.Y-b.Min.Y)*b.Dx() + (p.X - b.Min.X) }

	var stack []image.Point
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			p := image.Pt(x, y)
			if seen[idx(p)] || !isForeground(mask, p) {
				continue
			}
			if !visit(p) {
				return
			}

			seen[idx(p)] = true
			stack = append(stack[:0], p)
			for len(stack) > 0 {
				cur := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				for _, o := range mooreOffsets {
					n := cur.Add(o)
					if isForeground(mask, n) && !seen[idx(n)] {
						seen[idx(n)] = true
						stack = append(stack, n)
					}
				}
			}
		}
	}
}

// traceBoundary follows the outer boundary clockwise with Moore-neighbour
// tracing and Jacob's stopping criterion. start must have a background
// pixel (or the image edge) to its west.
func traceBoundary(mask *image.Gray, start image.Point) []image.Point {
	contour := []image.Point{start}
	cur := start
	back := 4 // entered from the west

	var second image.Point
	haveSecond := false
	limit := 4*mask.Rect.Dx()*mask.Rect.Dy() + 8

	for step := 0; step < limit; step++ {
		found := -1
		for i := 1; i <= 8; i++ {
			d := (back + i) % 8
			if isForeground(mask, cur.Add(mooreOffsets[d])) {
				found = d
				break
			}
		}
		if found < 0 {
			return contour // isolated pixel
		}

		next := cur.Add(mooreOffsets[found])
		if cur == start && haveSecond && next == second {
			break
		}
		if !haveSecond {
			second = next
			haveSecond = true
		}

		prev := cur.Add(mooreOffsets[(found+7)%8])
		back = mooreIndex(prev.Sub(next))
		cur = next
		contour = append(contour, cur)
	}

	if n := len(contour); n > 1 && contour[n-1] == contour[0] {
		contour = contour[:n-1]
	}
	return contour
}

func polygonArea(pts []image.Point) float64 {
	if len(pts) < 3 {
		return 0
	}
	var sum int
	for i := range pts {
		j := (i + 1) % len(pts)
		sum += pts[i].X*pts[j].Y - pts[j].X*pts[i].Y
	}
	return math.Abs(float64(sum)) / 2
}
