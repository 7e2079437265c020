package imaging

import (
	"image"
	"image/color"
	"math"
	"testing"
)

func createTestImage(width, height int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

// fillGray paints a w×h block of value v at (x, y).
func fillGray(img *image.Gray, x, y, w, h int, v uint8) {
	for yy := y; yy < y+h; yy++ {
		for xx := x; xx < x+w; xx++ {
			img.SetGray(xx, yy, color.Gray{Y: v})
		}
	}
}

func TestToGray_OffsetBounds(t *testing.T) {
	img := createTestImage(20, 10, color.RGBA{255, 255, 255, 255})
	sub := img.SubImage(image.Rect(5, 2, 15, 8))

	gray := ToGray(sub)
	if gray.Bounds() != image.Rect(0, 0, 10, 6) {
		t.Fatalf("Expected origin-anchored 10x6, got %v", gray.Bounds())
	}
	if gray.GrayAt(0, 0).Y != 255 {
		t.Errorf("Expected white, got %d", gray.GrayAt(0, 0).Y)
	}
}

func TestCrop_ClipsToImage(t *testing.T) {
	img := createTestImage(100, 50, color.RGBA{10, 20, 30, 255})
	img.Set(60, 40, color.RGBA{200, 0, 0, 255})

	tests := []struct {
		name string
		rect image.Rectangle
		want image.Rectangle
	}{
		{"inside", image.Rect(10, 10, 30, 20), image.Rect(0, 0, 20, 10)},
		{"overhanging", image.Rect(90, 40, 120, 70), image.Rect(0, 0, 10, 10)},
		{"outside", image.Rect(200, 200, 210, 210), image.Rect(0, 0, 0, 0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Crop(img, tt.rect)
			if got.Bounds() != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got.Bounds())
			}
		})
	}

	crop := Crop(img, image.Rect(50, 30, 70, 45))
	if r, _, _, _ := crop.At(10, 10).RGBA(); r>>8 != 200 {
		t.Errorf("Expected marked pixel at (10,10), got r=%d", r>>8)
	}
}

func TestThreshold(t *testing.T) {
	gray := image.NewGray(image.Rect(0, 0, 3, 1))
	gray.Pix = []uint8{239, 240, 241}

	out := Threshold(gray, 240)
	want := []uint8{0, 0, 255}
	for i, v := range want {
		if out.Pix[i] != v {
			t.Errorf("Pixel %d: expected %d, got %d", i, v, out.Pix[i])
		}
	}
}

func TestOtsu_Bimodal(t *testing.T) {
	gray := image.NewGray(image.Rect(0, 0, 40, 20))
	fillGray(gray, 0, 0, 20, 20, 40)
	fillGray(gray, 20, 0, 20, 20, 200)

	level := OtsuLevel(gray)
	if level < 40 || level >= 200 {
		t.Fatalf("Expected level between classes, got %d", level)
	}
	out := Otsu(gray)
	if out.GrayAt(5, 5).Y != 0 || out.GrayAt(30, 5).Y != 255 {
		t.Errorf("Expected dark half 0 and bright half 255, got %d/%d",
			out.GrayAt(5, 5).Y, out.GrayAt(30, 5).Y)
	}
}

func TestAdaptiveGaussian_TextOnPaper(t *testing.T) {
	gray := image.NewGray(image.Rect(0, 0, 60, 60))
	fillGray(gray, 0, 0, 60, 60, 200)
	fillGray(gray, 28, 10, 4, 40, 30) // a dark stroke

	out := AdaptiveGaussian(gray, 55, 25)
	if out.GrayAt(30, 30).Y != 0 {
		t.Errorf("Expected stroke to be black, got %d", out.GrayAt(30, 30).Y)
	}
	if out.GrayAt(5, 5).Y != 255 {
		t.Errorf("Expected paper to be white, got %d", out.GrayAt(5, 5).Y)
	}
}

func TestGaussianKernel(t *testing.T) {
	k5 := GaussianKernel(5, 0)
	if len(k5) != 5 || k5[2] != 0.375 {
		t.Errorf("Expected fixed 5-tap kernel, got %v", k5)
	}

	k55 := GaussianKernel(55, 0)
	var sum float64
	for _, v := range k55 {
		sum += v
	}
	if math.Abs(sum-1) > 1e-9 {
		t.Errorf("Expected normalized kernel, sum=%f", sum)
	}
	if k55[27] <= k55[0] {
		t.Error("Expected kernel to peak at the centre")
	}
	if len(GaussianKernel(4, 0)) != 5 {
		t.Error("Expected even sizes to round up to odd")
	}
}

func TestGaussianBlur_Uniform(t *testing.T) {
	gray := image.NewGray(image.Rect(0, 0, 16, 16))
	fillGray(gray, 0, 0, 16, 16, 123)

	out := GaussianBlur(gray, 5, 0)
	for i, v := range out.Pix {
		if v != 123 {
			t.Fatalf("Pixel %d: expected 123, got %d", i, v)
		}
	}
}

func TestUpscaleCubic(t *testing.T) {
	gray := image.NewGray(image.Rect(0, 0, 12, 7))
	out := UpscaleCubic(gray, 5)
	if out.Bounds().Dx() != 60 || out.Bounds().Dy() != 35 {
		t.Errorf("Expected 60x35, got %v", out.Bounds())
	}
	if UpscaleCubic(gray, 1) != gray {
		t.Error("Expected factor 1 to return the input")
	}
}

func TestExternalContourAreas(t *testing.T) {
	tests := []struct {
		name string
		w, h int
		want float64
	}{
		{"30x20 blob", 30, 20, 29 * 19},
		{"20x20 blob", 20, 20, 19 * 19},
		{"single pixel", 1, 1, 0},
		{"horizontal line", 40, 1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mask := image.NewGray(image.Rect(0, 0, 80, 60))
			fillGray(mask, 10, 10, tt.w, tt.h, 255)

			areas := ExternalContourAreas(mask)
			if len(areas) != 1 {
				t.Fatalf("Expected 1 contour, got %d", len(areas))
			}
			if areas[0] != tt.want {
				t.Errorf("Expected area %g, got %g", tt.want, areas[0])
			}
		})
	}
}

func TestExternalContourAreas_HoleAndTouchingEdge(t *testing.T) {
	mask := image.NewGray(image.Rect(0, 0, 50, 50))
	fillGray(mask, 0, 0, 10, 10, 255)  // touches the top-left corner
	fillGray(mask, 20, 20, 20, 20, 255) // ring with a hole
	fillGray(mask, 25, 25, 10, 10, 0)

	areas := ExternalContourAreas(mask)
	if len(areas) != 2 {
		t.Fatalf("Expected 2 contours, got %d (%v)", len(areas), areas)
	}
	if areas[0] != 81 {
		t.Errorf("Expected corner blob area 81, got %g", areas[0])
	}
	if areas[1] != 361 {
		t.Errorf("Expected ring outer area 361, got %g", areas[1])
	}
}

func TestHasContourLargerThan(t *testing.T) {
	big := image.NewGray(image.Rect(0, 0, 100, 100))
	fillGray(big, 5, 5, 30, 20, 255) // 600 px²
	if !HasContourLargerThan(big, 500) {
		t.Error("Expected 600 px² blob to exceed 500")
	}

	small := image.NewGray(image.Rect(0, 0, 100, 100))
	fillGray(small, 5, 5, 20, 20, 255) // 400 px²
	fillGray(small, 50, 50, 20, 20, 255)
	if HasContourLargerThan(small, 500) {
		t.Error("Expected 400 px² blobs to stay under 500")
	}
}

func TestHomography_InverseAndApply(t *testing.T) {
	h := Homography{1.2, 0.1, 15, -0.05, 0.9, 7, 0.0001, 0.0002, 1}
	inv, ok := h.Inverse()
	if !ok {
		t.Fatal("Expected invertible homography")
	}

	x, y, _ := h.Apply(100, 40)
	bx, by, _ := inv.Apply(x, y)
	if math.Abs(bx-100) > 1e-6 || math.Abs(by-40) > 1e-6 {
		t.Errorf("Expected round trip to (100,40), got (%f,%f)", bx, by)
	}

	if _, ok := (Homography{}).Inverse(); ok {
		t.Error("Expected zero matrix to be singular")
	}
}

func TestWarpPerspective_Translation(t *testing.T) {
	src := createTestImage(40, 30, color.RGBA{0, 0, 0, 255})
	src.Set(10, 10, color.RGBA{255, 255, 255, 255})

	// maps src (x,y) to (x+5, y+3)
	h := Homography{1, 0, 5, 0, 1, 3, 0, 0, 1}
	out, ok := WarpPerspective(src, h, 50, 40)
	if !ok {
		t.Fatal("Expected warp to succeed")
	}
	if out.Bounds() != image.Rect(0, 0, 50, 40) {
		t.Fatalf("Expected 50x40 output, got %v", out.Bounds())
	}
	if out.RGBAAt(15, 13).R != 255 {
		t.Errorf("Expected moved white pixel at (15,13), got %v", out.RGBAAt(15, 13))
	}
	if out.RGBAAt(48, 38).A != 0 {
		t.Errorf("Expected transparent black outside source, got %v", out.RGBAAt(48, 38))
	}
}

type areaProcessor struct {
	Native
	areas []float64
}

func (a areaProcessor) ExternalContourAreas(mask *image.Gray) []float64 { return a.areas }

func TestAnyContourLargerThan(t *testing.T) {
	mask := image.NewGray(image.Rect(0, 0, 60, 60))
	fillGray(mask, 5, 5, 30, 20, 255)

	tests := []struct {
		name     string
		proc     Processor
		expected bool
	}{
		{"native 29x19 contour", Native{}, true},
		{"backend areas under limit", areaProcessor{areas: []float64{120, 499.5}}, false},
		{"backend area over limit", areaProcessor{areas: []float64{10, 741}}, true},
		{"backend finds nothing", areaProcessor{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AnyContourLargerThan(tt.proc, mask, 500); got != tt.expected {
				t.Errorf("Expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestNative_MatchesPackageFunctions(t *testing.T) {
	gray := image.NewGray(image.Rect(0, 0, 40, 30))
	fillGray(gray, 0, 0, 40, 30, 60)
	fillGray(gray, 10, 8, 20, 12, 220)

	var p Processor = Native{}
	if got, want := p.Otsu(gray).Pix, Otsu(gray).Pix; string(got) != string(want) {
		t.Error("Expected Native.Otsu to match Otsu")
	}
	if got, want := p.AdaptiveGaussian(gray, 11, 2).Pix, AdaptiveGaussian(gray, 11, 2).Pix; string(got) != string(want) {
		t.Error("Expected Native.AdaptiveGaussian to match AdaptiveGaussian")
	}
	if got := p.UpscaleCubic(gray, 3).Bounds().Size(); got != image.Pt(120, 90) {
		t.Errorf("Expected 120x90 upscale, got %v", got)
	}
	if got := len(p.ExternalContourAreas(p.Threshold(gray, 128))); got != 1 {
		t.Errorf("Expected 1 contour, got %d", got)
	}
}
