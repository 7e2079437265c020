// Package face crops the portraits printed on the card front and compares
// them.
package face

import (
	"context"
	"errors"
	"image"

	"github.com/anime-shed/idcard-inspector-go/internal/imaging"
)

// ErrNoFace is returned when no face is found in an image.
var ErrNoFace = errors.New("no face found")

// Comparer measures the embedding distance between the faces in two images.
// Smaller is more similar.
type Comparer interface {
	Distance(ctx context.Context, a, b image.Image) (float64, error)
}

// PortraitRect is the main photograph on an aligned front image.
func PortraitRect(bounds image.Rectangle) image.Rectangle {
	w, h := bounds.Dx(), bounds.Dy()
	return image.Rect(30, 134, 30+int(float64(w)*0.25), 134+int(float64(h)*0.55))
}

// GhostRect is the small ghost portrait on an aligned front image.
func GhostRect(bounds image.Rectangle) image.Rectangle {
	w, h := bounds.Dx(), bounds.Dy()
	return image.Rect(705, 215, 705+int(float64(w)*0.075), 215+int(float64(h)*0.15))
}

// Crops returns the portrait and ghost portrait of an aligned front image.
func Crops(img image.Image) (portrait, ghost *image.RGBA) {
	b := img.Bounds()
	return imaging.Crop(img, PortraitRect(b)), imaging.Crop(img, GhostRect(b))
}
