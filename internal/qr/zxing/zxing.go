// Package zxing decodes QR codes with gozxing.
package zxing

import (
	"errors"
	"fmt"
	"image"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/multi"
	multiqrcode "github.com/makiuchi-d/gozxing/multi/qrcode"

	"github.com/anime-shed/idcard-inspector-go/internal/qr"
)

// ErrNotFound is returned when no symbol in the image decodes.
var ErrNotFound = errors.New("no QR code found")

// Decoder reads every QR symbol in an image.
type Decoder struct {
	reader multi.MultipleBarcodeReader
	hints  map[gozxing.DecodeHintType]interface{}
}

// NewDecoder creates a decoder that tries harder on damaged symbols.
func NewDecoder() *Decoder {
	return &Decoder{
		reader: multiqrcode.NewQRCodeMultiReader(),
		hints: map[gozxing.DecodeHintType]interface{}{
			gozxing.DecodeHintType_TRY_HARDER: true,
		},
	}
}

// Decode returns the text of each decoded symbol in detection order.
func (d *Decoder) Decode(img image.Image) ([]string, error) {
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return nil, fmt.Errorf("failed to create bitmap: %w", err)
	}

	results, err := d.reader.DecodeMultiple(bmp, d.hints)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, ErrNotFound
	}

	texts := make([]string, 0, len(results))
	for _, r := range results {
		texts = append(texts, r.GetText())
	}
	return texts, nil
}

var _ qr.Decoder = (*Decoder)(nil)
