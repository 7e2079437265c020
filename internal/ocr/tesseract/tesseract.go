// Package tesseract implements ocr.Engine on top of gosseract.
package tesseract

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"github.com/anime-shed/idcard-inspector-go/internal/ocr"
)

var _ ocr.Engine = (*Engine)(nil)

// Engine runs Tesseract through gosseract. A fresh client is used per
// call, so the engine is safe for concurrent use.
type Engine struct {
	clientFactory func() *gosseract.Client
}

// NewEngine creates a Tesseract-backed OCR engine.
func NewEngine() *Engine {
	return &Engine{clientFactory: gosseract.NewClient}
}

// Recognize returns the text Tesseract reads in img.
func (e *Engine) Recognize(ctx context.Context, img image.Image, mode ocr.Mode) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("encode region: %w", err)
	}

	c := e.clientFactory()
	defer c.Close()

	if len(mode.Languages) > 0 {
		if err := c.SetLanguage(mode.Languages...); err != nil {
			return "", fmt.Errorf("set languages: %w", err)
		}
	}
	if mode.PageSegMode > 0 {
		if err := c.SetPageSegMode(gosseract.PageSegMode(mode.PageSegMode)); err != nil {
			return "", fmt.Errorf("set page segmentation: %w", err)
		}
	}
	for k, v := range mode.Variables {
		if err := c.SetVariable(gosseract.SettableVariable(k), v); err != nil {
			return "", fmt.Errorf("set variable %s: %w", k, err)
		}
	}
	if err := c.SetImageFromBytes(buf.Bytes()); err != nil {
		return "", fmt.Errorf("set image: %w", err)
	}

	text, err := c.Text()
	if err != nil {
		return "", fmt.Errorf("recognize text (psm %d): %w", mode.PageSegMode, err)
	}
	return strings.TrimRight(text, "\n"), nil
}
