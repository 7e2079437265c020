// Package ocr defines the text recognition contract used by the field
// extractor and the MRZ parser.
package ocr

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"
)

// Page segmentation modes understood by the engines.
const (
	PSMAuto        = 1
	PSMSingleBlock = 6
	PSMSingleWord  = 8
)

// Mode selects how an engine reads a region.
type Mode struct {
	PageSegMode int
	Languages   []string
	// Variables are passed to the engine verbatim.
	Variables map[string]string
}

// BlockMode reads a uniform block of text, e.g. a name line.
func BlockMode(langs ...string) Mode {
	return Mode{PageSegMode: PSMSingleBlock, Languages: langs}
}

// WordMode reads a single word, e.g. the document number.
func WordMode(langs ...string) Mode {
	return Mode{PageSegMode: PSMSingleWord, Languages: langs}
}

// AutoMode lets the engine segment the page, used for the MRZ band.
func AutoMode(langs ...string) Mode {
	return Mode{PageSegMode: PSMAuto, Languages: langs}
}

// Engine recognizes the text in an image.
type Engine interface {
	Recognize(ctx context.Context, img image.Image, mode Mode) (string, error)
}

// EngineFunc adapts a function to Engine.
type EngineFunc func(ctx context.Context, img image.Image, mode Mode) (string, error)

// Recognize calls f.
func (f EngineFunc) Recognize(ctx context.Context, img image.Image, mode Mode) (string, error) {
	return f(ctx, img, mode)
}

// ErrTimeout is returned when a recognition call exceeds its budget.
var ErrTimeout = errors.New("ocr timed out")

type timeoutEngine struct {
	next    Engine
	timeout time.Duration
}

// WithTimeout bounds every Recognize call on next. The underlying call is
// left to finish in the background when the budget runs out.
func WithTimeout(next Engine, timeout time.Duration) Engine {
	if timeout <= 0 {
		return next
	}
	return &timeoutEngine{next: next, timeout: timeout}
}

type recognition struct {
	text string
	err  error
}

func (e *timeoutEngine) Recognize(ctx context.Context, img image.Image, mode Mode) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	done := make(chan recognition, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- recognition{err: fmt.Errorf("ocr engine panic: %v", r)}
			}
		}()
		text, err := e.next.Recognize(ctx, img, mode)
		done <- recognition{text: text, err: err}
	}()

	select {
	case r := <-done:
		return r.text, r.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("%w after %s", ErrTimeout, e.timeout)
		}
		return "", ctx.Err()
	}
}
