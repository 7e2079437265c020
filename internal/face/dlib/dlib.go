// Package dlib compares faces with dlib embeddings through go-face.
package dlib

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"math"
	"sync"

	goface "github.com/Kagami/go-face"

	"github.com/anime-shed/idcard-inspector-go/internal/face"
)

// Comparer computes the Euclidean distance between 128-d face descriptors.
// The recognizer is not safe for concurrent use, so calls are serialized.
type Comparer struct {
	mu  sync.Mutex
	rec *goface.Recognizer
}

// NewComparer loads the dlib models from modelDir.
func NewComparer(modelDir string) (*Comparer, error) {
	rec, err := goface.NewRecognizer(modelDir)
	if err != nil {
		return nil, fmt.Errorf("load face models from %s: %w", modelDir, err)
	}
	return &Comparer{rec: rec}, nil
}

func (c *Comparer) Distance(ctx context.Context, a, b image.Image) (float64, error) {
	da, err := c.descriptor(ctx, a)
	if err != nil {
		return 0, err
	}
	db, err := c.descriptor(ctx, b)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(goface.SquaredEuclideanDistance(da, db)), nil
}

func (c *Comparer) descriptor(ctx context.Context, img image.Image) (goface.Descriptor, error) {
	if err := ctx.Err(); err != nil {
		return goface.Descriptor{}, err
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 95}); err != nil {
		return goface.Descriptor{}, fmt.Errorf("encode face image: %w", err)
	}

	c.mu.Lock()
	f, err := c.rec.RecognizeSingle(buf.Bytes())
	c.mu.Unlock()
	if err != nil {
		return goface.Descriptor{}, fmt.Errorf("recognize face: %w", err)
	}
	if f == nil {
		return goface.Descriptor{}, face.ErrNoFace
	}
	return f.Descriptor, nil
}

// Close releases the recognizer.
func (c *Comparer) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rec.Close()
}

var _ face.Comparer = (*Comparer)(nil)
