// Package storage fetches input images and keeps the JPEG artifacts
// produced while processing a card.
package storage

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/blake2b"
)

var (
	// ErrArtifactNotFound is returned for unknown artifact names.
	ErrArtifactNotFound = errors.New("artifact not found")
	// ErrInvalidArtifactName is returned for names that are not plain file names.
	ErrInvalidArtifactName = errors.New("invalid artifact name")
)

const jpegQuality = 95

// ArtifactStore persists processing artifacts under content-addressed
// names.
type ArtifactStore interface {
	// Save encodes img as JPEG and returns its artifact name.
	Save(ctx context.Context, prefix string, img image.Image) (string, error)
	// Open streams the JPEG bytes of an artifact.
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	// Load decodes an artifact. ref may be a name or a path ending in one.
	Load(ctx context.Context, ref string) (image.Image, error)
}

// EncodeJPEG encodes img and derives its artifact name,
// "<prefix>_image_<blake2b-hex>.jpg".
func EncodeJPEG(prefix string, img image.Image) (string, []byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return "", nil, fmt.Errorf("encode artifact: %w", err)
	}
	sum := blake2b.Sum256(buf.Bytes())
	name := fmt.Sprintf("%s_image_%s.jpg", prefix, hex.EncodeToString(sum[:16]))
	return name, buf.Bytes(), nil
}

// cleanName reduces ref to its final path element and rejects anything
// that could escape the artifact namespace.
func cleanName(ref string) (string, error) {
	name := filepath.Base(filepath.Clean(strings.TrimSpace(ref)))
	if name == "." || name == ".." || name == string(filepath.Separator) || name == "" {
		return "", ErrInvalidArtifactName
	}
	if !strings.HasSuffix(strings.ToLower(name), ".jpg") {
		return "", ErrInvalidArtifactName
	}
	return name, nil
}

func decodeArtifact(rc io.ReadCloser) (image.Image, error) {
	defer rc.Close()
	img, _, err := image.Decode(rc)
	if err != nil {
		return nil, fmt.Errorf("decode artifact: %w", err)
	}
	return img, nil
}
