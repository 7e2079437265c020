// Package qr finds and interprets the QR code printed on the back of the card.
package qr

import (
	"context"
	"errors"
	"image"
	"regexp"

	"github.com/sirupsen/logrus"

	"github.com/anime-shed/idcard-inspector-go/internal/imaging"
	"github.com/anime-shed/idcard-inspector-go/internal/logger"
	"github.com/anime-shed/idcard-inspector-go/pkg/models"
)

// ErrInvalidFormat is returned when a payload does not follow the registry
// URL grammar.
var ErrInvalidFormat = errors.New("QR format invalid")

var (
	urlPattern     = regexp.MustCompile(`^(http|https)://[a-zA-Z0-9-]+(\.[a-zA-Z0-9-]+)+(:[0-9]+)?(/.*)?$`)
	payloadPattern = regexp.MustCompile(`RUN=(\d{8})-\d&type=[^&]*&serial=(\d+)&mrz=(\d+)`)
)

const (
	blurSize      = 5
	adaptiveBlock = 11
	adaptiveC     = 2
)

// Decoder returns the text of every symbol it can read in img.
type Decoder interface {
	Decode(img image.Image) ([]string, error)
}

// Interpreter locates the registry URL among decoded QR symbols.
type Interpreter struct {
	decoder Decoder
	proc    imaging.Processor
}

// NewInterpreter creates an interpreter using decoder.
func NewInterpreter(decoder Decoder) *Interpreter {
	return &Interpreter{decoder: decoder, proc: imaging.Native{}}
}

// WithProcessor replaces the blur and binarization backend.
func (i *Interpreter) WithProcessor(p imaging.Processor) *Interpreter {
	i.proc = p
	return i
}

// Detect binarizes img and returns the first decoded symbol that is a URL.
// found is false when no symbol decodes or none is a URL.
func (i *Interpreter) Detect(ctx context.Context, img image.Image) (payload string, found bool) {
	if ctx.Err() != nil {
		return "", false
	}

	gray := i.proc.GaussianBlur(imaging.ToGray(img), blurSize, 0)
	binary := i.proc.AdaptiveGaussian(gray, adaptiveBlock, adaptiveC)

	candidates, err := i.decoder.Decode(binary)
	if err != nil {
		logger.WithError(err).Info("No QR code decoded")
		return "", false
	}

	for _, c := range candidates {
		if IsURL(c) {
			logger.WithField("length", len(c)).Info("QR code detected")
			return c, true
		}
	}
	logger.WithFields(logrus.Fields{
		"candidates": len(candidates),
	}).Info("No URL found in QR symbols")
	return "", false
}

// IsURL reports whether s is an http(s) URL with a dotted host.
func IsURL(s string) bool {
	return urlPattern.MatchString(s)
}

// Parse extracts the RUN, serial and MRZ digits from a registry URL.
func Parse(raw string) (models.QRPayload, error) {
	m := payloadPattern.FindStringSubmatch(raw)
	if m == nil {
		return models.QRPayload{Raw: raw}, ErrInvalidFormat
	}
	return models.QRPayload{
		Raw:    raw,
		RUN:    m[1],
		Serial: m[2],
		MRZ:    m[3],
	}, nil
}
