// Package strategy holds the per-side processing of an aligned card image.
package strategy

import (
	"context"
	"fmt"
	"image"

	"github.com/anime-shed/idcard-inspector-go/internal/face"
	"github.com/anime-shed/idcard-inspector-go/pkg/models"
)

// Crop is an extra image produced while processing, saved as an artifact
// under Prefix.
type Crop struct {
	Prefix string
	Image  image.Image
}

// Outcome is what a side strategy read from an aligned image. Only the
// fields belonging to the processed side are set.
type Outcome struct {
	Side  models.DocumentSide
	Front models.FrontResult
	MRZ   models.MRZRecord
	QR    string
	Crops []Crop
}

// SideStrategy processes aligned images of one document side.
type SideStrategy interface {
	Side() models.DocumentSide
	Process(ctx context.Context, aligned image.Image) (Outcome, error)
	GetStrategyName() string
}

// FrontExtractor reads the printed fields of the front side.
type FrontExtractor interface {
	Extract(ctx context.Context, img image.Image) (models.FrontResult, error)
}

// MRZReader parses the back-side machine readable zone.
type MRZReader interface {
	Parse(ctx context.Context, img image.Image) (models.MRZRecord, error)
}

// QRDetector finds the registry URL in the back-side QR code.
type QRDetector interface {
	Detect(ctx context.Context, img image.Image) (string, bool)
}

// FrontStrategy extracts the printed fields and crops both portraits.
type FrontStrategy struct {
	extractor FrontExtractor
}

// NewFrontStrategy creates the front-side strategy.
func NewFrontStrategy(extractor FrontExtractor) *FrontStrategy {
	return &FrontStrategy{extractor: extractor}
}

func (s *FrontStrategy) Side() models.DocumentSide { return models.SideFront }

func (s *FrontStrategy) GetStrategyName() string { return "front_fields" }

func (s *FrontStrategy) Process(ctx context.Context, aligned image.Image) (Outcome, error) {
	result, err := s.extractor.Extract(ctx, aligned)
	if err != nil {
		return Outcome{}, err
	}
	portrait, ghost := face.Crops(aligned)
	return Outcome{
		Side:  models.SideFront,
		Front: result,
		Crops: []Crop{
			{Prefix: "face1", Image: portrait},
			{Prefix: "face2", Image: ghost},
		},
	}, nil
}

// BackStrategy parses the MRZ and detects the QR payload.
type BackStrategy struct {
	parser   MRZReader
	detector QRDetector
}

// NewBackStrategy creates the back-side strategy.
func NewBackStrategy(parser MRZReader, detector QRDetector) *BackStrategy {
	return &BackStrategy{parser: parser, detector: detector}
}

func (s *BackStrategy) Side() models.DocumentSide { return models.SideBack }

func (s *BackStrategy) GetStrategyName() string { return "back_mrz_qr" }

func (s *BackStrategy) Process(ctx context.Context, aligned image.Image) (Outcome, error) {
	record, err := s.parser.Parse(ctx, aligned)
	if err != nil {
		return Outcome{}, err
	}
	payload, _ := s.detector.Detect(ctx, aligned)
	return Outcome{
		Side: models.SideBack,
		MRZ:  record,
		QR:   payload,
	}, nil
}

// Registry selects the strategy for a document side.
type Registry struct {
	strategies map[models.DocumentSide]SideStrategy
}

// NewRegistry indexes strategies by the side they handle.
func NewRegistry(strategies ...SideStrategy) *Registry {
	r := &Registry{strategies: make(map[models.DocumentSide]SideStrategy, len(strategies))}
	for _, s := range strategies {
		r.strategies[s.Side()] = s
	}
	return r
}

// For returns the strategy registered for side.
func (r *Registry) For(side models.DocumentSide) (SideStrategy, error) {
	s, ok := r.strategies[side]
	if !ok {
		return nil, fmt.Errorf("no strategy for side %q", side)
	}
	return s, nil
}
