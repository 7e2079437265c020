package strategy

import (
	"context"
	"errors"
	"image"
	"testing"

	"github.com/anime-shed/idcard-inspector-go/pkg/models"
)

type stubExtractor struct {
	result models.FrontResult
	err    error
}

func (s stubExtractor) Extract(ctx context.Context, img image.Image) (models.FrontResult, error) {
	return s.result, s.err
}

type stubParser struct {
	record models.MRZRecord
	err    error
}

func (s stubParser) Parse(ctx context.Context, img image.Image) (models.MRZRecord, error) {
	return s.record, s.err
}

type stubDetector struct {
	payload string
	found   bool
}

func (s stubDetector) Detect(ctx context.Context, img image.Image) (string, bool) {
	return s.payload, s.found
}

func TestFrontStrategy(t *testing.T) {
	fields := models.FieldSet{models.FieldRUN: "12345678"}
	s := NewFrontStrategy(stubExtractor{result: models.FrontResult{Fields: fields}})

	out, err := s.Process(context.Background(), image.NewRGBA(image.Rect(0, 0, 1000, 630)))
	if err != nil {
		t.Fatalf("Expected outcome, got %v", err)
	}
	if out.Side != models.SideFront || out.Front.Fields[models.FieldRUN] != "12345678" {
		t.Errorf("Unexpected outcome %+v", out)
	}
	if len(out.Crops) != 2 || out.Crops[0].Prefix != "face1" || out.Crops[1].Prefix != "face2" {
		t.Fatalf("Expected two face crops, got %+v", out.Crops)
	}
	if out.Crops[0].Image.Bounds().Dx() != 250 {
		t.Errorf("Unexpected portrait crop %v", out.Crops[0].Image.Bounds())
	}

	failing := NewFrontStrategy(stubExtractor{err: errors.New("ocr down")})
	if _, err := failing.Process(context.Background(), image.NewRGBA(image.Rect(0, 0, 10, 10))); err == nil {
		t.Error("Expected extractor error")
	}
}

func TestBackStrategy(t *testing.T) {
	record := models.MRZRecord{RUN: "12345678"}
	s := NewBackStrategy(stubParser{record: record}, stubDetector{payload: "https://a.cl/x", found: true})

	out, err := s.Process(context.Background(), image.NewRGBA(image.Rect(0, 0, 10, 10)))
	if err != nil {
		t.Fatalf("Expected outcome, got %v", err)
	}
	if out.MRZ.RUN != "12345678" || out.QR != "https://a.cl/x" || len(out.Crops) != 0 {
		t.Errorf("Unexpected outcome %+v", out)
	}

	missing := NewBackStrategy(stubParser{record: record}, stubDetector{})
	out, _ = missing.Process(context.Background(), image.NewRGBA(image.Rect(0, 0, 10, 10)))
	if out.QR != "" {
		t.Errorf("Expected empty QR, got %q", out.QR)
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry(NewFrontStrategy(stubExtractor{}), NewBackStrategy(stubParser{}, stubDetector{}))

	for _, side := range []models.DocumentSide{models.SideFront, models.SideBack} {
		s, err := r.For(side)
		if err != nil || s.Side() != side {
			t.Errorf("Expected %s strategy, got %v (%v)", side, s, err)
		}
	}
	if _, err := r.For("edge"); err == nil {
		t.Error("Expected error for unknown side")
	}
}
