package extraction

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/anime-shed/idcard-inspector-go/internal/analyzer"
	"github.com/anime-shed/idcard-inspector-go/internal/ocr"
	"github.com/anime-shed/idcard-inspector-go/pkg/models"
)

// regionEngine answers OCR calls by the size of the region it is given;
// every front field has a distinct size.
type regionEngine struct {
	mu    sync.Mutex
	texts map[image.Point]string
	fail  map[image.Point]bool
	modes map[image.Point]ocr.Mode
}

func newRegionEngine(t *testing.T, texts map[string]string) *regionEngine {
	t.Helper()
	e := &regionEngine{
		texts: map[image.Point]string{},
		fail:  map[image.Point]bool{},
		modes: map[image.Point]ocr.Mode{},
	}
	for _, spec := range FrontFields("spa") {
		size := spec.Rect.Size()
		if _, dup := e.texts[size]; dup {
			t.Fatalf("duplicate region size %v", size)
		}
		e.texts[size] = texts[spec.Name]
	}
	return e
}

func (e *regionEngine) failField(name string) {
	for _, spec := range FrontFields("spa") {
		if spec.Name == name {
			e.fail[spec.Rect.Size()] = true
		}
	}
}

func (e *regionEngine) Recognize(ctx context.Context, img image.Image, mode ocr.Mode) (string, error) {
	size := img.Bounds().Size()
	e.mu.Lock()
	defer e.mu.Unlock()
	e.modes[size] = mode
	if e.fail[size] {
		return "", fmt.Errorf("engine error")
	}
	return e.texts[size], nil
}

func createFrontImage(c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 1000, 630))
	for y := 0; y < 630; y++ {
		for x := 0; x < 1000; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func sampleTexts() map[string]string {
	return map[string]string{
		models.FieldPaternalSurname:  "GONZALEZ",
		models.FieldMaternalSurname:  "MUÑOZ",
		models.FieldGivenNames:       "MARIA JOSE",
		models.FieldNationality:      "NACIONALIDAD CHILENA",
		models.FieldSex:              "F",
		models.FieldBirthDate:        "12 OCT 1990",
		models.FieldDocumentNumber:   "123.456.789",
		models.FieldIssueDate:        "1 MAR 2020",
		models.FieldExpiryDate:       "312 SEPT 2030",
		models.FieldPersonalIDNumber: "12.345.678-5",
	}
}

func newTestExtractor(engine ocr.Engine, opts Options) (*Extractor, *analyzer.WorkerPool) {
	pool := analyzer.NewWorkerPool(4)
	pool.Start()
	guard := analyzer.NewExposureGuard(analyzer.DefaultExposureOptions())
	return NewExtractor(engine, guard, pool, opts), pool
}

func TestFrontFields_Layout(t *testing.T) {
	fields := FrontFields("spa")
	if len(fields) != 10 {
		t.Fatalf("Expected 10 fields, got %d", len(fields))
	}
	for _, f := range fields {
		if f.Name == models.FieldDocumentNumber {
			if f.BlockSize != 95 || f.Mode.PageSegMode != ocr.PSMSingleWord {
				t.Errorf("Expected document number to use block 95 and word mode, got %d/%d", f.BlockSize, f.Mode.PageSegMode)
			}
			continue
		}
		if f.BlockSize != 55 || f.Mode.PageSegMode != ocr.PSMSingleBlock {
			t.Errorf("%s: expected block 55 and block mode, got %d/%d", f.Name, f.BlockSize, f.Mode.PageSegMode)
		}
	}
}

func TestExtractor_Extract(t *testing.T) {
	engine := newRegionEngine(t, sampleTexts())
	ex, pool := newTestExtractor(engine, DefaultOptions())
	defer pool.Close()

	result, err := ex.Extract(context.Background(), createFrontImage(color.RGBA{128, 128, 128, 255}))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if result.Flashed() {
		t.Fatalf("Did not expect a flash warning: %s", result.FlashWarning)
	}

	expected := models.FieldSet{
		models.FieldPaternalSurname: "GONZALEZ",
		models.FieldMaternalSurname: "MUÑOZ",
		models.FieldGivenNames:      "MARIA JOSE",
		models.FieldNationality:     "CHILENA",
		models.FieldSex:             "F",
		models.FieldBirthDate:       "12 OCT 1990",
		models.FieldDocumentNumber:  "123456789",
		models.FieldIssueDate:       "01 MAR 2020",
		models.FieldExpiryDate:      "12 SEPT 2030",
		models.FieldRUN:             "12345678",
		models.FieldCheckDigit:      "5",
	}
	if len(result.Fields) != len(expected) {
		t.Errorf("Expected %d fields, got %d: %v", len(expected), len(result.Fields), result.Fields)
	}
	for k, v := range expected {
		if result.Fields[k] != v {
			t.Errorf("%s: expected %q, got %q", k, v, result.Fields[k])
		}
	}
}

func TestExtractor_FieldFailureIsolated(t *testing.T) {
	texts := sampleTexts()
	texts[models.FieldPersonalIDNumber] = "123456785"
	engine := newRegionEngine(t, texts)
	engine.failField(models.FieldGivenNames)

	ex, pool := newTestExtractor(engine, DefaultOptions())
	defer pool.Close()

	result, err := ex.Extract(context.Background(), createFrontImage(color.RGBA{128, 128, 128, 255}))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if got := result.Fields[models.FieldGivenNames]; got != "Error en given_names" {
		t.Errorf("Expected failure marker for given names, got %q", got)
	}
	if got := result.Fields[models.FieldPersonalIDNumber]; got != "Error en personal_id_number" {
		t.Errorf("Expected failure marker for malformed id, got %q", got)
	}
	if _, ok := result.Fields[models.FieldRUN]; ok {
		t.Error("Did not expect a RUN for a malformed id")
	}
	if result.Fields[models.FieldPaternalSurname] != "GONZALEZ" {
		t.Errorf("Expected other fields to succeed, got %v", result.Fields)
	}
}

func TestExtractor_PanicIsolated(t *testing.T) {
	engine := ocr.EngineFunc(func(ctx context.Context, img image.Image, mode ocr.Mode) (string, error) {
		if mode.PageSegMode == ocr.PSMSingleWord {
			panic("engine crashed")
		}
		return "X", nil
	})
	ex := NewExtractor(engine, analyzer.NewExposureGuard(analyzer.DefaultExposureOptions()), nil, DefaultOptions())

	result, err := ex.Extract(context.Background(), createFrontImage(color.RGBA{128, 128, 128, 255}))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if got := result.Fields[models.FieldDocumentNumber]; got != "Error en document_number" {
		t.Errorf("Expected failure marker, got %q", got)
	}
}

func TestExtractor_FlashWarning(t *testing.T) {
	engine := newRegionEngine(t, sampleTexts())
	ex, pool := newTestExtractor(engine, DefaultOptions())
	defer pool.Close()

	img := createFrontImage(color.RGBA{128, 128, 128, 255})
	// 30x20 glare blob inside the nationality region
	for y := 230; y < 250; y++ {
		for x := 300; x < 330; x++ {
			img.Set(x, y, color.RGBA{255, 255, 255, 255})
		}
	}

	result, err := ex.Extract(context.Background(), img)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !result.Flashed() {
		t.Fatal("Expected flash warning")
	}
	if !strings.Contains(result.FlashWarning, models.FieldNationality) {
		t.Errorf("Expected warning to name nationality, got %q", result.FlashWarning)
	}
	if len(result.Fields) != 0 {
		t.Errorf("Expected no fields with a flash warning, got %v", result.Fields)
	}
}

func TestExtractor_SmallGlareIgnored(t *testing.T) {
	engine := newRegionEngine(t, sampleTexts())
	ex, pool := newTestExtractor(engine, DefaultOptions())
	defer pool.Close()

	img := createFrontImage(color.RGBA{128, 128, 128, 255})
	// 20x20 glare blob, under the area threshold
	for y := 230; y < 250; y++ {
		for x := 300; x < 320; x++ {
			img.Set(x, y, color.RGBA{255, 255, 255, 255})
		}
	}

	result, err := ex.Extract(context.Background(), img)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if result.Flashed() {
		t.Errorf("Did not expect flash warning, got %q", result.FlashWarning)
	}
}

func TestExtractor_GlareAcrossAdjacentFields(t *testing.T) {
	engine := newRegionEngine(t, sampleTexts())
	ex, pool := newTestExtractor(engine, DefaultOptions())
	defer pool.Close()

	img := createFrontImage(color.RGBA{128, 128, 128, 255})
	// 20x40 blob over both surname regions; each region alone sees less
	// than the area threshold
	for y := 100; y < 140; y++ {
		for x := 300; x < 320; x++ {
			img.Set(x, y, color.RGBA{255, 255, 255, 255})
		}
	}

	result, err := ex.Extract(context.Background(), img)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !result.Flashed() {
		t.Fatal("Expected flash warning for glare spanning two fields")
	}
	if !strings.Contains(result.FlashWarning, models.FieldMaternalSurname) {
		t.Errorf("Expected warning to name %s, got %q", models.FieldMaternalSurname, result.FlashWarning)
	}
	if len(result.Fields) != 0 {
		t.Errorf("Expected no fields with a flash warning, got %v", result.Fields)
	}
}

func TestExtractor_CancelledContext(t *testing.T) {
	ex := NewExtractor(newRegionEngine(t, sampleTexts()), analyzer.NewExposureGuard(analyzer.DefaultExposureOptions()), nil, DefaultOptions())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := ex.Extract(ctx, createFrontImage(color.Black)); err == nil {
		t.Error("Expected error for cancelled context")
	}
}

func TestExtractor_DebugDump(t *testing.T) {
	dir := t.TempDir()
	opts := DefaultOptions()
	opts.DebugDir = dir
	ex := NewExtractor(newRegionEngine(t, sampleTexts()), analyzer.NewExposureGuard(analyzer.DefaultExposureOptions()), nil, opts)

	if _, err := ex.Extract(context.Background(), createFrontImage(color.RGBA{128, 128, 128, 255})); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, models.FieldSex+".png")); err != nil {
		t.Errorf("Expected debug dump for sex field: %v", err)
	}
}
