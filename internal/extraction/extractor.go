// Package extraction reads the printed fields of an aligned front image.
package extraction

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/anime-shed/idcard-inspector-go/internal/analyzer"
	"github.com/anime-shed/idcard-inspector-go/internal/imaging"
	"github.com/anime-shed/idcard-inspector-go/internal/logger"
	"github.com/anime-shed/idcard-inspector-go/internal/ocr"
	"github.com/anime-shed/idcard-inspector-go/pkg/models"
)

// FieldSpec locates one field in the front template's pixel space.
type FieldSpec struct {
	Name      string
	Rect      image.Rectangle
	BlockSize int
	Mode      ocr.Mode
	Rule      Rule
}

// FrontFields returns the field layout of the front template.
func FrontFields(lang string) []FieldSpec {
	block := ocr.BlockMode(lang)
	return []FieldSpec{
		{models.FieldPaternalSurname, image.Rect(250, 90, 800, 120), 55, block, RuleName},
		{models.FieldMaternalSurname, image.Rect(250, 115, 800, 150), 55, block, RuleName},
		{models.FieldGivenNames, image.Rect(250, 165, 900, 200), 55, block, RuleName},
		{models.FieldNationality, image.Rect(250, 220, 460, 265), 55, block, RuleNationality},
		{models.FieldSex, image.Rect(470, 220, 530, 250), 55, block, RuleSex},
		{models.FieldBirthDate, image.Rect(270, 270, 480, 310), 55, block, RuleDate},
		{models.FieldDocumentNumber, image.Rect(470, 270, 665, 320), 95, ocr.WordMode(lang), RuleDigits},
		{models.FieldIssueDate, image.Rect(250, 330, 480, 370), 55, block, RuleDate},
		{models.FieldExpiryDate, image.Rect(470, 325, 685, 375), 55, block, RuleDate},
		{models.FieldPersonalIDNumber, image.Rect(10, 450, 275, 510), 55, block, RuleRUN},
	}
}

// Options configures the extractor.
type Options struct {
	Language  string
	AdaptiveC float64
	// DebugDir, when set, receives the binarized region of every field.
	DebugDir string
}

// DefaultOptions returns the settings used for Chilean ID cards.
func DefaultOptions() Options {
	return Options{
		Language:  "spa",
		AdaptiveC: 25,
	}
}

// Extractor is the front-side field extractor.
type Extractor struct {
	engine ocr.Engine
	guard  *analyzer.ExposureGuard
	pool   *analyzer.WorkerPool
	proc   imaging.Processor
	fields []FieldSpec
	opts   Options
}

// NewExtractor wires an extractor. pool may be nil, in which case fields
// are read sequentially.
func NewExtractor(engine ocr.Engine, guard *analyzer.ExposureGuard, pool *analyzer.WorkerPool, opts Options) *Extractor {
	return &Extractor{
		engine: engine,
		guard:  guard,
		pool:   pool,
		proc:   imaging.Native{},
		fields: FrontFields(opts.Language),
		opts:   opts,
	}
}

// WithProcessor replaces the binarization backend.
func (e *Extractor) WithProcessor(p imaging.Processor) *Extractor {
	e.proc = p
	return e
}

// Fields returns the layout the extractor reads.
func (e *Extractor) Fields() []FieldSpec {
	return e.fields
}

type fieldResult struct {
	field  string
	values map[string]string
	err    error
}

// Extract reads every field of an aligned front image. Glare anywhere in
// the union of the field regions aborts with a flash warning naming the
// field that holds most of it. A field that
// fails to read is reported with its failure marker; the rest still succeed.
func (e *Extractor) Extract(ctx context.Context, img image.Image) (models.FrontResult, error) {
	if err := ctx.Err(); err != nil {
		return models.FrontResult{}, err
	}

	regions := make([]image.Rectangle, len(e.fields))
	for i, spec := range e.fields {
		regions[i] = spec.Rect
	}
	if i, glare := e.guard.OverexposedUnion(img, regions); glare {
		spec := e.fields[i]
		logger.WithFields(logrus.Fields{
			"field":  spec.Name,
			"region": spec.Rect.String(),
		}).Warn("Flash glare detected over field")
		return models.FrontResult{FlashWarning: analyzer.FlashWarning(spec.Name)}, nil
	}

	start := time.Now()
	tasks := make([]func() fieldResult, len(e.fields))
	for i, spec := range e.fields {
		spec := spec
		tasks[i] = func() fieldResult {
			return e.readField(ctx, img, spec)
		}
	}
	results := analyzer.RunAll(e.pool, tasks)

	fields := make(models.FieldSet, len(e.fields)+1)
	failed := 0
	for i, r := range results {
		name := e.fields[i].Name
		if r.field == "" {
			r = fieldResult{field: name, err: fmt.Errorf("field task aborted")}
		}
		if r.err != nil {
			failed++
			fields[name] = models.FailureMarker(name)
			logger.WithError(r.err).WithField("field", name).Warn("Field extraction failed")
			continue
		}
		for k, v := range r.values {
			fields[k] = v
		}
	}

	logger.WithFields(logrus.Fields{
		"fields":             len(e.fields),
		"failed":             failed,
		"processing_time_ms": time.Since(start).Milliseconds(),
	}).Info("Front fields extracted")

	return models.FrontResult{Fields: fields}, nil
}

func (e *Extractor) readField(ctx context.Context, img image.Image, spec FieldSpec) (res fieldResult) {
	res.field = spec.Name
	defer func() {
		if r := recover(); r != nil {
			res.values = nil
			res.err = fmt.Errorf("panic reading %s: %v", spec.Name, r)
		}
	}()

	gray := imaging.ToGray(imaging.Crop(img, spec.Rect))
	if gray.Bounds().Empty() {
		res.err = fmt.Errorf("region %s outside image", spec.Rect)
		return res
	}
	binary := e.proc.AdaptiveGaussian(gray, spec.BlockSize, e.opts.AdaptiveC)
	e.dumpRegion(spec.Name, binary)

	text, err := e.engine.Recognize(ctx, binary, spec.Mode)
	if err != nil {
		res.err = fmt.Errorf("ocr %s: %w", spec.Name, err)
		return res
	}

	res.values, res.err = normalize(spec.Rule, spec.Name, text)
	logger.WithFields(logrus.Fields{
		"field": spec.Name,
		"raw":   text,
	}).Debug("Field OCR text")
	return res
}

func (e *Extractor) dumpRegion(name string, img image.Image) {
	if e.opts.DebugDir == "" {
		return
	}
	if err := os.MkdirAll(e.opts.DebugDir, 0o755); err != nil {
		logger.WithError(err).Debug("Cannot create extraction debug dir")
		return
	}
	f, err := os.Create(filepath.Join(e.opts.DebugDir, name+".png"))
	if err != nil {
		logger.WithError(err).Debug("Cannot write extraction debug image")
		return
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		logger.WithError(err).Debug("Cannot encode extraction debug image")
	}
}
