// Package validation cross-checks the data read from both sides of a card.
package validation

import (
	"context"
	"fmt"
	"image"
	"math"
	"strings"
	"time"

	"github.com/arbovm/levenshtein"
	"github.com/codycollier/wer"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/anime-shed/idcard-inspector-go/internal/face"
	"github.com/anime-shed/idcard-inspector-go/internal/logger"
	"github.com/anime-shed/idcard-inspector-go/internal/qr"
	"github.com/anime-shed/idcard-inspector-go/pkg/models"
)

// ImageLoader resolves a face crop reference to an image.
type ImageLoader interface {
	Load(ctx context.Context, ref string) (image.Image, error)
}

// Options are the acceptance thresholds.
type Options struct {
	SimilarityThreshold   float64
	FaceDistanceThreshold float64
}

// DefaultOptions returns the standard thresholds.
func DefaultOptions() Options {
	return Options{
		SimilarityThreshold:   0.8,
		FaceDistanceThreshold: 1.0,
	}
}

// Engine runs the six validation categories. Every category is evaluated
// on every call; a failure in one never skips another.
type Engine struct {
	loader   ImageLoader
	comparer face.Comparer
	opts     Options
}

// NewEngine creates a validation engine. loader and comparer may be nil,
// in which case the face category always fails.
func NewEngine(loader ImageLoader, comparer face.Comparer, opts Options) *Engine {
	return &Engine{loader: loader, comparer: comparer, opts: opts}
}

// Validate compares front fields, MRZ record, face crops and QR payload.
func (e *Engine) Validate(ctx context.Context, req models.ValidationRequest) models.ValidationReport {
	report := models.ValidationReport{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
	}
	c := &collector{threshold: e.opts.SimilarityThreshold}

	report.Face = e.checkFace(ctx, req, &report)
	report.RUT = c.symmetric(models.CategoryRUT, models.FieldRUN, req.Front[models.FieldRUN], req.Back.RUN)
	report.DocID = c.symmetric(models.CategoryDocID, models.FieldDocumentNumber, req.Front[models.FieldDocumentNumber], req.Back.DocumentNumber)
	report.Dates = checkDates(c, req)
	report.Names = checkNames(c, req)
	report.QR, report.QRReason = checkQR(c, req)
	report.Comparisons = c.comparisons

	logger.WithFields(logrus.Fields{
		"report_id": report.ID,
		"failed":    report.FailedChecks(),
	}).Info("Validation completed")
	return report
}

func (e *Engine) checkFace(ctx context.Context, req models.ValidationRequest, report *models.ValidationReport) bool {
	if e.loader == nil || e.comparer == nil {
		report.FaceError = "face comparison unavailable"
		return false
	}

	a, err := e.loader.Load(ctx, req.FaceImageA)
	if err != nil {
		report.FaceError = fmt.Sprintf("load %s: %v", req.FaceImageA, err)
		return false
	}
	b, err := e.loader.Load(ctx, req.FaceImageB)
	if err != nil {
		report.FaceError = fmt.Sprintf("load %s: %v", req.FaceImageB, err)
		return false
	}

	distance, err := e.comparer.Distance(ctx, a, b)
	if err != nil {
		report.FaceError = err.Error()
		logger.WithError(err).Warn("Face comparison failed")
		return false
	}
	report.FaceDistance = distance
	return distance < e.opts.FaceDistanceThreshold
}

func checkDates(c *collector, req models.ValidationRequest) bool {
	birth := c.symmetric(models.CategoryDates, models.FieldBirthDate, DateToMRZ(req.Front[models.FieldBirthDate]), req.Back.BirthDate)
	expiry := c.symmetric(models.CategoryDates, models.FieldExpiryDate, DateToMRZ(req.Front[models.FieldExpiryDate]), req.Back.ExpiryDate)
	return birth && expiry
}

func checkNames(c *collector, req models.ValidationRequest) bool {
	paternalFront := FoldName(req.Front[models.FieldPaternalSurname])
	maternalFront := FoldName(req.Front[models.FieldMaternalSurname])
	givenFront := FoldName(req.Front[models.FieldGivenNames])

	paternalBack, maternalBack := SplitSurnames(FoldName(req.Back.PaternalSurname), FoldName(req.Back.MaternalSurname))
	givenBack := SplitGivenNames(FoldName(req.Back.GivenNames), givenFront)

	paternal := c.names(models.FieldPaternalSurname, paternalFront, paternalBack)
	maternal := c.names(models.FieldMaternalSurname, maternalFront, maternalBack)
	given := c.names(models.FieldGivenNames, givenFront, givenBack)
	return paternal && maternal && given
}

// SplitSurnames recovers a maternal surname fused into the paternal one.
// OCR reads the MRZ filler between surnames as "X", so when the maternal
// surname is missing the paternal one is split at its first X.
func SplitSurnames(paternal, maternal string) (string, string) {
	if maternal != "" {
		return paternal, maternal
	}
	if i := strings.Index(paternal, "X"); i >= 0 {
		return paternal[:i], paternal[i+1:]
	}
	return paternal, maternal
}

// SplitGivenNames splits fused back-side given names using the lengths of
// the front-side tokens. Names that already contain a space are returned
// unchanged.
func SplitGivenNames(back, front string) string {
	if strings.Contains(back, " ") {
		return back
	}
	chars := []rune(back)
	tokens := strings.Split(front, " ")
	parts := make([]string, 0, len(tokens))
	start := 0
	for _, tok := range tokens {
		end := start + len([]rune(tok))
		parts = append(parts, string(chars[min(start, len(chars)):min(end, len(chars))]))
		start = end
	}
	return strings.Join(parts, " ")
}

func checkQR(c *collector, req models.ValidationRequest) (bool, string) {
	payload, err := qr.Parse(req.QR)
	if err != nil {
		return false, models.QRReasonInvalidFormat
	}

	mrzDigits := MRZDigits(req.Back.Raw)
	ok := c.symmetric(models.CategoryQR, "run_front", payload.RUN, req.Front[models.FieldRUN])
	ok = c.symmetric(models.CategoryQR, "run_back", payload.RUN, req.Back.RUN) && ok
	ok = c.symmetric(models.CategoryQR, "serial_front", payload.Serial, req.Front[models.FieldDocumentNumber]) && ok
	ok = c.symmetric(models.CategoryQR, "serial_back", payload.Serial, req.Back.DocumentNumber) && ok
	ok = c.symmetric(models.CategoryQR, "mrz", payload.MRZ, mrzDigits) && ok

	if ok {
		return true, models.QRReasonMatch
	}
	return false, models.QRReasonMismatch
}

// collector scores pairs against the threshold and records diagnostics.
type collector struct {
	threshold   float64
	comparisons []models.Comparison
}

func (c *collector) symmetric(category, field, left, right string) bool {
	return c.record(category, field, left, right, Similarity(left, right), false)
}

func (c *collector) names(field, front, back string) bool {
	return c.record(models.CategoryNames, field, front, back, NameSimilarity(front, back), true)
}

func (c *collector) record(category, field, left, right string, score float64, words bool) bool {
	cmp := models.Comparison{
		Category:     category,
		Field:        field,
		Left:         left,
		Right:        right,
		Similarity:   score,
		EditDistance: levenshtein.Distance(left, right),
		Passed:       score >= c.threshold,
	}
	if words {
		cmp.WordErrorRate = wordErrorRate(left, right)
	}
	c.comparisons = append(c.comparisons, cmp)

	logger.WithFields(logrus.Fields{
		"category":   category,
		"field":      field,
		"similarity": score,
	}).Debug("Compared")
	return cmp.Passed
}

func wordErrorRate(reference, candidate string) float64 {
	ref := strings.Fields(reference)
	if len(ref) == 0 {
		return 0
	}
	rate, _ := wer.WER(ref, strings.Fields(candidate))
	if math.IsNaN(rate) || math.IsInf(rate, 0) {
		return 0
	}
	return rate
}
