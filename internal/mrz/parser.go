// Package mrz reads the machine readable zone printed on the back of the card.
package mrz

import (
	"context"
	"fmt"
	"image"
	"regexp"
	"strings"
	"unicode"

	"github.com/sirupsen/logrus"

	"github.com/anime-shed/idcard-inspector-go/internal/analyzer"
	"github.com/anime-shed/idcard-inspector-go/internal/imaging"
	"github.com/anime-shed/idcard-inspector-go/internal/logger"
	"github.com/anime-shed/idcard-inspector-go/internal/ocr"
	"github.com/anime-shed/idcard-inspector-go/pkg/models"
)

// Band is the MRZ location in the back template's pixel space.
var Band = image.Rect(30, 345, 810, 490)

// MissingLinesWarning is reported when fewer than three lines were read.
const MissingLinesWarning = "could not identify three MRZ lines"

const (
	upscaleFactor = 5
	minLineChars  = 11
)

var (
	lineTwoPattern = regexp.MustCompile(`([A-Z0-9]{3})(\d+)<(\w)`)
	sixDigits      = regexp.MustCompile(`\d{6}`)
	digitsOnly     = regexp.MustCompile(`\D`)
)

// Parser turns an aligned back image into an MRZ record.
type Parser struct {
	engine ocr.Engine
	guard  *analyzer.ExposureGuard
	proc   imaging.Processor
	mode   ocr.Mode
}

// NewParser creates a parser reading with the given MRZ language model.
func NewParser(engine ocr.Engine, guard *analyzer.ExposureGuard, language string) *Parser {
	return &Parser{
		engine: engine,
		guard:  guard,
		proc:   imaging.Native{},
		mode:   ocr.AutoMode(language),
	}
}

// WithProcessor replaces the binarization and upscaling backend.
func (p *Parser) WithProcessor(proc imaging.Processor) *Parser {
	p.proc = proc
	return p
}

// Parse reads the MRZ band of an aligned back image. Glare over the band
// yields a record carrying only a flash warning.
func (p *Parser) Parse(ctx context.Context, img image.Image) (models.MRZRecord, error) {
	if p.guard.Overexposed(img, Band) {
		logger.WithField("region", Band.String()).Warn("Flash glare detected over MRZ")
		return models.MRZRecord{FlashWarning: analyzer.FlashWarning("MRZ")}, nil
	}

	gray := imaging.ToGray(imaging.Crop(img, Band))
	if gray.Bounds().Empty() {
		return models.MRZRecord{}, fmt.Errorf("mrz band %s outside image", Band)
	}
	prepared := p.proc.UpscaleCubic(p.proc.Otsu(gray), upscaleFactor)

	text, err := p.engine.Recognize(ctx, prepared, p.mode)
	if err != nil {
		return models.MRZRecord{}, fmt.Errorf("mrz ocr: %w", err)
	}

	record := ParseText(text)
	logger.WithFields(logrus.Fields{
		"lines":   len(record.Lines),
		"warning": record.Warning,
	}).Info("MRZ parsed")
	return record, nil
}

// ParseText parses raw OCR output of the MRZ band. Fewer than three
// usable lines yields a record carrying only the warning.
func ParseText(text string) models.MRZRecord {
	lines := Lines(text)
	if len(lines) < 3 {
		return models.MRZRecord{Warning: MissingLinesWarning}
	}

	record := models.MRZRecord{
		Raw:   strings.Join(lines, " "),
		Lines: lines[:3],
	}
	record.DocumentNumber = parseDocumentNumber(lines[0])
	record.CodePrefix, record.RUN, record.CheckDigit = parseIdentity(lines[1])
	record.BirthDate, record.ExpiryDate = parseDates(lines[1])
	record.PaternalSurname, record.MaternalSurname, record.GivenNames = parseNames(lines[2])
	return record
}

// Lines cleans OCR output: '/' is read as '7' and lines with ten or fewer
// non-whitespace characters are dropped.
func Lines(text string) []string {
	text = strings.ReplaceAll(text, "/", "7")
	var out []string
	for _, line := range strings.Split(text, "\n") {
		n := 0
		for _, r := range line {
			if !unicode.IsSpace(r) {
				n++
			}
		}
		if n >= minLineChars {
			out = append(out, line)
		}
	}
	return out
}

func parseDocumentNumber(line string) string {
	digits := digitsOnly.ReplaceAllString(line, "")
	if len(digits) > 9 {
		digits = digits[:9]
	}
	return digits
}

// parseIdentity extracts the three-character code prefix (with letter
// confusions corrected), the RUN and its check digit from line two.
func parseIdentity(line string) (prefix, run, check string) {
	m := lineTwoPattern.FindStringSubmatch(line)
	if m == nil {
		return "", "", ""
	}
	return CorrectLetters(m[1]), m[2], m[3]
}

// CorrectLetters maps digits OCR commonly confuses with letters
// (0→O, 1→I, 5→S) and turns any other non-letter into O.
func CorrectLetters(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '0':
			r = 'O'
		case '1':
			r = 'I'
		case '5':
			r = 'S'
		}
		if !unicode.IsLetter(r) {
			r = 'O'
		}
		b.WriteRune(r)
	}
	return b.String()
}

func parseDates(line string) (birth, expiry string) {
	runes := []rune(line)
	split := 8
	if len(runes) < split {
		split = len(runes)
	}
	birth = sixDigits.FindString(string(runes[:split]))
	expiry = sixDigits.FindString(string(runes[split:]))
	return birth, expiry
}

func parseNames(line string) (paternal, maternal, given string) {
	parts := strings.Split(line, "<<")
	surnames := strings.Fields(strings.ReplaceAll(parts[0], "<", " "))
	if len(surnames) > 0 {
		paternal = surnames[0]
	}
	if len(surnames) > 1 {
		maternal = surnames[1]
	}
	if len(parts) > 1 {
		given = strings.Join(strings.Fields(strings.ReplaceAll(parts[1], "<", " ")), " ")
	}
	return paternal, maternal, given
}
