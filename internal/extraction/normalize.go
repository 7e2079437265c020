package extraction

import (
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/anime-shed/idcard-inspector-go/pkg/models"
)

// Rule names the normalizer applied to a field's raw OCR text.
type Rule int

const (
	RuleDefault Rule = iota
	RuleName
	RuleNationality
	RuleSex
	RuleDate
	RuleDigits
	RuleRUN
)

var (
	defaultStrip   = regexp.MustCompile(`[-—.]`)
	nonNameChars   = regexp.MustCompile(`[^A-ZÁÉÍÓÚÑ\s]`)
	threeLetters   = regexp.MustCompile(`[A-Z]{3}`)
	nonSexChars    = regexp.MustCompile(`[^MF]`)
	nonDigits      = regexp.MustCompile(`\D`)
	nonRUNChars    = regexp.MustCompile(`[^0-9-]`)
	nonDateChars   = regexp.MustCompile(`[^A-Za-z0-9\s]`)
	errMalformedID = errors.New("personal id number has no check digit separator")
)

// monthTokens maps the abbreviations printed on the card to their
// canonical spelling.
var monthTokens = map[string]string{
	"ENE":  "ENE",
	"FEB":  "FEB",
	"MAR":  "MAR",
	"ABR":  "ABR",
	"MAY":  "MAYO",
	"MAYO": "MAYO",
	"JUN":  "JUN",
	"JUL":  "JUL",
	"AGO":  "AGO",
	"SEPT": "SEPT",
	"OCT":  "OCT",
	"NOV":  "NOV",
	"DIC":  "DIC",
}

// normalize applies rule to raw and returns the resulting key/value pairs.
// Every rule but RuleRUN yields a single value stored under field.
func normalize(rule Rule, field, raw string) (map[string]string, error) {
	switch rule {
	case RuleName:
		return map[string]string{field: NormalizeName(raw)}, nil
	case RuleNationality:
		return map[string]string{field: NormalizeNationality(raw)}, nil
	case RuleSex:
		return map[string]string{field: NormalizeSex(raw)}, nil
	case RuleDate:
		return map[string]string{field: NormalizeDate(raw)}, nil
	case RuleDigits:
		return map[string]string{field: nonDigits.ReplaceAllString(raw, "")}, nil
	case RuleRUN:
		run, check, err := SplitRUN(raw)
		if err != nil {
			return nil, err
		}
		return map[string]string{models.FieldRUN: run, models.FieldCheckDigit: check}, nil
	default:
		return map[string]string{field: NormalizeDefault(raw)}, nil
	}
}

// NormalizeDefault drops dashes and dots and collapses whitespace.
func NormalizeDefault(raw string) string {
	s := defaultStrip.ReplaceAllString(raw, "")
	return strings.Join(strings.Fields(s), " ")
}

// NormalizeName keeps uppercase (accented) letters and drops one-letter tokens.
func NormalizeName(raw string) string {
	s := nonNameChars.ReplaceAllString(raw, "")
	var kept []string
	for _, tok := range strings.Fields(s) {
		if utf8.RuneCountInString(tok) > 1 {
			kept = append(kept, tok)
		}
	}
	return strings.Join(kept, " ")
}

// NormalizeNationality removes the printed label and reduces the value to
// CHILENA or a three-letter code.
func NormalizeNationality(raw string) string {
	s := strings.TrimSpace(strings.ReplaceAll(raw, "NACIONALIDAD", ""))
	if strings.Contains(s, "CHILENA") {
		return "CHILENA"
	}
	if m := threeLetters.FindString(s); m != "" {
		return m
	}
	return s
}

// NormalizeSex keeps only M and F.
func NormalizeSex(raw string) string {
	return nonSexChars.ReplaceAllString(strings.ToUpper(raw), "")
}

// SplitRUN separates the personal ID number from its check digit.
func SplitRUN(raw string) (run, checkDigit string, err error) {
	s := nonRUNChars.ReplaceAllString(raw, "")
	parts := strings.Split(s, "-")
	if len(parts) < 2 {
		return "", "", errMalformedID
	}
	return parts[0], parts[1], nil
}

// NormalizeDate rewrites OCR'd card dates to "DD MONTH YYYY". The first
// month token anchors the date: the day is the nearest all-digit token
// before it (three digits keep the last two, one digit is zero padded,
// default 01) and the year is the following all-digit token zero padded
// to four (default 0000). Text without a month token is returned cleaned.
func NormalizeDate(raw string) string {
	s := strings.ToUpper(strings.TrimSpace(nonDateChars.ReplaceAllString(raw, "")))
	tokens := strings.Fields(s)

	for i, tok := range tokens {
		month, ok := monthTokens[tok]
		if !ok {
			continue
		}

		day := "01"
	scan:
		for j := i - 1; j >= 0; j-- {
			d := tokens[j]
			if !isDigits(d) {
				continue
			}
			switch len(d) {
			case 3:
				day = d[1:]
			case 2:
				day = d
			case 1:
				day = "0" + d
			default:
				continue
			}
			break scan
		}

		year := "0000"
		if i+1 < len(tokens) && isDigits(tokens[i+1]) {
			year = zeroPad(tokens[i+1], 4)
		}
		return day + " " + month + " " + year
	}
	return s
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func zeroPad(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return strings.Repeat("0", width-len(s)) + s
}
