package validation

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/pmezard/go-difflib/difflib"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Similarity is the longest-matching-block ratio of a and b: twice the
// number of matched characters over the total length. Two empty strings
// are identical.
func Similarity(a, b string) float64 {
	m := difflib.NewMatcher(strings.Split(a, ""), strings.Split(b, ""))
	return clamp(m.Ratio())
}

// NameSimilarity scores how well the shorter string is contained, in
// order, in the longer one. Each character of the longer string that does
// not continue the match costs one error. A mismatch also consumes a
// reference character when the rest of the longer string is too short to
// cover the remaining reference, so equal-length strings are scored by
// substitutions.
func NameSimilarity(a, b string) float64 {
	ref, long := []rune(a), []rune(b)
	if len(ref) > len(long) {
		ref, long = long, ref
	}
	if len(ref) == 0 {
		if len(long) == 0 {
			return 1
		}
		return 0
	}

	next, errs := 0, 0
	for i, ch := range long {
		if next >= len(ref) {
			break
		}
		if ref[next] == ch {
			next++
			continue
		}
		errs++
		if len(long)-i-1 < len(ref)-next {
			next++
		}
	}
	return clamp(float64(len(ref)-errs) / float64(len(ref)))
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

var foldDiacritics = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// FoldName upper-cases s and strips diacritics.
func FoldName(s string) string {
	out, _, err := transform.String(foldDiacritics, strings.ToUpper(s))
	if err != nil {
		return strings.ToUpper(s)
	}
	return out
}

var (
	frontDatePattern = regexp.MustCompile(`^(\d{2}) (\w+) (\d{4})`)
	letterTwoDigits  = regexp.MustCompile(`[A-Z]\d{2}`)
)

var monthNumbers = map[string]string{
	"ENE":  "01",
	"FEB":  "02",
	"MAR":  "03",
	"ABR":  "04",
	"MAYO": "05",
	"JUN":  "06",
	"JUL":  "07",
	"AGO":  "08",
	"SEPT": "09",
	"OCT":  "10",
	"NOV":  "11",
	"DIC":  "12",
}

// DateToMRZ converts a printed date such as "12 OCT 2023" to the MRZ
// form "231012". Unknown months become "00"; anything that does not look
// like a date yields "".
func DateToMRZ(date string) string {
	m := frontDatePattern.FindStringSubmatch(strings.ToUpper(date))
	if m == nil {
		return ""
	}
	day, month, year := m[1], m[2], m[3]
	num, ok := monthNumbers[month]
	if !ok {
		num = "00"
	}
	return year[2:] + num + day
}

// MRZDigits rebuilds the digit sequence the QR code repeats from the raw
// MRZ text: the first ten characters after "CHL" contribute their digits,
// then one letter-plus-two-digits token is dropped from the remainder and
// its digits follow.
func MRZDigits(raw string) string {
	clean := strings.NewReplacer(" ", "", "<", "").Replace(raw)
	parts := strings.Split(clean, "CHL")
	if len(parts) < 2 {
		return ""
	}
	section := parts[1]

	head, rest := section, ""
	if len(section) > 10 {
		head, rest = section[:10], section[10:]
	}
	if loc := letterTwoDigits.FindStringIndex(rest); loc != nil {
		rest = rest[:loc[0]] + rest[loc[1]:]
	}
	return digits(head) + digits(rest)
}

func digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
