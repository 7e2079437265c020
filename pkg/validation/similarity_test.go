package validation

import (
	"math"
	"testing"
)

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestSimilarity(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"12345678", "12345678", 1},
		{"", "", 1},
		{"abcd", "", 0},
		{"abcd", "bcde", 0.75},
		{"901010", "850101", 2.0 * 4 / 12},
	}

	for _, tt := range tests {
		if got := Similarity(tt.a, tt.b); !approx(got, tt.want) {
			t.Errorf("Similarity(%q, %q): expected %f, got %f", tt.a, tt.b, tt.want, got)
		}
	}
}

func TestNameSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{"identical", "MARIA", "MARIA", 1},
		{"one substitution", "MARIA", "MXRIA", 0.8},
		{"substitution reversed", "MXRIA", "MARIA", 0.8},
		{"extra trailing char", "JOSE", "JOSEE", 1},
		{"missing char", "MARA", "MARIA", 0.75},
		{"both empty", "", "", 1},
		{"one empty", "", "PEREZ", 0},
		{"unrelated clamps to zero", "ZZZ", "ABCDEFG", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NameSimilarity(tt.a, tt.b)
			if !approx(got, tt.want) {
				t.Errorf("Expected %f, got %f", tt.want, got)
			}
			if got < 0 || got > 1 {
				t.Errorf("Expected score in [0,1], got %f", got)
			}
		})
	}
}

func TestFoldName(t *testing.T) {
	tests := map[string]string{
		"Muñoz Pérez": "MUNOZ PEREZ",
		"MARÍA JOSÉ":  "MARIA JOSE",
		"gonzalez":    "GONZALEZ",
		"":            "",
	}
	for in, want := range tests {
		if got := FoldName(in); got != want {
			t.Errorf("FoldName(%q): expected %q, got %q", in, want, got)
		}
	}
}

func TestDateToMRZ(t *testing.T) {
	tests := map[string]string{
		"12 OCT 2023":   "231012",
		"01 MAYO 1990":  "900501",
		"12 oct 2023":   "231012",
		"05 XYZ 2000":   "000005",
		"312 SEPT 2027": "",
		"garbage":       "",
		"":              "",
	}
	for in, want := range tests {
		if got := DateToMRZ(in); got != want {
			t.Errorf("DateToMRZ(%q): expected %q, got %q", in, want, got)
		}
	}
}

func TestMRZDigits(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"marker then token", "...CHL1234567890A12REST...", "1234567890"},
		{"digits after token", "XXCHL1234567890A12B34C5", "1234567890345"},
		{"spaces and fillers", "INCHL12345 67890<<A12<9", "12345678909"},
		{"short section", "CHL12A", "12"},
		{"no marker", "INARG1234567890", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MRZDigits(tt.raw); got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestSplitSurnames(t *testing.T) {
	tests := []struct {
		paternal, maternal string
		wantP, wantM       string
	}{
		{"GONZALEZXMUNOZ", "", "GONZALEZ", "MUNOZ"},
		{"GONZALEZ", "MUNOZ", "GONZALEZ", "MUNOZ"},
		{"XIMENEZ", "SOTO", "XIMENEZ", "SOTO"},
		{"PEREZ", "", "PEREZ", ""},
	}
	for _, tt := range tests {
		p, m := SplitSurnames(tt.paternal, tt.maternal)
		if p != tt.wantP || m != tt.wantM {
			t.Errorf("SplitSurnames(%q, %q): expected %q/%q, got %q/%q", tt.paternal, tt.maternal, tt.wantP, tt.wantM, p, m)
		}
	}
}

func TestSplitGivenNames(t *testing.T) {
	tests := []struct {
		back, front, want string
	}{
		{"MARIAJOSE", "MARIA JOSE", "MARIA JOSE"},
		{"MARIA JOSE", "MARIA JOSE", "MARIA JOSE"},
		{"MARIAJO", "MARIA JOSE", "MARIA JO"},
		{"JUAN", "JUAN", "JUAN"},
	}
	for _, tt := range tests {
		if got := SplitGivenNames(tt.back, tt.front); got != tt.want {
			t.Errorf("SplitGivenNames(%q, %q): expected %q, got %q", tt.back, tt.front, tt.want, got)
		}
	}
}
