package models

import "time"

// Validation categories, in report order.
const (
	CategoryFace  = "face"
	CategoryRUT   = "rut"
	CategoryDocID = "doc_id"
	CategoryDates = "dates"
	CategoryNames = "names"
	CategoryQR    = "qr"
)

// Categories lists every validation category in report order.
var Categories = []string{
	CategoryFace,
	CategoryRUT,
	CategoryDocID,
	CategoryDates,
	CategoryNames,
	CategoryQR,
}

// QR reasons.
const (
	QRReasonMatch         = "All data matches correctly"
	QRReasonMismatch      = "Some data in QR does not match front or back data"
	QRReasonInvalidFormat = "QR format invalid"
)

// ValidationRequest carries everything the cross-checks compare.
type ValidationRequest struct {
	Front      FieldSet  `json:"front_data"`
	Back       MRZRecord `json:"back_data"`
	FaceImageA string    `json:"img_1_route"`
	FaceImageB string    `json:"img_2_route"`
	QR         string    `json:"qr"`
}

// Comparison records one pairwise check that fed a category.
type Comparison struct {
	Category      string  `json:"category"`
	Field         string  `json:"field"`
	Left          string  `json:"left"`
	Right         string  `json:"right"`
	Similarity    float64 `json:"similarity"`
	EditDistance  int     `json:"edit_distance"`
	WordErrorRate float64 `json:"word_error_rate,omitempty"`
	Passed        bool    `json:"passed"`
}

// ValidationReport is the per-category outcome of a validation run.
type ValidationReport struct {
	ID        string    `json:"id,omitempty"`
	CreatedAt time.Time `json:"created_at"`

	Face  bool `json:"face"`
	RUT   bool `json:"rut"`
	DocID bool `json:"doc_id"`
	Dates bool `json:"dates"`
	Names bool `json:"names"`
	QR    bool `json:"qr"`

	QRReason     string  `json:"qr_reason"`
	FaceDistance float64 `json:"face_distance,omitempty"`
	FaceError    string  `json:"face_error,omitempty"`

	Comparisons []Comparison `json:"comparisons,omitempty"`
}

// Results maps each category to its outcome.
func (r ValidationReport) Results() map[string]bool {
	return map[string]bool{
		CategoryFace:  r.Face,
		CategoryRUT:   r.RUT,
		CategoryDocID: r.DocID,
		CategoryDates: r.Dates,
		CategoryNames: r.Names,
		CategoryQR:    r.QR,
	}
}

// FailedChecks returns the failing categories in report order.
func (r ValidationReport) FailedChecks() []string {
	results := r.Results()
	var failed []string
	for _, c := range Categories {
		if !results[c] {
			failed = append(failed, c)
		}
	}
	return failed
}

// Success is true when every category passed.
func (r ValidationReport) Success() bool {
	return len(r.FailedChecks()) == 0
}
