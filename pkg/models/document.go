package models

// DocumentSide identifies which face of the card an image shows.
type DocumentSide string

const (
	SideFront DocumentSide = "front"
	SideBack  DocumentSide = "back"
)

// Keys of the front-side field set.
const (
	FieldPaternalSurname  = "paternal_surname"
	FieldMaternalSurname  = "maternal_surname"
	FieldGivenNames       = "given_names"
	FieldNationality      = "nationality"
	FieldSex              = "sex"
	FieldBirthDate        = "birth_date"
	FieldDocumentNumber   = "document_number"
	FieldIssueDate        = "issue_date"
	FieldExpiryDate       = "expiry_date"
	FieldPersonalIDNumber = "personal_id_number"

	// The personal ID number is stored split in two.
	FieldRUN        = "run"
	FieldCheckDigit = "check_digit"
)

// FieldSet maps field names to normalized values. A field whose
// extraction failed holds the marker produced by FailureMarker.
type FieldSet map[string]string

// FailureMarker is the value stored for a field that could not be read.
func FailureMarker(field string) string {
	return "Error en " + field
}

// FrontResult is the outcome of front-side extraction: either a field
// set or a flash warning, never both.
type FrontResult struct {
	Fields       FieldSet `json:"fields,omitempty"`
	FlashWarning string   `json:"flash_warning,omitempty"`
}

// Flashed reports whether extraction stopped on glare.
func (r FrontResult) Flashed() bool {
	return r.FlashWarning != ""
}

// MRZRecord holds the fields parsed from the back-side machine readable zone.
type MRZRecord struct {
	DocumentNumber  string   `json:"document_number"`
	CodePrefix      string   `json:"code_prefix"`
	RUN             string   `json:"run"`
	CheckDigit      string   `json:"check_digit"`
	BirthDate       string   `json:"birth_date"`
	ExpiryDate      string   `json:"expiry_date"`
	PaternalSurname string   `json:"paternal_surname"`
	MaternalSurname string   `json:"maternal_surname"`
	GivenNames      string   `json:"given_names"`
	Raw             string   `json:"raw"`
	Lines           []string `json:"lines,omitempty"`

	// Warning is set when fewer than three MRZ lines were read.
	Warning string `json:"warning,omitempty"`
	// FlashWarning is set when glare stopped parsing; all other fields are empty.
	FlashWarning string `json:"flash_warning,omitempty"`
}

// QRPayload is the parsed content of the back-side QR code.
type QRPayload struct {
	Raw    string `json:"raw"`
	RUN    string `json:"run"`
	Serial string `json:"serial"`
	MRZ    string `json:"mrz"`
}
