package models

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// URLRequest asks the service to fetch the image from a URL instead of an upload.
type URLRequest struct {
	URL string `json:"url" form:"url"`
}

// FrontResponse is returned by the front upload endpoint.
type FrontResponse struct {
	Text          FieldSet `json:"text"`
	FlashWarning  string   `json:"flash_warning,omitempty"`
	ImagePath     string   `json:"temp_image_path"`
	FaceImagePath string   `json:"face1_temp_path,omitempty"`
	GhostFacePath string   `json:"face2_temp_path,omitempty"`
}

// BackResponse is returned by the back upload endpoint.
type BackResponse struct {
	QR        string    `json:"qr"`
	Text      MRZRecord `json:"text"`
	ImagePath string    `json:"temp_image_path"`
}

// ValidationResponse wraps a report with its overall verdict.
type ValidationResponse struct {
	ValidationReport
	Success      bool     `json:"success"`
	FailedChecks []string `json:"failed_checks,omitempty"`
}

// CounterSnapshot is the current success/failure tally.
type CounterSnapshot struct {
	Success int64 `json:"success"`
	Failure int64 `json:"failure"`
}
