package repository

import "errors"

var (
	// ErrReportNotFound is returned when no report has the requested ID.
	ErrReportNotFound = errors.New("validation report not found")

	// ErrInvalidImageURL indicates an image URL was rejected before fetching.
	ErrInvalidImageURL = errors.New("invalid image URL")
)
