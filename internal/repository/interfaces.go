// Package repository gives the service access to input images and to the
// history of validation reports.
package repository

import (
	"context"
	"image"

	"github.com/anime-shed/idcard-inspector-go/pkg/models"
)

// ImageRepository retrieves card photographs referenced by URL.
type ImageRepository interface {
	FetchImage(ctx context.Context, imageURL string) (image.Image, error)
}

// ValidationRepository stores validation reports.
type ValidationRepository interface {
	Save(ctx context.Context, report models.ValidationReport) error
	Get(ctx context.Context, id string) (models.ValidationReport, error)
	// History returns the most recent reports, newest first.
	History(ctx context.Context, limit int) ([]models.ValidationReport, error)
	Close() error
}
