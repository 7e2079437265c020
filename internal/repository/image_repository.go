package repository

import (
	"context"
	"fmt"
	"image"

	"github.com/anime-shed/idcard-inspector-go/internal/storage"
	"github.com/anime-shed/idcard-inspector-go/pkg/validation"
)

// HTTPImageRepository validates URLs and downloads them.
type HTTPImageRepository struct {
	fetcher   storage.ImageFetcher
	validator *validation.URLValidator
}

// NewHTTPImageRepository creates an image repository over fetcher.
func NewHTTPImageRepository(fetcher storage.ImageFetcher, validator *validation.URLValidator) *HTTPImageRepository {
	return &HTTPImageRepository{
		fetcher:   fetcher,
		validator: validator,
	}
}

// FetchImage rejects disallowed URLs before any network access.
func (r *HTTPImageRepository) FetchImage(ctx context.Context, imageURL string) (image.Image, error) {
	parsed, err := r.validator.ValidateImageURL(imageURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidImageURL, err)
	}
	return r.fetcher.FetchImage(ctx, parsed.String())
}

var _ ImageRepository = (*HTTPImageRepository)(nil)
