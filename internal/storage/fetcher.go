package storage

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"time"
)

// ImageFetcher downloads card photographs from remote URLs.
type ImageFetcher interface {
	FetchImage(ctx context.Context, imageURL string) (image.Image, error)
}

// FetcherOptions tune the HTTP fetcher.
type FetcherOptions struct {
	Timeout  time.Duration
	MaxBytes int64
	Attempts int
	Backoff  time.Duration
}

// DefaultFetcherOptions returns three attempts with a linear one second
// backoff and a 10MB body cap.
func DefaultFetcherOptions() FetcherOptions {
	return FetcherOptions{
		Timeout:  15 * time.Second,
		MaxBytes: 10 << 20,
		Attempts: 3,
		Backoff:  time.Second,
	}
}

// HTTPImageFetcher retries transient failures; 4xx responses are final.
type HTTPImageFetcher struct {
	client *http.Client
	opts   FetcherOptions
}

// NewHTTPImageFetcher creates an HTTP image fetcher.
func NewHTTPImageFetcher(opts FetcherOptions) *HTTPImageFetcher {
	if opts.Attempts < 1 {
		opts.Attempts = 1
	}
	transport := &http.Transport{
		MaxIdleConns:           10,
		MaxIdleConnsPerHost:    2,
		IdleConnTimeout:        30 * time.Second,
		TLSHandshakeTimeout:    10 * time.Second,
		ResponseHeaderTimeout:  10 * time.Second,
		ExpectContinueTimeout:  1 * time.Second,
		MaxResponseHeaderBytes: 4096,
	}

	return &HTTPImageFetcher{
		client: &http.Client{
			Transport: transport,
			Timeout:   opts.Timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return fmt.Errorf("too many redirects (limit: 3)")
				}
				return nil
			},
		},
		opts: opts,
	}
}

// errClient marks responses that must not be retried.
var errClient = errors.New("client error")

func (h *HTTPImageFetcher) FetchImage(ctx context.Context, imageURL string) (image.Image, error) {
	var lastErr error
	for attempt := 0; attempt < h.opts.Attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * h.opts.Backoff):
			}
		}

		img, err := h.fetchOnce(ctx, imageURL)
		if err == nil {
			return img, nil
		}
		lastErr = err
		if errors.Is(err, errClient) || ctx.Err() != nil {
			break
		}
	}
	return nil, fmt.Errorf("failed to fetch image after %d attempts: %w", h.opts.Attempts, lastErr)
}

func (h *HTTPImageFetcher) fetchOnce(ctx context.Context, imageURL string) (image.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid URL: %v", errClient, err)
	}
	req.Header.Set("Accept", "image/jpeg, image/png, */*")
	req.Header.Set("User-Agent", "idcard-inspector/1.0")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return nil, fmt.Errorf("%w: status code %d", errClient, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("server error: status code %d", resp.StatusCode)
	}

	body := io.Reader(resp.Body)
	if h.opts.MaxBytes > 0 {
		body = io.LimitReader(resp.Body, h.opts.MaxBytes)
	}
	img, _, err := image.Decode(body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decode image: %v", errClient, err)
	}
	return img, nil
}
