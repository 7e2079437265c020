package storage

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 3))); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func fastOptions() FetcherOptions {
	opts := DefaultFetcherOptions()
	opts.Backoff = time.Millisecond
	return opts
}

func TestHTTPImageFetcher_RetryLogic(t *testing.T) {
	tests := []struct {
		name          string
		responses     []int
		expectCalls   int32
		expectError   bool
		errorContains string
	}{
		{"success on first attempt", []int{200}, 1, false, ""},
		{"success after 5xx", []int{500, 200}, 2, false, ""},
		{"4xx is final", []int{404}, 1, true, "status code 404"},
		{"4xx after 5xx stops", []int{500, 404}, 2, true, "status code 404"},
		{"all 5xx exhaust attempts", []int{500, 502, 503}, 3, true, "server error: status code 503"},
	}

	data := pngBytes(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				n := int(calls.Add(1)) - 1
				if n >= len(tt.responses) {
					w.WriteHeader(http.StatusInternalServerError)
					return
				}
				if tt.responses[n] == http.StatusOK {
					w.Header().Set("Content-Type", "image/png")
					w.Write(data)
					return
				}
				w.WriteHeader(tt.responses[n])
				fmt.Fprintf(w, "Error %d", tt.responses[n])
			}))
			defer server.Close()

			img, err := NewHTTPImageFetcher(fastOptions()).FetchImage(context.Background(), server.URL)

			if calls.Load() != tt.expectCalls {
				t.Errorf("Expected %d requests, got %d", tt.expectCalls, calls.Load())
			}
			if tt.expectError {
				if err == nil {
					t.Fatal("Expected error, got none")
				}
				if !strings.Contains(err.Error(), tt.errorContains) {
					t.Errorf("Expected error to contain %q, got %q", tt.errorContains, err.Error())
				}
				return
			}
			if err != nil {
				t.Fatalf("Expected no error, got %v", err)
			}
			if img.Bounds().Dx() != 4 {
				t.Errorf("Expected 4px wide image, got %v", img.Bounds())
			}
		})
	}
}

func TestHTTPImageFetcher_NetworkErrorRetry(t *testing.T) {
	var calls atomic.Int32
	data := pngBytes(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			if hj, ok := w.(http.Hijacker); ok {
				conn, _, _ := hj.Hijack()
				conn.Close()
			}
			return
		}
		w.Write(data)
	}))
	defer server.Close()

	if _, err := NewHTTPImageFetcher(fastOptions()).FetchImage(context.Background(), server.URL); err != nil {
		t.Fatalf("Expected success after retries, got %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("Expected 3 requests, got %d", calls.Load())
	}
}

func TestHTTPImageFetcher_NotAnImage(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte("<html>not an image</html>"))
	}))
	defer server.Close()

	_, err := NewHTTPImageFetcher(fastOptions()).FetchImage(context.Background(), server.URL)
	if err == nil || !strings.Contains(err.Error(), "decode") {
		t.Errorf("Expected decode error, got %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("Expected undecodable body not to be retried, got %d requests", calls.Load())
	}
}

func TestHTTPImageFetcher_ContextCancelledDuringBackoff(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	opts := DefaultFetcherOptions()
	opts.Backoff = time.Hour
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	if _, err := NewHTTPImageFetcher(opts).FetchImage(ctx, server.URL); err == nil {
		t.Fatal("Expected error")
	}
	if time.Since(start) > 5*time.Second {
		t.Error("Expected cancellation to interrupt the backoff")
	}
}
