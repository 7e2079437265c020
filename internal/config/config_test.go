package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFromEnv_Defaults(t *testing.T) {
	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("Expected defaults to load, got %v", err)
	}

	if cfg.ServerAddress() != "0.0.0.0:8080" {
		t.Errorf("Expected 0.0.0.0:8080, got %s", cfg.ServerAddress())
	}
	if cfg.Alignment.RatioTest != 0.7 {
		t.Errorf("Expected ratio 0.7, got %g", cfg.Alignment.RatioTest)
	}
	if cfg.Alignment.MinMatches != 20 {
		t.Errorf("Expected 20 min matches, got %d", cfg.Alignment.MinMatches)
	}
	if cfg.Alignment.RansacThreshold != 5.0 {
		t.Errorf("Expected RANSAC threshold 5.0, got %g", cfg.Alignment.RansacThreshold)
	}
	if cfg.Exposure.BrightnessThreshold != 240 || cfg.Exposure.MinContourArea != 500 {
		t.Errorf("Unexpected exposure defaults: %+v", cfg.Exposure)
	}
	if cfg.Validation.SimilarityThreshold != 0.8 || cfg.Validation.FaceDistanceThreshold != 1.0 {
		t.Errorf("Unexpected validation defaults: %+v", cfg.Validation)
	}
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("OCR_TIMEOUT", "3s")
	t.Setenv("SIMILARITY_THRESHOLD", "0.9")
	t.Setenv("ALIGN_MIN_MATCHES", "30")
	t.Setenv("REPOSITORY_BACKEND", "sqlite")
	t.Setenv("ALLOWED_IMAGE_HOSTS", "cdn.example.com, , uploads.example.com")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("Expected config to load, got %v", err)
	}
	if cfg.Port != "9090" {
		t.Errorf("Expected port 9090, got %s", cfg.Port)
	}
	if cfg.OCRTimeout != 3*time.Second {
		t.Errorf("Expected 3s OCR timeout, got %s", cfg.OCRTimeout)
	}
	if cfg.Validation.SimilarityThreshold != 0.9 {
		t.Errorf("Expected 0.9, got %g", cfg.Validation.SimilarityThreshold)
	}
	if cfg.Alignment.MinMatches != 30 {
		t.Errorf("Expected 30, got %d", cfg.Alignment.MinMatches)
	}
	if cfg.RepositoryBackend != "sqlite" {
		t.Errorf("Expected sqlite, got %s", cfg.RepositoryBackend)
	}
	if len(cfg.AllowedImageHosts) != 2 || cfg.AllowedImageHosts[1] != "uploads.example.com" {
		t.Errorf("Expected two allowed hosts, got %v", cfg.AllowedImageHosts)
	}
}

func TestLoadFromEnv_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"bad port", "PORT", "99999"},
		{"non numeric port", "PORT", "http"},
		{"unknown storage", "STORAGE_BACKEND", "s3"},
		{"azure without credentials", "STORAGE_BACKEND", "azure"},
		{"postgres without dsn", "REPOSITORY_BACKEND", "postgres"},
		{"ratio out of range", "ALIGN_RATIO_TEST", "1.5"},
		{"similarity out of range", "SIMILARITY_THRESHOLD", "2"},
		{"no workers", "WORKERS", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			if _, err := LoadFromEnv(); err == nil {
				t.Errorf("Expected error for %s=%s", tt.key, tt.val)
			}
		})
	}
}

func TestLoadFromEnv_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "inspector.toml")
	contents := `
[server]
port = "7070"
ocr_timeout = "4s"

[paths]
front_templates = "/srv/refs/front"

[alignment]
min_matches = 25

[validation]
face_distance_threshold = 0.6
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("PORT", "7171")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("Expected config to load, got %v", err)
	}
	if cfg.Port != "7171" {
		t.Errorf("Expected env to win over file, got %s", cfg.Port)
	}
	if cfg.OCRTimeout != 4*time.Second {
		t.Errorf("Expected 4s, got %s", cfg.OCRTimeout)
	}
	if cfg.FrontTemplateDir != "/srv/refs/front" {
		t.Errorf("Expected front template dir from file, got %s", cfg.FrontTemplateDir)
	}
	if cfg.BackTemplateDir != "references/back" {
		t.Errorf("Expected back template default, got %s", cfg.BackTemplateDir)
	}
	if cfg.Alignment.MinMatches != 25 {
		t.Errorf("Expected 25, got %d", cfg.Alignment.MinMatches)
	}
	if cfg.Validation.FaceDistanceThreshold != 0.6 {
		t.Errorf("Expected 0.6, got %g", cfg.Validation.FaceDistanceThreshold)
	}
}

func TestLoadFromEnv_BadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.toml")
	if err := os.WriteFile(path, []byte("[server\nport = "), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CONFIG_FILE", path)

	if _, err := LoadFromEnv(); err == nil {
		t.Error("Expected parse error")
	}

	t.Setenv("CONFIG_FILE", filepath.Join(dir, "missing.toml"))
	if _, err := LoadFromEnv(); err == nil {
		t.Error("Expected open error")
	}
}
