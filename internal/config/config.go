package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

type Config struct {
	Host               string
	Port               string
	RequestTimeout     time.Duration
	ImageFetchTimeout  time.Duration
	OCRTimeout         time.Duration
	MaxRequestBodySize int64
	AllowedImageHosts  []string
	Workers            int

	FrontTemplateDir   string
	BackTemplateDir    string
	ExtractionDebugDir string

	StorageBackend   string // local | azure
	ArtifactDir      string
	AzureAccountName string
	AzureAccountKey  string
	AzureContainer   string

	RepositoryBackend string // none | sqlite | postgres
	SQLitePath        string
	PostgresDSN       string

	OCRLanguage  string
	MRZLanguage  string
	FaceModelDir string

	Alignment  AlignmentConfig
	Exposure   ExposureConfig
	Validation ValidationConfig
}

// AlignmentConfig holds the feature matching and RANSAC parameters.
type AlignmentConfig struct {
	RatioTest        float64
	MinMatches       int
	RansacThreshold  float64
	RansacIterations int
}

// ExposureConfig controls the flash glare guard.
type ExposureConfig struct {
	BrightnessThreshold int
	MinContourArea      float64
}

// ValidationConfig holds the cross-check acceptance thresholds.
type ValidationConfig struct {
	SimilarityThreshold   float64
	FaceDistanceThreshold float64
}

func (c *Config) ServerAddress() string {
	host := strings.TrimSpace(c.Host)
	port := strings.TrimSpace(c.Port)
	return net.JoinHostPort(host, port)
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Host:               "0.0.0.0",
		Port:               "8080",
		RequestTimeout:     60 * time.Second,
		ImageFetchTimeout:  15 * time.Second,
		OCRTimeout:         10 * time.Second,
		MaxRequestBodySize: 10 * 1024 * 1024, // 10MB
		Workers:            4,

		FrontTemplateDir: "references/front",
		BackTemplateDir:  "references/back",

		StorageBackend: "local",
		ArtifactDir:    os.TempDir(),
		AzureContainer: "artifacts",

		RepositoryBackend: "none",
		SQLitePath:        "validations.db",

		OCRLanguage:  "spa",
		MRZLanguage:  "mrz",
		FaceModelDir: "models",

		Alignment: AlignmentConfig{
			RatioTest:        0.7,
			MinMatches:       20,
			RansacThreshold:  5.0,
			RansacIterations: 2000,
		},
		Exposure: ExposureConfig{
			BrightnessThreshold: 240,
			MinContourArea:      500,
		},
		Validation: ValidationConfig{
			SimilarityThreshold:   0.8,
			FaceDistanceThreshold: 1.0,
		},
	}
}

// LoadFromEnv builds the configuration from defaults, the optional TOML
// file named by CONFIG_FILE, and finally environment variables.
func LoadFromEnv() (*Config, error) {
	cfg := Default()

	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}

	cfg.Host = getEnvOrDefault("HOST", cfg.Host)
	cfg.Port = getEnvOrDefault("PORT", cfg.Port)
	cfg.RequestTimeout = parseDurationOrDefault("REQUEST_TIMEOUT", cfg.RequestTimeout)
	cfg.ImageFetchTimeout = parseDurationOrDefault("IMAGE_FETCH_TIMEOUT", cfg.ImageFetchTimeout)
	cfg.OCRTimeout = parseDurationOrDefault("OCR_TIMEOUT", cfg.OCRTimeout)
	cfg.MaxRequestBodySize = parseIntOrDefault("MAX_REQUEST_BODY_SIZE", cfg.MaxRequestBodySize)
	cfg.AllowedImageHosts = parseListOrDefault("ALLOWED_IMAGE_HOSTS", cfg.AllowedImageHosts)
	cfg.Workers = int(parseIntOrDefault("WORKERS", int64(cfg.Workers)))

	cfg.FrontTemplateDir = getEnvOrDefault("FRONT_TEMPLATE_DIR", cfg.FrontTemplateDir)
	cfg.BackTemplateDir = getEnvOrDefault("BACK_TEMPLATE_DIR", cfg.BackTemplateDir)
	cfg.ExtractionDebugDir = getEnvOrDefault("EXTRACTION_DEBUG_DIR", cfg.ExtractionDebugDir)

	cfg.StorageBackend = getEnvOrDefault("STORAGE_BACKEND", cfg.StorageBackend)
	cfg.ArtifactDir = getEnvOrDefault("ARTIFACT_DIR", cfg.ArtifactDir)
	cfg.AzureAccountName = getEnvOrDefault("AZURE_STORAGE_ACCOUNT", cfg.AzureAccountName)
	cfg.AzureAccountKey = getEnvOrDefault("AZURE_STORAGE_KEY", cfg.AzureAccountKey)
	cfg.AzureContainer = getEnvOrDefault("AZURE_CONTAINER", cfg.AzureContainer)

	cfg.RepositoryBackend = getEnvOrDefault("REPOSITORY_BACKEND", cfg.RepositoryBackend)
	cfg.SQLitePath = getEnvOrDefault("SQLITE_PATH", cfg.SQLitePath)
	cfg.PostgresDSN = getEnvOrDefault("POSTGRES_DSN", cfg.PostgresDSN)

	cfg.OCRLanguage = getEnvOrDefault("OCR_LANGUAGE", cfg.OCRLanguage)
	cfg.MRZLanguage = getEnvOrDefault("MRZ_LANGUAGE", cfg.MRZLanguage)
	cfg.FaceModelDir = getEnvOrDefault("FACE_MODEL_DIR", cfg.FaceModelDir)

	cfg.Alignment.RatioTest = parseFloatOrDefault("ALIGN_RATIO_TEST", cfg.Alignment.RatioTest)
	cfg.Alignment.MinMatches = int(parseIntOrDefault("ALIGN_MIN_MATCHES", int64(cfg.Alignment.MinMatches)))
	cfg.Alignment.RansacThreshold = parseFloatOrDefault("ALIGN_RANSAC_THRESHOLD", cfg.Alignment.RansacThreshold)
	cfg.Alignment.RansacIterations = int(parseIntOrDefault("ALIGN_RANSAC_ITERATIONS", int64(cfg.Alignment.RansacIterations)))
	cfg.Exposure.BrightnessThreshold = int(parseIntOrDefault("EXPOSURE_BRIGHTNESS", int64(cfg.Exposure.BrightnessThreshold)))
	cfg.Exposure.MinContourArea = parseFloatOrDefault("EXPOSURE_MIN_AREA", cfg.Exposure.MinContourArea)
	cfg.Validation.SimilarityThreshold = parseFloatOrDefault("SIMILARITY_THRESHOLD", cfg.Validation.SimilarityThreshold)
	cfg.Validation.FaceDistanceThreshold = parseFloatOrDefault("FACE_DISTANCE_THRESHOLD", cfg.Validation.FaceDistanceThreshold)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks ranges and backend names.
func (c *Config) Validate() error {
	p, err := strconv.Atoi(strings.TrimSpace(c.Port))
	if err != nil || p < 1 || p > 65535 {
		return fmt.Errorf("invalid PORT: %q", c.Port)
	}
	if c.MaxRequestBodySize <= 0 {
		return fmt.Errorf("MAX_REQUEST_BODY_SIZE must be > 0 (got %d)", c.MaxRequestBodySize)
	}
	if c.Workers < 1 {
		return fmt.Errorf("WORKERS must be >= 1 (got %d)", c.Workers)
	}
	if c.RequestTimeout <= 0 || c.ImageFetchTimeout <= 0 || c.OCRTimeout <= 0 {
		return fmt.Errorf("timeouts must be > 0 (got request=%s, fetch=%s, ocr=%s)",
			c.RequestTimeout, c.ImageFetchTimeout, c.OCRTimeout)
	}
	switch c.StorageBackend {
	case "local":
	case "azure":
		if c.AzureAccountName == "" || c.AzureAccountKey == "" {
			return fmt.Errorf("azure storage requires AZURE_STORAGE_ACCOUNT and AZURE_STORAGE_KEY")
		}
	default:
		return fmt.Errorf("unsupported STORAGE_BACKEND: %q", c.StorageBackend)
	}
	switch c.RepositoryBackend {
	case "none", "sqlite":
	case "postgres":
		if c.PostgresDSN == "" {
			return fmt.Errorf("postgres repository requires POSTGRES_DSN")
		}
	default:
		return fmt.Errorf("unsupported REPOSITORY_BACKEND: %q", c.RepositoryBackend)
	}
	if c.Alignment.RatioTest <= 0 || c.Alignment.RatioTest >= 1 {
		return fmt.Errorf("ratio test must be in (0,1) (got %g)", c.Alignment.RatioTest)
	}
	if c.Alignment.MinMatches < 4 {
		return fmt.Errorf("minimum matches must be >= 4 (got %d)", c.Alignment.MinMatches)
	}
	if c.Exposure.BrightnessThreshold < 0 || c.Exposure.BrightnessThreshold > 255 {
		return fmt.Errorf("brightness threshold must be within 0..255 (got %d)", c.Exposure.BrightnessThreshold)
	}
	if c.Validation.SimilarityThreshold < 0 || c.Validation.SimilarityThreshold > 1 {
		return fmt.Errorf("similarity threshold must be within [0,1] (got %g)", c.Validation.SimilarityThreshold)
	}
	return nil
}

// fileConfig mirrors the TOML layout. Durations are Go duration strings.
type fileConfig struct {
	Server struct {
		Host               string   `toml:"host"`
		Port               string   `toml:"port"`
		RequestTimeout     string   `toml:"request_timeout"`
		ImageFetchTimeout  string   `toml:"image_fetch_timeout"`
		OCRTimeout         string   `toml:"ocr_timeout"`
		MaxRequestBodySize int64    `toml:"max_request_body_size"`
		AllowedImageHosts  []string `toml:"allowed_image_hosts"`
		Workers            int      `toml:"workers"`
	} `toml:"server"`
	Paths struct {
		FrontTemplates  string `toml:"front_templates"`
		BackTemplates   string `toml:"back_templates"`
		ExtractionDebug string `toml:"extraction_debug"`
		FaceModels      string `toml:"face_models"`
	} `toml:"paths"`
	Storage struct {
		Backend          string `toml:"backend"`
		ArtifactDir      string `toml:"artifact_dir"`
		AzureAccountName string `toml:"azure_account"`
		AzureAccountKey  string `toml:"azure_key"`
		AzureContainer   string `toml:"azure_container"`
	} `toml:"storage"`
	Repository struct {
		Backend     string `toml:"backend"`
		SQLitePath  string `toml:"sqlite_path"`
		PostgresDSN string `toml:"postgres_dsn"`
	} `toml:"repository"`
	OCR struct {
		Language    string `toml:"language"`
		MRZLanguage string `toml:"mrz_language"`
	} `toml:"ocr"`
	Alignment struct {
		RatioTest        float64 `toml:"ratio_test"`
		MinMatches       int     `toml:"min_matches"`
		RansacThreshold  float64 `toml:"ransac_threshold"`
		RansacIterations int     `toml:"ransac_iterations"`
	} `toml:"alignment"`
	Exposure struct {
		BrightnessThreshold int     `toml:"brightness_threshold"`
		MinContourArea      float64 `toml:"min_contour_area"`
	} `toml:"exposure"`
	Validation struct {
		SimilarityThreshold   float64 `toml:"similarity_threshold"`
		FaceDistanceThreshold float64 `toml:"face_distance_threshold"`
	} `toml:"validation"`
}

func (c *Config) mergeFile(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var fc fileConfig
	if err := toml.NewDecoder(file).Decode(&fc); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}

	setString(&c.Host, fc.Server.Host)
	setString(&c.Port, fc.Server.Port)
	for _, d := range []struct {
		dst *time.Duration
		raw string
		key string
	}{
		{&c.RequestTimeout, fc.Server.RequestTimeout, "server.request_timeout"},
		{&c.ImageFetchTimeout, fc.Server.ImageFetchTimeout, "server.image_fetch_timeout"},
		{&c.OCRTimeout, fc.Server.OCRTimeout, "server.ocr_timeout"},
	} {
		if d.raw == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("parse config: %s: %w", d.key, err)
		}
		*d.dst = parsed
	}
	if fc.Server.MaxRequestBodySize > 0 {
		c.MaxRequestBodySize = fc.Server.MaxRequestBodySize
	}
	if len(fc.Server.AllowedImageHosts) > 0 {
		c.AllowedImageHosts = fc.Server.AllowedImageHosts
	}
	setInt(&c.Workers, fc.Server.Workers)

	setString(&c.FrontTemplateDir, fc.Paths.FrontTemplates)
	setString(&c.BackTemplateDir, fc.Paths.BackTemplates)
	setString(&c.ExtractionDebugDir, fc.Paths.ExtractionDebug)
	setString(&c.FaceModelDir, fc.Paths.FaceModels)

	setString(&c.StorageBackend, fc.Storage.Backend)
	setString(&c.ArtifactDir, fc.Storage.ArtifactDir)
	setString(&c.AzureAccountName, fc.Storage.AzureAccountName)
	setString(&c.AzureAccountKey, fc.Storage.AzureAccountKey)
	setString(&c.AzureContainer, fc.Storage.AzureContainer)

	setString(&c.RepositoryBackend, fc.Repository.Backend)
	setString(&c.SQLitePath, fc.Repository.SQLitePath)
	setString(&c.PostgresDSN, fc.Repository.PostgresDSN)

	setString(&c.OCRLanguage, fc.OCR.Language)
	setString(&c.MRZLanguage, fc.OCR.MRZLanguage)

	setFloat(&c.Alignment.RatioTest, fc.Alignment.RatioTest)
	setInt(&c.Alignment.MinMatches, fc.Alignment.MinMatches)
	setFloat(&c.Alignment.RansacThreshold, fc.Alignment.RansacThreshold)
	setInt(&c.Alignment.RansacIterations, fc.Alignment.RansacIterations)
	setInt(&c.Exposure.BrightnessThreshold, fc.Exposure.BrightnessThreshold)
	setFloat(&c.Exposure.MinContourArea, fc.Exposure.MinContourArea)
	setFloat(&c.Validation.SimilarityThreshold, fc.Validation.SimilarityThreshold)
	setFloat(&c.Validation.FaceDistanceThreshold, fc.Validation.FaceDistanceThreshold)
	return nil
}

func setString(dst *string, v string) {
	if strings.TrimSpace(v) != "" {
		*dst = strings.TrimSpace(v)
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setFloat(dst *float64, v float64) {
	if v != 0 {
		*dst = v
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseListOrDefault(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if strings.TrimSpace(value) == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func parseDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(strings.TrimSpace(value)); err == nil && duration > 0 {
			return duration
		}
	}
	return defaultValue
}

func parseIntOrDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func parseFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
			return f
		}
	}
	return defaultValue
}
