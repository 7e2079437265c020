package container

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/anime-shed/idcard-inspector-go/internal/alignment"
	"github.com/anime-shed/idcard-inspector-go/internal/alignment/sift"
	"github.com/anime-shed/idcard-inspector-go/internal/analyzer"
	"github.com/anime-shed/idcard-inspector-go/internal/config"
	"github.com/anime-shed/idcard-inspector-go/internal/extraction"
	"github.com/anime-shed/idcard-inspector-go/internal/face"
	"github.com/anime-shed/idcard-inspector-go/internal/face/dlib"
	"github.com/anime-shed/idcard-inspector-go/internal/factory"
	"github.com/anime-shed/idcard-inspector-go/internal/imaging/cv"
	"github.com/anime-shed/idcard-inspector-go/internal/logger"
	"github.com/anime-shed/idcard-inspector-go/internal/mrz"
	"github.com/anime-shed/idcard-inspector-go/internal/observer"
	"github.com/anime-shed/idcard-inspector-go/internal/ocr"
	"github.com/anime-shed/idcard-inspector-go/internal/ocr/tesseract"
	"github.com/anime-shed/idcard-inspector-go/internal/qr"
	"github.com/anime-shed/idcard-inspector-go/internal/qr/zxing"
	"github.com/anime-shed/idcard-inspector-go/internal/repository"
	"github.com/anime-shed/idcard-inspector-go/internal/service"
	"github.com/anime-shed/idcard-inspector-go/internal/storage"
	"github.com/anime-shed/idcard-inspector-go/internal/strategy"
	"github.com/anime-shed/idcard-inspector-go/internal/transport"
	"github.com/anime-shed/idcard-inspector-go/pkg/validation"
)

// Container holds all application dependencies
type Container struct {
	config    *config.Config
	pool      *analyzer.WorkerPool
	faces     *dlib.Comparer
	reports   repository.ValidationRepository
	events    *observer.EventPublisher
	metrics   *observer.MetricsObserver
	documents service.DocumentService
	handler   http.Handler
}

// NewContainer builds the dependency graph for cfg.
func NewContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	components := factory.NewComponentFactory(cfg)

	artifacts, err := components.StorageFactory.CreateStorage(factory.StorageType(cfg.StorageBackend))
	if err != nil {
		return nil, fmt.Errorf("failed to create artifact storage: %w", err)
	}
	reports, err := components.RepositoryFactory.CreateRepository(ctx, factory.RepositoryType(cfg.RepositoryBackend))
	if err != nil {
		return nil, fmt.Errorf("failed to open validation repository: %w", err)
	}

	ocrEngine := ocr.WithTimeout(tesseract.NewEngine(), cfg.OCRTimeout)
	proc := cv.NewProcessor()
	guard := analyzer.NewExposureGuard(analyzer.ExposureOptions{
		BrightnessThreshold: uint8(cfg.Exposure.BrightnessThreshold),
		MinContourArea:      cfg.Exposure.MinContourArea,
	}).WithProcessor(proc)
	pool := analyzer.NewWorkerPool(cfg.Workers)
	pool.Start()

	extractOpts := extraction.DefaultOptions()
	extractOpts.Language = cfg.OCRLanguage
	extractOpts.DebugDir = cfg.ExtractionDebugDir
	extractor := extraction.NewExtractor(ocrEngine, guard, pool, extractOpts).WithProcessor(proc)

	strategies := strategy.NewRegistry(
		strategy.NewFrontStrategy(extractor),
		strategy.NewBackStrategy(
			mrz.NewParser(ocrEngine, guard, cfg.MRZLanguage).WithProcessor(proc),
			qr.NewInterpreter(zxing.NewDecoder()).WithProcessor(proc),
		),
	)

	features := sift.NewEngine()
	alignOpts := alignment.Options{
		RatioTest:        cfg.Alignment.RatioTest,
		MinMatches:       cfg.Alignment.MinMatches,
		RansacThreshold:  cfg.Alignment.RansacThreshold,
		RansacIterations: cfg.Alignment.RansacIterations,
	}
	aligner := sift.Configure(alignment.NewAligner(features, alignOpts), alignOpts)
	templates := alignment.NewTemplateStore(features, cfg.FrontTemplateDir, cfg.BackTemplateDir)

	// The face category fails on every request when models are missing.
	var comparer face.Comparer
	faces, err := dlib.NewComparer(cfg.FaceModelDir)
	if err != nil {
		logger.WithError(err).Warn("Face comparison disabled")
	} else {
		comparer = faces
	}
	validator := validation.NewEngine(artifacts, comparer, validation.Options{
		SimilarityThreshold:   cfg.Validation.SimilarityThreshold,
		FaceDistanceThreshold: cfg.Validation.FaceDistanceThreshold,
	})

	fetchOpts := storage.DefaultFetcherOptions()
	fetchOpts.Timeout = cfg.ImageFetchTimeout
	fetchOpts.MaxBytes = cfg.MaxRequestBodySize
	images := repository.NewHTTPImageRepository(
		storage.NewHTTPImageFetcher(fetchOpts),
		validation.NewURLValidatorWithOptions([]string{"http", "https"}, cfg.AllowedImageHosts),
	)

	events := observer.NewEventPublisher()
	metrics := observer.NewMetricsObserver()
	events.Subscribe(observer.NewLoggingObserver(logger.Logger))
	events.Subscribe(metrics)

	deps := service.Dependencies{
		Aligner:    aligner,
		Templates:  templates,
		Strategies: strategies,
		Artifacts:  artifacts,
		Validator:  validator,
		Counters:   &observer.Counters{},
		Images:     images,
		Reports:    reports,
		Events:     events,
	}
	documents := service.NewDocumentService(deps)

	return &Container{
		config:    cfg,
		pool:      pool,
		faces:     faces,
		reports:   reports,
		events:    events,
		metrics:   metrics,
		documents: documents,
		handler:   transport.NewHandler(documents, metrics, cfg),
	}, nil
}

// Handler returns the HTTP handler
func (c *Container) Handler() http.Handler {
	return c.handler
}

// Service returns the document service
func (c *Container) Service() service.DocumentService {
	return c.documents
}

// Config returns the configuration
func (c *Container) Config() *config.Config {
	return c.config
}

// Close flushes pending events and releases the worker pool, the face
// models and the report database.
func (c *Container) Close() error {
	c.events.Wait()
	c.pool.Close()
	var errs []error
	if c.faces != nil {
		c.faces.Close()
	}
	if c.reports != nil {
		errs = append(errs, c.reports.Close())
	}
	return errors.Join(errs...)
}
