// Package service runs the card processing and validation flows on top of
// the alignment, extraction and validation packages.
package service

import (
	"context"
	"errors"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/anime-shed/idcard-inspector-go/internal/alignment"
	apperrors "github.com/anime-shed/idcard-inspector-go/internal/errors"
	"github.com/anime-shed/idcard-inspector-go/internal/logger"
	"github.com/anime-shed/idcard-inspector-go/internal/observer"
	"github.com/anime-shed/idcard-inspector-go/internal/ocr"
	"github.com/anime-shed/idcard-inspector-go/internal/repository"
	"github.com/anime-shed/idcard-inspector-go/internal/storage"
	"github.com/anime-shed/idcard-inspector-go/internal/strategy"
	"github.com/anime-shed/idcard-inspector-go/pkg/models"
)

// Aligner warps a photograph onto the best matching template.
type Aligner interface {
	Align(ctx context.Context, img image.Image, templates []*alignment.Template) (*alignment.Result, error)
}

// TemplateSource provides the reference templates of each side.
type TemplateSource interface {
	Templates(side models.DocumentSide) ([]*alignment.Template, error)
	Invalidate()
}

// Validator cross-checks the data read from both sides.
type Validator interface {
	Validate(ctx context.Context, req models.ValidationRequest) models.ValidationReport
}

// Input is a card photograph given either as an upload or as a URL.
type Input struct {
	Upload io.Reader
	URL    string
}

func (in Input) source() string {
	if in.Upload != nil {
		return "upload"
	}
	return "url"
}

// DocumentService is the application core behind the HTTP and CLI surfaces.
type DocumentService interface {
	ProcessFront(ctx context.Context, in Input) (*models.FrontResponse, error)
	ProcessBack(ctx context.Context, in Input) (*models.BackResponse, error)
	Validate(ctx context.Context, req models.ValidationRequest) (*models.ValidationResponse, error)
	Stats() models.CounterSnapshot
	ResetStats() models.CounterSnapshot
	History(ctx context.Context, limit int) ([]models.ValidationReport, error)
	Report(ctx context.Context, id string) (models.ValidationReport, error)
	OpenArtifact(ctx context.Context, name string) (io.ReadCloser, error)
	ReloadTemplates()
}

// Dependencies groups what documentService needs. Images, Reports and
// Events may be nil.
type Dependencies struct {
	Aligner    Aligner
	Templates  TemplateSource
	Strategies *strategy.Registry
	Artifacts  storage.ArtifactStore
	Validator  Validator
	Counters   *observer.Counters
	Images     repository.ImageRepository
	Reports    repository.ValidationRepository
	Events     observer.Subject
}

type documentService struct {
	deps Dependencies
}

// NewDocumentService creates the document service.
func NewDocumentService(deps Dependencies) DocumentService {
	if deps.Counters == nil {
		deps.Counters = &observer.Counters{}
	}
	return &documentService{deps: deps}
}

// ProcessFront aligns a front photograph, extracts its fields and stores the
// aligned image together with both portrait crops.
func (s *documentService) ProcessFront(ctx context.Context, in Input) (*models.FrontResponse, error) {
	out, names, err := s.process(ctx, models.SideFront, in)
	if err != nil {
		return nil, err
	}
	resp := &models.FrontResponse{
		Text:         out.Front.Fields,
		FlashWarning: out.Front.FlashWarning,
		ImagePath:    names["front"],
	}
	resp.FaceImagePath = names["face1"]
	resp.GhostFacePath = names["face2"]
	return resp, nil
}

// ProcessBack aligns a back photograph, parses the MRZ, looks for the QR
// code and stores the aligned image.
func (s *documentService) ProcessBack(ctx context.Context, in Input) (*models.BackResponse, error) {
	out, names, err := s.process(ctx, models.SideBack, in)
	if err != nil {
		return nil, err
	}
	return &models.BackResponse{
		QR:        out.QR,
		Text:      out.MRZ,
		ImagePath: names["back"],
	}, nil
}

func (s *documentService) process(ctx context.Context, side models.DocumentSide, in Input) (strategy.Outcome, map[string]string, error) {
	start := time.Now()
	s.publish(ctx, observer.DocumentEvent{
		EventType: observer.DocumentReceived,
		Side:      string(side),
		Source:    in.source(),
		Success:   true,
	})

	out, names, err := s.run(ctx, side, in)
	event := observer.DocumentEvent{
		EventType:      observer.DocumentProcessed,
		Side:           string(side),
		Source:         in.source(),
		ProcessingTime: time.Since(start),
		Success:        err == nil,
	}
	if err != nil {
		event.EventType = observer.DocumentFailed
		event.ErrorMessage = err.Error()
	}
	s.publish(ctx, event)
	return out, names, err
}

func (s *documentService) run(ctx context.Context, side models.DocumentSide, in Input) (strategy.Outcome, map[string]string, error) {
	img, err := s.load(ctx, side, in)
	if err != nil {
		return strategy.Outcome{}, nil, err
	}

	templates, err := s.deps.Templates.Templates(side)
	if err != nil {
		return strategy.Outcome{}, nil, apperrors.NewInternalError("reference templates unavailable", err)
	}

	result, err := s.deps.Aligner.Align(ctx, img, templates)
	if err != nil {
		if errors.Is(err, alignment.ErrNoAlignment) {
			return strategy.Outcome{}, nil, apperrors.NewAlignmentError("Alignment failed", err)
		}
		return strategy.Outcome{}, nil, classify("alignment", err)
	}
	logger.WithFields(logrus.Fields{
		"side":     side,
		"template": result.Template.Name,
		"inliers":  result.Inliers,
	}).Info("Document aligned")

	strat, err := s.deps.Strategies.For(side)
	if err != nil {
		return strategy.Outcome{}, nil, apperrors.NewInternalError("no processing strategy", err)
	}
	out, err := strat.Process(ctx, result.Aligned)
	if err != nil {
		return strategy.Outcome{}, nil, classify(strat.GetStrategyName(), err)
	}

	names := make(map[string]string, len(out.Crops)+1)
	name, err := s.deps.Artifacts.Save(ctx, string(side), result.Aligned)
	if err != nil {
		return strategy.Outcome{}, nil, apperrors.NewInternalError("failed to store aligned image", err)
	}
	names[string(side)] = name
	for _, crop := range out.Crops {
		if crop.Image.Bounds().Empty() {
			continue
		}
		name, err := s.deps.Artifacts.Save(ctx, crop.Prefix, crop.Image)
		if err != nil {
			return strategy.Outcome{}, nil, apperrors.NewInternalError("failed to store "+crop.Prefix+" crop", err)
		}
		names[crop.Prefix] = name
	}
	return out, names, nil
}

func (s *documentService) load(ctx context.Context, side models.DocumentSide, in Input) (image.Image, error) {
	if in.Upload != nil {
		img, _, err := image.Decode(in.Upload)
		if err != nil {
			return nil, apperrors.NewValidationError("unreadable image", err)
		}
		return img, nil
	}
	if in.URL == "" {
		return nil, apperrors.NewValidationError("an image upload or url is required", nil)
	}
	if s.deps.Images == nil {
		return nil, apperrors.NewValidationError("image urls are not supported", nil)
	}

	start := time.Now()
	img, err := s.deps.Images.FetchImage(ctx, in.URL)
	event := observer.DocumentEvent{
		EventType:      observer.ImageFetched,
		Side:           string(side),
		Source:         "url",
		ProcessingTime: time.Since(start),
		Success:        err == nil,
	}
	if err != nil {
		event.EventType = observer.ImageFetchFailed
		event.ErrorMessage = err.Error()
	}
	s.publish(ctx, event)

	if err != nil {
		if errors.Is(err, repository.ErrInvalidImageURL) {
			return nil, apperrors.NewValidationError("invalid image URL", err)
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, apperrors.NewTimeoutError("image fetch timed out", err)
		}
		return nil, apperrors.NewNetworkError("failed to fetch image", err)
	}
	return img, nil
}

// Validate runs every cross-check, updates the counters and stores the
// report when a repository is configured.
func (s *documentService) Validate(ctx context.Context, req models.ValidationRequest) (resp *models.ValidationResponse, err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			totals := s.deps.Counters.Record(false)
			logger.WithFields(logrus.Fields{
				"panic":   r,
				"success": totals.Success,
				"failure": totals.Failure,
			}).Error("Validation aborted")
			resp, err = nil, apperrors.NewInternalError("validation failed", nil)
		}
	}()

	report := s.deps.Validator.Validate(ctx, req)
	failed := report.FailedChecks()
	success := len(failed) == 0
	totals := s.deps.Counters.Record(success)

	log := logger.WithFields(logrus.Fields{
		"report_id": report.ID,
		"success":   totals.Success,
		"failure":   totals.Failure,
	})
	if success {
		log.Info("Validation passed")
	} else {
		log.WithField("failed_checks", failed).Warn("Validation failed")
	}

	if s.deps.Reports != nil {
		if err := s.deps.Reports.Save(ctx, report); err != nil {
			logger.WithError(err).WithField("report_id", report.ID).Warn("Failed to persist validation report")
		}
	}

	s.publish(ctx, observer.DocumentEvent{
		EventType:      observer.ValidationCompleted,
		ProcessingTime: time.Since(start),
		Success:        success,
		Metadata: map[string]interface{}{
			"report_id":     report.ID,
			"failed_checks": failed,
		},
	})

	return &models.ValidationResponse{
		ValidationReport: report,
		Success:          success,
		FailedChecks:     failed,
	}, nil
}

func (s *documentService) Stats() models.CounterSnapshot {
	return s.deps.Counters.Snapshot()
}

func (s *documentService) ResetStats() models.CounterSnapshot {
	logger.Info("Validation counters reset")
	return s.deps.Counters.Reset()
}

func (s *documentService) History(ctx context.Context, limit int) ([]models.ValidationReport, error) {
	if s.deps.Reports == nil {
		return nil, apperrors.NewNotFoundError("validation history is disabled", nil)
	}
	reports, err := s.deps.Reports.History(ctx, limit)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to read validation history", err)
	}
	return reports, nil
}

func (s *documentService) Report(ctx context.Context, id string) (models.ValidationReport, error) {
	if s.deps.Reports == nil {
		return models.ValidationReport{}, apperrors.NewNotFoundError("validation history is disabled", nil)
	}
	report, err := s.deps.Reports.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrReportNotFound) {
			return models.ValidationReport{}, apperrors.NewNotFoundError("validation report not found", err)
		}
		return models.ValidationReport{}, apperrors.NewInternalError("failed to read validation report", err)
	}
	return report, nil
}

// OpenArtifact streams a stored image. The caller closes the reader.
func (s *documentService) OpenArtifact(ctx context.Context, name string) (io.ReadCloser, error) {
	rc, err := s.deps.Artifacts.Open(ctx, name)
	switch {
	case err == nil:
		return rc, nil
	case errors.Is(err, storage.ErrInvalidArtifactName):
		return nil, apperrors.NewValidationError("invalid file name", err)
	case errors.Is(err, storage.ErrArtifactNotFound):
		return nil, apperrors.NewNotFoundError("file not found", err)
	default:
		return nil, apperrors.NewInternalError("failed to open file", err)
	}
}

func (s *documentService) ReloadTemplates() {
	s.deps.Templates.Invalidate()
}

func (s *documentService) publish(ctx context.Context, event observer.DocumentEvent) {
	if s.deps.Events != nil {
		s.deps.Events.NotifyObservers(ctx, event)
	}
}

// classify maps processing failures to application errors.
func classify(stage string, err error) error {
	var appErr *apperrors.AppError
	switch {
	case errors.As(err, &appErr):
		return err
	case errors.Is(err, ocr.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return apperrors.NewTimeoutError(stage+" timed out", err)
	case errors.Is(err, context.Canceled):
		return apperrors.NewTimeoutError(stage+" cancelled", err)
	default:
		return apperrors.NewProcessingError(stage+" failed", err)
	}
}
