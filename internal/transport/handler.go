package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/anime-shed/idcard-inspector-go/internal/config"
	apperrors "github.com/anime-shed/idcard-inspector-go/internal/errors"
	"github.com/anime-shed/idcard-inspector-go/internal/logger"
	"github.com/anime-shed/idcard-inspector-go/internal/observer"
	"github.com/anime-shed/idcard-inspector-go/internal/service"
	"github.com/anime-shed/idcard-inspector-go/pkg/models"
)

const requestIDHeader = "X-Request-ID"

// MetricsSource reports per-side processing metrics.
type MetricsSource interface {
	GetMetrics() map[string]observer.SideMetrics
}

// NewHandler builds the HTTP API. metrics may be nil.
func NewHandler(svc service.DocumentService, metrics MetricsSource, cfg *config.Config) http.Handler {
	r := gin.Default()

	// Add middleware
	r.Use(
		requestID(),
		requestSizeLimiter(cfg.MaxRequestBodySize),
		errorHandler(),
	)

	// Configure routes
	r.GET("/health", healthCheck)

	api := r.Group("/api")
	api.POST("/ocr/front", processFront(svc, cfg))
	api.POST("/ocr/back", processBack(svc, cfg))
	api.POST("/validate", validateDocument(svc, cfg))
	api.GET("/validate/stats", validationStats(svc))
	api.POST("/validate/stats/reset", resetValidationStats(svc))
	api.GET("/validate/history", validationHistory(svc))
	api.GET("/validate/history/:id", validationReport(svc))
	api.GET("/static/:filename", staticFile(svc))
	api.POST("/templates/reload", reloadTemplates(svc))
	if metrics != nil {
		api.GET("/metrics", processingMetrics(metrics))
	}

	return r
}

func processFront(svc service.DocumentService, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()
		ctx, cancel := context.WithTimeout(c.Request.Context(), cfg.RequestTimeout)
		defer cancel()

		in, closeInput, err := readInput(c)
		if err != nil {
			respondError(c, apperrors.GetStatusCode(err), "invalid request", err)
			return
		}
		defer closeInput()

		resp, err := svc.ProcessFront(ctx, in)
		if err != nil {
			respondError(c, apperrors.GetStatusCode(err), "front processing failed", err)
			return
		}

		logger.WithFields(logrus.Fields{
			"request_id":         c.GetString("request_id"),
			"processing_time_ms": time.Since(startTime).Milliseconds(),
			"flash":              resp.FlashWarning != "",
		}).Info("Front side processed")
		c.JSON(http.StatusOK, resp)
	}
}

func processBack(svc service.DocumentService, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()
		ctx, cancel := context.WithTimeout(c.Request.Context(), cfg.RequestTimeout)
		defer cancel()

		in, closeInput, err := readInput(c)
		if err != nil {
			respondError(c, apperrors.GetStatusCode(err), "invalid request", err)
			return
		}
		defer closeInput()

		resp, err := svc.ProcessBack(ctx, in)
		if err != nil {
			respondError(c, apperrors.GetStatusCode(err), "back processing failed", err)
			return
		}

		logger.WithFields(logrus.Fields{
			"request_id":         c.GetString("request_id"),
			"processing_time_ms": time.Since(startTime).Milliseconds(),
			"qr_found":           resp.QR != "",
			"mrz_lines":          len(resp.Text.Lines),
		}).Info("Back side processed")
		c.JSON(http.StatusOK, resp)
	}
}

// readInput takes the multipart "image" file when present and falls back
// to a "url" form or JSON field.
func readInput(c *gin.Context) (service.Input, func(), error) {
	if header, err := c.FormFile("image"); err == nil {
		file, err := header.Open()
		if err != nil {
			return service.Input{}, nil, apperrors.NewValidationError("unreadable upload", err)
		}
		return service.Input{Upload: file}, func() { file.Close() }, nil
	}

	var req models.URLRequest
	if err := c.ShouldBind(&req); err != nil || req.URL == "" {
		return service.Input{}, nil, apperrors.NewValidationError("an image file or url is required", err)
	}
	return service.Input{URL: req.URL}, func() {}, nil
}

func validateDocument(svc service.DocumentService, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), cfg.RequestTimeout)
		defer cancel()

		var req models.ValidationRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusBadRequest, "invalid request format", err)
			return
		}

		resp, err := svc.Validate(ctx, req)
		if err != nil {
			respondError(c, apperrors.GetStatusCode(err), "validation failed", err)
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

func validationStats(svc service.DocumentService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, svc.Stats())
	}
}

func resetValidationStats(svc service.DocumentService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"previous": svc.ResetStats(),
			"current":  svc.Stats(),
		})
	}
}

func validationHistory(svc service.DocumentService) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := 0
		if raw := c.Query("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 0 {
				respondError(c, http.StatusBadRequest, "invalid limit", fmt.Errorf("limit %q", raw))
				return
			}
			limit = n
		}

		reports, err := svc.History(c.Request.Context(), limit)
		if err != nil {
			respondError(c, apperrors.GetStatusCode(err), "history unavailable", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"reports": reports, "count": len(reports)})
	}
}

func validationReport(svc service.DocumentService) gin.HandlerFunc {
	return func(c *gin.Context) {
		report, err := svc.Report(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, apperrors.GetStatusCode(err), "report unavailable", err)
			return
		}
		c.JSON(http.StatusOK, report)
	}
}

func staticFile(svc service.DocumentService) gin.HandlerFunc {
	return func(c *gin.Context) {
		rc, err := svc.OpenArtifact(c.Request.Context(), c.Param("filename"))
		if err != nil {
			respondError(c, apperrors.GetStatusCode(err), "file unavailable", err)
			return
		}
		defer rc.Close()
		c.DataFromReader(http.StatusOK, -1, "image/jpeg", rc, nil)
	}
}

func reloadTemplates(svc service.DocumentService) gin.HandlerFunc {
	return func(c *gin.Context) {
		svc.ReloadTemplates()
		c.JSON(http.StatusOK, gin.H{"status": "reloaded"})
	}
}

func processingMetrics(metrics MetricsSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, metrics.GetMetrics())
	}
}

func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "available",
		"version": "1.0.0",
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

// Middleware and helper functions
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func requestSizeLimiter(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

func errorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 && !c.Writer.Written() {
			err := c.Errors.Last()
			respondError(c, determineStatusCode(err.Err), "request processing failed", err.Err)
		}
	}
}

func determineStatusCode(err error) int {
	// Check if it's a custom app error first
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	var maxBytesErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytesErr):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusTooManyRequests
	case errors.Is(err, io.ErrUnexpectedEOF):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, code int, message string, err error) {
	// Log the error with context
	logger.WithError(err).WithFields(logrus.Fields{
		"request_id":  c.GetString("request_id"),
		"status_code": code,
		"message":     message,
		"path":        c.Request.URL.Path,
		"method":      c.Request.Method,
		"ip":          c.ClientIP(),
	}).Error("Request failed")

	body := models.ErrorResponse{
		Error:   http.StatusText(code),
		Message: message,
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		body.Message = appErr.Message
	}
	c.AbortWithStatusJSON(code, body)
}
