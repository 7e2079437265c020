package alignment

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/sirupsen/logrus"

	"github.com/anime-shed/idcard-inspector-go/internal/imaging"
	"github.com/anime-shed/idcard-inspector-go/internal/logger"
)

// ErrNoAlignment is returned when no template gathered enough matches for a
// homography.
var ErrNoAlignment = errors.New("no reference template could be aligned")

// Options tune matching and model fitting.
type Options struct {
	RatioTest        float64
	MinMatches       int
	RansacThreshold  float64
	RansacIterations int
}

// DefaultOptions returns the standard alignment parameters.
func DefaultOptions() Options {
	return Options{
		RatioTest:        0.7,
		MinMatches:       20,
		RansacThreshold:  5.0,
		RansacIterations: 2000,
	}
}

// Result is a successful alignment.
type Result struct {
	Template   *Template
	Index      int
	Homography imaging.Homography
	Matches    int
	Inliers    int
	Aligned    *image.RGBA
}

// Aligner warps photographs into the pixel space of the best matching
// template.
type Aligner struct {
	engine    FeatureEngine
	matcher   Matcher
	estimator HomographyEstimator
	warper    Warper
	opts      Options
}

// Warper resamples an image through a homography into a width×height
// canvas. ok is false when the transform cannot be applied.
type Warper interface {
	Warp(img image.Image, h imaging.Homography, width, height int) (*image.RGBA, bool)
}

// WarperFunc adapts a function to Warper.
type WarperFunc func(img image.Image, h imaging.Homography, width, height int) (*image.RGBA, bool)

func (f WarperFunc) Warp(img image.Image, h imaging.Homography, width, height int) (*image.RGBA, bool) {
	return f(img, h, width, height)
}

// NewAligner creates an aligner with brute-force matching, RANSAC and a
// bilinear warp, all in pure Go.
func NewAligner(engine FeatureEngine, opts Options) *Aligner {
	return &Aligner{
		engine:    engine,
		matcher:   BruteForceMatcher{},
		estimator: NewRANSAC(opts.RansacThreshold, opts.RansacIterations),
		warper:    WarperFunc(imaging.WarpPerspective),
		opts:      opts,
	}
}

// WithMatcher replaces the descriptor matcher.
func (a *Aligner) WithMatcher(m Matcher) *Aligner {
	a.matcher = m
	return a
}

// WithEstimator replaces the homography estimator.
func (a *Aligner) WithEstimator(e HomographyEstimator) *Aligner {
	a.estimator = e
	return a
}

// WithWarper replaces the perspective warp.
func (a *Aligner) WithWarper(w Warper) *Aligner {
	a.warper = w
	return a
}

// Align picks the template with the most RANSAC inliers and returns img
// warped into that template's dimensions. Templates are tried in slice
// order; on equal inlier counts the earlier one wins.
func (a *Aligner) Align(ctx context.Context, img image.Image, templates []*Template) (*Result, error) {
	features, err := a.engine.Detect(img)
	if err != nil {
		return nil, fmt.Errorf("detect features: %w", err)
	}

	var best *Result
	for i, tpl := range templates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		candidate, ok := a.evaluate(features, tpl)
		log := logger.WithFields(logrus.Fields{
			"template": tpl.Name,
			"matches":  candidate.Matches,
			"inliers":  candidate.Inliers,
		})
		if !ok {
			log.Debug("Template rejected")
			continue
		}
		log.Debug("Template evaluated")

		candidate.Template = tpl
		candidate.Index = i
		if best == nil || candidate.Inliers > best.Inliers {
			best = &candidate
		}
	}

	if best == nil {
		return nil, ErrNoAlignment
	}

	aligned, ok := a.warper.Warp(img, best.Homography, best.Template.Width, best.Template.Height)
	if !ok {
		return nil, ErrNoAlignment
	}
	best.Aligned = aligned

	logger.WithFields(logrus.Fields{
		"template": best.Template.Name,
		"inliers":  best.Inliers,
	}).Info("Image aligned")
	return best, nil
}

func (a *Aligner) evaluate(features Features, tpl *Template) (Result, bool) {
	matches := a.matcher.Match(features.Descriptors, tpl.Features.Descriptors, a.opts.RatioTest)
	res := Result{Matches: len(matches)}
	if len(matches) < a.opts.MinMatches {
		return res, false
	}

	src := make([]Keypoint, 0, len(matches))
	dst := make([]Keypoint, 0, len(matches))
	for _, m := range matches {
		if m.Query >= len(features.Keypoints) || m.Train >= len(tpl.Features.Keypoints) {
			continue
		}
		src = append(src, features.Keypoints[m.Query])
		dst = append(dst, tpl.Features.Keypoints[m.Train])
	}

	h, inliers, err := a.estimator.Estimate(src, dst)
	if err != nil {
		return res, false
	}
	res.Homography = h
	res.Inliers = inliers
	return res, true
}
