package sift

import (
	"image"

	"gocv.io/x/gocv"

	"github.com/anime-shed/idcard-inspector-go/internal/alignment"
	"github.com/anime-shed/idcard-inspector-go/internal/imaging"
)

// KnnMatcher matches descriptors with OpenCV's brute-force L2 matcher and
// keeps the pairs that pass Lowe's ratio test.
type KnnMatcher struct{}

func descriptorMat(rows [][]float32) gocv.Mat {
	cols := 0
	if len(rows) > 0 {
		cols = len(rows[0])
	}
	m := gocv.NewMatWithSize(len(rows), cols, gocv.MatTypeCV32F)
	for r, row := range rows {
		for c := 0; c < cols && c < len(row); c++ {
			m.SetFloatAt(r, c, row[c])
		}
	}
	return m
}

func (KnnMatcher) Match(query, train [][]float32, ratio float64) []alignment.Match {
	if len(query) == 0 || len(train) < 2 {
		return nil
	}
	q := descriptorMat(query)
	defer q.Close()
	t := descriptorMat(train)
	defer t.Close()

	matcher := gocv.NewBFMatcher()
	defer matcher.Close()

	var matches []alignment.Match
	for _, pair := range matcher.KnnMatch(q, t, 2) {
		if len(pair) < 2 {
			continue
		}
		if pair[0].Distance < ratio*pair[1].Distance {
			matches = append(matches, alignment.Match{
				Query:    pair[0].QueryIdx,
				Train:    pair[0].TrainIdx,
				Distance: pair[0].Distance,
			})
		}
	}
	return matches
}

// HomographyFinder fits homographies with cv::findHomography in RANSAC
// mode.
type HomographyFinder struct {
	Threshold     float64
	MaxIterations int
	Confidence    float64
}

// NewHomographyFinder creates a RANSAC finder with the given reprojection
// threshold in pixels and iteration cap.
func NewHomographyFinder(threshold float64, iterations int) *HomographyFinder {
	return &HomographyFinder{
		Threshold:     threshold,
		MaxIterations: iterations,
		Confidence:    0.995,
	}
}

func pointMat(pts []alignment.Keypoint) gocv.Mat {
	m := gocv.NewMatWithSize(len(pts), 1, gocv.MatTypeCV64FC2)
	for i, p := range pts {
		m.SetDoubleAt(i, 0, p.X)
		m.SetDoubleAt(i, 1, p.Y)
	}
	return m
}

func (f *HomographyFinder) Estimate(src, dst []alignment.Keypoint) (imaging.Homography, int, error) {
	if len(src) != len(dst) || len(src) < 4 {
		return imaging.Homography{}, 0, alignment.ErrDegenerate
	}
	srcMat := pointMat(src)
	defer srcMat.Close()
	dstMat := pointMat(dst)
	defer dstMat.Close()

	mask := gocv.NewMat()
	defer mask.Close()

	m := gocv.FindHomography(srcMat, &dstMat, gocv.HomographyMethodRANSAC, f.Threshold, &mask, f.MaxIterations, f.Confidence)
	defer m.Close()
	if m.Empty() || m.Rows() != 3 || m.Cols() != 3 {
		return imaging.Homography{}, 0, alignment.ErrDegenerate
	}

	var h imaging.Homography
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			h[r*3+c] = m.GetDoubleAt(r, c)
		}
	}
	return h.Normalize(), gocv.CountNonZero(mask), nil
}

// Warp resamples img through h with cv::warpPerspective.
func Warp(img image.Image, h imaging.Homography, width, height int) (*image.RGBA, bool) {
	if _, ok := h.Inverse(); !ok || width <= 0 || height <= 0 {
		return nil, false
	}
	src, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, false
	}
	defer src.Close()

	m := gocv.NewMatWithSize(3, 3, gocv.MatTypeCV64F)
	defer m.Close()
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			m.SetDoubleAt(r, c, h[r*3+c])
		}
	}

	dst := gocv.NewMat()
	defer dst.Close()
	gocv.WarpPerspective(src, &dst, m, image.Pt(width, height))

	out, err := dst.ToImage()
	if err != nil {
		return nil, false
	}
	return imaging.ToRGBA(out), true
}

// Configure installs the OpenCV matcher, homography finder and warp on a.
func Configure(a *alignment.Aligner, opts alignment.Options) *alignment.Aligner {
	return a.WithMatcher(KnnMatcher{}).
		WithEstimator(NewHomographyFinder(opts.RansacThreshold, opts.RansacIterations)).
		WithWarper(alignment.WarperFunc(Warp))
}

var (
	_ alignment.Matcher             = KnnMatcher{}
	_ alignment.HomographyEstimator = (*HomographyFinder)(nil)
)
