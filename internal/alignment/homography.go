package alignment

import (
	"errors"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/anime-shed/idcard-inspector-go/internal/imaging"
)

// ErrDegenerate is returned when no homography can be fitted.
var ErrDegenerate = errors.New("degenerate point configuration")

// HomographyEstimator fits a projective transform mapping src onto dst and
// reports how many correspondences agree with it.
type HomographyEstimator interface {
	Estimate(src, dst []Keypoint) (imaging.Homography, int, error)
}

// RANSAC estimates homographies from noisy correspondences. Sampling uses a
// fixed seed so identical inputs produce identical results.
type RANSAC struct {
	Threshold     float64
	MaxIterations int
	Confidence    float64
	Seed          int64
}

// NewRANSAC creates an estimator with the given reprojection threshold in
// pixels and iteration cap.
func NewRANSAC(threshold float64, iterations int) *RANSAC {
	return &RANSAC{
		Threshold:     threshold,
		MaxIterations: iterations,
		Confidence:    0.995,
		Seed:          1,
	}
}

func (r *RANSAC) Estimate(src, dst []Keypoint) (imaging.Homography, int, error) {
	n := len(src)
	if n != len(dst) || n < 4 {
		return imaging.Homography{}, 0, ErrDegenerate
	}

	rng := rand.New(rand.NewSource(r.Seed))
	threshSq := r.Threshold * r.Threshold

	var best imaging.Homography
	bestInliers := 0
	sample := make([]int, 4)
	sSrc := make([]Keypoint, 4)
	sDst := make([]Keypoint, 4)

	maxIter := r.MaxIterations
	for iter := 0; iter < maxIter; iter++ {
		pickDistinct(rng, n, sample)
		for i, idx := range sample {
			sSrc[i], sDst[i] = src[idx], dst[idx]
		}
		if collinearAny(sSrc) || collinearAny(sDst) {
			continue
		}
		h, err := fitDLT(sSrc, sDst)
		if err != nil {
			continue
		}
		inliers := countInliers(h, src, dst, threshSq, nil)
		if inliers > bestInliers {
			best, bestInliers = h, inliers
			maxIter = adaptiveIterations(r.Confidence, float64(inliers)/float64(n), maxIter)
		}
	}

	if bestInliers < 4 {
		return imaging.Homography{}, 0, ErrDegenerate
	}

	// Refit on the consensus set.
	mask := make([]bool, n)
	countInliers(best, src, dst, threshSq, mask)
	var inSrc, inDst []Keypoint
	for i, ok := range mask {
		if ok {
			inSrc = append(inSrc, src[i])
			inDst = append(inDst, dst[i])
		}
	}
	if refined, err := fitDLT(inSrc, inDst); err == nil {
		if c := countInliers(refined, src, dst, threshSq, nil); c >= bestInliers {
			best, bestInliers = refined, c
		}
	}
	return best, bestInliers, nil
}

func adaptiveIterations(confidence, inlierRatio float64, current int) int {
	if inlierRatio <= 0 {
		return current
	}
	denom := math.Log(1 - math.Pow(inlierRatio, 4))
	if denom >= 0 || math.IsInf(denom, -1) {
		if inlierRatio >= 1 {
			return 1
		}
		return current
	}
	k := math.Log(1-confidence) / denom
	if k < float64(current) {
		return int(math.Ceil(k))
	}
	return current
}

func pickDistinct(rng *rand.Rand, n int, out []int) {
	for i := 0; i < len(out); {
		v := rng.Intn(n)
		dup := false
		for j := 0; j < i; j++ {
			if out[j] == v {
				dup = true
				break
			}
		}
		if !dup {
			out[i] = v
			i++
		}
	}
}

func collinearAny(pts []Keypoint) bool {
	for i := 0; i < len(pts); i++ {
		for j := i + 1; j < len(pts); j++ {
			for k := j + 1; k < len(pts); k++ {
				a, b, c := pts[i], pts[j], pts[k]
				cross := (b.X-a.X)*(c.Y-a.Y) - (b.Y-a.Y)*(c.X-a.X)
				if math.Abs(cross) < 1e-6 {
					return true
				}
			}
		}
	}
	return false
}

func countInliers(h imaging.Homography, src, dst []Keypoint, threshSq float64, mask []bool) int {
	count := 0
	for i := range src {
		x, y, ok := h.Apply(src[i].X, src[i].Y)
		in := false
		if ok {
			dx, dy := x-dst[i].X, y-dst[i].Y
			in = dx*dx+dy*dy <= threshSq
		}
		if mask != nil {
			mask[i] = in
		}
		if in {
			count++
		}
	}
	return count
}

// normalization returns the similarity transform that moves the centroid of
// pts to the origin and scales their mean distance to sqrt(2).
func normalization(pts []Keypoint) (t imaging.Homography, ok bool) {
	var cx, cy float64
	for _, p := range pts {
		cx += p.X
		cy += p.Y
	}
	cx /= float64(len(pts))
	cy /= float64(len(pts))

	var mean float64
	for _, p := range pts {
		mean += math.Hypot(p.X-cx, p.Y-cy)
	}
	mean /= float64(len(pts))
	if mean < 1e-12 {
		return imaging.Homography{}, false
	}
	s := math.Sqrt2 / mean
	return imaging.Homography{s, 0, -s * cx, 0, s, -s * cy, 0, 0, 1}, true
}

// fitDLT solves the direct linear transform for at least four
// correspondences using Hartley normalization.
func fitDLT(src, dst []Keypoint) (imaging.Homography, error) {
	n := len(src)
	if n < 4 {
		return imaging.Homography{}, ErrDegenerate
	}
	ts, ok1 := normalization(src)
	td, ok2 := normalization(dst)
	if !ok1 || !ok2 {
		return imaging.Homography{}, ErrDegenerate
	}

	a := mat.NewDense(2*n, 9, nil)
	for i := 0; i < n; i++ {
		x, y, _ := ts.Apply(src[i].X, src[i].Y)
		u, v, _ := td.Apply(dst[i].X, dst[i].Y)
		a.SetRow(2*i, []float64{-x, -y, -1, 0, 0, 0, u * x, u * y, u})
		a.SetRow(2*i+1, []float64{0, 0, 0, -x, -y, -1, v * x, v * y, v})
	}

	var svd mat.SVD
	if !svd.Factorize(a, mat.SVDFull) {
		return imaging.Homography{}, ErrDegenerate
	}
	var v mat.Dense
	svd.VTo(&v)

	var hn imaging.Homography
	for i := 0; i < 9; i++ {
		hn[i] = v.At(i, 8)
	}

	tdInv, ok := td.Inverse()
	if !ok {
		return imaging.Homography{}, ErrDegenerate
	}
	h := multiply(tdInv, multiply(hn, ts))
	if math.Abs(h[8]) < 1e-12 {
		return imaging.Homography{}, ErrDegenerate
	}
	return h.Normalize(), nil
}

func multiply(a, b imaging.Homography) imaging.Homography {
	var out imaging.Homography
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			var sum float64
			for k := 0; k < 3; k++ {
				sum += a[r*3+k] * b[k*3+c]
			}
			out[r*3+c] = sum
		}
	}
	return out
}
