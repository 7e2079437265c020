// Package alignment registers a photographed card onto one of a set of
// reference templates.
package alignment

import (
	"image"
	"math"
)

// Keypoint is a feature location in image pixel space.
type Keypoint struct {
	X, Y float64
}

// Features are keypoints paired index-wise with their descriptors.
type Features struct {
	Keypoints   []Keypoint
	Descriptors [][]float32
}

// Len returns the number of usable keypoint/descriptor pairs.
func (f Features) Len() int {
	if len(f.Keypoints) < len(f.Descriptors) {
		return len(f.Keypoints)
	}
	return len(f.Descriptors)
}

// FeatureEngine detects keypoints and computes descriptors.
type FeatureEngine interface {
	Detect(img image.Image) (Features, error)
}

// Match pairs a query descriptor with its nearest train descriptor.
type Match struct {
	Query    int
	Train    int
	Distance float64
}

// Matcher returns the query→train matches that pass the ratio test.
type Matcher interface {
	Match(query, train [][]float32, ratio float64) []Match
}

// BruteForceMatcher compares every query descriptor with every train
// descriptor using L2 distance and keeps a match when the nearest
// neighbour is closer than ratio times the second nearest.
type BruteForceMatcher struct{}

func (BruteForceMatcher) Match(query, train [][]float32, ratio float64) []Match {
	if len(train) < 2 {
		return nil
	}
	ratioSq := ratio * ratio

	var matches []Match
	for qi, q := range query {
		best, second := math.Inf(1), math.Inf(1)
		bestIdx := -1
		for ti, t := range train {
			d := squaredL2(q, t)
			switch {
			case d < best:
				second = best
				best, bestIdx = d, ti
			case d < second:
				second = d
			}
		}
		if bestIdx >= 0 && best < ratioSq*second {
			matches = append(matches, Match{Query: qi, Train: bestIdx, Distance: math.Sqrt(best)})
		}
	}
	return matches
}

func squaredL2(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}
