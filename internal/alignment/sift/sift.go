// Package sift provides SIFT features backed by OpenCV.
package sift

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"github.com/anime-shed/idcard-inspector-go/internal/alignment"
)

// Engine detects SIFT keypoints and 128-dimensional descriptors.
type Engine struct{}

// NewEngine creates a SIFT feature engine.
func NewEngine() *Engine {
	return &Engine{}
}

func (e *Engine) Detect(img image.Image) (alignment.Features, error) {
	src, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return alignment.Features{}, fmt.Errorf("convert image: %w", err)
	}
	defer src.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(src, &gray, gocv.ColorBGRToGray)

	detector := gocv.NewSIFT()
	defer detector.Close()

	mask := gocv.NewMat()
	defer mask.Close()

	keypoints, descriptors := detector.DetectAndCompute(gray, mask)
	defer descriptors.Close()

	features := alignment.Features{
		Keypoints:   make([]alignment.Keypoint, len(keypoints)),
		Descriptors: make([][]float32, descriptors.Rows()),
	}
	for i, kp := range keypoints {
		features.Keypoints[i] = alignment.Keypoint{X: kp.X, Y: kp.Y}
	}
	cols := descriptors.Cols()
	for r := 0; r < descriptors.Rows(); r++ {
		row := make([]float32, cols)
		for c := 0; c < cols; c++ {
			row[c] = descriptors.GetFloatAt(r, c)
		}
		features.Descriptors[r] = row
	}
	return features, nil
}

var _ alignment.FeatureEngine = (*Engine)(nil)
