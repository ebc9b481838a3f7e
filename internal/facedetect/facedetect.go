// Package facedetect finds frontal faces in a photo. Boxes are axis-aligned and
// returned in descending confidence order, in the coordinates of the input image.
package facedetect

import (
	"context"
	"fmt"
	"image"
	"os"
	"sort"

	pigo "github.com/esimov/pigo/core"

	"snapfixer/internal/modelcache"
)

// Face is one detection.
type Face struct {
	X      int
	Y      int
	Width  int
	Height int
	Score  float64
}

// Detector returns zero or more faces.
type Detector interface {
	Detect(ctx context.Context, img image.Image) ([]Face, error)
}

// Noop never finds a face; layout then falls back to the subject bounding box.
type Noop struct{}

func (Noop) Detect(context.Context, image.Image) ([]Face, error) { return nil, nil }

const (
	shiftFactor  = 0.1
	scaleFactor  = 1.1
	iouThreshold = 0.2
)

// NewCascadeCache returns the process-wide cache of unpacked cascades keyed by file path.
func NewCascadeCache() *modelcache.Cache[*pigo.Pigo] {
	return modelcache.New(func(path string) (*pigo.Pigo, error) {
		packet, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read cascade: %w", err)
		}
		classifier, err := pigo.NewPigo().Unpack(packet)
		if err != nil {
			return nil, fmt.Errorf("unpack cascade: %w", err)
		}
		return classifier, nil
	})
}

// Cascade runs a pigo pixel-intensity-comparison cascade.
type Cascade struct {
	cascades  *modelcache.Cache[*pigo.Pigo]
	path      string
	minSize   int
	threshold float64
}

// NewCascade returns a Detector using the cascade file at path.
func NewCascade(cascades *modelcache.Cache[*pigo.Pigo], path string, minSize int, threshold float64) *Cascade {
	if minSize <= 0 {
		minSize = 20
	}
	return &Cascade{cascades: cascades, path: path, minSize: minSize, threshold: threshold}
}

// Detect implements Detector.
func (c *Cascade) Detect(_ context.Context, img image.Image) ([]Face, error) {
	classifier, err := c.cascades.Get(c.path)
	if err != nil {
		return nil, err
	}

	b := img.Bounds()
	rows, cols := b.Dy(), b.Dx()
	params := pigo.CascadeParams{
		MinSize:     c.minSize,
		MaxSize:     min(rows, cols),
		ShiftFactor: shiftFactor,
		ScaleFactor: scaleFactor,
		ImageParams: pigo.ImageParams{
			Pixels: pigo.RgbToGrayscale(img),
			Rows:   rows,
			Cols:   cols,
			Dim:    cols,
		},
	}

	dets := classifier.RunCascade(params, 0.0)
	dets = classifier.ClusterDetections(dets, iouThreshold)
	return toFaces(dets, c.threshold, b), nil
}

// toFaces converts centre/scale detections into clipped boxes above threshold.
func toFaces(dets []pigo.Detection, threshold float64, bounds image.Rectangle) []Face {
	faces := make([]Face, 0, len(dets))
	for _, d := range dets {
		if float64(d.Q) < threshold {
			continue
		}
		r := image.Rect(d.Col-d.Scale/2, d.Row-d.Scale/2, d.Col+d.Scale/2, d.Row+d.Scale/2).
			Intersect(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
		if r.Empty() {
			continue
		}
		faces = append(faces, Face{X: r.Min.X, Y: r.Min.Y, Width: r.Dx(), Height: r.Dy(), Score: float64(d.Q)})
	}
	sort.SliceStable(faces, func(i, j int) bool { return faces[i].Score > faces[j].Score })
	return faces
}
