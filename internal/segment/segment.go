// Package segment provides the learned subject segmentation capability: given an
// image it returns a soft per-pixel alpha mask isolating a human subject.
package segment

import (
	"context"
	"image"
	"image/color"
)

// Options controls alpha-matting refinement of the raw model mask.
type Options struct {
	AlphaMatting        bool
	ForegroundThreshold int
	BackgroundThreshold int
	ErodeSize           int
}

// PortraitOptions are the matting settings used for human portraits.
func PortraitOptions() Options {
	return Options{
		AlphaMatting:        true,
		ForegroundThreshold: 240,
		BackgroundThreshold: 10,
		ErodeSize:           15,
	}
}

// Segmenter returns a mask with the same bounds as img.
type Segmenter interface {
	Mask(ctx context.Context, img image.Image, opts Options) (*image.Gray, error)
}

// toGray converts a decoded mask into a single channel image anchored at the origin.
func toGray(img image.Image) *image.Gray {
	b := img.Bounds()
	if g, ok := img.(*image.Gray); ok && b.Min == (image.Point{}) {
		return g
	}
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			out.SetGray(x-b.Min.X, y-b.Min.Y, color.GrayModel.Convert(img.At(x, y)).(color.Gray))
		}
	}
	return out
}
