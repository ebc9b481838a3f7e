package photo

import (
	"context"
	"image"

	"github.com/disintegration/imaging"
)

// Isolator separates the subject from its background, returning a full-resolution
// image whose alpha channel is the subject mask.
type Isolator interface {
	Isolate(ctx context.Context, src *image.NRGBA) (*image.NRGBA, error)
}

// opaqueIsolator is used when background removal is skipped: the source is passed
// through with uniform full opacity.
type opaqueIsolator struct{}

func (opaqueIsolator) Isolate(_ context.Context, src *image.NRGBA) (*image.NRGBA, error) {
	out := imaging.Clone(src)
	for i := 3; i < len(out.Pix); i += 4 {
		out.Pix[i] = 0xff
	}
	return out, nil
}
