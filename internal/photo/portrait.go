package photo

import (
	"context"
	"errors"
	"image"

	"github.com/disintegration/imaging"
	"golang.org/x/image/draw"

	"snapfixer/internal/segment"
)

// edgeSoftenSigma removes matting artifacts along the subject outline.
const edgeSoftenSigma = 1.0

var errEmptyMask = errors.New("segmentation returned an empty mask")

// PortraitSegmenter isolates a human subject with the learned segmentation model.
type PortraitSegmenter struct {
	Segmenter segment.Segmenter
	Options   segment.Options
}

// Isolate implements Isolator. Segmentation failures and empty masks are fatal.
func (p PortraitSegmenter) Isolate(ctx context.Context, src *image.NRGBA) (*image.NRGBA, error) {
	if p.Segmenter == nil {
		return nil, isolationError("segment subject", errors.New("no segmenter configured"))
	}

	work := MakeProxy(src, SegmentationProxyEdge)
	mask, err := p.Segmenter.Mask(ctx, work.Image, p.Options)
	if err != nil {
		return nil, isolationError("segment subject", err)
	}
	if mask == nil || maskEmpty(mask) {
		return nil, isolationError("segment subject", errEmptyMask)
	}

	size := src.Bounds().Size()
	if mask.Bounds().Size() != size {
		full := image.NewGray(image.Rect(0, 0, size.X, size.Y))
		draw.CatmullRom.Scale(full, full.Bounds(), mask, mask.Bounds(), draw.Src, nil)
		mask = full
	}

	softened := imaging.Blur(mask, edgeSoftenSigma)
	out := imaging.Clone(src)
	for y := 0; y < size.Y; y++ {
		for x := 0; x < size.X; x++ {
			out.Pix[y*out.Stride+x*4+3] = softened.Pix[y*softened.Stride+x*4]
		}
	}
	return out, nil
}

func maskEmpty(mask *image.Gray) bool {
	b := mask.Bounds()
	if b.Empty() {
		return true
	}
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := mask.Pix[mask.PixOffset(b.Min.X, y) : mask.PixOffset(b.Min.X, y)+b.Dx()]
		for _, v := range row {
			if v != 0 {
				return false
			}
		}
	}
	return true
}
