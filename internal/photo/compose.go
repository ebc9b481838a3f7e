package photo

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"

	"github.com/disintegration/imaging"
)

const (
	brightnessFactor   = 1.05
	signatureContrast  = 40
	signatureSharpness = 1.3
	portraitContrast   = 10
)

// smoothKernel is the degenerate image used to measure sharpness.
var smoothKernel = [9]float64{
	1, 1, 1,
	1, 5, 1,
	1, 1, 1,
}

// lanczosSupport is the Lanczos filter radius in source pixels at unit scale.
const lanczosSupport = 3

// maxScaledPixels bounds the resampled region. The crop keeps it near the canvas size,
// so hitting it means a corrupt layout rather than a large photo.
const maxScaledPixels = 64 << 20

var errScaledTooLarge = errors.New("scaled subject exceeds the size limit")

// Compose scales the isolated subject, applies tone adjustments and pastes it onto a
// fully transparent canvas using the subject's own alpha as the mask. Background
// colour is deliberately left to the consumer.
//
// Only the part of box (the subject bounds) that lands on the canvas is resampled;
// everything outside box is transparent, so the canvas is unchanged by the crop.
func Compose(isolated *image.NRGBA, box image.Rectangle, layout Layout, signature bool) (*image.NRGBA, error) {
	canvas := imaging.New(layout.CanvasWidth, layout.CanvasHeight, color.NRGBA{})

	bounds := isolated.Bounds()
	if box.Empty() {
		box = bounds
	}
	margin := int(math.Ceil(lanczosSupport/math.Min(layout.Scale, 1))) + 1
	region := box.Intersect(layout.Window()).Inset(-margin).Intersect(bounds)
	if region.Empty() {
		return canvas, nil
	}

	dst := layout.Place(region)
	w, h := max(1, dst.Dx()), max(1, dst.Dy())
	if int64(w)*int64(h) > maxScaledPixels {
		return nil, isolationError("scale subject", fmt.Errorf("%w: %dx%d", errScaledTooLarge, w, h))
	}

	scaled := imaging.Crop(isolated, region)
	if w != region.Dx() || h != region.Dy() {
		scaled = imaging.Resize(scaled, w, h, imaging.Lanczos)
	}
	scaled = adjustTone(scaled, signature)

	return imaging.Overlay(canvas, scaled, dst.Min, 1.0), nil
}

// adjustTone touches colour channels only; alpha is carried through unchanged.
func adjustTone(img *image.NRGBA, signature bool) *image.NRGBA {
	out := imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
		return color.NRGBA{
			R: scaleChannel(c.R, brightnessFactor),
			G: scaleChannel(c.G, brightnessFactor),
			B: scaleChannel(c.B, brightnessFactor),
			A: c.A,
		}
	})

	if !signature {
		return imaging.AdjustContrast(out, portraitContrast)
	}
	out = imaging.AdjustContrast(out, signatureContrast)
	return sharpen(out, signatureSharpness)
}

// sharpen extrapolates away from a smoothed copy by factor.
func sharpen(img *image.NRGBA, factor float64) *image.NRGBA {
	smooth := imaging.Convolve3x3(img, smoothKernel, &imaging.ConvolveOptions{Normalize: true})
	out := imaging.Clone(img)
	for i := 0; i < len(out.Pix); i += 4 {
		for c := 0; c < 3; c++ {
			base := float64(smooth.Pix[i+c])
			v := base + factor*(float64(img.Pix[i+c])-base)
			out.Pix[i+c] = uint8(clampFloat(v+0.5, 0, 255))
		}
	}
	return out
}

func scaleChannel(v uint8, factor float64) uint8 {
	return uint8(clampFloat(float64(v)*factor+0.5, 0, 255))
}

// Encode serializes the canvas losslessly with its alpha channel.
func Encode(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG, imaging.PNGCompressionLevel(png.DefaultCompression)); err != nil {
		return nil, encodingError("encode png", err)
	}
	return buf.Bytes(), nil
}
