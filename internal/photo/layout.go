package photo

import (
	"image"
	"math"
)

// Framing heuristics for compliance photos.
const (
	faceHeightRatio   = 0.30
	portraitFill      = 0.80
	signatureFill     = 0.75
	signatureMaxWidth = 0.95
	minVerticalExtent = 0.85
	headroomTopMargin = 0.15
)

// Layout is where and how large the isolated subject lands on the output canvas.
type Layout struct {
	CanvasWidth  int
	CanvasHeight int
	Scale        float64
	OffsetX      int
	OffsetY      int
}

// Place maps a rectangle of the isolated image to canvas coordinates.
func (l Layout) Place(src image.Rectangle) image.Rectangle {
	return image.Rect(
		l.OffsetX+int(math.Round(float64(src.Min.X)*l.Scale)),
		l.OffsetY+int(math.Round(float64(src.Min.Y)*l.Scale)),
		l.OffsetX+int(math.Round(float64(src.Max.X)*l.Scale)),
		l.OffsetY+int(math.Round(float64(src.Max.Y)*l.Scale)),
	)
}

// Window is the part of the isolated image that lands on the canvas, in source
// coordinates, rounded outwards.
func (l Layout) Window() image.Rectangle {
	if l.Scale <= 0 {
		return image.Rectangle{}
	}
	return image.Rect(
		int(math.Floor(float64(-l.OffsetX)/l.Scale)),
		int(math.Floor(float64(-l.OffsetY)/l.Scale)),
		int(math.Ceil(float64(l.CanvasWidth-l.OffsetX)/l.Scale)),
		int(math.Ceil(float64(l.CanvasHeight-l.OffsetY)/l.Scale)),
	)
}

// PlanLayout computes canvas size, scale and paste offset. imgBounds are the bounds of
// the isolated image, subject its bounding box and face the primary face (nil when none).
func PlanLayout(rule DocumentRule, imgBounds, subject image.Rectangle, face *image.Rectangle) Layout {
	if rule.Passthrough() {
		return Layout{CanvasWidth: imgBounds.Dx(), CanvasHeight: imgBounds.Dy(), Scale: 1}
	}

	width, height := rule.TargetPixels()
	w, h := float64(width), float64(height)
	subjectW, subjectH := float64(subject.Dx()), float64(subject.Dy())
	if rule.IsSignature {
		face = nil
	}

	var scale float64
	if face != nil {
		scale = h * faceHeightRatio / float64(face.Dy())
	} else {
		fill := portraitFill
		if rule.IsSignature {
			fill = signatureFill
		}
		scale = math.Min(w*fill/subjectW, h*fill/subjectH)
	}

	if rule.IsSignature {
		if subjectW*scale > w*signatureMaxWidth {
			scale = w * signatureMaxWidth / subjectW
		}
	} else if subjectW*scale < w {
		scale = w / subjectW
	}

	if !rule.IsSignature {
		anchorTop := subject.Min.Y
		if face != nil {
			anchorTop = face.Min.Y
		}
		extent := float64(subject.Max.Y - anchorTop)
		if extent > 0 && extent*scale < h*minVerticalExtent {
			scale = h * minVerticalExtent / extent
		}
	}

	layout := Layout{CanvasWidth: width, CanvasHeight: height, Scale: scale}
	topMargin := h * headroomTopMargin
	switch {
	case face != nil:
		centerX := (float64(face.Min.X) + float64(face.Dx())/2) * scale
		layout.OffsetX = int(math.Round(w/2 - centerX))
		layout.OffsetY = int(math.Round(topMargin - float64(face.Min.Y)*scale))
	case rule.IsSignature:
		centerX := (float64(subject.Min.X) + subjectW/2) * scale
		centerY := (float64(subject.Min.Y) + subjectH/2) * scale
		layout.OffsetX = int(math.Round(w/2 - centerX))
		layout.OffsetY = int(math.Round(h/2 - centerY))
	default:
		centerX := (float64(subject.Min.X) + subjectW/2) * scale
		layout.OffsetX = int(math.Round(w/2 - centerX))
		layout.OffsetY = int(math.Round(topMargin - float64(subject.Min.Y)*scale))
	}
	return layout
}
