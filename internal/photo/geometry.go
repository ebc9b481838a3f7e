package photo

import (
	"image"
	"sort"

	"snapfixer/internal/facedetect"
)

// signaturePadRatio widens the ink box on every side so ascenders and descenders survive cropping.
const signaturePadRatio = 0.05

// SubjectBounds returns the tight box of all pixels with non-zero alpha. An image
// without any such pixel yields its full bounds.
func SubjectBounds(img *image.NRGBA) image.Rectangle {
	b := img.Bounds()
	minX, minY, maxX, maxY := b.Max.X, b.Max.Y, b.Min.X-1, b.Min.Y-1
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := img.Pix[img.PixOffset(b.Min.X, y) : img.PixOffset(b.Min.X, y)+b.Dx()*4]
		for i := 3; i < len(row); i += 4 {
			if row[i] == 0 {
				continue
			}
			x := b.Min.X + i/4
			minX, maxX = min(minX, x), max(maxX, x)
			minY, maxY = min(minY, y), max(maxY, y)
		}
	}
	if maxX < minX {
		return b
	}
	return image.Rect(minX, minY, maxX+1, maxY+1)
}

// padSignatureBox expands box by 5% of its size per side, clipped to bounds.
func padSignatureBox(box, bounds image.Rectangle) image.Rectangle {
	padX := int(float64(box.Dx()) * signaturePadRatio)
	padY := int(float64(box.Dy()) * signaturePadRatio)
	return image.Rect(box.Min.X-padX, box.Min.Y-padY, box.Max.X+padX, box.Max.Y+padY).Intersect(bounds)
}

// mapFaces scales proxy detections back to full resolution, drops boxes that became
// degenerate and orders the rest by area, largest first.
func mapFaces(faces []facedetect.Face, proxyScale float64) []image.Rectangle {
	out := make([]image.Rectangle, 0, len(faces))
	for _, f := range faces {
		r := image.Rect(
			int(float64(f.X)*proxyScale),
			int(float64(f.Y)*proxyScale),
			int(float64(f.X)*proxyScale)+int(float64(f.Width)*proxyScale),
			int(float64(f.Y)*proxyScale)+int(float64(f.Height)*proxyScale),
		)
		if r.Empty() {
			continue
		}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Dx()*out[i].Dy() > out[j].Dx()*out[j].Dy()
	})
	return out
}
