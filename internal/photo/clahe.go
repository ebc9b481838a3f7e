package photo

import (
	"image"
	"math"
)

const (
	claheClipLimit = 3.0
	claheGrid      = 8
)

// equalizeLocal applies contrast limited adaptive histogram equalization on an 8x8
// tile grid with bilinear interpolation between neighbouring tile mappings.
func equalizeLocal(src *image.Gray) *image.Gray {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	dst := image.NewGray(image.Rect(0, 0, w, h))
	if w == 0 || h == 0 {
		return dst
	}

	tilesX, tilesY := min(claheGrid, w), min(claheGrid, h)
	tileW := (w + tilesX - 1) / tilesX
	tileH := (h + tilesY - 1) / tilesY
	tilesX = (w + tileW - 1) / tileW
	tilesY = (h + tileH - 1) / tileH

	luts := make([][256]uint8, tilesX*tilesY)
	for ty := 0; ty < tilesY; ty++ {
		for tx := 0; tx < tilesX; tx++ {
			rect := image.Rect(tx*tileW, ty*tileH, min((tx+1)*tileW, w), min((ty+1)*tileH, h))
			luts[ty*tilesX+tx] = tileMapping(src, rect)
		}
	}

	for y := 0; y < h; y++ {
		fy := (float64(y)+0.5)/float64(tileH) - 0.5
		ty1 := int(math.Floor(fy))
		ya := fy - float64(ty1)
		ty2 := ty1 + 1
		ty1 = clampInt(ty1, 0, tilesY-1)
		ty2 = clampInt(ty2, 0, tilesY-1)

		srcRow := src.Pix[(y)*src.Stride : (y)*src.Stride+w]
		dstRow := dst.Pix[y*dst.Stride : y*dst.Stride+w]
		for x := 0; x < w; x++ {
			fx := (float64(x)+0.5)/float64(tileW) - 0.5
			tx1 := int(math.Floor(fx))
			xa := fx - float64(tx1)
			tx2 := tx1 + 1
			tx1 = clampInt(tx1, 0, tilesX-1)
			tx2 = clampInt(tx2, 0, tilesX-1)

			v := srcRow[x]
			top := (1-xa)*float64(luts[ty1*tilesX+tx1][v]) + xa*float64(luts[ty1*tilesX+tx2][v])
			bottom := (1-xa)*float64(luts[ty2*tilesX+tx1][v]) + xa*float64(luts[ty2*tilesX+tx2][v])
			dstRow[x] = uint8(clampFloat(math.Round((1-ya)*top+ya*bottom), 0, 255))
		}
	}
	return dst
}

// tileMapping builds the clipped, redistributed equalization table for one tile.
func tileMapping(src *image.Gray, rect image.Rectangle) [256]uint8 {
	var hist [256]int
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		row := src.Pix[y*src.Stride+rect.Min.X : y*src.Stride+rect.Max.X]
		for _, v := range row {
			hist[v]++
		}
	}

	area := rect.Dx() * rect.Dy()
	clip := max(1, int(claheClipLimit*float64(area)/256))
	excess := 0
	for i := range hist {
		if hist[i] > clip {
			excess += hist[i] - clip
			hist[i] = clip
		}
	}
	batch := excess / 256
	residual := excess - batch*256
	for i := range hist {
		hist[i] += batch
	}
	if residual > 0 {
		step := max(1, 256/residual)
		for i := 0; i < 256 && residual > 0; i += step {
			hist[i]++
			residual--
		}
	}

	var lut [256]uint8
	scale := 255.0 / float64(area)
	sum := 0
	for i := range hist {
		sum += hist[i]
		lut[i] = uint8(clampFloat(math.Round(float64(sum)*scale), 0, 255))
	}
	return lut
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
