package photo

import (
	"context"
	"image"
	"image/color"
	"math"
)

const (
	paperBuffer       = 15
	inkGamma          = 0.6
	inkColorMinAlpha  = 20
	inkSaturationMin  = 20
	inkSaturationGain = 2.0
	inkValueCap       = 180
)

// InkExtractor isolates pen strokes from a signature scan. It is deterministic and
// never fails; a blank scan yields a (near) fully transparent cutout.
type InkExtractor struct{}

// Isolate returns a solid ink-coloured image carrying a soft alpha mask at full resolution.
func (InkExtractor) Isolate(_ context.Context, src *image.NRGBA) (*image.NRGBA, error) {
	gray := toGray(src)
	enhanced := equalizeLocal(gray)
	paper := paperLevel(enhanced)
	limit := max(0, paper-paperBuffer)

	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	alpha := make([]uint8, w*h)
	for y := 0; y < h; y++ {
		row := enhanced.Pix[y*enhanced.Stride : y*enhanced.Stride+w]
		for x, g := range row {
			alpha[y*w+x] = inkAlpha(g, limit)
		}
	}

	ink := inkColor(src, alpha)
	out := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i, a := range alpha {
		o := i * 4
		out.Pix[o+0] = ink.R
		out.Pix[o+1] = ink.G
		out.Pix[o+2] = ink.B
		out.Pix[o+3] = a
	}
	return out, nil
}

// inkAlpha maps an equalized gray level to opacity: at or above limit is paper (0),
// darker values rise toward 255 through a hardening gamma curve.
func inkAlpha(g uint8, limit int) uint8 {
	if limit <= 0 || int(g) >= limit {
		return 0
	}
	a := float64(limit-int(g)) / float64(limit) * 255
	a = 255 * math.Pow(a/255, inkGamma)
	return uint8(clampFloat(a, 0, 255))
}

func toGray(src *image.NRGBA) *image.Gray {
	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	dst := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		s := src.Pix[y*src.Stride : y*src.Stride+w*4]
		d := dst.Pix[y*dst.Stride : y*dst.Stride+w]
		for x := range d {
			r, g, b := uint32(s[x*4]), uint32(s[x*4+1]), uint32(s[x*4+2])
			d[x] = uint8((r*4899 + g*9617 + b*1868 + 8192) >> 14)
		}
	}
	return dst
}

// paperLevel is the modal gray level, taken to be blank paper.
func paperLevel(g *image.Gray) int {
	var hist [256]int
	w, h := g.Bounds().Dx(), g.Bounds().Dy()
	for y := 0; y < h; y++ {
		for _, v := range g.Pix[y*g.Stride : y*g.Stride+w] {
			hist[v]++
		}
	}
	level := 0
	for i := 1; i < len(hist); i++ {
		if hist[i] > hist[level] {
			level = i
		}
	}
	return level
}

// inkColor picks the per-channel median of strongly inked pixels, then boosts
// saturation and caps brightness so the stroke reads bold. Black when no ink is found.
func inkColor(src *image.NRGBA, alpha []uint8) color.NRGBA {
	var hist [3][256]int
	n := 0
	w := src.Bounds().Dx()
	for i, a := range alpha {
		if a <= inkColorMinAlpha {
			continue
		}
		y, x := i/w, i%w
		o := y*src.Stride + x*4
		hist[0][src.Pix[o]]++
		hist[1][src.Pix[o+1]]++
		hist[2][src.Pix[o+2]]++
		n++
	}
	if n == 0 {
		return color.NRGBA{A: 0xff}
	}

	r, g, b := medianOf(&hist[0], n), medianOf(&hist[1], n), medianOf(&hist[2], n)
	hue, sat, val := rgbToHSV(r, g, b)
	if sat > inkSaturationMin {
		sat = math.Min(255, math.Floor(sat*inkSaturationGain))
	}
	val = math.Min(val, inkValueCap)
	r, g, b = hsvToRGB(hue, sat, val)
	return color.NRGBA{R: r, G: g, B: b, A: 0xff}
}

// medianOf returns the median of n samples counted in hist; even counts average the
// two middle samples and truncate.
func medianOf(hist *[256]int, n int) uint8 {
	lowRank, highRank := (n-1)/2, n/2
	low, high := -1, -1
	seen := 0
	for v, c := range hist {
		if c == 0 {
			continue
		}
		if low < 0 && seen+c > lowRank {
			low = v
		}
		if seen+c > highRank {
			high = v
			break
		}
		seen += c
	}
	return uint8((low + high) / 2)
}

// rgbToHSV returns hue in degrees and saturation/value on a 0..255 scale.
func rgbToHSV(r, g, b uint8) (h, s, v float64) {
	rf, gf, bf := float64(r), float64(g), float64(b)
	maxC := math.Max(rf, math.Max(gf, bf))
	minC := math.Min(rf, math.Min(gf, bf))
	delta := maxC - minC

	v = maxC
	if maxC > 0 {
		s = math.Round(255 * delta / maxC)
	}
	if delta == 0 {
		return 0, s, v
	}
	switch maxC {
	case rf:
		h = 60 * (gf - bf) / delta
	case gf:
		h = 120 + 60*(bf-rf)/delta
	default:
		h = 240 + 60*(rf-gf)/delta
	}
	if h < 0 {
		h += 360
	}
	return h, s, v
}

func hsvToRGB(h, s, v float64) (r, g, b uint8) {
	sf := s / 255
	c := v * sf
	hp := math.Mod(h, 360) / 60
	x := c * (1 - math.Abs(math.Mod(hp, 2)-1))
	var rf, gf, bf float64
	switch {
	case hp < 1:
		rf, gf, bf = c, x, 0
	case hp < 2:
		rf, gf, bf = x, c, 0
	case hp < 3:
		rf, gf, bf = 0, c, x
	case hp < 4:
		rf, gf, bf = 0, x, c
	case hp < 5:
		rf, gf, bf = x, 0, c
	default:
		rf, gf, bf = c, 0, x
	}
	m := v - c
	to8 := func(f float64) uint8 { return uint8(clampFloat(math.Round(f+m), 0, 255)) }
	return to8(rf), to8(gf), to8(bf)
}
