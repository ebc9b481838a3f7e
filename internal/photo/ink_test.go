package photo

import (
	"context"
	"image"
	"image/color"
	"testing"
)

func TestInkAlphaMonotonic(t *testing.T) {
	for _, limit := range []int{1, 60, 200, 240} {
		prev := 256
		for g := 0; g < 256; g++ {
			a := int(inkAlpha(uint8(g), limit))
			if a > prev {
				t.Fatalf("limit %d: alpha rose from %d to %d at gray %d", limit, prev, a, g)
			}
			prev = a
		}
		if inkAlpha(0, limit) != 255 {
			t.Fatalf("limit %d: black should be fully opaque, got %d", limit, inkAlpha(0, limit))
		}
		if inkAlpha(uint8(limit), limit) != 0 {
			t.Fatalf("limit %d: paper level should be transparent", limit)
		}
	}
}

func TestInkAlphaZeroLimit(t *testing.T) {
	for g := 0; g < 256; g++ {
		if a := inkAlpha(uint8(g), 0); a != 0 {
			t.Fatalf("gray %d: expected 0 alpha with zero limit, got %d", g, a)
		}
	}
}

func TestInkExtractorSeparatesStroke(t *testing.T) {
	paper := color.NRGBA{R: 240, G: 240, B: 240, A: 255}
	stroke := color.NRGBA{R: 20, G: 40, B: 160, A: 255}
	src := filled(400, 200, paper)
	fillRect(src, image.Rect(100, 80, 300, 120), stroke)

	out, err := InkExtractor{}.Isolate(context.Background(), src)
	if err != nil {
		t.Fatalf("isolate: %v", err)
	}
	if out.Bounds() != src.Bounds() {
		t.Fatalf("bounds changed: %v", out.Bounds())
	}
	if a := out.NRGBAAt(10, 10).A; a != 0 {
		t.Fatalf("paper alpha = %d, want 0", a)
	}
	if a := out.NRGBAAt(200, 100).A; a < 200 {
		t.Fatalf("stroke alpha = %d, want strong ink", a)
	}

	ink := out.NRGBAAt(200, 100)
	if ink.B <= ink.R || ink.B <= ink.G {
		t.Fatalf("ink colour %+v lost its blue hue", ink)
	}
	if ink.B > inkValueCap {
		t.Fatalf("ink value %d exceeds cap", ink.B)
	}
	if got := SubjectBounds(out); got != image.Rect(100, 80, 300, 120) {
		t.Fatalf("subject bounds = %v", got)
	}
}

func TestInkExtractorBlankScan(t *testing.T) {
	src := filled(120, 80, color.NRGBA{R: 250, G: 250, B: 250, A: 255})

	out, err := InkExtractor{}.Isolate(context.Background(), src)
	if err != nil {
		t.Fatalf("isolate: %v", err)
	}
	for i := 3; i < len(out.Pix); i += 4 {
		if out.Pix[i] != 0 {
			t.Fatalf("blank scan produced alpha %d", out.Pix[i])
		}
	}
	if got := SubjectBounds(out); got != out.Bounds() {
		t.Fatalf("blank subject bounds = %v, want full image", got)
	}
}

func TestInkColorDefaultsToBlack(t *testing.T) {
	src := filled(4, 4, color.NRGBA{R: 200, A: 255})
	got := inkColor(src, make([]uint8, 16))
	if got != (color.NRGBA{A: 255}) {
		t.Fatalf("ink colour = %+v, want black", got)
	}
}

func TestHSVRoundTrip(t *testing.T) {
	for _, c := range []color.NRGBA{
		{R: 255}, {G: 255}, {B: 255}, {R: 20, G: 40, B: 160}, {R: 90, G: 90, B: 90},
	} {
		h, s, v := rgbToHSV(c.R, c.G, c.B)
		r, g, b := hsvToRGB(h, s, v)
		if absDiff(r, c.R) > 1 || absDiff(g, c.G) > 1 || absDiff(b, c.B) > 1 {
			t.Fatalf("round trip %+v -> (%d,%d,%d)", c, r, g, b)
		}
	}
}

func TestEqualizeLocalKeepsUniformImage(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 64, 64))
	for i := range src.Pix {
		src.Pix[i] = 128
	}
	out := equalizeLocal(src)
	first := out.Pix[0]
	for i, v := range out.Pix {
		if v != first {
			t.Fatalf("pixel %d = %d, want uniform %d", i, v, first)
		}
	}
}

func TestEqualizeLocalSmallImage(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 3, 2))
	copy(src.Pix, []uint8{0, 50, 100, 150, 200, 250})
	out := equalizeLocal(src)
	if out.Bounds() != src.Bounds() {
		t.Fatalf("bounds = %v", out.Bounds())
	}
	if out.Pix[0] > out.Pix[5] {
		t.Fatalf("dark pixel %d brighter than light pixel %d", out.Pix[0], out.Pix[5])
	}
}

func absDiff(a, b uint8) uint8 {
	if a > b {
		return a - b
	}
	return b - a
}
