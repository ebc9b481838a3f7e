package photo

import (
	"image"
	"image/color"
	"testing"
)

func TestComposeResamplesOnlyVisibleSubject(t *testing.T) {
	isolated := image.NewNRGBA(image.Rect(0, 0, 2000, 1500))
	box := image.Rect(1000, 700, 1004, 704)
	fillRect(isolated, box, color.NRGBA{A: 255})

	// Scale 77 would need a 154875x116156 buffer for the whole image.
	layout := Layout{CanvasWidth: 413, CanvasHeight: 531, Scale: 77.44}
	layout.OffsetX = 206 - int(1002*layout.Scale)
	layout.OffsetY = 265 - int(702*layout.Scale)

	canvas, err := Compose(isolated, box, layout, true)
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	if canvas.Bounds() != image.Rect(0, 0, 413, 531) {
		t.Fatalf("canvas bounds %v", canvas.Bounds())
	}
	if c := canvas.NRGBAAt(206, 265); c.A < 200 {
		t.Fatalf("centre alpha = %d, want ink", c.A)
	}
	if c := canvas.NRGBAAt(5, 5); c.A != 0 {
		t.Fatalf("corner alpha = %d, want transparent", c.A)
	}
}

func TestComposeSubjectOffCanvas(t *testing.T) {
	isolated := filled(100, 100, color.NRGBA{R: 9, A: 255})
	layout := Layout{CanvasWidth: 50, CanvasHeight: 50, Scale: 1, OffsetX: 500}

	canvas, err := Compose(isolated, isolated.Bounds(), layout, false)
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	for i := 3; i < len(canvas.Pix); i += 4 {
		if canvas.Pix[i] != 0 {
			t.Fatal("expected an empty canvas when the subject lands outside it")
		}
	}
}

func TestComposeRejectsRunawayScale(t *testing.T) {
	isolated := filled(10, 10, color.NRGBA{A: 255})
	layout := Layout{CanvasWidth: 100000, CanvasHeight: 100000, Scale: 10000}

	if _, err := Compose(isolated, isolated.Bounds(), layout, false); !IsIsolation(err) {
		t.Fatalf("expected isolation error, got %v", err)
	}
}

func TestLayoutWindowAndPlace(t *testing.T) {
	l := Layout{CanvasWidth: 100, CanvasHeight: 80, Scale: 2, OffsetX: -50, OffsetY: 10}
	if got, want := l.Window(), image.Rect(25, -5, 75, 35); got != want {
		t.Fatalf("window = %v, want %v", got, want)
	}
	if got, want := l.Place(image.Rect(25, 0, 75, 35)), image.Rect(0, 10, 100, 80); got != want {
		t.Fatalf("place = %v, want %v", got, want)
	}
}
