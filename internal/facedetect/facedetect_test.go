package facedetect

import (
	"context"
	"image"
	"testing"

	pigo "github.com/esimov/pigo/core"
)

func TestToFacesFiltersAndOrders(t *testing.T) {
	bounds := image.Rect(0, 0, 200, 100)
	dets := []pigo.Detection{
		{Row: 50, Col: 50, Scale: 40, Q: 6},
		{Row: 50, Col: 150, Scale: 30, Q: 12},
		{Row: 10, Col: 10, Scale: 20, Q: 1},
		{Row: 95, Col: 195, Scale: 20, Q: 9},
	}

	faces := toFaces(dets, 5, bounds)
	if len(faces) != 3 {
		t.Fatalf("expected 3 faces, got %d", len(faces))
	}
	if faces[0].Score != 12 || faces[1].Score != 9 || faces[2].Score != 6 {
		t.Fatalf("faces not in confidence order: %+v", faces)
	}
	if got := faces[2]; got.X != 30 || got.Y != 30 || got.Width != 40 || got.Height != 40 {
		t.Fatalf("unexpected box %+v", got)
	}
	if got := faces[1]; got.X+got.Width > 200 || got.Y+got.Height > 100 {
		t.Fatalf("box not clipped to image: %+v", got)
	}
}

func TestNoopFindsNothing(t *testing.T) {
	faces, err := Noop{}.Detect(context.Background(), image.NewGray(image.Rect(0, 0, 8, 8)))
	if err != nil || len(faces) != 0 {
		t.Fatalf("expected no faces, got %v %v", faces, err)
	}
}

func TestCascadeMissingFile(t *testing.T) {
	det := NewCascade(NewCascadeCache(), "/nonexistent/facefinder", 20, 5)
	if _, err := det.Detect(context.Background(), image.NewGray(image.Rect(0, 0, 8, 8))); err == nil {
		t.Fatal("expected error for missing cascade")
	}
}
