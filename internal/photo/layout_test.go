package photo

import (
	"image"
	"math"
	"testing"
)

var passportRule = DocumentRule{TargetWidthMM: 35, TargetHeightMM: 45, BackgroundColor: "white"}

func TestTargetPixels(t *testing.T) {
	tests := []struct {
		w, h         float64
		wantW, wantH int
	}{
		{35, 45, 413, 531},
		{51, 51, 602, 602},
		{50, 70, 591, 827},
	}
	for _, tt := range tests {
		gotW, gotH := DocumentRule{TargetWidthMM: tt.w, TargetHeightMM: tt.h}.TargetPixels()
		if gotW != tt.wantW || gotH != tt.wantH {
			t.Errorf("%vx%v mm: got %dx%d want %dx%d", tt.w, tt.h, gotW, gotH, tt.wantW, tt.wantH)
		}
	}
}

func TestPlanLayoutFaceCalibratesHeadHeight(t *testing.T) {
	img := image.Rect(0, 0, 600, 800)
	face := image.Rect(200, 100, 400, 300)

	layout := PlanLayout(passportRule, img, img, &face)

	want := 531 * 0.30 / 200
	if math.Abs(layout.Scale-want) > 1e-9 {
		t.Fatalf("scale = %v, want %v", layout.Scale, want)
	}
	if got := float64(face.Dy()) * layout.Scale; math.Abs(got-531*0.30) > 1 {
		t.Fatalf("scaled face height %v, want about %v", got, 531*0.30)
	}
	faceTop := float64(layout.OffsetY) + float64(face.Min.Y)*layout.Scale
	if math.Abs(faceTop-531*0.15) > 1 {
		t.Fatalf("face top at %v, want %v", faceTop, 531*0.15)
	}
	faceCenter := float64(layout.OffsetX) + float64(face.Min.X+face.Dx()/2)*layout.Scale
	if math.Abs(faceCenter-413.0/2) > 1 {
		t.Fatalf("face centre at %v, want %v", faceCenter, 413.0/2)
	}
}

func TestPlanLayoutSignatureFitsAndCenters(t *testing.T) {
	rule := passportRule
	rule.IsSignature = true
	img := image.Rect(0, 0, 1000, 600)
	subject := image.Rect(300, 250, 700, 350)

	layout := PlanLayout(rule, img, subject, nil)

	want := math.Min(413*0.75/400, 531*0.75/100)
	if math.Abs(layout.Scale-want) > 1e-9 {
		t.Fatalf("scale = %v, want %v", layout.Scale, want)
	}
	cx := float64(layout.OffsetX) + 500*layout.Scale
	cy := float64(layout.OffsetY) + 300*layout.Scale
	if math.Abs(cx-413.0/2) > 1 || math.Abs(cy-531.0/2) > 1 {
		t.Fatalf("subject centre at (%v,%v), want canvas centre", cx, cy)
	}
}

func TestPlanLayoutSignatureIgnoresFace(t *testing.T) {
	rule := passportRule
	rule.IsSignature = true
	img := image.Rect(0, 0, 1000, 600)
	subject := image.Rect(300, 250, 700, 350)
	face := image.Rect(0, 0, 10, 10)

	if PlanLayout(rule, img, subject, &face) != PlanLayout(rule, img, subject, nil) {
		t.Fatal("signature layout must not depend on faces")
	}
}

func TestPlanLayoutFacelessPortrait(t *testing.T) {
	img := image.Rect(0, 0, 1000, 1000)
	subject := image.Rect(100, 200, 900, 1000)

	layout := PlanLayout(passportRule, img, subject, nil)

	fit := math.Min(413*0.80/800, 531*0.80/800)
	if layout.Scale < fit {
		t.Fatalf("scale %v below fill ratio fit %v", layout.Scale, fit)
	}
	if got := 800 * layout.Scale; got < 413-1e-9 {
		t.Fatalf("scaled subject width %v narrower than canvas", got)
	}
	if got := 800 * layout.Scale; got < 531*0.85-1e-9 {
		t.Fatalf("scaled subject height %v below 85%% of canvas", got)
	}
	top := float64(layout.OffsetY) + 200*layout.Scale
	if math.Abs(top-531*0.15) > 1 {
		t.Fatalf("subject top at %v, want %v", top, 531*0.15)
	}
}

func TestPlanLayoutWidthGuardFillsCanvas(t *testing.T) {
	img := image.Rect(0, 0, 400, 2000)
	subject := image.Rect(100, 0, 300, 2000)

	layout := PlanLayout(passportRule, img, subject, nil)

	if want := 413.0 / 200; math.Abs(layout.Scale-want) > 1e-9 {
		t.Fatalf("scale = %v, want width fill %v", layout.Scale, want)
	}
}

func TestPlanLayoutVerticalGuardRaisesScale(t *testing.T) {
	img := image.Rect(0, 0, 2000, 500)
	face := image.Rect(950, 300, 1050, 400)
	subject := image.Rect(0, 0, 2000, 500)

	layout := PlanLayout(passportRule, img, subject, &face)

	if want := 531 * 0.85 / 200; math.Abs(layout.Scale-want) > 1e-9 {
		t.Fatalf("scale = %v, want vertical guard %v", layout.Scale, want)
	}
}

func TestPlanLayoutPassthrough(t *testing.T) {
	img := image.Rect(0, 0, 640, 480)
	for _, rule := range []DocumentRule{
		{TargetWidthMM: 35, TargetHeightMM: 45, SkipBackgroundRemoval: true},
		{TargetWidthMM: 35, TargetHeightMM: 45, UseOriginalDimensions: true},
	} {
		got := PlanLayout(rule, img, image.Rect(10, 10, 20, 20), nil)
		want := Layout{CanvasWidth: 640, CanvasHeight: 480, Scale: 1}
		if got != want {
			t.Fatalf("passthrough layout %+v, want %+v", got, want)
		}
	}
}
