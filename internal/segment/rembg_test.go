package segment

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newRembgServer(t *testing.T, seen map[string]string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != removePath {
			http.NotFound(w, r)
			return
		}
		if err := r.ParseMultipartForm(10 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		for _, key := range []string{"model", "om", "a", "af", "ab", "ae"} {
			seen[key] = r.FormValue(key)
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer file.Close()
		src, err := png.Decode(file)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		b := src.Bounds()
		mask := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
		for y := 0; y < b.Dy(); y++ {
			for x := b.Dx() / 2; x < b.Dx(); x++ {
				mask.SetGray(x, y, color.Gray{Y: 255})
			}
		}
		w.Header().Set("Content-Type", "image/png")
		_ = png.Encode(w, mask)
	}))
}

func TestRembgMask(t *testing.T) {
	seen := map[string]string{}
	srv := newRembgServer(t, seen)
	defer srv.Close()

	sessions := NewSessionCache(srv.URL, 5*time.Second)
	seg := NewRembg(sessions, "u2net_human")

	img := image.NewNRGBA(image.Rect(0, 0, 40, 20))
	mask, err := seg.Mask(context.Background(), img, PortraitOptions())
	if err != nil {
		t.Fatalf("mask: %v", err)
	}
	if mask.Bounds().Dx() != 40 || mask.Bounds().Dy() != 20 {
		t.Fatalf("unexpected mask bounds %v", mask.Bounds())
	}
	if mask.GrayAt(5, 5).Y != 0 || mask.GrayAt(35, 5).Y != 255 {
		t.Fatalf("unexpected mask values %d/%d", mask.GrayAt(5, 5).Y, mask.GrayAt(35, 5).Y)
	}

	want := map[string]string{"model": "u2net_human", "om": "true", "a": "true", "af": "240", "ab": "10", "ae": "15"}
	for key, value := range want {
		if seen[key] != value {
			t.Fatalf("field %s = %q, want %q", key, seen[key], value)
		}
	}

	if _, err := seg.Mask(context.Background(), img, PortraitOptions()); err != nil {
		t.Fatalf("second mask: %v", err)
	}
	if sessions.Len() != 1 {
		t.Fatalf("expected one cached session, got %d", sessions.Len())
	}
}

func TestRembgMaskServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model crashed", http.StatusInternalServerError)
	}))
	defer srv.Close()

	seg := NewRembg(NewSessionCache(srv.URL, time.Second), "u2net_human")
	_, err := seg.Mask(context.Background(), image.NewNRGBA(image.Rect(0, 0, 4, 4)), PortraitOptions())
	if err == nil || !strings.Contains(err.Error(), "status 500") {
		t.Fatalf("expected status error, got %v", err)
	}
}

func TestSessionCacheRejectsBadEndpoint(t *testing.T) {
	seg := NewRembg(NewSessionCache("not a url", time.Second), "u2net_human")
	if _, err := seg.Mask(context.Background(), image.NewNRGBA(image.Rect(0, 0, 2, 2)), PortraitOptions()); err == nil {
		t.Fatal("expected invalid endpoint error")
	}
}
