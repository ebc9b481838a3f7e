package photo

import (
	"image"

	"github.com/disintegration/imaging"
)

const (
	// DetectionProxyEdge caps the long edge of the face detection proxy.
	DetectionProxyEdge = 1024
	// SegmentationProxyEdge caps the long edge of the segmentation working copy.
	SegmentationProxyEdge = 3200
)

// Proxy is a downscaled working copy plus the ratio back to full resolution.
type Proxy struct {
	Image *image.NRGBA
	Scale float64
}

// MakeProxy returns a copy whose long edge is at most maxEdge, downsampled with Lanczos.
// Scale is fullLongEdge/proxyLongEdge and is exactly 1 when no resampling happened.
func MakeProxy(src *image.NRGBA, maxEdge int) Proxy {
	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	long := max(w, h)
	if long <= maxEdge {
		return Proxy{Image: src, Scale: 1}
	}

	scaled := imaging.Fit(src, maxEdge, maxEdge, imaging.Lanczos)
	proxyLong := max(scaled.Bounds().Dx(), scaled.Bounds().Dy())
	return Proxy{Image: scaled, Scale: float64(long) / float64(proxyLong)}
}

// detectionProxy builds the proxy used for face detection. Signature jobs never
// run detection, so they keep the full-resolution image.
func detectionProxy(src *image.NRGBA, rule DocumentRule) Proxy {
	if rule.IsSignature {
		return Proxy{Image: src, Scale: 1}
	}
	return MakeProxy(src, DetectionProxyEdge)
}
