// Package photo turns an arbitrary portrait or signature scan into a fixed-size,
// transparent compliance image.
package photo

import (
	"context"
	"image"
	"log/slog"
	"time"

	"snapfixer/internal/facedetect"
	"snapfixer/internal/segment"
)

// StageObserver receives the duration of each pipeline stage.
type StageObserver func(stage string, elapsed time.Duration)

// Processor runs the pipeline. It holds no per-job state and is safe for concurrent use
// as long as its Segmenter and Detector are.
type Processor struct {
	segmenter segment.Segmenter
	detector  facedetect.Detector
	logger    *slog.Logger
	observe   StageObserver
}

// Option customizes a Processor.
type Option func(*Processor)

// WithLogger sets the logger used for degraded-path warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Processor) { p.logger = logger }
}

// WithStageObserver reports stage timings, typically to metrics.
func WithStageObserver(observe StageObserver) Option {
	return func(p *Processor) { p.observe = observe }
}

// NewProcessor wires the two opaque capabilities into a pipeline. A nil detector
// disables face detection.
func NewProcessor(segmenter segment.Segmenter, detector facedetect.Detector, opts ...Option) *Processor {
	if detector == nil {
		detector = facedetect.Noop{}
	}
	p := &Processor{
		segmenter: segmenter,
		detector:  detector,
		logger:    slog.Default(),
		observe:   func(string, time.Duration) {},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process converts encoded image bytes into an encoded PNG with alpha. Output is
// canvas-sized per rule, or source-sized in passthrough mode. It returns *Error on
// failure and never returns partial output.
func (p *Processor) Process(ctx context.Context, data []byte, rule DocumentRule) ([]byte, error) {
	src, err := timed(p, "decode", func() (*image.NRGBA, error) { return Normalize(data) })
	if err != nil {
		return nil, err
	}

	isolated, err := timed(p, "isolate", func() (*image.NRGBA, error) {
		return p.isolatorFor(rule).Isolate(ctx, src)
	})
	if err != nil {
		return nil, err
	}

	subject := SubjectBounds(isolated)
	if rule.IsSignature && !rule.SkipBackgroundRemoval {
		subject = padSignatureBox(subject, isolated.Bounds())
	}

	var face *image.Rectangle
	if !rule.IsSignature && !rule.Passthrough() {
		face, _ = timed(p, "detect", func() (*image.Rectangle, error) {
			return p.primaryFace(ctx, src, rule), nil
		})
	}

	layout := PlanLayout(rule, isolated.Bounds(), subject, face)
	canvas, err := timed(p, "compose", func() (*image.NRGBA, error) {
		return Compose(isolated, subject, layout, rule.IsSignature)
	})
	if err != nil {
		return nil, err
	}

	return timed(p, "encode", func() ([]byte, error) { return Encode(canvas) })
}

func (p *Processor) isolatorFor(rule DocumentRule) Isolator {
	switch {
	case rule.SkipBackgroundRemoval:
		return opaqueIsolator{}
	case rule.IsSignature:
		return InkExtractor{}
	default:
		return PortraitSegmenter{Segmenter: p.segmenter, Options: segment.PortraitOptions()}
	}
}

// primaryFace detects on the proxy and returns the largest face in full-resolution
// coordinates. Detector failures degrade to the bounding-box layout.
func (p *Processor) primaryFace(ctx context.Context, src *image.NRGBA, rule DocumentRule) *image.Rectangle {
	proxy := detectionProxy(src, rule)
	found, err := p.detector.Detect(ctx, proxy.Image)
	if err != nil {
		p.logger.Warn("face detection failed, using subject bounds", slog.Any("error", err))
		return nil
	}
	faces := mapFaces(found, proxy.Scale)
	if len(faces) == 0 {
		return nil
	}
	return &faces[0]
}

func timed[T any](p *Processor, stage string, fn func() (T, error)) (T, error) {
	start := time.Now()
	v, err := fn()
	p.observe(stage, time.Since(start))
	return v, err
}
