package worker

import (
	"fmt"
	"log/slog"

	"snapfixer/internal/config"
	"snapfixer/internal/facedetect"
	"snapfixer/internal/metrics"
	"snapfixer/internal/photo"
	"snapfixer/internal/segment"
)

// NewPipeline wires the photo processor from configuration. The segmenter session and
// the face cascade are loaded once here so a bad endpoint or cascade file fails at
// startup instead of on the first job.
func NewPipeline(seg config.SegmenterConfig, face config.FaceConfig, logger *slog.Logger) (*photo.Processor, error) {
	if logger == nil {
		logger = slog.Default()
	}

	sessions := segment.NewSessionCache(seg.Endpoint, seg.Timeout)
	if _, err := sessions.Get(seg.Model); err != nil {
		return nil, fmt.Errorf("load segmenter session: %w", err)
	}

	var detector facedetect.Detector = facedetect.Noop{}
	if face.CascadePath != "" {
		cascades := facedetect.NewCascadeCache()
		if _, err := cascades.Get(face.CascadePath); err != nil {
			return nil, fmt.Errorf("load face cascade: %w", err)
		}
		detector = facedetect.NewCascade(cascades, face.CascadePath, face.MinSize, face.QualityThreshold)
	} else {
		logger.Warn("face cascade not configured, portraits fall back to subject bounds")
	}

	return photo.NewProcessor(
		segment.NewRembg(sessions, seg.Model),
		detector,
		photo.WithLogger(logger),
		photo.WithStageObserver(metrics.ObserveStage),
	), nil
}
