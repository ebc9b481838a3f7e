package photo

import "math"

// OutputDPI is the fixed print resolution of every compliance canvas.
const OutputDPI = 300

const mmPerInch = 25.4

// DocumentRule is the immutable set of framing parameters for one document type.
// It is supplied by the rule catalog and never mutated by the pipeline.
type DocumentRule struct {
	TargetWidthMM         float64 `json:"target_width_mm"`
	TargetHeightMM        float64 `json:"target_height_mm"`
	BackgroundColor       string  `json:"background_color"`
	IsSignature           bool    `json:"is_signature"`
	SkipBackgroundRemoval bool    `json:"skip_background_removal"`
	UseOriginalDimensions bool    `json:"use_original_dimensions"`
}

// Passthrough reports whether the layout step is bypassed and output keeps source dimensions.
func (r DocumentRule) Passthrough() bool {
	return r.SkipBackgroundRemoval || r.UseOriginalDimensions
}

// TargetPixels converts the physical target size into canvas pixels at OutputDPI.
func (r DocumentRule) TargetPixels() (width, height int) {
	return mmToPixels(r.TargetWidthMM), mmToPixels(r.TargetHeightMM)
}

func mmToPixels(mm float64) int {
	return int(math.Round(mm / mmPerInch * OutputDPI))
}
