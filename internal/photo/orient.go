package photo

import (
	"bytes"
	"errors"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // jpeg, png, gif, bmp and tiff are registered by imaging
)

const (
	// maxSourceDimension caps width/height so hostile headers cannot force huge allocations.
	maxSourceDimension = 20000
	// maxSourcePixels bounds the RGBA working set to roughly 400 MB.
	maxSourcePixels int64 = 100 * 1000 * 1000
)

var errEmptyInput = errors.New("empty image data")

// Normalize decodes raw bytes and applies EXIF rotation/mirroring so pixel data
// reads upright with a top-left origin. Any parse failure is a decode error.
func Normalize(data []byte) (*image.NRGBA, error) {
	if len(data) == 0 {
		return nil, decodeError("decode image", errEmptyInput)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, decodeError("decode image", err)
	}
	if err := validateBounds(cfg.Width, cfg.Height); err != nil {
		return nil, decodeError("decode image", err)
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, decodeError("decode image", err)
	}
	return imaging.Clone(img), nil
}

func validateBounds(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("image bounds invalid (%d x %d)", width, height)
	}
	if width > maxSourceDimension || height > maxSourceDimension {
		return fmt.Errorf("image dimension exceeds limit (%d x %d)", width, height)
	}
	if pixels := int64(width) * int64(height); pixels > maxSourcePixels {
		return fmt.Errorf("image pixel count %d exceeds limit %d", pixels, maxSourcePixels)
	}
	return nil
}
