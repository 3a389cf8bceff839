package raster

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

const (
	// JPEGQuality is the quality used when re-encoding processed pages
	JPEGQuality = 95
	// ContentType of every re-encoded artifact
	ContentType = "image/jpeg"

	// maxDimension caps width/height so a lying header cannot force a huge allocation
	maxDimension = 32768
	// maxPixels keeps the RGBA buffer under 256 MB
	maxPixels int64 = 64 * 1024 * 1024
)

// Decode rasterizes encoded image bytes and reports the source format
func Decode(data []byte) (*Image, string, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", &StageError{Stage: "decode", Err: fmt.Errorf("%w: %w", ErrDecode, err)}
	}

	if err := validateBounds(cfg.Width, cfg.Height); err != nil {
		return nil, format, &StageError{Stage: "decode", Err: fmt.Errorf("%w: %w", ErrSurfaceUnavailable, err)}
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, format, &StageError{Stage: "decode", Err: fmt.Errorf("%w: %w", ErrDecode, err)}
	}

	return FromImage(src), format, nil
}

// Encode serializes the buffer as JPEG at the given quality
func Encode(img *Image, quality int) ([]byte, error) {
	if err := img.Validate(); err != nil {
		return nil, &StageError{Stage: "encode", Err: fmt.Errorf("%w: %w", ErrSurfaceUnavailable, err)}
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img.ToNRGBA(), &jpeg.Options{Quality: quality}); err != nil {
		return nil, &StageError{Stage: "encode", Err: fmt.Errorf("%w: %w", ErrEncode, err)}
	}
	return buf.Bytes(), nil
}

func validateBounds(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("image bounds invalid (%d x %d)", width, height)
	}
	if width > maxDimension || height > maxDimension {
		return fmt.Errorf("image dimension exceeds limit (%d x %d)", width, height)
	}
	pixels := int64(width) * int64(height)
	if pixels > maxPixels {
		return fmt.Errorf("image pixel count %d exceeds limit %d", pixels, maxPixels)
	}
	return nil
}
