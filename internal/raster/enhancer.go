package raster

import (
	"fmt"
	"log/slog"
)

// Options selects which pipeline stages run. Stages always run in the order
// grayscale, auto-adjust, sharpen regardless of how the options were set.
type Options struct {
	Grayscale  bool `json:"grayscale" yaml:"grayscale"`
	Sharpen    bool `json:"sharpen" yaml:"sharpen"`
	AutoAdjust bool `json:"auto_adjust" yaml:"auto_adjust"`
}

// DefaultOptions sharpens and stretches contrast but keeps colour
func DefaultOptions() Options {
	return Options{
		Grayscale:  false,
		Sharpen:    true,
		AutoAdjust: true,
	}
}

// Any reports whether at least one stage is requested
func (o Options) Any() bool {
	return o.Grayscale || o.Sharpen || o.AutoAdjust
}

// Result is the output of one enhancement run
type Result struct {
	Data      []byte
	Format    string
	Width     int
	Height    int
	Processed bool
}

// Enhancer runs the pixel pipeline over encoded images
type Enhancer struct {
	Quality int
}

// NewEnhancer creates an enhancer that re-encodes at JPEGQuality
func NewEnhancer() *Enhancer {
	return &Enhancer{Quality: JPEGQuality}
}

// Enhance decodes data, applies the requested stages and re-encodes the result.
// It never fails: on any error the original bytes come back with Processed=false.
func (e *Enhancer) Enhance(data []byte, opts Options) (result Result) {
	passthrough := Result{Data: data}
	if !opts.Any() {
		return passthrough
	}

	defer func() {
		if r := recover(); r != nil {
			slog.Warn("Enhancement panicked, keeping original image", "panic", r)
			result = passthrough
		}
	}()

	out, err := e.run(data, opts)
	if err != nil {
		slog.Warn("Enhancement failed, keeping original image", "err", err)
		return passthrough
	}
	return out
}

func (e *Enhancer) run(data []byte, opts Options) (Result, error) {
	img, format, err := Decode(data)
	if err != nil {
		return Result{}, err
	}

	img, err = Apply(img, opts)
	if err != nil {
		return Result{}, err
	}

	quality := e.Quality
	if quality <= 0 {
		quality = JPEGQuality
	}
	encoded, err := Encode(img, quality)
	if err != nil {
		return Result{}, err
	}

	slog.Debug("Image enhanced",
		"format", format,
		"width", img.Width,
		"height", img.Height,
		"grayscale", opts.Grayscale,
		"auto_adjust", opts.AutoAdjust,
		"sharpen", opts.Sharpen,
		"bytes_in", len(data),
		"bytes_out", len(encoded))

	return Result{
		Data:      encoded,
		Format:    format,
		Width:     img.Width,
		Height:    img.Height,
		Processed: true,
	}, nil
}

// Apply runs the requested stages on an already decoded buffer
func Apply(img *Image, opts Options) (*Image, error) {
	if err := img.Validate(); err != nil {
		return nil, &StageError{Stage: "apply", Err: fmt.Errorf("%w: %w", ErrSurfaceUnavailable, err)}
	}

	if opts.Grayscale {
		img = Grayscale(img)
	}
	if opts.AutoAdjust {
		img = AutoAdjust(img)
	}
	if opts.Sharpen {
		img = Sharpen(img)
	}
	return img, nil
}
