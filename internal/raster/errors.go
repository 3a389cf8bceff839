package raster

import (
	"errors"
	"fmt"
)

var (
	// ErrDecode means the source bytes could not be rasterized
	ErrDecode = errors.New("decode failure")
	// ErrSurfaceUnavailable means no processing buffer could be acquired for the image
	ErrSurfaceUnavailable = errors.New("surface unavailable")
	// ErrEncode means the processed buffer could not be serialized
	ErrEncode = errors.New("encode failure")
)

// StageError records which pipeline step failed
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
