package raster

import (
	"runtime"
	"sync"
)

// Grayscale sets every colour channel to the pixel's luminance. Alpha is kept.
func Grayscale(src *Image) *Image {
	dst := src.Clone()
	for i := 0; i+3 < len(dst.Pix); i += dst.Channels {
		l := clamp(Luminance(dst.Pix[i], dst.Pix[i+1], dst.Pix[i+2]))
		dst.Pix[i], dst.Pix[i+1], dst.Pix[i+2] = l, l, l
	}
	return dst
}

// LuminanceRange returns the smallest and largest pixel luminance
func LuminanceRange(src *Image) (float64, float64) {
	if len(src.Pix) < src.Channels {
		return 0, 0
	}
	lo, hi := 255.0, 0.0
	for i := 0; i+3 < len(src.Pix); i += src.Channels {
		l := Luminance(src.Pix[i], src.Pix[i+1], src.Pix[i+2])
		if l < lo {
			lo = l
		}
		if l > hi {
			hi = l
		}
	}
	return lo, hi
}

// AutoAdjust stretches the luminance range onto [0, 255]. A flat image is returned as an
// unmodified copy.
func AutoAdjust(src *Image) *Image {
	dst := src.Clone()
	lo, hi := LuminanceRange(src)
	if hi <= lo {
		return dst
	}

	scale := 255 / (hi - lo)
	for i := 0; i+3 < len(dst.Pix); i += dst.Channels {
		for c := 0; c < 3; c++ {
			dst.Pix[i+c] = clamp((float64(dst.Pix[i+c]) - lo) * scale)
		}
	}
	return dst
}

// Sharpen applies the 3x3 kernel [[0,-1,0],[-1,5,-1],[0,-1,0]] to interior pixels.
// The outermost row and column on each edge are copied unchanged.
func Sharpen(src *Image) *Image {
	return sharpen(src, runtime.GOMAXPROCS(0))
}

func sharpen(src *Image, workers int) *Image {
	dst := src.Clone()
	if src.Width < 3 || src.Height < 3 {
		return dst
	}

	rows := src.Height - 2
	if workers < 1 {
		workers = 1
	}
	if workers > rows {
		workers = rows
	}
	chunk := (rows + workers - 1) / workers

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		start := 1 + w*chunk
		end := min(start+chunk, src.Height-1)
		if start >= end {
			break
		}

		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			sharpenRows(src, dst, start, end)
		}(start, end)
	}
	wg.Wait()

	return dst
}

// sharpenRows convolves rows [start, end) reading only from src
func sharpenRows(src, dst *Image, start, end int) {
	stride := src.Width * src.Channels
	ch := src.Channels
	for y := start; y < end; y++ {
		for x := 1; x < src.Width-1; x++ {
			i := src.offset(x, y)
			for c := 0; c < 3; c++ {
				v := 5*int(src.Pix[i+c]) -
					int(src.Pix[i-stride+c]) -
					int(src.Pix[i+stride+c]) -
					int(src.Pix[i-ch+c]) -
					int(src.Pix[i+ch+c])
				dst.Pix[i+c] = clamp(float64(v))
			}
			dst.Pix[i+3] = 255
		}
	}
}
