package raster

import (
	"fmt"
	"image"
	"image/draw"
)

// RGBAChannels is the channel count of every decoded image
const RGBAChannels = 4

// Image is a decoded raster buffer with interleaved, non-premultiplied channels
type Image struct {
	Width    int
	Height   int
	Channels int
	Pix      []uint8
}

// NewImage allocates a zeroed RGBA buffer
func NewImage(width, height int) *Image {
	return &Image{
		Width:    width,
		Height:   height,
		Channels: RGBAChannels,
		Pix:      make([]uint8, width*height*RGBAChannels),
	}
}

// FromImage copies any image.Image into an RGBA buffer
func FromImage(src image.Image) *Image {
	b := src.Bounds()
	nrgba := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(nrgba, nrgba.Bounds(), src, b.Min, draw.Src)

	img := NewImage(b.Dx(), b.Dy())
	rowLen := img.Width * RGBAChannels
	for y := 0; y < img.Height; y++ {
		copy(img.Pix[y*rowLen:(y+1)*rowLen], nrgba.Pix[y*nrgba.Stride:y*nrgba.Stride+rowLen])
	}
	return img
}

// ToNRGBA exposes the buffer as an image.Image for encoding
func (img *Image) ToNRGBA() *image.NRGBA {
	out := image.NewNRGBA(image.Rect(0, 0, img.Width, img.Height))
	copy(out.Pix, img.Pix)
	return out
}

// Clone returns an explicit copy of the buffer
func (img *Image) Clone() *Image {
	pix := make([]uint8, len(img.Pix))
	copy(pix, img.Pix)
	return &Image{
		Width:    img.Width,
		Height:   img.Height,
		Channels: img.Channels,
		Pix:      pix,
	}
}

// Validate checks the buffer length invariant
func (img *Image) Validate() error {
	if img.Width <= 0 || img.Height <= 0 {
		return fmt.Errorf("image bounds invalid (%d x %d)", img.Width, img.Height)
	}
	if img.Channels != RGBAChannels {
		return fmt.Errorf("unsupported channel count %d", img.Channels)
	}
	if want := img.Width * img.Height * img.Channels; len(img.Pix) != want {
		return fmt.Errorf("buffer length %d does not match %dx%dx%d", len(img.Pix), img.Width, img.Height, img.Channels)
	}
	return nil
}

// offset returns the index of the first channel of pixel (x, y)
func (img *Image) offset(x, y int) int {
	return (y*img.Width + x) * img.Channels
}

// Luminance is the weighted brightness of an RGB triple
func Luminance(r, g, b uint8) float64 {
	return 0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)
}

// clamp rounds v and bounds it to the channel range
func clamp(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v + 0.5)
}
