// Package classify estimates whether an image looks like a scanned document.
//
// Printed text produces dense local contrast transitions while photographs are
// mostly smooth, so the fraction of sharp luminance steps in a small sample is a
// cheap signal. The classifier is independent of the enhancement pipeline.
package classify

import (
	"image"
	"log/slog"

	"golang.org/x/image/draw"

	"github.com/lehigh-university-libraries/docscan/internal/raster"
)

// The heuristic is fixed; none of these are user settings.
const (
	SampleSize    = 200
	EdgeThreshold = 30
	DocumentRatio = 0.15
)

// Classifier is the edge-density document predicate
type Classifier struct{}

func New() *Classifier {
	return &Classifier{}
}

// EdgeRatio renders img into a SampleSize square and returns the fraction of sampled
// pixels whose right or bottom neighbour differs by more than EdgeThreshold.
func (c *Classifier) EdgeRatio(img image.Image) float64 {
	const n = SampleSize

	sample := image.NewNRGBA(image.Rect(0, 0, n, n))
	b := img.Bounds()
	if b.Dx() == n && b.Dy() == n {
		draw.Draw(sample, sample.Bounds(), img, b.Min, draw.Src)
	} else {
		draw.ApproxBiLinear.Scale(sample, sample.Bounds(), img, b, draw.Src, nil)
	}

	lum := make([]float64, n*n)
	for i := range lum {
		p := sample.Pix[i*4 : i*4+3]
		lum[i] = raster.Luminance(p[0], p[1], p[2])
	}

	edges := 0
	for y := 1; y < n-1; y++ {
		for x := 1; x < n-1; x++ {
			i := y*n + x
			if abs(lum[i]-lum[i+1]) > EdgeThreshold || abs(lum[i]-lum[i+n]) > EdgeThreshold {
				edges++
			}
		}
	}

	return float64(edges) / float64(n*n)
}

// IsDocumentRatio reports whether an edge ratio marks a document
func IsDocumentRatio(ratio float64) bool {
	return ratio > DocumentRatio
}

// IsDocument reports whether the edge ratio of img exceeds DocumentRatio
func (c *Classifier) IsDocument(img image.Image) bool {
	return IsDocumentRatio(c.EdgeRatio(img))
}

// IsDocumentBytes decodes data and classifies it. Input that cannot be decoded, or whose
// bounds exceed the raster limits, is never a document.
func (c *Classifier) IsDocumentBytes(data []byte) bool {
	img, _, err := raster.Decode(data)
	if err != nil {
		slog.Debug("Unable to decode image for classification", "err", err)
		return false
	}
	return c.IsDocument(img.ToNRGBA())
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
