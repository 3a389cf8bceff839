package models

import (
	"time"

	"github.com/lehigh-university-libraries/docscan/internal/capture"
	"github.com/lehigh-university-libraries/docscan/internal/raster"
)

// CaptureSession is the JSON view of a capture session
type CaptureSession struct {
	ID        string         `json:"id"`
	State     capture.State  `json:"state"`
	Options   raster.Options `json:"options"`
	Pages     []PageItem     `json:"pages"`
	Pending   int            `json:"pending"`
	CreatedAt time.Time      `json:"created_at,omitempty"`
}

// PageItem is the JSON view of a captured page
type PageItem struct {
	Ordinal     int    `json:"ordinal"`
	Source      string `json:"source,omitempty"`
	PreviewURL  string `json:"preview_url,omitempty"`
	ContentType string `json:"content_type"`
	Enhanced    bool   `json:"enhanced"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	Size        int    `json:"size"`
	Document    *bool  `json:"document,omitempty"`
}

// NewPageItem converts a captured page for the API
func NewPageItem(p capture.Page) PageItem {
	item := PageItem{
		Ordinal:     p.Ordinal,
		Source:      p.Source,
		ContentType: p.ContentType,
		Enhanced:    p.Enhanced,
		Width:       p.Width,
		Height:      p.Height,
		Size:        len(p.Data),
	}
	if p.Preview != "" {
		item.PreviewURL = "/api/previews/" + string(p.Preview)
	}
	return item
}
