package dataset

import "path/filepath"

// Record is one labelled image in a classification dataset
type Record struct {
	Path       string `json:"path" parquet:"path"`
	IsDocument bool   `json:"is_document" parquet:"is_document"`
	Note       string `json:"note,omitempty" parquet:"note,optional"`
}

// ResolvePath returns the image path, relative paths being taken from baseDir
func (r *Record) ResolvePath(baseDir string) string {
	if r.Path == "" || filepath.IsAbs(r.Path) {
		return r.Path
	}
	return filepath.Join(baseDir, r.Path)
}

// Label is the human readable class of the record
func (r *Record) Label() string {
	if r.IsDocument {
		return "document"
	}
	return "photo"
}
