package handlers

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
)

type uploadedFile struct {
	Name string
	Data []byte
}

// readUploadedFiles returns the "files" (or "file") parts in form order
func (h *Handler) readUploadedFiles(r *http.Request) ([]uploadedFile, error) {
	limit := h.cfg.MaxUploadBytes

	if err := r.ParseMultipartForm(limit); err != nil {
		return nil, fmt.Errorf("failed to parse upload: %w", err)
	}

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		headers = r.MultipartForm.File["file"]
	}
	if len(headers) == 0 {
		return nil, fmt.Errorf("no files in upload")
	}

	files := make([]uploadedFile, 0, len(headers))
	for _, header := range headers {
		data, err := readPart(header, limit)
		if err != nil {
			return nil, err
		}
		files = append(files, uploadedFile{Name: header.Filename, Data: data})
	}
	return files, nil
}

func readPart(header *multipart.FileHeader, limit int64) ([]byte, error) {
	file, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", header.Filename, err)
	}
	defer file.Close()

	fileData, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read file contents: %w", err)
	}

	if int64(len(fileData)) > limit {
		return nil, fmt.Errorf("file %s too large (max %d bytes)", header.Filename, limit)
	}
	if len(fileData) == 0 {
		return nil, fmt.Errorf("file %s is empty", header.Filename)
	}
	return fileData, nil
}
