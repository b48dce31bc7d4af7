package httpadapter

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/kirillkom/docs-governance/internal/core/domain"
)

const multipartMemory = 8 << 20

// uploadPolicy bounds request size and restricts file extensions.
type uploadPolicy struct {
	maxBytes   int64
	extensions map[string]struct{}
}

func newUploadPolicy(maxBytes int64, extensions []string) uploadPolicy {
	allowed := make(map[string]struct{}, len(extensions))
	for _, ext := range extensions {
		ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
		if ext != "" {
			allowed[ext] = struct{}{}
		}
	}
	return uploadPolicy{maxBytes: maxBytes, extensions: allowed}
}

// uploadedFile is an open multipart file plus the metadata the use cases
// need. The caller closes it.
type uploadedFile struct {
	multipart.File
	info domain.FileUpload
}

// parse reads the multipart form and opens the "file" field.
func (p uploadPolicy) parse(w http.ResponseWriter, r *http.Request) (*uploadedFile, error) {
	const op = "parse upload"
	if p.maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, p.maxBytes)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, err
		}
		return nil, domain.Invalid(op, "multipart form is required")
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, domain.Invalid(op, "multipart field 'file' is required")
	}
	if !p.allowed(header.Filename) {
		_ = file.Close()
		return nil, domain.Invalid(op, fmt.Sprintf("file type of %q is not allowed", header.Filename))
	}

	return &uploadedFile{
		File: file,
		info: domain.FileUpload{
			OriginalFilename: header.Filename,
			ContentType:      header.Header.Get("Content-Type"),
			Size:             header.Size,
		},
	}, nil
}

func (p uploadPolicy) allowed(filename string) bool {
	if len(p.extensions) == 0 {
		return true
	}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	_, ok := p.extensions[ext]
	return ok
}
