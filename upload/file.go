package upload

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// DefaultMaxBytes is the largest file accepted for upload.
const DefaultMaxBytes = 10 << 20

var acceptedTypes = []string{"pdf", "msword", "document"}

type File struct {
	Name     string
	Size     int64
	MimeType string
	Data     []byte
}

// FileFromPath reads a file from disk and sniffs its MIME type from the
// content rather than the extension.
func FileFromPath(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("failed to read %s: %w", path, err)
	}

	return File{
		Name:     filepath.Base(path),
		Size:     int64(len(data)),
		MimeType: mimetype.Detect(data).String(),
		Data:     data,
	}, nil
}

func acceptedType(mime string) bool {
	mime = strings.ToLower(mime)

	for _, t := range acceptedTypes {
		if strings.Contains(mime, t) {
			return true
		}
	}

	return false
}

func validateFile(f File, maxBytes int64) error {
	if !acceptedType(f.MimeType) {
		return &ValidationError{Field: "file", Message: "Please upload a PDF or Word document"}
	}

	if f.Size > maxBytes {
		return &ValidationError{Field: "file", Message: sizeMessage(maxBytes)}
	}

	return nil
}

func sizeMessage(maxBytes int64) string {
	if maxBytes >= 1<<20 {
		return fmt.Sprintf("File size should be less than %dMB", maxBytes>>20)
	}
	return fmt.Sprintf("File size should be less than %d bytes", maxBytes)
}
