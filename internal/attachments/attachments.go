// Package attachments stores uploaded proof documents under generated names.
package attachments

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var (
	ErrExtensionNotAllowed = errors.New("file extension not allowed")
	ErrNotFound            = errors.New("file not found")
)

var AllowedExtensions = []string{"pdf", "png", "jpg", "jpeg", "gif"}

var contentTypes = map[string]string{
	"pdf":  "application/pdf",
	"png":  "image/png",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"gif":  "image/gif",
}

// Store is implemented by FileStore and S3Store. The returned path is what the
// ledger keeps in its File Path column.
type Store interface {
	Store(ctx context.Context, data []byte, ext string) (string, error)
	Retrieve(ctx context.Context, path string) ([]byte, error)
}

// ExtensionOf returns the text after the last dot of filename, case preserved.
func ExtensionOf(filename string) (string, bool) {
	i := strings.LastIndex(filename, ".")
	if i < 0 || i == len(filename)-1 {
		return "", false
	}
	return filename[i+1:], true
}

func ValidateExtension(ext string) error {
	ext = strings.ToLower(ext)
	for _, allowed := range AllowedExtensions {
		if ext == allowed {
			return nil
		}
	}
	return ErrExtensionNotAllowed
}

// ContentType maps a stored path to the media type served for it.
func ContentType(path string) string {
	ext, _ := ExtensionOf(path)
	if ct, ok := contentTypes[strings.ToLower(ext)]; ok {
		return ct
	}
	return "application/octet-stream"
}

func generateName(ext string) string {
	return uuid.New().String() + "." + ext
}
