package attachments

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// FileStore keeps attachments as files in a single upload directory.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) (*FileStore, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("upload dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create upload directory")
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) Dir() string { return s.dir }

func (s *FileStore) Store(_ context.Context, data []byte, ext string) (string, error) {
	if err := ValidateExtension(ext); err != nil {
		return "", err
	}
	path := filepath.Join(s.dir, generateName(ext))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", errors.Wrap(err, "save file")
	}
	return path, nil
}

// Retrieve reads a stored file. Paths outside the upload directory and files
// removed from disk are both reported as ErrNotFound.
func (s *FileStore) Retrieve(_ context.Context, path string) ([]byte, error) {
	if !s.contains(path) {
		return nil, ErrNotFound
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "read file")
	}
	return data, nil
}

func (s *FileStore) contains(path string) bool {
	dir, err := filepath.Abs(s.dir)
	if err != nil {
		return false
	}
	target, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(dir, target)
	if err != nil {
		return false
	}
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
