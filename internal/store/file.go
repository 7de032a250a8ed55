package store

import (
	"errors"
	"io/fs"
	"os"

	"shopdesk-backend/internal/faq"
)

// FileFAQSource reads FAQ seed entries from a JSON or YAML file on disk.
type FileFAQSource struct {
	path string
}

func NewFileFAQSource(path string) *FileFAQSource {
	return &FileFAQSource{path: path}
}

// Read returns the seed entries, or nil when the file does not exist.
func (f *FileFAQSource) Read() ([]faq.Entry, error) {
	if f.path == "" {
		return nil, nil
	}
	b, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	return faq.ParseSeed(b)
}
