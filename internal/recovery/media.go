package recovery

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// MediaStore keeps carved images on disk under <workDir>/media, keyed by filename.
type MediaStore struct {
	dir string
}

// NewMediaStore opens an empty store. Files left in <workDir>/media by an
// earlier run are removed.
func NewMediaStore(workDir string) (*MediaStore, error) {
	dir := filepath.Join(workDir, "media")
	if err := os.RemoveAll(dir); err != nil {
		return nil, fmt.Errorf("failed to clear media dir: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create media dir: %w", err)
	}
	return &MediaStore{dir: dir}, nil
}

func (s *MediaStore) Dir() string {
	return s.dir
}

func (s *MediaStore) Path(name string) string {
	return filepath.Join(s.dir, name)
}

func (s *MediaStore) Put(name string, data []byte) error {
	return os.WriteFile(s.Path(name), data, 0o644)
}

// Has reports whether a regular file with this name exists in the store.
func (s *MediaStore) Has(name string) bool {
	info, err := os.Stat(s.Path(name))
	return err == nil && info.Mode().IsRegular()
}

// Names lists stored filenames, sorted.
func (s *MediaStore) Names() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}
