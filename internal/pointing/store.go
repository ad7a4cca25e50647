package pointing

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"github.com/patrickmn/go-cache"
)

// DefaultFilePattern names a pointing model file from camera and chip.
const DefaultFilePattern = "pointingModel_%d-%d.txt"

// Store reads pointing model files from a directory and keeps parsed tables in memory.
type Store struct {
	dir     string
	pattern string
	tables  *cache.Cache
}

// NewStore creates a store rooted at dir. An empty pattern selects DefaultFilePattern.
func NewStore(dir, pattern string) *Store {
	if pattern == "" {
		pattern = DefaultFilePattern
	}
	return &Store{
		dir:     dir,
		pattern: pattern,
		// Tables never expire and there is nothing to sweep.
		tables: cache.New(cache.NoExpiration, 0),
	}
}

// Path returns the file a camera/chip model is read from.
func (s *Store) Path(camera, chip int) string {
	return filepath.Join(s.dir, fmt.Sprintf(s.pattern, camera, chip))
}

// Epochs returns a copy of every tabulated row for camera/chip in file order.
func (s *Store) Epochs(camera, chip int) ([]Row, error) {
	key := fmt.Sprintf("%d-%d", camera, chip)
	if cached, ok := s.tables.Get(key); ok {
		return slices.Clone(cached.([]Row)), nil
	}

	path := s.Path(camera, chip)
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: camera %d chip %d: no file %s", ErrModelNotFound, camera, chip, path)
		}
		return nil, fmt.Errorf("failed to open pointing model %s: %w", path, err)
	}
	defer file.Close()

	rows, err := ParseRows(file)
	if err != nil {
		return nil, fmt.Errorf("%w: camera %d chip %d: %w", ErrModelNotFound, camera, chip, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: camera %d chip %d: %s has no data rows", ErrModelNotFound, camera, chip, path)
	}

	slog.Debug("Loaded pointing model", "path", path, "epochs", len(rows))
	s.tables.Set(key, rows, cache.NoExpiration)
	return slices.Clone(rows), nil
}

// Load returns the reference (first epoch) correction for camera/chip.
func (s *Store) Load(camera, chip int) (Entry, error) {
	rows, err := s.Epochs(camera, chip)
	if err != nil {
		return Entry{}, err
	}
	return rows[0].Entry(), nil
}
