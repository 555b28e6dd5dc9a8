// Package file stores document sets as JSON files under a base directory.
package file

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/turtacn/NERRecon/internal/domain/annotation"
	"github.com/turtacn/NERRecon/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/NERRecon/pkg/errors"
)

// Store is a SetStore backed by the local filesystem.  Relative keys resolve
// against the base directory; absolute keys are used as is.
type Store struct {
	baseDir string
	logger  logging.Logger
}

var _ annotation.SetStore = (*Store)(nil)

// NewStore returns a Store rooted at baseDir.
func NewStore(baseDir string, log logging.Logger) *Store {
	if baseDir == "" {
		baseDir = "."
	}
	return &Store{baseDir: baseDir, logger: logging.OrNop(log)}
}

func (s *Store) path(key string) string {
	if filepath.IsAbs(key) {
		return filepath.Clean(key)
	}
	return filepath.Join(s.baseDir, filepath.FromSlash(key))
}

// Read returns the file contents for key.
func (s *Store) Read(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(err, errors.ErrCodeDocumentSetNotFound, "document set not found").WithDetail(key)
		}
		return nil, errors.Wrap(err, errors.ErrCodeStorageError, "read failed").WithDetail(key)
	}
	return data, nil
}

// Write replaces the file for key.  The data is written to a temporary file
// in the same directory and renamed into place.
func (s *Store) Write(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p := s.path(key)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return errors.Wrap(err, errors.ErrCodeStorageError, "create directory").WithDetail(key)
	}
	tmp, err := os.CreateTemp(filepath.Dir(p), "."+filepath.Base(p)+".*")
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeStorageError, "create temp file").WithDetail(key)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrap(err, errors.ErrCodeStorageError, "write failed").WithDetail(key)
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, errors.ErrCodeStorageError, "write failed").WithDetail(key)
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		return errors.Wrap(err, errors.ErrCodeStorageError, "rename failed").WithDetail(key)
	}
	s.logger.Debug("document set written", logging.String(logging.FieldPath, p), logging.Int("bytes", len(data)))
	return nil
}

// Exists reports whether a regular file is stored under key.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	fi, err := os.Stat(s.path(key))
	if err == nil {
		return fi.Mode().IsRegular(), nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, errors.Wrap(err, errors.ErrCodeStorageError, "stat failed").WithDetail(key)
}

// List returns the .json keys below the prefix directory in ascending order.
// Keys are relative to the base directory and use forward slashes.
func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	root := s.path(prefix)
	var keys []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".json") || strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		rel, err := filepath.Rel(s.baseDir, p)
		if err != nil {
			return err
		}
		keys = append(keys, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, errors.Wrap(err, errors.ErrCodeStorageError, "list failed").WithDetail(prefix)
	}
	sort.Strings(keys)
	return keys, nil
}

//Personal.AI order the ending
