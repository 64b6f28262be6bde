// Package file reads archives from the local filesystem, laid out as
// <root>/<bucket>/<key>. It backs the command line runner.
package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/mosajjal/iamwatch/pkg/models"
	"github.com/mosajjal/iamwatch/pkg/storage"
)

// Storage is a directory-backed storage.Source
type Storage struct {
	root string
}

// NewStorage creates a file storage rooted at cfg.Root
func NewStorage(cfg storage.StorageConfig) *Storage {
	return &Storage{root: cfg.Root}
}

// Fetch reads bucket/key below the root. With an empty bucket, key is used
// as a path on its own.
func (s *Storage) Fetch(ctx context.Context, bucket, key string) (*models.Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if hasParentRef(bucket) || hasParentRef(key) {
		return nil, fmt.Errorf("%w: %s/%s escapes the storage root", storage.ErrAccessDenied, bucket, key)
	}

	path := filepath.Join(s.root, bucket, filepath.FromSlash(key))
	f, err := os.Open(path)
	if err != nil {
		switch {
		case errors.Is(err, fs.ErrNotExist):
			return nil, fmt.Errorf("%w: %s", storage.ErrObjectNotFound, path)
		case errors.Is(err, fs.ErrPermission):
			return nil, fmt.Errorf("%w: %s", storage.ErrAccessDenied, path)
		}
		return nil, err
	}
	defer f.Close()

	body, err := storage.Decompress(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &models.Object{ContentType: contentType(path), Body: body}, nil
}

func hasParentRef(p string) bool {
	for _, elem := range strings.Split(filepath.ToSlash(p), "/") {
		if elem == ".." {
			return true
		}
	}
	return false
}

func contentType(path string) string {
	if strings.HasSuffix(path, ".gz") {
		return "application/x-gzip"
	}
	if t := mime.TypeByExtension(filepath.Ext(path)); t != "" {
		return t
	}
	return "application/octet-stream"
}
