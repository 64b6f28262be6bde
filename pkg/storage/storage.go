package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/klauspost/compress/gzip"

	"github.com/mosajjal/iamwatch/pkg/models"
)

var (
	// ErrObjectNotFound is returned when the bucket or key does not exist
	ErrObjectNotFound = errors.New("object not found")
	// ErrAccessDenied is returned when the caller may not read the object
	ErrAccessDenied = errors.New("access denied")
)

// Source fetches archives from object storage
type Source interface {
	// Fetch returns the decompressed content of bucket/key
	Fetch(ctx context.Context, bucket, key string) (*models.Object, error)
}

// StorageConfig holds common storage configuration
type StorageConfig struct {
	Provider string // s3, file
	Region   string
	Root     string // base directory for the file provider
	Logger   *slog.Logger
}

var gzipMagic = []byte{0x1f, 0x8b}

// Decompress gunzips body when it carries the gzip magic bytes and returns
// it unchanged otherwise. CloudTrail always writes gzip, but objects copied
// by hand often are not.
func Decompress(body io.Reader) ([]byte, error) {
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("failed to read object: %w", err)
	}
	if !bytes.HasPrefix(raw, gzipMagic) {
		return raw, nil
	}

	gz, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer gz.Close()

	decompressed, err := io.ReadAll(gz)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress gzip: %w", err)
	}
	return decompressed, nil
}
