package file

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/mosajjal/iamwatch/pkg/storage"
)

func TestFetch(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "trail", "AWSLogs")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "batch.json"), []byte(`{"Records":[]}`), 0o600); err != nil {
		t.Fatal(err)
	}

	st := NewStorage(storage.StorageConfig{Provider: "file", Root: root})
	obj, err := st.Fetch(context.Background(), "trail", "AWSLogs/batch.json")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if string(obj.Body) != `{"Records":[]}` {
		t.Errorf("Unexpected body %q", obj.Body)
	}
	if obj.ContentType != "application/json" {
		t.Errorf("Expected content type to be 'application/json', got '%s'", obj.ContentType)
	}

	_, err = st.Fetch(context.Background(), "trail", "AWSLogs/missing.json")
	if !errors.Is(err, storage.ErrObjectNotFound) {
		t.Errorf("Expected ErrObjectNotFound, got %v", err)
	}

	_, err = st.Fetch(context.Background(), "trail", "../../etc/passwd")
	if !errors.Is(err, storage.ErrAccessDenied) {
		t.Errorf("Expected ErrAccessDenied, got %v", err)
	}
}

func TestFetchCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	st := NewStorage(storage.StorageConfig{Root: t.TempDir()})
	if _, err := st.Fetch(ctx, "b", "k"); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestFetchDotsInNames(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "trail"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "trail", "trail..2024.json"), []byte(`{"Records":[]}`), 0o600); err != nil {
		t.Fatal(err)
	}
	st := NewStorage(storage.StorageConfig{Provider: "file", Root: root})

	if _, err := st.Fetch(context.Background(), "trail", "trail..2024.json"); err != nil {
		t.Errorf("Expected a name containing '..' to be readable, got %v", err)
	}

	tests := []struct {
		bucket string
		key    string
	}{
		{"trail", ".."},
		{"trail", "AWSLogs/../../secret"},
		{"..", "trail/trail..2024.json"},
	}
	for _, tt := range tests {
		_, err := st.Fetch(context.Background(), tt.bucket, tt.key)
		if !errors.Is(err, storage.ErrAccessDenied) {
			t.Errorf("Fetch(%q, %q): expected ErrAccessDenied, got %v", tt.bucket, tt.key, err)
		}
	}
}
