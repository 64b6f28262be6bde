package storage

import (
	"bytes"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
)

func gzipped(t *testing.T, s string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write([]byte(s)); err != nil {
		t.Fatal(err)
	}
	if err := gz.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestDecompress(t *testing.T) {
	tests := []struct {
		name    string
		input   []byte
		want    string
		wantErr bool
	}{
		{"gzip", gzipped(t, `{"Records":[]}`), `{"Records":[]}`, false},
		{"plain", []byte(`{"Records":[]}`), `{"Records":[]}`, false},
		{"empty", nil, "", false},
		{"truncated gzip", gzipped(t, strings.Repeat("x", 1024))[:20], "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decompress(bytes.NewReader(tt.input))
			if (err != nil) != tt.wantErr {
				t.Fatalf("Decompress() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && string(got) != tt.want {
				t.Errorf("Decompress() = %q, want %q", got, tt.want)
			}
		})
	}
}
