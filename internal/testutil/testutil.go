// Package testutil holds helpers shared by package tests.
package testutil

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"mediashelf/internal/library"
	"mediashelf/internal/media"
	"mediashelf/internal/storage"
)

// FakeProvider is a media.Provider that never shells out
type FakeProvider struct {
	mu sync.Mutex

	Metadata     media.Metadata
	ProbeErr     error
	ThumbnailErr error
	// ThumbnailData is written to the thumbnail path; empty writes a tiny PNG
	ThumbnailData []byte

	Probed []string
}

// Probe records the path and returns the canned metadata
func (f *FakeProvider) Probe(_ context.Context, path string) (*media.Metadata, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Probed = append(f.Probed, path)
	if f.ProbeErr != nil {
		return nil, f.ProbeErr
	}
	md := f.Metadata
	return &md, nil
}

// Thumbnail writes ThumbnailData to dst
func (f *FakeProvider) Thumbnail(_ context.Context, _, dst string) error {
	if f.ThumbnailErr != nil {
		return f.ThumbnailErr
	}
	data := f.ThumbnailData
	if len(data) == 0 {
		data = onePixelPNG
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644)
}

// ProbeCount returns how many files were probed
func (f *FakeProvider) ProbeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Probed)
}

// a 1x1 opaque red PNG
var onePixelPNG = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d,
	0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x02, 0x00, 0x00, 0x00, 0x90, 0x77, 0x53, 0xde, 0x00, 0x00, 0x00,
	0x0c, 0x49, 0x44, 0x41, 0x54, 0x08, 0xd7, 0x63, 0xf8, 0xcf, 0xc0, 0x00,
	0x00, 0x03, 0x01, 0x01, 0x00, 0x18, 0xdd, 0x8d, 0xb0, 0x00, 0x00, 0x00,
	0x00, 0x49, 0x45, 0x4e, 0x44, 0xae, 0x42, 0x60, 0x82,
}

// NewStore creates and loads a JSON library in a temp dir
func NewStore(t *testing.T) *library.Store {
	t.Helper()
	s := library.NewStore(library.Options{
		Layout:       storage.NewLayout(t.TempDir(), storage.JSONCodec{}),
		HostNickname: "Host",
	})
	require.NoError(t, s.Load(context.Background()))
	return s
}

// WriteFile creates a file of size bytes under dir and returns its path
func WriteFile(t *testing.T, dir, name string, size int) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(strings.Repeat("x", size)), 0o644))
	return path
}
