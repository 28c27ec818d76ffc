// Package media extracts metadata, thumbnails and colors from media files.
package media

import (
	"context"
	"errors"
	"path/filepath"
	"strings"

	"mediashelf/internal/models"
)

// ErrUnsupported is returned by a provider that cannot handle a file
var ErrUnsupported = errors.New("unsupported media file")

// Metadata is what a provider knows about a media file
type Metadata struct {
	Duration float64 // seconds
	Width    int
	Height   int
	Title    string
	Artist   string
	Artists  []string
}

// Provider extracts metadata and renders thumbnails
type Provider interface {
	Probe(ctx context.Context, path string) (*Metadata, error)
	// Thumbnail writes a JPEG preview of src to dst
	Thumbnail(ctx context.Context, src, dst string) error
}

var videoExtensions = map[string]bool{
	".mp4": true, ".m4v": true, ".mkv": true, ".mov": true, ".avi": true,
	".wmv": true, ".flv": true, ".webm": true, ".mpg": true, ".mpeg": true,
	".ts": true, ".3gp": true,
}

var audioExtensions = map[string]bool{
	".mp3": true, ".wav": true, ".flac": true, ".m4a": true, ".aac": true,
	".ogg": true, ".opus": true, ".wma": true,
}

// DetectFileType classifies a file by extension. ok is false outside the allow-list.
func DetectFileType(name string) (models.FileType, bool) {
	ext := strings.ToLower(filepath.Ext(name))
	switch {
	case videoExtensions[ext]:
		return models.FileTypeVideo, true
	case audioExtensions[ext]:
		return models.FileTypeAudio, true
	default:
		return "", false
	}
}

// Supported reports whether name has an allowed media extension
func Supported(name string) bool {
	_, ok := DetectFileType(name)
	return ok
}

// chain tries each provider in order until one succeeds
type chain []Provider

// Chain returns a provider that falls through providers on error
func Chain(providers ...Provider) Provider {
	return chain(providers)
}

func (c chain) Probe(ctx context.Context, path string) (*Metadata, error) {
	var errs []error
	for _, p := range c {
		md, err := p.Probe(ctx, path)
		if err == nil {
			return md, nil
		}
		errs = append(errs, err)
	}
	return nil, errors.Join(errs...)
}

func (c chain) Thumbnail(ctx context.Context, src, dst string) error {
	var errs []error
	for _, p := range c {
		err := p.Thumbnail(ctx, src, dst)
		if err == nil {
			return nil
		}
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
