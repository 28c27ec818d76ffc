package media

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dhowden/tag"
	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"

	"mediashelf/internal/models"
)

// NativeAudioProvider reads audio metadata without external tools. It handles tags of
// every format dhowden/tag knows, and durations of MP3 and WAV files.
type NativeAudioProvider struct{}

// NewNativeAudioProvider creates a provider for audio files only
func NewNativeAudioProvider() *NativeAudioProvider {
	return &NativeAudioProvider{}
}

// Probe extracts tags and duration from an audio file
func (NativeAudioProvider) Probe(_ context.Context, path string) (*Metadata, error) {
	if ft, ok := DetectFileType(path); !ok || ft != models.FileTypeAudio {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, filepath.Base(path))
	}

	md := &Metadata{}
	// tags are optional; files without a recognised tag block still get a duration
	_ = readTags(path, md)

	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3":
		md.Duration, err = mp3Duration(path)
	case ".wav":
		md.Duration, err = wavDuration(path)
	}
	if err != nil {
		return nil, err
	}
	return md, nil
}

// Thumbnail writes the embedded cover picture, if any
func (NativeAudioProvider) Thumbnail(_ context.Context, src, dst string) error {
	f, err := os.Open(src)
	if err != nil {
		return err
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		return fmt.Errorf("read tags: %w", err)
	}
	pic := m.Picture()
	if pic == nil || len(pic.Data) == 0 {
		return fmt.Errorf("%w: no embedded cover in %s", ErrUnsupported, filepath.Base(src))
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	return os.WriteFile(dst, pic.Data, 0o644)
}

func readTags(path string, md *Metadata) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		return err
	}
	md.Title = strings.TrimSpace(m.Title())
	md.Artist = strings.TrimSpace(m.Artist())
	if md.Artist == "" {
		md.Artist = strings.TrimSpace(m.AlbumArtist())
	}
	if md.Artist != "" {
		md.Artists = splitArtists(md.Artist)
	}
	return nil
}

func mp3Duration(path string) (float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	dec, err := mp3.NewDecoder(f)
	if err != nil {
		return 0, fmt.Errorf("decode mp3: %w", err)
	}
	// decoded stream is 16-bit stereo PCM
	const bytesPerFrame = 4
	if dec.SampleRate() == 0 || dec.Length() <= 0 {
		return 0, nil
	}
	return float64(dec.Length()) / bytesPerFrame / float64(dec.SampleRate()), nil
}

func wavDuration(path string) (float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return 0, fmt.Errorf("%w: invalid wav file %s", ErrUnsupported, filepath.Base(path))
	}
	d, err := dec.Duration()
	if err != nil {
		return 0, fmt.Errorf("wav duration: %w", err)
	}
	return d.Seconds(), nil
}
