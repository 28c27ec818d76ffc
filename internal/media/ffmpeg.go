package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"mediashelf/internal/models"
)

// FFmpegConfig holds FFmpeg-related configuration
type FFmpegConfig struct {
	FFmpegPath     string
	FFprobePath    string
	Timeout        time.Duration
	ThumbnailWidth int
}

// DefaultFFmpegConfig returns the default FFmpeg configuration
func DefaultFFmpegConfig() FFmpegConfig {
	return FFmpegConfig{
		FFmpegPath:     "ffmpeg",
		FFprobePath:    "ffprobe",
		Timeout:        60 * time.Second,
		ThumbnailWidth: 480,
	}
}

// FFmpegProvider probes with ffprobe and renders thumbnails with ffmpeg
type FFmpegProvider struct {
	config FFmpegConfig
}

// NewFFmpegProvider creates a new FFmpeg-backed provider
func NewFFmpegProvider(config FFmpegConfig) *FFmpegProvider {
	def := DefaultFFmpegConfig()
	if config.FFmpegPath == "" {
		config.FFmpegPath = def.FFmpegPath
	}
	if config.FFprobePath == "" {
		config.FFprobePath = def.FFprobePath
	}
	if config.Timeout <= 0 {
		config.Timeout = def.Timeout
	}
	if config.ThumbnailWidth <= 0 {
		config.ThumbnailWidth = def.ThumbnailWidth
	}
	return &FFmpegProvider{config: config}
}

// run executes a tool with the configured timeout and returns its stdout
func (fp *FFmpegProvider) run(ctx context.Context, tool string, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, fp.config.Timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, tool, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("%s timed out after %v", filepath.Base(tool), fp.config.Timeout)
		}
		msg := strings.TrimSpace(stderr.String())
		if len(msg) > 300 {
			msg = msg[len(msg)-300:]
		}
		return nil, fmt.Errorf("%s failed: %w: %s", filepath.Base(tool), err, msg)
	}
	return stdout.Bytes(), nil
}

type probeOutput struct {
	Format struct {
		Duration string            `json:"duration"`
		Tags     map[string]string `json:"tags"`
	} `json:"format"`
	Streams []struct {
		CodecType   string `json:"codec_type"`
		Width       int    `json:"width"`
		Height      int    `json:"height"`
		Disposition struct {
			AttachedPic int `json:"attached_pic"`
		} `json:"disposition"`
	} `json:"streams"`
}

// Probe reads duration, dimensions and common tags with ffprobe
func (fp *FFmpegProvider) Probe(ctx context.Context, path string) (*Metadata, error) {
	out, err := fp.run(ctx, fp.config.FFprobePath,
		"-v", "quiet",
		"-show_format",
		"-show_streams",
		"-print_format", "json",
		path,
	)
	if err != nil {
		return nil, err
	}
	return parseProbeOutput(out)
}

func parseProbeOutput(out []byte) (*Metadata, error) {
	var probe probeOutput
	if err := json.Unmarshal(out, &probe); err != nil {
		return nil, fmt.Errorf("decode ffprobe output: %w", err)
	}

	md := &Metadata{}
	if d, err := strconv.ParseFloat(probe.Format.Duration, 64); err == nil {
		md.Duration = d
	}
	for _, s := range probe.Streams {
		if s.CodecType == "video" && s.Disposition.AttachedPic == 0 && s.Width > 0 {
			md.Width, md.Height = s.Width, s.Height
			break
		}
	}
	for key, value := range probe.Format.Tags {
		switch strings.ToLower(key) {
		case "title":
			md.Title = value
		case "artist":
			md.Artist = value
			md.Artists = splitArtists(value)
		}
	}
	return md, nil
}

// Thumbnail grabs one frame (or the embedded cover of audio files) scaled to the configured width
func (fp *FFmpegProvider) Thumbnail(ctx context.Context, src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create thumbnail directory: %w", err)
	}

	scale := fmt.Sprintf("scale=%d:-2", fp.config.ThumbnailWidth)
	args := []string{"-v", "error", "-y"}
	if ft, _ := DetectFileType(src); ft == models.FileTypeVideo {
		args = append(args, "-ss", "1", "-i", src)
	} else {
		args = append(args, "-i", src, "-an")
	}
	args = append(args, "-frames:v", "1", "-vf", scale, "-q:v", "3", dst)

	if _, err := fp.run(ctx, fp.config.FFmpegPath, args...); err != nil {
		os.Remove(dst)
		return err
	}
	if info, err := os.Stat(dst); err != nil || info.Size() == 0 {
		os.Remove(dst)
		return fmt.Errorf("ffmpeg produced no thumbnail for %s", filepath.Base(src))
	}
	return nil
}

// Available verifies that ffmpeg and ffprobe can be executed
func (fp *FFmpegProvider) Available(ctx context.Context) error {
	for _, tool := range []string{fp.config.FFmpegPath, fp.config.FFprobePath} {
		if _, err := exec.LookPath(tool); err != nil {
			return fmt.Errorf("%s not found: %w", tool, err)
		}
		if _, err := fp.run(ctx, tool, "-version"); err != nil {
			return err
		}
	}
	return nil
}

func splitArtists(value string) []string {
	fields := strings.FieldsFunc(value, func(r rune) bool { return r == ';' || r == '/' || r == ',' })
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}
