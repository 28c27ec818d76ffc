package handlers

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"

	"mediashelf/internal/library"
	"mediashelf/internal/metrics"
	"mediashelf/internal/models"
	"mediashelf/internal/utils"
)

// FileHandler serves thumbnails, streams and downloads of media files
type FileHandler struct {
	store   *library.Store
	metrics *metrics.Metrics
}

// NewFileHandler creates a new file handler
func NewFileHandler(store *library.Store, m *metrics.Metrics) *FileHandler {
	if m == nil {
		m = metrics.Default()
	}
	return &FileHandler{store: store, metrics: m}
}

func (h *FileHandler) lookup(c *fiber.Ctx) (*models.MediaFile, error) {
	id, ok := paramID(c, "id")
	if !ok {
		return nil, utils.SendValidationError(c, "Invalid media ID")
	}
	m, found := h.store.GetActiveMediaFile(id)
	if !found {
		return nil, utils.SendNotFoundError(c, "Media")
	}
	return m, nil
}

// GetThumbnail serves the thumbnail image of a media file
func (h *FileHandler) GetThumbnail(c *fiber.Ctx) error {
	m, err := h.lookup(c)
	if m == nil {
		return err
	}
	if m.ThumbnailPath == "" {
		return utils.SendNotFoundError(c, "Thumbnail")
	}
	path := filepath.Join(h.store.Layout().MediaDir(), filepath.FromSlash(m.ThumbnailPath))
	if _, err := os.Stat(path); err != nil {
		return utils.SendNotFoundError(c, "Thumbnail")
	}
	c.Set(fiber.HeaderCacheControl, "private, max-age=3600")
	return c.SendFile(path)
}

// Stream serves the media file with byte range support. A satisfiable Range
// answers 206 with the first requested range; an unsatisfiable one answers 416.
func (h *FileHandler) Stream(c *fiber.Ctx) error {
	m, err := h.lookup(c)
	if m == nil {
		return err
	}

	f, err := os.Open(m.FilePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return utils.SendNotFoundError(c, "Media file")
		}
		return utils.SendInternalServerError(c, "Failed to open media file")
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return utils.SendInternalServerError(c, "Failed to open media file")
	}
	size := info.Size()

	c.Set(fiber.HeaderAcceptRanges, "bytes")
	c.Type(strings.TrimPrefix(strings.ToLower(filepath.Ext(m.FileName)), "."))

	if c.Get(fiber.HeaderRange) == "" {
		h.metrics.StreamBytesTotal.Add(float64(size))
		return c.Status(fiber.StatusOK).SendStream(f, int(size))
	}

	ranges, err := c.Range(int(size))
	switch {
	case errors.Is(err, fiber.ErrRangeMalformed):
		h.metrics.StreamBytesTotal.Add(float64(size))
		return c.Status(fiber.StatusOK).SendStream(f, int(size))
	case err != nil || ranges.Type != "bytes":
		_ = f.Close()
		c.Set(fiber.HeaderContentRange, fmt.Sprintf("bytes */%d", size))
		return utils.SendError(c, fiber.StatusRequestedRangeNotSatisfiable, utils.CodeInvalidInput,
			"Requested range not satisfiable")
	}

	start, end := int64(ranges.Ranges[0].Start), int64(ranges.Ranges[0].End)
	length := end - start + 1
	c.Set(fiber.HeaderContentRange, fmt.Sprintf("bytes %d-%d/%d", start, end, size))
	h.metrics.StreamBytesTotal.Add(float64(length))

	body := sectionFile{Reader: io.NewSectionReader(f, start, length), Closer: f}
	return c.Status(fiber.StatusPartialContent).SendStream(body, int(length))
}

// sectionFile closes the underlying file once the response body is sent
type sectionFile struct {
	io.Reader
	io.Closer
}

// Download serves the media file as an attachment named after the original file
func (h *FileHandler) Download(c *fiber.Ctx) error {
	m, err := h.lookup(c)
	if m == nil {
		return err
	}
	if _, err := os.Stat(m.FilePath); err != nil {
		return utils.SendNotFoundError(c, "Media file")
	}
	return c.Download(m.FilePath, m.FileName)
}
