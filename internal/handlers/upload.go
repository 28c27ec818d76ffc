package handlers

import (
	"context"
	"errors"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"golang.org/x/text/encoding/charmap"

	"mediashelf/internal/importer"
	"mediashelf/internal/library"
	"mediashelf/internal/logging"
	"mediashelf/internal/metrics"
	"mediashelf/internal/models"
	"mediashelf/internal/utils"
)

// UploadConfig configures uploads
type UploadConfig struct {
	// Timeout bounds the wait for earlier import batches and each file's move
	Timeout      time.Duration
	ExtractColor bool
	Metrics      *metrics.Metrics
}

// UploadHandler receives files from shared users and imports them
type UploadHandler struct {
	store    *library.Store
	pipeline *importer.Pipeline
	cfg      UploadConfig
}

// NewUploadHandler creates a new upload handler
func NewUploadHandler(store *library.Store, pipeline *importer.Pipeline, cfg UploadConfig) *UploadHandler {
	if cfg.Timeout <= 0 {
		cfg.Timeout = importer.DefaultMoveTimeout
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.Default()
	}
	return &UploadHandler{store: store, pipeline: pipeline, cfg: cfg}
}

// Upload accepts multipart "files" and imports them as one batch. Each file is
// staged in its own directory so equal names cannot collide.
func (h *UploadHandler) Upload(c *fiber.Ctx) error {
	form, err := c.MultipartForm()
	if err != nil {
		return utils.SendValidationError(c, "Expected a multipart form")
	}
	files := append(form.File["files"], form.File["file"]...)
	if len(files) == 0 {
		return utils.SendValidationError(c, "No files uploaded")
	}

	log := logging.WithLibrary(h.store.Root())
	var (
		paths  []string
		staged []string
	)
	defer func() {
		for _, dir := range staged {
			_ = os.RemoveAll(dir)
		}
	}()
	for _, fh := range files {
		path, dir, err := h.stage(c, fh)
		if dir != "" {
			staged = append(staged, dir)
		}
		if err != nil {
			log.Warn().Err(err).Str("file", fh.Filename).Msg("Failed to stage upload")
			continue
		}
		paths = append(paths, path)
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), h.cfg.Timeout)
	defer cancel()
	imported, err := h.pipeline.Import(ctx, paths, importer.Options{
		CheckDuplicates: c.QueryBool("checkDuplicates"),
		ExtractColor:    h.cfg.ExtractColor,
		DeleteSource:    true,
	})
	if errors.Is(err, context.DeadlineExceeded) {
		return utils.SendError(c, fiber.StatusServiceUnavailable, utils.CodeServerError,
			"Library is busy importing, try again later")
	}
	if err != nil {
		log.Error().Err(err).Msg("Upload import failed")
		return utils.SendInternalServerError(c, "Failed to import uploads")
	}
	h.cfg.Metrics.UploadedFilesTotal.Add(float64(len(imported)))

	if imported == nil {
		imported = []*models.MediaFile{}
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"data":     imported,
		"received": len(files),
		"imported": len(imported),
	})
}

// stage saves one upload to <uploadDir>/<uuid>/<name>
func (h *UploadHandler) stage(c *fiber.Ctx, fh *multipart.FileHeader) (path, dir string, err error) {
	name := library.SanitizeFileName(clientFileName(fh.Filename))
	dir = filepath.Join(h.store.Layout().UploadDir(), uuid.NewString())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", "", err
	}
	path = filepath.Join(dir, name)
	if err := c.SaveFile(fh, path); err != nil {
		return "", dir, err
	}
	return path, dir, nil
}

// clientFileName strips any client-side directory and repairs the encoding
func clientFileName(name string) string {
	name = strings.ReplaceAll(name, `\`, "/")
	return repairFileName(filepath.Base(name))
}

// repairFileName fixes names that reached us as latin-1. Raw latin-1 bytes are
// decoded; UTF-8 text that was read as latin-1 and re-encoded ("Ã©" for "é") is
// folded back. Anything else is returned unchanged.
func repairFileName(name string) string {
	if !utf8.ValidString(name) {
		if decoded, err := charmap.ISO8859_1.NewDecoder().String(name); err == nil {
			return decoded
		}
		return name
	}

	high := false
	for _, r := range name {
		if r > 0xff {
			return name
		}
		if r >= 0x80 {
			high = true
		}
	}
	if !high {
		return name
	}
	raw, err := charmap.ISO8859_1.NewEncoder().String(name)
	if err != nil || !utf8.ValidString(raw) {
		return name
	}
	return raw
}
