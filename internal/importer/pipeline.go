// Package importer turns source files into library media, one batch at a time per library.
package importer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"time"

	"github.com/rs/zerolog"

	"mediashelf/internal/library"
	"mediashelf/internal/logging"
	"mediashelf/internal/media"
	"mediashelf/internal/metrics"
	"mediashelf/internal/models"
	"mediashelf/internal/tracing"
)

// DefaultMoveTimeout bounds the relocation of a single file
const DefaultMoveTimeout = 600 * time.Second

const thumbnailName = "thumbnail.jpg"

// Stage is a step of the per-file import
type Stage string

const (
	StageStarting  Stage = "starting"
	StageMoving    Stage = "moving"
	StageMetadata  Stage = "metadata"
	StageThumbnail Stage = "thumbnail"
	StageColor     Stage = "color"
	StageDone      Stage = "done"
)

var stageWeights = map[Stage]float64{
	StageStarting:  0,
	StageMoving:    0.1,
	StageMetadata:  0.3,
	StageThumbnail: 0.5,
	StageColor:     0.8,
	StageDone:      1.0,
}

// Progress is reported at every stage of every file
type Progress struct {
	Index   int     `json:"index"`
	Total   int     `json:"total"`
	File    string  `json:"file"`
	Stage   Stage   `json:"stage"`
	Percent float64 `json:"percent"`
}

// Options controls one batch
type Options struct {
	// CheckDuplicates drops sources whose size and sanitized name match an active media file
	CheckDuplicates bool
	ExtractColor    bool
	// DeleteSource moves instead of copies
	DeleteSource bool
	// Progress is called synchronously; a slow callback slows the batch
	Progress func(Progress)
}

// Config configures a Pipeline
type Config struct {
	MoveTimeout time.Duration
	Metrics     *metrics.Metrics
}

// errSkipped marks files that are not importable at all, as opposed to failures
var errSkipped = errors.New("skipped")

// Pipeline imports files into one library
type Pipeline struct {
	store       *library.Store
	provider    media.Provider
	lock        *BatchLock
	moveTimeout time.Duration
	metrics     *metrics.Metrics
	log         zerolog.Logger
}

// New creates the pipeline of a library. Only one pipeline should exist per store.
func New(store *library.Store, provider media.Provider, cfg Config) *Pipeline {
	if cfg.MoveTimeout <= 0 {
		cfg.MoveTimeout = DefaultMoveTimeout
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.Default()
	}
	return &Pipeline{
		store:       store,
		provider:    provider,
		lock:        NewBatchLock(),
		moveTimeout: cfg.MoveTimeout,
		metrics:     cfg.Metrics,
		log:         logging.WithLibrary(store.Root()).With().Str("module", "importer").Logger(),
	}
}

// Lock exposes the batch lock of the library
func (p *Pipeline) Lock() *BatchLock {
	return p.lock
}

// Import runs one batch. It waits for earlier batches of the same library; ctx bounds
// that wait and each file's relocation. Unimportable or failing files are logged and
// left out of the result, which lists the imported media in input order.
func (p *Pipeline) Import(ctx context.Context, paths []string, opts Options) (result []*models.MediaFile, err error) {
	if err := p.lock.Acquire(ctx); err != nil {
		return nil, fmt.Errorf("wait for import batch: %w", err)
	}
	defer p.lock.Release()

	p.metrics.ImportBatchesInFlight.Inc()
	defer p.metrics.ImportBatchesInFlight.Dec()

	start := time.Now()
	ctx, span := tracing.StartSpan(ctx, "import.batch", tracing.ImportBatchAttrs(p.store.Root(), len(paths))...)
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			p.log.Error().
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Msg("Import batch aborted")
			tracing.SetSpanError(ctx, fmt.Errorf("panic: %v", r))
			result, err = []*models.MediaFile{}, nil
		}
		p.metrics.ImportBatchDuration.Observe(time.Since(start).Seconds())
		logging.GetGlobalLogger().LogImportBatch(p.store.Root(), len(paths), len(result), time.Since(start))
	}()

	if opts.CheckDuplicates {
		paths = p.dropDuplicates(paths)
	}

	result = []*models.MediaFile{}
	for i, path := range paths {
		m, err := p.importFile(ctx, i, len(paths), path, opts)
		switch {
		case errors.Is(err, errSkipped):
			p.metrics.ImportFilesTotal.WithLabelValues("skipped").Inc()
			p.log.Warn().Str("path", path).Err(err).Msg("Import skipped file")
		case err != nil:
			p.metrics.ImportFilesTotal.WithLabelValues("failed").Inc()
			p.log.Error().Str("path", path).Err(err).Msg("Import failed")
		default:
			p.metrics.ImportFilesTotal.WithLabelValues("imported").Inc()
			result = append(result, m)
		}
	}
	return result, nil
}

func (p *Pipeline) dropDuplicates(paths []string) []string {
	dupes := map[string]bool{}
	for _, match := range p.store.CheckDuplicates(paths, true) {
		dupes[match.SourcePath] = true
		p.log.Info().
			Str("path", match.SourcePath).
			Int64("existing_id", match.Existing.ID).
			Msg("Import dropped duplicate")
	}
	kept := make([]string, 0, len(paths))
	for _, path := range paths {
		if dupes[path] {
			p.metrics.ImportFilesTotal.WithLabelValues("duplicate").Inc()
			continue
		}
		kept = append(kept, path)
	}
	return kept
}

func (p *Pipeline) importFile(ctx context.Context, index, total int, src string, opts Options) (*models.MediaFile, error) {
	ctx, span := tracing.StartSpan(ctx, "import.file", tracing.ImportFileAttrs(src, index)...)
	defer span.End()

	report := func(stage Stage) {
		if opts.Progress == nil {
			return
		}
		opts.Progress(Progress{
			Index:   index,
			Total:   total,
			File:    filepath.Base(src),
			Stage:   stage,
			Percent: (float64(index) + stageWeights[stage]) / float64(total) * 100,
		})
	}
	report(StageStarting)

	info, err := os.Stat(src)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errSkipped, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", errSkipped, src)
	}
	fileType, ok := media.DetectFileType(src)
	if !ok {
		return nil, fmt.Errorf("%w: unsupported extension %q", errSkipped, filepath.Ext(src))
	}

	name := library.SanitizeFileName(filepath.Base(src))
	id := p.store.ReserveMediaID()
	uniqueID := library.NewUniqueID()
	layout := p.store.Layout()
	dir := layout.MediaItemDir(uniqueID)
	target := filepath.Join(dir, name)

	report(StageMoving)
	moveCtx, cancel := context.WithTimeout(ctx, p.moveTimeout)
	err = relocate(moveCtx, src, target, opts.DeleteSource)
	cancel()
	if err != nil {
		os.RemoveAll(dir)
		tracing.SetSpanError(ctx, err)
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("relocation timed out after %v: %w", p.moveTimeout, err)
		}
		return nil, err
	}

	// stages after the move are not bounded by the caller's context
	work := context.WithoutCancel(ctx)

	report(StageMetadata)
	md, err := p.provider.Probe(work, target)
	if err != nil {
		p.rollback(dir, target, src, opts.DeleteSource)
		tracing.SetSpanError(ctx, err)
		return nil, fmt.Errorf("read metadata: %w", err)
	}

	m := &models.MediaFile{
		ID:       id,
		UniqueID: uniqueID,
		FilePath: target,
		FileName: name,
		FileType: fileType,
		FileSize: info.Size(),
		Title:    md.Title,
		Duration: md.Duration,
		Width:    md.Width,
		Height:   md.Height,
		Artist:   md.Artist,
		Artists:  md.Artists,
		Created:  info.ModTime().UTC(),
		Modified: info.ModTime().UTC(),
	}

	report(StageThumbnail)
	thumbRel := filepath.Join(uniqueID, thumbnailName)
	thumbAbs := filepath.Join(layout.MediaDir(), thumbRel)
	if err := p.provider.Thumbnail(work, target, thumbAbs); err != nil {
		p.log.Warn().Str("file", name).Err(err).Msg("Thumbnail generation failed")
	} else {
		m.ThumbnailPath = thumbRel
	}

	report(StageColor)
	if opts.ExtractColor && m.ThumbnailPath != "" {
		if c, err := media.DominantColor(thumbAbs); err != nil {
			p.log.Debug().Str("file", name).Err(err).Msg("Dominant color unavailable")
		} else {
			m.DominantColor = c
		}
	}

	if err := p.store.AddMediaFile(ctx, m); err != nil {
		p.rollback(dir, target, src, opts.DeleteSource)
		tracing.SetSpanError(ctx, err)
		return nil, err
	}
	report(StageDone)

	stored, _ := p.store.GetMediaFile(id)
	return stored, nil
}

// rollback removes the half-built media directory, moving the file back first when
// the source was consumed
func (p *Pipeline) rollback(dir, target, src string, moved bool) {
	if moved {
		if err := relocate(context.Background(), target, src, true); err != nil {
			p.log.Error().Str("source", src).Err(err).Msg("Could not restore moved source")
			return
		}
	}
	os.RemoveAll(dir)
}
