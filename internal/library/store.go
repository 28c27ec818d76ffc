// Package library holds the in-memory and on-disk representation of one media library.
package library

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"mediashelf/internal/auditlog"
	"mediashelf/internal/logging"
	"mediashelf/internal/models"
	"mediashelf/internal/storage"
)

const (
	maxRandomID     = 1_000_000_000
	maxIDAttempts   = 64
	defaultNickname = "Host"
)

var (
	// ErrInvalidInput marks caller mistakes: empty names, bad ratings, unknown references
	ErrInvalidInput = errors.New("invalid input")
	// ErrCycle is returned when a parent assignment would make an entity its own ancestor
	ErrCycle = errors.New("parent would create a cycle")
	// ErrIDExhausted is returned when random id allocation keeps colliding
	ErrIDExhausted = errors.New("could not allocate a unique id")
	// ErrMediaExists is returned when AddMediaFile is given an id already in use
	ErrMediaExists = errors.New("media id already exists")
)

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// ChangeKind classifies a change notification
type ChangeKind string

const (
	ChangeLibrary        ChangeKind = "library-updated"
	ChangeCommentAdded   ChangeKind = "comment-added"
	ChangeCommentDeleted ChangeKind = "comment-deleted"
)

// Change is emitted after every successful mutation
type Change struct {
	Kind      ChangeKind
	MediaID   int64
	CommentID string
}

// Listener receives changes. It runs under the store lock and must not block or call back into the store.
type Listener func(Change)

// Options configures a Store
type Options struct {
	Layout       storage.Layout
	AuditLogMax  int
	HostNickname string
}

// Store is the authoritative state of one library root
type Store struct {
	mu     sync.RWMutex
	layout storage.Layout
	audit  *auditlog.Log
	log    zerolog.Logger
	now    func() time.Time

	media     map[int64]*models.MediaFile
	tags      []models.Tag
	tagGroups []models.TagGroup
	folders   []models.Folder

	// indices derived from the embedded copies by rebuildIndices
	mediaTags    []models.MediaTag
	mediaFolders []models.MediaFolder
	comments     []models.Comment

	nextMediaID int64
	listeners   []Listener
}

// NewStore creates an empty store for the layout. Call Load before use.
func NewStore(opts Options) *Store {
	nickname := opts.HostNickname
	if nickname == "" {
		nickname = defaultNickname
	}
	return &Store{
		layout: opts.Layout,
		audit:  auditlog.New(opts.Layout.Codec, opts.Layout.AuditLogDocument(), opts.AuditLogMax, nickname),
		log:    *logging.WithLibrary(opts.Layout.Root),
		now:    time.Now,
		media:  make(map[int64]*models.MediaFile),
	}
}

// Layout returns the on-disk layout of the library
func (s *Store) Layout() storage.Layout {
	return s.layout
}

// Root returns the library root directory
func (s *Store) Root() string {
	return s.layout.Root
}

// OnChange registers a listener for mutation notifications
func (s *Store) OnChange(l Listener) {
	s.mu.Lock()
	s.listeners = append(s.listeners, l)
	s.mu.Unlock()
}

func (s *Store) emit(c Change) {
	for _, l := range s.listeners {
		l(c)
	}
}

// Load reads the library from disk, migrating a legacy document first when present.
// Read failures of individual documents are logged and skipped; migration failure is fatal.
func (s *Store) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	migrated, didMigrate := 0, false
	if NeedsMigration(s.layout) {
		n, err := s.migrateLegacy()
		if err != nil {
			return fmt.Errorf("migrate legacy library: %w", err)
		}
		migrated, didMigrate = n, true
	}

	s.tags = readCollection[models.Tag](s, s.layout.TagsDocument())
	s.tagGroups = readCollection[models.TagGroup](s, s.layout.TagGroupsDocument())
	s.folders = readCollection[models.Folder](s, s.layout.FoldersDocument())

	if err := s.audit.Load(); err != nil {
		s.log.Error().Err(err).Msg("Failed to read audit log")
	}

	s.media = make(map[int64]*models.MediaFile)
	s.nextMediaID = 0
	entries, err := os.ReadDir(s.layout.MediaDir())
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		s.log.Error().Err(err).Msg("Failed to list media directory")
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		var m models.MediaFile
		path := s.layout.MediaDocument(entry.Name())
		if err := storage.ReadDocument(s.layout.Codec, path, &m); err != nil {
			s.log.Warn().Err(err).Str("dir", entry.Name()).Msg("Skipping unreadable media document")
			continue
		}
		if m.UniqueID == "" {
			m.UniqueID = entry.Name()
		}
		if existing, ok := s.media[m.ID]; ok {
			s.log.Warn().Int64("id", m.ID).Str("kept", existing.UniqueID).Str("skipped", m.UniqueID).Msg("Duplicate media id on disk")
			continue
		}
		s.media[m.ID] = &m
	}

	s.rebuildIndices()

	if didMigrate {
		s.record(ctx, auditlog.Record{
			Action:      models.ActionLibraryMigrate,
			Description: fmt.Sprintf("Migrated %d media files from the legacy library document", migrated),
			Details:     map[string]any{"mediaFiles": migrated},
		})
	}

	s.log.Info().
		Int("media", len(s.media)).
		Int("tags", len(s.tags)).
		Int("folders", len(s.folders)).
		Msg("Library loaded")
	return nil
}

func readCollection[T any](s *Store, path string) []T {
	var out []T
	if err := storage.ReadDocument(s.layout.Codec, path, &out); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.log.Error().Err(err).Str("path", path).Msg("Failed to read collection")
		}
		return []T{}
	}
	return out
}

// rebuildIndices recomputes the join tables and the flattened comments from the embedded
// copies. The media id counter only moves forward so ids reserved by an import in flight stay unique.
func (s *Store) rebuildIndices() {
	s.mediaTags = s.mediaTags[:0]
	s.mediaFolders = s.mediaFolders[:0]
	s.comments = s.comments[:0]

	var maxID int64
	for _, m := range s.sortedMedia() {
		if m.ID > maxID {
			maxID = m.ID
		}
		for _, t := range m.Tags {
			s.mediaTags = append(s.mediaTags, models.MediaTag{MediaID: m.ID, TagID: t.ID})
		}
		for _, f := range m.Folders {
			s.mediaFolders = append(s.mediaFolders, models.MediaFolder{MediaID: m.ID, FolderID: f.ID})
		}
		for _, c := range m.Comments {
			c.MediaID = m.ID
			s.comments = append(s.comments, c)
		}
	}
	if s.nextMediaID <= maxID {
		s.nextMediaID = maxID + 1
	}
}

func (s *Store) sortedMedia() []*models.MediaFile {
	out := make([]*models.MediaFile, 0, len(s.media))
	for _, m := range s.media {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ReserveMediaID hands out the next sequential media id
func (s *Store) ReserveMediaID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.nextMediaID <= 0 {
		var maxID int64
		for id := range s.media {
			if id > maxID {
				maxID = id
			}
		}
		s.nextMediaID = maxID + 1
	}
	id := s.nextMediaID
	s.nextMediaID++
	return id
}

// randomID draws an id in 1..1e9, retrying while taken reports a collision
func randomID(taken func(int64) bool) (int64, error) {
	for i := 0; i < maxIDAttempts; i++ {
		id := rand.Int64N(maxRandomID) + 1
		if !taken(id) {
			return id, nil
		}
	}
	return 0, ErrIDExhausted
}

func (s *Store) saveMedia(m *models.MediaFile) error {
	return storage.WriteDocument(s.layout.Codec, s.layout.MediaDocument(m.UniqueID), m)
}

func (s *Store) saveTags() error {
	return storage.WriteDocument(s.layout.Codec, s.layout.TagsDocument(), s.tags)
}

func (s *Store) saveTagGroups() error {
	return storage.WriteDocument(s.layout.Codec, s.layout.TagGroupsDocument(), s.tagGroups)
}

func (s *Store) saveFolders() error {
	return storage.WriteDocument(s.layout.Codec, s.layout.FoldersDocument(), s.folders)
}

// rewriteEmbedded is the only path that changes embedded tag/folder copies across media.
// mutate reports whether it changed the file; changed files are persisted.
func (s *Store) rewriteEmbedded(mutate func(m *models.MediaFile) bool) (int, error) {
	changed := 0
	var firstErr error
	for _, m := range s.sortedMedia() {
		if !mutate(m) {
			continue
		}
		changed++
		if err := s.saveMedia(m); err != nil {
			s.log.Error().Err(err).Int64("media_id", m.ID).Msg("Failed to persist media document")
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	s.rebuildIndices()
	return changed, firstErr
}

func (s *Store) record(ctx context.Context, rec auditlog.Record) {
	if _, err := s.audit.Append(ctx, rec); err != nil {
		s.log.Error().Err(err).Str("action", string(rec.Action)).Msg("Failed to append audit entry")
	}
}

func (s *Store) actor(ctx context.Context) string {
	if nickname, ok := auditlog.ActorFrom(ctx); ok {
		return nickname
	}
	return s.audit.DefaultNickname()
}

// AuditLogs returns up to limit audit entries, newest first
func (s *Store) AuditLogs(limit int) []models.AuditLogEntry {
	return s.audit.Entries(limit)
}

// ClearAuditLogs empties the audit log
func (s *Store) ClearAuditLogs(ctx context.Context) error {
	return s.audit.Clear(ctx)
}

// Stats summarizes the library for health and CLI output
type Stats struct {
	Media   int `json:"media"`
	Trashed int `json:"trashed"`
	Tags    int `json:"tags"`
	Groups  int `json:"tagGroups"`
	Folders int `json:"folders"`
}

// Stats counts the entities in the library
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Stats{Tags: len(s.tags), Groups: len(s.tagGroups), Folders: len(s.folders)}
	for _, m := range s.media {
		if m.IsDeleted {
			st.Trashed++
		} else {
			st.Media++
		}
	}
	return st
}
