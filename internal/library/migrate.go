package library

import (
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"

	"mediashelf/internal/models"
	"mediashelf/internal/storage"
)

// legacyDocument is the monolithic library file written by older releases
type legacyDocument struct {
	MediaFiles  []models.MediaFile `json:"mediaFiles" yaml:"mediaFiles"`
	Tags        []models.Tag       `json:"tags" yaml:"tags"`
	TagGroups   []models.TagGroup  `json:"tagGroups" yaml:"tagGroups"`
	Genres      []models.Folder    `json:"genres" yaml:"genres"`
	MediaTags   []models.MediaTag  `json:"mediaTags" yaml:"mediaTags"`
	MediaGenres []legacyMediaGenre `json:"mediaGenres" yaml:"mediaGenres"`
	Comments    []models.Comment   `json:"comments" yaml:"comments"`
	NextMediaID int64              `json:"nextMediaId" yaml:"nextMediaId"`
}

type legacyMediaGenre struct {
	MediaID int64 `json:"mediaId" yaml:"mediaId"`
	GenreID int64 `json:"genreId" yaml:"genreId"`
}

// NewUniqueID returns a random storage directory name for a media file
func NewUniqueID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

var legacyIDSpace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("mediashelf:legacy-media"))

// legacyUniqueID names the storage directory of a legacy media file that had
// none. It depends on the id alone so a re-run migration lands in the same place.
func legacyUniqueID(id int64) string {
	return strings.ReplaceAll(uuid.NewSHA1(legacyIDSpace, []byte(fmt.Sprint(id))).String(), "-", "")
}

// NeedsMigration reports whether root holds a legacy document that was not split yet
func NeedsMigration(layout storage.Layout) bool {
	return storage.Exists(layout.LegacyDocument()) && !storage.Exists(layout.TagsDocument())
}

// migrateLegacy splits the legacy document into the dispersed layout and renames it
// to mark completion. It returns the number of media documents written.
func (s *Store) migrateLegacy() (int, error) {
	var legacy legacyDocument
	if err := storage.ReadDocument(s.layout.Codec, s.layout.LegacyDocument(), &legacy); err != nil {
		return 0, err
	}
	s.log.Info().
		Int("media", len(legacy.MediaFiles)).
		Int("tags", len(legacy.Tags)).
		Int("genres", len(legacy.Genres)).
		Msg("Migrating legacy library document")

	tags := nonNil(legacy.Tags)
	groups := nonNil(legacy.TagGroups)
	folders := nonNil(legacy.Genres)

	if err := storage.WriteDocument(s.layout.Codec, s.layout.TagGroupsDocument(), groups); err != nil {
		return 0, err
	}
	if err := storage.WriteDocument(s.layout.Codec, s.layout.FoldersDocument(), folders); err != nil {
		return 0, err
	}

	tagByID := make(map[int64]models.Tag, len(tags))
	for _, t := range tags {
		tagByID[t.ID] = t
	}
	folderByID := make(map[int64]models.Folder, len(folders))
	for _, f := range folders {
		folderByID[f.ID] = f
	}
	tagsOf := map[int64][]models.Tag{}
	for _, mt := range legacy.MediaTags {
		if t, ok := tagByID[mt.TagID]; ok {
			tagsOf[mt.MediaID] = append(tagsOf[mt.MediaID], cloneTag(t))
		}
	}
	foldersOf := map[int64][]models.Folder{}
	for _, mg := range legacy.MediaGenres {
		if f, ok := folderByID[mg.GenreID]; ok {
			foldersOf[mg.MediaID] = append(foldersOf[mg.MediaID], cloneFolder(f))
		}
	}
	commentsOf := map[int64][]models.Comment{}
	for _, c := range legacy.Comments {
		if c.ID == "" {
			c.ID = uuid.NewString()
		}
		commentsOf[c.MediaID] = append(commentsOf[c.MediaID], c)
	}

	for i := range legacy.MediaFiles {
		m := &legacy.MediaFiles[i]
		if m.UniqueID == "" {
			m.UniqueID = legacyUniqueID(m.ID)
		}
		m.Tags = nonNil(tagsOf[m.ID])
		m.Folders = nonNil(foldersOf[m.ID])
		m.Comments = nonNil(commentsOf[m.ID])
		if m.Artists == nil {
			m.Artists = []string{}
		}
		if err := s.saveMedia(m); err != nil {
			return i, fmt.Errorf("write media %d: %w", m.ID, err)
		}
	}

	// tags last: its presence is what marks the dispersed layout as current
	if err := storage.WriteDocument(s.layout.Codec, s.layout.TagsDocument(), tags); err != nil {
		return len(legacy.MediaFiles), err
	}
	if err := os.Rename(s.layout.LegacyDocument(), s.layout.MigratedDocument()); err != nil {
		return len(legacy.MediaFiles), fmt.Errorf("mark legacy document migrated: %w", err)
	}
	return len(legacy.MediaFiles), nil
}

func nonNil[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}
