package library

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"mediashelf/internal/auditlog"
	"mediashelf/internal/models"
)

// ListMediaFiles returns copies of the media matching filter, ordered by id
func (s *Store) ListMediaFiles(filter models.MediaFilter) []*models.MediaFile {
	s.mu.RLock()
	defer s.mu.RUnlock()

	search := strings.ToLower(strings.TrimSpace(filter.Search))
	out := make([]*models.MediaFile, 0, len(s.media))
	for _, m := range s.sortedMedia() {
		switch {
		case filter.OnlyDeleted && !m.IsDeleted:
			continue
		case !filter.OnlyDeleted && !filter.IncludeDeleted && m.IsDeleted:
			continue
		case filter.FileType != "" && m.FileType != filter.FileType:
			continue
		case filter.TagID != nil && !hasTag(m, *filter.TagID):
			continue
		case filter.FolderID != nil && !hasFolder(m, *filter.FolderID):
			continue
		case search != "" && !matchesSearch(m, search):
			continue
		}
		out = append(out, m.Clone())
	}
	return out
}

func matchesSearch(m *models.MediaFile, search string) bool {
	for _, field := range []string{m.Title, m.FileName, m.Artist, m.Description} {
		if strings.Contains(strings.ToLower(field), search) {
			return true
		}
	}
	return false
}

func hasTag(m *models.MediaFile, tagID int64) bool {
	for _, t := range m.Tags {
		if t.ID == tagID {
			return true
		}
	}
	return false
}

func hasFolder(m *models.MediaFile, folderID int64) bool {
	for _, f := range m.Folders {
		if f.ID == folderID {
			return true
		}
	}
	return false
}

// GetMediaFile returns a copy of one media file, trashed or not
func (s *Store) GetMediaFile(id int64) (*models.MediaFile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.media[id]
	if !ok {
		return nil, false
	}
	return m.Clone(), true
}

// GetActiveMediaFile returns a copy of one media file; trashed media reports false
func (s *Store) GetActiveMediaFile(id int64) (*models.MediaFile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.media[id]
	if !ok || m.IsDeleted {
		return nil, false
	}
	return m.Clone(), true
}

// IsActive reports whether id names a media file outside the trash
func (s *Store) IsActive(id int64) bool {
	_, ok := s.GetActiveMediaFile(id)
	return ok
}

// GetMediaFileWithDetails resolves a media file against the canonical collections
// and adds a shallow parent/children projection.
func (s *Store) GetMediaFileWithDetails(id int64) (*models.MediaDetails, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.media[id]
	if !ok {
		return nil, false
	}

	details := &models.MediaDetails{
		MediaFile: m.Clone(),
		Tags:      []models.Tag{},
		Folders:   []models.Folder{},
		Comments:  []models.Comment{},
		Children:  []models.MediaRef{},
	}
	for _, mt := range s.mediaTags {
		if mt.MediaID != id {
			continue
		}
		if t := s.findTag(mt.TagID); t != nil {
			details.Tags = append(details.Tags, *t)
		}
	}
	for _, mf := range s.mediaFolders {
		if mf.MediaID != id {
			continue
		}
		if f := s.findFolder(mf.FolderID); f != nil {
			details.Folders = append(details.Folders, *f)
		}
	}
	for _, c := range s.comments {
		if c.MediaID == id {
			details.Comments = append(details.Comments, c)
		}
	}
	sortComments(details.Comments)

	if m.ParentID != nil {
		if parent, ok := s.media[*m.ParentID]; ok {
			ref := parent.Ref()
			details.Parent = &ref
		}
	}
	for _, other := range s.sortedMedia() {
		if other.ParentID != nil && *other.ParentID == id && !other.IsDeleted {
			details.Children = append(details.Children, other.Ref())
		}
	}
	return details, true
}

// AddMediaFile persists a new media file produced by the import pipeline
func (s *Store) AddMediaFile(ctx context.Context, m *models.MediaFile) error {
	if m == nil || m.ID <= 0 || m.UniqueID == "" {
		return invalid("media file needs an id and a unique id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.media[m.ID]; exists {
		return fmt.Errorf("%w: %d", ErrMediaExists, m.ID)
	}

	stored := m.Clone()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = s.now().UTC()
	}
	if stored.Title == "" {
		stored.Title = strings.TrimSuffix(stored.FileName, extOf(stored.FileName))
	}
	if stored.Tags == nil {
		stored.Tags = []models.Tag{}
	}
	if stored.Folders == nil {
		stored.Folders = []models.Folder{}
	}
	if stored.Comments == nil {
		stored.Comments = []models.Comment{}
	}
	if stored.Artists == nil {
		stored.Artists = []string{}
	}

	if err := s.saveMedia(stored); err != nil {
		return fmt.Errorf("persist media %d: %w", stored.ID, err)
	}
	s.media[stored.ID] = stored
	s.rebuildIndices()

	s.record(ctx, auditlog.Record{
		Action:      models.ActionMediaImport,
		TargetID:    fmt.Sprint(stored.ID),
		TargetName:  stored.FileName,
		Description: fmt.Sprintf("Imported %s", stored.FileName),
		Details:     map[string]any{"fileType": stored.FileType, "fileSize": stored.FileSize},
	})
	s.emit(Change{Kind: ChangeLibrary, MediaID: stored.ID})
	return nil
}

// UpdateMediaFile applies the non-nil fields of upd. A missing media file returns nil, nil.
func (s *Store) UpdateMediaFile(ctx context.Context, id int64, upd models.MediaUpdate) (*models.MediaFile, error) {
	if upd.Rating != nil && (*upd.Rating < 0 || *upd.Rating > 5) {
		return nil, invalid("rating must be between 0 and 5")
	}
	if upd.Title != nil && strings.TrimSpace(*upd.Title) == "" {
		return nil, invalid("title cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.media[id]
	if !ok {
		return nil, nil
	}
	if upd.Empty() {
		return m.Clone(), nil
	}

	next := m.Clone()
	changed := []string{}
	if upd.Title != nil {
		next.Title = strings.TrimSpace(*upd.Title)
		changed = append(changed, "title")
	}
	if upd.Rating != nil {
		next.Rating = *upd.Rating
		changed = append(changed, "rating")
	}
	if upd.Description != nil {
		next.Description = *upd.Description
		changed = append(changed, "description")
	}
	if upd.Artist != nil {
		next.Artist = *upd.Artist
		changed = append(changed, "artist")
	}
	if upd.Artists != nil {
		next.Artists = append([]string{}, (*upd.Artists)...)
		changed = append(changed, "artists")
	}
	if upd.URL != nil {
		next.URL = *upd.URL
		changed = append(changed, "url")
	}

	if err := s.saveMedia(next); err != nil {
		return nil, fmt.Errorf("persist media %d: %w", id, err)
	}
	s.media[id] = next

	s.record(ctx, auditlog.Record{
		Action:      models.ActionMediaUpdate,
		TargetID:    fmt.Sprint(id),
		TargetName:  next.FileName,
		Description: fmt.Sprintf("Updated %s of %s", strings.Join(changed, ", "), next.FileName),
		Details:     map[string]any{"fields": changed},
	})
	s.emit(Change{Kind: ChangeLibrary, MediaID: id})
	return next.Clone(), nil
}

// MarkPlayed stamps the last playback time
func (s *Store) MarkPlayed(ctx context.Context, id int64) (*models.MediaFile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.media[id]
	if !ok {
		return nil, nil
	}
	next := m.Clone()
	now := s.now().UTC()
	next.LastPlayedAt = &now

	if err := s.saveMedia(next); err != nil {
		return nil, fmt.Errorf("persist media %d: %w", id, err)
	}
	s.media[id] = next

	s.record(ctx, auditlog.Record{
		Action:      models.ActionMediaUpdate,
		TargetID:    fmt.Sprint(id),
		TargetName:  next.FileName,
		Description: fmt.Sprintf("Played %s", next.FileName),
		Details:     map[string]any{"fields": []string{"lastPlayedAt"}},
	})
	s.emit(Change{Kind: ChangeLibrary, MediaID: id})
	return next.Clone(), nil
}

// TrashMediaFiles soft-deletes the given media and returns how many moved to the trash
func (s *Store) TrashMediaFiles(ctx context.Context, ids []int64) (int, error) {
	return s.setTrashed(ctx, ids, true)
}

// RestoreMediaFiles takes media out of the trash
func (s *Store) RestoreMediaFiles(ctx context.Context, ids []int64) (int, error) {
	return s.setTrashed(ctx, ids, false)
}

func (s *Store) setTrashed(ctx context.Context, ids []int64, trashed bool) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	var names []string
	for _, id := range ids {
		m, ok := s.media[id]
		if !ok || m.IsDeleted == trashed {
			continue
		}
		next := m.Clone()
		next.IsDeleted = trashed
		if trashed {
			next.DeletedAt = &now
		} else {
			next.DeletedAt = nil
		}
		if err := s.saveMedia(next); err != nil {
			return len(names), fmt.Errorf("persist media %d: %w", id, err)
		}
		s.media[id] = next
		names = append(names, next.FileName)
	}
	if len(names) == 0 {
		return 0, nil
	}

	action, verb := models.ActionMediaTrash, "Moved %d file(s) to the trash"
	if !trashed {
		action, verb = models.ActionMediaRestore, "Restored %d file(s) from the trash"
	}
	s.record(ctx, auditlog.Record{
		Action:      action,
		TargetName:  strings.Join(names, ", "),
		Description: fmt.Sprintf(verb, len(names)),
		Details:     map[string]any{"ids": ids},
	})
	s.emit(Change{Kind: ChangeLibrary})
	return len(names), nil
}

// DeleteMediaFilePermanently removes a media file and its storage directory
func (s *Store) DeleteMediaFilePermanently(ctx context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.media[id]
	if !ok {
		return false, nil
	}
	if err := s.deleteLocked(m); err != nil {
		return false, err
	}

	s.record(ctx, auditlog.Record{
		Action:      models.ActionMediaDelete,
		TargetID:    fmt.Sprint(id),
		TargetName:  m.FileName,
		Description: fmt.Sprintf("Permanently deleted %s", m.FileName),
	})
	s.emit(Change{Kind: ChangeLibrary, MediaID: id})
	return true, nil
}

// deleteLocked drops m from disk and memory and detaches its children
func (s *Store) deleteLocked(m *models.MediaFile) error {
	if err := os.RemoveAll(s.layout.MediaItemDir(m.UniqueID)); err != nil {
		return fmt.Errorf("remove media directory %s: %w", m.UniqueID, err)
	}
	delete(s.media, m.ID)

	for _, child := range s.sortedMedia() {
		if child.ParentID == nil || *child.ParentID != m.ID {
			continue
		}
		child.ParentID = nil
		if err := s.saveMedia(child); err != nil {
			s.log.Error().Err(err).Int64("media_id", child.ID).Msg("Failed to detach child media")
		}
	}
	s.rebuildIndices()
	return nil
}

// PurgeTrash permanently deletes media trashed for longer than olderThan
func (s *Store) PurgeTrash(ctx context.Context, olderThan time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-olderThan)
	var purged []string
	for _, m := range s.sortedMedia() {
		if !m.IsDeleted {
			continue
		}
		if m.DeletedAt != nil && m.DeletedAt.After(cutoff) {
			continue
		}
		if err := s.deleteLocked(m); err != nil {
			s.log.Error().Err(err).Int64("media_id", m.ID).Msg("Failed to purge trashed media")
			continue
		}
		purged = append(purged, m.FileName)
	}
	if len(purged) == 0 {
		return 0, nil
	}

	s.record(ctx, auditlog.Record{
		Action:      models.ActionTrashPurge,
		TargetName:  strings.Join(purged, ", "),
		Description: fmt.Sprintf("Purged %d file(s) from the trash", len(purged)),
		Details:     map[string]any{"olderThan": olderThan.String()},
	})
	s.emit(Change{Kind: ChangeLibrary})
	return len(purged), nil
}

// UpdateParentID sets or clears the parent of a media file. Self references and direct
// two-node cycles return ErrCycle and leave the stored parent unchanged; longer cycles are not checked.
// A missing child or parent returns false.
func (s *Store) UpdateParentID(ctx context.Context, childID int64, parentID *int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	child, ok := s.media[childID]
	if !ok {
		return false, nil
	}

	description := fmt.Sprintf("Cleared parent of %s", child.FileName)
	if parentID != nil {
		if *parentID == childID {
			return false, ErrCycle
		}
		parent, ok := s.media[*parentID]
		if !ok {
			return false, nil
		}
		if parent.ParentID != nil && *parent.ParentID == childID {
			return false, ErrCycle
		}
		description = fmt.Sprintf("Grouped %s under %s", child.FileName, parent.FileName)
	}

	next := child.Clone()
	if parentID != nil {
		p := *parentID
		next.ParentID = &p
	} else {
		next.ParentID = nil
	}
	if err := s.saveMedia(next); err != nil {
		return false, fmt.Errorf("persist media %d: %w", childID, err)
	}
	s.media[childID] = next

	s.record(ctx, auditlog.Record{
		Action:      models.ActionMediaParent,
		TargetID:    fmt.Sprint(childID),
		TargetName:  next.FileName,
		Description: description,
	})
	s.emit(Change{Kind: ChangeLibrary, MediaID: childID})
	return true, nil
}

func sortComments(comments []models.Comment) {
	sort.SliceStable(comments, func(i, j int) bool {
		if comments[i].Time != comments[j].Time {
			return comments[i].Time < comments[j].Time
		}
		return comments[i].CreatedAt.Before(comments[j].CreatedAt)
	})
}
