package library

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"mediashelf/internal/auditlog"
	"mediashelf/internal/models"
)

// ListFolders returns every folder ordered by orderIndex, then id
func (s *Store) ListFolders() []models.Folder {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Folder, 0, len(s.folders))
	for _, f := range s.folders {
		out = append(out, cloneFolder(f))
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].OrderIndex != out[j].OrderIndex {
			return out[i].OrderIndex < out[j].OrderIndex
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func cloneFolder(f models.Folder) models.Folder {
	if f.ParentID != nil {
		p := *f.ParentID
		f.ParentID = &p
	}
	return f
}

func (s *Store) findFolder(id int64) *models.Folder {
	for i := range s.folders {
		if s.folders[i].ID == id {
			return &s.folders[i]
		}
	}
	return nil
}

func sameParent(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// CreateFolder adds a folder at the end of its siblings
func (s *Store) CreateFolder(ctx context.Context, name string, parentID *int64, description string) (*models.Folder, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, invalid("folder name cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if parentID != nil && s.findFolder(*parentID) == nil {
		return nil, invalid("parent folder %d does not exist", *parentID)
	}
	id, err := randomID(func(id int64) bool { return s.findFolder(id) != nil })
	if err != nil {
		return nil, err
	}

	order := 0
	for _, f := range s.folders {
		if sameParent(f.ParentID, parentID) && f.OrderIndex >= order {
			order = f.OrderIndex + 1
		}
	}
	folder := models.Folder{ID: id, Name: name, OrderIndex: order, Description: description}
	if parentID != nil {
		p := *parentID
		folder.ParentID = &p
	}

	s.folders = append(s.folders, folder)
	if err := s.saveFolders(); err != nil {
		s.folders = s.folders[:len(s.folders)-1]
		return nil, fmt.Errorf("persist folders: %w", err)
	}

	s.record(ctx, auditlog.Record{
		Action:      models.ActionFolderCreate,
		TargetID:    fmt.Sprint(id),
		TargetName:  name,
		Description: fmt.Sprintf("Created folder %q", name),
	})
	s.emit(Change{Kind: ChangeLibrary})
	out := cloneFolder(folder)
	return &out, nil
}

// UpdateFolder renames, describes or moves a folder. A folder cannot become its own parent
// nor the child of its own child. A missing folder returns nil, nil.
func (s *Store) UpdateFolder(ctx context.Context, id int64, upd models.FolderUpdate) (*models.Folder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	folder := s.findFolder(id)
	if folder == nil {
		return nil, nil
	}

	next := cloneFolder(*folder)
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return nil, invalid("folder name cannot be empty")
		}
		next.Name = name
	}
	if upd.Description != nil {
		next.Description = *upd.Description
	}
	switch {
	case upd.ClearParent:
		next.ParentID = nil
	case upd.ParentID != nil:
		if *upd.ParentID == id {
			return nil, ErrCycle
		}
		parent := s.findFolder(*upd.ParentID)
		if parent == nil {
			return nil, invalid("parent folder %d does not exist", *upd.ParentID)
		}
		if parent.ParentID != nil && *parent.ParentID == id {
			return nil, ErrCycle
		}
		p := *upd.ParentID
		next.ParentID = &p
	}

	moved := !sameParent(folder.ParentID, next.ParentID)
	if !moved && next.Name == folder.Name && next.Description == folder.Description {
		return &next, nil
	}

	prev := *folder
	oldName := folder.Name
	*folder = next
	if err := s.saveFolders(); err != nil {
		*folder = prev
		return nil, fmt.Errorf("persist folders: %w", err)
	}
	if _, err := s.rewriteEmbedded(replaceFolders(map[int64]models.Folder{id: next})); err != nil {
		return nil, fmt.Errorf("propagate folder %d: %w", id, err)
	}

	rec := auditlog.Record{
		Action:      models.ActionFolderRename,
		TargetID:    fmt.Sprint(id),
		TargetName:  next.Name,
		Description: fmt.Sprintf("Renamed folder %q to %q", oldName, next.Name),
		Details:     map[string]any{"oldName": oldName},
	}
	if moved {
		rec.Action = models.ActionFolderMove
		rec.Description = fmt.Sprintf("Moved folder %q", next.Name)
		rec.Details["parentId"] = next.ParentID
	}
	s.record(ctx, rec)
	s.emit(Change{Kind: ChangeLibrary})
	out := cloneFolder(next)
	return &out, nil
}

func replaceFolders(updated map[int64]models.Folder) func(m *models.MediaFile) bool {
	return func(m *models.MediaFile) bool {
		changed := false
		for i := range m.Folders {
			if f, ok := updated[m.Folders[i].ID]; ok {
				m.Folders[i] = cloneFolder(f)
				changed = true
			}
		}
		return changed
	}
}

// DeleteFolder removes a folder, moves its children up to its parent and detaches it
// from every media file.
func (s *Store) DeleteFolder(ctx context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	folder := s.findFolder(id)
	if folder == nil {
		return false, nil
	}
	deleted := cloneFolder(*folder)

	kept := make([]models.Folder, 0, len(s.folders))
	reparented := map[int64]models.Folder{}
	for _, f := range s.folders {
		if f.ID == id {
			continue
		}
		if f.ParentID != nil && *f.ParentID == id {
			f.ParentID = deleted.ParentID
			if f.ParentID != nil {
				p := *f.ParentID
				f.ParentID = &p
			}
			reparented[f.ID] = f
		}
		kept = append(kept, f)
	}
	s.folders = kept
	if err := s.saveFolders(); err != nil {
		return false, fmt.Errorf("persist folders: %w", err)
	}

	propagate := replaceFolders(reparented)
	detached := 0
	_, err := s.rewriteEmbedded(func(m *models.MediaFile) bool {
		changed := propagate(m)
		keptFolders := m.Folders[:0]
		for _, f := range m.Folders {
			if f.ID != id {
				keptFolders = append(keptFolders, f)
			}
		}
		if len(keptFolders) != len(m.Folders) {
			detached++
			changed = true
		}
		m.Folders = keptFolders
		return changed
	})
	if err != nil {
		return false, fmt.Errorf("detach folder %d: %w", id, err)
	}

	s.record(ctx, auditlog.Record{
		Action:      models.ActionFolderDelete,
		TargetID:    fmt.Sprint(id),
		TargetName:  deleted.Name,
		Description: fmt.Sprintf("Deleted folder %q", deleted.Name),
		Details:     map[string]any{"detachedFrom": detached, "reparented": len(reparented)},
	})
	s.emit(Change{Kind: ChangeLibrary})
	return true, nil
}

// ReorderFolders assigns orderIndex by position in orderedIDs. Unknown ids are ignored.
func (s *Store) ReorderFolders(ctx context.Context, orderedIDs []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	updated := map[int64]models.Folder{}
	previous := map[int64]int{}
	for pos, id := range orderedIDs {
		f := s.findFolder(id)
		if f == nil || f.OrderIndex == pos {
			continue
		}
		if _, seen := previous[id]; !seen {
			previous[id] = f.OrderIndex
		}
		f.OrderIndex = pos
		updated[id] = cloneFolder(*f)
	}
	if len(updated) == 0 {
		return nil
	}

	if err := s.saveFolders(); err != nil {
		for id, pos := range previous {
			s.findFolder(id).OrderIndex = pos
		}
		return fmt.Errorf("persist folders: %w", err)
	}
	if _, err := s.rewriteEmbedded(replaceFolders(updated)); err != nil {
		return fmt.Errorf("propagate folder order: %w", err)
	}

	s.record(ctx, auditlog.Record{
		Action:      models.ActionFolderReorder,
		Description: fmt.Sprintf("Reordered %d folder(s)", len(updated)),
		Details:     map[string]any{"order": orderedIDs},
	})
	s.emit(Change{Kind: ChangeLibrary})
	return nil
}

// AddMediaToFolder puts media files into a folder and returns how many changed
func (s *Store) AddMediaToFolder(ctx context.Context, folderID int64, mediaIDs ...int64) (int, error) {
	return s.attachFolder(ctx, folderID, mediaIDs, true)
}

// RemoveMediaFromFolder takes media files out of a folder
func (s *Store) RemoveMediaFromFolder(ctx context.Context, folderID int64, mediaIDs ...int64) (int, error) {
	return s.attachFolder(ctx, folderID, mediaIDs, false)
}

func (s *Store) attachFolder(ctx context.Context, folderID int64, mediaIDs []int64, attach bool) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	folder := s.findFolder(folderID)
	if folder == nil {
		return 0, nil
	}
	targets := idSet(mediaIDs)
	var names []string
	changed, err := s.rewriteEmbedded(func(m *models.MediaFile) bool {
		if !targets[m.ID] || attach == hasFolder(m, folderID) {
			return false
		}
		if attach {
			m.Folders = append(m.Folders, cloneFolder(*folder))
		} else {
			kept := m.Folders[:0]
			for _, f := range m.Folders {
				if f.ID != folderID {
					kept = append(kept, f)
				}
			}
			m.Folders = kept
		}
		names = append(names, m.FileName)
		return true
	})
	if err != nil {
		return changed, err
	}
	if changed == 0 {
		return 0, nil
	}

	action, verb := models.ActionFolderAttach, "Added %d file(s) to folder %q"
	if !attach {
		action, verb = models.ActionFolderDetach, "Removed %d file(s) from folder %q"
	}
	s.record(ctx, auditlog.Record{
		Action:      action,
		TargetID:    fmt.Sprint(folderID),
		TargetName:  folder.Name,
		Description: fmt.Sprintf(verb, changed, folder.Name),
		Details:     map[string]any{"media": names},
	})
	s.emit(Change{Kind: ChangeLibrary})
	return changed, nil
}
