package library

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"mediashelf/internal/auditlog"
	"mediashelf/internal/models"
)

// ListTags returns every tag ordered by name
func (s *Store) ListTags() []models.Tag {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Tag, 0, len(s.tags))
	for _, t := range s.tags {
		out = append(out, cloneTag(t))
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out
}

func cloneTag(t models.Tag) models.Tag {
	if t.GroupID != nil {
		g := *t.GroupID
		t.GroupID = &g
	}
	return t
}

func (s *Store) findTag(id int64) *models.Tag {
	for i := range s.tags {
		if s.tags[i].ID == id {
			return &s.tags[i]
		}
	}
	return nil
}

func (s *Store) findTagByName(name string) *models.Tag {
	for i := range s.tags {
		if strings.EqualFold(s.tags[i].Name, name) {
			return &s.tags[i]
		}
	}
	return nil
}

// CreateTag adds a tag. A tag with the same name (case-insensitive) is returned as is.
func (s *Store) CreateTag(ctx context.Context, name string, groupID *int64) (*models.Tag, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, invalid("tag name cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing := s.findTagByName(name); existing != nil {
		t := cloneTag(*existing)
		return &t, nil
	}
	if groupID != nil && s.findTagGroup(*groupID) == nil {
		return nil, invalid("tag group %d does not exist", *groupID)
	}

	id, err := randomID(func(id int64) bool { return s.findTag(id) != nil })
	if err != nil {
		return nil, err
	}
	tag := models.Tag{ID: id, Name: name}
	if groupID != nil {
		g := *groupID
		tag.GroupID = &g
	}

	s.tags = append(s.tags, tag)
	if err := s.saveTags(); err != nil {
		s.tags = s.tags[:len(s.tags)-1]
		return nil, fmt.Errorf("persist tags: %w", err)
	}

	s.record(ctx, auditlog.Record{
		Action:      models.ActionTagCreate,
		TargetID:    fmt.Sprint(id),
		TargetName:  name,
		Description: fmt.Sprintf("Created tag %q", name),
	})
	s.emit(Change{Kind: ChangeLibrary})
	out := cloneTag(tag)
	return &out, nil
}

// UpdateTag renames a tag and/or changes its group, propagating to every media file
// that embeds it. A missing tag returns nil, nil.
func (s *Store) UpdateTag(ctx context.Context, id int64, upd models.TagUpdate) (*models.Tag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tag := s.findTag(id)
	if tag == nil {
		return nil, nil
	}

	next := cloneTag(*tag)
	renamed, regrouped := false, false
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return nil, invalid("tag name cannot be empty")
		}
		if other := s.findTagByName(name); other != nil && other.ID != id {
			return nil, invalid("tag %q already exists", name)
		}
		renamed = name != next.Name
		next.Name = name
	}
	switch {
	case upd.ClearGroup:
		regrouped = next.GroupID != nil
		next.GroupID = nil
	case upd.GroupID != nil:
		if s.findTagGroup(*upd.GroupID) == nil {
			return nil, invalid("tag group %d does not exist", *upd.GroupID)
		}
		regrouped = next.GroupID == nil || *next.GroupID != *upd.GroupID
		g := *upd.GroupID
		next.GroupID = &g
	}
	if !renamed && !regrouped {
		out := cloneTag(next)
		return &out, nil
	}

	prev := *tag
	oldName := tag.Name
	*tag = next
	if err := s.saveTags(); err != nil {
		*tag = prev
		return nil, fmt.Errorf("persist tags: %w", err)
	}
	if _, err := s.rewriteEmbedded(replaceTag(next)); err != nil {
		return nil, fmt.Errorf("propagate tag %d: %w", id, err)
	}

	rec := auditlog.Record{
		Action:      models.ActionTagGroup,
		TargetID:    fmt.Sprint(id),
		TargetName:  next.Name,
		Description: fmt.Sprintf("Changed group of tag %q", next.Name),
	}
	if renamed {
		rec.Action = models.ActionTagRename
		rec.Description = fmt.Sprintf("Renamed tag %q to %q", oldName, next.Name)
		rec.Details = map[string]any{"oldName": oldName}
	}
	s.record(ctx, rec)
	s.emit(Change{Kind: ChangeLibrary})
	out := cloneTag(next)
	return &out, nil
}

func replaceTag(tag models.Tag) func(m *models.MediaFile) bool {
	return func(m *models.MediaFile) bool {
		changed := false
		for i := range m.Tags {
			if m.Tags[i].ID == tag.ID {
				m.Tags[i] = cloneTag(tag)
				changed = true
			}
		}
		return changed
	}
}

func dropTag(tagID int64) func(m *models.MediaFile) bool {
	return func(m *models.MediaFile) bool {
		kept := m.Tags[:0]
		for _, t := range m.Tags {
			if t.ID != tagID {
				kept = append(kept, t)
			}
		}
		changed := len(kept) != len(m.Tags)
		m.Tags = kept
		return changed
	}
}

// DeleteTag removes a tag and detaches it from every media file
func (s *Store) DeleteTag(ctx context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tag := s.findTag(id)
	if tag == nil {
		return false, nil
	}
	name := tag.Name

	kept := make([]models.Tag, 0, len(s.tags))
	for _, t := range s.tags {
		if t.ID != id {
			kept = append(kept, t)
		}
	}
	s.tags = kept
	if err := s.saveTags(); err != nil {
		return false, fmt.Errorf("persist tags: %w", err)
	}
	detached, err := s.rewriteEmbedded(dropTag(id))
	if err != nil {
		return false, fmt.Errorf("detach tag %d: %w", id, err)
	}

	s.record(ctx, auditlog.Record{
		Action:      models.ActionTagDelete,
		TargetID:    fmt.Sprint(id),
		TargetName:  name,
		Description: fmt.Sprintf("Deleted tag %q", name),
		Details:     map[string]any{"detachedFrom": detached},
	})
	s.emit(Change{Kind: ChangeLibrary})
	return true, nil
}

// AddTagToMedia attaches a tag to the given media files and returns how many changed
func (s *Store) AddTagToMedia(ctx context.Context, tagID int64, mediaIDs ...int64) (int, error) {
	return s.attachTag(ctx, tagID, mediaIDs, true)
}

// RemoveTagFromMedia detaches a tag from the given media files
func (s *Store) RemoveTagFromMedia(ctx context.Context, tagID int64, mediaIDs ...int64) (int, error) {
	return s.attachTag(ctx, tagID, mediaIDs, false)
}

func (s *Store) attachTag(ctx context.Context, tagID int64, mediaIDs []int64, attach bool) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tag := s.findTag(tagID)
	if tag == nil {
		return 0, nil
	}
	targets := idSet(mediaIDs)
	var names []string
	changed, err := s.rewriteEmbedded(func(m *models.MediaFile) bool {
		if !targets[m.ID] {
			return false
		}
		if attach == hasTag(m, tagID) {
			return false
		}
		if attach {
			m.Tags = append(m.Tags, cloneTag(*tag))
		} else {
			dropTag(tagID)(m)
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

	action, verb := models.ActionTagAttach, "Added tag %q to %d file(s)"
	if !attach {
		action, verb = models.ActionTagDetach, "Removed tag %q from %d file(s)"
	}
	s.record(ctx, auditlog.Record{
		Action:      action,
		TargetID:    fmt.Sprint(tagID),
		TargetName:  tag.Name,
		Description: fmt.Sprintf(verb, tag.Name, changed),
		Details:     map[string]any{"media": names},
	})
	s.emit(Change{Kind: ChangeLibrary})
	return changed, nil
}

func idSet(ids []int64) map[int64]bool {
	set := make(map[int64]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

// ListTagGroups returns every tag group ordered by name
func (s *Store) ListTagGroups() []models.TagGroup {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := append([]models.TagGroup{}, s.tagGroups...)
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out
}

func (s *Store) findTagGroup(id int64) *models.TagGroup {
	for i := range s.tagGroups {
		if s.tagGroups[i].ID == id {
			return &s.tagGroups[i]
		}
	}
	return nil
}

// CreateTagGroup adds a tag group. An existing group with the same name is returned.
func (s *Store) CreateTagGroup(ctx context.Context, name, color string) (*models.TagGroup, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, invalid("tag group name cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, g := range s.tagGroups {
		if strings.EqualFold(g.Name, name) {
			out := g
			return &out, nil
		}
	}

	id, err := randomID(func(id int64) bool { return s.findTagGroup(id) != nil })
	if err != nil {
		return nil, err
	}
	group := models.TagGroup{ID: id, Name: name, Color: color}
	s.tagGroups = append(s.tagGroups, group)
	if err := s.saveTagGroups(); err != nil {
		s.tagGroups = s.tagGroups[:len(s.tagGroups)-1]
		return nil, fmt.Errorf("persist tag groups: %w", err)
	}

	s.record(ctx, auditlog.Record{
		Action:      models.ActionTagGroupCreate,
		TargetID:    fmt.Sprint(id),
		TargetName:  name,
		Description: fmt.Sprintf("Created tag group %q", name),
	})
	s.emit(Change{Kind: ChangeLibrary})
	return &group, nil
}

// UpdateTagGroup renames or recolors a tag group. A missing group returns nil, nil.
func (s *Store) UpdateTagGroup(ctx context.Context, id int64, upd models.TagGroupUpdate) (*models.TagGroup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	group := s.findTagGroup(id)
	if group == nil {
		return nil, nil
	}
	next := *group
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return nil, invalid("tag group name cannot be empty")
		}
		next.Name = name
	}
	if upd.Color != nil {
		next.Color = *upd.Color
	}
	if next == *group {
		return &next, nil
	}

	prev := *group
	oldName := group.Name
	*group = next
	if err := s.saveTagGroups(); err != nil {
		*group = prev
		return nil, fmt.Errorf("persist tag groups: %w", err)
	}

	s.record(ctx, auditlog.Record{
		Action:      models.ActionTagGroupRename,
		TargetID:    fmt.Sprint(id),
		TargetName:  next.Name,
		Description: fmt.Sprintf("Updated tag group %q", oldName),
		Details:     map[string]any{"oldName": oldName, "color": next.Color},
	})
	s.emit(Change{Kind: ChangeLibrary})
	return &next, nil
}

// DeleteTagGroup removes a group; its tags become ungrouped everywhere
func (s *Store) DeleteTagGroup(ctx context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	group := s.findTagGroup(id)
	if group == nil {
		return false, nil
	}
	name := group.Name

	kept := make([]models.TagGroup, 0, len(s.tagGroups))
	for _, g := range s.tagGroups {
		if g.ID != id {
			kept = append(kept, g)
		}
	}
	s.tagGroups = kept
	if err := s.saveTagGroups(); err != nil {
		return false, fmt.Errorf("persist tag groups: %w", err)
	}

	ungrouped := map[int64]models.Tag{}
	for i := range s.tags {
		if s.tags[i].GroupID != nil && *s.tags[i].GroupID == id {
			s.tags[i].GroupID = nil
			ungrouped[s.tags[i].ID] = s.tags[i]
		}
	}
	if len(ungrouped) > 0 {
		if err := s.saveTags(); err != nil {
			return false, fmt.Errorf("persist tags: %w", err)
		}
		_, err := s.rewriteEmbedded(func(m *models.MediaFile) bool {
			changed := false
			for i := range m.Tags {
				if t, ok := ungrouped[m.Tags[i].ID]; ok {
					m.Tags[i] = t
					changed = true
				}
			}
			return changed
		})
		if err != nil {
			return false, fmt.Errorf("propagate tag group %d: %w", id, err)
		}
	}

	s.record(ctx, auditlog.Record{
		Action:      models.ActionTagGroupDelete,
		TargetID:    fmt.Sprint(id),
		TargetName:  name,
		Description: fmt.Sprintf("Deleted tag group %q", name),
		Details:     map[string]any{"ungroupedTags": len(ungrouped)},
	})
	s.emit(Change{Kind: ChangeLibrary})
	return true, nil
}
