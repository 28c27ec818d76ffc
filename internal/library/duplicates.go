package library

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"mediashelf/internal/models"
)

// CheckDuplicates reports which source paths already exist in the library. A match is an
// active media file of the same size, and with strict also the same sanitized name.
// Paths that cannot be read are skipped.
func (s *Store) CheckDuplicates(paths []string, strict bool) []models.DuplicateMatch {
	s.mu.RLock()
	defer s.mu.RUnlock()

	active := s.sortedMedia()
	matches := []models.DuplicateMatch{}
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			continue
		}
		name := filepath.Base(path)
		for _, m := range active {
			if m.IsDeleted || m.FileSize != info.Size() {
				continue
			}
			if strict && !SameFileName(m.FileName, name) {
				continue
			}
			matches = append(matches, models.DuplicateMatch{SourcePath: path, Existing: m.Clone()})
			break
		}
	}
	return matches
}

// FindLibraryDuplicates groups active media by the fields selected in criteria.
// Groups have more than one member, members are ordered by id and groups by their
// first member, so identical calls on an unchanged library return identical results.
func (s *Store) FindLibraryDuplicates(criteria models.DuplicateCriteria) ([][]*models.MediaFile, error) {
	if !criteria.Any() {
		return nil, invalid("select at least one duplicate criterion")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.duplicateGroups(criteria), nil
}

func (s *Store) duplicateGroups(criteria models.DuplicateCriteria) [][]*models.MediaFile {
	buckets := map[string][]*models.MediaFile{}
	for _, m := range s.sortedMedia() {
		if m.IsDeleted {
			continue
		}
		key := duplicateKey(m, criteria)
		buckets[key] = append(buckets[key], m)
	}

	groups := [][]*models.MediaFile{}
	for _, members := range buckets {
		if len(members) < 2 {
			continue
		}
		group := make([]*models.MediaFile, len(members))
		for i, m := range members {
			group[i] = m.Clone()
		}
		groups = append(groups, group)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i][0].ID < groups[j][0].ID })
	return groups
}

func duplicateKey(m *models.MediaFile, c models.DuplicateCriteria) string {
	var parts []string
	if c.Name {
		parts = append(parts, "n:"+strings.ToLower(m.FileName))
	}
	if c.Size {
		parts = append(parts, fmt.Sprintf("s:%d", m.FileSize))
	}
	if c.Duration {
		parts = append(parts, fmt.Sprintf("d:%d", int64(math.Round(m.Duration))))
	}
	if c.Modified {
		parts = append(parts, fmt.Sprintf("m:%d", m.Modified.Unix()))
	}
	return strings.Join(parts, "|")
}

// FindDuplicatesOf returns the other members of the duplicate group containing id.
// Empty criteria default to name and size. A missing media file returns false.
func (s *Store) FindDuplicatesOf(id int64, criteria models.DuplicateCriteria) ([]*models.MediaFile, bool) {
	if !criteria.Any() {
		criteria = models.DuplicateCriteria{Name: true, Size: true}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	target, ok := s.media[id]
	if !ok {
		return nil, false
	}
	key := duplicateKey(target, criteria)
	out := []*models.MediaFile{}
	for _, m := range s.sortedMedia() {
		if m.ID == id || m.IsDeleted {
			continue
		}
		if duplicateKey(m, criteria) == key {
			out = append(out, m.Clone())
		}
	}
	return out, true
}
