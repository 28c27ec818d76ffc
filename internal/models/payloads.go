package models

import (
	"fmt"
	"strings"
)

// MediaUpdate carries the editable fields of a media file. Nil fields are left untouched.
type MediaUpdate struct {
	Title       *string   `json:"title,omitempty"`
	Rating      *int      `json:"rating,omitempty"`
	Description *string   `json:"description,omitempty"`
	Artist      *string   `json:"artist,omitempty"`
	Artists     *[]string `json:"artists,omitempty"`
	URL         *string   `json:"url,omitempty"`
}

// Empty reports whether the update changes nothing
func (u MediaUpdate) Empty() bool {
	return u.Title == nil && u.Rating == nil && u.Description == nil &&
		u.Artist == nil && u.Artists == nil && u.URL == nil
}

// TagUpdate renames a tag and/or moves it between groups.
// ClearGroup removes the group; it wins over GroupID.
type TagUpdate struct {
	Name       *string `json:"name,omitempty"`
	GroupID    *int64  `json:"groupId,omitempty"`
	ClearGroup bool    `json:"clearGroup,omitempty"`
}

// TagGroupUpdate renames or recolors a tag group
type TagGroupUpdate struct {
	Name  *string `json:"name,omitempty"`
	Color *string `json:"color,omitempty"`
}

// FolderUpdate renames, describes or re-parents a folder.
// ClearParent moves the folder to the top level; it wins over ParentID.
type FolderUpdate struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	ParentID    *int64  `json:"parentId,omitempty"`
	ClearParent bool    `json:"clearParent,omitempty"`
}

// CommentInput is a new comment on a media file
type CommentInput struct {
	Text     string  `json:"text"`
	Time     float64 `json:"time"`
	Nickname string  `json:"nickname,omitempty"`
}

// MediaFilter narrows ListMediaFiles
type MediaFilter struct {
	IncludeDeleted bool
	OnlyDeleted    bool
	FolderID       *int64
	TagID          *int64
	FileType       FileType
	Search         string
}

// DuplicateCriteria selects which fields form the duplicate key
type DuplicateCriteria struct {
	Name     bool `json:"name"`
	Size     bool `json:"size"`
	Duration bool `json:"duration"`
	Modified bool `json:"modified"`
}

// Any reports whether at least one field is selected
func (c DuplicateCriteria) Any() bool {
	return c.Name || c.Size || c.Duration || c.Modified
}

// ParseDuplicateCriteria reads a comma list of name, size, duration and modified.
// An empty string selects nothing.
func ParseDuplicateCriteria(raw string) (DuplicateCriteria, error) {
	var c DuplicateCriteria
	for _, field := range strings.Split(raw, ",") {
		switch strings.ToLower(strings.TrimSpace(field)) {
		case "":
		case "name":
			c.Name = true
		case "size":
			c.Size = true
		case "duration":
			c.Duration = true
		case "modified":
			c.Modified = true
		default:
			return c, fmt.Errorf("unknown duplicate criterion %q", strings.TrimSpace(field))
		}
	}
	return c, nil
}

// DuplicateMatch pairs a candidate source path with the library file it duplicates
type DuplicateMatch struct {
	SourcePath string     `json:"sourcePath"`
	Existing   *MediaFile `json:"existing"`
}
