package models

import (
	"time"
)

// FileType is the coarse media kind of a MediaFile
type FileType string

const (
	FileTypeVideo FileType = "video"
	FileTypeAudio FileType = "audio"
)

// MediaFile represents one catalogued video or audio file.
// Tags, Folders and Comments are denormalized copies of the canonical collections.
type MediaFile struct {
	ID            int64      `json:"id" yaml:"id"`
	UniqueID      string     `json:"uniqueId" yaml:"uniqueId"`
	FilePath      string     `json:"filePath" yaml:"filePath"`
	FileName      string     `json:"fileName" yaml:"fileName"`
	Title         string     `json:"title" yaml:"title"`
	FileType      FileType   `json:"fileType" yaml:"fileType"`
	FileSize      int64      `json:"fileSize" yaml:"fileSize"`
	Duration      float64    `json:"duration" yaml:"duration"` // seconds
	Width         int        `json:"width" yaml:"width"`
	Height        int        `json:"height" yaml:"height"`
	Rating        int        `json:"rating" yaml:"rating"`
	Created       time.Time  `json:"created" yaml:"created"`
	Modified      time.Time  `json:"modified" yaml:"modified"`
	CreatedAt     time.Time  `json:"createdAt" yaml:"createdAt"`
	LastPlayedAt  *time.Time `json:"lastPlayedAt,omitempty" yaml:"lastPlayedAt,omitempty"`
	IsDeleted     bool       `json:"isDeleted" yaml:"isDeleted"`
	DeletedAt     *time.Time `json:"deletedAt,omitempty" yaml:"deletedAt,omitempty"`
	Artist        string     `json:"artist" yaml:"artist"`
	Artists       []string   `json:"artists" yaml:"artists"`
	Description   string     `json:"description" yaml:"description"`
	URL           string     `json:"url" yaml:"url"`
	DominantColor string     `json:"dominantColor" yaml:"dominantColor"`
	ThumbnailPath string     `json:"thumbnailPath" yaml:"thumbnailPath"`
	ParentID      *int64     `json:"parentId,omitempty" yaml:"parentId,omitempty"`
	Tags          []Tag      `json:"tags" yaml:"tags"`
	Folders       []Folder   `json:"folders" yaml:"folders"`
	Comments      []Comment  `json:"comments" yaml:"comments"`
}

// Active reports whether the media file is not in the trash
func (m *MediaFile) Active() bool {
	return !m.IsDeleted
}

// Clone returns a deep copy so callers never share slices with the store
func (m *MediaFile) Clone() *MediaFile {
	if m == nil {
		return nil
	}
	c := *m
	c.Artists = append([]string(nil), m.Artists...)
	c.Tags = append([]Tag(nil), m.Tags...)
	c.Folders = append([]Folder(nil), m.Folders...)
	c.Comments = append([]Comment(nil), m.Comments...)
	if m.ParentID != nil {
		p := *m.ParentID
		c.ParentID = &p
	}
	if m.LastPlayedAt != nil {
		t := *m.LastPlayedAt
		c.LastPlayedAt = &t
	}
	if m.DeletedAt != nil {
		t := *m.DeletedAt
		c.DeletedAt = &t
	}
	return &c
}

// Tag is a label that can be attached to media files
type Tag struct {
	ID      int64  `json:"id" yaml:"id"`
	Name    string `json:"name" yaml:"name"`
	GroupID *int64 `json:"groupId,omitempty" yaml:"groupId,omitempty"`
}

// TagGroup groups tags for display
type TagGroup struct {
	ID    int64  `json:"id" yaml:"id"`
	Name  string `json:"name" yaml:"name"`
	Color string `json:"color,omitempty" yaml:"color,omitempty"`
}

// Folder is a user-defined collection, nested at most through ParentID
type Folder struct {
	ID          int64  `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	ParentID    *int64 `json:"parentId,omitempty" yaml:"parentId,omitempty"`
	OrderIndex  int    `json:"orderIndex" yaml:"orderIndex"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// Comment is a timestamped note on a media file
type Comment struct {
	ID        string    `json:"id" yaml:"id"`
	MediaID   int64     `json:"mediaId" yaml:"mediaId"`
	Text      string    `json:"text" yaml:"text"`
	Time      float64   `json:"time" yaml:"time"` // playback offset in seconds
	Nickname  string    `json:"nickname" yaml:"nickname"`
	CreatedAt time.Time `json:"createdAt" yaml:"createdAt"`
}

// MediaTag is the canonical join record between media and tags
type MediaTag struct {
	MediaID int64 `json:"mediaId" yaml:"mediaId"`
	TagID   int64 `json:"tagId" yaml:"tagId"`
}

// MediaFolder is the canonical join record between media and folders
type MediaFolder struct {
	MediaID  int64 `json:"mediaId" yaml:"mediaId"`
	FolderID int64 `json:"folderId" yaml:"folderId"`
}

// MediaRef is the shallow projection used for parent/children links
type MediaRef struct {
	ID            int64  `json:"id"`
	Title         string `json:"title"`
	FileName      string `json:"fileName"`
	ThumbnailPath string `json:"thumbnailPath"`
}

// MediaDetails is a media file resolved against the canonical collections
type MediaDetails struct {
	*MediaFile
	Tags     []Tag      `json:"tags"`
	Folders  []Folder   `json:"folders"`
	Comments []Comment  `json:"comments"`
	Parent   *MediaRef  `json:"parent,omitempty"`
	Children []MediaRef `json:"children"`
}

// Ref returns the shallow projection of a media file
func (m *MediaFile) Ref() MediaRef {
	return MediaRef{
		ID:            m.ID,
		Title:         m.Title,
		FileName:      m.FileName,
		ThumbnailPath: m.ThumbnailPath,
	}
}
