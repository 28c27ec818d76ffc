package storage

import (
	"path/filepath"
)

const (
	mediaDirName       = "images"
	uploadDirName      = ".uploads"
	lockFileName       = ".mediashelf.lock"
	mediaDocumentName  = "metadata"
	tagsDocumentName   = "tags"
	groupsDocumentName = "tag_folders"
	folderDocumentName = "folders"
	auditDocumentName  = "audit_logs"
	legacyDocumentName = "library"
	migratedSuffix     = ".migrated"
)

// Layout resolves every on-disk path of one library root
type Layout struct {
	Root  string
	Codec Codec
}

// NewLayout creates a layout for root using codec
func NewLayout(root string, codec Codec) Layout {
	if codec == nil {
		codec = JSONCodec{}
	}
	return Layout{Root: root, Codec: codec}
}

func (l Layout) doc(name string) string {
	return filepath.Join(l.Root, name+"."+l.Codec.Ext())
}

// MediaDir is the directory holding one subdirectory per media file
func (l Layout) MediaDir() string {
	return filepath.Join(l.Root, mediaDirName)
}

// MediaItemDir is the storage directory of one media file
func (l Layout) MediaItemDir(uniqueID string) string {
	return filepath.Join(l.MediaDir(), uniqueID)
}

// MediaDocument is the per-media metadata document
func (l Layout) MediaDocument(uniqueID string) string {
	return filepath.Join(l.MediaItemDir(uniqueID), mediaDocumentName+"."+l.Codec.Ext())
}

// TagsDocument holds the tag collection
func (l Layout) TagsDocument() string { return l.doc(tagsDocumentName) }

// TagGroupsDocument holds the tag group collection
func (l Layout) TagGroupsDocument() string { return l.doc(groupsDocumentName) }

// FoldersDocument holds the folder collection
func (l Layout) FoldersDocument() string { return l.doc(folderDocumentName) }

// AuditLogDocument holds the audit log
func (l Layout) AuditLogDocument() string { return l.doc(auditDocumentName) }

// LegacyDocument is the pre-dispersed monolithic library document
func (l Layout) LegacyDocument() string { return l.doc(legacyDocumentName) }

// MigratedDocument is the name the legacy document is renamed to after migration
func (l Layout) MigratedDocument() string { return l.LegacyDocument() + migratedSuffix }

// UploadDir is the staging area for remote uploads
func (l Layout) UploadDir() string {
	return filepath.Join(l.Root, uploadDirName)
}

// LockFile guards the root against a second process
func (l Layout) LockFile() string {
	return filepath.Join(l.Root, lockFileName)
}
