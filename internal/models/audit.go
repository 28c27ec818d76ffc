package models

import (
	"time"
)

// AuditAction names a mutating action recorded in the audit log
type AuditAction string

const (
	ActionMediaImport    AuditAction = "media.import"
	ActionMediaUpdate    AuditAction = "media.update"
	ActionMediaTrash     AuditAction = "media.trash"
	ActionMediaRestore   AuditAction = "media.restore"
	ActionMediaDelete    AuditAction = "media.delete"
	ActionMediaParent    AuditAction = "media.parent"
	ActionTagCreate      AuditAction = "tag.create"
	ActionTagRename      AuditAction = "tag.rename"
	ActionTagGroup       AuditAction = "tag.group"
	ActionTagDelete      AuditAction = "tag.delete"
	ActionTagAttach      AuditAction = "tag.attach"
	ActionTagDetach      AuditAction = "tag.detach"
	ActionTagGroupCreate AuditAction = "taggroup.create"
	ActionTagGroupRename AuditAction = "taggroup.rename"
	ActionTagGroupDelete AuditAction = "taggroup.delete"
	ActionFolderCreate   AuditAction = "folder.create"
	ActionFolderRename   AuditAction = "folder.rename"
	ActionFolderMove     AuditAction = "folder.move"
	ActionFolderDelete   AuditAction = "folder.delete"
	ActionFolderAttach   AuditAction = "folder.attach"
	ActionFolderDetach   AuditAction = "folder.detach"
	ActionFolderReorder  AuditAction = "folder.reorder"
	ActionCommentAdd     AuditAction = "comment.add"
	ActionCommentDelete  AuditAction = "comment.delete"
	ActionLibraryMigrate AuditAction = "library.migrate"
	ActionTrashPurge     AuditAction = "trash.purge"
	ActionAuditLogClear  AuditAction = "auditlog.clear"
)

// AuditLogEntry is one record of the append-only audit log
type AuditLogEntry struct {
	ID           string         `json:"id" yaml:"id"`
	Timestamp    time.Time      `json:"timestamp" yaml:"timestamp"`
	Action       AuditAction    `json:"action" yaml:"action"`
	TargetID     string         `json:"targetId" yaml:"targetId"`
	TargetName   string         `json:"targetName" yaml:"targetName"`
	Description  string         `json:"description" yaml:"description"`
	Details      map[string]any `json:"details,omitempty" yaml:"details,omitempty"`
	UserNickname string         `json:"userNickname" yaml:"userNickname"`
}
