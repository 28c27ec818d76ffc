package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Permission is a scope granted to a shared user
type Permission string

const (
	PermissionReadOnly Permission = "READ_ONLY"
	PermissionEdit     Permission = "EDIT"
	PermissionUpload   Permission = "UPLOAD"
	PermissionDownload Permission = "DOWNLOAD"
	PermissionFull     Permission = "FULL"
)

// ParsePermission validates a scope name
func ParsePermission(s string) (Permission, error) {
	p := Permission(strings.ToUpper(strings.TrimSpace(s)))
	switch p {
	case PermissionReadOnly, PermissionEdit, PermissionUpload, PermissionDownload, PermissionFull:
		return p, nil
	}
	return "", fmt.Errorf("unknown permission %q", s)
}

// PermissionSet is a set of scopes stored as a JSON array
type PermissionSet []Permission

// Has reports whether the set holds p
func (s PermissionSet) Has(p Permission) bool {
	for _, have := range s {
		if have == p {
			return true
		}
	}
	return false
}

// Satisfies reports whether the set grants any of required. FULL grants everything.
func (s PermissionSet) Satisfies(required ...Permission) bool {
	if s.Has(PermissionFull) {
		return true
	}
	for _, r := range required {
		if s.Has(r) {
			return true
		}
	}
	return false
}

// Normalized returns the set deduplicated and sorted
func (s PermissionSet) Normalized() PermissionSet {
	seen := make(map[Permission]struct{}, len(s))
	out := make(PermissionSet, 0, len(s))
	for _, p := range s {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Strings returns the scopes as plain strings
func (s PermissionSet) Strings() []string {
	out := make([]string, len(s))
	for i, p := range s {
		out[i] = string(p)
	}
	return out
}

// Value implements driver.Valuer
func (s PermissionSet) Value() (driver.Value, error) {
	b, err := json.Marshal(s.Normalized())
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner
func (s *PermissionSet) Scan(value any) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		*s = nil
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("cannot scan %T into PermissionSet", value)
	}
	return json.Unmarshal(raw, s)
}

// SharedUser is a remote user allowed to reach the shared library
type SharedUser struct {
	ID           string        `gorm:"primaryKey;size:64" json:"id"`
	UserToken    string        `gorm:"uniqueIndex;not null" json:"-"`
	AccessToken  string        `gorm:"not null" json:"-"`
	Nickname     string        `gorm:"size:255" json:"nickname"`
	AvatarPath   string        `json:"-"`
	Permissions  PermissionSet `gorm:"type:text" json:"permissions"`
	IsActive     bool          `gorm:"default:true" json:"isActive"`
	LastAccessAt *time.Time    `json:"lastAccessAt,omitempty"`
	CreatedAt    time.Time     `json:"createdAt"`
}

func (SharedUser) TableName() string {
	return "shared_users"
}
