// Package auditlog keeps the append-only, size-capped record of mutating library actions.
package auditlog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"mediashelf/internal/models"
	"mediashelf/internal/storage"
)

// DefaultMaxEntries is the ring size used when none is configured
const DefaultMaxEntries = 1000

type actorKey struct{}

// WithActor attaches the nickname recorded for mutations made under ctx
func WithActor(ctx context.Context, nickname string) context.Context {
	return context.WithValue(ctx, actorKey{}, nickname)
}

// ActorFrom returns the nickname attached by WithActor
func ActorFrom(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	nickname, ok := ctx.Value(actorKey{}).(string)
	return nickname, ok && nickname != ""
}

// Record is a pending audit entry
type Record struct {
	Action      models.AuditAction
	TargetID    string
	TargetName  string
	Description string
	Details     map[string]any
}

// Log is the audit log of one library. Entries beyond max are dropped oldest first.
type Log struct {
	mu              sync.Mutex
	codec           storage.Codec
	path            string
	max             int
	defaultNickname string
	entries         []models.AuditLogEntry
	now             func() time.Time
}

// New creates an empty log persisted at path
func New(codec storage.Codec, path string, max int, defaultNickname string) *Log {
	if max <= 0 {
		max = DefaultMaxEntries
	}
	return &Log{
		codec:           codec,
		path:            path,
		max:             max,
		defaultNickname: defaultNickname,
		now:             time.Now,
	}
}

// Load reads the persisted entries. A missing document is an empty log.
func (l *Log) Load() error {
	var entries []models.AuditLogEntry
	if err := storage.ReadDocument(l.codec, l.path, &entries); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = trim(entries, l.max)
	return nil
}

// Append records one action, persisting the whole collection
func (l *Log) Append(ctx context.Context, rec Record) (models.AuditLogEntry, error) {
	nickname, ok := ActorFrom(ctx)
	if !ok {
		nickname = l.defaultNickname
	}

	entry := models.AuditLogEntry{
		ID:           uuid.NewString(),
		Timestamp:    l.now().UTC(),
		Action:       rec.Action,
		TargetID:     rec.TargetID,
		TargetName:   rec.TargetName,
		Description:  rec.Description,
		Details:      rec.Details,
		UserNickname: nickname,
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	next := trim(append(l.entries, entry), l.max)
	if err := storage.WriteDocument(l.codec, l.path, next); err != nil {
		return models.AuditLogEntry{}, fmt.Errorf("persist audit log: %w", err)
	}
	l.entries = next
	return entry, nil
}

// Entries returns up to limit entries, newest first. limit <= 0 returns all.
func (l *Log) Entries(limit int) []models.AuditLogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := len(l.entries)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]models.AuditLogEntry, 0, limit)
	for i := n - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, l.entries[i])
	}
	return out
}

// DefaultNickname is recorded when the context carries no actor
func (l *Log) DefaultNickname() string {
	return l.defaultNickname
}

// Len returns the number of retained entries
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Clear drops every entry and records the clearing itself
func (l *Log) Clear(ctx context.Context) error {
	l.mu.Lock()
	if err := storage.WriteDocument(l.codec, l.path, []models.AuditLogEntry{}); err != nil {
		l.mu.Unlock()
		return fmt.Errorf("persist audit log: %w", err)
	}
	l.entries = nil
	l.mu.Unlock()

	_, err := l.Append(ctx, Record{
		Action:      models.ActionAuditLogClear,
		Description: "Cleared the audit log",
	})
	return err
}

func trim(entries []models.AuditLogEntry, max int) []models.AuditLogEntry {
	if len(entries) <= max {
		return entries
	}
	out := make([]models.AuditLogEntry, max)
	copy(out, entries[len(entries)-max:])
	return out
}
