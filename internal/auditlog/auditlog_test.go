package auditlog

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediashelf/internal/models"
	"mediashelf/internal/storage"
)

func TestLog_AppendCapsAndPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit_logs.json")
	log := New(storage.JSONCodec{}, path, 3, "host")

	for i := 0; i < 5; i++ {
		_, err := log.Append(context.Background(), Record{
			Action:      models.ActionTagCreate,
			TargetID:    fmt.Sprint(i),
			Description: fmt.Sprintf("Created tag %d", i),
		})
		require.NoError(t, err)
	}

	assert.Equal(t, 3, log.Len())
	entries := log.Entries(0)
	assert.Equal(t, "4", entries[0].TargetID)
	assert.Equal(t, "2", entries[2].TargetID)

	reloaded := New(storage.JSONCodec{}, path, 3, "host")
	require.NoError(t, reloaded.Load())
	assert.Equal(t, entries, reloaded.Entries(0))
}

func TestLog_ActorFromContext(t *testing.T) {
	log := New(storage.JSONCodec{}, filepath.Join(t.TempDir(), "audit_logs.json"), 10, "host")

	entry, err := log.Append(context.Background(), Record{Action: models.ActionMediaUpdate})
	require.NoError(t, err)
	assert.Equal(t, "host", entry.UserNickname)

	entry, err = log.Append(WithActor(context.Background(), "alice"), Record{Action: models.ActionMediaUpdate})
	require.NoError(t, err)
	assert.Equal(t, "alice", entry.UserNickname)
	assert.NotEqual(t, "", entry.ID)
}

func TestLog_LoadMissingDocument(t *testing.T) {
	log := New(storage.YAMLCodec{}, filepath.Join(t.TempDir(), "audit_logs.yaml"), 10, "host")
	assert.NoError(t, log.Load())
	assert.Equal(t, 0, log.Len())
}

func TestLog_Clear(t *testing.T) {
	log := New(storage.JSONCodec{}, filepath.Join(t.TempDir(), "audit_logs.json"), 10, "host")
	for i := 0; i < 4; i++ {
		_, err := log.Append(context.Background(), Record{Action: models.ActionTagCreate})
		require.NoError(t, err)
	}

	require.NoError(t, log.Clear(context.Background()))
	entries := log.Entries(0)
	require.Len(t, entries, 1)
	assert.Equal(t, models.ActionAuditLogClear, entries[0].Action)
}
