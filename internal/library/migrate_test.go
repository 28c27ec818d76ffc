package library

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediashelf/internal/models"
	"mediashelf/internal/storage"
)

const legacyJSON = `{
  "mediaFiles": [
    {"id": 1, "uniqueId": "abc", "fileName": "one.mp4", "fileType": "video", "fileSize": 10},
    {"id": 4, "fileName": "two.mp3", "fileType": "audio", "fileSize": 20}
  ],
  "tags": [{"id": 11, "name": "fun"}, {"id": 12, "name": "work", "groupId": 21}],
  "tagGroups": [{"id": 21, "name": "Context"}],
  "genres": [{"id": 31, "name": "Rock", "orderIndex": 0}],
  "mediaTags": [{"mediaId": 1, "tagId": 11}, {"mediaId": 4, "tagId": 12}, {"mediaId": 4, "tagId": 99}],
  "mediaGenres": [{"mediaId": 4, "genreId": 31}],
  "comments": [{"id": "c1", "mediaId": 1, "text": "nice", "time": 2.5, "nickname": "old"}],
  "nextMediaId": 2
}`

func TestMigration_SplitsLegacyDocument(t *testing.T) {
	layout := storage.NewLayout(t.TempDir(), storage.JSONCodec{})
	require.NoError(t, os.WriteFile(layout.LegacyDocument(), []byte(legacyJSON), 0o644))
	require.True(t, NeedsMigration(layout))

	s := NewStore(Options{Layout: layout})
	require.NoError(t, s.Load(context.Background()))

	assert.False(t, storage.Exists(layout.LegacyDocument()))
	assert.True(t, storage.Exists(layout.MigratedDocument()))
	assert.True(t, storage.Exists(layout.TagsDocument()))
	assert.True(t, storage.Exists(layout.MediaDocument("abc")))
	assert.False(t, NeedsMigration(layout))

	one, ok := s.GetMediaFile(1)
	require.True(t, ok)
	assert.Equal(t, []int64{11}, tagIDs(one.Tags))
	require.Len(t, one.Comments, 1)
	assert.Equal(t, "nice", one.Comments[0].Text)

	two, ok := s.GetMediaFile(4)
	require.True(t, ok)
	assert.Equal(t, legacyUniqueID(4), two.UniqueID)
	assert.True(t, storage.Exists(layout.MediaDocument(two.UniqueID)))
	assert.Equal(t, []int64{12}, tagIDs(two.Tags))
	require.Len(t, two.Folders, 1)
	assert.Equal(t, "Rock", two.Folders[0].Name)

	// counter is max(id)+1, not the stale legacy value
	assert.Equal(t, int64(5), s.ReserveMediaID())

	entries := s.AuditLogs(0)
	require.Len(t, entries, 1)
	assert.Equal(t, models.ActionLibraryMigrate, entries[0].Action)

	// a second load does not migrate again
	again := NewStore(Options{Layout: layout})
	require.NoError(t, again.Load(context.Background()))
	assert.Len(t, again.AuditLogs(0), 1)
	assert.Len(t, again.ListMediaFiles(models.MediaFilter{}), 2)
}

func TestMigration_UniqueIDIsStable(t *testing.T) {
	ids := make([]string, 2)
	for i := range ids {
		layout := storage.NewLayout(t.TempDir(), storage.JSONCodec{})
		require.NoError(t, os.WriteFile(layout.LegacyDocument(), []byte(legacyJSON), 0o644))
		s := NewStore(Options{Layout: layout})
		require.NoError(t, s.Load(context.Background()))
		m, ok := s.GetMediaFile(4)
		require.True(t, ok)
		ids[i] = m.UniqueID
	}
	assert.Equal(t, ids[0], ids[1])
	assert.Len(t, ids[0], 32)
	assert.NotEqual(t, legacyUniqueID(4), legacyUniqueID(5))
}

func TestMigration_FailureAbortsLoad(t *testing.T) {
	layout := storage.NewLayout(t.TempDir(), storage.JSONCodec{})
	require.NoError(t, os.WriteFile(layout.LegacyDocument(), []byte("{broken"), 0o644))

	s := NewStore(Options{Layout: layout})
	assert.Error(t, s.Load(context.Background()))
	assert.True(t, storage.Exists(layout.LegacyDocument()))
}
