package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type doc struct {
	Name  string   `json:"name" yaml:"name"`
	Count int      `json:"count" yaml:"count"`
	Tags  []string `json:"tags" yaml:"tags"`
}

func TestCodecFor(t *testing.T) {
	for format, ext := range map[string]string{"": "json", "JSON": "json", "yaml": "yaml", " yml ": "yaml"} {
		c, err := CodecFor(format)
		require.NoError(t, err, format)
		assert.Equal(t, ext, c.Ext(), format)
	}
	_, err := CodecFor("toml")
	assert.Error(t, err)
}

func TestDocumentRoundTrip(t *testing.T) {
	for _, codec := range []Codec{JSONCodec{}, YAMLCodec{}} {
		t.Run(codec.Ext(), func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nested", "doc."+codec.Ext())
			in := doc{Name: "été", Count: 3, Tags: []string{"a", "b"}}

			require.NoError(t, WriteDocument(codec, path, in))
			assert.True(t, Exists(path))

			var out doc
			require.NoError(t, ReadDocument(codec, path, &out))
			assert.Equal(t, in, out)
		})
	}
}

func TestReadDocument_Errors(t *testing.T) {
	dir := t.TempDir()

	var out doc
	err := ReadDocument(JSONCodec{}, filepath.Join(dir, "missing.json"), &out)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotExist)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{"), 0o644))
	assert.Error(t, ReadDocument(JSONCodec{}, bad, &out))
}

func TestWriteFileAtomic_ReplacesAndLeavesNoTemp(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tags.json")

	require.NoError(t, WriteFileAtomic(path, []byte("one"), 0o600))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	require.NoError(t, WriteFileAtomic(path, []byte("two"), 0o644))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "two", string(data))

	// the existing file's mode survives the rewrite
	info, err = os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestWriteFileAtomic_CreatesParentDirs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "images", "abc", "metadata.json")
	require.NoError(t, WriteFileAtomic(path, []byte("{}"), 0o644))
	assert.FileExists(t, path)
}

func TestLayout(t *testing.T) {
	l := NewLayout("/lib", nil)
	assert.Equal(t, filepath.Join("/lib", "tags.json"), l.TagsDocument())
	assert.Equal(t, filepath.Join("/lib", "tag_folders.json"), l.TagGroupsDocument())
	assert.Equal(t, filepath.Join("/lib", "folders.json"), l.FoldersDocument())
	assert.Equal(t, filepath.Join("/lib", "audit_logs.json"), l.AuditLogDocument())
	assert.Equal(t, filepath.Join("/lib", "library.json.migrated"), l.MigratedDocument())
	assert.Equal(t, filepath.Join("/lib", "images", "abc", "metadata.json"), l.MediaDocument("abc"))

	y := NewLayout("/lib", YAMLCodec{})
	assert.Equal(t, filepath.Join("/lib", "library.yaml"), y.LegacyDocument())
}

func TestRootLock(t *testing.T) {
	l := NewLayout(filepath.Join(t.TempDir(), "lib"), nil)

	lock, err := AcquireRootLock(l)
	require.NoError(t, err)
	assert.FileExists(t, l.LockFile())

	_, err = AcquireRootLock(l)
	assert.ErrorContains(t, err, "already opened")

	require.NoError(t, lock.Release())
	again, err := AcquireRootLock(l)
	require.NoError(t, err)
	assert.NoError(t, again.Release())

	var none *RootLock
	assert.NoError(t, none.Release())
}
