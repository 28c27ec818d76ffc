package main

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediashelf/internal/models"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--log-level", "error"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestParsePermissions(t *testing.T) {
	perms, err := parsePermissions([]string{"edit,download", "READ_ONLY", " "})
	require.NoError(t, err)
	assert.ElementsMatch(t, models.PermissionSet{models.PermissionEdit, models.PermissionDownload, models.PermissionReadOnly}, perms)

	_, err = parsePermissions([]string{"ADMIN"})
	assert.Error(t, err)
	_, err = parsePermissions(nil)
	assert.Error(t, err)
}

func TestFormatters(t *testing.T) {
	assert.Equal(t, "512 B", formatBytes(512))
	assert.Equal(t, "1.5 KiB", formatBytes(1536))
	assert.Equal(t, "2.0 MiB", formatBytes(2*1024*1024))

	assert.Equal(t, "-", formatDuration(0))
	assert.Equal(t, "1:05", formatDuration(65))
	assert.Equal(t, "1:01:01", formatDuration(3661))
	assert.Equal(t, "never", formatTime(nil))
}

func TestRenderTable(t *testing.T) {
	out := renderTable([]string{"ID", "Name"}, [][]string{{"1", "clip.mp4"}, {"2"}}, []columnAlignment{alignRight})
	assert.Contains(t, out, "clip.mp4")
	assert.Contains(t, out, "ID")
	assert.Equal(t, "", renderTable(nil, nil, nil))
}

func TestExpandImportPaths(t *testing.T) {
	dir := t.TempDir()
	nested := filepath.Join(dir, "nested")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	for _, name := range []string{"b.mp4", "notes.txt", "nested/a.mp3"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}
	loose := filepath.Join(t.TempDir(), "readme.txt")
	require.NoError(t, os.WriteFile(loose, []byte("x"), 0o644))

	paths, err := expandImportPaths([]string{dir, loose})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "b.mp4"), filepath.Join(nested, "a.mp3"), loose}, paths)

	_, err = expandImportPaths([]string{filepath.Join(dir, "missing")})
	assert.Error(t, err)
}

func TestStatsCommand(t *testing.T) {
	lib := t.TempDir()
	out, err := runCLI(t, "stats", "--library", lib)
	require.NoError(t, err)
	assert.Contains(t, out, "Library: ")
	assert.Contains(t, strings.ToUpper(out), "TRASHED")
}

func TestLibraryCommandsNeedLibrary(t *testing.T) {
	t.Setenv("MEDIASHELF_LIBRARY_PATH", "")
	_, err := runCLI(t, "stats")
	assert.ErrorContains(t, err, "no library configured")
}

func TestMigrateCheck(t *testing.T) {
	out, err := runCLI(t, "migrate", "--check", "--library", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "up to date")
}

func TestUsersLifecycle(t *testing.T) {
	t.Setenv("MEDIASHELF_SHARING_DATA_DIR", t.TempDir())

	out, err := runCLI(t, "users", "add", "alice", "--perm", "EDIT,DOWNLOAD")
	require.NoError(t, err)
	m := regexp.MustCompile(`Created user alice \(([^)]+)\)`).FindStringSubmatch(out)
	require.Len(t, m, 2, out)
	id := m[1]
	assert.Contains(t, out, "Authorization: Bearer ")

	out, err = runCLI(t, "users", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "alice")
	assert.Contains(t, out, "DOWNLOAD,EDIT")

	out, err = runCLI(t, "token", id)
	require.NoError(t, err)
	assert.Contains(t, out, "X-User-Token:")
	assert.NotContains(t, out, "warning")

	_, err = runCLI(t, "users", "revoke", id)
	require.NoError(t, err)
	out, err = runCLI(t, "token", id)
	require.NoError(t, err)
	assert.Contains(t, out, "user is revoked")

	out, err = runCLI(t, "users", "perms", id, "--perm", "FULL")
	require.NoError(t, err)
	assert.Contains(t, out, "FULL")

	_, err = runCLI(t, "users", "remove", id)
	require.NoError(t, err)
	_, err = runCLI(t, "token", id)
	assert.ErrorContains(t, err, "not found")
}
