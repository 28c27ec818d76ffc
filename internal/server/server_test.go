package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediashelf/internal/config"
	"mediashelf/internal/events"
	"mediashelf/internal/importer"
	"mediashelf/internal/metrics"
	"mediashelf/internal/models"
	"mediashelf/internal/registry"
	"mediashelf/internal/sharing"
	shelftest "mediashelf/internal/testutil"
	"mediashelf/internal/tokenauth"
	"mediashelf/internal/utils"
)

type env struct {
	srv     *Server
	app     *fiber.App
	lib     *registry.Library
	users   *sharing.UserService
	hub     *events.Hub
	metrics *metrics.Metrics
	dataDir string
}

func testConfig(dataDir string) *config.AppConfig {
	return &config.AppConfig{
		Server: config.ServerConfig{Host: "127.0.0.1", Port: 0, BodyLimit: 64 << 20},
		Import: config.ImportConfig{MoveTimeout: 10 * time.Second},
		Sharing: config.SharingConfig{
			DataDir:         dataDir,
			RateLimitMax:    1000,
			RateLimitWindow: 15 * time.Minute,
			UploadPerMinute: 30,
		},
	}
}

func newEnv(t *testing.T) *env {
	t.Helper()
	m := metrics.NewMetrics(prometheus.NewRegistry())

	reg, err := registry.New(registry.Options{
		Provider:     &shelftest.FakeProvider{},
		HostNickname: "Host",
		Metrics:      m,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = reg.Close() })
	lib, err := reg.Open(context.Background(), t.TempDir())
	require.NoError(t, err)

	db, err := sharing.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = sharing.Close(db) })
	users := sharing.NewUserService(db, tokenauth.NewIssuer("machine", []byte("secret")))

	dataDir := t.TempDir()
	hub := events.NewHub(m)
	srv, err := New(Options{
		Config:  testConfig(dataDir),
		Library: lib,
		DB:      db,
		Users:   users,
		Hub:     hub,
		Metrics: m,
	})
	require.NoError(t, err)

	return &env{srv: srv, app: srv.App(), lib: lib, users: users, hub: hub, metrics: m, dataDir: dataDir}
}

func (e *env) addUser(t *testing.T, perms ...models.Permission) *models.SharedUser {
	t.Helper()
	u, err := e.users.AddUser(context.Background(), "Remote", models.PermissionSet(perms))
	require.NoError(t, err)
	return u
}

func (e *env) importFile(t *testing.T, name string, size int) *models.MediaFile {
	t.Helper()
	src := shelftest.WriteFile(t, t.TempDir(), name, size)
	out, err := e.lib.Importer.Import(context.Background(), []string{src}, importer.Options{})
	require.NoError(t, err)
	require.Len(t, out, 1)
	return out[0]
}

func (e *env) do(t *testing.T, u *models.SharedUser, method, url string, body any) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, url, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return e.send(t, u, req)
}

func (e *env) send(t *testing.T, u *models.SharedUser, req *http.Request) *http.Response {
	t.Helper()
	if u != nil {
		req.Header.Set("Authorization", "Bearer "+u.AccessToken)
		req.Header.Set("X-User-Token", u.UserToken)
	}
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func errorCode(t *testing.T, resp *http.Response) utils.ErrorCode {
	t.Helper()
	var body utils.ErrorResponse
	decodeBody(t, resp, &body)
	return body.Error.Code
}

type mediaPage struct {
	Data []models.MediaFile `json:"data"`
}

func TestHealthIsPublic(t *testing.T) {
	e := newEnv(t)
	resp := e.do(t, nil, "GET", "/api/health", nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestProtectedRoutesNeedTokens(t *testing.T) {
	e := newEnv(t)
	resp := e.do(t, nil, "GET", "/api/media", nil)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, utils.CodeInvalidToken, errorCode(t, resp))
}

func TestPermissionGate(t *testing.T) {
	e := newEnv(t)
	m := e.importFile(t, "clip.mp4", 64)
	url := fmt.Sprintf("/api/media/%d", m.ID)

	reader := e.addUser(t, models.PermissionReadOnly)
	resp := e.do(t, reader, "GET", "/api/media", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var page mediaPage
	decodeBody(t, resp, &page)
	assert.Len(t, page.Data, 1)

	resp = e.do(t, reader, "DELETE", url+"?permanent=true", nil)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	assert.Equal(t, utils.CodeInsufficientPermission, errorCode(t, resp))

	editor := e.addUser(t, models.PermissionEdit)
	resp = e.do(t, editor, "DELETE", url+"?permanent=true", nil)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	assert.Equal(t, utils.CodeInsufficientPermission, errorCode(t, resp))

	_, found := e.lib.Store.GetMediaFile(m.ID)
	assert.True(t, found)

	resp = e.do(t, editor, "DELETE", url, nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	trashed, _ := e.lib.Store.GetMediaFile(m.ID)
	assert.True(t, trashed.IsDeleted)

	admin := e.addUser(t, models.PermissionFull)
	resp = e.do(t, admin, "DELETE", url+"?permanent=true", nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	_, found = e.lib.Store.GetMediaFile(m.ID)
	assert.False(t, found)
}

func TestTrashedMediaIsHiddenFromRemoteRoutes(t *testing.T) {
	e := newEnv(t)
	m := e.importFile(t, "clip.mp4", 64)
	editor := e.addUser(t, models.PermissionEdit, models.PermissionDownload)
	url := fmt.Sprintf("/api/media/%d", m.ID)

	resp := e.do(t, editor, "GET", url, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	resp = e.do(t, editor, "DELETE", url, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	hidden := []struct {
		method string
		path   string
		body   any
	}{
		{"GET", url, nil},
		{"PUT", url, fiber.Map{"title": "Renamed"}},
		{"DELETE", url, nil},
		{"POST", url + "/played", nil},
		{"GET", url + "/duplicates", nil},
		{"GET", url + "/comments", nil},
		{"POST", url + "/comments", fiber.Map{"text": "still here?", "time": 1}},
		{"GET", fmt.Sprintf("/api/stream/%d", m.ID), nil},
		{"GET", fmt.Sprintf("/api/download/%d", m.ID), nil},
		{"GET", fmt.Sprintf("/api/thumbnails/%d", m.ID), nil},
	}
	for _, tc := range hidden {
		resp = e.do(t, editor, tc.method, tc.path, tc.body)
		assert.Equal(t, fiber.StatusNotFound, resp.StatusCode, "%s %s", tc.method, tc.path)
		assert.Equal(t, utils.CodeNotFound, errorCode(t, resp), "%s %s", tc.method, tc.path)
	}
	stored, _ := e.lib.Store.GetMediaFile(m.ID)
	assert.Empty(t, stored.Comments)
	assert.Nil(t, stored.LastPlayedAt)

	resp = e.do(t, editor, "POST", "/api/media/restore", fiber.Map{"ids": []int64{m.ID}})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	resp = e.do(t, editor, "GET", url, nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestMediaRoutes(t *testing.T) {
	e := newEnv(t)
	m := e.importFile(t, "clip.mp4", 64)
	editor := e.addUser(t, models.PermissionEdit)
	url := fmt.Sprintf("/api/media/%d", m.ID)

	resp := e.do(t, editor, "PUT", url, fiber.Map{"title": "Renamed", "rating": 4})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var updated models.MediaFile
	decodeBody(t, resp, &updated)
	assert.Equal(t, "Renamed", updated.Title)
	assert.Equal(t, 4, updated.Rating)

	resp = e.do(t, editor, "PUT", url, fiber.Map{"rating": 9})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, utils.CodeInvalidInput, errorCode(t, resp))

	resp = e.do(t, editor, "GET", "/api/media/999999", nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.Equal(t, utils.CodeNotFound, errorCode(t, resp))

	resp = e.do(t, editor, "GET", "/api/media/abc", nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp = e.do(t, editor, "GET", "/api/media?type=image", nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp = e.do(t, editor, "GET", "/api/media?search=renamed", nil)
	var page mediaPage
	decodeBody(t, resp, &page)
	assert.Len(t, page.Data, 1)

	// the audit entry carries the remote nickname
	logs := e.lib.Store.AuditLogs(1)
	require.Len(t, logs, 1)
	assert.Equal(t, models.ActionMediaUpdate, logs[0].Action)
	assert.Equal(t, "Remote", logs[0].UserNickname)
}

func TestDuplicatesRoute(t *testing.T) {
	e := newEnv(t)
	a := e.importFile(t, "clip.mp4", 64)
	b := e.importFile(t, "clip.mp4", 64)
	reader := e.addUser(t, models.PermissionReadOnly)

	resp := e.do(t, reader, "GET", fmt.Sprintf("/api/media/%d/duplicates", a.ID), nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var page mediaPage
	decodeBody(t, resp, &page)
	require.Len(t, page.Data, 1)
	assert.Equal(t, b.ID, page.Data[0].ID)

	resp = e.do(t, reader, "GET", fmt.Sprintf("/api/media/%d/duplicates?criteria=colour", a.ID), nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestTagAndFolderRoutes(t *testing.T) {
	e := newEnv(t)
	m := e.importFile(t, "clip.mp4", 64)
	editor := e.addUser(t, models.PermissionEdit)

	resp := e.do(t, editor, "POST", "/api/tags", fiber.Map{"name": "Favourite"})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	var tag models.Tag
	decodeBody(t, resp, &tag)

	resp = e.do(t, editor, "POST", "/api/tags/media", fiber.Map{"tagId": tag.ID, "mediaIds": []int64{m.ID}})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp = e.do(t, editor, "PUT", fmt.Sprintf("/api/tags/%d", tag.ID), fiber.Map{"name": "Best"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp = e.do(t, editor, "GET", fmt.Sprintf("/api/media?tagId=%d", tag.ID), nil)
	var page mediaPage
	decodeBody(t, resp, &page)
	require.Len(t, page.Data, 1)
	require.Len(t, page.Data[0].Tags, 1)
	assert.Equal(t, "Best", page.Data[0].Tags[0].Name)

	resp = e.do(t, editor, "POST", "/api/tags/media", fiber.Map{"tagId": 424242, "mediaIds": []int64{m.ID}})
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp = e.do(t, editor, "DELETE", "/api/tags/media", fiber.Map{"tagId": tag.ID, "mediaIds": []int64{m.ID}})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	got, _ := e.lib.Store.GetMediaFile(m.ID)
	assert.Empty(t, got.Tags)

	// folder cycle guard
	var parent, child models.Folder
	resp = e.do(t, editor, "POST", "/api/folders", fiber.Map{"name": "Parent"})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	decodeBody(t, resp, &parent)
	resp = e.do(t, editor, "POST", "/api/folders", fiber.Map{"name": "Child", "parentId": parent.ID})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	decodeBody(t, resp, &child)

	resp = e.do(t, editor, "PUT", fmt.Sprintf("/api/folders/%d", parent.ID), fiber.Map{"parentId": child.ID})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, utils.CodeInvalidInput, errorCode(t, resp))

	resp = e.do(t, editor, "POST", "/api/folders/media", fiber.Map{"folderId": child.ID, "mediaIds": []int64{m.ID}})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	resp = e.do(t, editor, "GET", fmt.Sprintf("/api/media?folderId=%d", child.ID), nil)
	decodeBody(t, resp, &page)
	assert.Len(t, page.Data, 1)

	resp = e.do(t, editor, "DELETE", fmt.Sprintf("/api/folders/%d", child.ID), nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	resp = e.do(t, editor, "DELETE", fmt.Sprintf("/api/folders/%d", child.ID), nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	// READ_ONLY cannot mutate tags
	reader := e.addUser(t, models.PermissionReadOnly)
	resp = e.do(t, reader, "POST", "/api/tags", fiber.Map{"name": "Nope"})
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestCommentRoutes(t *testing.T) {
	e := newEnv(t)
	m := e.importFile(t, "clip.mp4", 64)
	reader := e.addUser(t, models.PermissionReadOnly)
	client := e.hub.Register("observer")
	defer e.hub.Unregister(client)

	url := fmt.Sprintf("/api/media/%d/comments", m.ID)
	resp := e.do(t, reader, "POST", url, fiber.Map{"text": "nice shot", "time": 12.5, "nickname": "Spoofed"})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	var comment models.Comment
	decodeBody(t, resp, &comment)
	assert.Equal(t, "Remote", comment.Nickname)

	select {
	case raw := <-client.Messages():
		var ev events.Event
		require.NoError(t, json.Unmarshal(raw, &ev))
		assert.Equal(t, events.TypeCommentAdded, ev.Type)
		assert.Equal(t, m.ID, ev.MediaID)
	case <-time.After(time.Second):
		t.Fatal("no comment-added event")
	}

	resp = e.do(t, reader, "POST", url, fiber.Map{"text": "  "})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp = e.do(t, reader, "DELETE", url+"/"+comment.ID, nil)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	editor := e.addUser(t, models.PermissionEdit)
	resp = e.do(t, editor, "DELETE", url+"/"+comment.ID, nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Empty(t, e.lib.Store.ListComments(m.ID))
}

func TestStreamRanges(t *testing.T) {
	e := newEnv(t)
	m := e.importFile(t, "clip.mp4", 64)
	reader := e.addUser(t, models.PermissionReadOnly)
	url := fmt.Sprintf("/api/stream/%d", m.ID)

	resp := e.do(t, reader, "GET", url, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "bytes", resp.Header.Get("Accept-Ranges"))
	body, _ := io.ReadAll(resp.Body)
	assert.Len(t, body, 64)

	req := httptest.NewRequest("GET", url, nil)
	req.Header.Set("Range", "bytes=0-9")
	resp = e.send(t, reader, req)
	require.Equal(t, fiber.StatusPartialContent, resp.StatusCode)
	assert.Equal(t, "bytes 0-9/64", resp.Header.Get("Content-Range"))
	body, _ = io.ReadAll(resp.Body)
	assert.Len(t, body, 10)

	req = httptest.NewRequest("GET", url, nil)
	req.Header.Set("Range", "bytes=100-200")
	resp = e.send(t, reader, req)
	assert.Equal(t, fiber.StatusRequestedRangeNotSatisfiable, resp.StatusCode)
	assert.Equal(t, "bytes */64", resp.Header.Get("Content-Range"))

	assert.Equal(t, float64(74), testutil.ToFloat64(e.metrics.StreamBytesTotal))
}

func TestThumbnailAndDownload(t *testing.T) {
	e := newEnv(t)
	m := e.importFile(t, "clip.mp4", 64)
	reader := e.addUser(t, models.PermissionReadOnly)

	resp := e.do(t, reader, "GET", fmt.Sprintf("/api/thumbnails/%d", m.ID), nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.NotEmpty(t, body)

	url := fmt.Sprintf("/api/download/%d", m.ID)
	resp = e.do(t, reader, "GET", url, nil)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	assert.Equal(t, utils.CodeInsufficientPermission, errorCode(t, resp))

	downloader := e.addUser(t, models.PermissionDownload)
	resp = e.do(t, downloader, "GET", url, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "attachment")
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "clip.mp4")
}

func multipartUpload(t *testing.T, names ...string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, name := range names {
		part, err := w.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = part.Write(bytes.Repeat([]byte("u"), 32))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func TestUpload(t *testing.T) {
	e := newEnv(t)

	body, contentType := multipartUpload(t, "clip.mp4", "Ã©tÃ©.mp3")
	req := httptest.NewRequest("POST", "/api/upload", body)
	req.Header.Set("Content-Type", contentType)
	resp := e.send(t, e.addUser(t, models.PermissionReadOnly), req)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	body, contentType = multipartUpload(t, "clip.mp4", "Ã©tÃ©.mp3")
	req = httptest.NewRequest("POST", "/api/upload", body)
	req.Header.Set("Content-Type", contentType)
	resp = e.send(t, e.addUser(t, models.PermissionUpload), req)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var out struct {
		Data     []models.MediaFile `json:"data"`
		Imported int                `json:"imported"`
	}
	decodeBody(t, resp, &out)
	require.Equal(t, 2, out.Imported)
	assert.Equal(t, "clip.mp4", out.Data[0].FileName)
	assert.Equal(t, "été.mp3", out.Data[1].FileName)
	assert.Equal(t, float64(2), testutil.ToFloat64(e.metrics.UploadedFilesTotal))

	staging, err := os.ReadDir(e.lib.Store.Layout().UploadDir())
	require.NoError(t, err)
	assert.Empty(t, staging)
}

func TestProfileRoutes(t *testing.T) {
	e := newEnv(t)
	user := e.addUser(t, models.PermissionReadOnly)
	client := e.hub.Register("observer")
	defer e.hub.Unregister(client)

	avatar := "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("fake-png"))
	resp := e.do(t, user, "PUT", "/api/profile", fiber.Map{"nickname": "Renamed", "avatar": avatar})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var profile struct {
		Nickname  string `json:"nickname"`
		AvatarURL string `json:"avatarUrl"`
	}
	decodeBody(t, resp, &profile)
	assert.Equal(t, "Renamed", profile.Nickname)
	assert.Equal(t, "/api/profile/avatar", profile.AvatarURL)

	stored, err := os.ReadFile(filepath.Join(e.dataDir, "avatars", user.ID+".png"))
	require.NoError(t, err)
	assert.Equal(t, "fake-png", string(stored))

	select {
	case raw := <-client.Messages():
		var ev events.Event
		require.NoError(t, json.Unmarshal(raw, &ev))
		assert.Equal(t, events.TypeProfileUpdated, ev.Type)
		assert.Equal(t, user.ID, ev.UserID)
	case <-time.After(time.Second):
		t.Fatal("no profile-updated event")
	}

	resp = e.do(t, user, "GET", "/api/profile/avatar", nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp = e.do(t, user, "PUT", "/api/profile", fiber.Map{"avatar": "data:text/plain;base64,AAAA"})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestAuditLogsRequireFull(t *testing.T) {
	e := newEnv(t)
	e.importFile(t, "clip.mp4", 64)

	resp := e.do(t, e.addUser(t, models.PermissionEdit), "GET", "/api/audit-logs", nil)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp = e.do(t, e.addUser(t, models.PermissionFull), "GET", "/api/audit-logs?limit=1", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var out struct {
		Data []models.AuditLogEntry `json:"data"`
	}
	decodeBody(t, resp, &out)
	require.Len(t, out.Data, 1)
	assert.Equal(t, models.ActionMediaImport, out.Data[0].Action)
}

func TestLibraryChangesAreBroadcast(t *testing.T) {
	e := newEnv(t)
	m := e.importFile(t, "clip.mp4", 64)
	client := e.hub.Register("observer")
	defer e.hub.Unregister(client)

	resp := e.do(t, e.addUser(t, models.PermissionEdit), "PUT", fmt.Sprintf("/api/media/%d", m.ID), fiber.Map{"title": "x"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	select {
	case raw := <-client.Messages():
		var ev events.Event
		require.NoError(t, json.Unmarshal(raw, &ev))
		assert.Equal(t, events.TypeLibraryUpdated, ev.Type)
	case <-time.After(time.Second):
		t.Fatal("no library-updated event")
	}
}

func TestLifecycle(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	assert.Equal(t, StateStopped, e.srv.State())

	require.NoError(t, e.srv.Start(ctx))
	assert.Equal(t, StateRunning, e.srv.State())
	assert.ErrorIs(t, e.srv.Start(ctx), ErrNotStopped)

	resp, err := http.Get("http://" + e.srv.Addr() + "/api/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, e.srv.Stop(stopCtx))
	assert.Equal(t, StateStopped, e.srv.State())
	assert.Empty(t, e.srv.Addr())

	// a stopped server can start again
	require.NoError(t, e.srv.Start(ctx))
	assert.Equal(t, StateRunning, e.srv.State())
	require.NoError(t, e.srv.Stop(stopCtx))
}

func TestStart_NoLibrary(t *testing.T) {
	db, err := sharing.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = sharing.Close(db) })

	srv, err := New(Options{
		Config:  testConfig(t.TempDir()),
		Users:   sharing.NewUserService(db, tokenauth.NewIssuer("machine", []byte("secret"))),
		Metrics: metrics.NewMetrics(prometheus.NewRegistry()),
	})
	require.NoError(t, err)
	assert.ErrorIs(t, srv.Start(context.Background()), ErrNoLibrary)
	assert.Equal(t, StateStopped, srv.State())
}

func TestStart_ListenErrorReturnsToStopped(t *testing.T) {
	taken, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer taken.Close()

	e := newEnv(t)
	e.srv.opts.Config.Server.Port = taken.Addr().(*net.TCPAddr).Port

	assert.Error(t, e.srv.Start(context.Background()))
	assert.Equal(t, StateStopped, e.srv.State())
}
