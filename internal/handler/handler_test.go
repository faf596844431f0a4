package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/prn-tf/teamdrop/internal/auth"
	"github.com/prn-tf/teamdrop/internal/cache/memory"
	"github.com/prn-tf/teamdrop/internal/lock"
	"github.com/prn-tf/teamdrop/internal/repository/sqlite"
	"github.com/prn-tf/teamdrop/internal/service"
	"github.com/prn-tf/teamdrop/internal/storage"
)

// newTestServer wires the full stack against an on-disk SQLite database
// and a filesystem storage backend, both under t.TempDir().
func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	ctx := context.Background()
	logger := zerolog.Nop()

	db, err := sqlite.NewDB(ctx, sqlite.DefaultConfig(filepath.Join(t.TempDir(), "teamdrop.db")), logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate(ctx))

	repos := sqlite.NewRepositories(db)

	backend, err := storage.NewFilesystemBackend(t.TempDir())
	require.NoError(t, err)

	cache := memory.NewCache()
	t.Cleanup(cache.Stop)
	locker := lock.NewNoOpLocker()

	users := service.NewUserService(repos.User, repos.Session, service.UserServiceConfig{
		SessionTTL:        time.Hour,
		BcryptCost:        4, // minimum cost keeps tests fast
		MinPasswordLength: 6,
	}, logger)
	sessions := service.NewSessionService(repos.Session, repos.User, cache, logger)
	projects := service.NewProjectService(repos.Project, repos.File, repos.User, backend, locker, logger)
	files := service.NewFileService(repos.File, repos.Project, repos.Message, backend, 1<<20, logger)
	shares := service.NewShareService(repos.Share, repos.Project, repos.File, backend, locker, logger)
	messages := service.NewMessageService(repos.Message, repos.Project, logger)

	metrics := NewMetrics()
	router := NewRouter(RouterConfig{
		AuthHandler:    NewAuthHandler(users, sessions, logger),
		UserHandler:    NewUserHandler(users, logger),
		ProjectHandler: NewProjectHandler(projects, logger),
		FileHandler:    NewFileHandler(files, metrics, logger),
		ShareHandler:   NewShareHandler(shares, metrics, logger),
		MessageHandler: NewMessageHandler(messages, logger),
		Metrics:        metrics,
		AuthMiddleware: auth.Middleware(sessions, logger),
		Logger:         logger,
	})

	srv := httptest.NewServer(router.Handler())
	t.Cleanup(srv.Close)
	return srv
}

// doJSON issues a request with an optional bearer token and JSON body,
// decodes the JSON response, and returns the status code and body.
func doJSON(t *testing.T, srv *httptest.Server, method, path, token string, body interface{}) (int, map[string]interface{}) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, srv.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]interface{}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &decoded), "response body: %s", raw)
	}
	return resp.StatusCode, decoded
}

// register creates an account and returns a session token.
func register(t *testing.T, srv *httptest.Server, username string) string {
	t.Helper()

	status, body := doJSON(t, srv, http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": username,
		"email":    username + "@example.com",
		"password": "secret123",
	})
	require.Equal(t, http.StatusCreated, status)
	token, _ := body["token"].(string)
	require.NotEmpty(t, token)
	return token
}

func uploadFile(t *testing.T, srv *httptest.Server, token string, projectID int64, name, content string) map[string]interface{} {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, fmt.Sprintf("%s/api/projects/%d/files", srv.URL, projectID), &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var file map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&file))
	return file
}

func TestAPI_AuthRequired(t *testing.T) {
	srv := newTestServer(t)

	status, _ := doJSON(t, srv, http.MethodGet, "/api/projects", "", nil)
	if status != http.StatusUnauthorized {
		t.Errorf("unauthenticated list status = %d, want 401", status)
	}

	status, body := doJSON(t, srv, http.MethodGet, "/api/auth/has-admin", "", nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, false, body["has_admin"])
}

func TestAPI_FirstUserIsAdmin(t *testing.T) {
	srv := newTestServer(t)

	token := register(t, srv, "alice")

	status, body := doJSON(t, srv, http.MethodGet, "/api/auth/me", token, nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, true, body["is_admin"])
	require.Equal(t, true, body["can_upload"])

	status, body = doJSON(t, srv, http.MethodGet, "/api/auth/has-admin", "", nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, true, body["has_admin"])
}

func TestAPI_UploadPermissionFlow(t *testing.T) {
	srv := newTestServer(t)

	adminToken := register(t, srv, "admin")
	userToken := register(t, srv, "bob")

	// Without the upload grant bob may not create projects.
	status, _ := doJSON(t, srv, http.MethodPost, "/api/projects", userToken, map[string]interface{}{
		"name": "bob's stuff",
	})
	require.Equal(t, http.StatusForbidden, status)

	status, meBody := doJSON(t, srv, http.MethodGet, "/api/auth/me", userToken, nil)
	require.Equal(t, http.StatusOK, status)
	bobID := int64(meBody["id"].(float64))

	status, _ = doJSON(t, srv, http.MethodPut, fmt.Sprintf("/api/users/%d/upload-permission", bobID), adminToken, map[string]bool{
		"can_upload": true,
	})
	require.Equal(t, http.StatusOK, status)

	status, _ = doJSON(t, srv, http.MethodPost, "/api/projects", userToken, map[string]interface{}{
		"name": "bob's stuff",
	})
	require.Equal(t, http.StatusCreated, status)
}

func TestAPI_ProjectAndShareFlow(t *testing.T) {
	srv := newTestServer(t)

	token := register(t, srv, "owner")

	status, project := doJSON(t, srv, http.MethodPost, "/api/projects", token, map[string]interface{}{
		"name":        "release assets",
		"description": "build artifacts",
		"tags":        []string{"ci"},
	})
	require.Equal(t, http.StatusCreated, status)
	projectID := int64(project["id"].(float64))

	file := uploadFile(t, srv, token, projectID, "build.tar.gz", "tar bytes")
	fileID := int64(file["id"].(float64))

	// Uploading posts a system chat message.
	status, msgs := doJSON(t, srv, http.MethodGet, fmt.Sprintf("/api/projects/%d/messages", projectID), token, nil)
	require.Equal(t, http.StatusOK, status)
	require.EqualValues(t, 1, msgs["total"])

	status, share := doJSON(t, srv, http.MethodPost, fmt.Sprintf("/api/projects/%d/share", projectID), token, map[string]interface{}{
		"password":      "hunter2",
		"max_downloads": 2,
	})
	require.Equal(t, http.StatusCreated, status)
	shareToken := share["token"].(string)
	require.NotEmpty(t, shareToken)

	// Anonymous fetch answers with a password challenge, no file list.
	status, view := doJSON(t, srv, http.MethodGet, "/api/shares/"+shareToken, "", nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, true, view["requires_password"])
	require.Nil(t, view["files"])

	status, _ = doJSON(t, srv, http.MethodPost, "/api/shares/"+shareToken+"/verify", "", map[string]string{
		"password": "wrong",
	})
	require.Equal(t, http.StatusUnauthorized, status)

	status, view = doJSON(t, srv, http.MethodPost, "/api/shares/"+shareToken+"/verify", "", map[string]string{
		"password": "hunter2",
	})
	require.Equal(t, http.StatusOK, status)
	require.Len(t, view["files"], 1)

	downloadURL := fmt.Sprintf("%s/api/shares/%s/files/%d/download?password=hunter2", srv.URL, shareToken, fileID)
	for i := 0; i < 2; i++ {
		resp, err := srv.Client().Get(downloadURL)
		require.NoError(t, err)
		raw, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Equal(t, "tar bytes", string(raw))
	}

	// The download cap is spent; both the download and the share are gone.
	resp, err := srv.Client().Get(downloadURL)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusGone, resp.StatusCode)

	status, _ = doJSON(t, srv, http.MethodGet, "/api/shares/"+shareToken, "", nil)
	require.Equal(t, http.StatusGone, status)
}

func TestAPI_ProjectVisibility(t *testing.T) {
	srv := newTestServer(t)

	ownerToken := register(t, srv, "owner")
	strangerToken := register(t, srv, "stranger")

	status, project := doJSON(t, srv, http.MethodPost, "/api/projects", ownerToken, map[string]interface{}{
		"name": "private notes",
	})
	require.Equal(t, http.StatusCreated, status)
	projectID := int64(project["id"].(float64))

	// Invisible projects read as missing, not forbidden.
	status, _ = doJSON(t, srv, http.MethodGet, fmt.Sprintf("/api/projects/%d", projectID), strangerToken, nil)
	require.Equal(t, http.StatusNotFound, status)

	status, _ = doJSON(t, srv, http.MethodPatch, fmt.Sprintf("/api/projects/%d", projectID), ownerToken, map[string]interface{}{
		"is_public": true,
	})
	require.Equal(t, http.StatusOK, status)

	status, _ = doJSON(t, srv, http.MethodGet, fmt.Sprintf("/api/projects/%d", projectID), strangerToken, nil)
	require.Equal(t, http.StatusOK, status)
}

func TestAPI_CollaboratorChat(t *testing.T) {
	srv := newTestServer(t)

	// The first account becomes the global admin; register it aside so
	// the project owner below holds no admin flag.
	adminToken := register(t, srv, "admin")
	ownerToken := register(t, srv, "owner")
	readerToken := register(t, srv, "reader")

	// Project creation needs the upload grant for non-admins.
	status, ownerMe := doJSON(t, srv, http.MethodGet, "/api/auth/me", ownerToken, nil)
	require.Equal(t, http.StatusOK, status)
	ownerID := int64(ownerMe["id"].(float64))
	status, _ = doJSON(t, srv, http.MethodPut, fmt.Sprintf("/api/users/%d/upload-permission", ownerID), adminToken, map[string]bool{
		"can_upload": true,
	})
	require.Equal(t, http.StatusOK, status)

	status, me := doJSON(t, srv, http.MethodGet, "/api/auth/me", readerToken, nil)
	require.Equal(t, http.StatusOK, status)
	readerID := int64(me["id"].(float64))

	status, project := doJSON(t, srv, http.MethodPost, "/api/projects", ownerToken, map[string]interface{}{
		"name": "shared",
	})
	require.Equal(t, http.StatusCreated, status)
	projectID := int64(project["id"].(float64))

	status, _ = doJSON(t, srv, http.MethodPost, fmt.Sprintf("/api/projects/%d/collaborators", projectID), ownerToken, map[string]interface{}{
		"user_id":    readerID,
		"permission": "read",
	})
	require.Equal(t, http.StatusNoContent, status)

	// Read tier may chat but not upload.
	status, msg := doJSON(t, srv, http.MethodPost, fmt.Sprintf("/api/projects/%d/messages", projectID), readerToken, map[string]string{
		"content": "thanks for the invite",
	})
	require.Equal(t, http.StatusCreated, status)
	messageID := int64(msg["id"].(float64))

	// The owner may not edit someone else's message.
	status, _ = doJSON(t, srv, http.MethodPatch, fmt.Sprintf("/api/messages/%d", messageID), ownerToken, map[string]string{
		"content": "edited",
	})
	require.Equal(t, http.StatusForbidden, status)

	status, edited := doJSON(t, srv, http.MethodPatch, fmt.Sprintf("/api/messages/%d", messageID), readerToken, map[string]string{
		"content": "thanks again",
	})
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, true, edited["is_edited"])

	// The global admin moderates chat in projects they are not part of.
	status, _ = doJSON(t, srv, http.MethodPatch, fmt.Sprintf("/api/messages/%d", messageID), adminToken, map[string]string{
		"content": "moderated",
	})
	require.Equal(t, http.StatusOK, status)
}

func TestAPI_SessionLogout(t *testing.T) {
	srv := newTestServer(t)

	token := register(t, srv, "alice")

	status, _ := doJSON(t, srv, http.MethodGet, "/api/auth/me", token, nil)
	require.Equal(t, http.StatusOK, status)

	status, _ = doJSON(t, srv, http.MethodPost, "/api/auth/logout", token, nil)
	require.Equal(t, http.StatusNoContent, status)

	status, _ = doJSON(t, srv, http.MethodGet, "/api/auth/me", token, nil)
	require.Equal(t, http.StatusUnauthorized, status)
}
