package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"audiovault/internal/catalog"
	"audiovault/internal/config"
	"audiovault/internal/downloads"
	"audiovault/internal/media"
	"audiovault/internal/progress"
	"audiovault/internal/runner"
)

type stubExtractor struct {
	meta media.Metadata
	err  error
}

func (s *stubExtractor) Probe(_ context.Context, _ string) (media.Metadata, error) {
	if s.err != nil {
		return media.Metadata{}, s.err
	}
	return s.meta, nil
}

func (s *stubExtractor) DownloadAudio(_ context.Context, _, _ string, _ media.Format) error {
	return nil
}

func (s *stubExtractor) FetchThumbnail(_ context.Context, _, _ string) error {
	return nil
}

type testEnv struct {
	server  *Server
	store   *catalog.Store
	tracker *progress.Tracker
	queue   *runner.Queue
	dir     string
}

func newTestEnv(t *testing.T, ext media.Extractor) *testEnv {
	t.Helper()
	dir := t.TempDir()
	store, err := catalog.New(filepath.Join(dir, "downloads.json"))
	require.NoError(t, err)
	tracker := progress.NewTracker()
	queue := runner.NewQueue(8)
	svc := downloads.NewService(store, tracker, ext, queue, dir, zap.NewNop())
	cfg := config.Config{
		Server:  config.ServerConfig{Port: 8000, BaseURL: "http://localhost:8000"},
		Library: config.LibraryConfig{DownloadsDir: dir, CatalogPath: filepath.Join(dir, "downloads.json")},
	}
	return &testEnv{
		server:  NewServer(svc, cfg, zap.NewNop()),
		store:   store,
		tracker: tracker,
		queue:   queue,
		dir:     dir,
	}
}

func (e *testEnv) get(t *testing.T, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestServer_Download_Started(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, &stubExtractor{meta: media.Metadata{ID: "abc123"}})
	rec := env.get(t, "/download?url=https%3A%2F%2Fexample.com%2Fx&format=mp3")

	require.Equal(t, http.StatusAccepted, rec.Code)
	body := decodeBody(t, rec)
	require.Equal(t, "started", body["status"])
	require.Equal(t, "abc123", body["video_id"])
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	// Polling immediately reports queued.
	rec = env.get(t, "/status/abc123")
	require.Equal(t, http.StatusOK, rec.Code)
	body = decodeBody(t, rec)
	require.Equal(t, "queued", body["status"])
}

func TestServer_Download_DefaultsToMP3(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, &stubExtractor{meta: media.Metadata{ID: "abc123"}})
	rec := env.get(t, "/download?url=https%3A%2F%2Fexample.com%2Fx")
	require.Equal(t, http.StatusAccepted, rec.Code)

	job, err := env.queue.Dequeue(context.Background())
	require.NoError(t, err)
	require.Equal(t, media.FormatMP3, job.Format)
}

func TestServer_Download_AlreadyDownloaded(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, &stubExtractor{meta: media.Metadata{ID: "abc123"}})
	_, err := env.store.UpsertIfAbsent(media.Entry{ID: "abc123", Title: "Cached"})
	require.NoError(t, err)

	rec := env.get(t, "/download?url=https%3A%2F%2Fexample.com%2Fx")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	require.Equal(t, "already_downloaded", body["status"])
	entry, ok := body["entry"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "Cached", entry["title"])
}

func TestServer_Download_AlreadyInProgress(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, &stubExtractor{meta: media.Metadata{ID: "abc123"}})

	rec := env.get(t, "/download?url=https%3A%2F%2Fexample.com%2Fx")
	require.Equal(t, http.StatusAccepted, rec.Code)

	rec = env.get(t, "/download?url=https%3A%2F%2Fexample.com%2Fx")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	require.Equal(t, "already_in_progress", body["status"])
	require.Equal(t, "abc123", body["video_id"])
}

func TestServer_Download_MissingURL(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, &stubExtractor{})
	rec := env.get(t, "/download")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "error", decodeBody(t, rec)["status"])
}

func TestServer_Download_BadFormat(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, &stubExtractor{meta: media.Metadata{ID: "abc123"}})
	rec := env.get(t, "/download?url=https%3A%2F%2Fexample.com%2Fx&format=flac")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_Download_ExtractionError(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, &stubExtractor{
		err: media.WrapError(media.ErrExtraction, "probe", errors.New("unsupported URL")),
	})
	rec := env.get(t, "/download?url=bogus")
	require.Equal(t, http.StatusBadGateway, rec.Code)
	body := decodeBody(t, rec)
	require.Equal(t, "error", body["status"])
	require.Contains(t, body["error"], "unsupported URL")

	// No progress entry was created for any identifier.
	require.Equal(t, media.StatusUnknown, env.tracker.Get("abc123").Status)
}

func TestServer_Status_UnknownID(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, &stubExtractor{})
	rec := env.get(t, "/status/never-seen")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	require.Equal(t, "unknown", body["status"])
	require.Equal(t, "No status found", body["message"])
}

func TestServer_List_EmptyAndOrdered(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, &stubExtractor{})

	rec := env.get(t, "/list")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	require.Equal(t, "empty", body["status"])
	require.Empty(t, body["downloads"])

	for _, id := range []string{"a", "b", "c"} {
		_, err := env.store.UpsertIfAbsent(media.Entry{ID: id})
		require.NoError(t, err)
	}

	rec = env.get(t, "/list")
	body = decodeBody(t, rec)
	require.Equal(t, "success", body["status"])
	list, ok := body["downloads"].([]any)
	require.True(t, ok)
	require.Len(t, list, 3)
	ids := make([]string, 0, 3)
	for _, item := range list {
		entry := item.(map[string]any)
		ids = append(ids, entry["id"].(string))
	}
	require.Equal(t, []string{"c", "b", "a"}, ids)
}

func TestServer_Remove(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, &stubExtractor{})
	audio := filepath.Join(env.dir, "abc123.mp3")
	require.NoError(t, os.WriteFile(audio, []byte("audio"), 0o600))
	_, err := env.store.UpsertIfAbsent(media.Entry{
		ID:    "abc123",
		Audio: "http://localhost:8000/files/abc123.mp3",
	})
	require.NoError(t, err)

	rec := env.get(t, "/remove?id=abc123")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	require.Equal(t, "removed", body["status"])
	require.Equal(t, "abc123", body["id"])
	require.NoFileExists(t, audio)

	rec = env.get(t, "/remove?id=abc123")
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "error", decodeBody(t, rec)["status"])
}

func TestServer_FilesServesArtifacts(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, &stubExtractor{})
	require.NoError(t, os.WriteFile(filepath.Join(env.dir, "abc123.mp3"), []byte("audio-bytes"), 0o600))

	rec := env.get(t, "/files/abc123.mp3")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "audio-bytes", rec.Body.String())

	rec = env.get(t, "/files/missing.mp3")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_Healthz(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, &stubExtractor{})
	rec := env.get(t, "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_APIKeyMiddleware(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store, err := catalog.New(filepath.Join(dir, "downloads.json"))
	require.NoError(t, err)
	svc := downloads.NewService(store, progress.NewTracker(), &stubExtractor{}, runner.NewQueue(1), dir, zap.NewNop())
	cfg := config.Config{
		Server:  config.ServerConfig{Port: 8000, BaseURL: "http://localhost:8000"},
		Auth:    config.AuthConfig{Enabled: true, APIKey: "secret"},
		Library: config.LibraryConfig{DownloadsDir: dir},
	}
	server := NewServer(svc, cfg, zap.NewNop())

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/list", nil))
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/list", nil)
	req.Header.Set("X-API-Key", "secret")
	server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_CORSPreflight(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, &stubExtractor{})
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/download", nil))
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
