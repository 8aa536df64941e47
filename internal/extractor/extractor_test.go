package extractor

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"audiovault/internal/media"
)

type fakeExecutor struct {
	calls []execCall
	out   []byte
	err   error
}

type execCall struct {
	dir    string
	binary string
	args   []string
}

func (f *fakeExecutor) Run(_ context.Context, dir, binary string, args ...string) ([]byte, error) {
	f.calls = append(f.calls, execCall{dir: dir, binary: binary, args: args})
	return f.out, f.err
}

func newTestClient(t *testing.T, ex *fakeExecutor) *Client {
	t.Helper()
	c, err := New(Config{
		ExtractorPath: "/opt/tools/yt-dlp",
		FFmpegPath:    "/opt/tools/ffmpeg",
		DownloadsDir:  "/srv/downloads",
	}, zap.NewNop(), WithExecutor(ex))
	require.NoError(t, err)
	return c
}

func TestClient_ProbeParsesFirstLine(t *testing.T) {
	t.Parallel()

	ex := &fakeExecutor{out: []byte(
		`{"id":"abc123","title":"A Song","duration":212.5,"uploader":"someone","upload_date":"20240101"}` + "\n" +
			`{"id":"ignored"}` + "\n",
	)}
	c := newTestClient(t, ex)

	meta, err := c.Probe(context.Background(), "https://example.com/watch?v=abc123")
	require.NoError(t, err)
	require.Equal(t, "abc123", meta.ID)
	require.Equal(t, "A Song", meta.Title)
	require.InDelta(t, 212.5, meta.Duration, 0.001)
	require.Equal(t, "someone", meta.Uploader)
	require.Equal(t, "20240101", meta.UploadDate)

	require.Len(t, ex.calls, 1)
	require.Equal(t, "/opt/tools/yt-dlp", ex.calls[0].binary)
	require.Equal(t, []string{
		"--skip-download", "--print-json",
		"--ffmpeg-location=/opt/tools",
		"https://example.com/watch?v=abc123",
	}, ex.calls[0].args)
}

func TestClient_ProbeFailureIsExtractionError(t *testing.T) {
	t.Parallel()

	ex := &fakeExecutor{err: errors.New("ERROR: unsupported URL")}
	c := newTestClient(t, ex)

	_, err := c.Probe(context.Background(), "not-a-url")
	require.ErrorIs(t, err, media.ErrExtraction)
	require.Contains(t, err.Error(), "unsupported URL")
}

func TestClient_ProbeRejectsMetadataWithoutID(t *testing.T) {
	t.Parallel()

	ex := &fakeExecutor{out: []byte(`{"title":"no id"}`)}
	c := newTestClient(t, ex)

	_, err := c.Probe(context.Background(), "https://example.com/x")
	require.ErrorIs(t, err, media.ErrExtraction)
}

func TestClient_DownloadAudioArgs(t *testing.T) {
	t.Parallel()

	ex := &fakeExecutor{}
	c := newTestClient(t, ex)

	err := c.DownloadAudio(context.Background(), "https://example.com/x", "abc123", media.FormatOpus)
	require.NoError(t, err)
	require.Len(t, ex.calls, 1)
	require.Equal(t, []string{
		"-x", "--audio-format=opus",
		"--ffmpeg-location=/opt/tools",
		"-o", filepath.Join("/srv/downloads", "abc123.opus"),
		"https://example.com/x",
	}, ex.calls[0].args)
}

func TestClient_DownloadAudioFailureIsDownloadError(t *testing.T) {
	t.Parallel()

	ex := &fakeExecutor{err: errors.New("exit status 1")}
	c := newTestClient(t, ex)

	err := c.DownloadAudio(context.Background(), "https://example.com/x", "abc123", media.FormatMP3)
	require.ErrorIs(t, err, media.ErrDownload)
}

func TestClient_FetchThumbnailRunsInDownloadsDir(t *testing.T) {
	t.Parallel()

	ex := &fakeExecutor{}
	c := newTestClient(t, ex)

	require.NoError(t, c.FetchThumbnail(context.Background(), "https://example.com/x", "abc123"))
	require.Len(t, ex.calls, 1)
	require.Equal(t, "/srv/downloads", ex.calls[0].dir)
	require.Equal(t, []string{
		"--skip-download",
		"--write-thumbnail",
		"--convert-thumbnails", "webp",
		"-o", "abc123.%(ext)s",
		"https://example.com/x",
	}, ex.calls[0].args)
}

func TestClient_CanonicalPaths(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, &fakeExecutor{})
	require.Equal(t, filepath.Join("/srv/downloads", "abc123.m4a"), c.AudioPath("abc123", media.FormatM4A))
	require.Equal(t, filepath.Join("/srv/downloads", "abc123.webp"), c.ThumbnailPath("abc123"))
}

func TestNew_RequiresBinaryAndDir(t *testing.T) {
	t.Parallel()

	_, err := New(Config{DownloadsDir: "/x"}, nil)
	require.Error(t, err)
	_, err = New(Config{ExtractorPath: "yt-dlp"}, nil)
	require.Error(t, err)
}
