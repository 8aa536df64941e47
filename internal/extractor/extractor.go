// Package extractor wraps the external media tools. The extractor binary
// (yt-dlp compatible) resolves metadata, downloads/extracts audio, and
// fetches thumbnails; audio transcoding is delegated by it to the configured
// ffmpeg binary.
package extractor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"audiovault/internal/media"
)

// Executor abstracts command execution for testability.
type Executor interface {
	Run(ctx context.Context, dir, binary string, args ...string) ([]byte, error)
}

// Config captures tool locations and the per-invocation timeout.
type Config struct {
	ExtractorPath string
	FFmpegPath    string
	DownloadsDir  string
	Timeout       time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(ex Executor) Option {
	return func(c *Client) {
		if ex != nil {
			c.exec = ex
		}
	}
}

// Client invokes the external extractor. Every invocation is bounded by the
// configured timeout; expiry surfaces as the stage's error kind.
type Client struct {
	cfg    Config
	exec   Executor
	logger *zap.Logger
}

// New constructs a Client.
func New(cfg Config, logger *zap.Logger, opts ...Option) (*Client, error) {
	if strings.TrimSpace(cfg.ExtractorPath) == "" {
		return nil, fmt.Errorf("extractor binary required")
	}
	if strings.TrimSpace(cfg.DownloadsDir) == "" {
		return nil, fmt.Errorf("downloads directory required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{
		cfg:    cfg,
		exec:   commandExecutor{},
		logger: logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Probe resolves url to structured metadata without downloading anything.
// This is the blocking call on the admission path.
func (c *Client) Probe(ctx context.Context, url string) (media.Metadata, error) {
	args := append([]string{"--skip-download", "--print-json"}, c.ffmpegLocationArgs()...)
	args = append(args, url)

	out, err := c.run(ctx, "", args...)
	if err != nil {
		return media.Metadata{}, media.WrapError(media.ErrExtraction, "probe "+url, err)
	}
	meta, err := parseMetadata(out)
	if err != nil {
		return media.Metadata{}, media.WrapError(media.ErrExtraction, "probe "+url, err)
	}
	c.logger.Debug("probe resolved", zap.String("url", url), zap.String("id", meta.ID))
	return meta, nil
}

// DownloadAudio extracts the audio stream for url into the canonical path for
// id and format.
func (c *Client) DownloadAudio(ctx context.Context, url, id string, format media.Format) error {
	args := []string{"-x", "--audio-format=" + string(format)}
	args = append(args, c.ffmpegLocationArgs()...)
	args = append(args, "-o", c.AudioPath(id, format), url)

	if _, err := c.run(ctx, "", args...); err != nil {
		return media.WrapError(media.ErrDownload, "download "+id, err)
	}
	c.logger.Info("audio downloaded", zap.String("id", id), zap.String("format", string(format)))
	return nil
}

// FetchThumbnail fetches and converts the thumbnail for url into
// {id}.webp inside the downloads directory. Callers treat failure as
// best-effort; this method only reports it.
func (c *Client) FetchThumbnail(ctx context.Context, url, id string) error {
	args := []string{
		"--skip-download",
		"--write-thumbnail",
		"--convert-thumbnails", "webp",
		"-o", id + ".%(ext)s",
		url,
	}
	if _, err := c.run(ctx, c.cfg.DownloadsDir, args...); err != nil {
		return media.WrapError(media.ErrExtraction, "thumbnail "+id, err)
	}
	return nil
}

// AudioPath returns the canonical audio artifact path for id and format.
func (c *Client) AudioPath(id string, format media.Format) string {
	return filepath.Join(c.cfg.DownloadsDir, id+"."+string(format))
}

// ThumbnailPath returns the canonical thumbnail path for id.
func (c *Client) ThumbnailPath(id string) string {
	return filepath.Join(c.cfg.DownloadsDir, id+".webp")
}

func (c *Client) ffmpegLocationArgs() []string {
	if c.cfg.FFmpegPath == "" {
		return nil
	}
	// The extractor wants the directory holding ffmpeg, not the binary.
	return []string{"--ffmpeg-location=" + filepath.Dir(c.cfg.FFmpegPath)}
}

func (c *Client) run(ctx context.Context, dir string, args ...string) ([]byte, error) {
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}
	return c.exec.Run(ctx, dir, c.cfg.ExtractorPath, args...)
}

func parseMetadata(out []byte) (media.Metadata, error) {
	// The tool prints one JSON document per line; the first line describes
	// the resolved item.
	line, _, _ := bytes.Cut(bytes.TrimSpace(out), []byte("\n"))
	var meta media.Metadata
	if err := json.Unmarshal(line, &meta); err != nil {
		return media.Metadata{}, fmt.Errorf("parse metadata: %w", err)
	}
	if meta.ID == "" {
		return media.Metadata{}, fmt.Errorf("metadata missing id")
	}
	return meta, nil
}

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, dir, binary string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%s timed out: %w", binary, ctx.Err())
		}
		if detail != "" {
			return nil, fmt.Errorf("%s: %w: %s", binary, err, detail)
		}
		return nil, fmt.Errorf("%s: %w", binary, err)
	}
	return stdout.Bytes(), nil
}
