package runner

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"audiovault/internal/catalog"
	"audiovault/internal/media"
	"audiovault/internal/metrics"
	"audiovault/internal/progress"
)

// Progress messages shown to status pollers at each stage.
const (
	msgDownloading = "Fetching audio..."
	msgProcessing  = "Converting thumbnail..."
	msgFinalizing  = "Saving metadata..."
	msgCompleted   = "Download complete!"
)

// Config controls worker behavior.
type Config struct {
	// BaseURL prefixes the /files URIs stored in catalog entries.
	BaseURL string
	// DownloadsDir is where the external tools write artifacts.
	DownloadsDir string
}

// Worker consumes queued jobs and runs the extraction pipeline: download the
// audio artifact, fetch the thumbnail (best-effort), resolve full metadata,
// and persist the catalog entry. Progress is published before each stage.
type Worker struct {
	queue     *Queue
	catalog   *catalog.Store
	tracker   *progress.Tracker
	extractor media.Extractor
	cfg       Config
	logger    *zap.Logger
}

// NewWorker constructs a Worker.
func NewWorker(
	queue *Queue,
	store *catalog.Store,
	tracker *progress.Tracker,
	ext media.Extractor,
	cfg Config,
	logger *zap.Logger,
) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		queue:     queue,
		catalog:   store,
		tracker:   tracker,
		extractor: ext,
		cfg:       cfg,
		logger:    logger,
	}
}

// Run blocks, consuming jobs until the context finishes.
func (w *Worker) Run(ctx context.Context) {
	for {
		job, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Error("dequeue failed", zap.Error(err))
			return
		}
		metrics.IncActiveWorkers()
		w.process(ctx, job)
		metrics.DecActiveWorkers()
	}
}

func (w *Worker) process(ctx context.Context, job media.Job) {
	w.setStage(job.ID, media.StatusDownloading, msgDownloading)
	if err := w.extractor.DownloadAudio(ctx, job.URL, job.ID, job.Format); err != nil {
		w.fail(job.ID, err)
		return
	}

	w.setStage(job.ID, media.StatusProcessing, msgProcessing)
	if err := w.extractor.FetchThumbnail(ctx, job.URL, job.ID); err != nil {
		// Thumbnail availability is best-effort; the job continues.
		w.logger.Warn("thumbnail fetch failed", zap.String("id", job.ID), zap.Error(err))
	}

	w.setStage(job.ID, media.StatusFinalizing, msgFinalizing)
	meta, err := w.extractor.Probe(ctx, job.URL)
	if err != nil {
		w.fail(job.ID, err)
		return
	}

	entry := w.buildEntry(meta, job.ID, job.Format)
	if _, err := w.catalog.UpsertIfAbsent(entry); err != nil {
		w.fail(job.ID, err)
		return
	}

	w.tracker.Set(job.ID, media.StatusCompleted, msgCompleted)
	metrics.ObserveJob(string(media.StatusCompleted))
	w.logger.Info("download completed", zap.String("id", job.ID))
}

func (w *Worker) setStage(id string, status media.Status, message string) {
	w.tracker.Set(id, status, message)
	metrics.ObserveStage(string(status))
}

func (w *Worker) fail(id string, err error) {
	w.tracker.Set(id, media.StatusError, err.Error())
	metrics.ObserveJob(string(media.StatusError))
	w.logger.Error("download failed", zap.String("id", id), zap.Error(err))
}

func (w *Worker) buildEntry(meta media.Metadata, id string, format media.Format) media.Entry {
	title := meta.Title
	if title == "" {
		title = "Unknown Title"
	}
	uploader := meta.Uploader
	if uploader == "" {
		uploader = "Unknown Uploader"
	}
	entry := media.Entry{
		ID:         id,
		Title:      media.SanitizeText(title),
		Audio:      w.fileURL(id + "." + string(format)),
		Duration:   meta.Duration,
		Uploader:   media.SanitizeText(uploader),
		UploadDate: media.SanitizeText(meta.UploadDate),
	}
	if _, err := os.Stat(filepath.Join(w.cfg.DownloadsDir, id+".webp")); err == nil {
		entry.Thumbnail = w.fileURL(id + ".webp")
	}
	return entry
}

func (w *Worker) fileURL(name string) string {
	return strings.TrimRight(w.cfg.BaseURL, "/") + "/files/" + name
}
