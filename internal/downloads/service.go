// Package downloads implements admission control and artifact lifecycle for
// the extraction service: deduplicating requests against the catalog and the
// in-flight tracker, enqueueing admitted jobs, and removing completed
// downloads together with their files.
package downloads

import (
	"context"
	"errors"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"audiovault/internal/catalog"
	"audiovault/internal/media"
	"audiovault/internal/progress"
	"audiovault/internal/runner"
)

// queuedMessage is published when a job is admitted, before any work starts.
const queuedMessage = "Waiting to start..."

// Result is the outcome of a download request. Exactly one of the three
// shapes is populated: an existing catalog entry, an in-flight identifier, or
// a freshly started identifier.
type Result struct {
	Existing   *media.Entry
	InProgress bool
	Started    bool
	ID         string
}

// Service coordinates admission, status, listing, and removal.
type Service struct {
	// admissionMu serializes the check-then-enqueue sequence so two racing
	// requests for the same fresh identifier admit exactly one job.
	admissionMu sync.Mutex

	catalog      *catalog.Store
	tracker      *progress.Tracker
	extractor    media.Extractor
	queue        *runner.Queue
	downloadsDir string
	logger       *zap.Logger
}

// NewService constructs a Service.
func NewService(
	store *catalog.Store,
	tracker *progress.Tracker,
	ext media.Extractor,
	queue *runner.Queue,
	downloadsDir string,
	logger *zap.Logger,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		catalog:      store,
		tracker:      tracker,
		extractor:    ext,
		queue:        queue,
		downloadsDir: downloadsDir,
		logger:       logger,
	}
}

// RequestDownload resolves the content identifier for rawURL and decides the
// outcome: return the existing catalog entry, report an in-flight job, or
// admit a new one. The metadata probe blocks the caller; the admitted job
// does not.
func (s *Service) RequestDownload(ctx context.Context, rawURL string, format media.Format) (Result, error) {
	meta, err := s.extractor.Probe(ctx, rawURL)
	if err != nil {
		return Result{}, err
	}
	id := meta.ID

	s.admissionMu.Lock()
	defer s.admissionMu.Unlock()

	entry, err := s.catalog.Get(id)
	switch {
	case err == nil:
		s.logger.Debug("request deduplicated against catalog", zap.String("id", id))
		return Result{Existing: &entry, ID: id}, nil
	case !errors.Is(err, media.ErrNotFound):
		return Result{}, err
	}

	if s.tracker.InFlight(id) {
		s.logger.Debug("request deduplicated against in-flight job", zap.String("id", id))
		return Result{InProgress: true, ID: id}, nil
	}

	s.tracker.Set(id, media.StatusQueued, queuedMessage)
	if err := s.queue.Enqueue(media.Job{URL: rawURL, ID: id, Format: format}); err != nil {
		s.tracker.Clear(id)
		return Result{}, media.WrapError(media.ErrDownload, "admit "+id, err)
	}
	s.logger.Info("download admitted", zap.String("id", id), zap.String("format", string(format)))
	return Result{Started: true, ID: id}, nil
}

// Status returns the progress entry for id; unknown identifiers yield the
// unknown status.
func (s *Service) Status(id string) media.Progress {
	return s.tracker.Get(id)
}

// List returns catalog entries newest-first.
func (s *Service) List() ([]media.Entry, error) {
	return s.catalog.List()
}

// Remove deletes the artifacts and catalog entry for id, then clears any
// progress entry. Files are removed before the catalog record so a crash
// mid-operation leaves, at worst, an orphaned entry pointing at missing
// files, which a re-run of Remove repairs. Missing files are tolerated.
func (s *Service) Remove(id string) error {
	entry, err := s.catalog.Get(id)
	if err != nil {
		return err
	}

	if err := s.removeArtifact(entry.Audio); err != nil {
		return err
	}
	if entry.Thumbnail != "" {
		if err := s.removeArtifact(entry.Thumbnail); err != nil {
			return err
		}
	}

	if _, err := s.catalog.Remove(id); err != nil {
		return err
	}
	s.tracker.Clear(id)
	s.logger.Info("download removed", zap.String("id", id))
	return nil
}

// removeArtifact deletes the file a catalog URI points at. Only the final
// path element is honored, so a crafted URI cannot escape the downloads dir.
func (s *Service) removeArtifact(uri string) error {
	name := artifactName(uri)
	if name == "" {
		return nil
	}
	if err := os.Remove(filepath.Join(s.downloadsDir, name)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func artifactName(uri string) string {
	if u, err := url.Parse(uri); err == nil && u.Path != "" {
		return path.Base(u.Path)
	}
	return path.Base(uri)
}
