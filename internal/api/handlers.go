package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"audiovault/internal/media"
)

// requestDownload resolves the URL's content identifier and either returns
// the cached entry, reports the in-flight job, or starts a new one.
func (s *Server) requestDownload(w http.ResponseWriter, r *http.Request) {
	rawURL := r.URL.Query().Get("url")
	if rawURL == "" {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{
			"status": "error",
			"error":  "url parameter required",
		})
		return
	}
	format, err := media.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{
			"status": "error",
			"error":  err.Error(),
		})
		return
	}

	res, err := s.svc.RequestDownload(r.Context(), rawURL, format)
	if err != nil {
		s.writeJSON(w, downloadErrorStatus(err), map[string]string{
			"status": "error",
			"error":  err.Error(),
		})
		return
	}

	switch {
	case res.Existing != nil:
		s.writeJSON(w, http.StatusOK, map[string]any{
			"status": "already_downloaded",
			"entry":  res.Existing,
		})
	case res.InProgress:
		s.writeJSON(w, http.StatusOK, map[string]string{
			"status":   "already_in_progress",
			"video_id": res.ID,
		})
	default:
		s.writeJSON(w, http.StatusAccepted, map[string]string{
			"status":   "started",
			"video_id": res.ID,
		})
	}
}

// getStatus reports the progress entry for the identifier. Never fails;
// unknown identifiers get the unknown status.
func (s *Server) getStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "video_id")
	s.writeJSON(w, http.StatusOK, s.svc.Status(id))
}

func (s *Server) listDownloads(w http.ResponseWriter, r *http.Request) {
	entries, err := s.svc.List()
	if err != nil {
		s.logger.Error("list downloads failed", zap.Error(err))
		s.writeJSON(w, http.StatusInternalServerError, map[string]string{
			"status": "error",
			"error":  err.Error(),
		})
		return
	}
	status := "success"
	if len(entries) == 0 {
		status = "empty"
		entries = []media.Entry{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":    status,
		"downloads": entries,
	})
}

func (s *Server) removeDownload(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{
			"status":  "error",
			"message": "id parameter required",
		})
		return
	}
	if err := s.svc.Remove(id); err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, media.ErrNotFound) {
			code = http.StatusNotFound
		}
		s.writeJSON(w, code, map[string]string{
			"status":  "error",
			"message": err.Error(),
		})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status": "removed",
		"id":     id,
	})
}

// downloadErrorStatus maps the error taxonomy onto HTTP codes. Body shape is
// identical for all of them; the code is advisory for API clients.
func downloadErrorStatus(err error) int {
	switch {
	case errors.Is(err, media.ErrExtraction):
		return http.StatusBadGateway
	case errors.Is(err, media.ErrCorruptCatalog):
		return http.StatusInternalServerError
	case errors.Is(err, media.ErrDownload):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
