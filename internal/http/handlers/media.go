package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"oracle/internal/domain"
	"oracle/internal/media"
)

type jobResponse struct {
	JobID  string           `json:"job_id"`
	Status domain.JobStatus `json:"status"`
}

func (a *App) accepted(w http.ResponseWriter, r *http.Request, id string, err error) {
	if err != nil {
		a.fail(w, r, err)
		return
	}
	w.Header().Set("Location", "/v1/media/jobs/"+id)
	a.json(w, http.StatusAccepted, jobResponse{JobID: id, Status: domain.JobStatusQueued})
}

func (a *App) MediaImages(w http.ResponseWriter, r *http.Request) {
	var req media.ImageRequest
	if err := decode(w, r, &req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	id, err := a.Media.GenerateImage(req)
	a.accepted(w, r, id, err)
}

func (a *App) MediaEdits(w http.ResponseWriter, r *http.Request) {
	var req media.EditRequest
	if err := decode(w, r, &req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	id, err := a.Media.EditImage(req)
	a.accepted(w, r, id, err)
}

func (a *App) MediaVideos(w http.ResponseWriter, r *http.Request) {
	var req media.VideoRequest
	if err := decode(w, r, &req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	id, err := a.Media.GenerateVideo(req)
	a.accepted(w, r, id, err)
}

func (a *App) MediaAnalyses(w http.ResponseWriter, r *http.Request) {
	var req media.AnalyzeRequest
	if err := decode(w, r, &req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	id, err := a.Media.AnalyzeMedia(req)
	a.accepted(w, r, id, err)
}

// MediaJobs lists the in-memory jobs, newest first. With ?history=N and a
// configured history store it returns persisted snapshots instead.
func (a *App) MediaJobs(w http.ResponseWriter, r *http.Request) {
	if v := r.URL.Query().Get("history"); v != "" && a.History != nil {
		limit, err := strconv.Atoi(v)
		if err != nil || limit <= 0 {
			a.error(w, http.StatusBadRequest, "bad_request", "history must be a positive number")
			return
		}
		jobs, err := a.History.ListRecent(r.Context(), limit)
		if err != nil {
			a.fail(w, r, err)
			return
		}
		a.json(w, http.StatusOK, map[string]any{"jobs": jobs})
		return
	}
	a.json(w, http.StatusOK, map[string]any{"jobs": a.Media.Store().List()})
}

func (a *App) MediaJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "job_id")
	if job, ok := a.Media.Store().Get(id); ok {
		a.json(w, http.StatusOK, job)
		return
	}
	if a.History != nil {
		job, err := a.History.GetByID(r.Context(), id)
		if err == nil {
			a.json(w, http.StatusOK, job)
			return
		}
		if !errors.Is(err, domain.ErrNotFound) {
			a.fail(w, r, err)
			return
		}
	}
	a.error(w, http.StatusNotFound, "not_found", "job not found")
}

// CardBusy reports the active jobs started from a card.
func (a *App) CardBusy(w http.ResponseWriter, r *http.Request) {
	cardID := chi.URLParam(r, "card_id")
	jobs := a.Media.Store().Busy(cardID)
	if jobs == nil {
		jobs = []domain.MediaJob{}
	}
	a.json(w, http.StatusOK, map[string]any{
		"card_id": cardID,
		"busy":    len(jobs) > 0,
		"jobs":    jobs,
	})
}

// MediaEvents streams every job snapshot as a server-sent "job" event until
// the client disconnects. A subscriber that falls behind is cut off and
// should reload the job list.
func (a *App) MediaEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		a.error(w, http.StatusInternalServerError, "internal", "streaming not supported")
		return
	}
	updates, cancel := a.Media.Store().Subscribe(0)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case job, open := <-updates:
			if !open {
				_ = writeEvent(w, "resync", map[string]string{"reason": "lagging"})
				flusher.Flush()
				return
			}
			if err := writeEvent(w, "job", job); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
