package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/handiism/manhua-downloader/internal/model"
)

// Handler serves the task and library endpoints.
type Handler struct {
	l       *slog.Logger
	tasks   Tasks
	catalog Catalog
	library Library
}

// NewHandler creates a Handler.
func NewHandler(l *slog.Logger, tasks Tasks, catalog Catalog, library Library) *Handler {
	return &Handler{l: l, tasks: tasks, catalog: catalog, library: library}
}

type enqueueBody struct {
	Chapters []int64 `json:"chapters"`
}

type enqueueResponse struct {
	Accepted []int64          `json:"accepted"`
	Rejected map[int64]string `json:"rejected,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// ListTasks returns every registered task, oldest first. The optional state
// query parameter keeps only tasks in that state.
func (h *Handler) ListTasks(w http.ResponseWriter, r *http.Request) {
	snaps := h.tasks.Snapshot()
	if v := r.URL.Query().Get("state"); v != "" {
		state := model.TaskState(v)
		if !state.Valid() {
			h.writeError(w, fmt.Errorf("%w: %q", ErrBadState, v))
			return
		}
		var kept []model.TaskSnapshot
		for _, s := range snaps {
			if s.State == state {
				kept = append(kept, s)
			}
		}
		snaps = kept
	}
	if snaps == nil {
		snaps = []model.TaskSnapshot{}
	}
	h.writeJSON(w, http.StatusOK, snaps)
}

// GetTask returns one task.
func (h *Handler) GetTask(w http.ResponseWriter, r *http.Request) {
	id, err := chapterID(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	snap, err := h.tasks.Task(id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, snap)
}

// EnqueueTasks creates tasks for the chapters listed in the body.
func (h *Handler) EnqueueTasks(w http.ResponseWriter, r *http.Request) {
	var body enqueueBody
	if err := readBody(w, r, &body); err != nil {
		h.writeError(w, err)
		return
	}
	if len(body.Chapters) == 0 {
		h.writeError(w, ErrNoChapters)
		return
	}

	resp := enqueueResponse{Accepted: []int64{}, Rejected: make(map[int64]string)}
	refs := make([]model.ChapterRef, 0, len(body.Chapters))
	for _, id := range body.Chapters {
		ch, ok := h.catalog.Chapter(id)
		if !ok {
			resp.Rejected[id] = ErrUnknownChapter.Error()
			continue
		}
		refs = append(refs, ch)
	}

	res := h.tasks.Enqueue(refs)
	resp.Accepted = append(resp.Accepted, res.Accepted...)
	for id, err := range res.Rejected {
		resp.Rejected[id] = err.Error()
	}

	status := http.StatusAccepted
	if len(resp.Accepted) == 0 {
		status = http.StatusConflict
	}
	h.writeJSON(w, status, resp)
}

// ControlTask pauses, resumes or cancels a task.
func (h *Handler) ControlTask(w http.ResponseWriter, r *http.Request) {
	id, err := chapterID(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	switch mux.Vars(r)["action"] {
	case "pause":
		err = h.tasks.Pause(id)
	case "resume":
		err = h.tasks.Resume(id)
	case "cancel":
		err = h.tasks.Cancel(id)
	}
	if err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// DismissTask removes a finished task.
func (h *Handler) DismissTask(w http.ResponseWriter, r *http.Request) {
	id, err := chapterID(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.tasks.Dismiss(id); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListComics returns the comics recorded in the download directory.
func (h *Handler) ListComics(w http.ResponseWriter, r *http.Request) {
	comics, err := h.library.List()
	if err != nil {
		h.writeError(w, err)
		return
	}
	if comics == nil {
		comics = []*model.Comic{}
	}
	h.writeJSON(w, http.StatusOK, comics)
}

func chapterID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		return 0, ErrBadID
	}
	return id, nil
}
