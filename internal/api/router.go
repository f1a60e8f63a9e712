package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/handiism/manhua-downloader/internal/download"
	"github.com/handiism/manhua-downloader/internal/events"
	"github.com/handiism/manhua-downloader/internal/metrics"
	"github.com/handiism/manhua-downloader/internal/model"
)

// Tasks is the part of the download manager the API drives.
type Tasks interface {
	Enqueue(chapters []model.ChapterRef) download.EnqueueResult
	Pause(chapterID int64) error
	Resume(chapterID int64) error
	Cancel(chapterID int64) error
	Dismiss(chapterID int64) error
	Snapshot() []model.TaskSnapshot
	Task(chapterID int64) (model.TaskSnapshot, error)
	Events() *events.Bus
}

// Catalog resolves chapter ids to chapters.
type Catalog interface {
	Chapter(id int64) (model.ChapterRef, bool)
}

// Library lists the comics recorded on disk.
type Library interface {
	List() ([]*model.Comic, error)
}

// New sets up the application routes and required middleware.
func New(logger *slog.Logger, tasks Tasks, catalog Catalog, library Library) *mux.Router {
	metrics.Register()
	h := NewHandler(logger, tasks, catalog, library)

	r := mux.NewRouter()
	r.Use(RequestID)
	r.Use(h.Log)

	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("ok")); err != nil {
			logger.Error("write healthz response", "err", err)
		}
	}).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/v1").Subrouter()

	// GETs
	get := api.Methods(http.MethodGet).Subrouter()
	get.HandleFunc("/tasks", h.ListTasks)
	get.HandleFunc("/tasks/{id:[0-9]+}", h.GetTask)
	get.HandleFunc("/comics", h.ListComics)
	get.HandleFunc("/events", h.StreamEvents)

	// POSTs
	post := api.Methods(http.MethodPost).Subrouter()
	post.HandleFunc("/tasks", h.EnqueueTasks)
	post.HandleFunc("/tasks/{id:[0-9]+}/{action:pause|resume|cancel}", h.ControlTask)

	// DELETEs
	api.HandleFunc("/tasks/{id:[0-9]+}", h.DismissTask).Methods(http.MethodDelete)

	return r
}
