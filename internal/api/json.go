package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"

	"github.com/handiism/manhua-downloader/internal/download"
)

// maxBodyBytes bounds request bodies. An enqueue of a whole comic is a few
// kilobytes.
const maxBodyBytes = 64 << 10

// readBody decodes a single JSON document from the request into dst.
// Unknown fields and trailing data are rejected. A missing Content-Type is
// accepted so curl users need not set one.
func readBody(w http.ResponseWriter, r *http.Request, dst any) error {
	if ct := r.Header.Get("Content-Type"); ct != "" {
		if mt, _, err := mime.ParseMediaType(ct); err != nil || mt != "application/json" {
			return ErrContentType
		}
	}

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return ErrBodyTooLarge
		}
		return fmt.Errorf("%w: %v", ErrBadBody, err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: trailing data after JSON document", ErrBadBody)
	}
	return nil
}

// errorStatus maps request and manager errors to HTTP status codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, ErrContentType):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, ErrBodyTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, ErrBadBody), errors.Is(err, ErrNoChapters),
		errors.Is(err, ErrBadID), errors.Is(err, ErrBadState):
		return http.StatusBadRequest
	case errors.Is(err, download.ErrTaskNotFound):
		return http.StatusNotFound
	case errors.Is(err, download.ErrTaskFinished), errors.Is(err, download.ErrTaskActive):
		return http.StatusConflict
	case errors.Is(err, download.ErrShuttingDown):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		markErr(w, err)
		h.l.Error("encode response", "err", err)
	}
}

// writeError replies with the status errorStatus assigns to err.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	markErr(w, err)
	h.writeJSON(w, errorStatus(err), errorResponse{Error: err.Error()})
}
