package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/handiism/manhua-downloader/internal/events"
)

const writeTimeout = 5 * time.Second

// StreamEvents upgrades to a WebSocket and streams bus events as JSON. The
// optional chapter query parameter limits the stream to one chapter.
// Latest task states are sent first.
func (h *Handler) StreamEvents(w http.ResponseWriter, r *http.Request) {
	var sub *events.Subscription
	if v := r.URL.Query().Get("chapter"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			h.writeError(w, ErrBadID)
			return
		}
		sub = h.tasks.Events().SubscribeChapter(id)
	} else {
		sub = h.tasks.Events().Subscribe()
	}
	defer sub.Close()

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		markErr(w, err)
		return
	}
	defer conn.Close(websocket.StatusInternalError, "")

	// Clients only listen; CloseRead handles their close frames.
	ctx := conn.CloseRead(r.Context())
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-sub.C():
			if !ok {
				conn.Close(websocket.StatusGoingAway, "event bus closed")
				return
			}
			if err := h.send(ctx, conn, e); err != nil {
				h.l.Debug("event stream ended", "err", err)
				return
			}
		}
	}
}

func (h *Handler) send(ctx context.Context, conn *websocket.Conn, e events.Event) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, e)
}
