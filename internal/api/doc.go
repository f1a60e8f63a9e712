// Package api exposes the download manager over HTTP.
//
// Routes:
//
//	GET    /healthz
//	GET    /metrics
//	GET    /v1/tasks[?state={state}]
//	GET    /v1/tasks/{id}
//	POST   /v1/tasks                  {"chapters": [10, 11]}
//	POST   /v1/tasks/{id}/pause
//	POST   /v1/tasks/{id}/resume
//	POST   /v1/tasks/{id}/cancel
//	DELETE /v1/tasks/{id}
//	GET    /v1/comics
//	GET    /v1/events[?chapter={id}]  (WebSocket)
//
// Task ids are chapter ids: a chapter has at most one live task.
package api
