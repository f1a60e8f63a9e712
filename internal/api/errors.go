package api

import "errors"

var (
	ErrContentType    = errors.New("Content-Type must be application/json")
	ErrBodyTooLarge   = errors.New("request body too large")
	ErrBadBody        = errors.New("malformed request body")
	ErrNoChapters     = errors.New("chapters is required")
	ErrUnknownChapter = errors.New("unknown chapter")
	ErrBadID          = errors.New("invalid chapter id")
	ErrBadState       = errors.New("unknown task state")
)
