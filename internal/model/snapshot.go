package model

import "time"

// TaskSnapshot is an immutable view of a download task.
//
// Snapshots are safe to apply repeatedly: a consumer keys them by
// Chapter.ID and keeps the one with the highest Seq for a given TaskID.
type TaskSnapshot struct {
	TaskID             string     `json:"taskId"`
	Chapter            ChapterRef `json:"chapter"`
	State              TaskState  `json:"state"`
	DownloadedImgCount int        `json:"downloadedImgCount"`
	TotalImgCount      int        `json:"totalImgCount"`
	RetryAfter         int        `json:"retryAfter"`
	ErrKind            string     `json:"errKind,omitempty"`
	ErrMsg             string     `json:"errMsg,omitempty"`
	CreatedAt          time.Time  `json:"createdAt"`
	UpdatedAt          time.Time  `json:"updatedAt"`
	Seq                uint64     `json:"seq"`
}

// Percent returns the completed fraction in [0, 1].
func (s TaskSnapshot) Percent() float64 {
	if s.TotalImgCount == 0 {
		return 0
	}
	return float64(s.DownloadedImgCount) / float64(s.TotalImgCount)
}

// Newer reports whether s should replace prev in a consumer's view.
func (s TaskSnapshot) Newer(prev TaskSnapshot) bool {
	if s.TaskID != prev.TaskID {
		return s.CreatedAt.After(prev.CreatedAt) || s.CreatedAt.Equal(prev.CreatedAt)
	}
	return s.Seq > prev.Seq
}
