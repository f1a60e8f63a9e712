package model

import "fmt"

// ImageDescriptor describes one image of a chapter.
//
// Index is 1-based and is the only ordering authority: the local file name
// is derived from it, so the reading order can be recovered no matter in
// which order concurrent fetches complete.
type ImageDescriptor struct {
	Index    int    `json:"index"`
	URL      string `json:"url"`
	FileName string `json:"fileName"`
}

// NewImageDescriptor creates a descriptor with the file name derived from
// the index, e.g. index 7 becomes "007.jpg".
func NewImageDescriptor(index int, url string) ImageDescriptor {
	return ImageDescriptor{
		Index:    index,
		URL:      url,
		FileName: ImageFileName(index),
	}
}

// ImageFileName returns the zero-padded local file name for an index.
func ImageFileName(index int) string {
	return fmt.Sprintf("%03d.jpg", index)
}

// NewImageDescriptors builds descriptors for an ordered URL list.
func NewImageDescriptors(urls []string) []ImageDescriptor {
	out := make([]ImageDescriptor, len(urls))
	for i, u := range urls {
		out[i] = NewImageDescriptor(i+1, u)
	}
	return out
}
