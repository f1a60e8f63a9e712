package ioutils

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/handiism/manhua-downloader/internal/model"
)

// Reconcile reports which images of a chapter are already on disk.
//
// An image counts as present when dir contains a regular file named after
// its descriptor with a non-zero size. A directory that does not exist yet
// yields an empty set. Any other read failure is returned wrapped, so the
// caller can fail instead of silently downloading everything again.
//
// Reconcile never modifies the directory.
func Reconcile(dir string, images []model.ImageDescriptor) (map[int]struct{}, error) {
	present := make(map[int]struct{})

	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return present, nil
		}
		return nil, fmt.Errorf("reconcile chapter dir: %w", err)
	}

	sizes := make(map[string]int64, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		sizes[e.Name()] = info.Size()
	}

	for _, img := range images {
		if sizes[img.FileName] > 0 {
			present[img.Index] = struct{}{}
		}
	}
	return present, nil
}
