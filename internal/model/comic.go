package model

import "sort"

// Comic is a content unit with its metadata and chapters.
//
// A Comic is a snapshot taken from the source. The only local mutation
// allowed is flipping a chapter's IsDownloaded flag after its task completes.
//
// Chapters are organized by group name (for example "单话" or "单行本").
// Each group holds chapters in source order.
//
// Example:
//
//	comic := &Comic{ID: 1, Title: "Title", Groups: map[string][]ChapterRef{
//	    "单话": {{ID: 10, Title: "第1话", Order: 1}},
//	}}
//	comic.Normalize()
//	for _, ch := range comic.Chapters() {
//	    fmt.Println(ch.Dir("/downloads"))
//	}
type Comic struct {
	ID         int64                   `json:"id"`
	Title      string                  `json:"title"`
	Subtitle   string                  `json:"subtitle,omitempty"`
	Cover      string                  `json:"cover,omitempty"`
	Status     string                  `json:"status,omitempty"`
	UpdateTime string                  `json:"updateTime,omitempty"`
	Year       int                     `json:"year,omitempty"`
	Region     string                  `json:"region,omitempty"`
	Genres     []string                `json:"genres,omitempty"`
	Authors    []string                `json:"authors,omitempty"`
	Aliases    []string                `json:"aliases,omitempty"`
	Intro      string                  `json:"intro,omitempty"`
	Groups     map[string][]ChapterRef `json:"groups"`
}

// Normalize fills in the owner fields of every chapter from the comic and
// its group keys. Sources often omit them in nested chapter records.
func (c *Comic) Normalize() {
	for group, chapters := range c.Groups {
		for i := range chapters {
			ch := &chapters[i]
			ch.ComicID = c.ID
			ch.ComicTitle = c.Title
			ch.GroupName = group
			if ch.Order == 0 {
				ch.Order = i + 1
			}
		}
	}
}

// Chapters returns every chapter of the comic, ordered by group name and
// then by position within the group.
func (c *Comic) Chapters() []ChapterRef {
	groups := make([]string, 0, len(c.Groups))
	for g := range c.Groups {
		groups = append(groups, g)
	}
	sort.Strings(groups)

	var out []ChapterRef
	for _, g := range groups {
		out = append(out, c.Groups[g]...)
	}
	return out
}

// Chapter looks up a chapter by its identifier.
func (c *Comic) Chapter(id int64) (ChapterRef, bool) {
	for _, chapters := range c.Groups {
		for _, ch := range chapters {
			if ch.ID == id {
				return ch, true
			}
		}
	}
	return ChapterRef{}, false
}

// MarkDownloaded flips the IsDownloaded flag of the given chapter.
// It reports whether the chapter was found.
func (c *Comic) MarkDownloaded(id int64) bool {
	for g, chapters := range c.Groups {
		for i := range chapters {
			if chapters[i].ID == id {
				c.Groups[g][i].IsDownloaded = true
				return true
			}
		}
	}
	return false
}

// ApplyDownloaded copies the IsDownloaded flags of a previously stored
// record onto c. Chapters unknown to stored keep their flag.
func (c *Comic) ApplyDownloaded(stored *Comic) {
	if stored == nil {
		return
	}
	done := make(map[int64]bool)
	for _, chapters := range stored.Groups {
		for _, ch := range chapters {
			if ch.IsDownloaded {
				done[ch.ID] = true
			}
		}
	}
	for g, chapters := range c.Groups {
		for i := range chapters {
			if done[chapters[i].ID] {
				c.Groups[g][i].IsDownloaded = true
			}
		}
	}
}

// DownloadedCount returns how many chapters are marked downloaded and the
// total number of chapters.
func (c *Comic) DownloadedCount() (downloaded, total int) {
	for _, chapters := range c.Groups {
		for _, ch := range chapters {
			total++
			if ch.IsDownloaded {
				downloaded++
			}
		}
	}
	return downloaded, total
}
