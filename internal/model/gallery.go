package model

import "fmt"

// PageNameFormat names page files inside archives and stores.
const PageNameFormat = "%04d%s"

// Page is a single page of a remote gallery.
type Page struct {
	Index   int    `json:"index"`
	URL     string `json:"url,omitempty"`
	Name    string `json:"name"`
	Data    []byte `json:"-"`
	Missing bool   `json:"missing,omitempty"` // permanently skipped after retries
	Error   string `json:"error,omitempty"`
}

// PageName builds the canonical file name for a page index.
func PageName(index int, ext string) string {
	return fmt.Sprintf(PageNameFormat, index+1, ext)
}

// Batch is a contiguous, ascending run of pages delivered to a consumer.
//
// A batch with no pages announces Total before any page data arrives.
type Batch struct {
	GalleryID      string
	Generation     uint64
	Pages          []Page
	Skipped        []int // indices inside Pages that are Missing
	CompletedCount int   // all indices below this have been delivered or skipped
	Total          int
	FromCache      bool
}

// IsHeader reports whether the batch only announces the page count.
func (b Batch) IsHeader() bool {
	return len(b.Pages) == 0
}

// Done reports whether this batch completes the gallery.
func (b Batch) Done() bool {
	return b.Total > 0 && b.CompletedCount >= b.Total
}

// GetProgress returns delivery progress as percentage
func (b Batch) GetProgress() float64 {
	if b.Total == 0 {
		return 0
	}
	return float64(b.CompletedCount) / float64(b.Total) * 100
}

// CountMissing returns how many pages were skipped in a page list.
func CountMissing(pages []Page) int {
	n := 0
	for _, p := range pages {
		if p.Missing {
			n++
		}
	}
	return n
}
