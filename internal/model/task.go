package model

import (
	"strings"
	"time"
)

// ExportTask represents a single gallery export (CBZ) task
type ExportTask struct {
	ID         string
	GalleryID  string
	OutputPath string
	Status     TaskStatus
	Progress   float64 // 0.0 to 1.0
	Percent    int     // 0 to 100
	PageCount  int
	LastError  string // last error message if any
	StartedAt  time.Time
	FinishedAt time.Time
}

// GetDisplayName returns the archive file name without extension, or the
// gallery ID when no output path is known yet
func (et *ExportTask) GetDisplayName() string {
	if et.OutputPath != "" {
		// Support both / and \ separators
		parts := strings.FieldsFunc(et.OutputPath, func(r rune) bool {
			return r == '/' || r == '\\'
		})
		if len(parts) > 0 {
			filename := parts[len(parts)-1]
			if idx := strings.LastIndex(filename, "."); idx > 0 {
				filename = filename[:idx]
			}
			return filename
		}
	}
	return et.GalleryID
}

// Elapsed returns how long the task ran, or has been running so far
func (et *ExportTask) Elapsed() time.Duration {
	if et.StartedAt.IsZero() {
		return 0
	}
	if et.FinishedAt.IsZero() {
		return time.Since(et.StartedAt)
	}
	return et.FinishedAt.Sub(et.StartedAt)
}
