package archive

import (
	"github.com/ytget/manga-reader/internal/model"
)

// Exporter defines the interface for the archive export service.
type Exporter interface {
	SetUpdateCallback(func(*model.ExportTask))
	StartExport(galleryID string, pages []model.Page, outputPath string) (*model.ExportTask, error)
	StopExport(taskID string) error
	GetTask(taskID string) (*model.ExportTask, bool)
}
