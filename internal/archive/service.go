// Package archive packs downloaded galleries into CBZ (zip) files.
package archive

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/flate"

	"github.com/ytget/manga-reader/internal/logger"
	"github.com/ytget/manga-reader/internal/model"
)

// Archive constants
const (
	TaskIDPrefix       = "export-"
	OutputExtensionCBZ = ".cbz"
	PartialSuffix      = ".part"
	DefaultPageExt     = ".jpg"
)

// ErrNoPages is returned when a gallery has nothing to export.
var ErrNoPages = errors.New("gallery has no pages to export")

// Service runs export tasks in the background
type Service struct {
	tasks      map[string]*model.ExportTask
	cancels    map[string]context.CancelFunc
	tasksMutex sync.RWMutex
	wg         sync.WaitGroup
	onUpdate   func(*model.ExportTask) // callback for UI updates
}

// NewService creates a new export service
func NewService() *Service {
	return &Service{
		tasks:   make(map[string]*model.ExportTask),
		cancels: make(map[string]context.CancelFunc),
	}
}

var _ Exporter = (*Service)(nil)

// SetUpdateCallback sets the callback function for task updates.
// The callback receives a snapshot of the task.
func (s *Service) SetUpdateCallback(callback func(*model.ExportTask)) {
	s.tasksMutex.Lock()
	s.onUpdate = callback
	s.tasksMutex.Unlock()
}

// StartExport writes pages into outputPath in the background. An empty
// outputPath derives one from the gallery id in the current directory.
func (s *Service) StartExport(galleryID string, pages []model.Page, outputPath string) (*model.ExportTask, error) {
	if len(pages)-model.CountMissing(pages) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoPages, galleryID)
	}
	if outputPath == "" {
		outputPath = GenerateOutputPath(".", galleryID)
	}

	s.tasksMutex.Lock()
	// Check if an export is already running for this file
	for _, task := range s.tasks {
		if task.OutputPath == outputPath && !task.Status.IsFinished() {
			s.tasksMutex.Unlock()
			return nil, fmt.Errorf("export already in progress for file: %s", outputPath)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	task := &model.ExportTask{
		ID:         generateTaskID(),
		GalleryID:  galleryID,
		OutputPath: outputPath,
		Status:     model.TaskStatusPending,
		PageCount:  len(pages),
		StartedAt:  time.Now(),
	}
	s.tasks[task.ID] = task
	s.cancels[task.ID] = cancel
	snapshot := *task
	s.tasksMutex.Unlock()

	s.wg.Add(1)
	go s.runExport(ctx, task.ID, pages)

	return &snapshot, nil
}

// StopExport cancels a running export task
func (s *Service) StopExport(taskID string) error {
	s.tasksMutex.Lock()
	task, exists := s.tasks[taskID]
	if !exists {
		s.tasksMutex.Unlock()
		return fmt.Errorf("export task not found: %s", taskID)
	}
	if task.Status.IsFinished() {
		s.tasksMutex.Unlock()
		return fmt.Errorf("export task is not active: %s", task.Status)
	}

	task.Status = model.TaskStatusStopping
	cancel := s.cancels[taskID]
	s.tasksMutex.Unlock()

	s.notifyUpdate(taskID)
	cancel()
	return nil
}

// GetTask returns a snapshot of an export task by ID
func (s *Service) GetTask(taskID string) (*model.ExportTask, bool) {
	s.tasksMutex.RLock()
	defer s.tasksMutex.RUnlock()
	task, exists := s.tasks[taskID]
	if !exists {
		return nil, false
	}
	snapshot := *task
	return &snapshot, true
}

// Wait blocks until every started export has finished
func (s *Service) Wait() {
	s.wg.Wait()
}

// runExport performs the actual export
func (s *Service) runExport(ctx context.Context, taskID string, pages []model.Page) {
	defer s.wg.Done()

	s.updateTask(taskID, func(t *model.ExportTask) {
		if t.Status == model.TaskStatusPending {
			t.Status = model.TaskStatusRunning
		}
	})

	task, _ := s.GetTask(taskID)
	log := logger.With(logger.KeyTaskID, taskID, logger.KeyGalleryID, task.GalleryID, logger.KeyPath, task.OutputPath)
	log.Info("export started", logger.KeyPages, len(pages))

	err := WriteFile(ctx, task.OutputPath, pages, func(done, total int) {
		s.updateTask(taskID, func(t *model.ExportTask) {
			t.Progress = float64(done) / float64(total)
			t.Percent = int(t.Progress * 100)
		})
	})

	s.updateTask(taskID, func(t *model.ExportTask) {
		switch {
		case ctx.Err() != nil:
			t.Status = model.TaskStatusStopped
		case err != nil:
			t.Status = model.TaskStatusError
			t.LastError = err.Error()
		default:
			t.Status = model.TaskStatusCompleted
			t.Progress = 1.0
			t.Percent = 100
		}
		t.FinishedAt = time.Now()
	})

	s.tasksMutex.Lock()
	if cancel, ok := s.cancels[taskID]; ok {
		cancel()
		delete(s.cancels, taskID)
	}
	s.tasksMutex.Unlock()

	switch {
	case ctx.Err() != nil:
		log.Debug("export stopped")
	case err != nil:
		log.Error("export failed", logger.Err(err)...)
	default:
		log.Info("export completed")
	}
}

// updateTask applies fn under the lock and notifies listeners.
func (s *Service) updateTask(taskID string, fn func(*model.ExportTask)) {
	s.tasksMutex.Lock()
	if task, ok := s.tasks[taskID]; ok {
		fn(task)
	}
	s.tasksMutex.Unlock()
	s.notifyUpdate(taskID)
}

// notifyUpdate calls the update callback if set
func (s *Service) notifyUpdate(taskID string) {
	s.tasksMutex.RLock()
	cb := s.onUpdate
	task, ok := s.tasks[taskID]
	var snapshot model.ExportTask
	if ok {
		snapshot = *task
	}
	s.tasksMutex.RUnlock()

	if cb != nil && ok {
		cb(&snapshot)
	}
}

// WriteFile writes a CBZ to path through a temporary file that is renamed
// on success and removed otherwise.
func WriteFile(ctx context.Context, path string, pages []model.Page, progress func(done, total int)) (err error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	tmp := path + PartialSuffix
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", tmp, err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp)
		}
	}()

	if err = Write(ctx, f, pages, progress); err != nil {
		_ = f.Close()
		return err
	}
	if err = f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", tmp, err)
	}
	if err = os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to move archive into place: %w", err)
	}
	return nil
}

// Write streams the non-missing pages as a zip archive into w. Entries are
// named after Page.Name, falling back to the canonical page name.
func Write(ctx context.Context, w io.Writer, pages []model.Page, progress func(done, total int)) error {
	zw := zip.NewWriter(w)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.BestSpeed)
	})

	total := len(pages) - model.CountMissing(pages)
	if total == 0 {
		return ErrNoPages
	}

	done := 0
	for _, p := range pages {
		if p.Missing {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		name := p.Name
		if name == "" {
			name = model.PageName(p.Index, DefaultPageExt)
		}
		hdr := &zip.FileHeader{Name: name, Method: zip.Deflate}
		hdr.Modified = time.Now()
		entry, err := zw.CreateHeader(hdr)
		if err != nil {
			return fmt.Errorf("failed to add %s: %w", name, err)
		}
		if _, err := entry.Write(p.Data); err != nil {
			return fmt.Errorf("failed to write %s: %w", name, err)
		}

		done++
		if progress != nil {
			progress(done, total)
		}
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to finish archive: %w", err)
	}
	return nil
}

// GenerateOutputPath returns dir/<galleryID>.cbz
func GenerateOutputPath(dir, galleryID string) string {
	name := filepath.Base(filepath.Clean("/" + galleryID))
	if name == "/" || name == "." {
		name = "gallery"
	}
	return filepath.Join(dir, name+OutputExtensionCBZ)
}

// generateTaskID generates a unique task ID using UUID v7 so IDs sort by
// creation time
func generateTaskID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Sprintf(TaskIDPrefix+"%d", time.Now().UnixNano())
	}
	return TaskIDPrefix + id.String()
}
