package ui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"

	"github.com/ytget/manga-reader/internal/archive"
	"github.com/ytget/manga-reader/internal/assetcache"
	"github.com/ytget/manga-reader/internal/config"
	"github.com/ytget/manga-reader/internal/decode"
	"github.com/ytget/manga-reader/internal/download"
	"github.com/ytget/manga-reader/internal/logger"
	"github.com/ytget/manga-reader/internal/model"
	"github.com/ytget/manga-reader/internal/platform"
	"github.com/ytget/manga-reader/internal/thumbnail"
)

// Services are the pipeline components the window drives.
type Services struct {
	Cache       *assetcache.Cache
	Thumbnailer *thumbnail.Thumbnailer

	// Downloader is nil when no gallery source is configured
	Downloader *download.Downloader
	Exporter   archive.Exporter

	DecodeMetrics decode.Metrics
}

// RootUI represents the main UI structure
type RootUI struct {
	window       fyne.Window
	settings     *config.Settings
	localization *Localization
	cfg          *config.Pipeline

	cache      *assetcache.Cache
	scheduler  *decode.Scheduler
	downloader *download.Downloader
	exporter   archive.Exporter
	gallery    *GalleryView

	galleryEntry *widget.Entry
	openBtn      *widget.Button
	folderBtn    *widget.Button
	stopBtn      *widget.Button
	exportBtn    *widget.Button
	progress     *widget.ProgressBar

	// Notification panel
	notificationContainer *fyne.Container
	notificationLabel     *widget.Label
	notificationSpinner   *widget.ProgressBarInfinite
}

// NewRootUI creates the reader window and starts the decode scheduler.
// Call Close when the window is gone.
func NewRootUI(window fyne.Window, app fyne.App, cfg *config.Pipeline, svc Services) *RootUI {
	settings := config.NewSettings(app)

	localization := NewLocalization()
	localization.SetLanguage(settings.GetLanguage())

	ui := &RootUI{
		window:       window,
		settings:     settings,
		localization: localization,
		cfg:          cfg,
		cache:        svc.Cache,
		downloader:   svc.Downloader,
		exporter:     svc.Exporter,
	}

	var gallery *GalleryView
	ui.scheduler = decode.New(svc.Cache, svc.Thumbnailer, FyneExecutor, decode.Options{
		Workers: cfg.Decode.Workers,
		Radius:  cfg.Decode.Radius,
		Group:   ThumbGroup,
		OnComplete: func(r decode.Result) {
			gallery.OnDecoded(r)
		},
		Metrics: svc.DecodeMetrics,
	})
	gallery = NewGalleryView(svc.Cache, ui.scheduler)
	ui.gallery = gallery
	svc.Thumbnailer.Lookup = gallery.Lookup
	ui.scheduler.Start()

	if ui.exporter != nil {
		ui.exporter.SetUpdateCallback(func(task *model.ExportTask) {
			fyne.Do(func() { ui.onExportUpdate(task) })
		})
	}

	window.SetTitle(localization.GetText(KeyAppTitle))
	ui.setupUI()

	logger.Info("reader window ready",
		"remote", ui.downloader != nil,
		"workers", cfg.Decode.Workers,
		"radius", cfg.Decode.Radius)
	return ui
}

// Close stops background work owned by the window
func (ui *RootUI) Close() {
	if ui.downloader != nil {
		ui.downloader.Close()
	}
	ui.scheduler.Close()
}

// setupUI creates and arranges all UI components
func (ui *RootUI) setupUI() {
	ui.createMenu()

	ui.galleryEntry = widget.NewEntry()
	ui.galleryEntry.SetPlaceHolder(ui.localization.GetText(KeyEnterGallery))
	ui.galleryEntry.OnSubmitted = func(string) {
		ui.onOpenClick()
	}

	ui.openBtn = widget.NewButton(ui.localization.GetText(KeyOpen), ui.onOpenClick)
	ui.folderBtn = widget.NewButton(IconFolder, ui.onBrowseFolder)
	ui.stopBtn = widget.NewButton(ui.localization.GetText(KeyStop), ui.onStopClick)
	ui.stopBtn.Disable()
	ui.exportBtn = widget.NewButton(IconExport+" "+ui.localization.GetText(KeyExport), ui.onExportClick)
	ui.exportBtn.Disable()

	settingsBtn := widget.NewButton(IconSettings, ui.onShowSettings)
	settingsBtn.Importance = widget.LowImportance

	topPanel := container.NewBorder(nil, nil,
		container.NewHBox(settingsBtn, ui.folderBtn),
		container.NewHBox(ui.openBtn, ui.stopBtn, ui.exportBtn),
		ui.galleryEntry)

	ui.progress = widget.NewProgressBar()
	ui.progress.TextFormatter = func() string {
		return fmt.Sprintf(ProgressLabelFormat, int(ui.progress.Value), int(ui.progress.Max))
	}
	ui.progress.Hide()

	ui.notificationLabel = widget.NewLabel("")
	ui.notificationLabel.Alignment = fyne.TextAlignLeading
	ui.notificationSpinner = widget.NewProgressBarInfinite()
	ui.notificationSpinner.Hide()
	ui.notificationContainer = container.NewHBox(ui.notificationSpinner, container.NewPadded(ui.notificationLabel))
	ui.notificationContainer.Hide()

	top := container.NewVBox(topPanel, ui.progress, ui.notificationContainer)
	ui.window.SetContent(container.NewBorder(top, nil, nil, nil, ui.gallery.Content()))
}

// createMenu creates the application menu
func (ui *RootUI) createMenu() {
	openFolderItem := fyne.NewMenuItem(ui.localization.GetText(KeyOpenFolder), ui.onBrowseFolder)
	settingsItem := fyne.NewMenuItem(ui.localization.GetText(KeySettings), ui.onShowSettings)

	languageMenu := fyne.NewMenu(ui.localization.GetText(KeyLanguage))
	for code, name := range ui.localization.GetAvailableLanguages() {
		langCode := code
		langItem := fyne.NewMenuItem(name, func() {
			ui.onLanguageChange(langCode)
		})
		if ui.localization.GetCurrentLanguage() == code {
			langItem.Checked = true
		}
		languageMenu.Items = append(languageMenu.Items, langItem)
	}

	ui.window.SetMainMenu(fyne.NewMainMenu(
		fyne.NewMenu(ui.localization.GetText(KeyFile), openFolderItem, settingsItem),
		languageMenu,
	))
}

// onLanguageChange handles language change
func (ui *RootUI) onLanguageChange(langCode string) {
	ui.localization.SetLanguage(langCode)
	ui.settings.SetLanguage(langCode)
	ui.refreshUITexts()
	ui.createMenu()
}

// refreshUITexts updates all UI texts with current language
func (ui *RootUI) refreshUITexts() {
	ui.window.SetTitle(ui.localization.GetText(KeyAppTitle))
	ui.galleryEntry.SetPlaceHolder(ui.localization.GetText(KeyEnterGallery))
	ui.openBtn.SetText(ui.localization.GetText(KeyOpen))
	ui.stopBtn.SetText(ui.localization.GetText(KeyStop))
	ui.exportBtn.SetText(IconExport + " " + ui.localization.GetText(KeyExport))
}

// onOpenClick opens the entered folder path or gallery id
func (ui *RootUI) onOpenClick() {
	text := strings.TrimSpace(ui.galleryEntry.Text)
	if text == "" {
		ui.showNotification(ui.localization.GetText(KeyPleaseEnterID), false)
		return
	}

	if info, err := os.Stat(text); err == nil && info.IsDir() {
		ui.openFolder(text)
		return
	}
	ui.openGallery(text)
}

// onBrowseFolder picks a local gallery folder
func (ui *RootUI) onBrowseFolder() {
	dialog.ShowFolderOpen(func(uri fyne.ListableURI, err error) {
		if err != nil || uri == nil {
			return
		}
		ui.galleryEntry.SetText(uri.Path())
		ui.openFolder(uri.Path())
	}, ui.window)
}

// openFolder shows the images of a local folder
func (ui *RootUI) openFolder(dir string) {
	files, err := platform.ListImages(dir)
	if err != nil {
		ui.showNotification(ui.localization.GetText(KeyErrorOpeningFile)+": "+err.Error(), false)
		return
	}
	if len(files) == 0 {
		ui.showNotification(ui.localization.GetText(KeyNoImages), false)
		return
	}

	ui.cancelActiveDownload()
	ui.gallery.ShowFolder(dir, files)
	ui.progress.Hide()
	ui.stopBtn.Disable()
	ui.exportBtn.Disable()
	ui.showNotification(filepath.Base(dir)+MiddleDotSeparator+fmt.Sprintf("%d", len(files)), false)
	logger.Info("folder opened", logger.KeyPath, dir, logger.KeyPages, len(files))
}

// openGallery starts streaming a remote gallery into the view
func (ui *RootUI) openGallery(galleryID string) {
	if ui.downloader == nil {
		ui.showNotification(ui.localization.GetText(KeyNoSource), false)
		return
	}

	ui.gallery.BeginGallery(galleryID)
	ui.progress.Max = 1
	ui.progress.SetValue(0)
	ui.progress.Show()
	ui.stopBtn.Enable()
	ui.exportBtn.Disable()
	ui.showNotification(ui.localization.GetText(KeyResolving), true)

	go ui.runDownload(galleryID)
}

// runDownload consumes one session off the UI thread. Every hand-off back
// to the UI is checked against the downloader's current generation.
func (ui *RootUI) runDownload(galleryID string) {
	session, err := ui.downloader.Start(context.Background(), galleryID)
	if err != nil {
		if errors.Is(err, download.ErrCancelled) {
			return
		}
		fyne.Do(func() {
			if _, active := ui.downloader.Active(); active {
				return
			}
			ui.stopBtn.Disable()
			ui.showNotification(ui.localization.GetText(KeyDownloadFailed)+": "+err.Error(), false)
		})
		return
	}

	for b := range session.Batches() {
		batch := b
		fyne.Do(func() { ui.onBatch(batch) })
	}
	err = session.Wait()
	fyne.Do(func() { ui.onSessionDone(session, err) })
}

func (ui *RootUI) onBatch(b model.Batch) {
	if b.Generation != ui.downloader.Generation() {
		return
	}

	if !b.IsHeader() {
		ui.gallery.AppendBatch(b)
	}
	ui.progress.Max = float64(b.Total)
	ui.progress.SetValue(float64(b.CompletedCount))

	if b.FromCache {
		ui.showNotification(ui.localization.GetText(KeyFromStore), false)
		return
	}
	ui.showNotification(ui.localization.GetText(KeyDownloading)+MiddleDotSeparator+
		fmt.Sprintf(ProgressLabelFormat, b.CompletedCount, b.Total), true)
}

func (ui *RootUI) onSessionDone(s *download.Session, err error) {
	if s.Generation != ui.downloader.Generation() {
		return
	}
	ui.stopBtn.Disable()

	switch {
	case err == nil:
		ui.exportBtn.Enable()
		msg := ui.localization.GetText(KeyDownloadCompleted)
		if missing := model.CountMissing(ui.gallery.Pages()); missing > 0 {
			msg += MiddleDotSeparator + fmt.Sprintf("%d %s", missing, ui.localization.GetText(KeyPagesSkipped))
		}
		ui.showNotification(msg, false)
	case errors.Is(err, download.ErrCancelled):
		ui.showNotification(ui.localization.GetText(KeyDownloadCancelled), false)
	default:
		ui.showNotification(ui.localization.GetText(KeyDownloadFailed)+": "+err.Error(), false)
	}
}

// onStopClick cancels the running download
func (ui *RootUI) onStopClick() {
	ui.stopBtn.Disable()
	ui.cancelActiveDownload()
}

// cancelActiveDownload stops the current run. The advisory remote cancel
// may block, so it runs off the UI thread.
func (ui *RootUI) cancelActiveDownload() {
	if ui.downloader == nil {
		return
	}
	galleryID, ok := ui.downloader.Active()
	if !ok {
		return
	}
	go ui.downloader.CancelDownload(galleryID)
}

// onExportClick packs the downloaded gallery into a CBZ in the library
func (ui *RootUI) onExportClick() {
	galleryID, remote := ui.gallery.Source()
	pages := ui.gallery.Pages()
	if !remote || ui.exporter == nil || len(pages)-model.CountMissing(pages) == 0 {
		ui.showNotification(ui.localization.GetText(KeyNothingToExport), false)
		return
	}

	dir := ui.settings.GetLibraryDirectory()
	if err := platform.CreateDirectoryIfNotExists(dir); err != nil {
		dialog.ShowError(err, ui.window)
		return
	}

	task, err := ui.exporter.StartExport(galleryID, pages, archive.GenerateOutputPath(dir, galleryID))
	if err != nil {
		dialog.ShowError(err, ui.window)
		return
	}
	ui.showNotification(ui.localization.GetText(KeyExportStarted)+MiddleDotSeparator+task.OutputPath, true)
}

// onExportUpdate reflects export progress in the notification panel
func (ui *RootUI) onExportUpdate(task *model.ExportTask) {
	switch task.Status {
	case model.TaskStatusCompleted:
		ui.showNotification(ui.localization.GetText(KeyExportCompleted), false)
		dialog.ShowCustomConfirm(
			ui.localization.GetText(KeyExportCompleted),
			ui.localization.GetText(KeyReveal),
			ui.localization.GetText(KeyCancel),
			widget.NewLabel(task.OutputPath),
			func(reveal bool) {
				if !reveal {
					return
				}
				if err := platform.OpenFileInManager(task.OutputPath); err != nil {
					logger.Warn("reveal failed", append([]any{logger.KeyPath, task.OutputPath}, logger.Err(err)...)...)
					dialog.ShowError(err, ui.window)
				}
			},
			ui.window)
	case model.TaskStatusError:
		ui.showNotification(ui.localization.GetText(KeyExportFailed)+": "+task.LastError, false)
	case model.TaskStatusRunning:
		ui.showNotification(fmt.Sprintf("%s %d%%", ui.localization.GetText(KeyExport), task.Percent), true)
	}
}

// onShowSettings shows the settings dialog
func (ui *RootUI) onShowSettings() {
	ShowSettingsDialog(ui.window, ui.settings, ui.localization, ui.onSettingsSaved)
}

// onSettingsSaved applies the settings that can change at runtime: cache
// limits, decode radius and language. The rest apply on restart.
func (ui *RootUI) onSettingsSaved() {
	cfg, err := ui.settings.Pipeline(ui.cfg)
	if err != nil {
		dialog.ShowError(err, ui.window)
		return
	}

	if err := ui.cache.SetLimits(cfg.Cache.MaxEntries, int64(cfg.Cache.MaxBytes)); err != nil {
		dialog.ShowError(err, ui.window)
		return
	}
	ui.scheduler.SetRadius(cfg.Decode.Radius)
	ui.cfg = cfg

	ui.localization.SetLanguage(ui.settings.GetLanguage())
	ui.refreshUITexts()
	ui.createMenu()

	ui.showNotification(ui.localization.GetText(KeySettingsSaved)+" "+ui.localization.GetText(KeyRestartRequired), false)
}

// showNotification displays a message in the notification panel under the
// gallery entry. When spinning is true, a spinner indicates background activity.
func (ui *RootUI) showNotification(message string, spinning bool) {
	ui.notificationLabel.SetText(message)
	if spinning {
		ui.notificationSpinner.Show()
	} else {
		ui.notificationSpinner.Hide()
	}
	ui.notificationContainer.Show()
	ui.notificationContainer.Refresh()
}
