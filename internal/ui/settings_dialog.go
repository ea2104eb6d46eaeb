package ui

import (
	"sort"
	"strconv"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"

	"github.com/ytget/manga-reader/internal/config"
)

// SettingsDialog represents the settings configuration dialog
type SettingsDialog struct {
	settings     *config.Settings
	localization *Localization
	window       fyne.Window
	dialog       *dialog.ConfirmDialog
	onSaved      func()

	// UI components
	libraryDirEntry  *widget.Entry
	sourceURLEntry   *widget.Entry
	cacheEntries     *widget.Entry
	cacheMBEntry     *widget.Entry
	workersEntry     *widget.Entry
	radiusEntry      *widget.Entry
	concurrencyEntry *widget.Entry
	languageSelect   *widget.Select
}

// ShowSettingsDialog builds and shows the settings dialog. onSaved runs
// after the values were written to settings.
func ShowSettingsDialog(window fyne.Window, settings *config.Settings, localization *Localization, onSaved func()) *SettingsDialog {
	sd := NewSettingsDialog(settings, localization, window, onSaved)
	sd.Show()
	return sd
}

// NewSettingsDialog creates a new settings dialog
func NewSettingsDialog(settings *config.Settings, localization *Localization, window fyne.Window, onSaved func()) *SettingsDialog {
	sd := &SettingsDialog{
		settings:     settings,
		localization: localization,
		window:       window,
		onSaved:      onSaved,
	}

	sd.createUI()
	return sd
}

// Show displays the settings dialog
func (sd *SettingsDialog) Show() {
	sd.loadCurrentSettings()
	sd.dialog.Show()
}

// createUI creates the settings dialog UI
func (sd *SettingsDialog) createUI() {
	t := sd.localization.GetText

	sd.libraryDirEntry = widget.NewEntry()
	browseDirBtn := widget.NewButton(t(KeyBrowse), sd.onBrowseDirectory)
	libraryDirRow := container.NewBorder(nil, nil, nil, browseDirBtn, sd.libraryDirEntry)

	sd.sourceURLEntry = widget.NewEntry()
	sd.sourceURLEntry.SetPlaceHolder("https://")

	sd.cacheEntries = newNumberEntry(strconv.Itoa(config.MinCacheMaxEntries) + "-" + strconv.Itoa(config.MaxCacheMaxEntries))
	sd.cacheMBEntry = newNumberEntry(strconv.Itoa(config.MinCacheMaxMB) + "-" + strconv.Itoa(config.MaxCacheMaxMB))
	sd.workersEntry = newNumberEntry("1-" + strconv.Itoa(config.MaxDecodeWorkers))
	sd.radiusEntry = newNumberEntry("0-" + strconv.Itoa(config.MaxDecodeRadius))
	sd.concurrencyEntry = newNumberEntry("1-" + strconv.Itoa(config.MaxFetchConcurrency))

	languageOptions := []string{}
	for code := range sd.settings.GetLanguageOptions() {
		languageOptions = append(languageOptions, code)
	}
	sort.Strings(languageOptions)
	sd.languageSelect = widget.NewSelect(languageOptions, nil)

	form := widget.NewForm(
		widget.NewFormItem(t(KeyLibraryDirectory), libraryDirRow),
		widget.NewFormItem(t(KeySourceURL), sd.sourceURLEntry),
		widget.NewFormItem(t(KeyCacheEntries), sd.cacheEntries),
		widget.NewFormItem(t(KeyCacheSize), sd.cacheMBEntry),
		widget.NewFormItem(t(KeyDecodeWorkers), sd.workersEntry),
		widget.NewFormItem(t(KeyDecodeRadius), sd.radiusEntry),
		widget.NewFormItem(t(KeyFetchConcurrency), sd.concurrencyEntry),
		widget.NewFormItem(t(KeyLanguage), sd.languageSelect),
	)

	sd.dialog = dialog.NewCustomConfirm(
		t(KeySettings),
		t(KeySave),
		t(KeyCancel),
		form,
		sd.onSave,
		sd.window,
	)

	sd.dialog.Resize(fyne.NewSize(SettingsDialogW, SettingsDialogH))
}

func newNumberEntry(placeholder string) *widget.Entry {
	e := widget.NewEntry()
	e.SetPlaceHolder(placeholder)
	e.Validator = func(s string) error {
		if s == "" {
			return nil
		}
		_, err := strconv.Atoi(s)
		return err
	}
	return e
}

// loadCurrentSettings loads current settings into the UI
func (sd *SettingsDialog) loadCurrentSettings() {
	sd.libraryDirEntry.SetText(sd.settings.GetLibraryDirectory())
	sd.sourceURLEntry.SetText(sd.settings.GetSourceURL())
	sd.cacheEntries.SetText(strconv.Itoa(sd.settings.GetCacheMaxEntries()))
	sd.cacheMBEntry.SetText(strconv.Itoa(sd.settings.GetCacheMaxMB()))
	sd.workersEntry.SetText(strconv.Itoa(sd.settings.GetDecodeWorkers()))
	sd.radiusEntry.SetText(strconv.Itoa(sd.settings.GetDecodeRadius()))
	sd.concurrencyEntry.SetText(strconv.Itoa(sd.settings.GetFetchConcurrency()))
	sd.languageSelect.SetSelected(sd.settings.GetLanguage())
}

// onBrowseDirectory handles directory browsing
func (sd *SettingsDialog) onBrowseDirectory() {
	dialog.ShowFolderOpen(func(uri fyne.ListableURI, err error) {
		if err != nil || uri == nil {
			return
		}
		sd.libraryDirEntry.SetText(uri.Path())
	}, sd.window)
}

// onSave handles saving the settings
func (sd *SettingsDialog) onSave(confirmed bool) {
	if !confirmed {
		return
	}
	sd.apply()
	if sd.onSaved != nil {
		sd.onSaved()
	}
}

// apply writes the form values to settings. Empty or non-numeric fields
// keep their stored value; numbers are clamped by Settings.
func (sd *SettingsDialog) apply() {
	if dir := sd.libraryDirEntry.Text; dir != "" {
		sd.settings.SetLibraryDirectory(dir)
	}
	sd.settings.SetSourceURL(sd.sourceURLEntry.Text)

	setInt(sd.cacheEntries.Text, sd.settings.SetCacheMaxEntries)
	setInt(sd.cacheMBEntry.Text, sd.settings.SetCacheMaxMB)
	setInt(sd.workersEntry.Text, sd.settings.SetDecodeWorkers)
	setInt(sd.radiusEntry.Text, sd.settings.SetDecodeRadius)
	setInt(sd.concurrencyEntry.Text, sd.settings.SetFetchConcurrency)

	if sd.languageSelect.Selected != "" {
		sd.settings.SetLanguage(sd.languageSelect.Selected)
	}
}

func setInt(text string, set func(int)) {
	if text == "" {
		return
	}
	if n, err := strconv.Atoi(text); err == nil {
		set(n)
	}
}
