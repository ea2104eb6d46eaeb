package ui

import (
	"testing"

	"fyne.io/fyne/v2/test"

	"github.com/ytget/manga-reader/internal/config"
)

func TestSettingsDialog_LoadAndApply(t *testing.T) {
	app := test.NewApp()
	w := test.NewWindow(nil)
	defer w.Close()

	settings := config.NewSettings(app)
	settings.SetDecodeRadius(12)

	saved := false
	sd := NewSettingsDialog(settings, NewLocalization(), w, func() { saved = true })
	sd.loadCurrentSettings()

	if sd.radiusEntry.Text != "12" {
		t.Errorf("Expected radius entry 12, got %q", sd.radiusEntry.Text)
	}

	sd.radiusEntry.SetText("40")
	sd.cacheMBEntry.SetText("abc") // ignored
	sd.workersEntry.SetText("99")  // clamped
	sd.sourceURLEntry.SetText("https://manga.example/")
	sd.languageSelect.SetSelected("pt")

	sd.onSave(true)

	if !saved {
		t.Error("Expected onSaved to be called")
	}
	if got := settings.GetDecodeRadius(); got != 40 {
		t.Errorf("Expected radius 40, got %d", got)
	}
	if got := settings.GetCacheMaxMB(); got != config.DefaultCacheMaxMB {
		t.Errorf("Expected cache size unchanged, got %d", got)
	}
	if got := settings.GetDecodeWorkers(); got != config.MaxDecodeWorkers {
		t.Errorf("Expected workers clamped to %d, got %d", config.MaxDecodeWorkers, got)
	}
	if got := settings.GetSourceURL(); got != "https://manga.example/" {
		t.Errorf("Unexpected source URL %q", got)
	}
	if got := settings.GetLanguage(); got != "pt" {
		t.Errorf("Expected language pt, got %s", got)
	}
}

func TestSettingsDialog_CancelDoesNothing(t *testing.T) {
	app := test.NewApp()
	w := test.NewWindow(nil)
	defer w.Close()

	settings := config.NewSettings(app)
	sd := NewSettingsDialog(settings, NewLocalization(), w, func() { t.Error("onSaved must not run on cancel") })
	sd.loadCurrentSettings()
	sd.radiusEntry.SetText("3")

	sd.onSave(false)

	if got := settings.GetDecodeRadius(); got != config.DefaultDecodeRadius {
		t.Errorf("Expected default radius, got %d", got)
	}
}
