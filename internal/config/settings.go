package config

import (
	"fyne.io/fyne/v2"

	"github.com/ytget/manga-reader/internal/platform"
)

// Settings keys for Fyne preferences
const (
	KeyLibraryDir       = "library_directory"
	KeySourceURL        = "source_url"
	KeyCacheMaxEntries  = "cache_max_entries"
	KeyCacheMaxMB       = "cache_max_mb"
	KeyDecodeWorkers    = "decode_workers"
	KeyDecodeRadius     = "decode_radius"
	KeyFetchConcurrency = "fetch_concurrency"
	KeyLanguage         = "app_language"
)

// Default values and bounds for user-editable settings
const (
	DefaultCacheMaxMB = int(DefaultCacheMaxBytes >> 20)
	DefaultLanguage   = "system"

	MinCacheMaxEntries  = 16
	MaxCacheMaxEntries  = 100000
	MinCacheMaxMB       = 16
	MaxCacheMaxMB       = 8192
	MaxDecodeWorkers    = 16
	MaxDecodeRadius     = 500
	MaxFetchConcurrency = 64
)

// Settings manages application configuration
type Settings struct {
	app fyne.App
}

// NewSettings creates a new settings manager
func NewSettings(app fyne.App) *Settings {
	return &Settings{app: app}
}

// GetLibraryDirectory returns the configured library directory
func (s *Settings) GetLibraryDirectory() string {
	dir := s.app.Preferences().String(KeyLibraryDir)
	if dir == "" {
		defaultDir, err := platform.GetHomeLibraryDir()
		if err != nil {
			defaultDir = "/tmp/manga"
		}
		s.SetLibraryDirectory(defaultDir)
		return defaultDir
	}
	return dir
}

// SetLibraryDirectory sets the library directory
func (s *Settings) SetLibraryDirectory(dir string) {
	s.app.Preferences().SetString(KeyLibraryDir, dir)
}

// GetSourceURL returns the gallery source base URL, empty when unset
func (s *Settings) GetSourceURL() string {
	return s.app.Preferences().String(KeySourceURL)
}

// SetSourceURL sets the gallery source base URL
func (s *Settings) SetSourceURL(url string) {
	s.app.Preferences().SetString(KeySourceURL, url)
}

// GetCacheMaxEntries returns the asset cache entry limit
func (s *Settings) GetCacheMaxEntries() int {
	return s.intOrDefault(KeyCacheMaxEntries, DefaultCacheMaxEntries)
}

// SetCacheMaxEntries sets the asset cache entry limit
func (s *Settings) SetCacheMaxEntries(n int) {
	s.app.Preferences().SetInt(KeyCacheMaxEntries, clamp(n, MinCacheMaxEntries, MaxCacheMaxEntries))
}

// GetCacheMaxMB returns the asset cache byte limit in MiB
func (s *Settings) GetCacheMaxMB() int {
	return s.intOrDefault(KeyCacheMaxMB, DefaultCacheMaxMB)
}

// SetCacheMaxMB sets the asset cache byte limit in MiB
func (s *Settings) SetCacheMaxMB(mb int) {
	s.app.Preferences().SetInt(KeyCacheMaxMB, clamp(mb, MinCacheMaxMB, MaxCacheMaxMB))
}

// GetDecodeWorkers returns the number of decode workers
func (s *Settings) GetDecodeWorkers() int {
	return s.intOrDefault(KeyDecodeWorkers, DefaultDecodeWorkers)
}

// SetDecodeWorkers sets the number of decode workers
func (s *Settings) SetDecodeWorkers(n int) {
	s.app.Preferences().SetInt(KeyDecodeWorkers, clamp(n, 1, MaxDecodeWorkers))
}

// GetDecodeRadius returns the decode radius around the selected item.
// Zero is a valid radius, so the default only applies when the key is unset.
func (s *Settings) GetDecodeRadius() int {
	return s.app.Preferences().IntWithFallback(KeyDecodeRadius, DefaultDecodeRadius)
}

// SetDecodeRadius sets the decode radius
func (s *Settings) SetDecodeRadius(n int) {
	s.app.Preferences().SetInt(KeyDecodeRadius, clamp(n, 0, MaxDecodeRadius))
}

// GetFetchConcurrency returns the number of concurrent page fetches
func (s *Settings) GetFetchConcurrency() int {
	return s.intOrDefault(KeyFetchConcurrency, DefaultFetchConcurrency)
}

// SetFetchConcurrency sets the number of concurrent page fetches
func (s *Settings) SetFetchConcurrency(n int) {
	s.app.Preferences().SetInt(KeyFetchConcurrency, clamp(n, 1, MaxFetchConcurrency))
}

// GetLanguage returns the configured language
func (s *Settings) GetLanguage() string {
	lang := s.app.Preferences().String(KeyLanguage)
	if lang == "" {
		s.SetLanguage(DefaultLanguage)
		return DefaultLanguage
	}
	return lang
}

// SetLanguage sets the application language
func (s *Settings) SetLanguage(lang string) {
	s.app.Preferences().SetString(KeyLanguage, lang)
}

// GetLanguageOptions returns available language options
func (s *Settings) GetLanguageOptions() map[string]string {
	return map[string]string{
		"system": "System Default",
		"en":     "English",
		"ru":     "Русский",
		"pt":     "Português",
	}
}

// Pipeline overlays the user's preferences on base. The result is validated
// before it is returned.
func (s *Settings) Pipeline(base *Pipeline) (*Pipeline, error) {
	cfg := *base
	cfg.Library = s.GetLibraryDirectory()
	if url := s.GetSourceURL(); url != "" {
		cfg.Download.SourceURL = url
	}
	cfg.Cache.MaxEntries = s.GetCacheMaxEntries()
	cfg.Cache.MaxBytes = ByteSize(s.GetCacheMaxMB()) << 20
	cfg.Decode.Workers = s.GetDecodeWorkers()
	cfg.Decode.Radius = s.GetDecodeRadius()
	cfg.Download.Concurrency = s.GetFetchConcurrency()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (s *Settings) intOrDefault(key string, def int) int {
	value := s.app.Preferences().Int(key)
	if value <= 0 {
		return def
	}
	return value
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
