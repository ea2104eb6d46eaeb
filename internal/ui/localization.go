package ui

// Localization manages UI text translations
type Localization struct {
	currentLanguage string
	texts           map[string]map[string]string
}

// Text keys for localization
const (
	KeyAppTitle          = "app_title"
	KeyOpen              = "open"
	KeyOpenFolder        = "open_folder"
	KeyStop              = "stop"
	KeyExport            = "export"
	KeyReveal            = "reveal"
	KeySettings          = "settings"
	KeyFile              = "file"
	KeyLanguage          = "language"
	KeyLibraryDirectory  = "library_directory"
	KeySourceURL         = "source_url"
	KeyCacheEntries      = "cache_entries"
	KeyCacheSize         = "cache_size"
	KeyDecodeWorkers     = "decode_workers"
	KeyDecodeRadius      = "decode_radius"
	KeyFetchConcurrency  = "fetch_concurrency"
	KeySave              = "save"
	KeyCancel            = "cancel"
	KeyBrowse            = "browse"
	KeyEnterGallery      = "enter_gallery"
	KeySettingsSaved     = "settings_saved"
	KeyRestartRequired   = "restart_required"
	KeyResolving         = "resolving"
	KeyDownloading       = "downloading"
	KeyDownloadCompleted = "download_completed"
	KeyDownloadCancelled = "download_cancelled"
	KeyDownloadFailed    = "download_failed"
	KeyFromStore         = "from_store"
	KeyPagesSkipped      = "pages_skipped"
	KeyNoSource          = "no_source"
	KeyPleaseEnterID     = "please_enter_id"
	KeyNothingToExport   = "nothing_to_export"
	KeyExportStarted     = "export_started"
	KeyExportCompleted   = "export_completed"
	KeyExportFailed      = "export_failed"
	KeyErrorOpeningFile  = "error_opening_file"
	KeyNoImages          = "no_images"
)

// NewLocalization creates a new localization manager
func NewLocalization() *Localization {
	l := &Localization{
		currentLanguage: "en",
		texts:           make(map[string]map[string]string),
	}

	l.initializeTexts()
	return l
}

// SetLanguage sets the current language
func (l *Localization) SetLanguage(lang string) {
	if lang == "system" {
		// Use system locale - simplified to English for now
		lang = "en"
	}

	if _, exists := l.texts[lang]; exists {
		l.currentLanguage = lang
	}
}

// GetText returns localized text for the given key
func (l *Localization) GetText(key string) string {
	if texts, exists := l.texts[l.currentLanguage]; exists {
		if text, found := texts[key]; found {
			return text
		}
	}

	// Fallback to English
	if texts, exists := l.texts["en"]; exists {
		if text, found := texts[key]; found {
			return text
		}
	}

	return key
}

// GetCurrentLanguage returns the current language code
func (l *Localization) GetCurrentLanguage() string {
	return l.currentLanguage
}

// GetAvailableLanguages returns map of available languages with their display names
func (l *Localization) GetAvailableLanguages() map[string]string {
	return map[string]string{
		"en": "English",
		"ru": "Русский",
		"pt": "Português",
	}
}

// initializeTexts initializes all text translations
func (l *Localization) initializeTexts() {
	l.texts["en"] = map[string]string{
		KeyAppTitle:          "Manga Reader",
		KeyOpen:              "Open",
		KeyOpenFolder:        "Open Folder",
		KeyStop:              "Stop",
		KeyExport:            "Export CBZ",
		KeyReveal:            "Reveal",
		KeySettings:          "Settings",
		KeyFile:              "File",
		KeyLanguage:          "Language",
		KeyLibraryDirectory:  "Library Directory",
		KeySourceURL:         "Gallery Source URL",
		KeyCacheEntries:      "Cache Entries",
		KeyCacheSize:         "Cache Size (MiB)",
		KeyDecodeWorkers:     "Decode Workers",
		KeyDecodeRadius:      "Decode Radius",
		KeyFetchConcurrency:  "Parallel Page Fetches",
		KeySave:              "Save",
		KeyCancel:            "Cancel",
		KeyBrowse:            "Browse",
		KeyEnterGallery:      "Enter gallery ID or folder path",
		KeySettingsSaved:     "Settings saved successfully!",
		KeyRestartRequired:   "Some changes apply after restart",
		KeyResolving:         "Resolving pages...",
		KeyDownloading:       "Downloading",
		KeyDownloadCompleted: "Download completed",
		KeyDownloadCancelled: "Download cancelled",
		KeyDownloadFailed:    "Download failed",
		KeyFromStore:         "Opened from library",
		KeyPagesSkipped:      "pages skipped",
		KeyNoSource:          "No gallery source configured",
		KeyPleaseEnterID:     "Please enter a gallery ID or folder",
		KeyNothingToExport:   "Nothing to export yet",
		KeyExportStarted:     "Export started",
		KeyExportCompleted:   "Export completed",
		KeyExportFailed:      "Export failed",
		KeyErrorOpeningFile:  "Error opening file",
		KeyNoImages:          "No images found in folder",
	}

	l.texts["ru"] = map[string]string{
		KeyAppTitle:          "Читалка манги",
		KeyOpen:              "Открыть",
		KeyOpenFolder:        "Открыть папку",
		KeyStop:              "Стоп",
		KeyExport:            "Экспорт CBZ",
		KeyReveal:            "Показать",
		KeySettings:          "Настройки",
		KeyFile:              "Файл",
		KeyLanguage:          "Язык",
		KeyLibraryDirectory:  "Папка библиотеки",
		KeySourceURL:         "URL источника галерей",
		KeyCacheEntries:      "Записей в кэше",
		KeyCacheSize:         "Размер кэша (МиБ)",
		KeyDecodeWorkers:     "Потоков декодирования",
		KeyDecodeRadius:      "Радиус декодирования",
		KeyFetchConcurrency:  "Параллельных загрузок",
		KeySave:              "Сохранить",
		KeyCancel:            "Отмена",
		KeyBrowse:            "Обзор",
		KeyEnterGallery:      "Введите ID галереи или путь к папке",
		KeySettingsSaved:     "Настройки успешно сохранены!",
		KeyRestartRequired:   "Часть изменений вступит в силу после перезапуска",
		KeyResolving:         "Получение списка страниц...",
		KeyDownloading:       "Загрузка",
		KeyDownloadCompleted: "Загрузка завершена",
		KeyDownloadCancelled: "Загрузка отменена",
		KeyDownloadFailed:    "Ошибка загрузки",
		KeyFromStore:         "Открыто из библиотеки",
		KeyPagesSkipped:      "страниц пропущено",
		KeyNoSource:          "Источник галерей не настроен",
		KeyPleaseEnterID:     "Введите ID галереи или папку",
		KeyNothingToExport:   "Пока нечего экспортировать",
		KeyExportStarted:     "Экспорт начат",
		KeyExportCompleted:   "Экспорт завершён",
		KeyExportFailed:      "Ошибка экспорта",
		KeyErrorOpeningFile:  "Ошибка открытия файла",
		KeyNoImages:          "В папке нет изображений",
	}

	l.texts["pt"] = map[string]string{
		KeyAppTitle:          "Leitor de Mangá",
		KeyOpen:              "Abrir",
		KeyOpenFolder:        "Abrir Pasta",
		KeyStop:              "Parar",
		KeyExport:            "Exportar CBZ",
		KeyReveal:            "Mostrar",
		KeySettings:          "Configurações",
		KeyFile:              "Arquivo",
		KeyLanguage:          "Idioma",
		KeyLibraryDirectory:  "Diretório da Biblioteca",
		KeySourceURL:         "URL da Fonte de Galerias",
		KeyCacheEntries:      "Entradas no Cache",
		KeyCacheSize:         "Tamanho do Cache (MiB)",
		KeyDecodeWorkers:     "Workers de Decodificação",
		KeyDecodeRadius:      "Raio de Decodificação",
		KeyFetchConcurrency:  "Downloads de Páginas Paralelos",
		KeySave:              "Salvar",
		KeyCancel:            "Cancelar",
		KeyBrowse:            "Navegar",
		KeyEnterGallery:      "Digite o ID da galeria ou o caminho da pasta",
		KeySettingsSaved:     "Configurações salvas com sucesso!",
		KeyRestartRequired:   "Algumas alterações valem após reiniciar",
		KeyResolving:         "Obtendo páginas...",
		KeyDownloading:       "Baixando",
		KeyDownloadCompleted: "Download concluído",
		KeyDownloadCancelled: "Download cancelado",
		KeyDownloadFailed:    "Falha no download",
		KeyFromStore:         "Aberto da biblioteca",
		KeyPagesSkipped:      "páginas ignoradas",
		KeyNoSource:          "Nenhuma fonte de galerias configurada",
		KeyPleaseEnterID:     "Digite o ID da galeria ou uma pasta",
		KeyNothingToExport:   "Nada para exportar ainda",
		KeyExportStarted:     "Exportação iniciada",
		KeyExportCompleted:   "Exportação concluída",
		KeyExportFailed:      "Falha na exportação",
		KeyErrorOpeningFile:  "Erro ao abrir arquivo",
		KeyNoImages:          "Nenhuma imagem na pasta",
	}
}
