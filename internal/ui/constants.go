package ui

// UI-wide constants to avoid magic numbers/strings scattered across the codebase.

// Icons (emojis/symbols)
const (
	IconSettings = "⚙"
	IconFolder   = "📁"
	IconExport   = "📦"
	IconError    = "❌"
	IconLoading  = "…"
)

// Text fragments
const (
	MiddleDotSeparator  = " · "
	ProgressLabelFormat = "%d / %d"
)

// Layout sizing
const (
	ThumbCellWidth  float32 = 120
	ThumbCellHeight float32 = 170
	PreviewMinWidth float32 = 360
	GridSplitOffset         = 0.45
	DefaultWindowW  float32 = 1100
	DefaultWindowH  float32 = 760
	SettingsDialogW float32 = 520
	SettingsDialogH float32 = 480
)

// Cache groups and keys
const (
	ThumbGroup     = "thumbnails"
	ThumbKeyPrefix = "thumb:"
)
