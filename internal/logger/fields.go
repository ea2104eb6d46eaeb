package logger

// Standard field keys. Use these consistently so log lines can be filtered
// per gallery, per cache key or per run.
const (
	KeyGalleryID  = "gallery_id"
	KeyGeneration = "generation"
	KeySessionID  = "session_id"
	KeyPage       = "page"
	KeyPages      = "pages"
	KeyTotal      = "total"
	KeyURL        = "url"
	KeyKey        = "key"
	KeyIndex      = "index"
	KeyPivot      = "pivot"
	KeyPriority   = "priority"
	KeyGroup      = "group"
	KeyPath       = "path"
	KeySize       = "size"
	KeyAttempt    = "attempt"
	KeyError      = "error"
	KeyDurationMs = "duration_ms"
	KeyTaskID     = "task_id"

	// Cache layer
	KeyCacheCount    = "cache_count"
	KeyCacheSize     = "cache_size"
	KeyCacheCapacity = "cache_capacity"
	KeyEvicted       = "evicted"
)

// Err returns the error field pair, tolerating nil errors
func Err(err error) []any {
	if err == nil {
		return []any{KeyError, ""}
	}
	return []any{KeyError, err.Error()}
}
