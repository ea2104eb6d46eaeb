// Package download streams the pages of a remote gallery to a reader.
//
// Pages are fetched by a bounded pool and may complete in any order. The
// downloader buffers them by index and emits batches only when the run of
// contiguous pages advances, so consumers always see pages in ascending
// order. Pages that still fail after retries become gaps: they are delivered
// as Missing and listed in Batch.Skipped instead of renumbering the rest.
//
// Every Start begins a new generation. Starting another gallery, or calling
// CancelDownload, stops the previous run; once either call returns the old
// run delivers nothing more and its pages are never cached or persisted.
package download
