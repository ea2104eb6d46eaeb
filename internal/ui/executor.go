package ui

import (
	"fyne.io/fyne/v2"

	"github.com/ytget/manga-reader/internal/dispatch"
)

// FyneExecutor runs actions on the Fyne event loop.
var FyneExecutor dispatch.Executor = dispatch.ExecutorFunc(fyne.Do)
