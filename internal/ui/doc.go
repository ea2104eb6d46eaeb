package ui

// Package ui contains the Fyne-based reader window. It opens local folders
// and remote galleries, streams downloaded pages into a thumbnail grid, and
// drives the decode scheduler from the grid's bind and selection callbacks.
// All UI strings are localized via Localization.
