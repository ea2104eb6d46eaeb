// Package thumbnail decodes library images and downloaded pages into
// display-sized assets for the asset cache.
package thumbnail

import (
	"bytes"
	"context"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // register webp with image.Decode

	"github.com/ytget/manga-reader/internal/model"
)

// Default thumbnail bounds
const (
	DefaultMaxWidth  = 240
	DefaultMaxHeight = 340
)

// BytesLookup returns in-memory image bytes for a key, if any.
type BytesLookup func(key string) ([]byte, bool)

// Thumbnailer decodes images and scales them to fit within MaxWidth x
// MaxHeight, preserving aspect ratio. EXIF orientation is applied.
type Thumbnailer struct {
	MaxWidth  int
	MaxHeight int

	// Lookup, when set, is consulted before treating a key as a file path.
	Lookup BytesLookup
}

// New returns a thumbnailer with the given bounds; non-positive values fall
// back to the defaults.
func New(maxWidth, maxHeight int) *Thumbnailer {
	if maxWidth <= 0 {
		maxWidth = DefaultMaxWidth
	}
	if maxHeight <= 0 {
		maxHeight = DefaultMaxHeight
	}
	return &Thumbnailer{MaxWidth: maxWidth, MaxHeight: maxHeight}
}

// Decode loads key (a file path, or a key known to Lookup) and returns the
// scaled asset with its in-memory size.
func (t *Thumbnailer) Decode(ctx context.Context, key string) (*model.Asset, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	if t.Lookup != nil {
		if data, ok := t.Lookup(key); ok {
			return t.DecodeBytes(ctx, data)
		}
	}

	img, err := imaging.Open(key, imaging.AutoOrientation(true))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open image %s: %w", key, err)
	}
	return t.scale(ctx, img)
}

// DecodeBytes decodes an encoded image held in memory.
func (t *Thumbnailer) DecodeBytes(ctx context.Context, data []byte) (*model.Asset, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to decode image: %w", err)
	}
	return t.scale(ctx, img)
}

func (t *Thumbnailer) scale(ctx context.Context, img image.Image) (*model.Asset, int64, error) {
	// Resizing is the expensive step; skip it if the request is gone.
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	b := img.Bounds()
	if b.Dx() > t.MaxWidth || b.Dy() > t.MaxHeight {
		img = imaging.Fit(img, t.MaxWidth, t.MaxHeight, imaging.Lanczos)
	}

	b = img.Bounds()
	asset := &model.Asset{Image: img, Width: b.Dx(), Height: b.Dy()}
	return asset, SizeOf(asset), nil
}

// SizeOf estimates the memory held by an asset: 4 bytes per pixel plus any
// encoded data it carries.
func SizeOf(a *model.Asset) int64 {
	if a == nil {
		return 0
	}
	return int64(a.Width)*int64(a.Height)*4 + int64(len(a.Data))
}
