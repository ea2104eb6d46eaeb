package thumbnail

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ytget/manga-reader/internal/model"
)

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestNew_Defaults(t *testing.T) {
	th := New(0, -1)
	assert.Equal(t, DefaultMaxWidth, th.MaxWidth)
	assert.Equal(t, DefaultMaxHeight, th.MaxHeight)
}

func TestDecode_ScalesToFit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "0001.png")
	require.NoError(t, os.WriteFile(path, encodePNG(t, 400, 200), 0o644))

	th := New(100, 100)
	asset, size, err := th.Decode(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, 100, asset.Width)
	assert.Equal(t, 50, asset.Height)
	assert.Equal(t, int64(100*50*4), size)
	require.NotNil(t, asset.Image)
}

func TestDecodeBytes_SmallImageKeepsSize(t *testing.T) {
	th := New(100, 100)
	asset, size, err := th.DecodeBytes(context.Background(), encodePNG(t, 20, 30))
	require.NoError(t, err)
	assert.Equal(t, 20, asset.Width)
	assert.Equal(t, 30, asset.Height)
	assert.Equal(t, int64(20*30*4), size)
}

func TestDecode_Errors(t *testing.T) {
	th := New(100, 100)

	_, _, err := th.Decode(context.Background(), filepath.Join(t.TempDir(), "missing.png"))
	assert.Error(t, err)

	_, _, err = th.DecodeBytes(context.Background(), []byte("not an image"))
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err = th.DecodeBytes(ctx, encodePNG(t, 4, 4))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDecode_UsesLookup(t *testing.T) {
	data := encodePNG(t, 10, 10)
	th := New(100, 100)
	th.Lookup = func(key string) ([]byte, bool) {
		if key == "g1/page-0001" {
			return data, true
		}
		return nil, false
	}

	asset, _, err := th.Decode(context.Background(), "g1/page-0001")
	require.NoError(t, err)
	assert.Equal(t, 10, asset.Width)
}

func TestSizeOf(t *testing.T) {
	assert.Zero(t, SizeOf(nil))
	assert.Equal(t, int64(2*3*4+5), SizeOf(&model.Asset{Width: 2, Height: 3, Data: make([]byte, 5)}))
}
