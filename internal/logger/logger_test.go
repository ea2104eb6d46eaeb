package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "WARN", "text")
	t.Cleanup(func() { InitWithWriter(&bytes.Buffer{}, "INFO", "text") })

	Info("hidden message")
	Warn("visible message", KeyGalleryID, "g1")

	out := buf.String()
	assert.NotContains(t, out, "hidden message")
	assert.Contains(t, out, "visible message")
	assert.Contains(t, out, "gallery_id=g1")
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "DEBUG", "json")
	t.Cleanup(func() { InitWithWriter(&bytes.Buffer{}, "INFO", "text") })

	Debug("decoded", KeyKey, "/lib/a.png", KeySize, 1024)

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &rec))
	assert.Equal(t, "decoded", rec["msg"])
	assert.Equal(t, "/lib/a.png", rec[KeyKey])
	assert.EqualValues(t, 1024, rec[KeySize])
}

func TestInvalidSettingsIgnored(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "INFO", "text")
	t.Cleanup(func() { InitWithWriter(&bytes.Buffer{}, "INFO", "text") })

	SetLevel("LOUD")
	SetFormat("xml")

	Debug("still filtered")
	Info("still text")
	assert.NotContains(t, buf.String(), "still filtered")
	assert.Contains(t, buf.String(), "msg=\"still text\"")
}

func TestErr(t *testing.T) {
	assert.Equal(t, []any{KeyError, "boom"}, Err(errors.New("boom")))
	assert.Equal(t, []any{KeyError, ""}, Err(nil))
}
