package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, DefaultCacheMaxEntries, cfg.Cache.MaxEntries)
	assert.Equal(t, ByteSize(256<<20), cfg.Cache.MaxBytes)
	assert.Equal(t, "256 MiB", cfg.Cache.MaxBytes.String())
	assert.NotEmpty(t, cfg.Download.StoreDir)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultDecodeRadius, cfg.Decode.Radius)
	assert.Equal(t, DefaultRetryInterval, cfg.Download.RetryInterval)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
library: /srv/manga
cache:
  max_entries: 200
  max_bytes: 64MiB
decode:
  workers: 4
  radius: 12
download:
  source_url: https://manga.example/
  concurrency: 8
  retry_interval: 2s
logging:
  level: debug
  format: json
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/srv/manga", cfg.Library)
	assert.Equal(t, 200, cfg.Cache.MaxEntries)
	assert.Equal(t, ByteSize(64<<20), cfg.Cache.MaxBytes)
	assert.Equal(t, 4, cfg.Decode.Workers)
	assert.Equal(t, 12, cfg.Decode.Radius)
	assert.Equal(t, DefaultThumbWidth, cfg.Decode.ThumbWidth)
	assert.Equal(t, "https://manga.example/", cfg.Download.SourceURL)
	assert.Equal(t, 8, cfg.Download.Concurrency)
	assert.Equal(t, 2*time.Second, cfg.Download.RetryInterval)
	assert.Equal(t, DefaultMaxRetries, cfg.Download.MaxRetries)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("MANGAREADER_DECODE_RADIUS", "7")
	t.Setenv("MANGAREADER_CACHE_MAX_BYTES", "1GiB")

	cfg, err := Load(writeConfig(t, "decode:\n  radius: 30\n"))
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Decode.Radius)
	assert.Equal(t, ByteSize(1<<30), cfg.Cache.MaxBytes)
}

func TestLoad_Invalid(t *testing.T) {
	tests := map[string]string{
		"zero entries":    "cache:\n  max_entries: 0\n",
		"bad size":        "cache:\n  max_bytes: lots\n",
		"no workers":      "decode:\n  workers: 0\n",
		"bad url":         "download:\n  source_url: nope\n",
		"bad level":       "logging:\n  level: loud\n",
		"metrics no addr": "metrics:\n  enabled: true\n  addr: \"\"\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestLoad_MalformedFile(t *testing.T) {
	_, err := Load(writeConfig(t, "cache: [unterminated"))
	assert.Error(t, err)
}
