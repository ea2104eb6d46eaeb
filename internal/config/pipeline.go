package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/ytget/manga-reader/internal/platform"
)

// EnvPrefix prefixes environment overrides, e.g. MANGAREADER_CACHE_MAX_ENTRIES.
const EnvPrefix = "MANGAREADER"

// Pipeline defaults
const (
	DefaultCacheMaxEntries  = 512
	DefaultCacheMaxBytes    = ByteSize(256 << 20)
	DefaultDecodeWorkers    = 2
	DefaultDecodeRadius     = 24
	DefaultThumbWidth       = 240
	DefaultThumbHeight      = 340
	DefaultFetchConcurrency = 32
	DefaultMaxRetries       = 3
	DefaultRetryInterval    = 500 * time.Millisecond
	DefaultLogLevel         = "INFO"
	DefaultLogFormat        = "text"
	DefaultMetricsAddr      = "127.0.0.1:9464"
)

// ByteSize is a byte count that decodes from "256MiB", "1 GB" or a plain number.
type ByteSize uint64

// String renders the size in IEC units
func (b ByteSize) String() string {
	return humanize.IBytes(uint64(b))
}

// Pipeline is the static configuration of the asset pipeline, loaded from a
// YAML file and MANGAREADER_* environment variables.
type Pipeline struct {
	Library  string         `mapstructure:"library"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Decode   DecodeConfig   `mapstructure:"decode"`
	Download DownloadConfig `mapstructure:"download"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// CacheConfig bounds the shared asset cache
type CacheConfig struct {
	MaxEntries int      `mapstructure:"max_entries" validate:"gt=0"`
	MaxBytes   ByteSize `mapstructure:"max_bytes" validate:"gt=0"`
}

// DecodeConfig configures thumbnail decoding
type DecodeConfig struct {
	Workers     int `mapstructure:"workers" validate:"gte=1,lte=64"`
	Radius      int `mapstructure:"radius" validate:"gte=0"`
	ThumbWidth  int `mapstructure:"thumb_width" validate:"gte=16,lte=4096"`
	ThumbHeight int `mapstructure:"thumb_height" validate:"gte=16,lte=4096"`
}

// DownloadConfig configures gallery downloads
type DownloadConfig struct {
	SourceURL     string        `mapstructure:"source_url" validate:"omitempty,url"`
	Concurrency   int           `mapstructure:"concurrency" validate:"gte=1,lte=256"`
	MaxRetries    int           `mapstructure:"max_retries" validate:"gte=0,lte=20"`
	RetryInterval time.Duration `mapstructure:"retry_interval" validate:"gt=0"`
	StoreDir      string        `mapstructure:"store_dir"`
}

// LoggingConfig configures the logger package
type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`
	Format string `mapstructure:"format" validate:"required,oneof=text json"`
}

// MetricsConfig configures the Prometheus endpoint
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr" validate:"required_if=Enabled true"`
}

// Default returns the built-in configuration.
func Default() *Pipeline {
	library, err := platform.GetHomeLibraryDir()
	if err != nil {
		library = filepath.Join(os.TempDir(), platform.LibraryDirName)
	}
	storeDir, err := platform.GetStoreDir()
	if err != nil {
		storeDir = filepath.Join(os.TempDir(), platform.AppDirName, platform.StoreDirName)
	}

	return &Pipeline{
		Library: library,
		Cache: CacheConfig{
			MaxEntries: DefaultCacheMaxEntries,
			MaxBytes:   DefaultCacheMaxBytes,
		},
		Decode: DecodeConfig{
			Workers:     DefaultDecodeWorkers,
			Radius:      DefaultDecodeRadius,
			ThumbWidth:  DefaultThumbWidth,
			ThumbHeight: DefaultThumbHeight,
		},
		Download: DownloadConfig{
			Concurrency:   DefaultFetchConcurrency,
			MaxRetries:    DefaultMaxRetries,
			RetryInterval: DefaultRetryInterval,
			StoreDir:      storeDir,
		},
		Logging: LoggingConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
		Metrics: MetricsConfig{
			Addr: DefaultMetricsAddr,
		},
	}
}

// Load reads configuration from configPath (or the default location when
// empty) and the environment. A missing file yields defaults.
func Load(configPath string) (*Pipeline, error) {
	v := viper.New()
	setupViper(v, configPath)
	setDefaults(v, Default())

	if _, err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Pipeline
	if err := v.Unmarshal(&cfg, viper.DecodeHook(decodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// Validate checks field constraints and returns a readable error.
func (p *Pipeline) Validate() error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	err := validate.Struct(p)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: failed %q (got %v)", fe.Namespace(), fe.Tag(), fe.Value()))
	}
	return errors.New(strings.Join(msgs, "; "))
}

func setupViper(v *viper.Viper, configPath string) {
	// Example: MANGAREADER_LOGGING_LEVEL=DEBUG
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		return
	}
	v.AddConfigPath(getConfigDir())
	v.SetConfigName("config")
	v.SetConfigType("yaml")
}

// setDefaults registers every key so environment overrides apply without a
// config file.
func setDefaults(v *viper.Viper, d *Pipeline) {
	v.SetDefault("library", d.Library)
	v.SetDefault("cache.max_entries", d.Cache.MaxEntries)
	v.SetDefault("cache.max_bytes", uint64(d.Cache.MaxBytes))
	v.SetDefault("decode.workers", d.Decode.Workers)
	v.SetDefault("decode.radius", d.Decode.Radius)
	v.SetDefault("decode.thumb_width", d.Decode.ThumbWidth)
	v.SetDefault("decode.thumb_height", d.Decode.ThumbHeight)
	v.SetDefault("download.source_url", d.Download.SourceURL)
	v.SetDefault("download.concurrency", d.Download.Concurrency)
	v.SetDefault("download.max_retries", d.Download.MaxRetries)
	v.SetDefault("download.retry_interval", d.Download.RetryInterval)
	v.SetDefault("download.store_dir", d.Download.StoreDir)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("metrics.addr", d.Metrics.Addr)
}

// readConfigFile reports whether a config file was read.
func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}
	return true, nil
}

func decodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		byteSizeDecodeHook(),
		mapstructure.StringToTimeDurationHookFunc(),
	)
}

// byteSizeDecodeHook converts human-readable sizes and plain numbers to ByteSize.
func byteSizeDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(ByteSize(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			n, err := humanize.ParseBytes(v)
			if err != nil {
				return nil, fmt.Errorf("invalid size %q: %w", v, err)
			}
			return ByteSize(n), nil
		case int:
			if v < 0 {
				return nil, fmt.Errorf("invalid size %d", v)
			}
			return ByteSize(v), nil
		case int64:
			if v < 0 {
				return nil, fmt.Errorf("invalid size %d", v)
			}
			return ByteSize(v), nil
		case uint64:
			return ByteSize(v), nil
		case float64:
			if v < 0 {
				return nil, fmt.Errorf("invalid size %v", v)
			}
			return ByteSize(v), nil
		default:
			return data, nil
		}
	}
}

// getConfigDir returns $XDG_CONFIG_HOME/manga-reader or ~/.config/manga-reader.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, platform.AppDirName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", platform.AppDirName)
}
