package main

import (
	"context"
	"fmt"
	"os"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ytget/manga-reader/internal/config"
	"github.com/ytget/manga-reader/internal/logger"
	"github.com/ytget/manga-reader/internal/metrics"
	"github.com/ytget/manga-reader/internal/platform"
	"github.com/ytget/manga-reader/internal/services"
	"github.com/ytget/manga-reader/internal/ui"
)

// Version is set during build via -ldflags "-X main.version=X.Y.Z"
var version = "dev"

const (
	AppID   = "com.ytget.manga-reader"
	AppName = "Manga Reader"
)

func main() {
	myApp := app.NewWithID(AppID)
	myApp.Settings().SetTheme(ui.NewReaderTheme())

	// Static config first, user preferences on top
	base, err := config.Load(os.Getenv(config.EnvPrefix + "_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		base = config.Default()
	}
	settings := config.NewSettings(myApp)
	cfg, err := settings.Pipeline(base)
	if err != nil {
		fmt.Fprintf(os.Stderr, "settings: %v\n", err)
		cfg = base
	}

	if err := logger.Init(logger.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format}); err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
	}
	logger.Info("starting", "app", AppName, "version", version)

	if err := platform.CreateDirectoryIfNotExists(cfg.Library); err != nil {
		logger.Warn("failed to ensure library dir", append([]any{logger.KeyPath, cfg.Library}, logger.Err(err)...)...)
	}

	svc, err := services.New(cfg, services.Options{
		Registerer: prometheus.DefaultRegisterer,
		UserAgent:  "manga-reader/" + version,
	})
	if err != nil {
		logger.Error("failed to assemble pipeline", logger.Err(err)...)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	if cfg.Metrics.Enabled {
		go func() {
			if err := metrics.Serve(ctx, cfg.Metrics.Addr, prometheus.DefaultGatherer); err != nil {
				logger.Warn("metrics endpoint stopped", logger.Err(err)...)
			}
		}()
	}

	myWindow := myApp.NewWindow(fmt.Sprintf("%s v%s", AppName, version))
	myWindow.Resize(fyne.NewSize(ui.DefaultWindowW, ui.DefaultWindowH))

	root := ui.NewRootUI(myWindow, myApp, cfg, ui.Services{
		Cache:         svc.Cache,
		Thumbnailer:   svc.Thumbnailer,
		Downloader:    svc.Downloader,
		Exporter:      svc.Exporter,
		DecodeMetrics: svc.Metrics,
	})

	myWindow.ShowAndRun()

	root.Close()
	cancel()
	if err := svc.Close(); err != nil {
		logger.Warn("shutdown", logger.Err(err)...)
	}
}
