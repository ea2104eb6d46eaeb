package commands

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/ytget/manga-reader/internal/archive"
	"github.com/ytget/manga-reader/internal/model"
	"github.com/ytget/manga-reader/internal/platform"
)

var fetchExport bool

var fetchCmd = &cobra.Command{
	Use:   "fetch <gallery-id>",
	Short: "Stream a gallery from the source into the store",
	Long: `Download every page of a gallery in reading order. Completed galleries
are kept in the store and served from it on the next fetch.

Examples:
  # Download a gallery
  manga-reader fetch 12345

  # Download and pack it as a CBZ into the library directory
  manga-reader fetch 12345 --export`,
	Args: cobra.ExactArgs(1),
	RunE: runFetch,
}

func init() {
	fetchCmd.Flags().BoolVar(&fetchExport, "export", false, "write a CBZ archive into the library directory")
}

func runFetch(cmd *cobra.Command, args []string) error {
	galleryID := args[0]

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	set, err := assemble(ctx, false)
	if err != nil {
		return err
	}
	defer closeSet(set)

	if set.Downloader == nil {
		return errors.New("no source configured: set download.source_url or MANGAREADER_DOWNLOAD_SOURCE_URL")
	}

	start := time.Now()
	session, err := set.Downloader.Start(ctx, galleryID)
	if err != nil {
		return err
	}

	// Interrupt sends the advisory remote cancel
	go func() {
		select {
		case <-ctx.Done():
			set.Downloader.CancelDownload(galleryID)
		case <-session.Done():
		}
	}()

	out := cmd.OutOrStdout()
	var (
		pages []model.Page
		size  uint64
	)
	for b := range session.Batches() {
		for _, p := range b.Pages {
			size += uint64(len(p.Data))
		}
		pages = append(pages, b.Pages...)
		if b.FromCache {
			fmt.Fprintf(out, "%s: %d pages from store\n", galleryID, b.Total)
			continue
		}
		fmt.Fprintf(out, "\r%s: %d/%d pages  %s", galleryID, b.CompletedCount, b.Total, humanize.Bytes(size))
	}
	fmt.Fprintln(out)

	if err := session.Wait(); err != nil {
		return err
	}

	missing := model.CountMissing(pages)
	fmt.Fprintf(out, "%s: %d pages, %d skipped, %s in %s\n",
		galleryID, len(pages), missing, humanize.Bytes(size), time.Since(start).Round(time.Millisecond))

	if !fetchExport {
		return nil
	}
	return exportGallery(cmd, galleryID, pages)
}

func exportGallery(cmd *cobra.Command, galleryID string, pages []model.Page) error {
	if err := platform.CreateDirectoryIfNotExists(cfg.Library); err != nil {
		return err
	}

	path := archive.GenerateOutputPath(cfg.Library, galleryID)
	if err := archive.WriteFile(cmd.Context(), path, pages, nil); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "exported %s\n", path)
	return nil
}
