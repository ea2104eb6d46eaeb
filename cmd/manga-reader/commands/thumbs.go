package commands

import (
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/ytget/manga-reader/internal/decode"
	"github.com/ytget/manga-reader/internal/dispatch"
	"github.com/ytget/manga-reader/internal/platform"
	"github.com/ytget/manga-reader/internal/thumbnail"
)

var thumbsCmd = &cobra.Command{
	Use:   "thumbs <dir>",
	Short: "Decode thumbnails of a local gallery folder",
	Long: `Run the thumbnail decoder over every image of a folder, the way the
reader does when the folder is opened, and report the result per page.`,
	Args: cobra.ExactArgs(1),
	RunE: runThumbs,
}

type thumbRow struct {
	name   string
	width  int
	height int
	size   int64
	err    error
}

func runThumbs(cmd *cobra.Command, args []string) error {
	files, err := platform.ListImages(args[0])
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no images in %s", args[0])
	}

	set, err := assemble(cmd.Context(), true)
	if err != nil {
		return err
	}
	defer closeSet(set)

	rows := make([]thumbRow, len(files))
	remaining := len(files)
	done := make(chan struct{})

	// Serial runs OnComplete on one goroutine, so rows needs no lock
	executor := dispatch.NewSerial()
	defer executor.Close()

	sched := decode.New(set.Cache, set.Thumbnailer, executor, decode.Options{
		Workers: cfg.Decode.Workers,
		Group:   filepath.Base(args[0]),
		OnComplete: func(r decode.Result) {
			row := thumbRow{name: filepath.Base(r.Key), err: r.Err}
			if r.Asset != nil {
				row.width, row.height = r.Asset.Width, r.Asset.Height
				row.size = thumbnail.SizeOf(r.Asset)
			}
			rows[r.SourceIndex] = row
			remaining--
			if remaining == 0 {
				close(done)
			}
		},
		Metrics: set.Metrics,
	})
	sched.Start()
	defer sched.Close()

	start := time.Now()
	sched.Sweep(0, len(files), func(i int) string { return files[i] })

	select {
	case <-done:
	case <-cmd.Context().Done():
		return cmd.Context().Err()
	}

	failed := 0
	table := make([][]string, 0, len(rows))
	for i, r := range rows {
		status := "ok"
		if r.err != nil {
			status = r.err.Error()
			failed++
		}
		table = append(table, []string{
			strconv.Itoa(i + 1),
			r.name,
			fmt.Sprintf("%dx%d", r.width, r.height),
			humanize.IBytes(uint64(r.size)),
			status,
		})
	}
	printTable(cmd.OutOrStdout(), []string{"#", "File", "Thumbnail", "Memory", "Status"}, table)

	stats := sched.Stats()
	entries, bytes := set.Cache.Usage()
	fmt.Fprintf(cmd.OutOrStdout(), "\n%d decoded, %d failed in %s; cache holds %d entries (%s)\n",
		stats.Completed, failed, time.Since(start).Round(time.Millisecond), entries, humanize.IBytes(uint64(bytes)))
	return nil
}
