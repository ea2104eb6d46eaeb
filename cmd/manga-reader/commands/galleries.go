package commands

import (
	"fmt"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var galleriesCmd = &cobra.Command{
	Use:     "galleries",
	Aliases: []string{"ls"},
	Short:   "List completed galleries in the store",
	Args:    cobra.NoArgs,
	RunE:    runGalleries,
}

var galleriesRmCmd = &cobra.Command{
	Use:   "rm <gallery-id>...",
	Short: "Remove galleries from the store",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runGalleriesRm,
}

func init() {
	galleriesCmd.AddCommand(galleriesRmCmd)
}

func runGalleries(cmd *cobra.Command, args []string) error {
	set, err := assemble(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer closeSet(set)

	summaries, err := set.Store.List()
	if err != nil {
		return err
	}
	if len(summaries) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No galleries stored.")
		return nil
	}

	rows := make([][]string, 0, len(summaries))
	for _, s := range summaries {
		rows = append(rows, []string{
			s.GalleryID,
			strconv.Itoa(s.Pages),
			strconv.Itoa(s.Missing),
			humanize.Bytes(uint64(s.Bytes)),
			humanize.Time(s.SavedAt),
		})
	}
	printTable(cmd.OutOrStdout(), []string{"Gallery", "Pages", "Skipped", "Size", "Saved"}, rows)
	return nil
}

func runGalleriesRm(cmd *cobra.Command, args []string) error {
	set, err := assemble(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer closeSet(set)

	for _, id := range args {
		if err := set.Store.Delete(id); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", id)
	}
	return nil
}
