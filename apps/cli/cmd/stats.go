package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show storage statistics for the capture store",
	Args:  cobra.NoArgs,
	RunE:  statsCommand,
}

func statsCommand(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}

	stats, err := st.Stats()
	if err != nil {
		return err
	}

	bold := color.New(color.Bold).SprintFunc()
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "%s %s\n", bold("Store:"), st.Root())
	fmt.Fprintf(out, "%s %d functions, %d slots, %s\n",
		bold("Total:"), stats.Functions, stats.Slots, formatBytes(stats.Bytes))

	for _, fs := range stats.PerFunction {
		latest := "-"
		if !fs.Latest.IsZero() {
			latest = fs.Latest.Format("2006-01-02 15:04:05")
		}
		fmt.Fprintf(out, "  %-40s %3d slots  %10s  latest %s\n",
			fs.FunctionID, fs.Slots, formatBytes(fs.Bytes), latest)
	}
	return nil
}

func formatBytes(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MiB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KiB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
