package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/snapcap/packages/export"
)

var exportDBFlag string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export captures to a SQLite database",
	Long: `Export every live capture to a SQLite database for querying with
ordinary SQL tools. Exports are idempotent; re-running replaces rows.

Example:
  snapcap export --db captures.db`,
	Args: cobra.NoArgs,
	RunE: exportCommand,
}

func init() {
	exportCmd.Flags().StringVar(&exportDBFlag, "db", "snapcap.db", "SQLite database file to write")
}

func exportCommand(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}

	n, err := export.ToSQLite(cmd.Context(), st, exportDBFlag)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "exported %d captures to %s\n", n, exportDBFlag)
	return nil
}
