package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/snapcap/packages/core/config"
	"github.com/abdul-hamid-achik/snapcap/packages/store"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

var pathFlag string

var rootCmd = &cobra.Command{
	Use:   "snapcap",
	Short: "Inspect and manage captured function calls",
	Long: `snapcap records a function's real call arguments while the program
runs, so tests can replay them instead of hand-written fixtures. This
tool inspects and manages the resulting capture store.`,
}

func Execute(v, bt string) {
	version = v
	buildTime = bt
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&pathFlag, "path", "p", "", "capture store root (default from config / SNAPCAP_PATH)")

	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(clearCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(versionCmd)
}

// openStore resolves the store root from the --path flag, config file
// and environment, in that order.
func openStore() (*store.Store, error) {
	path := pathFlag
	if path == "" {
		cfg, err := config.LoadConfig("")
		if err != nil {
			return nil, err
		}
		path = cfg.Path
	}
	return store.New(path)
}
