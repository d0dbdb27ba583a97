package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the capture store and print new captures as they land",
	Long: `Watch the store root for newly published capture slots. Useful while
exercising an instrumented program to confirm captures are being
written.`,
	Args: cobra.NoArgs,
	RunE: watchCommand,
}

func watchCommand(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(st.Root()); err != nil {
		return fmt.Errorf("failed to watch %s: %w", st.Root(), err)
	}

	// Watch existing function directories; new ones are added as their
	// create events arrive on the root.
	entries, err := os.ReadDir(st.Root())
	if err == nil {
		for _, entry := range entries {
			if entry.IsDir() {
				_ = watcher.Add(filepath.Join(st.Root(), entry.Name()))
			}
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Watching %s for captures... (press Ctrl+C to stop)\n", st.Root())

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = watcher.Add(event.Name)
					continue
				}
			}
			// Slots are published by rename, which fsnotify reports as a
			// create of the final name.
			if event.Has(fsnotify.Create) && strings.HasSuffix(event.Name, ".capture") {
				rel, err := filepath.Rel(st.Root(), event.Name)
				if err != nil {
					rel = event.Name
				}
				fmt.Fprintf(cmd.OutOrStdout(), "captured: %s\n", rel)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: watch error: %v\n", err)
		}
	}
}
