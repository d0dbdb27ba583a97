package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/xeipuuv/gojsonschema"

	"github.com/abdul-hamid-achik/snapcap/packages/store"
)

var validateFixFlag bool

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the capture store for corrupt indexes and orphaned slots",
	Long: `Validate every function's index file against its schema and report
orphaned slot files left behind by crashed writers. With --fix, orphans
and stale temp files are reclaimed.`,
	Args: cobra.NoArgs,
	RunE: validateCommand,
}

func init() {
	validateCmd.Flags().BoolVar(&validateFixFlag, "fix", false, "reclaim orphaned slots and stale temp files")
}

func validateCommand(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}

	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	out := cmd.OutOrStdout()

	schemaLoader := gojsonschema.NewStringLoader(store.IndexSchema)
	problems := 0

	entries, err := os.ReadDir(st.Root())
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		indexPath := filepath.Join(st.Root(), entry.Name(), "index.json")
		data, err := os.ReadFile(indexPath)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			fmt.Fprintf(out, "%s %s: %v\n", red("FAIL"), indexPath, err)
			problems++
			continue
		}

		result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewBytesLoader(data))
		if err != nil {
			fmt.Fprintf(out, "%s %s: %v\n", red("FAIL"), indexPath, err)
			problems++
			continue
		}
		if !result.Valid() {
			for _, desc := range result.Errors() {
				fmt.Fprintf(out, "%s %s: %s\n", red("FAIL"), indexPath, desc)
			}
			problems++
			continue
		}
		fmt.Fprintf(out, "%s %s\n", green("OK"), entry.Name())
	}

	if validateFixFlag {
		functions, err := st.Functions()
		if err != nil {
			return err
		}
		reclaimed := 0
		for _, fn := range functions {
			n, err := st.Reclaim(fn)
			if err != nil {
				fmt.Fprintf(out, "%s reclaim %s: %v\n", red("FAIL"), fn, err)
				problems++
				continue
			}
			reclaimed += n
		}
		fmt.Fprintf(out, "reclaimed %d files\n", reclaimed)
	}

	if problems > 0 {
		return fmt.Errorf("%d problems found", problems)
	}
	return nil
}
