package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list [function-id]",
	Short: "List captured functions and their slots",
	Long: `List every function with captures in the store, or the individual
slots of one function.

Examples:
  snapcap list
  snapcap list myapp.ProcessOrder`,
	Args: cobra.MaximumNArgs(1),
	RunE: listCommand,
}

func listCommand(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}

	bold := color.New(color.Bold).SprintFunc()
	dim := color.New(color.Faint).SprintFunc()

	if len(args) == 1 {
		infos, err := st.List(args[0])
		if err != nil {
			return err
		}
		if len(infos) == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "no captures for %s\n", args[0])
			return nil
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%s\n", bold(args[0]))
		for i, info := range infos {
			fmt.Fprintf(cmd.OutOrStdout(), "  [%d] seq=%d  %s  %d bytes  %s\n",
				i, info.Sequence, info.Timestamp.Format("2006-01-02 15:04:05"),
				info.Size, dim(info.ID))
		}
		return nil
	}

	functions, err := st.Functions()
	if err != nil {
		return err
	}
	if len(functions) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no captures found")
		return nil
	}

	for _, fn := range functions {
		infos, err := st.List(fn)
		if err != nil {
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", bold(fn), dim(fmt.Sprintf("(%d slots)", len(infos))))
	}
	return nil
}
