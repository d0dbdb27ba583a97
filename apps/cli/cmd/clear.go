package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var clearAllFlag bool

var clearCmd = &cobra.Command{
	Use:   "clear [function-id]",
	Short: "Delete captures for a function, or the whole store with --all",
	Args:  cobra.MaximumNArgs(1),
	RunE:  clearCommand,
}

func init() {
	clearCmd.Flags().BoolVar(&clearAllFlag, "all", false, "clear every function's captures")
}

func clearCommand(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}

	if clearAllFlag {
		functions, err := st.Functions()
		if err != nil {
			return err
		}
		for _, fn := range functions {
			if err := st.Clear(fn); err != nil {
				return err
			}
		}
		fmt.Fprintf(cmd.OutOrStdout(), "cleared %d functions\n", len(functions))
		return nil
	}

	if len(args) != 1 {
		return fmt.Errorf("a function id is required unless --all is given")
	}
	if err := st.Clear(args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "cleared %s\n", args[0])
	return nil
}
