package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"

	"github.com/abdul-hamid-achik/snapcap/packages/loader"
	"github.com/abdul-hamid-achik/snapcap/packages/store"
)

var (
	showIndexFlag int
	showQueryFlag string
)

var showCmd = &cobra.Command{
	Use:   "show <function-id>",
	Short: "Show a captured call's arguments",
	Long: `Show one capture as JSON, decoded with the backend it was stored
with. --index selects older captures (0 = latest). --query extracts a
JSON path from the rendered capture.

Examples:
  snapcap show myapp.ProcessOrder
  snapcap show myapp.ProcessOrder --index 1
  snapcap show myapp.ProcessOrder --query args.order.total`,
	Args: cobra.ExactArgs(1),
	RunE: showCommand,
}

func init() {
	showCmd.Flags().IntVarP(&showIndexFlag, "index", "i", 0, "which capture to show (0 = latest)")
	showCmd.Flags().StringVarP(&showQueryFlag, "query", "q", "", "JSON path to extract from the capture")
}

func showCommand(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	l, err := loader.New(st.Root())
	if err != nil {
		return err
	}

	functionID := args[0]
	dict, err := l.LoadDict(functionID, store.ByIndex(showIndexFlag))
	if err != nil {
		return err
	}
	c, err := st.Get(functionID, store.ByIndex(showIndexFlag))
	if err != nil {
		return err
	}

	rendered := map[string]any{
		"function_id": c.FunctionID,
		"sequence_id": c.Sequence,
		"backend_tag": c.Backend,
		"timestamp":   c.Timestamp,
		"args":        renderArgs(dict, c),
	}
	if len(c.Kwargs) > 0 {
		kwargs := make(map[string]any, len(c.Kwargs))
		for _, na := range dict {
			if _, ok := c.Kwargs[na.Name]; ok {
				kwargs[na.Name] = na.Value
			}
		}
		rendered["kwargs_only"] = kwargs
	}

	data, err := json.MarshalIndent(rendered, "", "  ")
	if err != nil {
		return err
	}

	if showQueryFlag != "" {
		result := gjson.GetBytes(data, showQueryFlag)
		if !result.Exists() {
			return fmt.Errorf("path %q not found in capture", showQueryFlag)
		}
		fmt.Fprintln(cmd.OutOrStdout(), result.String())
		return nil
	}

	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}

func renderArgs(dict []loader.NamedArg, c *store.Capture) []map[string]any {
	out := make([]map[string]any, 0, len(c.Args))
	for _, na := range dict {
		if _, ok := c.Kwargs[na.Name]; ok {
			continue
		}
		out = append(out, map[string]any{na.Name: na.Value})
	}
	return out
}
