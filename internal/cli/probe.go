package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/heimdex/heimdex-export/internal/export"
)

var probeCmd = &cobra.Command{
	Use:   "probe VIDEO",
	Short: "Print the stream properties the exporter reads from a video",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := export.ValidateInputPath(args[0]); err != nil {
			return err
		}

		tool, err := newTool()
		if err != nil {
			return err
		}

		info, err := tool.Probe(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("probe %s: %w", args[0], err)
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	},
}
