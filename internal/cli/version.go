package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/heimdex/heimdex-export/internal/config"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "heimdex-export %s (commit %s, built %s)\n",
			config.Version, config.GitCommit, config.BuildTime)
	},
}
