package cli

import (
	"encoding/json"
	"errors"

	"github.com/spf13/cobra"
)

var errNotReady = errors.New("media tools are missing required encoders")

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check that ffmpeg and ffprobe can produce the export profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		tool, err := newTool()
		if err != nil {
			return err
		}

		caps, err := tool.RunDoctor(cmd.Context())
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(caps); err != nil {
			return err
		}
		if !caps.Ready {
			return errNotReady
		}
		return nil
	},
}
