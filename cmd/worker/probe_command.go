package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"videoproc/internal/media/ffprobe"
	"videoproc/internal/worker/transcoder"
)

func newProbeCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "probe <file>",
		Short: "Show a video's dimensions and the output size it would get",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			result, err := ffprobe.Inspect(cmd.Context(), cfg.Transcode.FFprobePath, args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(result)
			}

			w, h, err := result.Frame()
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			target := cfg.Transcode.TargetHeight
			fmt.Fprintf(out, "Input:    %dx%d\n", w, h)
			fmt.Fprintf(out, "Output:   %dx%d (%s)\n", transcoder.ExpectedWidth(w, h, target), target, transcoder.ScaleFilter(target))
			if s, ok := result.Video(); ok && s.Rotation() != 0 {
				fmt.Fprintf(out, "Rotation: %d\n", s.Rotation())
			}
			if d, ok := result.Duration(); ok {
				fmt.Fprintf(out, "Duration: %.2fs\n", d.Seconds())
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the raw probe result as JSON")
	return cmd
}
