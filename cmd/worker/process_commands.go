package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"videoproc/internal/app"
	"videoproc/internal/worker/staging"
	"videoproc/internal/worker/transcoder"
)

func newSetupCommand(ctx *commandContext) *cobra.Command {
	var sweepAge time.Duration

	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Create the local staging directories",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			area := staging.New(cfg.Staging.RawDir, cfg.Staging.ProcessedDir, app.NewLogger(cfg))
			if err := area.Setup(); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Raw staging:       %s\n", area.RawDir())
			fmt.Fprintf(out, "Processed staging: %s\n", area.ProcessedDir())

			if sweepAge > 0 {
				result := area.Sweep(sweepAge)
				fmt.Fprintf(out, "Removed %d stale file(s)\n", len(result.Removed))
				if len(result.Errors) > 0 {
					return fmt.Errorf("sweep: %d file(s) could not be removed: %w", len(result.Errors), result.Errors[0])
				}
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&sweepAge, "sweep", 0, "Also remove staged files older than this age")
	return cmd
}

func newProcessCommand(ctx *commandContext) *cobra.Command {
	var showProgress bool

	cmd := &cobra.Command{
		Use:   "process <raw-object> [processed-object]",
		Short: "Fetch, transcode and publish one video",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			log := app.NewLogger(cfg)
			out := cmd.OutOrStdout()

			var progress func(transcoder.Progress)
			if showProgress {
				progress = func(p transcoder.Progress) {
					fmt.Fprintf(out, "  frame=%d time=%s speed=%s\n", p.Frame, p.OutTime.Truncate(time.Millisecond), p.Speed)
				}
			}

			runCtx := cmd.Context()
			if runCtx == nil {
				runCtx = context.Background()
			}
			a, err := app.Build(runCtx, cfg, log, progress)
			if err != nil {
				return err
			}
			defer a.Close(context.WithoutCancel(runCtx))

			var processed string
			if len(args) == 2 {
				processed = args[1]
			}
			res, err := a.Runner.Run(runCtx, args[0], processed)
			if err != nil {
				if res.FailedStage != "" {
					return fmt.Errorf("job %s failed while %s: %w", res.JobID, res.FailedStage, err)
				}
				return err
			}

			fmt.Fprintf(out, "Job:       %s\n", res.JobID)
			fmt.Fprintf(out, "Published: %s\n", res.ProcessedObject)
			if res.PublicURL != "" {
				fmt.Fprintf(out, "URL:       %s\n", res.PublicURL)
			}
			fmt.Fprintf(out, "Took:      %s\n", res.Duration.Truncate(time.Millisecond))
			return nil
		},
	}

	cmd.Flags().BoolVar(&showProgress, "progress", false, "Print transcoder progress")
	return cmd
}
