package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-pupil/pkg/camera"
)

func newAnalyzeCommand(ctx *commandContext) *cobra.Command {
	var flags sessionFlags
	var duration time.Duration
	var limit int
	var out string

	cmd := &cobra.Command{
		Use:   "analyze <image>",
		Short: "Track the pupil in a still image and print the samples",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			sc, err := flags.apply(cfg.Session, cmd.Flags().Changed)
			if err != nil {
				return err
			}

			still, err := camera.LoadStill(args[0])
			if err != nil {
				return err
			}

			sess, err := newSession(cfg, sc, still)
			if err != nil {
				return err
			}
			defer sess.Close()

			if err := sess.Setup(cmd.Context()); err != nil {
				return fmt.Errorf("analyze: %w", err)
			}

			runCtx, cancel := context.WithTimeout(cmd.Context(), duration)
			defer cancel()

			start := time.Now()
			samples, err := sess.Run(runCtx)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			fmt.Fprintln(w, renderTable(sampleHeaders, sampleRows(samples, limit), sampleAligns))
			fmt.Fprintln(w, renderTable(
				[]string{"Metric", "Value"},
				summaryRows(sess.ID(), sess.State(), sess.ROI(), sess.Stats(), samples, time.Since(start)),
				[]columnAlignment{alignLeft, alignRight},
			))

			if out != "" {
				return writeSamples(out, samples)
			}
			return nil
		},
	}

	addSessionFlags(cmd, &flags)
	cmd.Flags().DurationVar(&duration, "duration", time.Second, "How long to track the image")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Show only the last n samples (0 shows all)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Write samples as JSON to this file")
	return cmd
}
