package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-pupil/internal/log"
	"github.com/teslashibe/go-pupil/pkg/camera"
	"github.com/teslashibe/go-pupil/pkg/emitter"
	"github.com/teslashibe/go-pupil/pkg/session"
	"github.com/teslashibe/go-pupil/pkg/web"
)

func newTrackCommand(ctx *commandContext) *cobra.Command {
	var flags sessionFlags
	var file string
	var device int
	var duration time.Duration
	var out string
	var dashboard bool

	cmd := &cobra.Command{
		Use:   "track",
		Short: "Track the pupil in a camera or video file and record samples",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			sc, err := flags.apply(cfg.Session, cmd.Flags().Changed)
			if err != nil {
				return err
			}

			camCfg := camera.DefaultConfig()
			camCfg.Device = cfg.Camera.Device
			camCfg.File = cfg.Camera.File
			camCfg.Width = cfg.Camera.Width
			camCfg.Height = cfg.Camera.Height
			camCfg.Loop = cfg.Camera.Loop
			if file != "" {
				camCfg.File = file
			}
			if cmd.Flags().Changed("device") {
				camCfg.Device = device
				camCfg.File = ""
			}

			base := cmd.Context()
			if duration > 0 {
				var cancel context.CancelFunc
				base, cancel = context.WithTimeout(base, duration)
				defer cancel()
			}
			runCtx, stopRun := context.WithCancel(base)
			defer stopRun()

			cam, err := camera.Open(camCfg, log.Component("camera"))
			if err != nil {
				return err
			}
			defer cam.Close()

			var opts []session.Option

			if cfg.MQTT.Enabled {
				em := emitter.NewMQTTEmitter(emitter.Config{
					Broker:      cfg.MQTT.Broker,
					ClientID:    cfg.MQTT.ClientID,
					TopicPrefix: cfg.MQTT.TopicPrefix,
					QoS:         byte(cfg.MQTT.QoS),
				}, log.Component("emitter"))
				if err := em.Connect(runCtx); err != nil {
					return err
				}
				em.Start()
				defer em.Close()
				opts = append(opts, session.WithSampleSink(em))
			}

			var srv *web.Server
			if dashboard || cfg.Dashboard.Enabled {
				srv = web.NewServer(cfg.Dashboard.Addr, log.Component("web"))
				srv.OnStop = stopRun
				opts = append(opts, session.WithSampleSink(srv), session.WithTrackSink(srv))
			}

			sess, err := newSession(cfg, sc, cam, opts...)
			if err != nil {
				return err
			}
			defer sess.Close()

			if srv != nil {
				srv.Attach(sess)
				srvCtx, stopSrv := context.WithCancel(cmd.Context())
				defer stopSrv()
				srv.StartAsync(srvCtx)
			}

			start := time.Now()
			samples, err := sess.Run(runCtx)
			if err != nil {
				if errors.Is(err, session.ErrSetupFailed) {
					return fmt.Errorf("track: %w", err)
				}
				return err
			}

			w := cmd.OutOrStdout()
			fmt.Fprintln(w, renderTable(
				[]string{"Metric", "Value"},
				summaryRows(sess.ID(), sess.State(), sess.ROI(), sess.Stats(), samples, time.Since(start)),
				[]columnAlignment{alignLeft, alignRight},
			))

			if out != "" {
				if err := writeSamples(out, samples); err != nil {
					return err
				}
				fmt.Fprintf(w, "Wrote %d samples to %s\n", len(samples), out)
			}
			return nil
		},
	}

	addSessionFlags(cmd, &flags)
	cmd.Flags().StringVarP(&file, "file", "f", "", "Video file to read instead of the camera")
	cmd.Flags().IntVarP(&device, "device", "d", 0, "Capture device index")
	cmd.Flags().DurationVar(&duration, "duration", 0, "Stop after this long (0 runs until interrupted)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Write samples as JSON to this file")
	cmd.Flags().BoolVar(&dashboard, "dashboard", false, "Serve the live dashboard")
	return cmd
}

func addSessionFlags(cmd *cobra.Command, flags *sessionFlags) {
	cmd.Flags().StringVarP(&flags.model, "model", "m", "", "Model path or URL")
	cmd.Flags().Float64VarP(&flags.threshold, "threshold", "t", 0.5, "Pupil map binarization threshold (0-1)")
	cmd.Flags().Float64Var(&flags.rx, "rx", 0, "Initial ROI left edge")
	cmd.Flags().Float64Var(&flags.ry, "ry", 0, "Initial ROI top edge")
	cmd.Flags().IntVar(&flags.roiSize, "roi-size", 128, "ROI side in frame pixels")
}
