package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/teslashibe/go-pupil/pkg/hub"
	"github.com/teslashibe/go-pupil/pkg/session"
)

type sampleEnvelope struct {
	Kind string         `json:"kind"`
	Data session.Sample `json:"data"`
}

func newWatchCommand(ctx *commandContext) *cobra.Command {
	var addr string
	var count int

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print samples streamed by a running dashboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if addr == "" {
				addr = cfg.Dashboard.Addr
			}
			return watchSamples(cmd.Context(), samplesURL(addr), count, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "Dashboard address (defaults to dashboard.addr)")
	cmd.Flags().IntVarP(&count, "count", "n", 0, "Exit after n new samples (0 runs until interrupted)")
	return cmd
}

// samplesURL turns a listen address such as ":8181" into a websocket URL.
func samplesURL(addr string) string {
	if strings.HasPrefix(addr, "ws://") || strings.HasPrefix(addr, "wss://") {
		return addr
	}
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	u := url.URL{Scheme: "ws", Host: addr, Path: "/ws/samples"}
	return u.String()
}

// watchSamples prints each sample once, in seq order of arrival. The
// server replays its backlog on connect, so seqs already printed are
// skipped.
func watchSamples(ctx context.Context, wsURL string, count int, w io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("watch: dial %s: %w", wsURL, err)
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	last := -1
	seen := 0
	for count <= 0 || seen < count {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("watch: read: %w", err)
		}

		var env sampleEnvelope
		if err := json.Unmarshal(data, &env); err != nil || env.Kind != hub.KindSample {
			continue
		}
		if env.Data.Seq <= last {
			continue
		}
		last = env.Data.Seq
		seen++
		fmt.Fprintf(w, "%6d  %12.3f ms  %8.2f px  blink %.3f\n",
			env.Data.Seq, env.Data.Timecode, env.Data.PupilDiameter, env.Data.BlinkProb)
	}

	conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return nil
}
