package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rovlink/rovconsole/internal/bus"
	"github.com/rovlink/rovconsole/internal/console"
	"github.com/rovlink/rovconsole/internal/logging"
	"github.com/rovlink/rovconsole/internal/router"
)

var (
	monitorVerbose       bool
	monitorStatsInterval time.Duration
)

var monitorCmd = &cobra.Command{
	Use:   "monitor <address>",
	Short: "Stream vehicle telemetry to the terminal without sending commands",
	Args:  cobra.ExactArgs(1),
	RunE:  runMonitor,
}

func init() {
	monitorCmd.Flags().BoolVar(&monitorVerbose, "verbose", false, "print full message JSON")
	monitorCmd.Flags().DurationVar(&monitorStatsInterval, "stats-interval", 10*time.Second, "how often to log inbound counters (0 disables)")
	rootCmd.AddCommand(monitorCmd)
}

func runMonitor(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cfg.Notifications.Enabled = false
	cfg.Diagnostics.Port = 0

	log, err := logging.New(cfg.Logging, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer log.Close()
	logger := log.Component("monitor")

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c, err := console.New(ctx, cfg, console.WithLogger(log.Logger))
	if err != nil {
		return err
	}
	defer c.Close()

	sub := c.Bus().Subscribe(bus.TopicTelemetrySensor, bus.TopicTelemetryCamera)
	defer c.Bus().Release(sub)

	if _, err := c.Manager().Connect(ctx, args[0]); err != nil {
		return err
	}
	logger.Info("streaming started - press Ctrl+C to stop", "address", args[0])

	var tick <-chan time.Time
	if monitorStatsInterval > 0 {
		t := time.NewTicker(monitorStatsInterval)
		defer t.Stop()
		tick = t.C
	}

	out := cmd.OutOrStdout()
	for {
		select {
		case <-ctx.Done():
			logger.Info("shutting down")
			return nil
		case <-tick:
			stats := c.Manager().Stats()
			logger.Info("stats",
				"status", stats.Status,
				"received", stats.Inbound.Received,
				"camera", stats.Inbound.Camera,
				"sensor", stats.Inbound.Sensor,
				"parse_errors", stats.Inbound.ParseErrors,
				"unknown_types", stats.Inbound.UnknownTypes,
				"replies", stats.Inbound.Replies,
			)
		case raw, ok := <-sub:
			if !ok {
				return nil
			}
			if msg, ok := raw.(router.Message); ok {
				printMessage(out, msg, monitorVerbose)
			}
		}
	}
}

func printMessage(w io.Writer, msg router.Message, verbose bool) {
	at := msg.ReceivedAt.Format("15:04:05.000")
	switch msg.Type {
	case router.TypeSensor:
		if verbose {
			data, _ := json.Marshal(msg.Sensor)
			fmt.Fprintf(w, "%s [SENSOR] %s\n", at, data)
			return
		}
		fmt.Fprintf(w, "%s [SENSOR] %s\n", at, console.FormatSensor(msg))
	case router.TypeCamera:
		if msg.Camera == nil {
			return
		}
		if verbose {
			fmt.Fprintf(w, "%s [CAMERA] camera=%s bytes=%d base64=%s\n",
				at, msg.Camera.Camera, len(msg.Camera.JPEG), msg.Camera.Encoded)
			return
		}
		fmt.Fprintf(w, "%s [CAMERA] camera=%s bytes=%d\n", at, msg.Camera.Camera, len(msg.Camera.JPEG))
	}
}
