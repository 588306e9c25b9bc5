package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/rovlink/rovconsole/internal/console"
	"github.com/rovlink/rovconsole/internal/logging"
	"github.com/rovlink/rovconsole/internal/version"
)

var (
	runAddress  string
	runHeadless bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the interactive console",
	Args:  cobra.NoArgs,
	RunE:  runConsole,
}

func init() {
	runCmd.Flags().StringVar(&runAddress, "address", "", "vehicle IPv4 address (overrides vehicle.address)")
	runCmd.Flags().BoolVar(&runHeadless, "headless", false, "run without the command prompt until interrupted")
	rootCmd.AddCommand(runCmd)
}

func runConsole(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if runAddress != "" {
		cfg.Vehicle.Address = runAddress
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("--address: %w", err)
		}
	}

	log, err := logging.New(cfg.Logging, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer log.Close()
	logger := log.Component("main")

	logger.Info("starting rovconsole",
		"version", version.Version,
		"commit", version.Commit,
		"config", cfgFile,
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c, err := console.New(ctx, cfg, console.WithLogger(log.Logger))
	if err != nil {
		return err
	}
	defer func() {
		if err := c.Close(); err != nil {
			logger.Error("close console", "error", err)
		}
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.Run(gctx) })

	if runHeadless {
		g.Go(func() error {
			<-gctx.Done()
			return nil
		})
	} else {
		out := cmd.OutOrStdout()
		g.Go(func() error { return c.Watch(gctx, out) })
		g.Go(func() error {
			defer cancel()
			return c.ReadLoop(gctx, os.Stdin, out)
		})
	}

	err = g.Wait()
	logger.Info("rovconsole stopped")
	return err
}
