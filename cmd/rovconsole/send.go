package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rovlink/rovconsole/internal/console"
	"github.com/rovlink/rovconsole/internal/logging"
)

var sendCmd = &cobra.Command{
	Use:   "send <address> <feature> <value>",
	Short: "Connect, send one command and disconnect",
	Example: `  rovconsole send 192.168.1.100 lightPower 50
  rovconsole send 192.168.1.100 depthHold on
  rovconsole send -- 192.168.1.100 cameraTilt -30`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		cfg.Telemetry.Enabled = false
		cfg.Notifications.Enabled = false
		cfg.Diagnostics.Port = 0
		off := false
		cfg.Connection.AutoReconnect = &off

		log, err := logging.New(cfg.Logging, cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer log.Close()

		c, err := console.New(cmd.Context(), cfg, console.WithLogger(log.Logger))
		if err != nil {
			return err
		}
		defer c.Close()

		lines := []string{
			"connect " + args[0],
			strings.Join([]string{"set", args[1], args[2]}, " "),
		}
		for _, line := range lines {
			reply, err := c.Execute(cmd.Context(), line)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), reply)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sendCmd)
}
