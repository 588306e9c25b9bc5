package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rovlink/rovconsole/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show build information",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if ok, err := writeStructured(cmd.OutOrStdout(), version.Get()); ok {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), version.String())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
