package main

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rovlink/rovconsole/internal/store"
)

var addressLimit int

var addressesCmd = &cobra.Command{
	Use:   "addresses",
	Short: "List vehicle addresses the console has connected to",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.Storage.Disabled {
			return errors.New("address storage is disabled in the config")
		}

		s, err := store.OpenSQLite(cmd.Context(), cfg.Storage.Path)
		if err != nil {
			return err
		}
		defer s.Close()

		endpoints, err := s.Recent(cmd.Context(), addressLimit)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if ok, err := writeStructured(out, endpoints); ok {
			return err
		}
		if len(endpoints) == 0 {
			fmt.Fprintln(out, "No addresses on file.")
			return nil
		}

		w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ADDRESS\tLAST CONNECTED\tFIRST CONNECTED\tCONNECTIONS")
		for _, e := range endpoints {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\n",
				e.Address,
				e.LastConnectedAt.Format("2006-01-02 15:04:05"),
				e.FirstConnectedAt.Format("2006-01-02 15:04:05"),
				e.ConnectCount,
			)
		}
		return w.Flush()
	},
}

func init() {
	addressesCmd.Flags().IntVarP(&addressLimit, "limit", "n", 10, "maximum number of addresses to list")
	rootCmd.AddCommand(addressesCmd)
}
