package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newCapabilitiesCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "capabilities",
		Short: "Probe the encoder and accelerator and show the backend a job would use",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			tc, err := newToolchain(cfg)
			if err != nil {
				return err
			}

			caps := tc.prober.Probe(cmd.Context())
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(caps)
			}

			_, err = fmt.Fprintln(out, renderTable(
				[]string{"Component", "Status", "Detail"},
				capabilityRows(caps),
				shouldColorize(out),
			))
			return err
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the probe result as JSON")
	return cmd
}
