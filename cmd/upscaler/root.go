package main

import (
	"github.com/spf13/cobra"

	"github.com/bnema/upscaler/config"
	"github.com/bnema/upscaler/internal/infrastructure/logger"
)

// commandContext loads the configuration once for whichever subcommand runs.
type commandContext struct {
	cfg *config.Config
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	if c.cfg != nil {
		return c.cfg, nil
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	c.cfg = cfg
	return cfg, nil
}

func newRootCommand() *cobra.Command {
	ctx := &commandContext{}

	rootCmd := &cobra.Command{
		Use:           "upscaler",
		Short:         "Video upscaling job server",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger.Configure(cmd.ErrOrStderr(), cfg.Debug)
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.AddCommand(newServeCommand(ctx))
	rootCmd.AddCommand(newCapabilitiesCommand(ctx))

	return rootCmd
}
