package main

import (
	"github.com/spf13/cobra"

	"solana-meme-radar/internal/config"
	"solana-meme-radar/internal/logging"
)

func newRootCommand() *cobra.Command {
	var configFile string

	root := &cobra.Command{
		Use:           "radar",
		Short:         "Solana meme token radar",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configFile, "config", "", "config file, e.g. `./radar.yaml`")

	load := func() (*config.Config, error) {
		cfg, err := config.Load(configFile)
		if err != nil {
			return nil, err
		}
		if err := logging.Setup(cfg.Logger.Level, cfg.Logger.Format); err != nil {
			return nil, err
		}
		return cfg, nil
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run ingestion, alerts and the API server",
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, err := load()
				if err != nil {
					return err
				}
				return serve(cmd.Context(), cfg)
			},
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Apply embedded Postgres and ClickHouse migrations",
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, err := load()
				if err != nil {
					return err
				}
				return migrate(cmd.Context(), cfg)
			},
		},
	)
	return root
}
