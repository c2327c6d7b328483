package main

import (
	"dress-to-impress/internal/config"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	var envFile string
	root := &cobra.Command{
		Use:           "server",
		Short:         "Dress to Impress realtime backend",
		Long:          "HTTP + websocket game sync service. Commands: serve (default), migrate, migrate-create.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if err := config.LoadDotEnv(envFile); err != nil {
				log.Warn().Err(err).Str("path", envFile).Msg("failed to load env file")
			}
		},
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading configuration")

	serve := newServeCmd()
	root.RunE = serve.RunE
	root.Flags().AddFlagSet(serve.Flags())
	root.AddCommand(serve, newMigrateCmd(), newMigrateCreateCmd())
	return root
}
