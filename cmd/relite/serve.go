package main

import (
	"github.com/aretw0/relite/internal/cli"
	"github.com/aretw0/relite/internal/presentation/tui"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the inspector hub",
	Long: `Starts the inspector hub. Stores attached with the websocket transport connect
to /ws; with --redis the hub also relays instances attached through Redis.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := cli.Setup(globalOptions(cmd))
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("addr") {
			cfg.Hub.Addr, _ = cmd.Flags().GetString("addr")
		}
		redis, _ := cmd.Flags().GetBool("redis")
		quiet, _ := cmd.Flags().GetBool("quiet")

		if !quiet {
			tui.PrintBanner(cmd.OutOrStdout())
		}

		sigCtx := cli.NewSignalContext(cmd.Context())
		defer sigCtx.Cancel()

		err = cli.RunServe(sigCtx, cli.ServeOptions{
			Config: cfg,
			Logger: logger,
			Out:    cmd.OutOrStdout(),
			Redis:  redis,
		})
		if sig := sigCtx.Signal(); sig != nil {
			logger.Info("Stopped by signal", "signal", sig)
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("addr", "a", "", "Address to listen on (default from hub.addr)")
	serveCmd.Flags().Bool("redis", false, "Relay instances attached through the Redis transport")
	serveCmd.Flags().BoolP("quiet", "q", false, "Do not print the banner")
}
