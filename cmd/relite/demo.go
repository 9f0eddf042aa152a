package main

import (
	"time"

	"github.com/aretw0/relite/internal/cli"
	"github.com/spf13/cobra"
)

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run demo stores attached to the inspector",
	Long: `Runs a counter and a todo list whose stores are attached through the configured
devtool transport, dispatching an action per tick. Use it with 'relite serve'.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := cli.Setup(globalOptions(cmd))
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("transport") {
			cfg.DevTool.Transport, _ = cmd.Flags().GetString("transport")
		}
		if cmd.Flags().Changed("url") {
			cfg.DevTool.URL, _ = cmd.Flags().GetString("url")
		}
		steps, _ := cmd.Flags().GetInt("steps")
		interval, _ := cmd.Flags().GetDuration("interval")
		verbose, _ := cmd.Flags().GetBool("verbose")

		sigCtx := cli.NewSignalContext(cmd.Context())
		defer sigCtx.Cancel()

		return cli.RunDemo(sigCtx, cli.DemoOptions{
			Config:   cfg,
			Logger:   logger,
			Out:      cmd.OutOrStdout(),
			Steps:    steps,
			Interval: interval,
			Verbose:  verbose,
		})
	},
}

func init() {
	rootCmd.AddCommand(demoCmd)
	demoCmd.Flags().String("transport", "", "Devtool transport (websocket, redis, memory)")
	demoCmd.Flags().String("url", "", "Hub websocket URL")
	demoCmd.Flags().Int("steps", 0, "Stop after this many ticks (0 runs until interrupted)")
	demoCmd.Flags().Duration("interval", time.Second, "Time between ticks")
	demoCmd.Flags().BoolP("verbose", "v", false, "Print every state change")
}
