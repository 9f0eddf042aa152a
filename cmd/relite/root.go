package main

import (
	"fmt"
	"os"

	"github.com/aretw0/relite/internal/cli"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "relite",
	Short: "relite is a state container with a time travel inspector",
	Long: `relite serves an inspector hub for stores attached through the devtool bridge,
and lets you list instances, read their history and jump back in time.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to relite.yaml (default ./relite.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "Override log.level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().String("hub", "", "Hub base URL for inspection commands (default from hub.addr)")
}

// globalOptions reads the persistent flags.
func globalOptions(cmd *cobra.Command) cli.GlobalOptions {
	configPath, _ := cmd.Flags().GetString("config")
	logLevel, _ := cmd.Flags().GetString("log-level")
	debug, _ := cmd.Flags().GetBool("debug")
	return cli.GlobalOptions{
		ConfigPath: configPath,
		LogLevel:   logLevel,
		Debug:      debug,
	}
}
