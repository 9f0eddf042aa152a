package main

import (
	"fmt"

	"github.com/aretw0/relite"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of relite",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "relite version %s\n", relite.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
