package main

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/aretw0/relite/internal/cli"
	"github.com/aretw0/relite/internal/hub"
	"github.com/spf13/cobra"
)

var instancesCmd = &cobra.Command{
	Use:   "instances",
	Short: "List the instances known to the hub",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := inspectOptions(cmd)
		if err != nil {
			return err
		}
		return cli.RunInstances(cmd.Context(), opts)
	},
}

var historyCmd = &cobra.Command{
	Use:   "history <instance>",
	Short: "Show the recorded history of an instance",
	Long:  `Prints the actions recorded by the hub for one instance, as a table, JSON or a Mermaid graph.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := inspectOptions(cmd)
		if err != nil {
			return err
		}
		return cli.RunHistory(cmd.Context(), opts, args[0])
	},
}

var jumpCmd = &cobra.Command{
	Use:   "jump <instance> <action-id>",
	Short: "Move an instance to the state recorded after an action",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		actionID, err := strconv.Atoi(args[1])
		if err != nil || actionID < 0 {
			return fmt.Errorf("invalid action id %q", args[1])
		}
		opts, err := inspectOptions(cmd)
		if err != nil {
			return err
		}
		return cli.RunJump(cmd.Context(), opts, args[0], actionID)
	},
}

func init() {
	rootCmd.AddCommand(instancesCmd, historyCmd, jumpCmd)
	for _, c := range []*cobra.Command{instancesCmd, historyCmd} {
		c.Flags().StringP("format", "f", cli.FormatMarkdown, "Output format (markdown, json, mermaid)")
		c.Flags().Bool("plain", false, "Print markdown without terminal styling")
	}
}

func inspectOptions(cmd *cobra.Command) (cli.InspectOptions, error) {
	cfg, _, err := cli.Setup(globalOptions(cmd))
	if err != nil {
		return cli.InspectOptions{}, err
	}

	base, _ := cmd.Flags().GetString("hub")
	if base == "" {
		base = hubURL(cfg.Hub.Addr)
	}
	format, _ := cmd.Flags().GetString("format")
	plain, _ := cmd.Flags().GetBool("plain")

	return cli.InspectOptions{
		Client: hub.NewClient(base, nil),
		Out:    cmd.OutOrStdout(),
		Format: format,
		Plain:  plain,
	}, nil
}

// hubURL turns a listen address such as ":8765" into a URL on localhost.
func hubURL(addr string) string {
	if strings.Contains(addr, "://") {
		return addr
	}
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "http://" + addr
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, port)
}
