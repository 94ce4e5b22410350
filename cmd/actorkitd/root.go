package main

import (
	"github.com/spf13/cobra"
)

func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "actorkitd",
		Short: "Run and inspect an actorkit node",
		Long: `actorkitd starts a node that accepts inbound node connections and
dials outbound ones, and gives an interactive console for sending
messages and kill signals to processes on a running node.`,
	}

	cmd.PersistentFlags().String("config", "", "path to a node TOML config (defaults unset)")

	cmd.AddCommand(
		NewStartCmd(),
		NewConsoleCmd(),
	)

	return cmd
}
