package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/nodecrew/actorkit"
	"github.com/nodecrew/actorkit/config"
	"github.com/nodecrew/actorkit/node"
)

// NewStartCmd builds the start subcommand: bind a listener, bring up the
// node, and block until interrupted.
func NewStartCmd() *cobra.Command {
	var bind string
	var name string
	var dial []string

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start a node and accept/connect sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			node.RegisterPayload("")

			configPath, _ := cmd.Flags().GetString("config")
			cfg, err := config.Load(configPath, name)
			if err != nil {
				return err
			}

			ln, err := net.Listen("tcp", bind)
			if err != nil {
				return fmt.Errorf("listen on %s: %w", bind, err)
			}

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			n := actorkit.NewNode(ctx, cfg.Name)

			listener, err := node.Listen(n, cfg, ln)
			if err != nil {
				return err
			}

			color.Green("actorkitd: listening on %s as %q", ln.Addr(), cfg.Name)

			for _, peer := range dial {
				peer := peer
				go func() {
					if _, err := node.Connect(listener.LocalSupervisor(), peer); err != nil {
						color.Red("actorkitd: connect to %s: %v", peer, err)
					} else {
						color.Green("actorkitd: connected to %s", peer)
					}
				}()
			}

			go func() {
				if err := listener.Serve(); err != nil {
					color.Red("actorkitd: listener stopped: %v", err)
				}
			}()

			sig := make(chan os.Signal, 1)
			signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
			<-sig

			color.Yellow("actorkitd: shutting down")
			return listener.Close()
		},
	}

	cmd.Flags().StringVar(&bind, "bind", "127.0.0.1:4369", "address to listen on")
	cmd.Flags().StringVar(&name, "name", "node", "this node's name, sent in the handshake Hello")
	cmd.Flags().StringArrayVar(&dial, "connect", nil, "peer addresses to dial on startup")

	return cmd
}
