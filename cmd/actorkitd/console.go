package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/fatih/color"
	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/nodecrew/actorkit"
	"github.com/nodecrew/actorkit/node"
)

// NewConsoleCmd builds the console subcommand: dial a running node over the
// same framed TCP transport real sessions use, then let an operator send a
// message to, or signal, a process on the other end by serial number.
func NewConsoleCmd() *cobra.Command {
	var connect string
	var name string

	cmd := &cobra.Command{
		Use:   "console",
		Short: "Attach to a running node and poke at its processes",
		RunE: func(cmd *cobra.Command, args []string) error {
			if connect == "" {
				return fmt.Errorf("console: --connect is required")
			}

			width, height, err := term.GetSize(int(os.Stdout.Fd()))
			if err != nil {
				width, height = 80, 24
			}
			color.Cyan("actorkitd console — terminal %dx%d", width, height)

			node.RegisterPayload("")

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			n := actorkit.NewNode(ctx, name)
			cfg := node.DefaultConfig(name)
			ls := node.StartLocalSupervisor(n, cfg)
			n.SetRemoteRouter(node.NewRouter(n, ls.Registry))

			if _, err := node.Connect(ls, connect); err != nil {
				return fmt.Errorf("console: connecting to %s: %w", connect, err)
			}
			color.Green("attached to %s", connect)

			return runConsoleLoop(n, ls, connect)
		},
	}

	cmd.Flags().StringVar(&connect, "connect", "", "address of the node to attach to")
	cmd.Flags().StringVar(&name, "name", "console", "this console's own node name, sent in the handshake Hello")

	return cmd
}

func runConsoleLoop(n *actorkit.Node, ls *node.LocalSupervisor, peerAddr string) error {
	const (
		actionSend = "send a message to a process"
		actionKill = "send an exit signal to a process"
		actionQuit = "quit"
	)

	if len(ls.Registry.Records()) == 0 {
		return fmt.Errorf("console: no session record for %s", peerAddr)
	}

	for {
		sel := promptui.Select{
			Label: "actorkitd console",
			Items: []string{actionSend, actionKill, actionQuit},
		}
		_, choice, err := sel.Run()
		if err != nil {
			return err
		}

		switch choice {
		case actionSend:
			if err := sendToTarget(n, ls, peerAddr); err != nil {
				color.Red("send: %v", err)
			}
		case actionKill:
			if err := signalTarget(n, ls, peerAddr); err != nil {
				color.Red("signal: %v", err)
			}
		case actionQuit:
			return nil
		}
	}
}

// peerName resolves the attached address back to the peer's node name as
// recorded by the handshake: console only ever attaches to one peer at a
// time, so its session record is the registry's only entry.
func peerName(ls *node.LocalSupervisor, addr string) string {
	recs := ls.Registry.Records()
	if len(recs) == 0 {
		return addr
	}
	return recs[0].Name
}

func promptSerial(label string) (uint64, error) {
	p := promptui.Prompt{Label: label}
	text, err := p.Run()
	if err != nil {
		return 0, err
	}
	return strconv.ParseUint(text, 10, 64)
}

func sendToTarget(n *actorkit.Node, ls *node.LocalSupervisor, peerAddr string) error {
	serial, err := promptSerial("target process serial")
	if err != nil {
		return err
	}
	body, err := (&promptui.Prompt{Label: "message text"}).Run()
	if err != nil {
		return err
	}

	target := actorkit.Pid{Node: peerName(ls, peerAddr), Serial: serial}
	if err := n.SendFrom(actorkit.Pid{}, target, body); err != nil {
		return err
	}
	color.Green("sent to %s", target)
	return nil
}

func signalTarget(n *actorkit.Node, ls *node.LocalSupervisor, peerAddr string) error {
	serial, err := promptSerial("target process serial")
	if err != nil {
		return err
	}
	target := actorkit.Pid{Node: peerName(ls, peerAddr), Serial: serial}
	n.Signal(actorkit.Pid{}, target, actorkit.Kill)
	color.Green("sent kill to %s", target)
	return nil
}
