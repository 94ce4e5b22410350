package node

import (
	"io"
	"os"

	"github.com/nodecrew/actorkit"
	"github.com/nodecrew/actorkit/trace"
)

// LocalSupervisor is the shared handle every session on this node links
// against: Config for handshake/heartbeat timing, the actorkit.Node for
// spawning session processes, and the Registry sessions register
// themselves into. Supplemented from hydra/src/node_remote.rs's
// NodeRemoteSupervisor.local_supervisor field (an Arc<NodeLocalSupervisor>
// hydra references but never defines in the excerpted source); giving it
// a concrete Pid here is what lets "a local shutdown tears down all
// sessions" (§4.G) actually happen — killing this Pid fans out over every
// session's link to it.
type LocalSupervisor struct {
	Process  actorkit.Pid
	Node     *actorkit.Node
	Config   Config
	Registry *Registry
	Log      trace.Logger
}

// StartLocalSupervisor spawns the node's own root process: every session
// that starts afterward links to it, so terminating it (e.g. on node
// shutdown) brings every open session down with it.
func StartLocalSupervisor(n *actorkit.Node, cfg Config) *LocalSupervisor {
	return StartLocalSupervisorWithLog(n, cfg, os.Stderr)
}

// StartLocalSupervisorWithLog is StartLocalSupervisor with an explicit log
// sink, for callers that want session events routed somewhere other than
// stderr.
func StartLocalSupervisorWithLog(n *actorkit.Node, cfg Config, w io.Writer) *LocalSupervisor {
	ls := &LocalSupervisor{
		Node:     n,
		Config:   cfg,
		Registry: NewRegistry(n),
		Log:      trace.New(w, trace.NewSession()).With("node", cfg.Name),
	}
	ls.Process = n.Spawn(func(p *actorkit.Process) actorkit.ExitReason {
		p.SetTrapExit(true)
		for {
			msg, err := actorkit.Select[struct{}](p.Context(), p)
			if err != nil {
				return actorkit.Normal
			}
			// The shutdown request Stop sends (from no originating pid) ends
			// the loop, taking every linked session down with it.
			if sig, ok := msg.Sys.(actorkit.ExitSignal); ok && sig.From.IsZero() && sig.Reason.IsShutdown() {
				return sig.Reason
			}
			// Trapped ExitSignal/ProcessDown from a session is absorbed here:
			// a session crashing must not bring the local node down with it.
		}
	})
	return ls
}

// Stop terminates the local supervisor, and with it every linked session.
func (ls *LocalSupervisor) Stop() {
	ls.Node.Signal(actorkit.Pid{}, ls.Process, actorkit.ShutdownReason())
}
