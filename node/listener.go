package node

import (
	"net"

	"github.com/nodecrew/actorkit"
)

// Listener accepts inbound node connections and turns each into a session
// via StartSession. Grounded on hydra/src/node_remote.rs's accepter role
// and generalized with net.Listener instead of hydra's own transport, the
// same substitution gridgentoo-ergo/node/core.go makes around its gRPC
// transport.
type Listener struct {
	ls *LocalSupervisor
	ln net.Listener
}

// Listen starts a node using cfg, wires its RemoteRouter, and binds ln for
// inbound sessions. The caller drives the accept loop with Serve.
func Listen(n *actorkit.Node, cfg Config, ln net.Listener) (*Listener, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	ls := StartLocalSupervisor(n, cfg)
	n.SetRemoteRouter(NewRouter(n, ls.Registry))
	return &Listener{ls: ls, ln: ln}, nil
}

// LocalSupervisor returns the node-wide supervisor every accepted session
// links against.
func (l *Listener) LocalSupervisor() *LocalSupervisor { return l.ls }

// Serve accepts connections until ln is closed, starting a session for
// each. A single bad handshake never stops the loop; it only drops that
// connection.
func (l *Listener) Serve() error {
	for {
		conn, err := l.ln.Accept()
		if err != nil {
			return err
		}
		go func() {
			if _, err := StartSession(l.ls, conn); err != nil {
				conn.Close()
			}
		}()
	}
}

// Close stops accepting new connections and tears down every open session
// by stopping the local supervisor.
func (l *Listener) Close() error {
	l.ls.Stop()
	return l.ln.Close()
}

// Connect dials addr and runs the connector side of the handshake. Per
// §4.G the connector role is symmetric to the accepter's, so this simply
// reuses StartSession over the dialed conn.
func Connect(ls *LocalSupervisor, addr string) (actorkit.Pid, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return actorkit.Pid{}, err
	}
	return StartSession(ls, conn)
}
