package node

import (
	"fmt"

	"github.com/nodecrew/actorkit"
)

// senderMsg is what Router posts to a sender process's mailbox: write this
// frame next. (The session supervisor's Pong requests are sendPongCmd.)
type senderMsg struct {
	frame wireFrame
}

// Router implements actorkit.RemoteRouter: it resolves a Pid's node to a
// live session's sender and forwards the payload as a User frame.
// Grounded on registrar.go's route()'s remote branch (look up the peer,
// retry-or-drop) generalized to this package's session-per-connection
// design instead of registrar.go's single shared connection map.
type Router struct {
	local    *actorkit.Node
	registry *Registry
}

// NewRouter builds a Router over registry, delivering through local's
// process table for anything addressed to a session's sender Pid.
func NewRouter(local *actorkit.Node, registry *Registry) *Router {
	return &Router{local: local, registry: registry}
}

func (r *Router) RouteSend(to actorkit.Pid, payload any) error {
	rec, ok := r.registry.Lookup(to.Node)
	if !ok {
		return fmt.Errorf("node: no session for node %q", to.Node)
	}
	data, err := encodeUser(actorkit.Pid{}, payload)
	if err != nil {
		return err
	}
	return r.local.SendFrom(actorkit.Pid{}, rec.Sender, senderMsg{frame: wireFrame{targetSerial: to.Serial, payload: data}})
}

func (r *Router) RouteExit(from, to actorkit.Pid, reason actorkit.ExitReason) error {
	rec, ok := r.registry.Lookup(to.Node)
	if !ok {
		return fmt.Errorf("node: no session for node %q", to.Node)
	}
	data, err := encodeExit(from, reason)
	if err != nil {
		return err
	}
	return r.local.SendFrom(actorkit.Pid{}, rec.Sender, senderMsg{frame: wireFrame{targetSerial: to.Serial, payload: data}})
}

// wireFrame is the sender's view of a User frame still to be written: the
// addressed serial and the already wire-encoded payload, kept separate
// from frame.Frame so this package's gob envelope stays independent of
// the frame package's own encoding.
type wireFrame struct {
	targetSerial uint64
	payload      []byte
}
