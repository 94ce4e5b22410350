// Package actorkit implements an Erlang/OTP-style actor runtime: processes
// identified by Pid, links and monitors, selective receive over a typed
// mailbox, and the exit-signal propagation rules that make supervision
// possible. Grounded on rutaka-n-ergonode, generalized from its dynamic
// etf.Term message style to Go generics and from its channel-actor
// registry to a mutex-guarded one (see DESIGN.md). The gen and node
// packages build the supervision engine and remote transport on top of
// this one.
package actorkit

import "fmt"

// Pid is a cluster-unique, structural identity of a process: a node name
// paired with a serial that is monotonic within that node. A Pid is valid
// for the lifetime of the process it names and is never reused, even after
// the process terminates. A Pid minted on a foreign node is handled the
// same way as a local one everywhere in this package; only the registry's
// routing decides whether delivery is local or goes out over a session.
type Pid struct {
	Node   string
	Serial uint64
}

func (p Pid) String() string {
	return fmt.Sprintf("<%s.%d>", p.Node, p.Serial)
}

// IsZero reports whether p is the zero Pid, used as a sentinel for "no
// process" (e.g. a supervised child slot that hasn't been started, or a
// temporary child that was removed).
func (p Pid) IsZero() bool {
	return p == Pid{}
}

// Reference is a node-local, monotonically increasing token used to tag
// monitors. Never reused.
type Reference struct {
	Node string
	ID   uint64
}

func (r Reference) String() string {
	return fmt.Sprintf("#Ref<%s.%d>", r.Node, r.ID)
}
