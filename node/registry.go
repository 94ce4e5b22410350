package node

import (
	"net"
	"sync"

	"github.com/nodecrew/actorkit"
)

// Record is a live entry in the node registry: §4.H's NodeRecord.
type Record struct {
	Name             string
	BroadcastAddress net.Addr
	Sender           actorkit.Pid
	Receiver         actorkit.Pid
	Supervisor       actorkit.Pid
}

// Registry is the process-wide mapping node-name → Record. Grounded on
// registrar.go's `peers map[string]peer`, generalized the same way the
// core process registry was: a mutex-guarded map rather than a
// request/reply goroutine.
type Registry struct {
	node *actorkit.Node

	mu      sync.Mutex
	records map[string]*Record
}

// NewRegistry creates an empty registry. n is used to hold a monitor on
// each session supervisor so the record is torn down automatically when
// the session dies, without the registry needing its own event loop.
func NewRegistry(n *actorkit.Node) *Registry {
	return &Registry{node: n, records: make(map[string]*Record)}
}

// Accept reserves name for supervisor, returning false if the name is
// already taken by a live session (§4.H: node_accept).
func (r *Registry) Accept(name string, addr net.Addr, supervisor actorkit.Pid) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.records[name]; taken {
		return false
	}
	r.records[name] = &Record{Name: name, BroadcastAddress: addr, Supervisor: supervisor}
	return true
}

// SetSendRecv finalizes a reserved record with its sender and receiver
// pids (§4.H: node_set_send_recv).
func (r *Registry) SetSendRecv(name string, sender, receiver actorkit.Pid) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[name]
	if !ok {
		return
	}
	rec.Sender = sender
	rec.Receiver = receiver
}

// Remove drops name's record, called when its session supervisor
// terminates.
func (r *Registry) Remove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.records, name)
}

// Lookup resolves a node name to its record.
func (r *Registry) Lookup(name string) (Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[name]
	if !ok {
		return Record{}, false
	}
	return *rec, true
}

// Records snapshots every currently live record, for diagnostic tooling
// (cmd/actorkitd's console) that needs to resolve a dialed address back to
// the peer's handshake name rather than looking one name up directly.
func (r *Registry) Records() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Record, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, *rec)
	}
	return out
}

// WatchForCleanup arranges for Remove(name) to run automatically once
// supervisor terminates, via a monitor rather than the registry running
// its own receive loop — matching spec §4.H's "triggered by an observing
// monitor held by the registry".
func (r *Registry) WatchForCleanup(name string, supervisor actorkit.Pid) {
	watcher := r.node.Spawn(func(p *actorkit.Process) actorkit.ExitReason {
		p.Monitor(supervisor)
		if _, err := actorkit.Select[struct{}](p.Context(), p); err == nil {
			r.Remove(name)
		}
		return actorkit.Normal
	})
	_ = watcher
}
