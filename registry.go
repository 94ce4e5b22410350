package actorkit

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// RemoteRouter is implemented by the node package and installed into a
// registry at startup. It lets this package hand off delivery to a pid
// that does not belong to the local node without importing the node
// package directly (that package imports this one for Pid/Message/Process,
// so the dependency can only run one way).
type RemoteRouter interface {
	RouteSend(to Pid, payload any) error
	RouteExit(from, to Pid, reason ExitReason) error
}

// registry is the single per-node authority for process identity: pid and
// reference allocation, the process table, the registered-name table, and
// the link/monitor table. Grounded on registrar.go's single-owner model,
// generalized from registrar.go's channel-actor ownership to a
// mutex-guarded map, the way the ergo lineage itself moved (see DESIGN.md).
type registry struct {
	node string

	serial atomic.Uint64
	refID  atomic.Uint64

	mu        sync.RWMutex
	processes map[Pid]*Process
	names     map[string]Pid

	links *linkTable

	remoteMu sync.RWMutex
	remote   RemoteRouter
}

func newRegistry(node string) *registry {
	return &registry{
		node:      node,
		processes: make(map[Pid]*Process),
		names:     make(map[string]Pid),
		links:     newLinkTable(),
	}
}

func (r *registry) nextPid() Pid {
	return Pid{Node: r.node, Serial: r.serial.Add(1)}
}

func (r *registry) nextRef() Reference {
	return Reference{Node: r.node, ID: r.refID.Add(1)}
}

func (r *registry) setRemoteRouter(router RemoteRouter) {
	r.remoteMu.Lock()
	defer r.remoteMu.Unlock()
	r.remote = router
}

func (r *registry) remoteRouter() RemoteRouter {
	r.remoteMu.RLock()
	defer r.remoteMu.RUnlock()
	return r.remote
}

func (r *registry) isLocal(pid Pid) bool { return pid.Node == r.node }

func (r *registry) insert(p *Process) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.processes[p.self] = p
}

func (r *registry) lookup(pid Pid) (*Process, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.processes[pid]
	return p, ok
}

func (r *registry) register(name string, pid Pid) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.processes[pid]; !ok {
		return fmt.Errorf("actorkit: register %q: %s is not alive", name, pid)
	}
	if existing, ok := r.names[name]; ok {
		return fmt.Errorf("actorkit: register %q: already registered to %s", name, existing)
	}
	r.names[name] = pid
	return nil
}

func (r *registry) unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.names, name)
}

func (r *registry) whereis(name string) (Pid, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	pid, ok := r.names[name]
	return pid, ok
}

// snapshot lists every live local pid, for diagnostic tooling rather than
// anything on the hot path.
func (r *registry) snapshot() []Pid {
	r.mu.RLock()
	defer r.mu.RUnlock()
	pids := make([]Pid, 0, len(r.processes))
	for pid := range r.processes {
		pids = append(pids, pid)
	}
	return pids
}

func (r *registry) forget(pid Pid) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.processes, pid)
	for name, bound := range r.names {
		if bound == pid {
			delete(r.names, name)
		}
	}
}

// deliverUser places a user payload into to's mailbox, or hands off to the
// remote router when to belongs to another node.
func (r *registry) deliverUser(from, to Pid, payload any) error {
	if !r.isLocal(to) {
		if router := r.remoteRouter(); router != nil {
			return router.RouteSend(to, payload)
		}
		return fmt.Errorf("actorkit: no remote route to %s", to)
	}
	p, ok := r.lookup(to)
	if !ok {
		return fmt.Errorf("actorkit: %s is not alive", to)
	}
	p.mailbox.enqueue(envelope{from: from, user: payload, isUser: true})
	return nil
}

func (r *registry) deliverSystem(to Pid, sys SystemMessage) {
	p, ok := r.lookup(to)
	if !ok {
		return
	}
	p.mailbox.enqueue(envelope{sys: sys})
}

// signalExit is the single entry point for both natural termination and an
// explicit Process.Exit call. It implements spec §4.B: a non-trapping
// recipient terminates, except that a Normal reason is ignored unless it
// is an explicit signal a process sent to itself; a trapping recipient is
// handed an ExitSignal instead.
func (r *registry) signalExit(from, to Pid, reason ExitReason, viaLink bool) {
	if !r.isLocal(to) {
		if router := r.remoteRouter(); router != nil {
			_ = router.RouteExit(from, to, reason)
		}
		return
	}
	p, ok := r.lookup(to)
	if !ok {
		return
	}
	if reason.IsKill() {
		p.terminate(Kill)
		return
	}
	if p.trapExit() {
		p.mailbox.enqueue(envelope{sys: ExitSignal{From: from, Reason: reason}})
		return
	}
	if reason.IsNormal() && (viaLink || from != to) {
		return
	}
	p.terminate(reason)
}

// terminate runs pid's single termination fan-out: it clears pid's links
// and monitors, then signals every linked peer and notifies every monitor
// watcher. Safe to call only once per process; Process.terminate enforces
// that with a sync.Once.
func (r *registry) terminate(pid Pid, reason ExitReason) {
	r.forget(pid)
	peers, notices := r.links.clear(pid)
	for _, peer := range peers {
		r.signalExit(pid, peer, reason, true)
	}
	for _, n := range notices {
		r.deliverSystem(n.Watcher, ProcessDown{Pid: pid, Ref: n.Ref, Reason: reason})
	}
}

func (r *registry) link(a, b Pid) {
	r.links.link(a, b)
}

func (r *registry) unlink(a, b Pid) {
	r.links.unlink(a, b)
}

func (r *registry) monitor(watcher, subject Pid) Reference {
	ref := r.nextRef()
	r.links.addMonitor(watcher, subject, ref)
	if _, alive := r.lookup(subject); !alive && r.isLocal(subject) {
		r.links.removeMonitor(ref)
		r.deliverSystem(watcher, ProcessDown{Pid: subject, Ref: ref, Reason: Normal})
	}
	return ref
}

func (r *registry) demonitor(ref Reference) {
	r.links.removeMonitor(ref)
}
