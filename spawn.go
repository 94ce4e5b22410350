package actorkit

import (
	"context"
	"fmt"
	"runtime/debug"
)

// Body is the function a spawned process runs. Its return value becomes
// the process's exit reason exactly as if it had called p.Exit on itself:
// returning Normal lets a non-trapping linked peer survive, anything else
// propagates as a crash would.
type Body func(p *Process) ExitReason

// Node is the application-facing handle onto a registry: the set of
// operations that don't require already being inside a running process
// (spawning the first processes, registering well-known names, looking
// pids up by name). Grounded on ergonode's Node, trimmed to the pieces
// that survive the move to explicit *Process receivers instead of an
// ambient "current process".
type Node struct {
	name string
	reg  *registry
	ctx  context.Context
}

// NewNode creates a node identity with its own process registry. name is
// used as the Node field of every Pid and Reference minted here; it only
// needs to be unique within a cluster once actorkit/node is wired in to
// connect nodes together.
func NewNode(ctx context.Context, name string) *Node {
	return &Node{name: name, reg: newRegistry(name), ctx: ctx}
}

// Name returns the node's own name.
func (n *Node) Name() string { return n.name }

// SetRemoteRouter installs the transport that delivers to non-local pids.
// Called once by actorkit/node during node startup.
func (n *Node) SetRemoteRouter(router RemoteRouter) {
	n.reg.setRemoteRouter(router)
}

// Spawn starts body as a new, unlinked process and returns its Pid
// immediately; body keeps running on its own goroutine.
func (n *Node) Spawn(body Body) Pid {
	return n.spawn(body, Pid{})
}

// SpawnLink starts body as a new process already linked to linkTo.
func (n *Node) SpawnLink(body Body, linkTo Pid) Pid {
	return n.spawn(body, linkTo)
}

// SpawnNamed starts body and registers it under name atomically with
// respect to any concurrent Whereis, returning an error if name is
// already taken.
func (n *Node) SpawnNamed(body Body, name string) (Pid, error) {
	pid := n.spawn(body, Pid{})
	if err := n.reg.register(name, pid); err != nil {
		n.reg.signalExit(pid, pid, Kill, false)
		return Pid{}, err
	}
	return pid, nil
}

func (n *Node) spawn(body Body, linkTo Pid) Pid {
	pid := n.reg.nextPid()
	p := newProcess(pid, n.reg, n.ctx)
	n.reg.insert(p)

	if !linkTo.IsZero() {
		n.reg.link(pid, linkTo)
	}

	go n.run(p, body)

	return pid
}

// run executes a process body with panic recovery, the way ergonode's
// spawn loop and gridgentoo-ergo's lib.CatchPanic both guard against a
// single misbehaving actor taking down the node: a panic becomes an exit
// with a reason that carries the recovered value and a stack trace.
func (n *Node) run(p *Process, body Body) {
	reason := Normal
	func() {
		defer func() {
			if r := recover(); r != nil {
				reason = Custom(fmt.Sprintf("panic: %v\n%s", r, debug.Stack()))
			}
		}()
		reason = body(p)
	}()
	p.terminate(reason)
}

// Register binds name to pid. Returns an error if pid is not alive or
// name is already bound.
func (n *Node) Register(name string, pid Pid) error {
	return n.reg.register(name, pid)
}

// Unregister drops name's binding, if any.
func (n *Node) Unregister(name string) {
	n.reg.unregister(name)
}

// Whereis resolves a registered name to a Pid.
func (n *Node) Whereis(name string) (Pid, bool) {
	return n.reg.whereis(name)
}

// Process returns the live *Process for pid, for callers (tests, the
// supervision engine) that need direct mailbox access rather than routing
// through Send.
func (n *Node) Process(pid Pid) (*Process, bool) {
	return n.reg.lookup(pid)
}

// Processes lists every pid currently alive on this node, for diagnostic
// tooling.
func (n *Node) Processes() []Pid {
	return n.reg.snapshot()
}

// Monitor arranges for watcher to receive a ProcessDown when subject
// terminates, without requiring watcher to already be a *Process.
func (n *Node) Monitor(watcher, subject Pid) Reference {
	return n.reg.monitor(watcher, subject)
}

// Demonitor cancels a pending monitor.
func (n *Node) Demonitor(ref Reference) {
	n.reg.demonitor(ref)
}

// Link establishes a bidirectional link between two pids without either
// needing to be the caller.
func (n *Node) Link(a, b Pid) {
	n.reg.link(a, b)
}

// Signal sends an exit signal to pid as Process.Exit would, usable by
// callers that hold a bare Pid (the supervision engine terminating a
// child) rather than a *Process.
func (n *Node) Signal(from, to Pid, reason ExitReason) {
	n.reg.signalExit(from, to, reason, false)
}

// SendFrom delivers payload to to's mailbox on behalf of from, for
// infrastructure components (the node transport) that act on a bare Pid rather than holding a *Process of their own.
func (n *Node) SendFrom(from, to Pid, payload any) error {
	return n.reg.deliverUser(from, to, payload)
}
