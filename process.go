package actorkit

import (
	"context"
	"sync"
)

// Process is a running actor: a Pid, a mailbox, and the bookkeeping needed
// to participate in links, monitors, and supervised shutdown. Grounded on
// ergonode's Process struct (self etf.Pid, mailBox chan etf.Tuple, Context
// context.Context, Kill context.CancelFunc), generalized from a single
// untyped mailbox channel to the mailbox type so selective receive and
// system messages can share one queue without reordering user traffic.
type Process struct {
	self Pid
	reg  *registry

	mailbox *mailbox

	ctx    context.Context
	cancel context.CancelFunc

	flagsMu sync.Mutex
	trap    bool

	termOnce sync.Once
	done     chan struct{}
	reason   ExitReason
}

func newProcess(self Pid, reg *registry, parentCtx context.Context) *Process {
	ctx, cancel := context.WithCancel(parentCtx)
	return &Process{
		self:    self,
		reg:     reg,
		mailbox: newMailbox(),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
}

// Self returns the process's own Pid.
func (p *Process) Self() Pid { return p.self }

// Context is cancelled the moment the process begins terminating, whether
// by Kill, an unhandled exit signal, or its own body returning. Blocking
// work inside a body should select on ctx.Done() alongside its own work.
func (p *Process) Context() context.Context { return p.ctx }

// Done is closed once termination has fully run (links cleared, monitors
// notified). Useful for tests and for synchronous callers like
// shutdown.go's shutdownWithTimeout/shutdownBrutal.
func (p *Process) Done() <-chan struct{} { return p.done }

// TrapExit reports whether the process currently converts exit signals
// into ExitSignal mailbox entries instead of terminating on receipt.
func (p *Process) TrapExit() bool {
	p.flagsMu.Lock()
	defer p.flagsMu.Unlock()
	return p.trap
}

// SetTrapExit toggles the trap-exit flag. A process that traps exits is
// never killed by a linked peer's exit unless the reason is Kill.
func (p *Process) SetTrapExit(trap bool) {
	p.flagsMu.Lock()
	defer p.flagsMu.Unlock()
	p.trap = trap
}

func (p *Process) trapExit() bool { return p.TrapExit() }

// Send delivers a user payload to to's mailbox, local or remote.
func (p *Process) Send(to Pid, payload any) error {
	return p.reg.deliverUser(p.self, to, payload)
}

// Link establishes a bidirectional link with peer: if either terminates
// abnormally the other receives an exit signal (or an ExitSignal, if
// trapping).
func (p *Process) Link(peer Pid) {
	p.reg.link(p.self, peer)
}

// Unlink removes a previously established link. Per spec §4.B, any exit
// signal already in flight from peer is still delivered; use UnlinkFlush
// (shutdown.go) to drain it when that race matters.
func (p *Process) Unlink(peer Pid) {
	p.reg.unlink(p.self, peer)
}

// Monitor arranges for a single ProcessDown to be delivered to p when
// subject terminates, and returns the Reference identifying that monitor.
func (p *Process) Monitor(subject Pid) Reference {
	return p.reg.monitor(p.self, subject)
}

// Demonitor cancels a monitor before it fires. If ProcessDown has already
// been enqueued it is not retracted.
func (p *Process) Demonitor(ref Reference) {
	p.reg.demonitor(ref)
}

// Exit sends an exit signal to to as though p and to were linked, without
// requiring an actual link: reason Kill is never trappable, reason Normal
// is swallowed by a non-trapping recipient exactly like a linked peer's
// normal exit would be.
func (p *Process) Exit(to Pid, reason ExitReason) {
	p.reg.signalExit(p.self, to, reason, false)
}

// terminate runs this process's termination fan-out exactly once,
// regardless of whether it is triggered by Kill, an unhandled exit signal,
// or the process body returning naturally — the sync.Once prevents a race
// between a forced kill and a concurrent natural return from double
// signaling every linked peer.
func (p *Process) terminate(reason ExitReason) {
	p.termOnce.Do(func() {
		p.reason = reason
		p.cancel()
		p.reg.terminate(p.self, reason)
		close(p.done)
	})
}

// ExitReason reports the reason this process terminated with. Only
// meaningful after Done is closed.
func (p *Process) ExitReason() ExitReason { return p.reason }

// Receive blocks for the next user message of type T, skipping over (and
// leaving queued) any system message ahead of it, until ctx is done.
func Receive[T any](ctx context.Context, p *Process) (Message[T], error) {
	e, err := p.mailbox.receive(ctx, func(e envelope) bool {
		_, ok := e.user.(T)
		return e.isUser && ok
	})
	if err != nil {
		return Message[T]{}, err
	}
	return messageOf[T](e), nil
}

// Select blocks for the next mailbox entry — user or system — in strict
// FIFO order.
func Select[T any](ctx context.Context, p *Process) (Message[T], error) {
	e, err := p.mailbox.receive(ctx, alwaysMatch)
	if err != nil {
		return Message[T]{}, err
	}
	return messageOf[T](e), nil
}
