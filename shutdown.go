package actorkit

import "time"

// ShutdownPolicy governs how Shutdown waits for a child to terminate once
// told to stop. Ported from hydra's shutdown_brutal_kill / shutdown_timeout
// / shutdown_infinity, which this type dispatches between.
type ShutdownPolicy struct {
	kind shutdownKind
	wait time.Duration
}

type shutdownKind uint8

const (
	shutdownBrutalKill shutdownKind = iota
	shutdownTimeout
	shutdownInfinity
)

// BrutalKill terminates a child immediately with Kill, no grace period.
func BrutalKill() ShutdownPolicy { return ShutdownPolicy{kind: shutdownBrutalKill} }

// Timeout asks a child to stop with ShutdownReason and escalates to Kill
// if it has not exited within d.
func Timeout(d time.Duration) ShutdownPolicy {
	return ShutdownPolicy{kind: shutdownTimeout, wait: d}
}

// Infinity asks a child to stop with ShutdownReason and waits however long
// it takes, never escalating to Kill. Appropriate only for children that
// are themselves supervisors.
func Infinity() ShutdownPolicy { return ShutdownPolicy{kind: shutdownInfinity} }

// Shutdown stops the process named by pid according to policy, blocking
// until it has actually terminated. It waits on the target's Done channel,
// so it observes termination whether or not pid is linked to the caller.
func Shutdown(n *Node, pid Pid, policy ShutdownPolicy) {
	switch policy.kind {
	case shutdownBrutalKill:
		shutdownBrutal(n, pid)
	case shutdownTimeout:
		shutdownWithTimeout(n, pid, policy.wait)
	default:
		shutdownInfinitely(n, pid)
	}
}

func shutdownBrutal(n *Node, pid Pid) {
	p, ok := n.Process(pid)
	if !ok {
		return
	}
	n.Signal(pid, pid, Kill)
	<-p.Done()
}

func shutdownWithTimeout(n *Node, pid Pid, d time.Duration) {
	p, ok := n.Process(pid)
	if !ok {
		return
	}
	n.Signal(Pid{}, pid, ShutdownReason())
	select {
	case <-p.Done():
	case <-time.After(d):
		n.Signal(pid, pid, Kill)
		<-p.Done()
	}
}

func shutdownInfinitely(n *Node, pid Pid) {
	p, ok := n.Process(pid)
	if !ok {
		return
	}
	n.Signal(Pid{}, pid, ShutdownReason())
	<-p.Done()
}

// UnlinkFlush removes self's link to peer and drains any ExitSignal from
// peer already sitting in self's mailbox, so a supervisor that is about to
// stop tracking a child doesn't later trip over a stale exit notification
// from it. Non-blocking: returns immediately if nothing is queued. Ported
// from hydra's unlink_flush, which scans with Process::receiver().drop()
// rather than a blocking select.
func UnlinkFlush(n *Node, self, peer Pid) {
	n.reg.unlink(self, peer)
	p, ok := n.Process(self)
	if !ok {
		return
	}
	p.mailbox.scanRemove(func(e envelope) bool {
		sig, ok := e.sys.(ExitSignal)
		return ok && sig.From == peer
	})
}
