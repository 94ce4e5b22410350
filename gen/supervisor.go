package gen

import (
	"context"
	"sync"
	"time"

	"github.com/nodecrew/actorkit"
)

type supervisedChild struct {
	spec ChildSpec
	pid  actorkit.Pid
	has  bool
}

// supervisorCast is the internal message a failed restart re-posts to the
// supervisor's own mailbox so a tight failure loop still passes through
// the restart-intensity quota on every turn, instead of looping
// synchronously inside the handler that discovered the failure.
type supervisorCast struct {
	tryAgainID string
}

// SupervisorSpec configures a Supervisor before it is started: the
// children it owns (in declaration order), the strategy used when one of
// them terminates, and the restart-intensity quota.
type SupervisorSpec struct {
	Children     []ChildSpec
	Strategy     Strategy
	AutoShutdown AutoShutdown
	MaxRestarts  int           // default 3
	MaxDuration  time.Duration // default 5s
}

// Supervisor is a process that owns a set of children and restarts them
// according to its strategy. Ported function-for-function from
// hydra/src/supervisor.rs's Supervisor, the one place in the reference
// corpus where OneForOne/OneForAll/RestForOne restart and the
// restart-intensity quota are fully worked out; rutaka-n-ergonode's
// Supervisor.loop supplied the Go shape (a process whose mailbox carries
// EXIT-style tuples) that this wraps the port inside.
type Supervisor struct {
	mu       sync.Mutex
	children []supervisedChild
	ids      map[string]struct{}
	restarts []time.Time

	strategy     Strategy
	autoShutdown AutoShutdown
	maxRestarts  int
	maxDuration  time.Duration

	node *actorkit.Node
	self actorkit.Pid
}

// NewSupervisor builds a Supervisor from spec, applying the documented
// defaults (OneForOne, Never, 3 restarts per 5s) for zero-valued fields.
func NewSupervisor(spec SupervisorSpec) *Supervisor {
	maxRestarts := spec.MaxRestarts
	if maxRestarts == 0 {
		maxRestarts = 3
	}
	maxDuration := spec.MaxDuration
	if maxDuration == 0 {
		maxDuration = 5 * time.Second
	}

	sv := &Supervisor{
		ids:          make(map[string]struct{}, len(spec.Children)),
		strategy:     spec.Strategy,
		autoShutdown: spec.AutoShutdown,
		maxRestarts:  maxRestarts,
		maxDuration:  maxDuration,
	}
	for _, c := range spec.Children {
		sv.addChild(c)
	}
	return sv
}

func (sv *Supervisor) addChild(spec ChildSpec) {
	if _, dup := sv.ids[spec.ID]; dup {
		panic("gen: duplicate child id " + spec.ID)
	}
	sv.ids[spec.ID] = struct{}{}
	sv.children = append(sv.children, supervisedChild{spec: spec})
}

// Start spawns the supervisor as its own trap-exit process on n, starts
// every child in declaration order, and returns the supervisor's Pid.
// If any child fails to start, every already-started child is torn down
// in reverse order and Start returns the failure.
func (sv *Supervisor) Start(n *actorkit.Node) (actorkit.Pid, error) {
	sv.node = n

	started := make(chan error, 1)
	pid := n.Spawn(func(p *actorkit.Process) actorkit.ExitReason {
		sv.self = p.Self()
		p.SetTrapExit(true)

		if err := sv.startChildren(p.Context()); err != nil {
			sv.terminateChildren(p.Context())
			started <- err
			return actorkit.Custom("failed_to_start_child")
		}
		started <- nil

		return sv.loop(p)
	})

	if err := <-started; err != nil {
		return actorkit.Pid{}, err
	}
	return pid, nil
}

func (sv *Supervisor) loop(p *actorkit.Process) actorkit.ExitReason {
	for {
		msg, err := actorkit.Select[supervisorCast](p.Context(), p)
		if err != nil {
			return actorkit.Normal
		}
		if msg.IsUser {
			if reason := sv.handleCast(p.Context(), msg.User); !reason.IsNormal() {
				sv.terminateChildren(p.Context())
				return reason
			}
			continue
		}
		switch sys := msg.Sys.(type) {
		case actorkit.ExitSignal:
			if reason := sv.restartChild(p.Context(), sys.From, sys.Reason); !reason.IsNormal() {
				sv.terminateChildren(p.Context())
				return reason
			}
		default:
		}
	}
}

// handleCast is the single dispatch point for every TryAgainRestartId
// retry, however it was reached (restartOne, restartAll, restartFrom all
// repost through postTryAgain rather than retrying inline). It charges the
// retry against addRestart before attempting the start, so a persistently
// failing child is throttled exactly like the crash that first triggered
// its restart.
func (sv *Supervisor) handleCast(ctx context.Context, cast supervisorCast) actorkit.ExitReason {
	if cast.tryAgainID == "" {
		return actorkit.Normal
	}
	sv.mu.Lock()
	index := sv.indexByID(cast.tryAgainID)
	sv.mu.Unlock()
	if index < 0 {
		return actorkit.Normal
	}
	if sv.addRestart() {
		return actorkit.ShutdownReason()
	}
	sv.restartOne(ctx, index)
	return actorkit.Normal
}

// postTryAgain re-posts supervisorCast to the supervisor's own mailbox so
// a retry is handled by handleCast on the next scheduler turn instead of
// looping synchronously inside the caller that discovered the failure.
func (sv *Supervisor) postTryAgain(id string) {
	if p, ok := sv.node.Process(sv.self); ok {
		_ = p.Send(sv.self, supervisorCast{tryAgainID: id})
	}
}

func (sv *Supervisor) indexByID(id string) int {
	for i, c := range sv.children {
		if c.spec.ID == id {
			return i
		}
	}
	return -1
}

func (sv *Supervisor) indexByPid(pid actorkit.Pid) int {
	for i, c := range sv.children {
		if c.has && c.pid == pid {
			return i
		}
	}
	return -1
}

// startChildren starts every child in declaration order. A Temporary
// child whose start yields Ignore is dropped entirely, since it has no
// restart future.
func (sv *Supervisor) startChildren(ctx context.Context) error {
	sv.mu.Lock()
	defer sv.mu.Unlock()

	var remove []int
	for i := range sv.children {
		pid, reason := sv.startChildLocked(ctx, i)
		if reason != nil {
			return reason
		}
		if !sv.children[i].has && sv.children[i].spec.isTemporary() {
			remove = append(remove, i)
		}
		_ = pid
	}
	for i := len(remove) - 1; i >= 0; i-- {
		sv.removeChildLocked(remove[i])
	}
	return nil
}

// startChildLocked invokes child i's start thunk and classifies the
// result: Ignore becomes a pid-less slot, any other error is propagated.
// A successfully started child is linked to the supervisor's own pid: the
// start thunk has no way to do this itself (it never receives sv.self),
// and without the link the supervisor's trapped mailbox never sees the
// child's ExitSignal, so restartChild (and the whole restart-intensity
// quota) would never run.
func (sv *Supervisor) startChildLocked(ctx context.Context, i int) (actorkit.Pid, error) {
	child := &sv.children[i]
	pid, reason := child.spec.Start(ctx)
	if reason == nil {
		sv.node.Link(sv.self, pid)
		child.pid = pid
		child.has = true
		return pid, nil
	}
	if er, ok := reason.(actorkit.ExitReason); ok && er.IsIgnore() {
		child.has = false
		return actorkit.Pid{}, nil
	}
	return actorkit.Pid{}, reason
}

func (sv *Supervisor) terminateChildren(ctx context.Context) {
	sv.mu.Lock()
	children := append([]supervisedChild(nil), sv.children...)
	sv.mu.Unlock()

	var remove []int
	for i := len(children) - 1; i >= 0; i-- {
		if children[i].spec.isTemporary() {
			remove = append(remove, i)
		}
		if !children[i].has {
			continue
		}
		actorkit.Shutdown(sv.node, children[i].pid, children[i].spec.EffectiveShutdown())
	}

	sv.mu.Lock()
	for _, i := range remove {
		sv.removeChildLocked(i)
	}
	sv.mu.Unlock()
}

func (sv *Supervisor) removeChildLocked(i int) supervisedChild {
	child := sv.children[i]
	delete(sv.ids, child.spec.ID)
	sv.children = append(sv.children[:i:i], sv.children[i+1:]...)
	return child
}

// restartChild is the handler for a trapped child ExitSignal: find the
// child by pid, apply the restart/reason table from §4.E, and return the
// reason the supervisor itself should terminate with, or Normal to keep
// running.
func (sv *Supervisor) restartChild(ctx context.Context, pid actorkit.Pid, reason actorkit.ExitReason) actorkit.ExitReason {
	sv.mu.Lock()
	index := sv.indexByPid(pid)
	if index < 0 {
		sv.mu.Unlock()
		return actorkit.Normal
	}
	child := sv.children[index]
	sv.mu.Unlock()

	normalish := reason.IsNormal() || reason.IsShutdown()

	if child.spec.isPermanent() {
		if sv.addRestart() {
			return actorkit.ShutdownReason()
		}
		sv.restart(ctx, index)
		return actorkit.Normal
	}

	if normalish {
		sv.mu.Lock()
		removed := sv.removeChildLocked(index)
		sv.mu.Unlock()
		if sv.checkAutoShutdown(removed) {
			return actorkit.ShutdownReason()
		}
		return actorkit.Normal
	}

	if child.spec.isTransient() {
		if sv.addRestart() {
			return actorkit.ShutdownReason()
		}
		sv.restart(ctx, index)
		return actorkit.Normal
	}

	// Temporary, abnormal reason: remove and maybe auto-shutdown.
	sv.mu.Lock()
	removed := sv.removeChildLocked(index)
	sv.mu.Unlock()
	if sv.checkAutoShutdown(removed) {
		return actorkit.ShutdownReason()
	}
	return actorkit.Normal
}

// restart dispatches to the strategy-specific restart sequence.
func (sv *Supervisor) restart(ctx context.Context, index int) {
	switch sv.strategy {
	case OneForOne:
		sv.restartOne(ctx, index)
	case OneForAll:
		sv.restartAll(ctx)
	case RestForOne:
		sv.restartFrom(ctx, index)
	}
}

// restartOne restarts only child i. A failed start re-posts
// TryAgainRestartId to the supervisor's own mailbox rather than retrying
// synchronously, so a tight failure loop still passes through
// addRestart's quota on every turn.
func (sv *Supervisor) restartOne(ctx context.Context, index int) {
	sv.mu.Lock()
	_, reason := sv.startChildLocked(ctx, index)
	id := sv.children[index].spec.ID
	sv.mu.Unlock()
	if reason != nil {
		sv.postTryAgain(id)
	}
}

// restartAll shuts down every other live child (reverse declaration
// order), purges removed temporaries, then restarts every child in
// declaration order.
func (sv *Supervisor) restartAll(ctx context.Context) {
	sv.mu.Lock()
	children := append([]supervisedChild(nil), sv.children...)
	sv.mu.Unlock()

	var remove []int
	for i := len(children) - 1; i >= 0; i-- {
		if !children[i].has {
			continue
		}
		actorkit.Shutdown(sv.node, children[i].pid, children[i].spec.EffectiveShutdown())
		sv.mu.Lock()
		sv.children[i].has = false
		sv.children[i].pid = actorkit.Pid{}
		sv.mu.Unlock()
		if children[i].spec.isTemporary() {
			remove = append(remove, i)
		}
	}
	sv.mu.Lock()
	for _, i := range remove {
		sv.removeChildLocked(i)
	}
	n := len(sv.children)
	sv.mu.Unlock()

	for i := 0; i < n; i++ {
		sv.mu.Lock()
		_, reason := sv.startChildLocked(ctx, i)
		id := sv.children[i].spec.ID
		sv.mu.Unlock()
		if reason != nil {
			sv.postTryAgain(id)
		}
	}
}

// restartFrom shuts down children at positions > index (reverse order),
// then starts children at positions ≥ index in order.
func (sv *Supervisor) restartFrom(ctx context.Context, index int) {
	sv.mu.Lock()
	children := append([]supervisedChild(nil), sv.children...)
	sv.mu.Unlock()

	var remove []int
	for i := len(children) - 1; i > index; i-- {
		if !children[i].has {
			continue
		}
		actorkit.Shutdown(sv.node, children[i].pid, children[i].spec.EffectiveShutdown())
		sv.mu.Lock()
		sv.children[i].has = false
		sv.children[i].pid = actorkit.Pid{}
		sv.mu.Unlock()
		if children[i].spec.isTemporary() {
			remove = append(remove, i)
		}
	}
	sv.mu.Lock()
	for _, i := range remove {
		sv.removeChildLocked(i)
	}
	sv.mu.Unlock()

	for i := index; i < len(sv.children); i++ {
		sv.mu.Lock()
		_, reason := sv.startChildLocked(ctx, i)
		id := sv.children[i].spec.ID
		sv.mu.Unlock()
		if reason != nil {
			sv.postTryAgain(id)
		}
	}
}

// addRestart records a restart timestamp, discards ones older than
// maxDuration, and reports whether the quota has been exceeded.
func (sv *Supervisor) addRestart() bool {
	sv.mu.Lock()
	defer sv.mu.Unlock()

	now := time.Now()
	threshold := now.Add(-sv.maxDuration)
	kept := sv.restarts[:0]
	for _, t := range sv.restarts {
		if t.After(threshold) {
			kept = append(kept, t)
		}
	}
	kept = append(kept, now)
	sv.restarts = kept

	return len(sv.restarts) > sv.maxRestarts
}

// checkAutoShutdown reports whether removing child should terminate the
// supervisor, per the AutoShutdown mode.
func (sv *Supervisor) checkAutoShutdown(child supervisedChild) bool {
	if sv.autoShutdown == Never {
		return false
	}
	if !child.spec.Significant {
		return false
	}
	if sv.autoShutdown == AnySignificant {
		return true
	}

	sv.mu.Lock()
	defer sv.mu.Unlock()
	for _, c := range sv.children {
		if c.has && c.spec.Significant {
			return false
		}
	}
	return true
}
