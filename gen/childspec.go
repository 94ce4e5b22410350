// Package gen provides the behaviours built on top of actorkit's bare
// process model: GenServer request/reply dispatch and the supervision
// engine. Grounded on Jeffersonmf-ergo-1's gen_server.go and on hydra's
// supervisor.rs, which this package's Supervisor ports almost line for
// line.
package gen

import (
	"context"
	"time"

	"github.com/nodecrew/actorkit"
)

// Restart classifies how a supervisor reacts when a child terminates.
type Restart uint8

const (
	// Permanent children are always restarted, regardless of exit reason.
	Permanent Restart = iota
	// Transient children are restarted only on an abnormal exit; a Normal
	// or "shutdown" exit removes them without restarting.
	Transient
	// Temporary children are never restarted.
	Temporary
)

// ChildType affects the default shutdown policy when a ChildSpec doesn't
// set one explicitly: Worker defaults to a 5 second timeout,
// SupervisorChild to Infinity, since a supervisor may itself have children
// still unwinding.
type ChildType uint8

const (
	Worker ChildType = iota
	SupervisorChild
)

// StartFunc starts a child and returns its Pid. A nil error means success;
// returning actorkit.Ignore as the error opts out of starting without
// that counting as a failure; any other error fails the start and
// propagates to the supervisor's caller (or, during a restart, gates the
// restart-intensity quota).
type StartFunc func(ctx context.Context) (actorkit.Pid, error)

// ChildSpec is an immutable declaration of one supervised child.
type ChildSpec struct {
	ID          string
	Start       StartFunc
	Restart     Restart
	Shutdown    *actorkit.ShutdownPolicy // nil selects the ChildType default
	ChildType   ChildType
	Significant bool
}

// EffectiveShutdown resolves Shutdown against the ChildType default.
func (s ChildSpec) EffectiveShutdown() actorkit.ShutdownPolicy {
	if s.Shutdown != nil {
		return *s.Shutdown
	}
	if s.ChildType == SupervisorChild {
		return actorkit.Infinity()
	}
	return actorkit.Timeout(5 * time.Second)
}

func (s ChildSpec) isPermanent() bool { return s.Restart == Permanent }
func (s ChildSpec) isTransient() bool { return s.Restart == Transient }
func (s ChildSpec) isTemporary() bool { return s.Restart == Temporary }
