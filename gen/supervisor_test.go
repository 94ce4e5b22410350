package gen

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nodecrew/actorkit"
)

func crashingWorker(n *actorkit.Node, crash func() bool) StartFunc {
	return func(ctx context.Context) (actorkit.Pid, error) {
		pid := n.Spawn(func(p *actorkit.Process) actorkit.ExitReason {
			if crash() {
				return actorkit.Custom("boom")
			}
			<-p.Context().Done()
			return actorkit.Normal
		})
		return pid, nil
	}
}

func TestPermanentChildCrashTripsQuota(t *testing.T) {
	n := actorkit.NewNode(context.Background(), "n1")

	var starts atomic.Int32
	sv := NewSupervisor(SupervisorSpec{
		Children: []ChildSpec{{
			ID:      "worker",
			Restart: Permanent,
			Start: func(ctx context.Context) (actorkit.Pid, error) {
				starts.Add(1)
				return n.Spawn(func(p *actorkit.Process) actorkit.ExitReason {
					return actorkit.Custom("boom")
				}), nil
			},
		}},
		Strategy:    OneForOne,
		MaxRestarts: 3,
		MaxDuration: time.Second,
	})

	pid, err := sv.Start(n)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	p, ok := n.Process(pid)
	if !ok {
		t.Fatal("supervisor not running")
	}

	select {
	case <-p.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("supervisor never exhausted restart quota")
	}

	if !p.ExitReason().IsShutdown() {
		t.Fatalf("supervisor exit reason = %q, want shutdown", p.ExitReason())
	}
	if got := starts.Load(); got < 4 {
		t.Fatalf("observed %d child starts, want at least 4", got)
	}
}

func TestTransientNormalExitIsNotRestarted(t *testing.T) {
	n := actorkit.NewNode(context.Background(), "n1")

	var starts atomic.Int32
	sv := NewSupervisor(SupervisorSpec{
		Children: []ChildSpec{{
			ID:      "worker",
			Restart: Transient,
			Start: func(ctx context.Context) (actorkit.Pid, error) {
				starts.Add(1)
				return n.Spawn(func(p *actorkit.Process) actorkit.ExitReason {
					return actorkit.Normal
				}), nil
			},
		}},
		Strategy:     OneForOne,
		AutoShutdown: Never,
	})

	pid, err := sv.Start(n)
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	time.Sleep(100 * time.Millisecond)

	p, ok := n.Process(pid)
	if !ok {
		t.Fatal("supervisor not running")
	}
	select {
	case <-p.Done():
		t.Fatalf("supervisor terminated unexpectedly with reason %q", p.ExitReason())
	default:
	}

	if got := starts.Load(); got != 1 {
		t.Fatalf("observed %d child starts, want exactly 1 (no restart)", got)
	}
}
