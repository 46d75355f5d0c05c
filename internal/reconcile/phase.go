package reconcile

import "sync/atomic"

// Phase is the reconciler's coarse state: blocked waiting for the primary
// update process to exit, or actively mutating job state.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseWaiting
	PhaseReconciling
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseWaiting:
		return "waiting"
	case PhaseReconciling:
		return "reconciling"
	default:
		return "unknown"
	}
}

// AtomicPhase is a Phase safe for observation from another goroutine (the
// reconciler itself is single-threaded).
type AtomicPhase struct {
	v atomic.Int64
}

func (p *AtomicPhase) Store(phase Phase) {
	p.v.Store(int64(phase))
}

func (p *AtomicPhase) Load() Phase {
	return Phase(p.v.Load())
}
