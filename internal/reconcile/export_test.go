package reconcile

import "time"

// SetSleep replaces the wait-loop sleep so tests can count iterations
// without blocking.
func SetSleep(r *Reconciler, sleep func(time.Duration)) {
	r.sleep = sleep
}
