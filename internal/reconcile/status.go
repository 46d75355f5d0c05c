package reconcile

import (
	"github.com/nixpig/launchdsync/internal/descriptor"
	"github.com/nixpig/launchdsync/internal/launchd"
	"github.com/nixpig/launchdsync/internal/procscan"
)

// ScopeStatus is a read-only snapshot of one scope's desired (on-disk) and
// active (loaded) label sets.
type ScopeStatus struct {
	Scope   descriptor.Scope
	Domain  string
	Desired []string
	Active  []string
}

// Status reports desired vs. active labels for the system scope, each
// logged-in user's GUI scope, and the loginwindow scope. It performs no
// mutations and applies no group filter.
func (r *Reconciler) Status() []ScopeStatus {
	statuses := []ScopeStatus{
		r.scopeStatus(descriptor.ScopeSystem, launchd.SystemDomain),
	}

	for _, uid := range procscan.ConsoleUserUIDs(r.scanner.Snapshot(), r.cfg.SessionLauncher) {
		statuses = append(statuses,
			r.scopeStatus(descriptor.ScopeUser, launchd.GUIDomain(uid)))
	}

	statuses = append(statuses,
		r.scopeStatus(descriptor.ScopeLoginWindow, launchd.LoginWindowDomain))

	return statuses
}

func (r *Reconciler) scopeStatus(scope descriptor.Scope, domain string) ScopeStatus {
	st := ScopeStatus{Scope: scope, Domain: domain}

	for _, path := range r.store.List(scope) {
		label, ok := r.store.ReadLabel(path)
		if !ok {
			continue
		}

		switch scope {
		case descriptor.ScopeUser:
			if r.store.Classify(path) != descriptor.ClassUser {
				continue
			}
		case descriptor.ScopeLoginWindow:
			if r.store.Classify(path) != descriptor.ClassLoginWindow {
				continue
			}
		}

		st.Desired = append(st.Desired, label)
	}

	active, err := r.mgr.ListActiveJobs(domain)
	if err != nil {
		r.logger.Error("list active jobs", "domain", domain, "err", err)
	}

	st.Active = active

	return st
}
