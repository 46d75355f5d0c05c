package reconcile

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nixpig/launchdsync/internal/descriptor"
	"github.com/nixpig/launchdsync/internal/launchd"
	"github.com/nixpig/launchdsync/internal/procscan"
)

// ServiceManager is the injected launchctl surface. The real implementation
// is launchd.Client; tests substitute an in-memory job table.
type ServiceManager interface {
	ListActiveJobs(domain string) ([]string, error)
	StopJob(domain, label string) error
	EnableJob(domain, label string) error
	BootstrapJob(domain, plistPath string) error
}

// DescriptorStore is the injected on-disk descriptor surface, implemented by
// descriptor.Store.
type DescriptorStore interface {
	List(scope descriptor.Scope) []string
	ReadLabel(path string) (string, bool)
	Classify(path string) descriptor.Class
	Write(d *descriptor.JobDescriptor, path string) error
}

// Config carries the suite naming and paths a Reconciler operates on.
type Config struct {
	// PrimaryProcess is the command name of the primary update process.
	// Reconciliation blocks until no process by this name is running.
	PrimaryProcess string

	// SessionLauncher is the command name whose non-root instances mark
	// logged-in GUI sessions.
	SessionLauncher string

	// AppUsageAgentLabel and AppUsageDaemonLabel are the app-usage group's
	// per-user agent and system daemon.
	AppUsageAgentLabel  string
	AppUsageDaemonLabel string

	// TriggerLabelFamily prefixes the ephemeral trigger-job labels.
	TriggerLabelFamily string

	// TriggerLabel is this run's own trigger label, carried in from the
	// trigger job's environment. Empty for manual invocations.
	TriggerLabel string

	// DaemonsDir is where trigger-job descriptors are written.
	DaemonsDir string

	// ExecutablePath is this binary's path, used as the trigger job's
	// program.
	ExecutablePath string

	// PollInterval is the sleep between primary-process liveness probes.
	PollInterval time.Duration
}

// Reconciler drives the service manager's job table toward the on-disk
// desired set, one run group at a time.
type Reconciler struct {
	mgr     ServiceManager
	store   DescriptorStore
	scanner procscan.Scanner
	cfg     Config
	logger  *slog.Logger
	phase   AtomicPhase

	// sleep is swapped out by tests.
	sleep func(time.Duration)
}

// New returns a Reconciler over the given dependencies.
func New(
	mgr ServiceManager,
	store DescriptorStore,
	scanner procscan.Scanner,
	cfg Config,
	logger *slog.Logger,
) *Reconciler {
	return &Reconciler{
		mgr:     mgr,
		store:   store,
		scanner: scanner,
		cfg:     cfg,
		logger:  logger,
		sleep:   time.Sleep,
	}
}

// Phase returns the reconciler's current phase.
func (r *Reconciler) Phase() Phase {
	return r.phase.Load()
}

// Reconcile tears down and re-registers the suite's jobs for the given run
// group, scope by scope, then removes this run's ephemeral trigger job.
//
// Every step is best-effort: a failed launchctl call or unreadable
// descriptor is logged and skipped, never fatal. Stale state is avoided by
// re-querying live process and job state at each step rather than caching.
func (r *Reconciler) Reconcile(group Group) {
	r.logger.Info("starting reconciliation", "group", group.String())

	r.waitForPrimaryToExit()

	r.phase.Store(PhaseReconciling)
	defer r.phase.Store(PhaseIdle)

	r.reconcileUserAgents(group)

	// App-usage jobs have no pre-login presence.
	if group == GroupGeneral {
		r.reconcileLoginWindowAgents()
	}

	r.reconcileSystemDaemons(group)

	r.cleanupTriggerJob()

	r.logger.Info("reconciliation complete", "group", group.String())
}

// waitForPrimaryToExit blocks until no primary update process is running.
// There is deliberately no timeout: reconciling jobs underneath a running
// update could corrupt its state, so waiting forever beats proceeding.
//
// A process could still appear between the final probe and the first
// mutation; the suite's trigger-job mechanism keeps reconciliations rare
// enough that this window is accepted.
func (r *Reconciler) waitForPrimaryToExit() {
	r.phase.Store(PhaseWaiting)

	for procscan.IsRunning(r.scanner.Snapshot(), r.cfg.PrimaryProcess) {
		r.logger.Info(
			"primary process is running, waiting before reconciling",
			"process", r.cfg.PrimaryProcess,
			"interval", r.cfg.PollInterval.String(),
		)

		r.sleep(r.cfg.PollInterval)
	}
}

// reconcileUserAgents stops then restarts every eligible per-user agent in
// each logged-in user's GUI session. Users are processed in discovery order;
// there is no priority between them.
func (r *Reconciler) reconcileUserAgents(group Group) {
	uids := procscan.ConsoleUserUIDs(r.scanner.Snapshot(), r.cfg.SessionLauncher)
	if len(uids) == 0 {
		r.logger.Info("no logged-in users, skipping user agents")
		return
	}

	for _, uid := range uids {
		domain := launchd.GUIDomain(uid)

		r.stopEligible(domain, group, r.cfg.AppUsageAgentLabel, nil)

		for _, path := range r.store.List(descriptor.ScopeUser) {
			if r.store.Classify(path) != descriptor.ClassUser {
				continue
			}

			label, ok := r.store.ReadLabel(path)
			if !ok || !group.eligible(label, r.cfg.AppUsageAgentLabel) {
				continue
			}

			r.startJob(domain, label, path)
		}
	}
}

// reconcileLoginWindowAgents stops then restarts every pre-login agent. No
// group filter applies: this scope is only reconciled for the general group,
// which owns all of it.
func (r *Reconciler) reconcileLoginWindowAgents() {
	active, err := r.mgr.ListActiveJobs(launchd.LoginWindowDomain)
	if err != nil {
		r.logger.Error("list loginwindow jobs", "err", err)
	}

	for _, label := range active {
		r.stopJob(launchd.LoginWindowDomain, label)
	}

	for _, path := range r.store.List(descriptor.ScopeLoginWindow) {
		if r.store.Classify(path) != descriptor.ClassLoginWindow {
			continue
		}

		label, ok := r.store.ReadLabel(path)
		if !ok {
			continue
		}

		r.startJob(launchd.LoginWindowDomain, label, path)
	}
}

// reconcileSystemDaemons stops then restarts every eligible system daemon,
// always excluding the trigger-job family: unloading the trigger job here
// would terminate this very process mid-run.
func (r *Reconciler) reconcileSystemDaemons(group Group) {
	skip := func(label string) bool {
		return inFamily(label, r.cfg.TriggerLabelFamily)
	}

	r.stopEligible(launchd.SystemDomain, group, r.cfg.AppUsageDaemonLabel, skip)

	for _, path := range r.store.List(descriptor.ScopeSystem) {
		label, ok := r.store.ReadLabel(path)
		if !ok || skip(label) {
			continue
		}

		if !group.eligible(label, r.cfg.AppUsageDaemonLabel) {
			continue
		}

		r.startJob(launchd.SystemDomain, label, path)
	}
}

// cleanupTriggerJob removes this run's ephemeral trigger job. The descriptor
// file is deleted strictly before the job is stopped: stopping the job is
// what terminates this process, so anything sequenced after the stop call
// never runs.
func (r *Reconciler) cleanupTriggerJob() {
	if r.cfg.TriggerLabel == "" {
		return
	}

	path := filepath.Join(r.cfg.DaemonsDir, r.cfg.TriggerLabel+".plist")

	if _, err := os.Stat(path); err != nil {
		return
	}

	r.logger.Info("removing trigger job", "label", r.cfg.TriggerLabel)

	if err := os.Remove(path); err != nil {
		r.logger.Error("remove trigger descriptor", "path", path, "err", err)
	}

	// Likely the last thing this process ever does.
	r.stopJob(launchd.SystemDomain, r.cfg.TriggerLabel)
}

// stopEligible stops every currently active label in the domain that passes
// the group filter and is not excluded by skip.
func (r *Reconciler) stopEligible(
	domain string,
	group Group,
	appUsageLabel string,
	skip func(string) bool,
) {
	active, err := r.mgr.ListActiveJobs(domain)
	if err != nil {
		r.logger.Error("list active jobs", "domain", domain, "err", err)
		return
	}

	for _, label := range active {
		if skip != nil && skip(label) {
			continue
		}

		if !group.eligible(label, appUsageLabel) {
			continue
		}

		r.stopJob(domain, label)
	}
}

func (r *Reconciler) stopJob(domain, label string) {
	r.logger.Info("stopping job", "domain", domain, "label", label)

	if err := r.mgr.StopJob(domain, label); err != nil {
		r.logger.Error("stop job", "domain", domain, "label", label, "err", err)
	}
}

// startJob bootstraps the descriptor into the domain and enables its label,
// clearing any lingering disabled override.
func (r *Reconciler) startJob(domain, label, path string) {
	r.logger.Info("starting job", "domain", domain, "label", label)

	if err := r.mgr.BootstrapJob(domain, path); err != nil {
		r.logger.Error("bootstrap job", "domain", domain, "path", path, "err", err)
	}

	if err := r.mgr.EnableJob(domain, label); err != nil {
		r.logger.Error("enable job", "domain", domain, "label", label, "err", err)
	}
}

func inFamily(label, family string) bool {
	return family != "" && strings.HasPrefix(label, family)
}
