package reconcile

import (
	"fmt"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/nixpig/launchdsync/internal/descriptor"
	"github.com/nixpig/launchdsync/internal/launchd"
)

// Environment variables recognized by the launchdsync entry point. EnvGroup
// marks a service-manager-triggered re-invocation and selects its run group;
// EnvTriggerLabel tells that re-invocation which trigger job it is running
// under so it can clean it up.
const (
	EnvGroup        = "LAUNCHDSYNC_GROUP"
	EnvTriggerLabel = "LAUNCHDSYNC_TRIGGER_LABEL"
)

// InstallTriggerJob hands a manual invocation off to a privileged,
// service-manager-supervised re-invocation: it writes an ephemeral
// run-at-load trigger descriptor whose environment carries the run group,
// then bootstraps it. Any trigger job still active from an earlier run is
// stopped first.
//
// Each run gets a fresh UUID-suffixed label within the trigger family so a
// stale job can never be confused with this run's.
func (r *Reconciler) InstallTriggerJob(group Group) error {
	active, err := r.mgr.ListActiveJobs(launchd.SystemDomain)
	if err != nil {
		r.logger.Error("list active jobs", "domain", launchd.SystemDomain, "err", err)
	}

	for _, label := range active {
		if inFamily(label, r.cfg.TriggerLabelFamily) {
			r.stopJob(launchd.SystemDomain, label)
		}
	}

	label := r.cfg.TriggerLabelFamily + "." + uuid.NewString()
	path := filepath.Join(r.cfg.DaemonsDir, label+".plist")

	d := &descriptor.JobDescriptor{
		Label:            label,
		ProgramArguments: []string{r.cfg.ExecutablePath},
		EnvironmentVariables: map[string]string{
			EnvGroup:        group.String(),
			EnvTriggerLabel: label,
		},
		RunAtLoad: true,
	}

	if err := r.store.Write(d, path); err != nil {
		r.logger.Error("write trigger descriptor", "path", path, "err", err)
		return fmt.Errorf("write trigger descriptor: %w", err)
	}

	r.logger.Info("installed trigger job", "label", label, "group", group.String())

	if err := r.mgr.BootstrapJob(launchd.SystemDomain, path); err != nil {
		r.logger.Error("bootstrap trigger job", "label", label, "err", err)
		return fmt.Errorf("bootstrap trigger job: %w", err)
	}

	return nil
}
