package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"text/tabwriter"

	"github.com/nixpig/launchdsync/internal/config"
	"github.com/nixpig/launchdsync/internal/descriptor"
	"github.com/nixpig/launchdsync/internal/launchd"
	"github.com/nixpig/launchdsync/internal/logging"
	"github.com/nixpig/launchdsync/internal/procscan"
	"github.com/nixpig/launchdsync/internal/reconcile"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

type options struct {
	configPath string
	debug      bool
}

type mode int

const (
	modeReconcile mode = iota
	modeInstallTrigger
)

type invocation struct {
	mode  mode
	group reconcile.Group
}

// resolveInvocation implements the entry dispatch. A run group in the
// environment marks a service-manager-triggered re-invocation, which
// reconciles directly; a run group as the positional argument marks a
// manual invocation, which hands off by installing a trigger job. Anything
// else is a usage error.
func resolveInvocation(envGroup string, args []string) (invocation, error) {
	if envGroup != "" {
		group, err := reconcile.ParseGroup(envGroup)
		if err != nil {
			return invocation{}, fmt.Errorf("%s: %w", reconcile.EnvGroup, err)
		}

		return invocation{mode: modeReconcile, group: group}, nil
	}

	if len(args) == 1 {
		group, err := reconcile.ParseGroup(args[0])
		if err != nil {
			return invocation{}, err
		}

		return invocation{mode: modeInstallTrigger, group: group}, nil
	}

	return invocation{}, errors.New(
		"run group required: pass 'appusage' or 'general'")
}

func rootCmd() *cobra.Command {
	opts := &options{}

	c := &cobra.Command{
		Use:          "launchdsync [appusage|general]",
		Short:        "Synchronize the agent suite's launchd jobs with its on-disk job descriptors",
		Example:      "  launchdsync general",
		Version:      version,
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(args, opts)
		},
	}

	c.AddCommand(statusCmd(opts))

	c.CompletionOptions.HiddenDefaultCmd = true

	addCommonFlags(c.PersistentFlags(), opts)

	return c
}

func addCommonFlags(fs *pflag.FlagSet, opts *options) {
	fs.StringVar(
		&opts.configPath,
		"config",
		config.DefaultPath,
		"Path to YAML config file",
	)

	fs.BoolVar(&opts.debug, "debug", false, "Enable debug logs")
}

func runSync(args []string, opts *options) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}

	logger, closer := logging.New(cfg.LogFile, opts.debug)
	if closer != nil {
		defer closer.Close()
	}

	inv, err := resolveInvocation(os.Getenv(reconcile.EnvGroup), args)
	if err != nil {
		logger.Error("usage error", "err", err)
		return err
	}

	if os.Geteuid() != 0 {
		err := errors.New("must be run as root")
		logger.Error("usage error", "err", err)
		return err
	}

	r, err := buildReconciler(cfg, logger)
	if err != nil {
		return err
	}

	switch inv.mode {
	case modeReconcile:
		r.Reconcile(inv.group)
		return nil
	case modeInstallTrigger:
		return r.InstallTriggerJob(inv.group)
	default:
		return fmt.Errorf("unhandled invocation mode %d", inv.mode)
	}
}

func buildReconciler(cfg *config.Config, logger *slog.Logger) (*reconcile.Reconciler, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("locate own executable: %w", err)
	}

	store := descriptor.NewStore(cfg.DaemonsDir, cfg.AgentsDir, cfg.LabelPrefix)
	client := launchd.NewClient(cfg.LabelPrefix)
	scanner := procscan.New()

	return reconcile.New(client, store, scanner, reconcile.Config{
		PrimaryProcess:      cfg.PrimaryProcess,
		SessionLauncher:     cfg.SessionLauncher,
		AppUsageAgentLabel:  cfg.AppUsageAgentLabel,
		AppUsageDaemonLabel: cfg.AppUsageDaemonLabel,
		TriggerLabelFamily:  cfg.TriggerLabelFamily,
		TriggerLabel:        os.Getenv(reconcile.EnvTriggerLabel),
		DaemonsDir:          cfg.DaemonsDir,
		ExecutablePath:      exe,
		PollInterval:        cfg.PollInterval(),
	}, logger), nil
}

func statusCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Report desired vs. active jobs per scope without mutating anything",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}

			logger := slog.New(slog.DiscardHandler)

			r, err := buildReconciler(cfg, logger)
			if err != nil {
				return err
			}

			printStatus(cmd.OutOrStdout(), r.Status())

			return nil
		},
	}
}

func printStatus(out io.Writer, statuses []reconcile.ScopeStatus) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	fmt.Fprintf(w, "SCOPE\tDOMAIN\tLABEL\tSTATE\t\n")

	for _, st := range statuses {
		labels := slices.Clone(st.Desired)
		for _, label := range st.Active {
			if !slices.Contains(labels, label) {
				labels = append(labels, label)
			}
		}

		for _, label := range labels {
			state := "inactive"
			if slices.Contains(st.Active, label) {
				state = "active"
			}
			if !slices.Contains(st.Desired, label) {
				state = "orphaned"
			}

			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t\n", st.Scope, st.Domain, label, state)
		}
	}

	w.Flush()
}
