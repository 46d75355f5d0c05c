// Package reconcile keeps the service manager's job table synchronized with
// the agent suite's on-disk job descriptors.
//
// A Reconciler computes desired vs. active job sets per scope (system,
// per-user, loginwindow) and per run group, stops every eligible active job,
// then bootstraps and enables every eligible on-disk descriptor. It refuses
// to start while the suite's primary update process is running.
//
// A manual invocation does not reconcile directly; it installs an ephemeral
// run-at-load trigger job that re-invokes the tool under service-manager
// supervision, which then cleans the trigger job up after itself.
package reconcile
