// Package launchd is a thin synchronous wrapper around the launchctl
// command. Every call is one external invocation with its exit code, stdout,
// and stderr captured; nothing is cached between calls.
package launchd

import (
	"bytes"
	"fmt"
	"os/exec"
	"strings"
)

const launchctlPath = "/bin/launchctl"

// Domain addresses for launchctl. A job within a domain is addressed as
// <domain>/<label>.
const (
	SystemDomain      = "system"
	LoginWindowDomain = "loginwindow"
)

// GUIDomain returns the per-user GUI session domain for the given uid.
func GUIDomain(uid uint32) string {
	return fmt.Sprintf("gui/%d", uid)
}

// ServiceTarget joins a domain and a label into a launchctl service target.
func ServiceTarget(domain, label string) string {
	return domain + "/" + label
}

// CommandError is a launchctl invocation that exited non-zero. Callers treat
// these as non-fatal and log them; reconciliation proceeds best-effort.
type CommandError struct {
	Args     []string
	ExitCode int
	Stderr   string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf(
		"launchctl %s: exit %d: %s",
		strings.Join(e.Args, " "),
		e.ExitCode,
		strings.TrimSpace(e.Stderr),
	)
}

// Client issues launchctl control verbs for jobs whose labels carry the
// agent suite's prefix.
type Client struct {
	path        string
	labelPrefix string
}

// NewClient returns a Client that filters active-job listings by
// labelPrefix.
func NewClient(labelPrefix string) *Client {
	return &Client{path: launchctlPath, labelPrefix: labelPrefix}
}

// NewClientWithPath is NewClient with a non-standard launchctl path. Used by
// tests to substitute a stub.
func NewClientWithPath(path, labelPrefix string) *Client {
	return &Client{path: path, labelPrefix: labelPrefix}
}

// ListActiveJobs returns the labels of the suite's jobs currently loaded in
// the given domain.
func (c *Client) ListActiveJobs(domain string) ([]string, error) {
	stdout, err := c.run("print", domain)
	if err != nil {
		return nil, err
	}

	return parseActiveLabels(stdout, c.labelPrefix), nil
}

// StopJob unloads the job from its domain.
func (c *Client) StopJob(domain, label string) error {
	_, err := c.run("bootout", ServiceTarget(domain, label))
	return err
}

// EnableJob clears any disabled override for the job in its domain.
func (c *Client) EnableJob(domain, label string) error {
	_, err := c.run("enable", ServiceTarget(domain, label))
	return err
}

// BootstrapJob loads the descriptor at plistPath into the domain.
func (c *Client) BootstrapJob(domain, plistPath string) error {
	_, err := c.run("bootstrap", domain, plistPath)
	return err
}

func (c *Client) run(args ...string) (string, error) {
	var stdout, stderr bytes.Buffer

	cmd := exec.Command(c.path, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return stdout.String(), &CommandError{
				Args:     args,
				ExitCode: exitErr.ExitCode(),
				Stderr:   stderr.String(),
			}
		}

		return "", fmt.Errorf("run launchctl: %w", err)
	}

	return stdout.String(), nil
}

// parseActiveLabels extracts job labels carrying the prefix from launchctl
// print output. The output format is informally specified and varies across
// OS releases, so rather than parse its structure this scans for label
// tokens, which are unambiguous given the vendor prefix.
func parseActiveLabels(out, prefix string) []string {
	seen := make(map[string]struct{})
	var labels []string

	for _, field := range strings.FieldsFunc(out, func(r rune) bool {
		return r == ' ' || r == '\t' || r == '\n' || r == '"' ||
			r == '{' || r == '}' || r == '(' || r == ')' || r == '='
	}) {
		if !strings.HasPrefix(field, prefix) {
			continue
		}

		if _, ok := seen[field]; ok {
			continue
		}

		seen[field] = struct{}{}
		labels = append(labels, field)
	}

	return labels
}
