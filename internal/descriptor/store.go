package descriptor

import (
	"fmt"
	"os"
	"path/filepath"

	"howett.net/plist"
)

// Store locates, parses, and writes the agent suite's job descriptor files.
// Only descriptors whose file name carries the suite's label prefix are
// considered; everything else in the shared launchd directories belongs to
// other software.
type Store struct {
	daemonsDir  string
	agentsDir   string
	labelPrefix string
}

// NewStore returns a Store over the given daemon and agent directories,
// matching descriptor files named <labelPrefix>*.plist.
func NewStore(daemonsDir, agentsDir, labelPrefix string) *Store {
	return &Store{
		daemonsDir:  daemonsDir,
		agentsDir:   agentsDir,
		labelPrefix: labelPrefix,
	}
}

// Dir returns the directory holding descriptors for the given scope.
func (s *Store) Dir(scope Scope) string {
	if scope == ScopeSystem {
		return s.daemonsDir
	}

	return s.agentsDir
}

// List returns the paths of the suite's descriptor files for the given
// scope. An unreadable directory yields an empty list.
func (s *Store) List(scope Scope) []string {
	pattern := filepath.Join(s.Dir(scope), s.labelPrefix+"*.plist")

	paths, err := filepath.Glob(pattern)
	if err != nil {
		return nil
	}

	return paths
}

// ReadLabel parses the descriptor at path and returns its Label. A missing,
// unparseable, or label-less descriptor returns ok == false.
func (s *Store) ReadLabel(path string) (string, bool) {
	d, err := s.read(path)
	if err != nil || d.Label == "" {
		return "", false
	}

	return d.Label, true
}

// Classify determines how a per-user-agent descriptor should be loaded.
//
// Only the loginwindow session type is distinguished; launchd supports
// other session types (Aqua, Background, StandardIO) but the suite ships no
// agents that use them, so anything without a loginwindow restriction
// classifies as an ordinary user agent.
func (s *Store) Classify(path string) Class {
	d, err := s.read(path)
	if err != nil || d.Label == "" {
		return ClassInvalid
	}

	if d.LimitLoadToSessionType.Contains(SessionTypeLoginWindow) {
		return ClassLoginWindow
	}

	return ClassUser
}

// Write serializes the descriptor to path with the ownership and mode
// launchd requires of privileged job descriptors (root:wheel, 0644).
func (s *Store) Write(d *JobDescriptor, path string) error {
	data, err := plist.MarshalIndent(d, plist.XMLFormat, "\t")
	if err != nil {
		return fmt.Errorf("marshal descriptor: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write descriptor: %w", err)
	}

	// WriteFile's mode is masked by umask; set it explicitly.
	if err := os.Chmod(path, 0o644); err != nil {
		return fmt.Errorf("chmod descriptor: %w", err)
	}

	if err := os.Chown(path, 0, 0); err != nil {
		return fmt.Errorf("chown descriptor: %w", err)
	}

	return nil
}

func (s *Store) read(path string) (*JobDescriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	d := &JobDescriptor{}
	if _, err := plist.Unmarshal(data, d); err != nil {
		return nil, err
	}

	return d, nil
}
