// Package descriptor reads and writes launchd job descriptor property lists
// for the agent suite's three scopes: system daemons, per-user agents, and
// pre-login (loginwindow) agents.
package descriptor

import (
	"fmt"
)

// Scope is the addressing domain a job descriptor belongs to.
type Scope int

const (
	// ScopeSystem is a system-wide daemon under /Library/LaunchDaemons.
	ScopeSystem Scope = iota

	// ScopeUser is a per-user agent under /Library/LaunchAgents loaded
	// into each logged-in user's GUI session.
	ScopeUser

	// ScopeLoginWindow is a pre-login agent under /Library/LaunchAgents
	// restricted to the loginwindow session type.
	ScopeLoginWindow
)

func (s Scope) String() string {
	switch s {
	case ScopeSystem:
		return "system"
	case ScopeUser:
		return "user"
	case ScopeLoginWindow:
		return "loginwindow"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// Class is the classification of a per-user-agent descriptor.
type Class int

const (
	// ClassInvalid marks a descriptor with no Label; it can't be loaded.
	ClassInvalid Class = iota

	// ClassLoginWindow marks an agent restricted to the loginwindow
	// session type.
	ClassLoginWindow

	// ClassUser marks an ordinary per-user agent.
	ClassUser
)

func (c Class) String() string {
	switch c {
	case ClassInvalid:
		return "invalid"
	case ClassLoginWindow:
		return "loginwindow"
	case ClassUser:
		return "user"
	default:
		return fmt.Sprintf("Unknown(%d)", int(c))
	}
}

// SessionTypeLoginWindow is the LimitLoadToSessionType value for pre-login
// agents.
const SessionTypeLoginWindow = "LoginWindow"

// SessionTypes is a LimitLoadToSessionType value, which launchd accepts as
// either a single string or an array of strings.
type SessionTypes []string

// UnmarshalPlist accepts both the scalar and the list encoding.
func (s *SessionTypes) UnmarshalPlist(unmarshal func(any) error) error {
	var scalar string
	if err := unmarshal(&scalar); err == nil {
		*s = SessionTypes{scalar}
		return nil
	}

	var list []string
	if err := unmarshal(&list); err != nil {
		return err
	}

	*s = SessionTypes(list)

	return nil
}

// MarshalPlist writes the scalar encoding for a single session type and the
// list encoding otherwise.
func (s SessionTypes) MarshalPlist() (any, error) {
	if len(s) == 1 {
		return s[0], nil
	}

	return []string(s), nil
}

// Contains reports whether the given session type is present.
func (s SessionTypes) Contains(sessionType string) bool {
	for _, t := range s {
		if t == sessionType {
			return true
		}
	}

	return false
}

// JobDescriptor is the subset of launchd job descriptor keys the agent suite
// reads and writes. Unknown keys in on-disk descriptors are ignored.
type JobDescriptor struct {
	Label                  string            `plist:"Label"`
	ProgramArguments       []string          `plist:"ProgramArguments"`
	EnvironmentVariables   map[string]string `plist:"EnvironmentVariables,omitempty"`
	RunAtLoad              bool              `plist:"RunAtLoad"`
	LimitLoadToSessionType SessionTypes      `plist:"LimitLoadToSessionType,omitempty"`
}
