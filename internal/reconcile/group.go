package reconcile

import "fmt"

// Group selects which subset of the agent suite's jobs a reconciliation
// pass targets.
type Group int

const (
	// GroupUnknown is the zero value for unparseable group names.
	GroupUnknown Group = iota

	// GroupAppUsage targets only the app-usage monitoring jobs.
	GroupAppUsage

	// GroupGeneral targets every job except the app-usage ones.
	GroupGeneral
)

func (g Group) String() string {
	switch g {
	case GroupAppUsage:
		return "appusage"
	case GroupGeneral:
		return "general"
	default:
		return fmt.Sprintf("Unknown(%d)", int(g))
	}
}

// ParseGroup parses a run group name as given on the command line or in the
// trigger job's environment.
func ParseGroup(s string) (Group, error) {
	switch s {
	case "appusage":
		return GroupAppUsage, nil
	case "general":
		return GroupGeneral, nil
	default:
		return GroupUnknown, fmt.Errorf(
			"unknown run group %q (expected 'appusage' or 'general')", s)
	}
}

// eligible reports whether a label may be stopped or started by this group,
// given the scope's app-usage label. The filter is symmetric: the app-usage
// group touches only the app-usage job, the general group touches everything
// but it.
func (g Group) eligible(label, appUsageLabel string) bool {
	switch g {
	case GroupAppUsage:
		return label == appUsageLabel
	case GroupGeneral:
		return label != appUsageLabel
	default:
		return true
	}
}
