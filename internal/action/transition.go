package action

import "github.com/planhub/concierge/internal/extract"

// TransitionPolicy decides whether a status transition is allowed. The
// default policy is permissive: any transition passes, matching current
// product behavior. The table policy below encodes the documented
// transition graphs and can be swapped in once product confirms the
// restriction.
type TransitionPolicy interface {
	Allow(kind extract.EntityKind, from, to string) bool
}

// PermissivePolicy allows every transition.
type PermissivePolicy struct{}

// Allow implements TransitionPolicy.
func (PermissivePolicy) Allow(extract.EntityKind, string, string) bool { return true }

// taskTransitions is the documented task status graph.
var taskTransitions = map[string][]string{
	"Open":        {"In Progress", "Blocked", "Completed"},
	"In Progress": {"Blocked", "Completed", "Open"},
	"Blocked":     {"Open", "In Progress"},
	"Completed":   {"Open"},
}

// bugTransitions is the documented bug status graph.
var bugTransitions = map[string][]string{
	"Open":        {"In Progress", "Closed"},
	"In Progress": {"Open", "Closed"},
	"Closed":      {"Reopened"},
	"Reopened":    {"In Progress", "Closed"},
}

// TablePolicy validates transitions against the documented graphs. Kinds
// without a table are allowed through.
type TablePolicy struct{}

// Allow implements TransitionPolicy.
func (TablePolicy) Allow(kind extract.EntityKind, from, to string) bool {
	var table map[string][]string
	switch kind {
	case extract.KindTask:
		table = taskTransitions
	case extract.KindBug:
		table = bugTransitions
	default:
		return true
	}
	for _, allowed := range table[from] {
		if allowed == to {
			return true
		}
	}
	return false
}
