// Package action validates and executes the small fixed set of
// side-effecting operations the assistant may perform. Validation always
// precedes mutation; requests that fail validation have no side effects.
package action

import (
	"fmt"
	"strings"
)

// Type identifies one executable action.
type Type int

const (
	ViewEntity Type = iota
	SetReminder
	UpdateStatus
	CreateComment
	LinkCommit
	SuggestReport
)

// String returns the canonical snake_case name of the action.
func (t Type) String() string {
	switch t {
	case ViewEntity:
		return "view_entity"
	case SetReminder:
		return "set_reminder"
	case UpdateStatus:
		return "update_status"
	case CreateComment:
		return "create_comment"
	case LinkCommit:
		return "link_commit"
	case SuggestReport:
		return "suggest_report"
	}
	return "unknown"
}

// Result tags the outcome of an action execution.
type Result string

const (
	Success Result = "SUCCESS"
	Denied  Result = "DENIED"
	Failed  Result = "FAILED"
)

// Error is the typed action execution error. The orchestrator translates it
// into a user-visible message without leaking internal detail.
type Error struct {
	Result  Result // DENIED or FAILED
	Message string
}

// Error implements error.
func (e *Error) Error() string {
	return fmt.Sprintf("action %s: %s", strings.ToLower(string(e.Result)), e.Message)
}

// failf builds a FAILED error.
func failf(format string, args ...interface{}) *Error {
	return &Error{Result: Failed, Message: fmt.Sprintf(format, args...)}
}

// denyf builds a DENIED error.
func denyf(format string, args ...interface{}) *Error {
	return &Error{Result: Denied, Message: fmt.Sprintf(format, args...)}
}

// destructiveActions is the fixed list of action names that must never
// execute through chat, checked before anything else.
var destructiveActions = map[string]bool{
	"delete_project":     true,
	"delete_task":        true,
	"delete_user":        true,
	"change_user_role":   true,
	"remove_team_member": true,
	"delete_client":      true,
	"delete_program":     true,
}

// IsDestructive reports whether the action name is on the blocked list.
func IsDestructive(name string) bool {
	return destructiveActions[strings.ToLower(strings.TrimSpace(name))]
}

// Params is the loosely-typed parameter mapping an action request carries.
// Handlers validate and convert what they need.
type Params map[string]string

// Request pairs an action with its parameters. Name is the raw action name
// derived from the user's text; for the executable actions it matches
// Type.String(), but destructive names (e.g. "delete_project") also arrive
// here and are rejected by the pre-check.
type Request struct {
	Name   string
	Type   Type
	Params Params
}

// Outcome is the successful result of an executed action.
type Outcome struct {
	Result   Result
	Message  string
	DeepLink string
	Data     map[string]interface{}
}
