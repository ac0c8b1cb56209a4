// Package intent classifies assistant queries into one of five intent
// categories using weighted keyword heuristics, with an optional LLM
// fallback handled by the llm package.
package intent

import (
	"strings"

	"github.com/planhub/concierge/internal/extract"
)

// Type is the classified purpose of a user utterance.
type Type int

const (
	Query Type = iota
	Action
	Navigation
	Report
	Clarification
)

// String returns the canonical uppercase name of the type.
func (t Type) String() string {
	switch t {
	case Query:
		return "QUERY"
	case Action:
		return "ACTION"
	case Navigation:
		return "NAVIGATION"
	case Report:
		return "REPORT"
	case Clarification:
		return "CLARIFICATION"
	}
	return "UNKNOWN"
}

// TypeFromString maps a wire name back to a Type.
func TypeFromString(s string) (Type, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "QUERY":
		return Query, true
	case "ACTION":
		return Action, true
	case "NAVIGATION":
		return Navigation, true
	case "REPORT":
		return Report, true
	case "CLARIFICATION":
		return Clarification, true
	}
	return 0, false
}

// AllTypes lists every intent type, used for scoring and prompt building.
func AllTypes() []Type {
	return []Type{Query, Action, Navigation, Report, Clarification}
}

// Intent is the classification result for one query. It is constructed once
// by Classify and optionally amended by the LLM fallback merge; the
// orchestrator consumes it read-only.
type Intent struct {
	Type        Type
	Entities    []extract.Entity
	Confidence  float64
	RawQuery    string
	Normalized  string
	Temporal    extract.TemporalContext
	RequiresLLM bool
}

// Context carries the slice of session state the classifier uses to bias
// follow-up queries.
type Context struct {
	LastIntent  *Type
	HasMentions bool // session has previously resolved entities
}

// Normalize lowercases and collapses whitespace in a raw query.
func Normalize(raw string) string {
	return strings.Join(strings.Fields(strings.ToLower(raw)), " ")
}
