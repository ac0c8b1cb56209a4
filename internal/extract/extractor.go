// Package extract pulls typed entity references and temporal filters out of
// free-text assistant queries. Everything here is a pure function of the
// input text (plus an injected reference time for date resolution).
package extract

import (
	"regexp"
	"strconv"
	"strings"
)

// EntityKind identifies which domain object a reference points at.
type EntityKind int

const (
	KindProject EntityKind = iota
	KindTask
	KindSubtask
	KindBug
	KindUserStory
	KindUseCase
	KindTestCase
	KindProgram
	KindUser
)

// String returns the canonical lowercase name of the kind.
func (k EntityKind) String() string {
	switch k {
	case KindProject:
		return "project"
	case KindTask:
		return "task"
	case KindSubtask:
		return "subtask"
	case KindBug:
		return "bug"
	case KindUserStory:
		return "user_story"
	case KindUseCase:
		return "usecase"
	case KindTestCase:
		return "test_case"
	case KindProgram:
		return "program"
	case KindUser:
		return "user"
	}
	return "unknown"
}

// KindFromString maps a wire name back to an EntityKind.
func KindFromString(s string) (EntityKind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "project":
		return KindProject, true
	case "task":
		return KindTask, true
	case "subtask":
		return KindSubtask, true
	case "bug":
		return KindBug, true
	case "user_story", "userstory", "story":
		return KindUserStory, true
	case "usecase", "use_case":
		return KindUseCase, true
	case "test_case", "testcase":
		return KindTestCase, true
	case "program":
		return KindProgram, true
	case "user":
		return KindUser, true
	}
	return 0, false
}

// Entity is a reference to a domain object found in text. At least one of
// Code/Name is always set.
type Entity struct {
	Kind    EntityKind
	Code    string // canonical short code, e.g. "TSK-123" (may be empty)
	Name    string // free-text name inferred from context (may be empty)
	RawText string // the matched substring
}

// codePrefixes maps entity kinds to their 3-letter code prefix. Subtasks and
// users have no short-code form; they are only reachable by name.
var codePrefixes = []struct {
	kind   EntityKind
	prefix string
}{
	{KindProject, "PRJ"},
	{KindTask, "TSK"},
	{KindBug, "BUG"},
	{KindUserStory, "STY"},
	{KindUseCase, "USC"},
	{KindTestCase, "TST"},
	{KindProgram, "PRG"},
}

// codePatterns holds one compiled pattern per prefixed kind, built once.
var codePatterns = func() []struct {
	kind EntityKind
	re   *regexp.Regexp
} {
	out := make([]struct {
		kind EntityKind
		re   *regexp.Regexp
	}, 0, len(codePrefixes))
	for _, cp := range codePrefixes {
		out = append(out, struct {
			kind EntityKind
			re   *regexp.Regexp
		}{cp.kind, regexp.MustCompile(`(?i)\b` + cp.prefix + `-(\d+)\b`)})
	}
	return out
}()

// quotedRe matches double- or single-quoted substrings.
var quotedRe = regexp.MustCompile(`"([^"]+)"|'([^']+)'`)

// kindKeywords maps context keywords to entity kinds, used to type quoted
// names. Order matters: the first keyword found in the window wins.
var kindKeywords = []struct {
	word string
	kind EntityKind
}{
	{"subtask", KindSubtask},
	{"task", KindTask},
	{"bug", KindBug},
	{"defect", KindBug},
	{"user story", KindUserStory},
	{"story", KindUserStory},
	{"use case", KindUseCase},
	{"usecase", KindUseCase},
	{"test case", KindTestCase},
	{"project", KindProject},
	{"program", KindProgram},
	{"user", KindUser},
	{"assignee", KindUser},
}

// keywordWindow is how many characters on each side of a quoted match are
// searched for a type-indicating keyword.
const keywordWindow = 50

// Entities extracts all entity references from query text, in match order:
// short codes first (per-kind pattern order), then typed quoted names.
// Duplicates found via different routes are kept; consumers treat the result
// as a multiset of hints.
func Entities(query string) []Entity {
	var out []Entity

	for _, cp := range codePatterns {
		for _, m := range cp.re.FindAllString(query, -1) {
			out = append(out, Entity{
				Kind:    cp.kind,
				Code:    strings.ToUpper(m),
				RawText: m,
			})
		}
	}

	lower := strings.ToLower(query)
	for _, loc := range quotedRe.FindAllStringIndex(query, -1) {
		name := strings.Trim(query[loc[0]:loc[1]], `"'`)
		if name == "" {
			continue
		}
		kind, ok := kindNearby(lower, loc[0], loc[1])
		if !ok {
			// No typing keyword in the window: drop the quoted name
			// rather than guess.
			continue
		}
		out = append(out, Entity{
			Kind:    kind,
			Name:    name,
			RawText: query[loc[0]:loc[1]],
		})
	}

	return out
}

// kindNearby searches the keywordWindow around [start,end) for a
// type-indicating keyword and returns the matching kind.
func kindNearby(lower string, start, end int) (EntityKind, bool) {
	lo := start - keywordWindow
	if lo < 0 {
		lo = 0
	}
	hi := end + keywordWindow
	if hi > len(lower) {
		hi = len(lower)
	}
	window := lower[lo:hi]
	for _, kw := range kindKeywords {
		if strings.Contains(window, kw.word) {
			return kw.kind, true
		}
	}
	return 0, false
}

// ParseCode splits a canonical short code like "TSK-42" into its kind and
// numeric id. Input is case-insensitive.
func ParseCode(code string) (EntityKind, uint, bool) {
	parts := strings.SplitN(strings.ToUpper(strings.TrimSpace(code)), "-", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	for _, cp := range codePrefixes {
		if cp.prefix == parts[0] {
			n, err := strconv.ParseUint(parts[1], 10, 32)
			if err != nil || n == 0 {
				return 0, 0, false
			}
			return cp.kind, uint(n), true
		}
	}
	return 0, 0, false
}

// FormatCode renders the canonical short code for a kind and id, or the
// empty string for kinds without a code form.
func FormatCode(kind EntityKind, id uint) string {
	for _, cp := range codePrefixes {
		if cp.kind == kind {
			return cp.prefix + "-" + strconv.FormatUint(uint64(id), 10)
		}
	}
	return ""
}
