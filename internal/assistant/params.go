package assistant

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/planhub/concierge/internal/action"
	"github.com/planhub/concierge/internal/extract"
	"github.com/planhub/concierge/internal/intent"
)

// destructivePhrases maps query verb+noun pairs to the blocked action names
// the execution guard recognizes.
var destructivePhrases = []struct {
	verbs []string
	nouns []string
	name  string
}{
	{[]string{"delete", "remove", "drop"}, []string{"project"}, "delete_project"},
	{[]string{"delete", "remove", "drop"}, []string{"task", "subtask"}, "delete_task"},
	{[]string{"delete", "remove", "drop"}, []string{"user", "account"}, "delete_user"},
	{[]string{"delete", "remove", "drop"}, []string{"client"}, "delete_client"},
	{[]string{"delete", "remove", "drop"}, []string{"program"}, "delete_program"},
	{[]string{"change", "promote", "demote", "make"}, []string{"role", "admin"}, "change_user_role"},
	{[]string{"remove", "kick"}, []string{"member", "team"}, "remove_team_member"},
}

var (
	commitShaRe = regexp.MustCompile(`\b[0-9a-f]{7,40}\b`)
	prNumberRe  = regexp.MustCompile(`(?:pr|pull request)\s*#?(\d+)`)
	quotedRe    = regexp.MustCompile(`"([^"]+)"|'([^']+)'`)
	isoTimeRe   = regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}(?:[T ]\d{2}:\d{2}(?::\d{2})?Z?)?\b`)
)

// statusPhrases maps query wording to canonical status keywords, checked in
// order so multi-word phrases win over their substrings.
var statusPhrases = []struct{ phrase, status string }{
	{"in progress", "in progress"},
	{"reopen", "reopened"},
	{"blocked", "blocked"},
	{"complete", "completed"},
	{"done", "completed"},
	{"close", "closed"},
	{"open", "open"},
}

// deriveAction translates a classified ACTION intent into an executable
// request: the action name, its type, and whatever parameters the query
// text yields. Missing parameters are left absent for the handler to
// reject with a helpful message.
func deriveAction(in intent.Intent, now time.Time) action.Request {
	q := in.Normalized

	if name, ok := destructiveName(q); ok {
		return action.Request{Name: name, Type: action.UpdateStatus, Params: actionParams(in, now)}
	}

	switch {
	case strings.Contains(q, "remind"):
		return request(action.SetReminder, in, now)
	case strings.Contains(q, "comment"):
		return request(action.CreateComment, in, now)
	case strings.Contains(q, "link") && (commitShaRe.MatchString(q) || prNumberRe.MatchString(q)):
		return request(action.LinkCommit, in, now)
	case strings.Contains(q, "report"):
		return request(action.SuggestReport, in, now)
	case hasStatusVerb(q):
		return request(action.UpdateStatus, in, now)
	}
	return request(action.ViewEntity, in, now)
}

func request(t action.Type, in intent.Intent, now time.Time) action.Request {
	return action.Request{Name: t.String(), Type: t, Params: actionParams(in, now)}
}

// destructiveName reports the blocked action a query is asking for, if any.
func destructiveName(q string) (string, bool) {
	for _, p := range destructivePhrases {
		if containsAnyWord(q, p.verbs) && containsAnyWord(q, p.nouns) {
			return p.name, true
		}
	}
	return "", false
}

// hasStatusVerb reports whether the query asks for a status change rather
// than a status-filtered view ("mark TSK-3 as done" vs "show done tasks").
func hasStatusVerb(q string) bool {
	for _, verb := range []string{"mark", "set", "move", "update", "change", "close", "reopen", "complete", "finish", "block", "unblock"} {
		if containsAnyWord(q, []string{verb}) {
			return true
		}
	}
	return false
}

// actionParams extracts whatever parameters the query text carries.
func actionParams(in intent.Intent, now time.Time) action.Params {
	q := in.Normalized
	params := action.Params{}

	// Primary entity reference: the first extracted code. LINK_COMMIT wants
	// a task specifically, so also record the first task code separately.
	for _, e := range in.Entities {
		if e.Code == "" {
			continue
		}
		if _, ok := params["entity_id"]; !ok {
			params["entity_id"] = e.Code
			params["entity_type"] = e.Kind.String()
		}
		if e.Kind == extract.KindTask {
			if _, ok := params["task_id"]; !ok {
				params["task_id"] = e.Code
			}
		}
		if e.Kind == extract.KindProject {
			if _, ok := params["project_id"]; !ok {
				params["project_id"] = e.Code
			}
		}
	}

	if status := statusFromQuery(q); status != "" {
		params["new_status"] = status
	}
	if at := remindAtFromQuery(q, in.Temporal, now); at != "" {
		params["remind_at"] = at
	}
	if text := quotedText(in.RawQuery); text != "" {
		params["comment_text"] = text
	}
	if m := prNumberRe.FindStringSubmatch(q); m != nil {
		params["pr_id"] = m[1]
	} else if sha := commitShaRe.FindString(q); sha != "" {
		params["commit_id"] = sha
	}
	if in.Temporal.StartDate != "" {
		params["start_date"] = in.Temporal.StartDate
		params["end_date"] = in.Temporal.EndDate
	}
	if strings.Contains(q, "burndown") {
		params["report_type"] = "burndown"
	} else if strings.Contains(q, "workload") {
		params["report_type"] = "workload"
	} else if strings.Contains(q, "velocity") {
		params["report_type"] = "velocity"
	}
	return params
}

func statusFromQuery(q string) string {
	for _, p := range statusPhrases {
		if strings.Contains(q, p.phrase) {
			return p.status
		}
	}
	return ""
}

var relativeTimeRe = regexp.MustCompile(`\bin (\d+) (minute|hour|day)s?\b`)

// remindAtFromQuery picks a reminder time: an explicit timestamp wins, then
// a relative offset ("in 2 hours"), then a resolved date phrase
// ("tomorrow") at 09:00.
func remindAtFromQuery(q string, tc extract.TemporalContext, now time.Time) string {
	if ts := isoTimeRe.FindString(q); ts != "" {
		if len(ts) == len("2006-01-02") {
			return ts + "T09:00:00"
		}
		return strings.Replace(ts, " ", "T", 1)
	}
	if m := relativeTimeRe.FindStringSubmatch(q); m != nil {
		n, _ := strconv.Atoi(m[1])
		var d time.Duration
		switch m[2] {
		case "minute":
			d = time.Duration(n) * time.Minute
		case "hour":
			d = time.Duration(n) * time.Hour
		case "day":
			d = time.Duration(n) * 24 * time.Hour
		}
		return now.Add(d).Format("2006-01-02T15:04:05")
	}
	if tc.StartDate != "" {
		return tc.StartDate + "T09:00:00"
	}
	return ""
}

// quotedText returns the first quoted span of the raw query, preserving its
// original casing.
func quotedText(raw string) string {
	m := quotedRe.FindStringSubmatch(raw)
	if m == nil {
		return ""
	}
	if m[1] != "" {
		return m[1]
	}
	return m[2]
}

func containsAnyWord(text string, words []string) bool {
	for _, w := range words {
		if containsWord(text, w) {
			return true
		}
	}
	return false
}

// containsWord matches a whole word, allowing suffixes for verb inflection
// ("reopen" matches "reopened", "reopens").
func containsWord(text, word string) bool {
	idx := 0
	for {
		i := strings.Index(text[idx:], word)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(word)
		beforeOK := start == 0 || !isWordByte(text[start-1])
		if beforeOK {
			return true
		}
		idx = end
	}
}

func isWordByte(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '_'
}
