package extract

import (
	"regexp"
	"strings"
	"time"
)

// TemporalContext holds the date/status/priority filters resolved from a
// query. Dates are rendered as "2006-01-02". Zero-value fields mean the
// query carried no such filter.
type TemporalContext struct {
	DateFilter     string // the phrase that matched, e.g. "today", "last week"
	StartDate      string
	EndDate        string
	StatusFilter   string
	PriorityFilter string
}

// IsZero reports whether no filter was resolved.
func (tc TemporalContext) IsZero() bool {
	return tc == TemporalContext{}
}

const dateLayout = "2006-01-02"

// statusVocabulary is the fixed set of recognized status keywords, in
// priority order: the first one found in the query wins.
var statusVocabulary = []string{
	"in progress", "completed", "reopened", "blocked", "closed", "open", "pending",
}

// priorityVocabulary is the fixed set of recognized priority keywords.
var priorityVocabulary = []string{"critical", "high", "medium", "low"}

// explicitDateRe matches a single numeric date token like 2024-01-15 or
// 15/01/2024.
var explicitDateRe = regexp.MustCompile(`\b(\d{1,4}[-/]\d{1,2}[-/]\d{1,4})\b`)

// explicitDateLayouts is the ordered list of formats tried against an
// explicit date token; the first that parses wins.
var explicitDateLayouts = []string{
	"2006-01-02",
	"02/01/2006",
	"01/02/2006",
	"2006/01/02",
}

// Temporal resolves relative date phrases, one explicit date, and
// status/priority keywords from query text against the reference time now.
// Deterministic for a fixed now; unparseable dates are silently ignored.
func Temporal(query string, now time.Time) TemporalContext {
	var tc TemporalContext
	lower := strings.ToLower(query)
	today := truncateDay(now)

	switch {
	case strings.Contains(lower, "today"):
		tc.DateFilter = "today"
		tc.StartDate, tc.EndDate = fmtRange(today, today)
	case strings.Contains(lower, "tomorrow"):
		tc.DateFilter = "tomorrow"
		d := today.AddDate(0, 0, 1)
		tc.StartDate, tc.EndDate = fmtRange(d, d)
	case strings.Contains(lower, "yesterday"):
		tc.DateFilter = "yesterday"
		d := today.AddDate(0, 0, -1)
		tc.StartDate, tc.EndDate = fmtRange(d, d)
	case strings.Contains(lower, "this week"):
		tc.DateFilter = "this_week"
		start := weekStart(today)
		tc.StartDate, tc.EndDate = fmtRange(start, start.AddDate(0, 0, 6))
	case strings.Contains(lower, "last week"):
		tc.DateFilter = "last_week"
		start := weekStart(today).AddDate(0, 0, -7)
		tc.StartDate, tc.EndDate = fmtRange(start, start.AddDate(0, 0, 6))
	case strings.Contains(lower, "next week"):
		tc.DateFilter = "next_week"
		start := weekStart(today).AddDate(0, 0, 7)
		tc.StartDate, tc.EndDate = fmtRange(start, start.AddDate(0, 0, 6))
	case strings.Contains(lower, "this month"):
		tc.DateFilter = "this_month"
		start := monthStart(today)
		tc.StartDate, tc.EndDate = fmtRange(start, monthEnd(start))
	case strings.Contains(lower, "last month"):
		tc.DateFilter = "last_month"
		start := monthStart(today).AddDate(0, -1, 0)
		tc.StartDate, tc.EndDate = fmtRange(start, monthEnd(start))
	default:
		if m := explicitDateRe.FindString(query); m != "" {
			for _, layout := range explicitDateLayouts {
				if d, err := time.Parse(layout, m); err == nil {
					tc.DateFilter = "explicit"
					tc.StartDate, tc.EndDate = fmtRange(d, d)
					break
				}
			}
		}
	}

	for _, s := range statusVocabulary {
		if strings.Contains(lower, s) {
			tc.StatusFilter = s
			break
		}
	}
	for _, p := range priorityVocabulary {
		if containsWord(lower, p) {
			tc.PriorityFilter = p
			break
		}
	}

	return tc
}

// truncateDay drops the time-of-day component.
func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// weekStart returns the Monday of t's week.
func weekStart(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7
	return t.AddDate(0, 0, -offset)
}

// monthStart returns the first day of t's month.
func monthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

// monthEnd returns the last day of the month containing start. December
// wraps into January of the next year via AddDate.
func monthEnd(start time.Time) time.Time {
	return start.AddDate(0, 1, 0).AddDate(0, 0, -1)
}

func fmtRange(start, end time.Time) (string, string) {
	return start.Format(dateLayout), end.Format(dateLayout)
}

// containsWord reports whether lower contains word as a whole word. Needed
// for priority keywords ("low" must not match "follow").
func containsWord(lower, word string) bool {
	idx := 0
	for {
		i := strings.Index(lower[idx:], word)
		if i < 0 {
			return false
		}
		i += idx
		before := i == 0 || !isWordChar(lower[i-1])
		afterIdx := i + len(word)
		after := afterIdx >= len(lower) || !isWordChar(lower[afterIdx])
		if before && after {
			return true
		}
		idx = i + len(word)
	}
}

func isWordChar(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= '0' && c <= '9' || c == '_'
}
