package intent

import (
	"strings"

	"github.com/planhub/concierge/internal/extract"
)

// Scoring constants. Keyword groups contribute a flat increment each;
// structural boosts are applied on top, then context adjustments.
const (
	groupIncrement     = 0.3
	navSingleBoost     = 0.5
	actionVerbBoost    = 0.4
	actionEntityBoost  = 0.2
	questionBoost      = 0.3
	listVerbBoost      = 0.4
	reportBoost        = 0.3
	aggregateBoost     = 0.5
	clarifyShortBoost  = 0.5
	clarifyRepeatDrop  = 0.3
	continuationBoost  = 0.2
	minScore           = 0.3
	defaultConfidence  = 0.5
	confidenceDivisor  = 1.5
	llmThreshold       = 0.7
	complexWordCount   = 20
)

// keywordGroups defines, per intent type, groups of trigger words. Each
// group that has at least one word present in the query adds groupIncrement
// to that intent's score. A query can trigger groups across several intents.
var keywordGroups = map[Type][][]string{
	Query: {
		{"show", "list", "display"},
		{"what", "which", "who", "when", "where"},
		{"find", "search", "get"},
		{"due", "pending", "overdue", "assigned"},
	},
	Action: {
		{"set", "create", "add"},
		{"update", "change", "mark", "move"},
		{"assign", "link", "attach"},
		{"remind", "reminder"},
		{"comment", "note"},
		{"delete", "remove"},
	},
	Navigation: {
		{"open", "go to", "goto", "navigate", "take me"},
		{"details", "page", "board"},
	},
	Report: {
		{"report", "summary", "overview"},
		{"count", "total", "how many"},
		{"distribution", "average", "breakdown", "statistics"},
	},
	Clarification: {
		{"yes", "no", "ok", "okay", "sure"},
		{"help", "thanks", "thank you"},
	},
}

var (
	navigationVerbs = []string{"open", "view", "navigate", "go to", "goto", "take me"}
	actionVerbs     = []string{"set", "create", "add", "update", "change", "assign", "link", "remind"}
	questionWords   = []string{"what", "which", "who", "when", "where", "why", "how"}
	listVerbs       = []string{"show", "list", "display"}
	reportWords     = []string{"report", "summary"}
	aggregateWords  = []string{"distribution", "count", "total", "average", "how many"}
	fillerWords     = []string{"yes", "no", "ok", "okay", "sure", "hmm", "hi", "hello", "thanks"}

	connectiveWords = []string{"and", "or", "but", "then", "also", "plus"}
	conditionWords  = []string{"if", "unless", "when", "depending", "provided"}
	compareWords    = []string{"more than", "less than", "compared", "versus", "vs", "better", "worse"}
)

// Classifier scores queries against the keyword heuristics. It is stateless
// and safe for concurrent use.
type Classifier struct{}

// NewClassifier creates a Classifier.
func NewClassifier() *Classifier {
	return &Classifier{}
}

// Classify builds the full Intent for a raw query. Entities and temporal
// filters are extracted here; sctx may be nil for context-free
// classification. This never fails: worst case is the QUERY default at 0.5
// confidence.
func (c *Classifier) Classify(raw string, sctx *Context) Intent {
	normalized := Normalize(raw)
	entities := extract.Entities(raw)

	scores := c.score(normalized, entities, sctx)

	best, max := Query, 0.0
	for _, t := range AllTypes() {
		if scores[t] > max {
			best, max = t, scores[t]
		}
	}

	confidence := defaultConfidence
	if max < minScore {
		best = Query
	} else {
		confidence = max / confidenceDivisor
		if confidence > 1.0 {
			confidence = 1.0
		}
	}

	return Intent{
		Type:        best,
		Entities:    entities,
		Confidence:  confidence,
		RawQuery:    raw,
		Normalized:  normalized,
		RequiresLLM: confidence < llmThreshold || isComplex(normalized),
	}
}

// score computes the raw per-intent scores for a normalized query.
func (c *Classifier) score(normalized string, entities []extract.Entity, sctx *Context) map[Type]float64 {
	scores := make(map[Type]float64, 5)
	words := strings.Fields(normalized)

	// Keyword groups.
	for t, groups := range keywordGroups {
		for _, group := range groups {
			if containsAny(normalized, group) {
				scores[t] += groupIncrement
			}
		}
	}

	// Structural boosts.
	if len(entities) == 1 && containsAny(normalized, navigationVerbs) {
		scores[Navigation] += navSingleBoost
	}
	if containsAny(normalized, actionVerbs) {
		scores[Action] += actionVerbBoost
		if len(entities) > 0 {
			scores[Action] += actionEntityBoost
		}
	}
	if containsAny(normalized, questionWords) {
		scores[Query] += questionBoost
	}
	if containsAny(normalized, listVerbs) {
		scores[Query] += listVerbBoost
	}
	if containsAny(normalized, reportWords) {
		scores[Report] += reportBoost
	}
	if containsAny(normalized, aggregateWords) {
		scores[Report] += aggregateBoost
	}
	if len(words) <= 3 && containsAny(normalized, fillerWords) {
		scores[Clarification] += clarifyShortBoost
	}

	// Context adjustments.
	if sctx != nil {
		if sctx.LastIntent != nil && *sctx.LastIntent == Clarification {
			scores[Clarification] -= clarifyRepeatDrop
		}
		if sctx.LastIntent != nil && sctx.HasMentions && hasAnaphora(words) {
			scores[*sctx.LastIntent] += continuationBoost
		}
	}

	return scores
}

// isComplex applies the structural heuristics that force an LLM pass even
// at high rule-based confidence.
func isComplex(normalized string) bool {
	words := strings.Fields(normalized)
	if len(words) > complexWordCount {
		return true
	}
	connectives := 0
	for _, w := range words {
		for _, c := range connectiveWords {
			if w == c {
				connectives++
				break
			}
		}
	}
	if connectives >= 2 {
		return true
	}
	if strings.Count(normalized, "?") > 1 {
		return true
	}
	for _, w := range words {
		for _, c := range conditionWords {
			if w == c {
				return true
			}
		}
	}
	return containsAny(normalized, compareWords)
}

// hasAnaphora reports whether the query contains a pronoun referring back
// to earlier conversation.
func hasAnaphora(words []string) bool {
	for _, w := range words {
		switch w {
		case "it", "this", "that", "them":
			return true
		}
	}
	return false
}

// containsAny reports whether any of the terms occurs in text as a whole
// word (multi-word terms are matched as substrings on word boundaries).
func containsAny(text string, terms []string) bool {
	for _, term := range terms {
		if containsTerm(text, term) {
			return true
		}
	}
	return false
}

func containsTerm(text, term string) bool {
	idx := 0
	for {
		i := strings.Index(text[idx:], term)
		if i < 0 {
			return false
		}
		i += idx
		before := i == 0 || !isWordByte(text[i-1])
		afterIdx := i + len(term)
		after := afterIdx >= len(text) || !isWordByte(text[afterIdx])
		if before && after {
			return true
		}
		idx = i + len(term)
	}
}

func isWordByte(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= '0' && c <= '9' || c == '_'
}
