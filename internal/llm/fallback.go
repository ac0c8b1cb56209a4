package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/planhub/concierge/internal/extract"
	"github.com/planhub/concierge/internal/intent"
	"go.uber.org/zap"
)

// Adapter runs the LLM fallback classification and merges the result into a
// rule-based Intent. It is only consulted when Intent.RequiresLLM is set and
// a backend is configured.
type Adapter struct {
	backend Backend
	timeout time.Duration
	logger  *zap.Logger
}

// AdapterOpts holds parameters for creating an Adapter.
type AdapterOpts struct {
	Backend Backend
	Timeout time.Duration // per-call bound; defaults to 10s
	Logger  *zap.Logger
}

// NewAdapter creates an Adapter.
func NewAdapter(opts AdapterOpts) (*Adapter, error) {
	if opts.Backend == nil {
		return nil, fmt.Errorf("llm: adapter: backend is required")
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{backend: opts.Backend, timeout: timeout, logger: logger}, nil
}

// classification is the JSON shape the LLM is asked to return.
type classification struct {
	IntentType string                 `json:"intent_type"`
	Confidence float64                `json:"confidence"`
	Entities   []classificationEntity `json:"entities"`
}

type classificationEntity struct {
	EntityType string `json:"entity_type"`
	EntityID   string `json:"entity_id"`
	EntityName string `json:"entity_name"`
}

// Refine asks the backend to re-classify the query and merges the answer
// into the rule-based intent. On any failure (timeout, malformed JSON,
// unknown enum values) the rule-based intent is returned unchanged; errors
// are logged, never propagated.
//
// Merge policy: the LLM's intent type replaces the rule-based one,
// confidence becomes the maximum of the two, entities are unioned keyed by
// entity code, and RequiresLLM is cleared.
func (a *Adapter) Refine(ctx context.Context, in intent.Intent, sctx *SessionHints) intent.Intent {
	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	raw, err := a.backend.Classify(callCtx, a.buildPrompt(in, sctx))
	if err != nil {
		a.logger.Warn("llm fallback failed, keeping rule-based intent",
			zap.String("query", in.Normalized), zap.Error(err))
		return in
	}

	var cls classification
	if err := json.Unmarshal([]byte(extractJSON(raw)), &cls); err != nil {
		a.logger.Warn("llm fallback returned malformed JSON",
			zap.String("response", truncate(raw, 200)), zap.Error(err))
		return in
	}

	t, ok := intent.TypeFromString(cls.IntentType)
	if !ok {
		a.logger.Warn("llm fallback returned unknown intent type",
			zap.String("intent_type", cls.IntentType))
		return in
	}

	merged := in
	merged.Type = t
	if cls.Confidence > merged.Confidence {
		merged.Confidence = cls.Confidence
	}
	merged.Entities = mergeEntities(in.Entities, cls.Entities)
	merged.RequiresLLM = false
	return merged
}

// mergeEntities unions rule-based and LLM entities keyed by entity code.
// Rule-based entities without codes are kept as-is; LLM entities whose codes
// are not already present are appended.
func mergeEntities(rule []extract.Entity, llm []classificationEntity) []extract.Entity {
	seen := make(map[string]bool, len(rule))
	out := make([]extract.Entity, 0, len(rule)+len(llm))
	for _, e := range rule {
		if e.Code != "" {
			seen[e.Code] = true
		}
		out = append(out, e)
	}
	for _, e := range llm {
		kind, ok := extract.KindFromString(e.EntityType)
		if !ok {
			continue
		}
		code := strings.ToUpper(strings.TrimSpace(e.EntityID))
		if code != "" {
			if _, _, valid := extract.ParseCode(code); !valid {
				continue
			}
			if seen[code] {
				continue
			}
			seen[code] = true
		}
		if code == "" && e.EntityName == "" {
			continue
		}
		out = append(out, extract.Entity{
			Kind:    kind,
			Code:    code,
			Name:    e.EntityName,
			RawText: e.EntityName,
		})
	}
	return out
}

// SessionHints is the slice of session context included in the prompt to
// bias disambiguation of follow-up queries.
type SessionHints struct {
	LastIntent string
	Mentioned  []string // canonical entity codes
}

// buildPrompt assembles the classification prompt: the query, closed
// descriptions of the intent and entity taxonomies, and optional session
// context.
func (a *Adapter) buildPrompt(in intent.Intent, sctx *SessionHints) string {
	var b strings.Builder
	b.WriteString("Classify the user query for a project-management assistant.\n\n")
	b.WriteString("Intent types:\n")
	b.WriteString("- QUERY: retrieve or filter records (tasks, bugs, projects, stories)\n")
	b.WriteString("- ACTION: perform a change (set reminder, update status, comment, link commit)\n")
	b.WriteString("- NAVIGATION: open a specific entity's page\n")
	b.WriteString("- REPORT: aggregate numbers, summaries, distributions\n")
	b.WriteString("- CLARIFICATION: short follow-up, confirmation, or small talk\n\n")
	b.WriteString("Entity types: project, task, subtask, bug, user_story, usecase, test_case, program, user.\n")
	b.WriteString("Entity ids use a 3-letter prefix and number, e.g. TSK-42, BUG-7, PRJ-1.\n\n")

	if sctx != nil {
		if sctx.LastIntent != "" {
			fmt.Fprintf(&b, "Previous intent in this conversation: %s\n", sctx.LastIntent)
		}
		if len(sctx.Mentioned) > 0 {
			fmt.Fprintf(&b, "Recently mentioned entities: %s\n", strings.Join(sctx.Mentioned, ", "))
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "Query: %q\n\n", in.RawQuery)
	b.WriteString("Respond with JSON only:\n")
	b.WriteString(`{"intent_type": "...", "confidence": 0.0, "entities": [{"entity_type": "...", "entity_id": "...", "entity_name": "..."}]}`)
	return b.String()
}

// extractJSON strips markdown code fences and surrounding prose so that a
// slightly-chatty model response still parses.
func extractJSON(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.Index(s, "{"); i >= 0 {
		if j := strings.LastIndex(s, "}"); j > i {
			return s[i : j+1]
		}
	}
	return s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
