package llm

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/planhub/concierge/internal/extract"
	"github.com/planhub/concierge/internal/intent"
)

// fakeBackend returns canned responses or errors.
type fakeBackend struct {
	reply string
	err   error
	delay time.Duration
	calls int
}

func (f *fakeBackend) Classify(ctx context.Context, prompt string) (string, error) {
	f.calls++
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.reply, f.err
}

func (f *fakeBackend) Generate(ctx context.Context, system, user string) (string, int, error) {
	return f.reply, 0, f.err
}

func newTestAdapter(t *testing.T, b Backend, timeout time.Duration) *Adapter {
	t.Helper()
	a, err := NewAdapter(AdapterOpts{Backend: b, Timeout: timeout})
	if err != nil {
		t.Fatalf("new adapter: %v", err)
	}
	return a
}

func ruleIntent() intent.Intent {
	return intent.Intent{
		Type:        intent.Query,
		Confidence:  0.4,
		RawQuery:    "do something with TSK-1",
		Normalized:  "do something with tsk-1",
		Entities:    []extract.Entity{{Kind: extract.KindTask, Code: "TSK-1", RawText: "TSK-1"}},
		RequiresLLM: true,
	}
}

func TestRefine_MergesLLMResult(t *testing.T) {
	b := &fakeBackend{reply: `{"intent_type": "ACTION", "confidence": 0.9, "entities": [
		{"entity_type": "bug", "entity_id": "BUG-2"},
		{"entity_type": "task", "entity_id": "tsk-1"}
	]}`}
	got := newTestAdapter(t, b, time.Second).Refine(context.Background(), ruleIntent(), nil)

	if got.Type != intent.Action {
		t.Errorf("type = %v, want ACTION", got.Type)
	}
	if got.Confidence != 0.9 {
		t.Errorf("confidence = %v, want 0.9 (max of both)", got.Confidence)
	}
	if got.RequiresLLM {
		t.Error("RequiresLLM should be cleared after a successful merge")
	}
	// TSK-1 from rules kept, BUG-2 appended, duplicate tsk-1 skipped.
	if len(got.Entities) != 2 {
		t.Fatalf("entities = %v, want 2", got.Entities)
	}
	if got.Entities[0].Code != "TSK-1" || got.Entities[1].Code != "BUG-2" {
		t.Errorf("unexpected entity union: %v", got.Entities)
	}
}

func TestRefine_ConfidenceIsMax(t *testing.T) {
	b := &fakeBackend{reply: `{"intent_type": "QUERY", "confidence": 0.2, "entities": []}`}
	got := newTestAdapter(t, b, time.Second).Refine(context.Background(), ruleIntent(), nil)
	if got.Confidence != 0.4 {
		t.Errorf("confidence = %v, want rule-based 0.4 (higher)", got.Confidence)
	}
}

func TestRefine_BackendErrorKeepsRuleIntent(t *testing.T) {
	b := &fakeBackend{err: errors.New("rate limited")}
	in := ruleIntent()
	got := newTestAdapter(t, b, time.Second).Refine(context.Background(), in, nil)
	if got.Type != in.Type || got.Confidence != in.Confidence || !got.RequiresLLM {
		t.Errorf("backend error should leave intent unchanged, got %+v", got)
	}
}

func TestRefine_MalformedJSONKeepsRuleIntent(t *testing.T) {
	b := &fakeBackend{reply: "sorry, I can't help with that"}
	in := ruleIntent()
	got := newTestAdapter(t, b, time.Second).Refine(context.Background(), in, nil)
	if got.Type != in.Type || got.Confidence != in.Confidence {
		t.Errorf("malformed JSON should leave intent unchanged, got %+v", got)
	}
}

func TestRefine_UnknownIntentTypeKeepsRuleIntent(t *testing.T) {
	b := &fakeBackend{reply: `{"intent_type": "BANANA", "confidence": 0.99}`}
	in := ruleIntent()
	got := newTestAdapter(t, b, time.Second).Refine(context.Background(), in, nil)
	if got.Type != in.Type {
		t.Errorf("unknown enum should leave intent unchanged, got %v", got.Type)
	}
}

func TestRefine_TimeoutKeepsRuleIntent(t *testing.T) {
	b := &fakeBackend{reply: `{"intent_type": "ACTION", "confidence": 0.9}`, delay: 200 * time.Millisecond}
	in := ruleIntent()
	got := newTestAdapter(t, b, 10*time.Millisecond).Refine(context.Background(), in, nil)
	if got.Type != in.Type {
		t.Errorf("timeout should leave intent unchanged, got %v", got.Type)
	}
}

func TestRefine_StripsCodeFences(t *testing.T) {
	b := &fakeBackend{reply: "```json\n{\"intent_type\": \"REPORT\", \"confidence\": 0.8, \"entities\": []}\n```"}
	got := newTestAdapter(t, b, time.Second).Refine(context.Background(), ruleIntent(), nil)
	if got.Type != intent.Report {
		t.Errorf("type = %v, want REPORT after fence stripping", got.Type)
	}
}

func TestBuildPrompt_IncludesSessionContext(t *testing.T) {
	a := newTestAdapter(t, &fakeBackend{}, time.Second)
	p := a.buildPrompt(ruleIntent(), &SessionHints{
		LastIntent: "QUERY",
		Mentioned:  []string{"TSK-1", "BUG-2"},
	})
	for _, want := range []string{"QUERY", "TSK-1, BUG-2", "do something with TSK-1"} {
		if !strings.Contains(p, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}
