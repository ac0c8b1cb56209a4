package intent

import "testing"

func TestClassify_Query(t *testing.T) {
	queries := []string{
		"show me tasks due today",
		"list all open bugs",
		"what tasks are assigned to me",
		"find the project 'Apollo'",
	}
	c := NewClassifier()
	for _, q := range queries {
		in := c.Classify(q, nil)
		if in.Type != Query {
			t.Errorf("Classify(%q) = %v, want QUERY (confidence %.2f)", q, in.Type, in.Confidence)
		}
	}
}

func TestClassify_Navigation(t *testing.T) {
	in := NewClassifier().Classify("open TSK-42", nil)
	if in.Type != Navigation {
		t.Fatalf("Classify(open TSK-42) = %v, want NAVIGATION", in.Type)
	}
	if len(in.Entities) != 1 || in.Entities[0].Code != "TSK-42" {
		t.Errorf("entities = %v, want one TSK-42", in.Entities)
	}
}

func TestClassify_Action(t *testing.T) {
	queries := []string{
		"set a reminder for TSK-5 tomorrow",
		"update BUG-3 status to closed",
		"add a comment to BUG-7",
		"link TSK-9 to PR #42",
	}
	c := NewClassifier()
	for _, q := range queries {
		in := c.Classify(q, nil)
		if in.Type != Action {
			t.Errorf("Classify(%q) = %v, want ACTION (confidence %.2f)", q, in.Type, in.Confidence)
		}
	}
}

func TestClassify_Report(t *testing.T) {
	queries := []string{
		"how many bugs are open",
		"give me a summary report of the project",
		"bug count by severity",
	}
	c := NewClassifier()
	for _, q := range queries {
		in := c.Classify(q, nil)
		if in.Type != Report {
			t.Errorf("Classify(%q) = %v, want REPORT (confidence %.2f)", q, in.Type, in.Confidence)
		}
	}
}

func TestClassify_Clarification(t *testing.T) {
	in := NewClassifier().Classify("yes", nil)
	if in.Type != Clarification {
		t.Fatalf("Classify(yes) = %v, want CLARIFICATION", in.Type)
	}
}

func TestClassify_DefaultsToQuery(t *testing.T) {
	in := NewClassifier().Classify("asdf qwerty zxcv", nil)
	if in.Type != Query {
		t.Errorf("type = %v, want QUERY default", in.Type)
	}
	if in.Confidence != 0.5 {
		t.Errorf("confidence = %v, want exactly 0.5", in.Confidence)
	}
}

func TestClassify_Idempotent(t *testing.T) {
	c := NewClassifier()
	a := c.Classify("show me tasks due today", nil)
	b := c.Classify("show me tasks due today", nil)
	if a.Type != b.Type || a.Confidence != b.Confidence {
		t.Errorf("classification not idempotent: (%v, %v) vs (%v, %v)",
			a.Type, a.Confidence, b.Type, b.Confidence)
	}
}

func TestClassify_RequiresLLMOnLowConfidence(t *testing.T) {
	in := NewClassifier().Classify("asdf qwerty zxcv", nil)
	if !in.RequiresLLM {
		t.Error("low-confidence classification should require LLM")
	}
}

func TestClassify_HighConfidenceSkipsLLM(t *testing.T) {
	in := NewClassifier().Classify("set a reminder for TSK-5 tomorrow", nil)
	if in.Confidence < 0.7 {
		t.Fatalf("expected confidence >= 0.7, got %.2f", in.Confidence)
	}
	if in.RequiresLLM {
		t.Error("simple high-confidence action should not require LLM")
	}
}

func TestClassify_ComplexQueryRequiresLLM(t *testing.T) {
	queries := []string{
		// > 20 words
		"please show me every single task bug and story that has been created updated or closed across all of my projects this year",
		// two question marks
		"what is open? and what is closed?",
		// conditional
		"if TSK-4 is done then close BUG-2",
		// comparative
		"which project has more than twenty open bugs",
	}
	c := NewClassifier()
	for _, q := range queries {
		if in := c.Classify(q, nil); !in.RequiresLLM {
			t.Errorf("Classify(%q) should require LLM", q)
		}
	}
}

func TestClassify_ClarificationLoopDamped(t *testing.T) {
	c := NewClassifier()
	last := Clarification
	with := c.Classify("ok", &Context{LastIntent: &last})
	without := c.Classify("ok", nil)
	if with.Type == Clarification && without.Type == Clarification &&
		with.Confidence >= without.Confidence {
		t.Errorf("repeated clarification should score lower: %.2f vs %.2f",
			with.Confidence, without.Confidence)
	}
}

func TestClassify_ContinuationBias(t *testing.T) {
	c := NewClassifier()
	last := Query
	// The anaphoric pronoun plus session mentions boosts the previous
	// intent's score, so confidence rises relative to no context.
	in := c.Classify("and what about this one", &Context{LastIntent: &last, HasMentions: true})
	base := c.Classify("and what about this one", nil)
	if in.Type != Query || base.Type != Query {
		t.Fatalf("expected QUERY both ways, got %v / %v", in.Type, base.Type)
	}
	if in.Confidence <= base.Confidence {
		t.Errorf("continuation bias had no effect: %.2f vs %.2f",
			in.Confidence, base.Confidence)
	}
}
