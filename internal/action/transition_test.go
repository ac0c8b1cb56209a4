package action

import (
	"strings"
	"testing"

	"github.com/planhub/concierge/internal/extract"
)

func TestPermissivePolicyAllowsEverything(t *testing.T) {
	p := PermissivePolicy{}
	if !p.Allow(extract.KindTask, "Completed", "Blocked") {
		t.Error("permissive policy should allow any transition")
	}
}

func TestTablePolicy(t *testing.T) {
	tests := []struct {
		kind extract.EntityKind
		from string
		to   string
		want bool
	}{
		{extract.KindTask, "Open", "In Progress", true},
		{extract.KindTask, "Open", "Completed", true},
		{extract.KindTask, "Blocked", "Completed", false},
		{extract.KindTask, "Completed", "Open", true},
		{extract.KindTask, "Open", "Reopened", false},
		{extract.KindBug, "Open", "Closed", true},
		{extract.KindBug, "Closed", "Reopened", true},
		{extract.KindBug, "Open", "Reopened", false},
		{extract.KindBug, "Reopened", "Closed", true},
		// Kinds without a table pass through.
		{extract.KindProject, "Active", "Archived", true},
	}

	p := TablePolicy{}
	for _, tt := range tests {
		if got := p.Allow(tt.kind, tt.from, tt.to); got != tt.want {
			t.Errorf("Allow(%s, %s -> %s) = %v, want %v", tt.kind, tt.from, tt.to, got, tt.want)
		}
	}
}

func TestDeepLink(t *testing.T) {
	base := "https://planhub.test"
	tests := []struct {
		kind extract.EntityKind
		want string
	}{
		{extract.KindProject, base + "/projects/4"},
		{extract.KindTask, base + "/tasks/4"},
		{extract.KindBug, base + "/bugs/4"},
		{extract.KindUserStory, base + "/user-stories/4"},
		{extract.KindUseCase, base + "/use-cases/4"},
		{extract.KindTestCase, base + "/test-cases/4"},
		{extract.KindProgram, base + "/programs/4"},
	}
	for _, tt := range tests {
		if got := DeepLink(base, tt.kind, 4); got != tt.want {
			t.Errorf("DeepLink(%s) = %q, want %q", tt.kind, got, tt.want)
		}
	}

	if got := DeepLink(base, extract.EntityKind(99), 4); got != base+"/hierarchy" {
		t.Errorf("unknown kind = %q, want hierarchy fallback", got)
	}
}

func TestReportLink(t *testing.T) {
	got := ReportLink("https://planhub.test", "burndown", "7", "2024-01-01", "2024-01-31")
	for _, part := range []string{"type=burndown", "project_id=7", "start=2024-01-01", "end=2024-01-31"} {
		if !strings.Contains(got, part) {
			t.Errorf("ReportLink missing %q: %s", part, got)
		}
	}

	if got := ReportLink("https://planhub.test", "", "", "", ""); got != "https://planhub.test/reports" {
		t.Errorf("empty params = %q", got)
	}
}
