package assistant

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/planhub/concierge/internal/extract"
	"github.com/planhub/concierge/internal/llm"
	"github.com/planhub/concierge/internal/models"
	"github.com/planhub/concierge/internal/store"
	"go.uber.org/zap"
)

// listLimit bounds how many rows a chat answer enumerates before
// summarizing the remainder.
const listLimit = 10

// formatter renders structured results as chat text. The deterministic
// rendering is always produced; when an LLM backend is configured it may
// rephrase the answer, and any failure falls back to the deterministic
// text.
type formatter struct {
	backend llm.Backend // optional
	timeout time.Duration
	logger  *zap.Logger
}

const narrateSystem = "You rewrite structured project-management data as a short, " +
	"friendly chat answer. Keep every fact, code, and number exactly as given. " +
	"Do not invent records. Answer in plain text."

// narrate optionally rephrases the deterministic text through the LLM.
func (f *formatter) narrate(ctx context.Context, deterministic string) string {
	if f.backend == nil {
		return deterministic
	}
	cctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()
	out, _, err := f.backend.Generate(cctx, narrateSystem, deterministic)
	if err != nil || strings.TrimSpace(out) == "" {
		if err != nil {
			f.logger.Warn("narrate fallback", zap.Error(err))
		}
		return deterministic
	}
	return strings.TrimSpace(out)
}

func formatTasks(tasks []models.Task) string {
	if len(tasks) == 0 {
		return "No matching tasks found."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Found %d task(s):\n", len(tasks))
	for i, t := range tasks {
		if i == listLimit {
			fmt.Fprintf(&b, "…and %d more.", len(tasks)-listLimit)
			break
		}
		fmt.Fprintf(&b, "- %s: %s [%s", extract.FormatCode(extract.KindTask, t.ID), t.Title, t.Status)
		if t.Priority != "" {
			fmt.Fprintf(&b, ", %s", t.Priority)
		}
		if t.DueDate != nil {
			fmt.Fprintf(&b, ", due %s", t.DueDate.Format("Jan 2"))
		}
		b.WriteString("]\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatBugs(bugs []models.Bug) string {
	if len(bugs) == 0 {
		return "No matching bugs found."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Found %d bug(s):\n", len(bugs))
	for i, bg := range bugs {
		if i == listLimit {
			fmt.Fprintf(&b, "…and %d more.", len(bugs)-listLimit)
			break
		}
		fmt.Fprintf(&b, "- %s: %s [%s", extract.FormatCode(extract.KindBug, bg.ID), bg.Title, bg.Status)
		if bg.Severity != "" {
			fmt.Fprintf(&b, ", %s", bg.Severity)
		}
		b.WriteString("]\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatProjects(projects []models.Project) string {
	if len(projects) == 0 {
		return "No matching projects found."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Found %d project(s):\n", len(projects))
	for i, p := range projects {
		if i == listLimit {
			fmt.Fprintf(&b, "…and %d more.", len(projects)-listLimit)
			break
		}
		fmt.Fprintf(&b, "- %s: %s [%s]\n", extract.FormatCode(extract.KindProject, p.ID), p.Name, p.Status)
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatStories(stories []models.UserStory) string {
	if len(stories) == 0 {
		return "No matching user stories found."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Found %d user story(ies):\n", len(stories))
	for i, s := range stories {
		if i == listLimit {
			fmt.Fprintf(&b, "…and %d more.", len(stories)-listLimit)
			break
		}
		fmt.Fprintf(&b, "- %s: %s [%s]\n", extract.FormatCode(extract.KindUserStory, s.ID), s.Title, s.Status)
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatCounts(title string, rows []store.CountRow) string {
	if len(rows) == 0 {
		return "Nothing to report yet."
	}
	var b strings.Builder
	b.WriteString(title + ":\n")
	for _, r := range rows {
		fmt.Fprintf(&b, "- %s: %d\n", r.Label, r.Count)
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatWorkload(rows []store.WorkloadRow) string {
	if len(rows) == 0 {
		return "No open tasks are assigned right now."
	}
	var b strings.Builder
	b.WriteString("Open tasks per person:\n")
	for _, r := range rows {
		fmt.Fprintf(&b, "- %s: %d\n", r.UserName, r.Open)
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatResolved(items []store.Resolved) string {
	if len(items) == 0 {
		return "I could not find anything matching that."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Found %d match(es):\n", len(items))
	for _, it := range items {
		fmt.Fprintf(&b, "- %s: %s\n", it.Code, it.Name)
	}
	return strings.TrimRight(b.String(), "\n")
}
