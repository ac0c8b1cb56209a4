// Package assistant orchestrates the chat pipeline: classify the query,
// optionally refine it through the LLM fallback, dispatch to retrieval or
// action execution, format the answer, and record session and audit state.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/planhub/concierge/internal/action"
	"github.com/planhub/concierge/internal/extract"
	"github.com/planhub/concierge/internal/intent"
	"github.com/planhub/concierge/internal/llm"
	"github.com/planhub/concierge/internal/models"
	"github.com/planhub/concierge/internal/session"
	"github.com/planhub/concierge/internal/store"
	"go.uber.org/zap"
)

// Assistant is the query-processing pipeline. All per-request state lives
// in the session store; the Assistant itself is safe for concurrent use.
type Assistant struct {
	classifier *intent.Classifier
	refiner    *llm.Adapter // optional
	retriever  *store.Retriever
	actions    *action.Handler
	sessions   *session.Manager
	auditor    *Auditor
	fmtr       formatter
	baseURL    string
	clock      func() time.Time
	logger     *zap.Logger
}

// Opts holds parameters for creating an Assistant.
type Opts struct {
	Retriever      *store.Retriever
	Actions        *action.Handler
	Sessions       *session.Manager
	Auditor        *Auditor
	Refiner        *llm.Adapter // optional; rule results stand alone without it
	Narrator       llm.Backend  // optional answer rephrasing
	NarrateTimeout time.Duration
	BaseURL        string
	Clock          func() time.Time
	Logger         *zap.Logger
}

// New creates an Assistant.
func New(opts Opts) (*Assistant, error) {
	if opts.Retriever == nil {
		return nil, fmt.Errorf("assistant: retriever is required")
	}
	if opts.Actions == nil {
		return nil, fmt.Errorf("assistant: action handler is required")
	}
	if opts.Sessions == nil {
		return nil, fmt.Errorf("assistant: session manager is required")
	}
	if opts.Auditor == nil {
		return nil, fmt.Errorf("assistant: auditor is required")
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := opts.NarrateTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Assistant{
		classifier: intent.NewClassifier(),
		refiner:    opts.Refiner,
		retriever:  opts.Retriever,
		actions:    opts.Actions,
		sessions:   opts.Sessions,
		auditor:    opts.Auditor,
		fmtr:       formatter{backend: opts.Narrator, timeout: timeout, logger: logger},
		baseURL:    opts.BaseURL,
		clock:      clock,
		logger:     logger,
	}, nil
}

// Query is one inbound chat request.
type Query struct {
	User      models.User
	Text      string
	SessionID string // empty starts a new session
	ClientIP  string
	UserAgent string
}

// ProcessQuery runs the full pipeline for one query. It always returns a
// response; internal failures surface as a generic error answer with an
// error code, never as a leaked error string.
func (a *Assistant) ProcessQuery(ctx context.Context, q Query) (resp *Response) {
	start := a.clock()
	requestID := uuid.NewString()

	var sess *models.ChatSession
	var in intent.Intent

	// A panic anywhere in the pipeline still produces an envelope and an
	// audit record; callers never see the raw stack.
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("query panic",
				zap.String("request_id", requestID),
				zap.Any("panic", r),
				zap.Stack("stack"))
			resp = errResp("Something went wrong on our side. Please try again.", CodeInternalError)
			resp.Meta.RequestID = requestID
			resp.Meta.Intent = in.Type.String()
			resp.Meta.Confidence = in.Confidence
			if sess != nil {
				resp.Meta.SessionID = sess.ID
			}
			resp.Meta.ElapsedMS = a.clock().Sub(start).Milliseconds()
			a.audit(ctx, requestID, q, sess, in, resp)
		}
	}()

	var err error
	sess, err = a.sessions.GetOrCreate(ctx, q.User, q.SessionID)
	if err != nil {
		// Degrade to a one-shot conversation rather than refusing.
		a.logger.Error("session load", zap.String("request_id", requestID), zap.Error(err))
		sess = nil
	}

	in = a.classify(ctx, sess, q.Text)

	resp = a.dispatch(ctx, q.User, sess, in)
	resp.Meta.RequestID = requestID
	resp.Meta.Intent = in.Type.String()
	resp.Meta.Confidence = in.Confidence
	if sess != nil {
		resp.Meta.SessionID = sess.ID
	}
	resp.Meta.ElapsedMS = a.clock().Sub(start).Milliseconds()

	a.updateSession(ctx, q.User, sess, in, resp)
	a.audit(ctx, requestID, q, sess, in, resp)
	return resp
}

// classify runs the rule-based classifier, biased by session context, and
// escalates to the LLM when the result is flagged and a refiner exists.
func (a *Assistant) classify(ctx context.Context, sess *models.ChatSession, text string) intent.Intent {
	var sctx *intent.Context
	var hints *llm.SessionHints
	if sess != nil {
		sctx = &intent.Context{}
		if t, ok := intent.TypeFromString(sess.LastIntent); ok {
			sctx.LastIntent = &t
		}
		mentions := a.sessions.Mentions(sess)
		sctx.HasMentions = len(mentions) > 0
		if len(mentions) > 0 || sess.LastIntent != "" {
			hints = &llm.SessionHints{LastIntent: sess.LastIntent}
			for _, m := range mentions {
				hints.Mentioned = append(hints.Mentioned, m.Code)
			}
		}
	}

	in := a.classifier.Classify(text, sctx)
	in.Temporal = extract.Temporal(text, a.clock())
	if in.RequiresLLM && a.refiner != nil {
		in = a.refiner.Refine(ctx, in, hints)
	}
	return in
}

func (a *Assistant) dispatch(ctx context.Context, user models.User, sess *models.ChatSession, in intent.Intent) *Response {
	switch in.Type {
	case intent.Action:
		return a.handleAction(ctx, user, in)
	case intent.Navigation:
		return a.handleNavigation(user, in)
	case intent.Report:
		return a.handleReport(ctx, user, in)
	case intent.Clarification:
		return a.handleClarification(ctx, sess, in)
	default:
		return a.handleQuery(ctx, user, in)
	}
}

// canonStatus maps query vocabulary to stored status values.
var canonStatus = map[string]string{
	"open":        "Open",
	"in progress": "In Progress",
	"blocked":     "Blocked",
	"completed":   "Completed",
	"closed":      "Closed",
	"reopened":    "Reopened",
	"pending":     "Pending",
}

// canonPriority maps query vocabulary to stored priority values.
var canonPriority = map[string]string{
	"critical": "Critical",
	"high":     "High",
	"medium":   "Medium",
	"low":      "Low",
}

// handleQuery answers retrieval intents: point lookups when codes are
// present, filtered lists otherwise.
func (a *Assistant) handleQuery(ctx context.Context, user models.User, in intent.Intent) *Response {
	// Specific entities named: show them.
	if hasCodes(in.Entities) {
		resolved := a.retriever.Resolve(user, in.Entities)
		resp := ok(a.fmtText(ctx, formatResolved(resolved)))
		for _, r := range resolved {
			resp.Actions = append(resp.Actions, SuggestedAction{
				Label: "Open " + r.Code,
				Kind:  "link",
				Value: action.DeepLink(a.baseURL, r.Kind, r.ID),
			})
		}
		return resp
	}

	q := in.Normalized
	status := canonStatus[in.Temporal.StatusFilter]
	priority := canonPriority[in.Temporal.PriorityFilter]

	switch {
	case strings.Contains(q, "bug"):
		bugs, err := a.retriever.Bugs(user, store.BugFilter{Status: status, Priority: priority})
		if err != nil {
			return a.internalErr("list bugs", err)
		}
		return ok(a.fmtText(ctx, formatBugs(bugs)))
	case strings.Contains(q, "project"):
		projects, err := a.retriever.Projects(user, status)
		if err != nil {
			return a.internalErr("list projects", err)
		}
		return ok(a.fmtText(ctx, formatProjects(projects)))
	case strings.Contains(q, "stories") || strings.Contains(q, "story"):
		stories, err := a.retriever.UserStories(user, status)
		if err != nil {
			return a.internalErr("list stories", err)
		}
		return ok(a.fmtText(ctx, formatStories(stories)))
	default:
		f := store.TaskFilter{
			Status:   status,
			Priority: priority,
			DueStart: in.Temporal.StartDate,
			DueEnd:   in.Temporal.EndDate,
		}
		if mentionsSelf(q) {
			f.AssigneeID = &user.ID
		}
		tasks, err := a.retriever.Tasks(user, f)
		if err != nil {
			return a.internalErr("list tasks", err)
		}
		return ok(a.fmtText(ctx, formatTasks(tasks)))
	}
}

// handleNavigation resolves the named entity and answers with its deep
// link.
func (a *Assistant) handleNavigation(user models.User, in intent.Intent) *Response {
	resolved := a.retriever.Resolve(user, in.Entities)
	if len(resolved) == 0 {
		return ok("Which item would you like to open? Give me its code, like TSK-42.")
	}
	r := resolved[0]
	link := action.DeepLink(a.baseURL, r.Kind, r.ID)
	resp := ok(fmt.Sprintf("Here is %s (%s): %s", r.Name, r.Code, link))
	resp.Actions = []SuggestedAction{{Label: "Open " + r.Code, Kind: "link", Value: link}}
	return resp
}

// handleAction derives an executable request from the query and runs it.
func (a *Assistant) handleAction(ctx context.Context, user models.User, in intent.Intent) *Response {
	req := deriveAction(in, a.clock())
	out, err := a.actions.Execute(ctx, user, req)
	if err != nil {
		var aerr *action.Error
		if errors.As(err, &aerr) {
			resp := errResp(aerr.Message, CodeActionFailed)
			resp.Data = map[string]interface{}{"action": req.Name, "result": string(aerr.Result)}
			return resp
		}
		return a.internalErr("execute action", err)
	}

	resp := ok(out.Message)
	resp.Data = out.Data
	if resp.Data == nil {
		resp.Data = map[string]interface{}{}
	}
	resp.Data["action"] = req.Name
	resp.Data["result"] = string(out.Result)
	if out.DeepLink != "" {
		resp.Actions = []SuggestedAction{{Label: "Open", Kind: "link", Value: out.DeepLink}}
	}
	return resp
}

// handleReport answers aggregate intents from the counting queries.
func (a *Assistant) handleReport(ctx context.Context, user models.User, in intent.Intent) *Response {
	q := in.Normalized
	switch {
	case strings.Contains(q, "workload") || strings.Contains(q, "assigned to whom") || strings.Contains(q, "per person"):
		rows, err := a.retriever.Workload(user)
		if err != nil {
			return a.internalErr("workload report", err)
		}
		return ok(a.fmtText(ctx, formatWorkload(rows)))
	case strings.Contains(q, "bug") && strings.Contains(q, "severity"):
		rows, err := a.retriever.BugSeverityCounts(user)
		if err != nil {
			return a.internalErr("bug severity report", err)
		}
		return ok(a.fmtText(ctx, formatCounts("Bugs by severity", rows)))
	case strings.Contains(q, "bug"):
		rows, err := a.retriever.BugStatusCounts(user)
		if err != nil {
			return a.internalErr("bug status report", err)
		}
		return ok(a.fmtText(ctx, formatCounts("Bugs by status", rows)))
	case strings.Contains(q, "priority"):
		rows, err := a.retriever.TaskPriorityCounts(user)
		if err != nil {
			return a.internalErr("task priority report", err)
		}
		return ok(a.fmtText(ctx, formatCounts("Tasks by priority", rows)))
	default:
		rows, err := a.retriever.TaskStatusCounts(user)
		if err != nil {
			return a.internalErr("task status report", err)
		}
		resp := ok(a.fmtText(ctx, formatCounts("Tasks by status", rows)))
		resp.Actions = []SuggestedAction{{
			Label: "Full report",
			Kind:  "link",
			Value: action.ReportLink(a.baseURL, "status", "", in.Temporal.StartDate, in.Temporal.EndDate),
		}}
		return resp
	}
}

// handleClarification asks the user to narrow down an ambiguous query,
// using remembered mentions or the recent transcript when there is any.
func (a *Assistant) handleClarification(ctx context.Context, sess *models.ChatSession, in intent.Intent) *Response {
	if sess != nil {
		if mentions := a.sessions.Mentions(sess); len(mentions) > 0 {
			last := mentions[len(mentions)-1]
			return ok(fmt.Sprintf("Are you asking about %s? Tell me what you'd like to do with it, or name another item.", last.Code))
		}
		if prior := a.lastUserTurn(ctx, sess); prior != "" {
			return ok(fmt.Sprintf("Is this about your earlier question %q? Tell me a bit more about what you need.", prior))
		}
	}
	return ok("Could you tell me a bit more? For example: \"show my open tasks\" or \"open TSK-42\".")
}

// lastUserTurn returns the most recent user message from the transcript,
// or "" when there is none. History failures are soft.
func (a *Assistant) lastUserTurn(ctx context.Context, sess *models.ChatSession) string {
	msgs, err := a.sessions.History(ctx, sess)
	if err != nil {
		a.logger.Warn("session history", zap.Error(err))
		return ""
	}
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == "user" {
			return msgs[i].Content
		}
	}
	return ""
}

// updateSession records intent, mentions, and the transcript turn. Every
// step is best-effort.
func (a *Assistant) updateSession(ctx context.Context, user models.User, sess *models.ChatSession, in intent.Intent, resp *Response) {
	if sess == nil {
		return
	}
	if err := a.sessions.RecordIntent(ctx, sess, in.Type.String()); err != nil {
		a.logger.Warn("record intent", zap.Error(err))
	}
	if resolved := a.retriever.Resolve(user, in.Entities); len(resolved) > 0 {
		mentions := make([]session.Mention, 0, len(resolved))
		for _, r := range resolved {
			mentions = append(mentions, session.Mention{
				Kind: r.Kind.String(), ID: r.ID, Code: r.Code, Name: r.Name,
			})
			if r.Kind == extract.KindProject {
				if err := a.sessions.SetCurrentProject(ctx, sess, r.ID); err != nil {
					a.logger.Warn("set current project", zap.Error(err))
				}
			}
		}
		if err := a.sessions.RecordMentions(ctx, sess, mentions); err != nil {
			a.logger.Warn("record mentions", zap.Error(err))
		}
	}
	if err := a.sessions.AppendMessage(ctx, sess, "user", in.RawQuery); err != nil {
		a.logger.Warn("append user message", zap.Error(err))
	}
	if err := a.sessions.AppendMessage(ctx, sess, "assistant", resp.Message); err != nil {
		a.logger.Warn("append assistant message", zap.Error(err))
	}
}

// audit writes the per-query record, best-effort.
func (a *Assistant) audit(ctx context.Context, requestID string, q Query, sess *models.ChatSession, in intent.Intent, resp *Response) {
	var codes []string
	for _, e := range in.Entities {
		if e.Code != "" {
			codes = append(codes, e.Code)
		}
	}
	entry := Entry{
		RequestID:   requestID,
		User:        q.User,
		Query:       q.Text,
		IntentType:  in.Type.String(),
		Confidence:  in.Confidence,
		EntityCodes: codes,
		Preview:     resp.Message,
		ClientIP:    q.ClientIP,
		UserAgent:   q.UserAgent,
	}
	if sess != nil {
		entry.SessionID = sess.ID
	}
	if resp.Data != nil {
		if name, okName := resp.Data["action"].(string); okName {
			entry.ActionType = name
		}
		if result, okRes := resp.Data["result"].(string); okRes {
			entry.ActionResult = result
		}
	}
	a.auditor.Record(ctx, entry)
}

// fmtText routes deterministic text through the optional narrator.
func (a *Assistant) fmtText(ctx context.Context, text string) string {
	return a.fmtr.narrate(ctx, text)
}

func (a *Assistant) internalErr(what string, err error) *Response {
	a.logger.Error(what, zap.Error(err))
	return errResp("Something went wrong on our side. Please try again.", CodeInternalError)
}

func ok(message string) *Response {
	return &Response{Status: "success", Message: message}
}

func errResp(message, code string) *Response {
	return &Response{Status: "error", Message: message, Meta: Meta{ErrorCode: code}}
}

func hasCodes(entities []extract.Entity) bool {
	for _, e := range entities {
		if e.Code != "" {
			return true
		}
	}
	return false
}

// mentionsSelf detects first-person scoping ("my tasks", "assigned to me")
// without tripping on the filler "show me".
func mentionsSelf(q string) bool {
	return containsWord(q, "my") || containsWord(q, "mine") ||
		strings.Contains(q, "assigned to me") || strings.HasSuffix(q, " for me")
}
