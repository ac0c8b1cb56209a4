package action

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/planhub/concierge/internal/extract"
	"github.com/planhub/concierge/internal/models"
	"github.com/planhub/concierge/internal/store"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Handler executes validated actions against the entity store. Each action
// is a single atomic step wrapped in one transaction; there are no
// multi-action sagas.
type Handler struct {
	db        *gorm.DB
	retriever *store.Retriever
	reminders ReminderStore
	comments  CommentStore
	commits   CommitResolver // optional
	policy    TransitionPolicy
	baseURL   string
	clock     func() time.Time
	logger    *zap.Logger
}

// HandlerOpts holds parameters for creating a Handler.
type HandlerOpts struct {
	DB        *gorm.DB
	Retriever *store.Retriever
	Reminders ReminderStore
	Comments  CommentStore
	Commits   CommitResolver   // optional; links are recorded without metadata when nil
	Policy    TransitionPolicy // defaults to PermissivePolicy
	BaseURL   string
	Clock     func() time.Time // defaults to time.Now
	Logger    *zap.Logger
}

// NewHandler creates a Handler.
func NewHandler(opts HandlerOpts) (*Handler, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("action: handler: db is required")
	}
	if opts.Retriever == nil {
		return nil, fmt.Errorf("action: handler: retriever is required")
	}
	if opts.Reminders == nil {
		return nil, fmt.Errorf("action: handler: reminder store is required")
	}
	if opts.Comments == nil {
		return nil, fmt.Errorf("action: handler: comment store is required")
	}
	policy := opts.Policy
	if policy == nil {
		policy = PermissivePolicy{}
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		db:        opts.DB,
		retriever: opts.Retriever,
		reminders: opts.Reminders,
		comments:  opts.Comments,
		commits:   opts.Commits,
		policy:    policy,
		baseURL:   opts.BaseURL,
		clock:     clock,
		logger:    logger,
	}, nil
}

// Execute runs one action for the acting user. The destructive pre-check
// always runs first, before any state is touched. Returns a typed *Error
// carrying DENIED or FAILED on any precondition violation.
func (h *Handler) Execute(ctx context.Context, user models.User, req Request) (*Outcome, error) {
	if IsDestructive(req.Name) {
		return nil, denyf("the %q action cannot be performed through chat; please use the main interface",
			strings.ReplaceAll(req.Name, "_", " "))
	}

	switch req.Type {
	case ViewEntity:
		return h.viewEntity(user, req.Params)
	case SetReminder:
		return h.setReminder(ctx, user, req.Params)
	case UpdateStatus:
		return h.updateStatus(user, req.Params)
	case CreateComment:
		return h.createComment(ctx, user, req.Params)
	case LinkCommit:
		return h.linkCommit(ctx, user, req.Params)
	case SuggestReport:
		return h.suggestReport(user, req.Params)
	}
	return nil, failf("unsupported action %q", req.Name)
}

// entityRef parses the entity_type/entity_id parameter pair. entity_id may
// be a short code ("TSK-42") or a bare number paired with entity_type.
func entityRef(params Params) (extract.EntityKind, uint, *Error) {
	rawID := strings.TrimSpace(params["entity_id"])
	if rawID == "" {
		return 0, 0, failf("missing entity_id parameter")
	}
	if kind, id, ok := extract.ParseCode(rawID); ok {
		return kind, id, nil
	}
	kind, ok := extract.KindFromString(params["entity_type"])
	if !ok {
		return 0, 0, failf("missing or unknown entity_type parameter")
	}
	id, err := strconv.ParseUint(rawID, 10, 32)
	if err != nil || id == 0 {
		return 0, 0, failf("invalid entity_id %q", rawID)
	}
	return kind, uint(id), nil
}

// viewEntity loads and access-checks the entity, then returns its deep link.
func (h *Handler) viewEntity(user models.User, params Params) (*Outcome, error) {
	kind, id, aerr := entityRef(params)
	if aerr != nil {
		return nil, aerr
	}
	name, err := h.lookupName(user, kind, id)
	if err != nil {
		return nil, denyf("%s %s was not found or is not accessible", kind, extract.FormatCode(kind, id))
	}
	link := DeepLink(h.baseURL, kind, id)
	return &Outcome{
		Result:   Success,
		Message:  fmt.Sprintf("Here is %s: %s", name, link),
		DeepLink: link,
		Data:     map[string]interface{}{"entity_type": kind.String(), "entity_id": id, "name": name},
	}, nil
}

// lookupName resolves an entity's display name within the user's client.
func (h *Handler) lookupName(user models.User, kind extract.EntityKind, id uint) (string, error) {
	resolved := h.retriever.Resolve(user, []extract.Entity{
		{Kind: kind, Code: extract.FormatCode(kind, id)},
	})
	if len(resolved) == 0 {
		return "", store.ErrNotFound
	}
	return resolved[0].Name, nil
}

// reminderLayouts is the ordered list of accepted remind_at formats. A
// trailing Z parses as UTC via RFC3339.
var reminderLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// setReminder validates and creates a reminder for a task, bug, or project.
func (h *Handler) setReminder(ctx context.Context, user models.User, params Params) (*Outcome, error) {
	kind, id, aerr := entityRef(params)
	if aerr != nil {
		return nil, aerr
	}
	switch kind {
	case extract.KindTask, extract.KindBug, extract.KindProject:
	default:
		return nil, failf("reminders can only be set on tasks, bugs, and projects")
	}

	rawAt := strings.TrimSpace(params["remind_at"])
	if rawAt == "" {
		return nil, failf("missing remind_at parameter; tell me when to remind you")
	}
	var remindAt time.Time
	var parsed bool
	for _, layout := range reminderLayouts {
		if t, err := time.Parse(layout, rawAt); err == nil {
			remindAt, parsed = t, true
			break
		}
	}
	if !parsed {
		return nil, failf("could not understand the reminder time %q", rawAt)
	}
	// The comparison happens in the reminder's own timezone.
	if !remindAt.After(h.clock().In(remindAt.Location())) {
		return nil, failf("the reminder time must be in the future")
	}

	name, err := h.lookupName(user, kind, id)
	if err != nil {
		return nil, denyf("%s was not found or is not accessible", extract.FormatCode(kind, id))
	}

	message := params["message"]
	if message == "" {
		message = fmt.Sprintf("Reminder about %s (%s)", name, extract.FormatCode(kind, id))
	}
	reminder := &models.Reminder{
		UserID:     user.ID,
		EntityType: kind.String(),
		EntityID:   id,
		Message:    message,
		RemindAt:   remindAt,
		CreatedVia: "chat",
	}
	if err := h.reminders.Create(ctx, reminder); err != nil {
		h.logger.Error("create reminder", zap.Error(err))
		return nil, failf("could not save the reminder")
	}
	return &Outcome{
		Result:  Success,
		Message: fmt.Sprintf("Reminder set for %s about %s", remindAt.Format("Jan 2 15:04"), name),
		Data:    map[string]interface{}{"reminder_id": reminder.ID},
	}, nil
}

// statusCanon maps recognized status keywords to their canonical stored
// form.
var statusCanon = map[string]string{
	"open":        "Open",
	"in progress": "In Progress",
	"blocked":     "Blocked",
	"completed":   "Completed",
	"done":        "Completed",
	"closed":      "Closed",
	"reopened":    "Reopened",
	"pending":     "Pending",
}

// updateStatus transitions a task or bug to a new status, stamping the
// updater and maintaining completion/closure bookkeeping.
func (h *Handler) updateStatus(user models.User, params Params) (*Outcome, error) {
	kind, id, aerr := entityRef(params)
	if aerr != nil {
		return nil, aerr
	}
	newStatus, ok := statusCanon[strings.ToLower(strings.TrimSpace(params["new_status"]))]
	if !ok {
		return nil, failf("missing or unknown new_status parameter")
	}

	switch kind {
	case extract.KindTask:
		return h.updateTaskStatus(user, id, newStatus)
	case extract.KindBug:
		return h.updateBugStatus(user, id, newStatus)
	default:
		return nil, failf("status updates are only supported for tasks and bugs")
	}
}

func (h *Handler) updateTaskStatus(user models.User, id uint, newStatus string) (*Outcome, error) {
	// Retrieval is client-scoped, so any caller who can load the task
	// shares its client and may update it.
	task, err := h.retriever.TaskByID(user, id)
	if err != nil {
		return nil, denyf("task %s was not found or is not accessible", extract.FormatCode(extract.KindTask, id))
	}
	if !h.policy.Allow(extract.KindTask, task.Status, newStatus) {
		return nil, failf("a task cannot move from %s to %s", task.Status, newStatus)
	}

	now := h.clock()
	updates := map[string]interface{}{
		"status":        newStatus,
		"updated_by_id": user.ID,
	}
	if newStatus == "Completed" {
		updates["completed_at"] = now
	}
	err = h.db.Transaction(func(tx *gorm.DB) error {
		return tx.Model(&models.Task{}).Where("id = ?", task.ID).Updates(updates).Error
	})
	if err != nil {
		h.logger.Error("update task status", zap.Uint("task_id", task.ID), zap.Error(err))
		return nil, failf("could not update the task status")
	}
	return &Outcome{
		Result:  Success,
		Message: fmt.Sprintf("%s is now %s", extract.FormatCode(extract.KindTask, task.ID), newStatus),
		Data:    map[string]interface{}{"previous_status": task.Status, "new_status": newStatus},
	}, nil
}

func (h *Handler) updateBugStatus(user models.User, id uint, newStatus string) (*Outcome, error) {
	bug, err := h.retriever.BugByID(user, id)
	if err != nil {
		return nil, denyf("bug %s was not found or is not accessible", extract.FormatCode(extract.KindBug, id))
	}
	if !h.policy.Allow(extract.KindBug, bug.Status, newStatus) {
		return nil, failf("a bug cannot move from %s to %s", bug.Status, newStatus)
	}

	now := h.clock()
	updates := map[string]interface{}{
		"status":        newStatus,
		"updated_by_id": user.ID,
	}
	switch newStatus {
	case "Closed":
		updates["closed_at"] = now
	case "Reopened":
		updates["reopen_count"] = gorm.Expr("reopen_count + 1")
	}
	err = h.db.Transaction(func(tx *gorm.DB) error {
		return tx.Model(&models.Bug{}).Where("id = ?", bug.ID).Updates(updates).Error
	})
	if err != nil {
		h.logger.Error("update bug status", zap.Uint("bug_id", bug.ID), zap.Error(err))
		return nil, failf("could not update the bug status")
	}
	return &Outcome{
		Result:  Success,
		Message: fmt.Sprintf("%s is now %s", extract.FormatCode(extract.KindBug, bug.ID), newStatus),
		Data:    map[string]interface{}{"previous_status": bug.Status, "new_status": newStatus},
	}, nil
}

// createComment attaches a comment to a bug or test case.
func (h *Handler) createComment(ctx context.Context, user models.User, params Params) (*Outcome, error) {
	kind, id, aerr := entityRef(params)
	if aerr != nil {
		return nil, aerr
	}
	switch kind {
	case extract.KindBug, extract.KindTestCase:
	default:
		return nil, failf("comments can only be added to bugs and test cases")
	}
	text := strings.TrimSpace(params["comment_text"])
	if text == "" {
		return nil, failf("the comment text is empty")
	}
	if _, err := h.lookupName(user, kind, id); err != nil {
		return nil, denyf("%s was not found or is not accessible", extract.FormatCode(kind, id))
	}

	commentID, err := h.comments.Create(ctx, &models.Comment{
		EntityType: kind.String(),
		EntityID:   id,
		AuthorID:   user.ID,
		Body:       text,
	})
	if err != nil {
		h.logger.Error("create comment", zap.Error(err))
		return nil, failf("could not save the comment")
	}
	return &Outcome{
		Result:  Success,
		Message: fmt.Sprintf("Comment added to %s", extract.FormatCode(kind, id)),
		Data:    map[string]interface{}{"comment_id": commentID},
	}, nil
}

// linkCommit records a commit or PR against a task, optionally resolving
// metadata through the hosting provider.
func (h *Handler) linkCommit(ctx context.Context, user models.User, params Params) (*Outcome, error) {
	rawTask := strings.TrimSpace(params["task_id"])
	if rawTask == "" {
		return nil, failf("missing task_id parameter")
	}
	var taskID uint
	if kind, id, ok := extract.ParseCode(rawTask); ok && kind == extract.KindTask {
		taskID = id
	} else if n, err := strconv.ParseUint(rawTask, 10, 32); err == nil && n > 0 {
		taskID = uint(n)
	} else {
		return nil, failf("invalid task_id %q", rawTask)
	}

	sha := strings.TrimSpace(params["commit_id"])
	prRaw := strings.TrimSpace(params["pr_id"])
	if sha == "" && prRaw == "" {
		return nil, failf("provide a commit id or a PR number to link")
	}

	task, err := h.retriever.TaskByID(user, taskID)
	if err != nil {
		return nil, denyf("task %s was not found or is not accessible", extract.FormatCode(extract.KindTask, taskID))
	}

	link := models.CommitLink{
		TaskID:      task.ID,
		CommitSHA:   sha,
		CreatedByID: user.ID,
	}
	if prRaw != "" {
		pr, err := strconv.Atoi(strings.TrimPrefix(prRaw, "#"))
		if err != nil || pr <= 0 {
			return nil, failf("invalid PR number %q", prRaw)
		}
		link.PRNumber = pr
	}

	if h.commits != nil {
		var info *CommitInfo
		var rerr error
		if link.PRNumber > 0 {
			info, rerr = h.commits.PullRequest(ctx, link.PRNumber)
		} else {
			info, rerr = h.commits.Commit(ctx, sha)
		}
		if rerr != nil {
			// Metadata is best-effort; record the link regardless.
			h.logger.Warn("resolve commit metadata", zap.Error(rerr))
		} else if info != nil {
			link.Title = info.Title
			link.URL = info.URL
		}
	}

	if err := h.db.Create(&link).Error; err != nil {
		h.logger.Error("record commit link", zap.Error(err))
		return nil, failf("could not record the link")
	}

	ref := sha
	if link.PRNumber > 0 {
		ref = fmt.Sprintf("PR #%d", link.PRNumber)
	}
	return &Outcome{
		Result:  Success,
		Message: fmt.Sprintf("Linked %s to %s", ref, extract.FormatCode(extract.KindTask, task.ID)),
		Data:    map[string]interface{}{"link_id": link.ID},
	}, nil
}

// suggestReport builds a reports URL from the present parameters,
// access-checking the project when one is given.
func (h *Handler) suggestReport(user models.User, params Params) (*Outcome, error) {
	projectID := strings.TrimSpace(params["project_id"])
	if projectID != "" {
		kind, id, ok := extract.ParseCode(projectID)
		if ok && kind == extract.KindProject {
			projectID = strconv.FormatUint(uint64(id), 10)
		}
		n, err := strconv.ParseUint(projectID, 10, 32)
		if err != nil {
			return nil, failf("invalid project_id %q", params["project_id"])
		}
		if _, err := h.retriever.ProjectByID(user, uint(n)); err != nil {
			return nil, denyf("project %s was not found or is not accessible", params["project_id"])
		}
	}
	link := ReportLink(h.baseURL, params["report_type"], projectID, params["start_date"], params["end_date"])
	return &Outcome{
		Result:   Success,
		Message:  "Here is the report you asked for: " + link,
		DeepLink: link,
	}, nil
}
