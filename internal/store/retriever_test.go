package store

import (
	"testing"
	"time"

	"github.com/planhub/concierge/internal/db"
	"github.com/planhub/concierge/internal/extract"
	"github.com/planhub/concierge/internal/models"
	"gorm.io/gorm"
)

func openStoreTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := db.ConnectSQLite(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(gdb); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}
	return gdb
}

// fixture seeds two clients with a full hierarchy each and returns the test
// db plus a user from client A.
type fixture struct {
	db    *gorm.DB
	userA models.User
	userB models.User
	// client A records
	project models.Project
	story   models.UserStory
	taskDueToday    models.Task
	taskDueToday2   models.Task
	taskDueTomorrow models.Task
	bug             models.Bug
	// client B records
	taskB models.Task
	bugB  models.Bug
}

func seed(t *testing.T) *fixture {
	t.Helper()
	gdb := openStoreTestDB(t)
	f := &fixture{db: gdb}

	today := time.Date(2024, 1, 17, 12, 0, 0, 0, time.UTC)
	tomorrow := today.AddDate(0, 0, 1)

	mustCreate := func(v interface{}) {
		t.Helper()
		if err := gdb.Create(v).Error; err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	clientA := models.Client{Name: "Acme", Code: "ACME"}
	clientB := models.Client{Name: "Globex", Code: "GLBX"}
	mustCreate(&clientA)
	mustCreate(&clientB)

	f.userA = models.User{ClientID: clientA.ID, Name: "Ada", Email: "ada@acme.test"}
	f.userB = models.User{ClientID: clientB.ID, Name: "Bob", Email: "bob@globex.test"}
	mustCreate(&f.userA)
	mustCreate(&f.userB)

	progA := models.Program{ClientID: clientA.ID, Name: "Alpha"}
	progB := models.Program{ClientID: clientB.ID, Name: "Beta"}
	mustCreate(&progA)
	mustCreate(&progB)

	f.project = models.Project{ProgramID: progA.ID, Name: "Apollo", Status: "Active"}
	projB := models.Project{ProgramID: progB.ID, Name: "Borealis", Status: "Active"}
	mustCreate(&f.project)
	mustCreate(&projB)

	ucA := models.UseCase{ProjectID: f.project.ID, Name: "Checkout"}
	ucB := models.UseCase{ProjectID: projB.ID, Name: "Billing"}
	mustCreate(&ucA)
	mustCreate(&ucB)

	f.story = models.UserStory{UseCaseID: ucA.ID, Title: "Login revamp", Status: "Open"}
	storyB := models.UserStory{UseCaseID: ucB.ID, Title: "Invoices", Status: "Open"}
	mustCreate(&f.story)
	mustCreate(&storyB)

	f.taskDueToday = models.Task{UserStoryID: f.story.ID, Title: "Migrate schema",
		Status: "Open", Priority: "High", AssigneeID: &f.userA.ID, DueDate: &today}
	f.taskDueToday2 = models.Task{UserStoryID: f.story.ID, Title: "Fix session bug",
		Status: "Open", Priority: "Low", AssigneeID: &f.userA.ID, DueDate: &today}
	f.taskDueTomorrow = models.Task{UserStoryID: f.story.ID, Title: "Write docs",
		Status: "Open", DueDate: &tomorrow}
	mustCreate(&f.taskDueToday)
	mustCreate(&f.taskDueToday2)
	mustCreate(&f.taskDueTomorrow)

	f.taskB = models.Task{UserStoryID: storyB.ID, Title: "Other tenant task", Status: "Open"}
	mustCreate(&f.taskB)

	f.bug = models.Bug{ProjectID: f.project.ID, Title: "Crash on save",
		Status: "Open", Severity: "Major", ReporterID: &f.userA.ID}
	f.bugB = models.Bug{ProjectID: projB.ID, Title: "Other tenant bug", Status: "Open"}
	mustCreate(&f.bug)
	mustCreate(&f.bugB)

	return f
}

func newTestRetriever(t *testing.T, gdb *gorm.DB) *Retriever {
	t.Helper()
	r, err := NewRetriever(RetrieverOpts{DB: gdb})
	if err != nil {
		t.Fatalf("new retriever: %v", err)
	}
	return r
}

func TestTaskByID_SameClient(t *testing.T) {
	f := seed(t)
	r := newTestRetriever(t, f.db)
	task, err := r.TaskByID(f.userA, f.taskDueToday.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if task.Title != "Migrate schema" {
		t.Errorf("title = %q", task.Title)
	}
}

func TestTaskByID_CrossTenantIsNotFound(t *testing.T) {
	f := seed(t)
	r := newTestRetriever(t, f.db)
	_, err := r.TaskByID(f.userA, f.taskB.ID)
	if err != ErrNotFound {
		t.Fatalf("cross-tenant lookup: err = %v, want ErrNotFound", err)
	}
}

func TestBugByID_CrossTenantIsNotFound(t *testing.T) {
	f := seed(t)
	r := newTestRetriever(t, f.db)
	if _, err := r.BugByID(f.userB, f.bug.ID); err != ErrNotFound {
		t.Fatalf("cross-tenant bug lookup: err = %v, want ErrNotFound", err)
	}
}

func TestTaskByID_SoftDeletedIsNotFound(t *testing.T) {
	f := seed(t)
	f.db.Model(&models.Task{}).Where("id = ?", f.taskDueToday.ID).
		Update("is_deleted", true)
	r := newTestRetriever(t, f.db)
	if _, err := r.TaskByID(f.userA, f.taskDueToday.ID); err != ErrNotFound {
		t.Fatalf("soft-deleted lookup: err = %v, want ErrNotFound", err)
	}
}

func TestTasks_DueDateRange(t *testing.T) {
	f := seed(t)
	r := newTestRetriever(t, f.db)
	tasks, err := r.Tasks(f.userA, TaskFilter{DueStart: "2024-01-17", DueEnd: "2024-01-17"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("got %d tasks due today, want 2: %v", len(tasks), tasks)
	}
}

func TestTasks_StatusAndPriority(t *testing.T) {
	f := seed(t)
	r := newTestRetriever(t, f.db)
	tasks, err := r.Tasks(f.userA, TaskFilter{Status: "open", Priority: "high"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tasks) != 1 || tasks[0].ID != f.taskDueToday.ID {
		t.Fatalf("got %v, want just the high-priority task", tasks)
	}
}

func TestTasks_TenantScoped(t *testing.T) {
	f := seed(t)
	r := newTestRetriever(t, f.db)
	tasks, err := r.Tasks(f.userB, TaskFilter{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tasks) != 1 || tasks[0].ID != f.taskB.ID {
		t.Fatalf("client B should only see its own task, got %v", tasks)
	}
}

func TestTaskStatusCounts(t *testing.T) {
	f := seed(t)
	r := newTestRetriever(t, f.db)
	rows, err := r.TaskStatusCounts(f.userA)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 1 || rows[0].Label != "Open" || rows[0].Count != 3 {
		t.Fatalf("counts = %v, want [{Open 3}]", rows)
	}
}

func TestWorkload(t *testing.T) {
	f := seed(t)
	r := newTestRetriever(t, f.db)
	rows, err := r.Workload(f.userA)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 1 || rows[0].UserName != "Ada" || rows[0].Open != 2 {
		t.Fatalf("workload = %v, want Ada with 2 open", rows)
	}
}

func TestResolve_CodesAndNames(t *testing.T) {
	f := seed(t)
	r := newTestRetriever(t, f.db)

	got := r.Resolve(f.userA, []extract.Entity{
		{Kind: extract.KindTask, Code: extract.FormatCode(extract.KindTask, f.taskDueToday.ID)},
		{Kind: extract.KindTask, Code: "TSK-9999"},                 // dropped silently
		{Kind: extract.KindProject, Name: "Apollo"},                // fuzzy name
		{Kind: extract.KindBug, Code: extract.FormatCode(extract.KindBug, f.bugB.ID)}, // other tenant
	})

	if len(got) != 2 {
		t.Fatalf("resolved = %v, want 2 entries", got)
	}
	if got[0].Kind != extract.KindTask || got[0].ID != f.taskDueToday.ID {
		t.Errorf("first resolution = %+v", got[0])
	}
	if got[1].Kind != extract.KindProject || got[1].Name != "Apollo" {
		t.Errorf("second resolution = %+v", got[1])
	}
}

func TestSearchByName_Bounded(t *testing.T) {
	f := seed(t)
	for i := 0; i < 10; i++ {
		task := models.Task{UserStoryID: f.story.ID, Title: "duplicate name", Status: "Open"}
		if err := f.db.Create(&task).Error; err != nil {
			t.Fatalf("seed extra task: %v", err)
		}
	}
	r := newTestRetriever(t, f.db)
	got, err := r.SearchByName(f.userA, extract.KindTask, "duplicate name")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != maxNameMatches {
		t.Fatalf("got %d matches, want bound of %d", len(got), maxNameMatches)
	}
}
