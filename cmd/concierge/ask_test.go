package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/planhub/concierge/internal/db"
	"github.com/planhub/concierge/internal/models"
)

// buildTestApp wires the full stack against a fresh sqlite file and seeds one
// client with a user and a task.
func buildTestApp(t *testing.T) (*app, models.User) {
	t.Helper()

	a, err := buildApp(writeTestConfig(t))
	if err != nil {
		t.Fatalf("buildApp: %v", err)
	}
	if err := db.AutoMigrate(a.db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	client := models.Client{Name: "Acme"}
	if err := a.db.Create(&client).Error; err != nil {
		t.Fatalf("seed client: %v", err)
	}
	user := models.User{ClientID: client.ID, Name: "Ada", Email: "ada@acme.test", Role: "member"}
	if err := a.db.Create(&user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	program := models.Program{ClientID: client.ID, Name: "Core"}
	if err := a.db.Create(&program).Error; err != nil {
		t.Fatalf("seed program: %v", err)
	}
	project := models.Project{ProgramID: program.ID, Name: "Apollo", Status: "Active"}
	if err := a.db.Create(&project).Error; err != nil {
		t.Fatalf("seed project: %v", err)
	}
	uc := models.UseCase{ProjectID: project.ID, Name: "Checkout"}
	if err := a.db.Create(&uc).Error; err != nil {
		t.Fatalf("seed use case: %v", err)
	}
	story := models.UserStory{UseCaseID: uc.ID, Title: "Pay by card"}
	if err := a.db.Create(&story).Error; err != nil {
		t.Fatalf("seed story: %v", err)
	}
	task := models.Task{UserStoryID: story.ID, Title: "Wire payment form", Status: "Open", Priority: "High", AssigneeID: &user.ID}
	if err := a.db.Create(&task).Error; err != nil {
		t.Fatalf("seed task: %v", err)
	}

	return a, user
}

func TestAskOnce(t *testing.T) {
	a, user := buildTestApp(t)

	buf := new(bytes.Buffer)
	if err := askOnce(context.Background(), buf, a, user, "show my open tasks"); err != nil {
		t.Fatalf("askOnce: %v", err)
	}

	if !strings.Contains(buf.String(), "Wire payment form") {
		t.Errorf("expected answer to mention the task, got: %s", buf.String())
	}
}

func TestPrintAuditTrail(t *testing.T) {
	a, user := buildTestApp(t)

	if err := askOnce(context.Background(), new(bytes.Buffer), a, user, "show open tasks"); err != nil {
		t.Fatalf("askOnce: %v", err)
	}

	buf := new(bytes.Buffer)
	if err := printAuditTrail(buf, a, user, 10); err != nil {
		t.Fatalf("printAuditTrail: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "INTENT") {
		t.Errorf("expected header, got: %s", out)
	}
	if !strings.Contains(out, "show open tasks") {
		t.Errorf("expected audited query, got: %s", out)
	}
}

func TestPrintAuditTrail_Empty(t *testing.T) {
	a, user := buildTestApp(t)

	buf := new(bytes.Buffer)
	if err := printAuditTrail(buf, a, user, 10); err != nil {
		t.Fatalf("printAuditTrail: %v", err)
	}
	if !strings.Contains(buf.String(), "No audit entries.") {
		t.Errorf("expected empty notice, got: %s", buf.String())
	}
}

func TestLoadUserUnknown(t *testing.T) {
	a, _ := buildTestApp(t)

	if _, err := loadUser(a.db, 9999); err == nil {
		t.Fatal("expected error for unknown user")
	}
}

func TestLoadUser(t *testing.T) {
	a, user := buildTestApp(t)

	got, err := loadUser(a.db, user.ID)
	if err != nil {
		t.Fatalf("loadUser: %v", err)
	}
	if got.Name != "Ada" {
		t.Errorf("expected Ada, got %q", got.Name)
	}
}
