package session

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/planhub/concierge/internal/db"
	"github.com/planhub/concierge/internal/models"
	"gorm.io/gorm"
)

func openSessionTestDB(t *testing.T) *gorm.DB {
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

// clock is a settable test clock.
type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func newTestManager(t *testing.T, gdb *gorm.DB, c *clock) *Manager {
	t.Helper()
	m, err := NewManager(ManagerOpts{
		DB:           gdb,
		TTL:          30 * time.Minute,
		HistoryLimit: 3,
		Clock:        c.Now,
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return m
}

var testUser = models.User{ID: 1, ClientID: 1, Name: "Ada"}

func TestGetOrCreate_NewSession(t *testing.T) {
	c := &clock{now: time.Date(2024, 1, 17, 12, 0, 0, 0, time.UTC)}
	m := newTestManager(t, openSessionTestDB(t), c)

	s, err := m.GetOrCreate(context.Background(), testUser, "")
	if err != nil {
		t.Fatalf("get or create: %v", err)
	}
	if s.ID == "" {
		t.Error("expected a generated session id")
	}
	if s.UserID != testUser.ID || s.ClientID != testUser.ClientID {
		t.Errorf("session owner = %d/%d, want %d/%d", s.UserID, s.ClientID, testUser.ID, testUser.ClientID)
	}
	if !s.ExpiresAt.Equal(c.now.Add(30 * time.Minute)) {
		t.Errorf("ExpiresAt = %v, want %v", s.ExpiresAt, c.now.Add(30*time.Minute))
	}
}

func TestGetOrCreate_ExtendsTTL(t *testing.T) {
	c := &clock{now: time.Date(2024, 1, 17, 12, 0, 0, 0, time.UTC)}
	m := newTestManager(t, openSessionTestDB(t), c)
	ctx := context.Background()

	s, err := m.GetOrCreate(ctx, testUser, "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	c.now = c.now.Add(10 * time.Minute)
	again, err := m.GetOrCreate(ctx, testUser, s.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if again.ID != s.ID {
		t.Fatalf("got a new session %s, want %s", again.ID, s.ID)
	}
	if !again.ExpiresAt.Equal(c.now.Add(30 * time.Minute)) {
		t.Errorf("ExpiresAt = %v, want extended to %v", again.ExpiresAt, c.now.Add(30*time.Minute))
	}
}

func TestGetOrCreate_ExpiredYieldsFresh(t *testing.T) {
	c := &clock{now: time.Date(2024, 1, 17, 12, 0, 0, 0, time.UTC)}
	m := newTestManager(t, openSessionTestDB(t), c)
	ctx := context.Background()

	s, err := m.GetOrCreate(ctx, testUser, "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	c.now = c.now.Add(31 * time.Minute)
	fresh, err := m.GetOrCreate(ctx, testUser, s.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if fresh.ID == s.ID {
		t.Error("expired session id was reused")
	}
}

func TestGetOrCreate_OtherUsersSessionYieldsFresh(t *testing.T) {
	c := &clock{now: time.Date(2024, 1, 17, 12, 0, 0, 0, time.UTC)}
	m := newTestManager(t, openSessionTestDB(t), c)
	ctx := context.Background()

	s, err := m.GetOrCreate(ctx, testUser, "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	other := models.User{ID: 2, ClientID: 2, Name: "Bob"}
	got, err := m.GetOrCreate(ctx, other, s.ID)
	if err != nil {
		t.Fatalf("get or create: %v", err)
	}
	if got.ID == s.ID {
		t.Error("another user's session id was honored")
	}
}

func TestRecordMentions_BoundedAndDeduped(t *testing.T) {
	c := &clock{now: time.Date(2024, 1, 17, 12, 0, 0, 0, time.UTC)}
	m := newTestManager(t, openSessionTestDB(t), c)
	ctx := context.Background()

	s, err := m.GetOrCreate(ctx, testUser, "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	for i := 1; i <= 12; i++ {
		err := m.RecordMentions(ctx, s, []Mention{
			{Kind: "task", ID: uint(i), Code: fmt.Sprintf("TSK-%d", i)},
		})
		if err != nil {
			t.Fatalf("record mention %d: %v", i, err)
		}
	}
	// Re-mentioning an old entity should not grow the list.
	if err := m.RecordMentions(ctx, s, []Mention{{Kind: "task", ID: 12, Code: "TSK-12"}}); err != nil {
		t.Fatalf("re-record: %v", err)
	}

	got := m.Mentions(s)
	if len(got) != maxMentioned {
		t.Fatalf("kept %d mentions, want %d", len(got), maxMentioned)
	}
	if got[len(got)-1].Code != "TSK-12" {
		t.Errorf("most recent mention = %s, want TSK-12", got[len(got)-1].Code)
	}
	if got[0].Code != "TSK-3" {
		t.Errorf("oldest kept mention = %s, want TSK-3", got[0].Code)
	}
}

func TestMentions_CorruptPayloadIsEmpty(t *testing.T) {
	c := &clock{now: time.Date(2024, 1, 17, 12, 0, 0, 0, time.UTC)}
	m := newTestManager(t, openSessionTestDB(t), c)

	s := &models.ChatSession{ID: "x", Mentioned: "{not json"}
	if got := m.Mentions(s); got != nil {
		t.Errorf("mentions = %+v, want nil", got)
	}
}

func TestAppendMessage_SequencesAndHistoryBound(t *testing.T) {
	c := &clock{now: time.Date(2024, 1, 17, 12, 0, 0, 0, time.UTC)}
	m := newTestManager(t, openSessionTestDB(t), c)
	ctx := context.Background()

	s, err := m.GetOrCreate(ctx, testUser, "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	for i := 1; i <= 5; i++ {
		role := "user"
		if i%2 == 0 {
			role = "assistant"
		}
		if err := m.AppendMessage(ctx, s, role, fmt.Sprintf("turn %d", i)); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	// HistoryLimit is 3: expect the last three turns in order.
	got, err := m.History(ctx, s)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("history length = %d, want 3", len(got))
	}
	for i, want := range []string{"turn 3", "turn 4", "turn 5"} {
		if got[i].Content != want {
			t.Errorf("history[%d] = %q, want %q", i, got[i].Content, want)
		}
	}
	if got[0].Sequence != 3 || got[2].Sequence != 5 {
		t.Errorf("sequences = %d..%d, want 3..5", got[0].Sequence, got[2].Sequence)
	}
}

func TestSweep_ExpiresOnlyStaleSessions(t *testing.T) {
	c := &clock{now: time.Date(2024, 1, 17, 12, 0, 0, 0, time.UTC)}
	gdb := openSessionTestDB(t)
	m := newTestManager(t, gdb, c)
	ctx := context.Background()

	stale, err := m.GetOrCreate(ctx, testUser, "")
	if err != nil {
		t.Fatalf("create stale: %v", err)
	}
	c.now = c.now.Add(20 * time.Minute)
	live, err := m.GetOrCreate(ctx, testUser, "")
	if err != nil {
		t.Fatalf("create live: %v", err)
	}

	c.now = c.now.Add(15 * time.Minute) // stale is past TTL, live is not
	n, err := m.Sweep(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if n != 1 {
		t.Fatalf("swept %d sessions, want 1", n)
	}

	// Fresh destinations: gorm folds a populated primary key into the
	// query conditions.
	var gotStale models.ChatSession
	if err := gdb.First(&gotStale, "id = ?", stale.ID).Error; err != nil {
		t.Fatalf("reload stale: %v", err)
	}
	if gotStale.Status != "expired" {
		t.Errorf("stale status = %q, want expired", gotStale.Status)
	}
	var gotLive models.ChatSession
	if err := gdb.First(&gotLive, "id = ?", live.ID).Error; err != nil {
		t.Fatalf("reload live: %v", err)
	}
	if gotLive.Status != "active" {
		t.Errorf("live status = %q, want active", gotLive.Status)
	}
}

func TestDelete_RemovesTranscript(t *testing.T) {
	c := &clock{now: time.Date(2024, 1, 17, 12, 0, 0, 0, time.UTC)}
	gdb := openSessionTestDB(t)
	m := newTestManager(t, gdb, c)
	ctx := context.Background()

	s, err := m.GetOrCreate(ctx, testUser, "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := m.AppendMessage(ctx, s, "user", "hello"); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := m.Delete(ctx, s.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	var count int64
	if err := gdb.Model(&models.ChatMessage{}).Where("session_id = ?", s.ID).Count(&count).Error; err != nil {
		t.Fatalf("count messages: %v", err)
	}
	if count != 0 {
		t.Errorf("messages remaining = %d, want 0", count)
	}
}

func TestNextCronDuration(t *testing.T) {
	now := time.Date(2024, 1, 17, 12, 2, 0, 0, time.UTC)
	if d := nextCronDuration("*/5 * * * *", now); d != 3*time.Minute {
		t.Errorf("next */5 from 12:02 = %v, want 3m", d)
	}
	if d := nextCronDuration("not a cron", now); d != 0 {
		t.Errorf("invalid expression = %v, want 0", d)
	}
}
