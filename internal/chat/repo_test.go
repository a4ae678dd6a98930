package chat

import (
	"context"
	"testing"
	"time"
)

func TestMessagesRoundTripInOrder(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepo(db)
	ctx := context.Background()

	sid := "01HTESTSESSION000000000000"
	contents := []struct {
		role    string
		content string
	}{
		{"user", "hi"},
		{"ai", "hello, how are you feeling today?"},
		{"user", "not great"},
		{"ai", "I'm sorry to hear that."},
	}
	for _, c := range contents {
		if err := repo.InsertMessage(ctx, &Message{SessionID: sid, Role: c.role, Content: c.content}); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	window, err := repo.RecentWindow(ctx, sid, 3)
	if err != nil {
		t.Fatalf("recent window: %v", err)
	}
	if len(window) != 3 {
		t.Fatalf("window size = %d, want 3", len(window))
	}
	// trailing three, oldest first
	want := []string{"hello, how are you feeling today?", "not great", "I'm sorry to hear that."}
	for i, w := range want {
		if window[i].Content != w {
			t.Fatalf("window[%d] = %q, want %q", i, window[i].Content, w)
		}
	}

	// paged listing walks backwards from the newest
	page, err := repo.ListMessages(ctx, sid, 2, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page) != 2 || page[0].Content != "I'm sorry to hear that." {
		t.Fatalf("first page = %+v", page)
	}
	older, err := repo.ListMessages(ctx, sid, 10, page[len(page)-1].ID)
	if err != nil {
		t.Fatalf("list before: %v", err)
	}
	if len(older) != 2 || older[0].Content != "hello, how are you feeling today?" {
		t.Fatalf("older page = %+v", older)
	}
}

func TestCreateEscalationIfAbsent(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepo(db)
	ctx := context.Background()

	sid := "01HTESTSESSION000000000001"
	first := &EscalationRecord{
		ID:          "01HESCALATION0000000000001",
		SessionID:   sid,
		Reason:      ReasonUserRequest,
		Status:      EscalationPending,
		TriggeredAt: time.Now().UTC(),
	}
	rec, created, err := repo.CreateEscalationIfAbsent(ctx, first)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !created || rec.ID != first.ID {
		t.Fatalf("created=%v rec=%+v", created, rec)
	}

	second := &EscalationRecord{
		ID:          "01HESCALATION0000000000002",
		SessionID:   sid,
		Reason:      ReasonAISignal,
		Status:      EscalationPending,
		TriggeredAt: time.Now().UTC(),
	}
	rec, created, err = repo.CreateEscalationIfAbsent(ctx, second)
	if err != nil {
		t.Fatalf("second create: %v", err)
	}
	if created {
		t.Fatal("second create reported created=true")
	}
	if rec.ID != first.ID || rec.Reason != ReasonUserRequest {
		t.Fatalf("loser got %+v, want the winner's record", rec)
	}
}

func TestMarkEscalationGuardsTerminalStates(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepo(db)
	ctx := context.Background()

	rec := &EscalationRecord{
		ID:          "01HESCALATION0000000000003",
		SessionID:   "01HTESTSESSION000000000002",
		Reason:      ReasonEmotionalDistress,
		Status:      EscalationPending,
		TriggeredAt: time.Now().UTC(),
	}
	if _, _, err := repo.CreateEscalationIfAbsent(ctx, rec); err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := repo.MarkEscalationDeclined(ctx, rec.ID); err != nil {
		t.Fatalf("decline: %v", err)
	}
	// a late accept must not flip the terminal state
	if err := repo.MarkEscalationAccepted(ctx, rec.ID, "appt-x"); err != nil {
		t.Fatalf("accept after decline: %v", err)
	}

	got, err := repo.GetEscalationBySession(ctx, rec.SessionID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != EscalationDeclined || got.AppointmentID != nil {
		t.Fatalf("record = %+v, want declined with no appointment", got)
	}
}
