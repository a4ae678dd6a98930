package booking

import (
	"context"
	"fmt"
	"testing"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(gormsqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&Appointment{}, &TherapistNote{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func TestBookIsIdempotentPerSession(t *testing.T) {
	svc := NewService(openTestDB(t))
	ctx := context.Background()

	first, err := svc.Book(ctx, "sess-1", "visitor-1")
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	if first.Status != StatusScheduled {
		t.Fatalf("status = %s, want scheduled", first.Status)
	}
	if !first.StartTime.After(first.CreatedAt) {
		t.Fatal("start time not in the future")
	}

	second, err := svc.Book(ctx, "sess-1", "visitor-1")
	if err != nil {
		t.Fatalf("rebook: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("rebooking created a second appointment: %s vs %s", second.ID, first.ID)
	}

	other, err := svc.Book(ctx, "sess-2", "visitor-1")
	if err != nil {
		t.Fatalf("book other session: %v", err)
	}
	if other.ID == first.ID {
		t.Fatal("distinct sessions shared an appointment")
	}
}

func TestNotesRoundTrip(t *testing.T) {
	svc := NewService(openTestDB(t))
	ctx := context.Background()

	appt, err := svc.Book(ctx, "sess-1", "visitor-1")
	if err != nil {
		t.Fatalf("book: %v", err)
	}

	if _, err := svc.AddNote(ctx, appt.ID, "first contact, anxious but engaged"); err != nil {
		t.Fatalf("add note: %v", err)
	}
	if _, err := svc.AddNote(ctx, appt.ID, "follow up on sleep"); err != nil {
		t.Fatalf("add note: %v", err)
	}

	notes, err := svc.NotesForAppointment(ctx, appt.ID)
	if err != nil {
		t.Fatalf("list notes: %v", err)
	}
	if len(notes) != 2 {
		t.Fatalf("got %d notes, want 2", len(notes))
	}
	seen := map[string]bool{}
	for _, n := range notes {
		seen[n.Note] = true
	}
	if !seen["first contact, anxious but engaged"] || !seen["follow up on sleep"] {
		t.Fatalf("notes = %+v", notes)
	}
}
