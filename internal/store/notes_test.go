package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/erazemk/zaloga/internal/db"
	"github.com/erazemk/zaloga/internal/model"
)

func TestNotesCRUD(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	alice, _ := CreateUser(ctx, database, UserInput{Username: "alice", PasswordHash: "h", Role: model.RoleUser, Approved: true}, "admin")
	bob, _ := CreateUser(ctx, database, UserInput{Username: "bob_b", PasswordHash: "h", Role: model.RoleUser, Approved: true}, "admin")

	note, err := CreateNote(ctx, database, alice.ID, "Order more gloves", model.PriorityHigh, "alice")
	if err != nil {
		t.Fatalf("CreateNote: %v", err)
	}

	if err := UpdateNote(ctx, database, note.ID, bob.ID, "hijack", model.PriorityLow, "bob_b"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound editing another user's note, got %v", err)
	}
	if err := UpdateNote(ctx, database, note.ID, alice.ID, "Order more nitrile gloves", model.PriorityMedium, "alice"); err != nil {
		t.Fatalf("UpdateNote: %v", err)
	}

	got, _ := GetNote(ctx, database, note.ID)
	if got.Content != "Order more nitrile gloves" || got.Priority != model.PriorityMedium {
		t.Errorf("unexpected note after update: %+v", got)
	}

	if err := DeleteNote(ctx, database, note.ID, bob.ID, "bob_b"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound deleting another user's note, got %v", err)
	}
	if err := DeleteNote(ctx, database, note.ID, alice.ID, "alice"); err != nil {
		t.Fatalf("DeleteNote: %v", err)
	}
	notes, _ := ListNotes(ctx, database, alice.ID, SortNewest)
	if len(notes) != 0 {
		t.Errorf("expected no notes, got %d", len(notes))
	}
}

func TestListNotesOrdering(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	u, _ := CreateUser(ctx, database, UserInput{Username: "alice", PasswordHash: "h", Role: model.RoleUser, Approved: true}, "admin")
	base := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)

	for i, p := range []string{model.PriorityLow, model.PriorityHigh, model.PriorityMedium} {
		fixClock(t, base.Add(time.Duration(i)*time.Hour))
		CreateNote(ctx, database, u.ID, p+" note", p, "alice")
	}

	priorities := func(sort string) []string {
		notes, err := ListNotes(ctx, database, u.ID, sort)
		if err != nil {
			t.Fatalf("ListNotes(%s): %v", sort, err)
		}
		var out []string
		for _, n := range notes {
			out = append(out, n.Priority)
		}
		return out
	}

	tests := []struct {
		sort string
		want []string
	}{
		{SortNewest, []string{"medium", "high", "low"}},
		{SortOldest, []string{"low", "high", "medium"}},
		{SortPriority, []string{"high", "medium", "low"}},
	}
	for _, tt := range tests {
		got := priorities(tt.sort)
		if len(got) != len(tt.want) {
			t.Fatalf("%s: expected %v, got %v", tt.sort, tt.want, got)
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("%s: expected %v, got %v", tt.sort, tt.want, got)
				break
			}
		}
	}
}
