package store

import (
	"context"
	"testing"
	"time"

	"github.com/erazemk/zaloga/internal/db"
	"github.com/erazemk/zaloga/internal/model"
)

func lowStock(at time.Time, qty int) *model.Notification {
	d := model.LowStockDetails{ItemID: "20240105001", ItemName: "Gloves", CurrentQuantity: qty, Category: "Medical", Threshold: 10, UnitsBelow: 10 - qty}
	return &model.Notification{
		Type:      d.Type(),
		Message:   "Gloves is running low",
		Details:   d,
		DedupKey:  model.KeyOf(d).String(),
		CreatedAt: at,
	}
}

func TestInsertNotificationDedup(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	at := time.Date(2024, 1, 5, 12, 0, 0, 0, time.UTC)

	first := lowStock(at, 8)
	ok, err := InsertNotification(ctx, database, first)
	if err != nil {
		t.Fatalf("InsertNotification: %v", err)
	}
	if !ok || first.ID == 0 {
		t.Fatalf("expected first insert to succeed, got %v id=%d", ok, first.ID)
	}

	// Same key while the first is unread: ignored.
	ok, err = InsertNotification(ctx, database, lowStock(at.Add(time.Hour), 7))
	if err != nil {
		t.Fatalf("second InsertNotification: %v", err)
	}
	if ok {
		t.Error("expected duplicate unread notification to be ignored")
	}

	if _, err := MarkNotificationRead(ctx, database, first.ID); err != nil {
		t.Fatalf("MarkNotificationRead: %v", err)
	}

	// Once read, the condition may notify again.
	ok, _ = InsertNotification(ctx, database, lowStock(at.Add(2*time.Hour), 6))
	if !ok {
		t.Error("expected insert after read to succeed")
	}

	latest, err := LatestNotificationByKey(ctx, database, first.DedupKey)
	if err != nil {
		t.Fatalf("LatestNotificationByKey: %v", err)
	}
	if latest.Read {
		t.Error("expected the unread notification to be returned first")
	}
	d, ok := latest.Details.(model.LowStockDetails)
	if !ok || d.CurrentQuantity != 6 {
		t.Errorf("expected typed details with quantity 6, got %#v", latest.Details)
	}
}

func TestListNotificationsFilters(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	at := time.Date(2024, 1, 5, 12, 0, 0, 0, time.UTC)

	alice, _ := CreateUser(ctx, database, UserInput{Username: "alice", PasswordHash: "h", Role: model.RoleUser, Approved: true}, "admin")
	bob, _ := CreateUser(ctx, database, UserInput{Username: "bob_b", PasswordHash: "h", Role: model.RoleUser, Approved: true}, "admin")

	broadcast := lowStock(at, 8)
	InsertNotification(ctx, database, broadcast)

	mine := &model.Notification{
		Type: model.NotifyGeneral, Message: "Hello Alice",
		Details:  model.GeneralDetails{Topic: "greeting"},
		DedupKey: "general:greeting:alice", CreatedAt: at.Add(time.Minute), UserID: &alice.ID,
	}
	InsertNotification(ctx, database, mine)

	all, _ := ListNotifications(ctx, database, model.NotificationFilter{})
	if len(all) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(all))
	}
	if all[0].ID != mine.ID {
		t.Errorf("expected newest first, got %v", all[0].Message)
	}

	forBob, _ := ListNotifications(ctx, database, model.NotificationFilter{UserID: &bob.ID})
	if len(forBob) != 1 || forBob[0].ID != broadcast.ID {
		t.Errorf("expected bob to see only the broadcast, got %v", forBob)
	}
	forAlice, _ := ListNotifications(ctx, database, model.NotificationFilter{UserID: &alice.ID})
	if len(forAlice) != 2 {
		t.Errorf("expected alice to see 2, got %d", len(forAlice))
	}

	if _, err := ResolveNotification(ctx, database, broadcast.ID, &alice.ID, "ordered", at); err != nil {
		t.Fatalf("ResolveNotification: %v", err)
	}
	open, _ := ListNotifications(ctx, database, model.NotificationFilter{})
	if len(open) != 1 {
		t.Errorf("expected resolved notification to be hidden by default, got %d", len(open))
	}
	withResolved, _ := ListNotifications(ctx, database, model.NotificationFilter{IncludeResolved: true})
	if len(withResolved) != 2 {
		t.Errorf("expected 2 with resolved, got %d", len(withResolved))
	}
}

func TestMarkReadAndCount(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	at := time.Date(2024, 1, 5, 12, 0, 0, 0, time.UTC)

	n := lowStock(at, 8)
	InsertNotification(ctx, database, n)

	count, _ := CountUnreadNotifications(ctx, database, nil)
	if count != 1 {
		t.Errorf("expected 1 unread, got %d", count)
	}

	changed, _ := MarkNotificationRead(ctx, database, n.ID)
	if !changed {
		t.Error("expected first mark read to change the row")
	}
	changed, _ = MarkNotificationRead(ctx, database, n.ID)
	if changed {
		t.Error("expected second mark read to be a no-op")
	}

	InsertNotification(ctx, database, lowStock(at.Add(time.Hour), 7))
	marked, err := MarkAllNotificationsRead(ctx, database, nil)
	if err != nil {
		t.Fatalf("MarkAllNotificationsRead: %v", err)
	}
	if marked != 1 {
		t.Errorf("expected 1 marked, got %d", marked)
	}
	count, _ = CountUnreadNotifications(ctx, database, nil)
	if count != 0 {
		t.Errorf("expected 0 unread, got %d", count)
	}
}

func TestResolveKeepsOriginalResolution(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	at := time.Date(2024, 1, 5, 12, 0, 0, 0, time.UTC)

	n := lowStock(at, 8)
	InsertNotification(ctx, database, n)

	changed, _ := ResolveNotification(ctx, database, n.ID, nil, "first", at.Add(time.Hour))
	if !changed {
		t.Fatal("expected resolve to change the row")
	}
	changed, _ = ResolveNotification(ctx, database, n.ID, nil, "second", at.Add(2*time.Hour))
	if changed {
		t.Error("expected second resolve to be a no-op")
	}

	got, _ := GetNotification(ctx, database, n.ID)
	if !got.Resolved || !got.Read {
		t.Errorf("expected resolved and read, got %+v", got)
	}
	if got.ResolutionNote != "first" {
		t.Errorf("expected original note, got %q", got.ResolutionNote)
	}
	if got.ResolvedAt == nil || !got.ResolvedAt.Equal(at.Add(time.Hour)) {
		t.Errorf("expected original resolved_at, got %v", got.ResolvedAt)
	}
}

func TestResolveNotificationsByKey(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	at := time.Date(2024, 1, 5, 12, 0, 0, 0, time.UTC)

	n := lowStock(at, 8)
	InsertNotification(ctx, database, n)

	resolved, err := ResolveNotificationsByKey(ctx, database, n.DedupKey, nil, "restocked", at)
	if err != nil {
		t.Fatalf("ResolveNotificationsByKey: %v", err)
	}
	if resolved != 1 {
		t.Errorf("expected 1 resolved, got %d", resolved)
	}
}
