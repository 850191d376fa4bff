package alert

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/zaloga/internal/db"
	"github.com/erazemk/zaloga/internal/model"
	"github.com/erazemk/zaloga/internal/store"
)

type fakeRecorder struct {
	mu         sync.Mutex
	raised     map[string]int
	suppressed map[string]int
	pastDue    int
	sweeps     int
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{raised: map[string]int{}, suppressed: map[string]int{}}
}

func (r *fakeRecorder) NotificationRaised(typ string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.raised[typ]++
}

func (r *fakeRecorder) NotificationSuppressed(typ string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.suppressed[typ]++
}

func (r *fakeRecorder) PastDueMarked(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pastDue += n
}

func (r *fakeRecorder) SweepCompleted(time.Duration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sweeps++
}

// testEngine returns an engine over a fresh database whose clock reads *now.
func testEngine(t *testing.T) (*Engine, *time.Time, *fakeRecorder) {
	t.Helper()
	clock := evalNow
	rec := newFakeRecorder()
	e := New(db.NewTestDB(t), DefaultConfig())
	e.Now = func() time.Time { return clock }
	e.Metrics = rec
	return e, &clock, rec
}

func lowStockCandidate(qty int) Candidate {
	return Candidate{
		Type:    model.NotifyLowStock,
		Message: "Gloves is running low",
		Details: model.LowStockDetails{ItemID: "i1", ItemName: "Gloves", CurrentQuantity: qty, Category: "Medical", Threshold: 10, UnitsBelow: 10 - qty},
	}
}

func TestRaiseDedup(t *testing.T) {
	e, _, rec := testEngine(t)
	ctx := context.Background()

	first, created, err := e.Raise(ctx, lowStockCandidate(8))
	require.NoError(t, err)
	require.True(t, created)
	assert.False(t, first.Read)
	assert.True(t, first.CreatedAt.Equal(evalNow))

	second, created, err := e.Raise(ctx, lowStockCandidate(8))
	require.NoError(t, err)
	assert.False(t, created, "identical candidate must be suppressed while unread")
	assert.Equal(t, first.ID, second.ID)

	// Volatile fields do not defeat the guard.
	_, created, err = e.Raise(ctx, lowStockCandidate(7))
	require.NoError(t, err)
	assert.False(t, created)

	require.NoError(t, e.MarkRead(ctx, first.ID))

	third, created, err := e.Raise(ctx, lowStockCandidate(6))
	require.NoError(t, err)
	assert.True(t, created, "a read notification no longer blocks a repeat")
	assert.NotEqual(t, first.ID, third.ID)

	assert.Equal(t, 2, rec.raised[model.NotifyLowStock])
	assert.Equal(t, 2, rec.suppressed[model.NotifyLowStock])
}

func TestShouldCreate(t *testing.T) {
	e, _, _ := testEngine(t)
	ctx := context.Background()

	ok, err := e.ShouldCreate(ctx, lowStockCandidate(8))
	require.NoError(t, err)
	assert.True(t, ok)

	_, _, err = e.Raise(ctx, lowStockCandidate(8))
	require.NoError(t, err)

	ok, err = e.ShouldCreate(ctx, lowStockCandidate(8))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRaiseCooldown(t *testing.T) {
	e, clock, _ := testEngine(t)
	e.Evaluator.Cfg.Cooldown = time.Hour
	ctx := context.Background()

	first, _, err := e.Raise(ctx, lowStockCandidate(8))
	require.NoError(t, err)
	require.NoError(t, e.MarkRead(ctx, first.ID))

	*clock = evalNow.Add(30 * time.Minute)
	_, created, err := e.Raise(ctx, lowStockCandidate(8))
	require.NoError(t, err)
	assert.False(t, created, "within cool-down")

	*clock = evalNow.Add(2 * time.Hour)
	_, created, err = e.Raise(ctx, lowStockCandidate(8))
	require.NoError(t, err)
	assert.True(t, created, "after cool-down")
}

func TestAppendRespectsUnreadUniqueness(t *testing.T) {
	e, _, _ := testEngine(t)
	ctx := context.Background()

	_, created, err := e.Append(ctx, lowStockCandidate(8))
	require.NoError(t, err)
	require.True(t, created)

	n, created, err := e.Append(ctx, lowStockCandidate(8))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Nil(t, n)

	list, err := e.List(ctx, model.NotificationFilter{})
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestRaiseValidation(t *testing.T) {
	e, _, _ := testEngine(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		c     Candidate
		field string
	}{
		{"missing type", Candidate{Message: "m", Details: model.GeneralDetails{}}, "type"},
		{"missing message", Candidate{Type: model.NotifyGeneral, Details: model.GeneralDetails{}}, "message"},
		{"missing details", Candidate{Type: model.NotifyLowStock, Message: "m"}, "details"},
		{"mismatched details", Candidate{Type: model.NotifyPastDue, Message: "m", Details: model.LowStockDetails{ItemID: "1", ItemName: "x"}}, "details"},
		{"incomplete details", Candidate{Type: model.NotifyLowStock, Message: "m", Details: model.LowStockDetails{ItemName: "x"}}, "details"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := e.Raise(ctx, tt.c)
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestMarkRead(t *testing.T) {
	e, _, _ := testEngine(t)
	ctx := context.Background()

	assert.ErrorIs(t, e.MarkRead(ctx, 404), ErrNotFound)

	n, _, err := e.Raise(ctx, lowStockCandidate(8))
	require.NoError(t, err)
	require.NoError(t, e.MarkRead(ctx, n.ID))
	require.NoError(t, e.MarkRead(ctx, n.ID), "marking read twice is a no-op")

	got, err := e.Get(ctx, n.ID)
	require.NoError(t, err)
	assert.True(t, got.Read)
}

func TestUnreadCountScopedToUser(t *testing.T) {
	e, _, _ := testEngine(t)
	ctx := context.Background()

	alice, err := store.CreateUser(ctx, e.DB, store.UserInput{Username: "alice", PasswordHash: "h", Role: model.RoleUser, Approved: true}, "admin")
	require.NoError(t, err)
	bob, err := store.CreateUser(ctx, e.DB, store.UserInput{Username: "bob_b", PasswordHash: "h", Role: model.RoleUser, Approved: true}, "admin")
	require.NoError(t, err)

	_, _, err = e.Raise(ctx, lowStockCandidate(8))
	require.NoError(t, err)
	_, _, err = e.Raise(ctx, Candidate{
		Type: model.NotifyGeneral, Message: "for alice", UserID: &alice.ID,
		Details: model.GeneralDetails{Topic: "alice"},
	})
	require.NoError(t, err)

	n, err := e.UnreadCount(ctx, &alice.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	n, err = e.UnreadCount(ctx, &bob.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	marked, err := e.MarkAllRead(ctx, &bob.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, marked)

	n, err = e.UnreadCount(ctx, &alice.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "alice's own notification stays unread")
}

func TestResolve(t *testing.T) {
	e, clock, _ := testEngine(t)
	ctx := context.Background()

	_, err := e.Resolve(ctx, 404, nil, "")
	require.ErrorIs(t, err, ErrNotFound)

	n, _, err := e.Raise(ctx, Candidate{Type: model.NotifyGeneral, Message: "hello", Details: model.GeneralDetails{}})
	require.NoError(t, err)

	resolved, err := e.Resolve(ctx, n.ID, nil, "done")
	require.NoError(t, err)
	assert.True(t, resolved.Resolved)
	assert.True(t, resolved.Read, "resolve implies read")
	assert.Equal(t, "done", resolved.ResolutionNote)
	require.NotNil(t, resolved.ResolvedAt)
	assert.True(t, resolved.ResolvedAt.Equal(evalNow))

	*clock = evalNow.Add(time.Hour)
	again, err := e.Resolve(ctx, n.ID, nil, "again")
	require.NoError(t, err, "resolving twice is not an error")
	assert.Equal(t, "done", again.ResolutionNote)
	assert.True(t, again.ResolvedAt.Equal(evalNow))
}

func TestResolveLowStockRestock(t *testing.T) {
	tests := []struct {
		name      string
		restockTo int
		restocked bool
	}{
		{"above threshold", 25, true},
		{"still at or below threshold", 18, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, _, _ := testEngine(t)
			ctx := context.Background()

			threshold := 20
			_, err := store.CreateCategory(ctx, e.DB, "Medical", &threshold, "admin")
			require.NoError(t, err)
			item, err := store.CreateItem(ctx, e.DB, store.ItemInput{Name: "Gloves", Category: "Medical", Quantity: 15}, "admin")
			require.NoError(t, err)

			raised, err := e.CheckItem(ctx, item.ID)
			require.NoError(t, err)
			require.Len(t, raised, 1)
			require.Equal(t, model.NotifyLowStock, raised[0].Type)

			_, err = store.AdjustQuantity(ctx, e.DB, item.ID, tt.restockTo-item.Quantity, "admin")
			require.NoError(t, err)

			_, err = e.Resolve(ctx, raised[0].ID, nil, "ordered more")
			require.NoError(t, err)

			list, err := e.List(ctx, model.NotificationFilter{Type: model.NotifyItemRestocked})
			require.NoError(t, err)
			if !tt.restocked {
				assert.Empty(t, list)
				return
			}
			require.Len(t, list, 1)
			d := list[0].Details.(model.ItemRestockedDetails)
			assert.Equal(t, tt.restockTo, d.Quantity)
			assert.Equal(t, 20, d.Threshold)
		})
	}
}

func TestResolveSurvivesRestockFailure(t *testing.T) {
	e, _, _ := testEngine(t)
	ctx := context.Background()

	n, _, err := e.Raise(ctx, lowStockCandidate(8))
	require.NoError(t, err)

	// Break the item lookup used by the restock check.
	_, err = e.DB.ExecContext(ctx, `DROP TABLE categories`)
	require.NoError(t, err)

	resolved, err := e.Resolve(ctx, n.ID, nil, "")
	require.NoError(t, err)
	assert.True(t, resolved.Resolved)
}

func TestResolveCondition(t *testing.T) {
	e, _, _ := testEngine(t)
	ctx := context.Background()

	u, err := store.CreateUser(ctx, e.DB, store.UserInput{Username: "newbie", PasswordHash: "h", Role: model.RoleUser}, "")
	require.NoError(t, err)

	d := model.UserApprovalDetails{UserID: u.ID, Username: u.Username, Role: u.Role}
	_, created, err := e.Raise(ctx, Candidate{Type: d.Type(), Message: "newbie awaits approval", Details: d})
	require.NoError(t, err)
	require.True(t, created)

	n, err := e.ResolveCondition(ctx, d, nil, "approved")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	open, err := e.List(ctx, model.NotificationFilter{})
	require.NoError(t, err)
	assert.Empty(t, open)
}

func TestRaiseDedupPerRecipient(t *testing.T) {
	e, _, _ := testEngine(t)
	ctx := context.Background()

	alice, err := store.CreateUser(ctx, e.DB, store.UserInput{Username: "alice", PasswordHash: "h", Role: model.RoleUser}, "")
	require.NoError(t, err)
	bob, err := store.CreateUser(ctx, e.DB, store.UserInput{Username: "bob", PasswordHash: "h", Role: model.RoleUser}, "")
	require.NoError(t, err)

	reminder := func(uid *int64) Candidate {
		return Candidate{
			Type:    model.NotifyGeneral,
			Message: "Return your items",
			Details: model.GeneralDetails{Topic: "Return your items"},
			UserID:  uid,
		}
	}

	first, created, err := e.Raise(ctx, reminder(&alice.ID))
	require.NoError(t, err)
	require.True(t, created)

	second, created, err := e.Raise(ctx, reminder(&bob.ID))
	require.NoError(t, err)
	assert.True(t, created, "an unread notification for alice must not suppress bob's")
	require.NotNil(t, second.UserID)
	assert.Equal(t, bob.ID, *second.UserID)
	assert.NotEqual(t, first.ID, second.ID)

	_, created, err = e.Raise(ctx, reminder(&bob.ID))
	require.NoError(t, err)
	assert.False(t, created, "a repeat for the same recipient is still suppressed")

	broadcast, created, err := e.Raise(ctx, reminder(nil))
	require.NoError(t, err)
	assert.True(t, created)
	assert.Nil(t, broadcast.UserID)

	forBob, err := e.List(ctx, model.NotificationFilter{UserID: &bob.ID})
	require.NoError(t, err)
	ids := make([]int64, 0, len(forBob))
	for _, n := range forBob {
		ids = append(ids, n.ID)
	}
	assert.ElementsMatch(t, []int64{second.ID, broadcast.ID}, ids)
}

func TestResolveConditionIncludesAddressedCopies(t *testing.T) {
	e, _, _ := testEngine(t)
	ctx := context.Background()

	u, err := store.CreateUser(ctx, e.DB, store.UserInput{Username: "keeper", PasswordHash: "h", Role: model.RoleManager}, "")
	require.NoError(t, err)

	c := lowStockCandidate(8)
	_, created, err := e.Raise(ctx, c)
	require.NoError(t, err)
	require.True(t, created)

	c.UserID = &u.ID
	_, created, err = e.Raise(ctx, c)
	require.NoError(t, err)
	require.True(t, created)

	n, err := e.ResolveCondition(ctx, c.Details, nil, "restocked")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}

func TestStorageErrorWrapsCause(t *testing.T) {
	e, _, _ := testEngine(t)
	require.NoError(t, e.DB.Close())

	_, err := e.List(context.Background(), model.NotificationFilter{})
	var se *StorageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "listing notifications", se.Op)
	assert.NotNil(t, errors.Unwrap(err))
}
