// Package alert evaluates inventory and borrow state against alert conditions
// and maintains the notification ledger.
package alert

import (
	"fmt"
	"math"
	"time"

	"github.com/erazemk/zaloga/internal/model"
)

// Clock returns the current time.
type Clock func() time.Time

const day = 24 * time.Hour

// Config controls condition windows and the dedup guard.
type Config struct {
	// DefaultThreshold applies to items whose category has no usable threshold.
	DefaultThreshold int
	// ExpirationWindow is how far ahead an expiration date raises near_expiration.
	ExpirationWindow time.Duration
	// DueWindow is how far ahead a due date raises near_due_date.
	DueWindow time.Duration
	// Cooldown suppresses re-notifying a condition for this long after the
	// previous notification for it was created, even once read. Zero disables.
	Cooldown time.Duration
}

// DefaultConfig returns the standard alert settings.
func DefaultConfig() Config {
	return Config{
		DefaultThreshold: model.DefaultThreshold,
		ExpirationWindow: 30 * day,
		DueWindow:        7 * day,
	}
}

// Candidate is a notification the evaluator proposes. It becomes a ledger
// entry only if the dedup guard lets it through.
type Candidate struct {
	Type    string
	Message string
	Details model.Details
	// UserID addresses the notification to one user; nil broadcasts it.
	UserID *int64
}

// Key returns the dedup key of the candidate. Notifications addressed to
// different users never suppress each other.
func (c Candidate) Key() model.DedupKey {
	return model.KeyOf(c.Details).For(c.UserID)
}

func candidate(msg string, d model.Details) Candidate {
	return Candidate{Type: d.Type(), Message: msg, Details: d}
}

// Evaluator decides which alert conditions hold. It has no side effects.
type Evaluator struct {
	Cfg Config
}

// Threshold returns the low-stock threshold for items in cat.
func (e Evaluator) Threshold(cat *model.Category) int {
	if cat == nil || cat.Threshold < 0 {
		return e.Cfg.DefaultThreshold
	}
	return cat.Threshold
}

// EvaluateItem returns the conditions that hold for item at now. Low stock and
// out of stock are exclusive; near expiration may accompany either.
func (e Evaluator) EvaluateItem(item model.Item, cat *model.Category, now time.Time) []Candidate {
	var out []Candidate
	threshold := e.Threshold(cat)

	switch {
	case item.Quantity <= 0 || item.Status == model.ItemStatusOutOfStock:
		out = append(out, candidate(
			fmt.Sprintf("%s is out of stock", item.Name),
			model.OutOfStockDetails{ItemID: item.ID, ItemName: item.Name, Category: item.Category},
		))
	case item.Quantity <= threshold:
		out = append(out, candidate(
			fmt.Sprintf("%s is running low: %d left (threshold %d)", item.Name, item.Quantity, threshold),
			model.LowStockDetails{
				ItemID:          item.ID,
				ItemName:        item.Name,
				CurrentQuantity: item.Quantity,
				Category:        item.Category,
				Threshold:       threshold,
				UnitsBelow:      max(0, threshold-item.Quantity),
			},
		))
	}

	if item.Expiration != nil {
		exp := *item.Expiration
		if left := exp.Sub(now); left > 0 && left <= e.Cfg.ExpirationWindow {
			n := ceilDays(left)
			out = append(out, candidate(
				fmt.Sprintf("%s expires in %s", item.Name, days(n)),
				model.NearExpirationDetails{
					ItemID:         item.ID,
					ItemName:       item.Name,
					ExpirationDate: exp.Format(model.DateLayout),
					DaysRemaining:  n,
				},
			))
		}
	}
	return out
}

// IsPastDue reports whether an open borrow is past its due date at now. A
// borrow is due by the end of its due day (UTC).
func (e Evaluator) IsPastDue(b model.Borrow, now time.Time) bool {
	return b.Open() && !now.Before(b.DueDate.Add(day))
}

// EvaluateBorrow returns the due-date conditions that hold for b at now.
// It does not change the borrow status.
func (e Evaluator) EvaluateBorrow(b model.Borrow, now time.Time) []Candidate {
	if !b.Open() {
		return nil
	}
	due := b.DueDate.Format(model.DateLayout)

	if e.IsPastDue(b, now) {
		n := int(now.Sub(b.DueDate) / day)
		return []Candidate{candidate(
			fmt.Sprintf("%s borrowed by %s is %s overdue", b.ItemName, b.Borrower, days(n)),
			model.PastDueDetails{
				BorrowID:    b.ID,
				ItemID:      b.ItemID,
				ItemName:    b.ItemName,
				Borrower:    b.Borrower,
				Department:  b.Department,
				DueDate:     due,
				DaysOverdue: n,
			},
		)}
	}

	if left := b.DueDate.Sub(now); left <= e.Cfg.DueWindow {
		n := max(0, ceilDays(left))
		msg := fmt.Sprintf("%s borrowed by %s is due in %s", b.ItemName, b.Borrower, days(n))
		if n == 0 {
			msg = fmt.Sprintf("%s borrowed by %s is due today", b.ItemName, b.Borrower)
		}
		return []Candidate{candidate(
			msg,
			model.NearDueDetails{
				BorrowID:      b.ID,
				ItemID:        b.ItemID,
				ItemName:      b.ItemName,
				Borrower:      b.Borrower,
				Department:    b.Department,
				DueDate:       due,
				DaysRemaining: n,
			},
		)}
	}
	return nil
}

// Restocked returns an item_restocked candidate when item is above the
// threshold of its category.
func (e Evaluator) Restocked(item model.Item, cat *model.Category) (Candidate, bool) {
	threshold := e.Threshold(cat)
	if item.Quantity <= threshold {
		return Candidate{}, false
	}
	return candidate(
		fmt.Sprintf("%s has been restocked: %d in stock", item.Name, item.Quantity),
		model.ItemRestockedDetails{ItemID: item.ID, ItemName: item.Name, Quantity: item.Quantity, Threshold: threshold},
	), true
}

func ceilDays(d time.Duration) int {
	return int(math.Ceil(float64(d) / float64(day)))
}

func days(n int) string {
	if n == 1 {
		return "1 day"
	}
	return fmt.Sprintf("%d days", n)
}
