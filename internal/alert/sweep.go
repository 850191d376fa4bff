package alert

import (
	"context"
	"log/slog"
	"time"

	"github.com/erazemk/zaloga/internal/model"
	"github.com/erazemk/zaloga/internal/store"
)

// SweepResult summarizes one evaluation pass.
type SweepResult struct {
	At             time.Time      `json:"at"`
	ItemsChecked   int            `json:"items_checked"`
	BorrowsChecked int            `json:"borrows_checked"`
	PastDueMarked  int            `json:"past_due_marked"`
	Raised         map[string]int `json:"raised"`
	Suppressed     int            `json:"suppressed"`
}

func newSweepResult(at time.Time) *SweepResult {
	return &SweepResult{At: at, Raised: map[string]int{}}
}

// TotalRaised returns the number of notifications created in the sweep.
func (r *SweepResult) TotalRaised() int {
	total := 0
	for _, n := range r.Raised {
		total += n
	}
	return total
}

func (r *SweepResult) count(c Candidate, created bool) {
	if created {
		r.Raised[c.Type]++
	} else {
		r.Suppressed++
	}
}

// Sweep transitions overdue borrows to Past Due, then evaluates every item and
// open borrow and raises what the dedup guard admits. A cancelled context
// stops the sweep and returns the partial result with the context error.
func (e *Engine) Sweep(ctx context.Context) (result *SweepResult, err error) {
	start := time.Now()
	at := e.now()
	result = newSweepResult(at)
	defer func() {
		e.metrics().SweepCompleted(time.Since(start), err)
	}()

	marked, err := e.MarkPastDue(ctx)
	if err != nil {
		return result, err
	}
	result.PastDueMarked = marked

	items, err := store.ListItems(ctx, e.DB, store.ItemFilter{})
	if err != nil {
		return result, storageErr("listing items", err)
	}
	cats, err := e.categories(ctx)
	if err != nil {
		return result, err
	}
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		for _, c := range e.Evaluator.EvaluateItem(item, cats[item.Category], at) {
			_, created, err := e.Raise(ctx, c)
			if err != nil {
				return result, err
			}
			result.count(c, created)
		}
		result.ItemsChecked++
	}

	borrows, err := store.ListBorrows(ctx, e.DB, store.BorrowFilter{Open: true})
	if err != nil {
		return result, storageErr("listing borrows", err)
	}
	for _, b := range borrows {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		for _, c := range e.Evaluator.EvaluateBorrow(b, at) {
			_, created, err := e.Raise(ctx, c)
			if err != nil {
				return result, err
			}
			result.count(c, created)
		}
		result.BorrowsChecked++
	}

	if purged, err := store.PurgeRevokedTokens(ctx, e.DB, at); err != nil {
		slog.Warn("purging revoked tokens failed", "error", err)
	} else if purged > 0 {
		slog.Debug("purged revoked tokens", "count", purged)
	}
	if err := store.SetLastSweep(ctx, e.DB, at); err != nil {
		return result, storageErr("recording sweep", err)
	}

	slog.Info("alert sweep finished",
		"items", result.ItemsChecked, "borrows", result.BorrowsChecked,
		"raised", result.TotalRaised(), "suppressed", result.Suppressed,
		"past_due", result.PastDueMarked, "duration", time.Since(start))
	return result, nil
}

// MarkPastDue transitions every Borrowed record whose due date has passed to
// Past Due and returns how many changed. This is the only place borrow status
// changes as a result of time passing.
func (e *Engine) MarkPastDue(ctx context.Context) (int, error) {
	open, err := store.ListBorrows(ctx, e.DB, store.BorrowFilter{Status: model.BorrowStatusBorrowed})
	if err != nil {
		return 0, storageErr("listing borrows", err)
	}

	at := e.now()
	var ids []int64
	for _, b := range open {
		if e.Evaluator.IsPastDue(b, at) {
			ids = append(ids, b.ID)
		}
	}

	changed, err := store.MarkPastDue(ctx, e.DB, ids)
	if err != nil {
		return 0, storageErr("marking borrows past due", err)
	}
	if len(changed) > 0 {
		slog.Info("borrows past due", "count", len(changed), "ids", changed)
		e.metrics().PastDueMarked(len(changed))
	}
	return len(changed), nil
}

// CheckItem evaluates one item right after it changed and raises what the
// dedup guard admits. An unknown item yields no notifications.
func (e *Engine) CheckItem(ctx context.Context, id string) ([]model.Notification, error) {
	item, err := store.GetItem(ctx, e.DB, id)
	if err != nil {
		return nil, storageErr("loading item", err)
	}
	if item == nil {
		return nil, nil
	}
	cat, err := store.GetCategoryByName(ctx, e.DB, item.Category)
	if err != nil {
		return nil, storageErr("loading category", err)
	}

	var raised []model.Notification
	for _, c := range e.Evaluator.EvaluateItem(*item, cat, e.now()) {
		n, created, err := e.Raise(ctx, c)
		if err != nil {
			return raised, err
		}
		if created {
			raised = append(raised, *n)
		}
	}
	return raised, nil
}

func (e *Engine) categories(ctx context.Context) (map[string]*model.Category, error) {
	list, err := store.ListCategories(ctx, e.DB)
	if err != nil {
		return nil, storageErr("listing categories", err)
	}
	m := make(map[string]*model.Category, len(list))
	for i := range list {
		m[list[i].Name] = &list[i]
	}
	return m, nil
}
