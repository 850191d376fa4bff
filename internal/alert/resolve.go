package alert

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/erazemk/zaloga/internal/model"
	"github.com/erazemk/zaloga/internal/store"
)

// Resolve marks a notification resolved (and read) by the given user with an
// optional note. Resolving an already resolved notification returns it
// unchanged. Resolving a low_stock notification also checks whether the item
// has been restocked; failures of that check are logged, never returned.
func (e *Engine) Resolve(ctx context.Context, id int64, by *int64, note string) (*model.Notification, error) {
	changed, err := store.ResolveNotification(ctx, e.DB, id, by, note, e.now())
	if err != nil {
		return nil, storageErr("resolving notification", err)
	}

	n, err := e.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !changed {
		return n, nil
	}

	if n.Type == model.NotifyLowStock {
		if err := e.checkRestocked(ctx, n); err != nil {
			slog.Warn("restock check failed", "notification", n.ID, "error", err)
		}
	}
	return n, nil
}

// checkRestocked raises item_restocked when the item named by a resolved
// low_stock notification is now above its category threshold.
func (e *Engine) checkRestocked(ctx context.Context, n *model.Notification) error {
	d, ok := n.Details.(model.LowStockDetails)
	if !ok {
		return fmt.Errorf("unexpected details %T for low_stock", n.Details)
	}

	item, err := store.GetItem(ctx, e.DB, d.ItemID)
	if err != nil {
		return storageErr("loading item", err)
	}
	if item == nil {
		slog.Debug("restock check skipped, item gone", "item", d.ItemID)
		return nil
	}
	cat, err := store.GetCategoryByName(ctx, e.DB, item.Category)
	if err != nil {
		return storageErr("loading category", err)
	}

	c, ok := e.Evaluator.Restocked(*item, cat)
	if !ok {
		return nil
	}
	if _, _, err := e.Raise(ctx, c); err != nil {
		return err
	}
	slog.Info("item restocked", "item", item.ID, "quantity", item.Quantity)
	return nil
}

// ResolveCondition resolves every open notification raised for the same
// condition as d, e.g. a user_approval once the user has been approved. Both
// the broadcast and any copies addressed to single users are resolved.
func (e *Engine) ResolveCondition(ctx context.Context, d model.Details, by *int64, note string) (int64, error) {
	n, err := store.ResolveNotificationsByKey(ctx, e.DB, model.KeyOf(d).Condition().String(), by, note, e.now())
	return n, storageErr("resolving notifications", err)
}
