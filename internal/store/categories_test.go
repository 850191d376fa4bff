package store

import (
	"context"
	"errors"
	"testing"

	"github.com/erazemk/zaloga/internal/db"
	"github.com/erazemk/zaloga/internal/model"
)

func TestCreateCategoryDefaultThreshold(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	cat, err := CreateCategory(ctx, database, "Medical", nil, "admin")
	if err != nil {
		t.Fatalf("CreateCategory: %v", err)
	}
	if cat.Threshold != model.DefaultThreshold {
		t.Errorf("expected threshold %d, got %d", model.DefaultThreshold, cat.Threshold)
	}

	twenty := 20
	tools, _ := CreateCategory(ctx, database, "Tools", &twenty, "admin")
	if tools.Threshold != 20 {
		t.Errorf("expected threshold 20, got %d", tools.Threshold)
	}

	if _, err := CreateCategory(ctx, database, "Medical", nil, "admin"); err == nil {
		t.Error("expected error for duplicate category name")
	}
}

func TestSetCategoryThreshold(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	cat, _ := CreateCategory(ctx, database, "Medical", nil, "admin")
	CreateItem(ctx, database, ItemInput{Name: "Gloves", Category: "Medical", Quantity: 15}, "admin")

	if err := SetCategoryThreshold(ctx, database, cat.ID, 20, "admin"); err != nil {
		t.Fatalf("SetCategoryThreshold: %v", err)
	}

	items, _ := ListItems(ctx, database, ItemFilter{Category: "Medical"})
	if len(items) != 1 || items[0].Threshold != 20 {
		t.Errorf("expected item to see threshold 20, got %v", items)
	}

	if err := SetCategoryThreshold(ctx, database, 999, 5, "admin"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRenameCategoryCascadesToItems(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	item, _ := CreateItem(ctx, database, ItemInput{Name: "Gloves", Category: "Medical", Quantity: 15}, "admin")
	cat, _ := GetCategoryByName(ctx, database, "Medical")

	if err := UpdateCategory(ctx, database, cat.ID, "Health", 12, "admin"); err != nil {
		t.Fatalf("UpdateCategory: %v", err)
	}

	got, _ := GetItem(ctx, database, item.ID)
	if got.Category != "Health" || got.Threshold != 12 {
		t.Errorf("expected Health/12, got %s/%d", got.Category, got.Threshold)
	}
}

func TestDeleteCategoryInUse(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	item, _ := CreateItem(ctx, database, ItemInput{Name: "Gloves", Category: "Medical", Quantity: 15}, "admin")
	cat, _ := GetCategoryByName(ctx, database, "Medical")
	if cat.ItemCount != 1 {
		t.Errorf("expected item count 1, got %d", cat.ItemCount)
	}

	if err := DeleteCategory(ctx, database, cat.ID, "admin"); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	DeleteItem(ctx, database, item.ID, "admin")
	if err := DeleteCategory(ctx, database, cat.ID, "admin"); err != nil {
		t.Fatalf("DeleteCategory: %v", err)
	}

	cats, _ := ListCategories(ctx, database)
	if len(cats) != 0 {
		t.Errorf("expected no categories, got %v", cats)
	}
}
