package store

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/erazemk/zaloga/internal/db"
)

func TestSuppliersCRUD(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	s, err := CreateSupplier(ctx, database, SupplierInput{
		Name: "MedSupply d.o.o.", Contact: "Petra", Email: "petra@medsupply.si",
	}, "admin")
	if err != nil {
		t.Fatalf("CreateSupplier: %v", err)
	}
	if !strings.HasPrefix(s.ID, "S") || len(s.ID) != 12 {
		t.Errorf("expected S-prefixed date-coded id, got %q", s.ID)
	}

	err = UpdateSupplier(ctx, database, s.ID, SupplierInput{
		Name: "MedSupply d.o.o.", Contact: "Petra", Email: "petra@medsupply.si", Phone: "+386 1 234 5678",
	}, "admin")
	if err != nil {
		t.Fatalf("UpdateSupplier: %v", err)
	}
	got, _ := GetSupplier(ctx, database, s.ID)
	if got.Phone != "+386 1 234 5678" {
		t.Errorf("expected phone to be updated, got %q", got.Phone)
	}

	CreateSupplier(ctx, database, SupplierInput{Name: "Tools Inc", Contact: "Marko", Email: "marko@tools.example"}, "admin")
	found, _ := ListSuppliers(ctx, database, "petra")
	if len(found) != 1 || found[0].ID != s.ID {
		t.Errorf("expected search to find MedSupply, got %v", found)
	}
	all, _ := ListSuppliers(ctx, database, "")
	if len(all) != 2 {
		t.Errorf("expected 2 suppliers, got %d", len(all))
	}

	if err := DeleteSupplier(ctx, database, s.ID, "admin"); err != nil {
		t.Fatalf("DeleteSupplier: %v", err)
	}
	if err := DeleteSupplier(ctx, database, s.ID, "admin"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
