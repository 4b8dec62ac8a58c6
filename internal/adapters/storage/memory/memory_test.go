package memory

import (
	"context"
	"errors"
	"testing"

	"panacea/internal/domain/doses"
	"panacea/internal/domain/medications"
)

func TestDoseRepo_NaturalKeyConflict(t *testing.T) {
	repo := NewDoseRepo()
	ctx := context.Background()

	e := doses.DoseEvent{ID: "d1", UserID: "u1", MedicationID: "m1", Date: "2025-03-10", ScheduledTime: "08:00", Status: doses.StatusUpcoming}
	if err := repo.Create(ctx, e); err != nil {
		t.Fatalf("create: %v", err)
	}

	dup := e
	dup.ID = "d2"
	if err := repo.Create(ctx, dup); !errors.Is(err, doses.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestDoseRepo_UserIsolation(t *testing.T) {
	repo := NewDoseRepo()
	ctx := context.Background()

	e := doses.DoseEvent{ID: "d1", UserID: "u1", MedicationID: "m1", Date: "2025-03-10", ScheduledTime: "08:00", Status: doses.StatusUpcoming}
	_ = repo.Create(ctx, e)

	k := e.Key()
	k.UserID = "u2"
	if _, err := repo.FindByKey(ctx, k); !errors.Is(err, doses.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for other user, got %v", err)
	}
	if n, _ := repo.DeleteByMedication(ctx, "u2", "m1"); n != 0 {
		t.Fatalf("other user must not delete, deleted %d", n)
	}
	if n, _ := repo.DeleteByMedication(ctx, "u1", "m1"); n != 1 {
		t.Fatalf("expected 1 deleted, got %d", n)
	}
	// La clave queda libre después del borrado.
	if err := repo.Create(ctx, e); err != nil {
		t.Fatalf("recreate after delete: %v", err)
	}
}

func TestMedicationRepo_StockFloorAndTimingLookup(t *testing.T) {
	repo := NewMedicationRepo()
	ctx := context.Background()

	m := medications.Medication{ID: "m1", UserID: "u1", Name: "x", Dosage: "1", Timings: []string{"08:00", "20:00"}, TotalStock: 1, RemainingStock: 1, Active: true}
	if err := repo.Create(ctx, m); err != nil {
		t.Fatalf("create: %v", err)
	}

	// El repo no comparte el slice con quien llamó.
	m.Timings[0] = "09:00"

	due, _ := repo.ListActiveByTiming(ctx, "08:00")
	if len(due) != 1 {
		t.Fatalf("expected 1 due at 08:00, got %d", len(due))
	}

	for i := 0; i < 3; i++ {
		if err := repo.AdjustRemainingStock(ctx, "u1", "m1", -1); err != nil {
			t.Fatalf("adjust: %v", err)
		}
	}
	got, _ := repo.GetByID(ctx, "u1", "m1")
	if got.RemainingStock != 0 {
		t.Fatalf("expected stock floor 0, got %d", got.RemainingStock)
	}

	if _, err := repo.GetByID(ctx, "u2", "m1"); !errors.Is(err, medications.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for other user, got %v", err)
	}
}
