package medications

import (
	"context"
	"errors"
	"testing"
	"time"
)

// -------------------------
// Test repo / ledger
// -------------------------

type testRepo struct {
	byID map[string]Medication
}

func newTestRepo() *testRepo {
	return &testRepo{byID: map[string]Medication{}}
}

func (r *testRepo) Create(ctx context.Context, m Medication) error {
	if _, ok := r.byID[m.ID]; ok {
		return errors.New("repo: already exists")
	}
	r.byID[m.ID] = m
	return nil
}

func (r *testRepo) Update(ctx context.Context, m Medication) error {
	if _, ok := r.byID[m.ID]; !ok {
		return ErrNotFound
	}
	r.byID[m.ID] = m
	return nil
}

func (r *testRepo) Delete(ctx context.Context, userID, id string) error {
	m, ok := r.byID[id]
	if !ok || m.UserID != userID {
		return ErrNotFound
	}
	delete(r.byID, id)
	return nil
}

func (r *testRepo) GetByID(ctx context.Context, userID, id string) (Medication, error) {
	m, ok := r.byID[id]
	if !ok || m.UserID != userID {
		return Medication{}, ErrNotFound
	}
	return m, nil
}

func (r *testRepo) ListByUser(ctx context.Context, userID string) ([]Medication, error) {
	out := make([]Medication, 0)
	for _, m := range r.byID {
		if m.UserID == userID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *testRepo) ListActiveByUser(ctx context.Context, userID string) ([]Medication, error) {
	out := make([]Medication, 0)
	for _, m := range r.byID {
		if m.UserID == userID && m.Active {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *testRepo) ListActiveByTiming(ctx context.Context, hhmm string) ([]Medication, error) {
	out := make([]Medication, 0)
	for _, m := range r.byID {
		if m.Active && m.HasTiming(hhmm) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *testRepo) AdjustRemainingStock(ctx context.Context, userID, id string, delta int) error {
	m, ok := r.byID[id]
	if !ok || m.UserID != userID {
		return ErrNotFound
	}
	m.RemainingStock += delta
	if m.RemainingStock < 0 {
		m.RemainingStock = 0
	}
	r.byID[id] = m
	return nil
}

type testLedger struct {
	seeded  []string
	deleted []string
	seedErr error
}

func (l *testLedger) SeedDay(ctx context.Context, m Medication) error {
	l.seeded = append(l.seeded, m.ID)
	return l.seedErr
}

func (l *testLedger) DeleteByMedication(ctx context.Context, userID, medicationID string) error {
	l.deleted = append(l.deleted, medicationID)
	return nil
}

func newTestService() (*Service, *testRepo, *testLedger) {
	repo := newTestRepo()
	ledger := &testLedger{}
	svc := NewService(repo, ledger, nil)
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }
	return svc, repo, ledger
}

// -------------------------
// Tests
// -------------------------

func TestService_Create_NormalizesAndSeeds(t *testing.T) {
	svc, repo, ledger := newTestService()

	m, err := svc.Create(context.Background(), "u1", CreateInput{
		Name:       "  Amoxicilina ",
		Dosage:     "500mg",
		Timings:    []string{"20:00", "08:00"},
		TotalStock: 10,
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if m.Name != "Amoxicilina" {
		t.Fatalf("expected trimmed name, got %q", m.Name)
	}
	if len(m.Timings) != 2 || m.Timings[0] != "08:00" || m.Timings[1] != "20:00" {
		t.Fatalf("expected sorted timings, got %v", m.Timings)
	}
	if m.RemainingStock != 10 || !m.Active {
		t.Fatalf("expected remaining=10 active=true, got %d %v", m.RemainingStock, m.Active)
	}
	if _, ok := repo.byID[m.ID]; !ok {
		t.Fatalf("medication not stored")
	}
	if len(ledger.seeded) != 1 || ledger.seeded[0] != m.ID {
		t.Fatalf("expected today's doses seeded, got %v", ledger.seeded)
	}
}

func TestService_Create_SeedFailureIsNotFatal(t *testing.T) {
	svc, repo, ledger := newTestService()
	ledger.seedErr = errors.New("ledger down")

	m, err := svc.Create(context.Background(), "u1", CreateInput{
		Name: "Ibuprofeno", Dosage: "400mg", Timings: []string{"08:00"}, TotalStock: 20,
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if _, ok := repo.byID[m.ID]; !ok {
		t.Fatalf("medication should be stored even if seeding fails")
	}
}

func TestService_Create_Validation(t *testing.T) {
	svc, _, _ := newTestService()

	cases := map[string]CreateInput{
		"missing name":      {Dosage: "1", Timings: []string{"08:00"}, TotalStock: 1},
		"missing dosage":    {Name: "x", Timings: []string{"08:00"}, TotalStock: 1},
		"negative stock":    {Name: "x", Dosage: "1", Timings: []string{"08:00"}, TotalStock: -1},
		"no timings":        {Name: "x", Dosage: "1", TotalStock: 1},
		"bad timing":        {Name: "x", Dosage: "1", Timings: []string{"8am"}, TotalStock: 1},
		"duplicated timing": {Name: "x", Dosage: "1", Timings: []string{"08:00", "08:00"}, TotalStock: 1},
		"too many timings": {Name: "x", Dosage: "1", TotalStock: 1,
			Timings: []string{"01:00", "02:00", "03:00", "04:00", "05:00", "06:00", "07:00"}},
	}
	for name, in := range cases {
		if _, err := svc.Create(context.Background(), "u1", in); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("%s: expected ErrInvalidInput, got %v", name, err)
		}
	}
}

func TestService_Update_PartialAndClamp(t *testing.T) {
	svc, _, _ := newTestService()

	m, err := svc.Create(context.Background(), "u1", CreateInput{
		Name: "Metformina", Dosage: "850mg", Timings: []string{"08:00"}, TotalStock: 30,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	remaining := 50
	inactive := false
	got, err := svc.Update(context.Background(), "u1", m.ID, UpdateInput{
		RemainingStock: &remaining,
		Active:         &inactive,
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Name != "Metformina" {
		t.Fatalf("name should be untouched, got %q", got.Name)
	}
	if got.RemainingStock != 30 {
		t.Fatalf("remaining should clamp to total, got %d", got.RemainingStock)
	}
	if got.Active {
		t.Fatalf("expected inactive")
	}
}

func TestService_Update_ForeignUserIsNotFound(t *testing.T) {
	svc, _, _ := newTestService()

	m, _ := svc.Create(context.Background(), "owner", CreateInput{
		Name: "x", Dosage: "1", Timings: []string{"08:00"}, TotalStock: 1,
	})
	name := "hack"
	if _, err := svc.Update(context.Background(), "intruder", m.ID, UpdateInput{Name: &name}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestService_Delete_Cascades(t *testing.T) {
	svc, repo, ledger := newTestService()

	m, _ := svc.Create(context.Background(), "u1", CreateInput{
		Name: "x", Dosage: "1", Timings: []string{"08:00"}, TotalStock: 1,
	})
	if err := svc.Delete(context.Background(), "u1", m.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok := repo.byID[m.ID]; ok {
		t.Fatalf("medication still stored")
	}
	if len(ledger.deleted) != 1 || ledger.deleted[0] != m.ID {
		t.Fatalf("expected cascade to ledger, got %v", ledger.deleted)
	}
}

func TestService_ListByUser_NewestFirst(t *testing.T) {
	svc, _, _ := newTestService()

	base := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	for i, name := range []string{"old", "mid", "new"} {
		at := base.Add(time.Duration(i) * time.Minute)
		svc.now = func() time.Time { return at }
		if _, err := svc.Create(context.Background(), "u1", CreateInput{
			Name: name, Dosage: "1", Timings: []string{"08:00"}, TotalStock: 1,
		}); err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
	}

	items, err := svc.ListByUser(context.Background(), "u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 3 || items[0].Name != "new" || items[2].Name != "old" {
		t.Fatalf("unexpected order: %+v", items)
	}
}

func TestMedication_StockHelpers(t *testing.T) {
	m := Medication{TotalStock: 10, RemainingStock: 2}
	if m.StockPercentage() != 20 || !m.LowStock() {
		t.Fatalf("expected 20%% low stock, got %d %v", m.StockPercentage(), m.LowStock())
	}
	m.RemainingStock = 3
	if m.LowStock() {
		t.Fatalf("30%% should not be low stock")
	}
	if (Medication{}).StockPercentage() != 0 {
		t.Fatalf("zero total should be 0%%")
	}
}
