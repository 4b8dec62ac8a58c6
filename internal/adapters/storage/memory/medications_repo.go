package memory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"panacea/internal/domain/medications"
)

type medicationRepo struct {
	mu   sync.RWMutex
	byID map[string]medications.Medication
}

func NewMedicationRepo() medications.Repository {
	return &medicationRepo{
		byID: make(map[string]medications.Medication),
	}
}

// cloneMed evita que quien llama comparta el slice de Timings con el repo.
func cloneMed(m medications.Medication) medications.Medication {
	m.Timings = append([]string(nil), m.Timings...)
	return m
}

func (r *medicationRepo) Create(ctx context.Context, m medications.Medication) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if strings.TrimSpace(m.ID) == "" {
		return errors.New("medication id required")
	}
	if _, exists := r.byID[m.ID]; exists {
		return errors.New("medication already exists")
	}
	r.byID[m.ID] = cloneMed(m)
	return nil
}

func (r *medicationRepo) Update(ctx context.Context, m medications.Medication) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.byID[m.ID]
	if !ok || cur.UserID != m.UserID {
		return medications.ErrNotFound
	}
	r.byID[m.ID] = cloneMed(m)
	return nil
}

func (r *medicationRepo) Delete(ctx context.Context, userID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.byID[id]
	if !ok || cur.UserID != userID {
		return medications.ErrNotFound
	}
	delete(r.byID, id)
	return nil
}

func (r *medicationRepo) GetByID(ctx context.Context, userID, id string) (medications.Medication, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.byID[id]
	if !ok || m.UserID != userID {
		return medications.Medication{}, medications.ErrNotFound
	}
	return cloneMed(m), nil
}

func (r *medicationRepo) ListByUser(ctx context.Context, userID string) ([]medications.Medication, error) {
	return r.list(func(m medications.Medication) bool {
		return m.UserID == userID
	}), nil
}

func (r *medicationRepo) ListActiveByUser(ctx context.Context, userID string) ([]medications.Medication, error) {
	return r.list(func(m medications.Medication) bool {
		return m.Active && m.UserID == userID
	}), nil
}

func (r *medicationRepo) ListActiveByTiming(ctx context.Context, hhmm string) ([]medications.Medication, error) {
	return r.list(func(m medications.Medication) bool {
		return m.Active && m.HasTiming(hhmm)
	}), nil
}

func (r *medicationRepo) AdjustRemainingStock(ctx context.Context, userID, id string, delta int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.byID[id]
	if !ok || m.UserID != userID {
		return medications.ErrNotFound
	}
	m.RemainingStock += delta
	if m.RemainingStock < 0 {
		m.RemainingStock = 0
	}
	r.byID[id] = m
	return nil
}

func (r *medicationRepo) list(keep func(medications.Medication) bool) []medications.Medication {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]medications.Medication, 0)
	for _, m := range r.byID {
		if keep(m) {
			out = append(out, cloneMed(m))
		}
	}

	// Orden estable por created_at asc (solo para consistencia en dev)
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}
