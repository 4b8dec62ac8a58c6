package memory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"panacea/internal/domain/doses"
)

// naturalKey omite UserID: la unicidad es por (medicamento, fecha, hora),
// igual que el índice único de Postgres.
type naturalKey struct {
	MedicationID  string
	Date          string
	ScheduledTime string
}

func keyOf(k doses.Key) naturalKey {
	return naturalKey{MedicationID: k.MedicationID, Date: k.Date, ScheduledTime: k.ScheduledTime}
}

type doseRepo struct {
	mu    sync.RWMutex
	byID  map[string]doses.DoseEvent
	byKey map[naturalKey]string // -> id
}

func NewDoseRepo() doses.Repository {
	return &doseRepo{
		byID:  make(map[string]doses.DoseEvent),
		byKey: make(map[naturalKey]string),
	}
}

func (r *doseRepo) Create(ctx context.Context, e doses.DoseEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if strings.TrimSpace(e.ID) == "" {
		return errors.New("dose id required")
	}
	if _, exists := r.byID[e.ID]; exists {
		return doses.ErrConflict
	}
	nk := keyOf(e.Key())
	if _, exists := r.byKey[nk]; exists {
		return doses.ErrConflict
	}
	r.byID[e.ID] = e
	r.byKey[nk] = e.ID
	return nil
}

func (r *doseRepo) Update(ctx context.Context, e doses.DoseEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.byID[e.ID]
	if !ok || cur.UserID != e.UserID {
		return doses.ErrNotFound
	}
	if keyOf(cur.Key()) != keyOf(e.Key()) {
		return errors.New("dose natural key is immutable")
	}
	r.byID[e.ID] = e
	return nil
}

func (r *doseRepo) FindByKey(ctx context.Context, k doses.Key) (doses.DoseEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byKey[keyOf(k)]
	if !ok {
		return doses.DoseEvent{}, doses.ErrNotFound
	}
	e := r.byID[id]
	if e.UserID != k.UserID {
		return doses.DoseEvent{}, doses.ErrNotFound
	}
	return e, nil
}

func (r *doseRepo) ListByUserAndDate(ctx context.Context, userID, date string) ([]doses.DoseEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]doses.DoseEvent, 0)
	for _, e := range r.byID {
		if e.UserID == userID && e.Date == date {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ScheduledTime == out[j].ScheduledTime {
			return out[i].MedicationID < out[j].MedicationID
		}
		return out[i].ScheduledTime < out[j].ScheduledTime
	})
	return out, nil
}

func (r *doseRepo) MarkMissedBefore(ctx context.Context, date, hhmm string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	var n int64
	for id, e := range r.byID {
		if e.Date != date || e.Status != doses.StatusUpcoming || e.ScheduledTime >= hhmm {
			continue
		}
		e.Status = doses.StatusMissed
		e.UpdatedAt = now
		r.byID[id] = e
		n++
	}
	return n, nil
}

func (r *doseRepo) DeleteByMedication(ctx context.Context, userID, medicationID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for id, e := range r.byID {
		if e.MedicationID != medicationID || e.UserID != userID {
			continue
		}
		delete(r.byKey, keyOf(e.Key()))
		delete(r.byID, id)
		n++
	}
	return n, nil
}
