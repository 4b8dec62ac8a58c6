package doses

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"panacea/internal/domain/dosetime"
	"panacea/internal/domain/medications"
	"panacea/internal/platform/logger"
	"panacea/internal/platform/metrics"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("dose not found")
	ErrConflict     = errors.New("dose already exists")
)

// MedicationSource es el subconjunto del registro de medicamentos que usa el ledger.
// medications.Repository lo satisface.
type MedicationSource interface {
	GetByID(ctx context.Context, userID, id string) (medications.Medication, error)
	ListActiveByUser(ctx context.Context, userID string) ([]medications.Medication, error)
	AdjustRemainingStock(ctx context.Context, userID, id string, delta int) error
}

type Options struct {
	Clock   dosetime.Clock
	Logger  logger.Logger
	Metrics *metrics.Metrics

	// StockDecrementOnce: si está activo, sólo se descuenta stock cuando la toma
	// pasa a taken desde otro estado. Apagado, cada TakeDose descuenta 1.
	StockDecrementOnce bool
}

type Service struct {
	repo  Repository
	meds  MedicationSource
	clock dosetime.Clock
	log   logger.Logger
	m     *metrics.Metrics

	stockDecrementOnce bool
}

func NewService(repo Repository, meds MedicationSource, opts Options) *Service {
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	clock := opts.Clock
	if clock.Now == nil {
		clock = dosetime.NewClock(clock.Location)
	}
	return &Service{
		repo:               repo,
		meds:               meds,
		clock:              clock,
		log:                log.With(map[string]any{"component": "doses"}),
		m:                  opts.Metrics,
		stockDecrementOnce: opts.StockDecrementOnce,
	}
}

// DailySchedule arma la agenda de `date` (vacío = hoy) para el usuario.
// Las tomas que no existen todavía se crean en el momento, así llamadas
// repetidas y los sweeps ven siempre los mismos registros.
func (s *Service) DailySchedule(ctx context.Context, userID, date string) ([]ScheduledDose, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrInvalidInput
	}
	date, err := s.resolveDate(date)
	if err != nil {
		return nil, err
	}

	meds, err := s.meds.ListActiveByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list active medications: %w", err)
	}

	existing, err := s.repo.ListByUserAndDate(ctx, userID, date)
	if err != nil {
		return nil, fmt.Errorf("list doses: %w", err)
	}
	byKey := make(map[Key]DoseEvent, len(existing))
	for _, e := range existing {
		byKey[e.Key()] = e
	}

	cutoff := s.clock.CutoffFor(date)
	out := make([]ScheduledDose, 0)

	for _, med := range meds {
		for _, t := range med.Timings {
			k := Key{UserID: userID, MedicationID: med.ID, Date: date, ScheduledTime: t}

			e, ok := byKey[k]
			if !ok {
				e, err = s.materialize(ctx, k, initialStatus(t, cutoff))
				if err != nil {
					return nil, err
				}
				byKey[k] = e
			}

			out = append(out, ScheduledDose{Event: e, Medication: med})
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Event.ScheduledTime < out[j].Event.ScheduledTime
	})

	return out, nil
}

// SeedDay crea las tomas de hoy de un medicamento recién registrado.
// Implementa medications.DoseLedger.
func (s *Service) SeedDay(ctx context.Context, m medications.Medication) error {
	date, cutoff, _ := s.clock.Current()

	for _, t := range m.Timings {
		k := Key{UserID: m.UserID, MedicationID: m.ID, Date: date, ScheduledTime: t}
		if _, err := s.repo.FindByKey(ctx, k); err == nil {
			continue
		} else if !errors.Is(err, ErrNotFound) {
			return err
		}
		if _, err := s.materialize(ctx, k, initialStatus(t, cutoff)); err != nil {
			return err
		}
	}
	return nil
}

// DeleteByMedication borra en cascada. Implementa medications.DoseLedger.
func (s *Service) DeleteByMedication(ctx context.Context, userID, medicationID string) error {
	n, err := s.repo.DeleteByMedication(ctx, userID, medicationID)
	if err != nil {
		return err
	}
	s.log.Debug("doses deleted", map[string]any{
		"medication_id": medicationID,
		"count":         n,
	})
	return nil
}

type TakeDoseInput struct {
	UserID        string
	MedicationID  string
	ScheduledTime string
	Date          string // vacío = hoy
}

// TakeDose marca la toma como tomada (sin importar el estado previo) y
// descuenta una unidad de stock. Si el descuento falla después de guardar
// la toma, queda logueado y no se revierte.
func (s *Service) TakeDose(ctx context.Context, in TakeDoseInput) (DoseEvent, error) {
	k, err := s.resolveKey(ctx, in.UserID, in.MedicationID, in.ScheduledTime, in.Date)
	if err != nil {
		return DoseEvent{}, err
	}

	e, prev, err := s.transition(ctx, k, StatusTaken)
	if err != nil {
		return DoseEvent{}, err
	}

	s.m.DoseTaken()

	if s.stockDecrementOnce && prev == StatusTaken {
		return e, nil
	}
	if err := s.meds.AdjustRemainingStock(ctx, k.UserID, k.MedicationID, -1); err != nil {
		s.log.Warn("stock decrement failed after dose was recorded", map[string]any{
			"user_id":        k.UserID,
			"medication_id":  k.MedicationID,
			"date":           k.Date,
			"scheduled_time": k.ScheduledTime,
			"error":          err.Error(),
		})
	}
	return e, nil
}

// SkipDose marca la toma como salteada. No toca stock.
func (s *Service) SkipDose(ctx context.Context, in TakeDoseInput) (DoseEvent, error) {
	k, err := s.resolveKey(ctx, in.UserID, in.MedicationID, in.ScheduledTime, in.Date)
	if err != nil {
		return DoseEvent{}, err
	}
	e, _, err := s.transition(ctx, k, StatusSkipped)
	return e, err
}

// transition busca la toma por clave natural; si no existe la crea ya en `to`.
// Devuelve también el estado previo ("" si no existía).
func (s *Service) transition(ctx context.Context, k Key, to Status) (DoseEvent, Status, error) {
	_, _, now := s.clock.Current()

	e, err := s.repo.FindByKey(ctx, k)
	switch {
	case errors.Is(err, ErrNotFound):
		e = newEvent(k, to, now)
		if to == StatusTaken {
			t := now
			e.TakenAt = &t
		}
		err = s.repo.Create(ctx, e)
		if err == nil {
			return e, "", nil
		}
		if !errors.Is(err, ErrConflict) {
			return DoseEvent{}, "", err
		}
		// Otro request la creó entre el lookup y el insert: seguimos como update.
		e, err = s.repo.FindByKey(ctx, k)
		if err != nil {
			return DoseEvent{}, "", err
		}
	case err != nil:
		return DoseEvent{}, "", err
	}

	prev := e.Status
	e.Status = to
	e.UpdatedAt = now
	if to == StatusTaken {
		t := now
		e.TakenAt = &t
	} else {
		e.TakenAt = nil
	}

	if err := s.repo.Update(ctx, e); err != nil {
		return DoseEvent{}, "", err
	}
	return e, prev, nil
}

func (s *Service) resolveKey(ctx context.Context, userID, medicationID, scheduledTime, date string) (Key, error) {
	userID = strings.TrimSpace(userID)
	medicationID = strings.TrimSpace(medicationID)
	if userID == "" || medicationID == "" {
		return Key{}, fmt.Errorf("%w: medication_id is required", ErrInvalidInput)
	}
	t, err := dosetime.ParseHHMM(scheduledTime)
	if err != nil {
		return Key{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	date, err = s.resolveDate(date)
	if err != nil {
		return Key{}, err
	}

	// Ownership: un medicamento de otro usuario responde NotFound.
	if _, err := s.meds.GetByID(ctx, userID, medicationID); err != nil {
		return Key{}, err
	}

	return Key{UserID: userID, MedicationID: medicationID, Date: date, ScheduledTime: t}, nil
}

func (s *Service) resolveDate(date string) (string, error) {
	if strings.TrimSpace(date) == "" {
		return s.clock.Today(), nil
	}
	d, err := dosetime.ParseDate(date)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return d, nil
}

// materialize inserta una toma; si choca con la clave natural devuelve la existente.
func (s *Service) materialize(ctx context.Context, k Key, status Status) (DoseEvent, error) {
	_, _, now := s.clock.Current()
	e := newEvent(k, status, now)

	err := s.repo.Create(ctx, e)
	if err == nil {
		return e, nil
	}
	if errors.Is(err, ErrConflict) {
		return s.repo.FindByKey(ctx, k)
	}
	return DoseEvent{}, fmt.Errorf("create dose: %w", err)
}
