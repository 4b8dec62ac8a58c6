package medications

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"panacea/internal/domain/dosetime"
	"panacea/internal/platform/logger"

	"github.com/google/uuid"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("medication not found")
)

// DoseLedger es lo que el registro necesita del ledger de dosis.
// Se define acá (y no se importa doses) para evitar ciclos: doses depende de medications.
type DoseLedger interface {
	SeedDay(ctx context.Context, m Medication) error
	DeleteByMedication(ctx context.Context, userID, medicationID string) error
}

type Service struct {
	repo   Repository
	ledger DoseLedger
	log    logger.Logger
	now    func() time.Time
}

func NewService(repo Repository, ledger DoseLedger, log logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		repo:   repo,
		ledger: ledger,
		log:    log.With(map[string]any{"component": "medications"}),
		now:    time.Now,
	}
}

type CreateInput struct {
	Name         string
	Dosage       string
	Timings      []string
	TotalStock   int
	Instructions string
}

func (s *Service) Create(ctx context.Context, userID string, in CreateInput) (Medication, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Medication{}, ErrInvalidInput
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return Medication{}, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	dosage := strings.TrimSpace(in.Dosage)
	if dosage == "" {
		return Medication{}, fmt.Errorf("%w: dosage is required", ErrInvalidInput)
	}
	if in.TotalStock < 0 {
		return Medication{}, fmt.Errorf("%w: total_stock must be >= 0", ErrInvalidInput)
	}
	timings, err := dosetime.NormalizeTimings(in.Timings, MaxTimings)
	if err != nil {
		return Medication{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	now := s.now()
	m := Medication{
		ID:             uuid.NewString(),
		UserID:         userID,
		Name:           name,
		Dosage:         dosage,
		Timings:        timings,
		Instructions:   strings.TrimSpace(in.Instructions),
		TotalStock:     in.TotalStock,
		RemainingStock: in.TotalStock,
		Active:         true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.repo.Create(ctx, m); err != nil {
		return Medication{}, err
	}

	// Siembra las tomas de hoy. Si falla no revertimos: el materializador
	// las crea igual en la primera consulta del día.
	if s.ledger != nil {
		if err := s.ledger.SeedDay(ctx, m); err != nil {
			s.log.Warn("seed today's doses failed", map[string]any{
				"medication_id": m.ID,
				"user_id":       userID,
				"error":         err.Error(),
			})
		}
	}

	return m, nil
}

func (s *Service) GetByID(ctx context.Context, userID, id string) (Medication, error) {
	userID = strings.TrimSpace(userID)
	id = strings.TrimSpace(id)
	if userID == "" || id == "" {
		return Medication{}, ErrInvalidInput
	}
	return s.repo.GetByID(ctx, userID, id)
}

// ListByUser devuelve los medicamentos del usuario, más recientes primero.
func (s *Service) ListByUser(ctx context.Context, userID string) ([]Medication, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrInvalidInput
	}
	items, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	return items, nil
}

// UpdateInput usa punteros: nil = no tocar.
type UpdateInput struct {
	Name           *string
	Dosage         *string
	Timings        []string // nil = no tocar
	TotalStock     *int
	RemainingStock *int
	Instructions   *string
	Active         *bool
}

func (s *Service) Update(ctx context.Context, userID, id string, in UpdateInput) (Medication, error) {
	m, err := s.GetByID(ctx, userID, id)
	if err != nil {
		return Medication{}, err
	}

	if in.Name != nil {
		v := strings.TrimSpace(*in.Name)
		if v == "" {
			return Medication{}, fmt.Errorf("%w: name is required", ErrInvalidInput)
		}
		m.Name = v
	}
	if in.Dosage != nil {
		v := strings.TrimSpace(*in.Dosage)
		if v == "" {
			return Medication{}, fmt.Errorf("%w: dosage is required", ErrInvalidInput)
		}
		m.Dosage = v
	}
	if in.Timings != nil {
		timings, err := dosetime.NormalizeTimings(in.Timings, MaxTimings)
		if err != nil {
			return Medication{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		m.Timings = timings
	}
	if in.TotalStock != nil {
		if *in.TotalStock < 0 {
			return Medication{}, fmt.Errorf("%w: total_stock must be >= 0", ErrInvalidInput)
		}
		m.TotalStock = *in.TotalStock
	}
	if in.RemainingStock != nil {
		if *in.RemainingStock < 0 {
			return Medication{}, fmt.Errorf("%w: remaining_stock must be >= 0", ErrInvalidInput)
		}
		m.RemainingStock = *in.RemainingStock
	}
	if in.Instructions != nil {
		m.Instructions = strings.TrimSpace(*in.Instructions)
	}
	if in.Active != nil {
		m.Active = *in.Active
	}

	m.clampStock()
	m.UpdatedAt = s.now()

	if err := s.repo.Update(ctx, m); err != nil {
		return Medication{}, err
	}
	return m, nil
}

// Delete borra el medicamento y en cascada todas sus tomas.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	userID = strings.TrimSpace(userID)
	id = strings.TrimSpace(id)
	if userID == "" || id == "" {
		return ErrInvalidInput
	}
	if err := s.repo.Delete(ctx, userID, id); err != nil {
		return err
	}
	if s.ledger == nil {
		return nil
	}
	if err := s.ledger.DeleteByMedication(ctx, userID, id); err != nil {
		return fmt.Errorf("cascade delete doses: %w", err)
	}
	return nil
}
