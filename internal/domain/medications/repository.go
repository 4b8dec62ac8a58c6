package medications

import "context"

// Repository persiste medicamentos. Todas las lecturas por usuario filtran por userID:
// un id de otro usuario se comporta como inexistente.
type Repository interface {
	Create(ctx context.Context, m Medication) error
	Update(ctx context.Context, m Medication) error
	Delete(ctx context.Context, userID, id string) error
	GetByID(ctx context.Context, userID, id string) (Medication, error)
	ListByUser(ctx context.Context, userID string) ([]Medication, error)
	ListActiveByUser(ctx context.Context, userID string) ([]Medication, error)

	// ListActiveByTiming busca, entre todos los usuarios, los activos que tienen hhmm en Timings.
	ListActiveByTiming(ctx context.Context, hhmm string) ([]Medication, error)

	// AdjustRemainingStock suma delta al stock restante, con piso en 0.
	AdjustRemainingStock(ctx context.Context, userID, id string, delta int) error
}
