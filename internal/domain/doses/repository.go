package doses

import "context"

type Repository interface {
	// Create devuelve ErrConflict si ya existe una toma con la misma clave natural.
	Create(ctx context.Context, e DoseEvent) error
	Update(ctx context.Context, e DoseEvent) error
	FindByKey(ctx context.Context, k Key) (DoseEvent, error)
	ListByUserAndDate(ctx context.Context, userID, date string) ([]DoseEvent, error)

	// MarkMissedBefore pasa a missed, en bloque, toda toma upcoming de `date`
	// con hora estrictamente menor a hhmm. Devuelve cuántas cambió.
	MarkMissedBefore(ctx context.Context, date, hhmm string) (int64, error)

	DeleteByMedication(ctx context.Context, userID, medicationID string) (int64, error)
}
