package subscriptions

import "context"

type Repository interface {
	// Upsert crea o reemplaza la suscripción del usuario.
	Upsert(ctx context.Context, s Subscription) error
	GetByUser(ctx context.Context, userID string) (Subscription, error)
	Delete(ctx context.Context, userID string) error
}
