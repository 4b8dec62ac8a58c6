package auth

import "context"

// Claims es la identidad resuelta de un request.
// Sólo UserID es obligatorio; todo dato de dosis y medicamentos se filtra por él.
type Claims struct {
	UserID   string
	Email    string
	TenantID string
}

// AuthVerifier valida un bearer token.
type AuthVerifier interface {
	Verify(ctx context.Context, token string) (Claims, error)
}
