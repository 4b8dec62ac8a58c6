package notify

import "context"

// Notification es el payload que recibe el usuario en su canal.
type Notification struct {
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
}

// Dispatcher entrega una notificación a un usuario.
// Devuelve false, nil si el usuario no tiene una suscripción habilitada.
type Dispatcher interface {
	Send(ctx context.Context, userID string, n Notification) (bool, error)
}
