// Package notify implementa notify.Dispatcher sobre las suscripciones de cada usuario.
package notify

import (
	"context"
	"errors"
	"fmt"

	"panacea/internal/domain/subscriptions"
	"panacea/internal/platform/logger"
	"panacea/internal/ports/notify"
)

var (
	// ErrGone: el canal ya no existe (endpoint 404/410, bot bloqueado).
	// El dispatcher borra la suscripción al recibirlo.
	ErrGone = errors.New("notify: subscription gone")

	ErrNoSender = errors.New("notify: channel not configured")
)

// Sender entrega por un canal concreto.
type Sender interface {
	Send(ctx context.Context, sub subscriptions.Subscription, n notify.Notification) error
}

type SubscriptionStore interface {
	GetByUser(ctx context.Context, userID string) (subscriptions.Subscription, error)
	Delete(ctx context.Context, userID string) error
}

// Dispatcher elige el Sender según el canal de la suscripción del usuario.
type Dispatcher struct {
	subs    SubscriptionStore
	senders map[subscriptions.Channel]Sender
	log     logger.Logger
}

func NewDispatcher(subs SubscriptionStore, log logger.Logger) *Dispatcher {
	if log == nil {
		log = logger.Nop()
	}
	return &Dispatcher{
		subs:    subs,
		senders: make(map[subscriptions.Channel]Sender),
		log:     log.With(map[string]any{"component": "notify"}),
	}
}

// Register asocia un Sender a un canal. No es seguro llamarlo en paralelo con Send.
func (d *Dispatcher) Register(ch subscriptions.Channel, s Sender) *Dispatcher {
	if s != nil {
		d.senders[ch] = s
	}
	return d
}

var _ notify.Dispatcher = (*Dispatcher)(nil)

func (d *Dispatcher) Send(ctx context.Context, userID string, n notify.Notification) (bool, error) {
	sub, err := d.subs.GetByUser(ctx, userID)
	if errors.Is(err, subscriptions.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get subscription: %w", err)
	}
	if !sub.Enabled {
		return false, nil
	}

	sender, ok := d.senders[sub.Channel]
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrNoSender, sub.Channel)
	}

	err = sender.Send(ctx, sub, n)
	if err == nil {
		return true, nil
	}

	if errors.Is(err, ErrGone) {
		if derr := d.subs.Delete(ctx, userID); derr != nil && !errors.Is(derr, subscriptions.ErrNotFound) {
			d.log.Warn("remove stale subscription failed", map[string]any{
				"user_id": userID,
				"error":   derr.Error(),
			})
		} else {
			d.log.Info("stale subscription removed", map[string]any{
				"user_id": userID,
				"channel": string(sub.Channel),
			})
		}
	}
	return false, err
}
