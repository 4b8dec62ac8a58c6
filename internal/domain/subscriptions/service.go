package subscriptions

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("subscription not found")
)

type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{
		repo: repo,
		now:  time.Now,
	}
}

type SubscribeInput struct {
	Channel  Channel
	Endpoint string
	ChatID   int64
	Enabled  *bool // nil = true
}

// Subscribe registra (o reemplaza) el canal del usuario.
func (s *Service) Subscribe(ctx context.Context, userID string, in SubscribeInput) (Subscription, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Subscription{}, ErrInvalidInput
	}

	ch := Channel(strings.ToLower(strings.TrimSpace(string(in.Channel))))
	if !ch.Valid() {
		return Subscription{}, fmt.Errorf("%w: channel must be webhook or telegram", ErrInvalidInput)
	}

	sub := Subscription{
		UserID:  userID,
		Channel: ch,
		Enabled: true,
	}
	if in.Enabled != nil {
		sub.Enabled = *in.Enabled
	}

	switch ch {
	case ChannelWebhook:
		endpoint, err := validEndpoint(in.Endpoint)
		if err != nil {
			return Subscription{}, err
		}
		sub.Endpoint = endpoint
	case ChannelTelegram:
		if in.ChatID == 0 {
			return Subscription{}, fmt.Errorf("%w: chat_id is required", ErrInvalidInput)
		}
		sub.ChatID = in.ChatID
	}

	now := s.now()
	sub.CreatedAt = now
	sub.UpdatedAt = now
	if prev, err := s.repo.GetByUser(ctx, userID); err == nil {
		sub.CreatedAt = prev.CreatedAt
	} else if !errors.Is(err, ErrNotFound) {
		return Subscription{}, err
	}

	if err := s.repo.Upsert(ctx, sub); err != nil {
		return Subscription{}, err
	}
	return sub, nil
}

func (s *Service) Get(ctx context.Context, userID string) (Subscription, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Subscription{}, ErrInvalidInput
	}
	return s.repo.GetByUser(ctx, userID)
}

// Unsubscribe es idempotente: sin suscripción no es error.
func (s *Service) Unsubscribe(ctx context.Context, userID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return ErrInvalidInput
	}
	if err := s.repo.Delete(ctx, userID); err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	return nil
}

func validEndpoint(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("%w: endpoint is required", ErrInvalidInput)
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return "", fmt.Errorf("%w: endpoint must be an absolute http(s) url", ErrInvalidInput)
	}
	return u.String(), nil
}
