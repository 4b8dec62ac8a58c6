package subscriptions

import (
	"context"
	"errors"
	"testing"
	"time"
)

type testRepo struct {
	byUser map[string]Subscription
}

func (r *testRepo) Upsert(ctx context.Context, s Subscription) error {
	r.byUser[s.UserID] = s
	return nil
}

func (r *testRepo) GetByUser(ctx context.Context, userID string) (Subscription, error) {
	s, ok := r.byUser[userID]
	if !ok {
		return Subscription{}, ErrNotFound
	}
	return s, nil
}

func (r *testRepo) Delete(ctx context.Context, userID string) error {
	if _, ok := r.byUser[userID]; !ok {
		return ErrNotFound
	}
	delete(r.byUser, userID)
	return nil
}

func TestService_Subscribe_Webhook(t *testing.T) {
	repo := &testRepo{byUser: map[string]Subscription{}}
	svc := NewService(repo)

	first := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return first }

	s, err := svc.Subscribe(context.Background(), "u1", SubscribeInput{Channel: "Webhook", Endpoint: "https://example.com/h"})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if s.Channel != ChannelWebhook || !s.Enabled {
		t.Fatalf("unexpected subscription: %+v", s)
	}

	// Reemplazo: conserva created_at.
	later := first.Add(time.Hour)
	svc.now = func() time.Time { return later }
	off := false
	s, err = svc.Subscribe(context.Background(), "u1", SubscribeInput{Channel: ChannelTelegram, ChatID: 7, Enabled: &off})
	if err != nil {
		t.Fatalf("resubscribe: %v", err)
	}
	if !s.CreatedAt.Equal(first) || !s.UpdatedAt.Equal(later) {
		t.Fatalf("timestamps: created=%v updated=%v", s.CreatedAt, s.UpdatedAt)
	}
	if s.Enabled || s.ChatID != 7 || s.Endpoint != "" {
		t.Fatalf("unexpected subscription: %+v", s)
	}
}

func TestService_Subscribe_Validation(t *testing.T) {
	svc := NewService(&testRepo{byUser: map[string]Subscription{}})

	cases := map[string]SubscribeInput{
		"unknown channel":  {Channel: "sms"},
		"webhook no url":   {Channel: ChannelWebhook},
		"webhook relative": {Channel: ChannelWebhook, Endpoint: "/hooks"},
		"webhook ftp":      {Channel: ChannelWebhook, Endpoint: "ftp://example.com"},
		"telegram no chat": {Channel: ChannelTelegram},
	}
	for name, in := range cases {
		if _, err := svc.Subscribe(context.Background(), "u1", in); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("%s: expected ErrInvalidInput, got %v", name, err)
		}
	}
}

func TestService_Unsubscribe_Idempotent(t *testing.T) {
	repo := &testRepo{byUser: map[string]Subscription{}}
	svc := NewService(repo)

	if err := svc.Unsubscribe(context.Background(), "u1"); err != nil {
		t.Fatalf("unsubscribe without subscription: %v", err)
	}
	_, _ = svc.Subscribe(context.Background(), "u1", SubscribeInput{Channel: ChannelTelegram, ChatID: 1})
	if err := svc.Unsubscribe(context.Background(), "u1"); err != nil {
		t.Fatalf("unsubscribe: %v", err)
	}
	if _, err := svc.Get(context.Background(), "u1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
