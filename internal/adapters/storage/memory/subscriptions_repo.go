package memory

import (
	"context"
	"errors"
	"strings"
	"sync"

	"panacea/internal/domain/subscriptions"
)

type subscriptionRepo struct {
	mu     sync.RWMutex
	byUser map[string]subscriptions.Subscription
}

func NewSubscriptionRepo() subscriptions.Repository {
	return &subscriptionRepo{
		byUser: make(map[string]subscriptions.Subscription),
	}
}

func (r *subscriptionRepo) Upsert(ctx context.Context, s subscriptions.Subscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if strings.TrimSpace(s.UserID) == "" {
		return errors.New("subscription user id required")
	}
	r.byUser[s.UserID] = s
	return nil
}

func (r *subscriptionRepo) GetByUser(ctx context.Context, userID string) (subscriptions.Subscription, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.byUser[userID]
	if !ok {
		return subscriptions.Subscription{}, subscriptions.ErrNotFound
	}
	return s, nil
}

func (r *subscriptionRepo) Delete(ctx context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byUser[userID]; !ok {
		return subscriptions.ErrNotFound
	}
	delete(r.byUser, userID)
	return nil
}
