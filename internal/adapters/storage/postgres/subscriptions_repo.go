package postgres

import (
	"context"
	"database/sql"
	"errors"

	"panacea/internal/domain/subscriptions"
)

type SubscriptionsRepo struct {
	db *sql.DB
}

func NewSubscriptionsRepo(db *sql.DB) *SubscriptionsRepo {
	return &SubscriptionsRepo{db: db}
}

func (r *SubscriptionsRepo) Upsert(ctx context.Context, s subscriptions.Subscription) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO notification_subscriptions (
			user_id, channel, endpoint, chat_id, enabled, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (user_id) DO UPDATE SET
			channel = excluded.channel,
			endpoint = excluded.endpoint,
			chat_id = excluded.chat_id,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
	`,
		s.UserID,
		string(s.Channel),
		s.Endpoint,
		s.ChatID,
		s.Enabled,
		s.CreatedAt,
		s.UpdatedAt,
	)
	return err
}

func (r *SubscriptionsRepo) GetByUser(ctx context.Context, userID string) (subscriptions.Subscription, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT user_id, channel, endpoint, chat_id, enabled, created_at, updated_at
		FROM notification_subscriptions
		WHERE user_id = $1
	`, userID)

	var (
		s  subscriptions.Subscription
		ch string
	)
	if err := row.Scan(
		&s.UserID,
		&ch,
		&s.Endpoint,
		&s.ChatID,
		&s.Enabled,
		&s.CreatedAt,
		&s.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return subscriptions.Subscription{}, subscriptions.ErrNotFound
		}
		return subscriptions.Subscription{}, err
	}
	s.Channel = subscriptions.Channel(ch)
	return s, nil
}

func (r *SubscriptionsRepo) Delete(ctx context.Context, userID string) error {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM notification_subscriptions WHERE user_id = $1
	`, userID)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return subscriptions.ErrNotFound
	}
	return nil
}
