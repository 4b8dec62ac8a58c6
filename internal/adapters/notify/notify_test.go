package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"panacea/internal/adapters/storage/memory"
	"panacea/internal/domain/subscriptions"
	"panacea/internal/platform/httpclient"
	"panacea/internal/ports/notify"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var reminder = notify.Notification{
	Title: "💊 Medicine Reminder",
	Body:  "Time to take Ibuprofeno (400mg)",
	Data:  map[string]string{"type": "medication_reminder", "medicationId": "m1", "time": "08:00"},
}

func subscribe(t *testing.T, repo subscriptions.Repository, s subscriptions.Subscription) {
	t.Helper()
	require.NoError(t, repo.Upsert(context.Background(), s))
}

func newWebhookDispatcher(repo subscriptions.Repository) *Dispatcher {
	hc := httpclient.New(httpclient.Options{Name: "test-webhook"})
	return NewDispatcher(repo, nil).Register(subscriptions.ChannelWebhook, NewWebhookSender(hc, "panacea"))
}

func TestDispatcher_NoSubscription(t *testing.T) {
	d := newWebhookDispatcher(memory.NewSubscriptionRepo())

	sent, err := d.Send(context.Background(), "u1", reminder)
	require.NoError(t, err)
	assert.False(t, sent)
}

func TestDispatcher_DisabledSubscription(t *testing.T) {
	repo := memory.NewSubscriptionRepo()
	subscribe(t, repo, subscriptions.Subscription{
		UserID: "u1", Channel: subscriptions.ChannelWebhook, Endpoint: "http://127.0.0.1:1/never", Enabled: false,
	})

	sent, err := newWebhookDispatcher(repo).Send(context.Background(), "u1", reminder)
	require.NoError(t, err)
	assert.False(t, sent)
}

func TestDispatcher_WebhookDelivers(t *testing.T) {
	var got notify.Notification
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "panacea-notifier", r.Header.Get("User-Agent"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	repo := memory.NewSubscriptionRepo()
	subscribe(t, repo, subscriptions.Subscription{
		UserID: "u1", Channel: subscriptions.ChannelWebhook, Endpoint: srv.URL + "/hook", Enabled: true,
	})

	sent, err := newWebhookDispatcher(repo).Send(context.Background(), "u1", reminder)
	require.NoError(t, err)
	assert.True(t, sent)
	assert.Equal(t, reminder, got)
}

func TestDispatcher_GoneEndpointRemovesSubscription(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusGone)
	}))
	defer srv.Close()

	repo := memory.NewSubscriptionRepo()
	subscribe(t, repo, subscriptions.Subscription{
		UserID: "u1", Channel: subscriptions.ChannelWebhook, Endpoint: srv.URL, Enabled: true,
	})

	sent, err := newWebhookDispatcher(repo).Send(context.Background(), "u1", reminder)
	assert.False(t, sent)
	assert.ErrorIs(t, err, ErrGone)

	_, err = repo.GetByUser(context.Background(), "u1")
	assert.ErrorIs(t, err, subscriptions.ErrNotFound)
}

func TestDispatcher_ServerErrorKeepsSubscription(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	repo := memory.NewSubscriptionRepo()
	subscribe(t, repo, subscriptions.Subscription{
		UserID: "u1", Channel: subscriptions.ChannelWebhook, Endpoint: srv.URL, Enabled: true,
	})

	_, err := newWebhookDispatcher(repo).Send(context.Background(), "u1", reminder)
	require.Error(t, err)
	assert.Equal(t, http.StatusInternalServerError, httpclient.StatusCode(err))

	_, err = repo.GetByUser(context.Background(), "u1")
	assert.NoError(t, err)
}

func TestDispatcher_ChannelWithoutSender(t *testing.T) {
	repo := memory.NewSubscriptionRepo()
	subscribe(t, repo, subscriptions.Subscription{
		UserID: "u1", Channel: subscriptions.ChannelTelegram, ChatID: 42, Enabled: true,
	})

	_, err := newWebhookDispatcher(repo).Send(context.Background(), "u1", reminder)
	assert.ErrorIs(t, err, ErrNoSender)
}

type fakeBot struct {
	sent []tgbotapi.MessageConfig
	err  error
}

func (b *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if b.err != nil {
		return tgbotapi.Message{}, b.err
	}
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		b.sent = append(b.sent, msg)
	}
	return tgbotapi.Message{}, nil
}

func TestTelegramSender(t *testing.T) {
	bot := &fakeBot{}
	repo := memory.NewSubscriptionRepo()
	subscribe(t, repo, subscriptions.Subscription{
		UserID: "u1", Channel: subscriptions.ChannelTelegram, ChatID: 42, Enabled: true,
	})
	d := NewDispatcher(repo, nil).Register(subscriptions.ChannelTelegram, NewTelegramSender(bot))

	sent, err := d.Send(context.Background(), "u1", reminder)
	require.NoError(t, err)
	assert.True(t, sent)
	require.Len(t, bot.sent, 1)
	assert.Equal(t, int64(42), bot.sent[0].ChatID)
	assert.Equal(t, "💊 Medicine Reminder\nTime to take Ibuprofeno (400mg)", bot.sent[0].Text)
}

func TestTelegramSender_BlockedBotIsGone(t *testing.T) {
	bot := &fakeBot{err: &tgbotapi.Error{Code: http.StatusForbidden, Message: "Forbidden: bot was blocked by the user"}}
	repo := memory.NewSubscriptionRepo()
	subscribe(t, repo, subscriptions.Subscription{
		UserID: "u1", Channel: subscriptions.ChannelTelegram, ChatID: 42, Enabled: true,
	})
	d := NewDispatcher(repo, nil).Register(subscriptions.ChannelTelegram, NewTelegramSender(bot))

	_, err := d.Send(context.Background(), "u1", reminder)
	assert.True(t, errors.Is(err, ErrGone))

	_, err = repo.GetByUser(context.Background(), "u1")
	assert.ErrorIs(t, err, subscriptions.ErrNotFound)
}
