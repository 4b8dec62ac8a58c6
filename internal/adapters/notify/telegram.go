package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"panacea/internal/domain/subscriptions"
	"panacea/internal/ports/notify"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// BotAPI es lo que se usa de *tgbotapi.BotAPI.
type BotAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type TelegramSender struct {
	bot BotAPI
}

func NewTelegramSender(bot BotAPI) *TelegramSender {
	return &TelegramSender{bot: bot}
}

// NewTelegramBot conecta con la API de Telegram (valida el token con getMe).
func NewTelegramBot(token string) (*tgbotapi.BotAPI, error) {
	bot, err := tgbotapi.NewBotAPI(strings.TrimSpace(token))
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	return bot, nil
}

func (t *TelegramSender) Send(ctx context.Context, sub subscriptions.Subscription, n notify.Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(sub.ChatID, formatTelegram(n))
	if _, err := t.bot.Send(msg); err != nil {
		var apiErr *tgbotapi.Error
		if errors.As(err, &apiErr) && apiErr.Code == http.StatusForbidden {
			// Bot bloqueado o chat inexistente para el bot.
			return fmt.Errorf("%w: %v", ErrGone, err)
		}
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}

func formatTelegram(n notify.Notification) string {
	if n.Title == "" {
		return n.Body
	}
	return n.Title + "\n" + n.Body
}
