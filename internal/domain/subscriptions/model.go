package subscriptions

import "time"

type Channel string

const (
	ChannelWebhook  Channel = "webhook"
	ChannelTelegram Channel = "telegram"
)

func (c Channel) Valid() bool {
	switch c {
	case ChannelWebhook, ChannelTelegram:
		return true
	}
	return false
}

// Subscription es el canal de notificaciones de un usuario (uno por usuario).
type Subscription struct {
	UserID  string
	Channel Channel

	Endpoint string // webhook: URL absoluta
	ChatID   int64  // telegram

	Enabled bool

	CreatedAt time.Time
	UpdatedAt time.Time
}
