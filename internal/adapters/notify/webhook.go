package notify

import (
	"context"
	"fmt"
	"net/http"

	"panacea/internal/domain/subscriptions"
	"panacea/internal/platform/httpclient"
	"panacea/internal/ports/notify"
)

// WebhookSender hace POST del payload JSON al endpoint del usuario.
type WebhookSender struct {
	hc        *httpclient.Client
	userAgent string
}

func NewWebhookSender(hc *httpclient.Client, appName string) *WebhookSender {
	if appName == "" {
		appName = "panacea"
	}
	return &WebhookSender{hc: hc, userAgent: appName + "-notifier"}
}

func (w *WebhookSender) Send(ctx context.Context, sub subscriptions.Subscription, n notify.Notification) error {
	err := w.hc.PostJSON(ctx, sub.Endpoint, map[string]string{
		"User-Agent": w.userAgent,
	}, n)
	if err == nil {
		return nil
	}

	switch httpclient.StatusCode(err) {
	case http.StatusNotFound, http.StatusGone:
		return fmt.Errorf("%w: %v", ErrGone, err)
	}
	return err
}
