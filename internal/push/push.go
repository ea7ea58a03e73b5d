// Package push wraps the encrypted web-push send to a subscriber's
// endpoint. It is the delivery boundary: callers decide what to do with a
// failure, this package only distinguishes "endpoint permanently gone"
// from every other outcome.
package push

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"

	"workday/backend/internal/model"
)

// ErrGone reports that the push service no longer knows the endpoint; the
// subscription is dead and should be removed, not retried.
var ErrGone = errors.New("push endpoint gone")

const defaultTTL = 60

type Notifier struct {
	vapidPublicKey  string
	vapidPrivateKey string
	subject         string
	client          *http.Client
}

func NewNotifier(vapidPublicKey, vapidPrivateKey, subject string, timeout time.Duration) *Notifier {
	return &Notifier{
		vapidPublicKey:  vapidPublicKey,
		vapidPrivateKey: vapidPrivateKey,
		subject:         subject,
		client:          &http.Client{Timeout: timeout},
	}
}

// Enabled reports whether VAPID credentials were configured.
func (n *Notifier) Enabled() bool {
	return n.vapidPublicKey != "" && n.vapidPrivateKey != ""
}

// PublicKey returns the VAPID public key clients subscribe with.
func (n *Notifier) PublicKey() string {
	return n.vapidPublicKey
}

// Send delivers payload to the subscriber's endpoint. A 404 or 410 from
// the push service maps to ErrGone; any other non-2xx status is an
// ordinary delivery failure.
func (n *Notifier) Send(ctx context.Context, sub model.Subscriber, payload []byte) error {
	resp, err := webpush.SendNotificationWithContext(ctx, payload, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			Auth:   sub.Auth,
			P256dh: sub.P256dh,
		},
	}, &webpush.Options{
		VAPIDPublicKey:  n.vapidPublicKey,
		VAPIDPrivateKey: n.vapidPrivateKey,
		Subscriber:      n.subject,
		TTL:             defaultTTL,
		HTTPClient:      n.client,
	})
	if err != nil {
		return fmt.Errorf("send push: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusGone, resp.StatusCode == http.StatusNotFound:
		return ErrGone
	case resp.StatusCode >= http.StatusBadRequest:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("push service returned %d: %s", resp.StatusCode, body)
	}
	return nil
}
