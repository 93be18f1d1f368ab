package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/time/rate"
)

const (
	// timeout for webhook requests.
	timeout = 30 * time.Second
)

// Webhook posts notifications to an HTTP endpoint as JSON. Outbound volume
// is rate-limited so an incident storm cannot flood the receiver.
type Webhook struct {
	url     string
	client  *http.Client
	limiter *rate.Limiter
}

// NewWebhook creates a webhook notifier. ratePerSec bounds sustained
// outbound notifications; bursts up to twice the rate are admitted.
func NewWebhook(url string, ratePerSec float64) *Webhook {
	if ratePerSec <= 0 {
		ratePerSec = 5
	}
	burst := int(ratePerSec * 2)
	if burst < 1 {
		burst = 1
	}
	return &Webhook{
		url:     url,
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(ratePerSec), burst),
	}
}

func (w *Webhook) Name() string {
	return "webhook"
}

func (w *Webhook) Notify(ctx context.Context, notification *Notification) error {
	if err := w.limiter.Wait(ctx); err != nil {
		return errors.Wrap(err, "rate limiter")
	}

	body, err := json.Marshal(notification)
	if err != nil {
		return errors.Wrap(err, "failed to marshal notification")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "failed to post notification")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		// Drain a little of the body for the error message, not all of it.
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return errors.Errorf("webhook returned %d: %s", resp.StatusCode, string(snippet))
	}
	return nil
}
