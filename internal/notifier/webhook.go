package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/notifyhub/suggestion-worker/internal/domain"
)

// WebhookRequest is the JSON body posted to the webhook.
type WebhookRequest struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
	From    string `json:"from"`
}

// WebhookNotifier delivers messages by POSTing them as JSON.
// The URL is injected from config so tests can point to a local mock.
type WebhookNotifier struct {
	url        string
	from       string
	timeout    time.Duration
	httpClient *http.Client
}

func NewWebhookNotifier(url, from string, timeout time.Duration) *WebhookNotifier {
	return &WebhookNotifier{
		url:        url,
		from:       from,
		timeout:    timeout,
		httpClient: &http.Client{},
	}
}

// Send posts the message and treats any 2xx answer as accepted.
func (n *WebhookNotifier) Send(ctx context.Context, msg domain.Message) error {
	body, err := json.Marshal(WebhookRequest{
		To:      msg.To,
		Subject: msg.Subject,
		Body:    msg.Body,
		From:    n.from,
	})
	if err != nil {
		return domain.DeliveryError("webhook send", fmt.Errorf("marshal request: %w", err))
	}

	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return domain.DeliveryError("webhook send", fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return domain.DeliveryError("webhook send", fmt.Errorf("send request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return domain.DeliveryError("webhook send", fmt.Errorf("unexpected webhook status: %d", resp.StatusCode))
	}
	return nil
}

// compile-time check that WebhookNotifier implements Notifier
var _ Notifier = (*WebhookNotifier)(nil)
