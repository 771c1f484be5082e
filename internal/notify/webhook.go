package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// WebhookNotifier implements Notifier by POSTing alert JSON to a generic
// HTTP endpoint.
type WebhookNotifier struct {
	url     string
	headers map[string]string
	client  *http.Client
}

// NewWebhookNotifier creates a new WebhookNotifier.
func NewWebhookNotifier(url string, opts ...WebhookOption) *WebhookNotifier {
	w := &WebhookNotifier{
		url:    url,
		client: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// WebhookOption configures a WebhookNotifier.
type WebhookOption func(*WebhookNotifier)

// WithWebhookHTTPClient sets a custom HTTP client.
func WithWebhookHTTPClient(c *http.Client) WebhookOption {
	return func(w *WebhookNotifier) {
		w.client = c
	}
}

// WithWebhookHeaders sets extra headers sent with every request, such as
// an Authorization token.
func WithWebhookHeaders(headers map[string]string) WebhookOption {
	return func(w *WebhookNotifier) {
		w.headers = headers
	}
}

// webhookBody is the JSON structure posted to the endpoint. Batch sends
// carry every alert in one request.
type webhookBody struct {
	TenantID string         `json:"tenant_id"`
	Alerts   []AlertPayload `json:"alerts"`
}

// SendAlert posts a single alert.
func (w *WebhookNotifier) SendAlert(ctx context.Context, alert *AlertPayload) error {
	return w.post(ctx, webhookBody{
		TenantID: alert.TenantID,
		Alerts:   []AlertPayload{*alert},
	})
}

// SendBatchAlert posts a batch of alerts in one request.
func (w *WebhookNotifier) SendBatchAlert(
	ctx context.Context,
	alerts []AlertPayload,
	tenantID string,
) error {
	return w.post(ctx, webhookBody{
		TenantID: tenantID,
		Alerts:   alerts,
	})
}

func (w *WebhookNotifier) post(ctx context.Context, body webhookBody) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshaling webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		w.url,
		bytes.NewReader(data),
	)
	if err != nil {
		return fmt.Errorf("creating webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range w.headers {
		req.Header.Set(k, v)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return fmt.Errorf("webhook returned %d (body unreadable)", resp.StatusCode)
		}
		return fmt.Errorf("webhook returned %d: %s", resp.StatusCode, respBody)
	}

	return nil
}
