package alerts

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ogulcanaydogan/fuel-guardian/pkg/model"
)

// WebhookNotifier sends notifications to a generic HTTP webhook.
type WebhookNotifier struct {
	url    string
	secret string
	client *http.Client
}

// NewWebhookNotifier creates a generic webhook notifier.
// If secret is non-empty, requests are signed with HMAC-SHA256.
func NewWebhookNotifier(url, secret string) *WebhookNotifier {
	return &WebhookNotifier{
		url:    url,
		secret: secret,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (w *WebhookNotifier) Name() string { return "webhook" }

func (w *WebhookNotifier) Send(ctx context.Context, n Notification) error {
	payload := webhookPayload{
		Event:     "fuel_alert.opened",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		AlertID:   n.AlertID,
		Severity:  n.Severity,
		SiteCode:  n.SiteCode,
		Site: webhookSite{
			ID:   n.SiteID,
			Code: n.SiteCode,
			Name: n.SiteName,
		},
		Technician: n.Recipient,
		Message:    n.Message,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Fuel-Guardian/1.0")
	req.Header.Set("X-Fuel-Guardian-Event", payload.Event)

	if w.secret != "" {
		sig := Sign(body, []byte(w.secret))
		req.Header.Set("X-Signature-256", "sha256="+sig)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("send webhook notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// webhookPayload keeps site_code and severity at the top level so receivers
// can route without decoding the nested site.
type webhookPayload struct {
	Event      string         `json:"event"`
	Timestamp  string         `json:"timestamp"`
	AlertID    string         `json:"alert_id"`
	Severity   model.Severity `json:"severity"`
	SiteCode   string         `json:"site_code"`
	Site       webhookSite    `json:"site"`
	Technician Recipient      `json:"technician"`
	Message    string         `json:"message"`
}

type webhookSite struct {
	ID   string `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}

// Sign returns the hex HMAC-SHA256 of message under key, as sent in the
// X-Signature-256 header.
func Sign(message, key []byte) string {
	mac := hmac.New(sha256.New, key)
	mac.Write(message)
	return hex.EncodeToString(mac.Sum(nil))
}
