package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultEmailAPIBase = "https://api.sendgrid.com"

// EmailConfig configures the email notifier.
type EmailConfig struct {
	APIKey   string
	BaseURL  string // defaults to the SendGrid API
	FromName string
	FromAddr string
}

// EmailNotifier mails the site technician through the SendGrid v3 mail send API.
type EmailNotifier struct {
	cfg    EmailConfig
	client *http.Client
}

// NewEmailNotifier creates an email notifier.
func NewEmailNotifier(cfg EmailConfig) *EmailNotifier {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultEmailAPIBase
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	return &EmailNotifier{
		cfg: cfg,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (e *EmailNotifier) Name() string { return "email" }

func (e *EmailNotifier) Send(ctx context.Context, n Notification) error {
	if n.Recipient.Email == "" {
		return fmt.Errorf("site %s has no technician email: %w", n.SiteCode, ErrNoRecipient)
	}

	body, err := json.Marshal(e.buildPayload(n))
	if err != nil {
		return fmt.Errorf("marshal email payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.BaseURL+"/v3/mail/send", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create email request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.cfg.APIKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()

	// The API accepts mail asynchronously.
	if resp.StatusCode != http.StatusAccepted {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("email API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	return nil
}

type mailPayload struct {
	Personalizations []mailPersonalization `json:"personalizations"`
	From             mailAddress           `json:"from"`
	Subject          string                `json:"subject"`
	Content          []mailContent         `json:"content"`
	CustomArgs       map[string]string     `json:"custom_args,omitempty"`
}

type mailPersonalization struct {
	To []mailAddress `json:"to"`
}

type mailAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type mailContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

func (e *EmailNotifier) buildPayload(n Notification) mailPayload {
	greeting := "Hello"
	if n.Recipient.Name != "" {
		greeting = "Hello " + n.Recipient.Name
	}

	text := fmt.Sprintf("%s,\n\nA new alert needs your attention.\n\nSite: %s (%s)\nSeverity: %s\nMessage: %s\n",
		greeting, n.SiteName, n.SiteCode, n.Severity, n.Message)
	htmlBody := fmt.Sprintf(
		"<p>%s,</p><p>A new alert needs your attention.</p>"+
			"<p><strong>Site:</strong> %s (%s)<br><strong>Severity:</strong> %s<br><strong>Message:</strong> %s</p>",
		html.EscapeString(greeting), html.EscapeString(n.SiteName), html.EscapeString(n.SiteCode),
		html.EscapeString(string(n.Severity)), html.EscapeString(n.Message))

	return mailPayload{
		Personalizations: []mailPersonalization{{
			To: []mailAddress{{Email: n.Recipient.Email, Name: n.Recipient.Name}},
		}},
		From:    mailAddress{Email: e.cfg.FromAddr, Name: e.cfg.FromName},
		Subject: fmt.Sprintf("[ALERT] Action required at site %s", n.SiteName),
		Content: []mailContent{
			{Type: "text/plain", Value: text},
			{Type: "text/html", Value: htmlBody},
		},
		CustomArgs: map[string]string{"alert_id": n.AlertID},
	}
}
