package alerts

import (
	"context"
	"errors"

	"github.com/ogulcanaydogan/fuel-guardian/pkg/model"
)

// ErrNoRecipient is returned by notifiers that need an address the site
// does not have. The dispatcher records it as skipped, not failed.
var ErrNoRecipient = errors.New("no recipient")

// Recipient is the person responsible for refueling a site.
type Recipient struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

// Notification is an outbound message about an alert that was opened.
type Notification struct {
	AlertID   string         `json:"alert_id"`
	SiteID    string         `json:"site_id"`
	SiteCode  string         `json:"site_code"`
	SiteName  string         `json:"site_name"`
	Recipient Recipient      `json:"recipient"`
	Severity  model.Severity `json:"severity"`
	Message   string         `json:"message"`
}

// Notifier sends notifications to external systems.
type Notifier interface {
	// Name returns the notifier identifier.
	Name() string

	// Send delivers a notification. Implementations must be safe for concurrent use.
	Send(ctx context.Context, n Notification) error
}
