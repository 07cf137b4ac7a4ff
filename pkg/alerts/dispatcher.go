package alerts

import (
	"context"
	"errors"
	"log/slog"

	"github.com/ogulcanaydogan/fuel-guardian/pkg/model"
	"golang.org/x/sync/errgroup"
)

// LogWriter persists delivery attempts.
type LogWriter interface {
	LogNotification(ctx context.Context, entry *model.NotificationLog) error
}

// Delivery is the outcome of sending one notification on one channel.
type Delivery struct {
	Channel string
	Status  model.DeliveryStatus
	Err     error
}

// Dispatcher fans a notification out to every configured notifier and
// records each attempt.
type Dispatcher struct {
	notifiers []Notifier
	logs      LogWriter
	logger    *slog.Logger

	// OnDelivery, when set, is called once per channel attempt.
	OnDelivery func(channel string, status model.DeliveryStatus)
}

// NewDispatcher creates a dispatcher. logs may be nil when attempts should
// not be persisted.
func NewDispatcher(logs LogWriter, logger *slog.Logger, notifiers ...Notifier) *Dispatcher {
	return &Dispatcher{
		notifiers: notifiers,
		logs:      logs,
		logger:    logger,
	}
}

// Channels returns the names of the configured notifiers.
func (d *Dispatcher) Channels() []string {
	names := make([]string, len(d.notifiers))
	for i, n := range d.notifiers {
		names[i] = n.Name()
	}
	return names
}

// Dispatch sends n on every channel. Failures are logged and recorded but
// never returned; the result has one entry per notifier in configuration order.
func (d *Dispatcher) Dispatch(ctx context.Context, n Notification) []Delivery {
	results := make([]Delivery, len(d.notifiers))

	var g errgroup.Group
	for i, notifier := range d.notifiers {
		g.Go(func() error {
			results[i] = d.deliver(ctx, notifier, n)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (d *Dispatcher) deliver(ctx context.Context, notifier Notifier, n Notification) Delivery {
	result := Delivery{Channel: notifier.Name(), Status: model.DeliverySent}
	detail := "delivered"

	if err := notifier.Send(ctx, n); err != nil {
		result.Err = err
		detail = err.Error()
		if errors.Is(err, ErrNoRecipient) {
			result.Status = model.DeliverySkipped
			d.logger.Info("notification skipped",
				"channel", result.Channel, "site", n.SiteCode, "alert", n.AlertID, "reason", detail)
		} else {
			result.Status = model.DeliveryFailed
			d.logger.Error("notification failed",
				"channel", result.Channel, "site", n.SiteCode, "alert", n.AlertID, "error", err)
		}
	} else {
		d.logger.Info("notification sent",
			"channel", result.Channel, "site", n.SiteCode, "alert", n.AlertID)
	}

	if d.OnDelivery != nil {
		d.OnDelivery(result.Channel, result.Status)
	}

	if d.logs != nil {
		entry := &model.NotificationLog{
			AlertID:   n.AlertID,
			SiteID:    n.SiteID,
			Channel:   result.Channel,
			Recipient: recipientFor(result.Channel, n),
			Status:    result.Status,
			Detail:    detail,
		}
		// Recorded even if the cycle was cancelled mid-send.
		if err := d.logs.LogNotification(context.WithoutCancel(ctx), entry); err != nil {
			d.logger.Error("record notification", "channel", result.Channel, "alert", n.AlertID, "error", err)
		}
	}

	return result
}

func recipientFor(channel string, n Notification) string {
	if channel == "email" {
		return n.Recipient.Email
	}
	return n.Recipient.Name
}
