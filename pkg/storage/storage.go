package storage

import (
	"context"
	"errors"

	"github.com/ogulcanaydogan/fuel-guardian/pkg/model"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Storage defines the persistence layer for sites, supply history,
// predictions, alerts and notification logs.
type Storage interface {
	// UpsertSite creates a site or updates the one with the same code.
	UpsertSite(ctx context.Context, site *model.Site) error

	// GetSite retrieves a site by id.
	GetSite(ctx context.Context, id string) (*model.Site, error)

	// GetSiteByCode retrieves a site by its human code.
	GetSiteByCode(ctx context.Context, code string) (*model.Site, error)

	// ListSites returns sites ordered by code. With activeOnly, inactive
	// sites are left out.
	ListSites(ctx context.Context, activeOnly bool) ([]model.Site, error)

	// RecordSupply persists a supply record.
	RecordSupply(ctx context.Context, record *model.SupplyRecord) error

	// SetSupplyStatus changes the status of a supply record.
	SetSupplyStatus(ctx context.Context, id string, status model.SupplyStatus) error

	// ActiveHistory returns a site's active supply records, oldest first.
	ActiveHistory(ctx context.Context, siteID string) ([]model.SupplyRecord, error)

	// SupplyHistory returns every supply record of a site, whatever its
	// status, oldest first.
	SupplyHistory(ctx context.Context, siteID string) ([]model.SupplyRecord, error)

	// UpsertPrediction writes the site's single prediction row. An existing
	// row keeps its id and created_at.
	UpsertPrediction(ctx context.Context, p *model.Prediction) error

	// GetPrediction retrieves the prediction for a site.
	GetPrediction(ctx context.Context, siteID string) (*model.Prediction, error)

	// OpenAlert returns the site's open alert, or nil when there is none.
	OpenAlert(ctx context.Context, siteID string) (*model.Alert, error)

	// CreateAlert inserts a new open alert. It fails if the site already has
	// one open.
	CreateAlert(ctx context.Context, alert *model.Alert) error

	// UpdateAlert rewrites the message and prediction of an open alert.
	UpdateAlert(ctx context.Context, id, message, predictionID string) error

	// CloseAlert moves an open alert to closed.
	CloseAlert(ctx context.Context, id string) error

	// ReplaceAlert closes oldID and opens alert in one transaction.
	ReplaceAlert(ctx context.Context, oldID string, alert *model.Alert) error

	// ListAlerts returns alerts matching the filter, newest first.
	ListAlerts(ctx context.Context, filter model.AlertFilter) ([]model.Alert, error)

	// LogNotification records a delivery attempt.
	LogNotification(ctx context.Context, entry *model.NotificationLog) error

	// ListNotifications returns the delivery attempts for an alert.
	ListNotifications(ctx context.Context, alertID string) ([]model.NotificationLog, error)

	// Close releases resources.
	Close() error
}
