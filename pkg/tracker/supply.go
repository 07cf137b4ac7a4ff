package tracker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/ogulcanaydogan/fuel-guardian/pkg/model"
	"github.com/ogulcanaydogan/fuel-guardian/pkg/storage"
)

// SupplyTracker is the entry point for recording refueling events.
type SupplyTracker struct {
	storage  storage.Storage
	validate *validator.Validate
	logger   *slog.Logger
}

// NewSupplyTracker creates a supply tracker.
func NewSupplyTracker(store storage.Storage, logger *slog.Logger) *SupplyTracker {
	return &SupplyTracker{
		storage:  store,
		validate: validator.New(),
		logger:   logger,
	}
}

// Record validates and stores a supply record for an existing site.
func (t *SupplyTracker) Record(ctx context.Context, record *model.SupplyRecord) error {
	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now().UTC()
	}
	if record.Status == "" {
		record.Status = model.SupplyActive
	}

	if err := t.validate.Struct(record); err != nil {
		return fmt.Errorf("invalid supply record: %w", err)
	}

	site, err := t.storage.GetSite(ctx, record.SiteID)
	if err != nil {
		return fmt.Errorf("lookup site: %w", err)
	}

	if err := t.storage.RecordSupply(ctx, record); err != nil {
		return fmt.Errorf("store supply: %w", err)
	}

	t.logger.Info("supply recorded",
		"site", site.Code,
		"work_order", record.WorkOrder,
		"fuel_before", record.FuelBefore,
		"fuel_added", record.FuelAdded,
		"runtime_hours", record.RuntimeHours,
	)
	return nil
}

// Cancel removes a supply record from forecasting without deleting it.
func (t *SupplyTracker) Cancel(ctx context.Context, id string) error {
	if err := t.storage.SetSupplyStatus(ctx, id, model.SupplyCancelled); err != nil {
		return fmt.Errorf("cancel supply: %w", err)
	}
	t.logger.Info("supply cancelled", "record", id)
	return nil
}

// History returns the active records of a site, oldest first.
func (t *SupplyTracker) History(ctx context.Context, siteID string) ([]model.SupplyRecord, error) {
	return t.storage.ActiveHistory(ctx, siteID)
}

// AllHistory returns every record of a site, cancelled ones included.
func (t *SupplyTracker) AllHistory(ctx context.Context, siteID string) ([]model.SupplyRecord, error) {
	return t.storage.SupplyHistory(ctx, siteID)
}
