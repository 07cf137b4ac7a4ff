// Package roster loads the site roster and historical supply records from a
// YAML file and imports them into storage.
package roster

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ogulcanaydogan/fuel-guardian/pkg/model"
	"github.com/ogulcanaydogan/fuel-guardian/pkg/storage"
	"github.com/ogulcanaydogan/fuel-guardian/pkg/tracker"
	"gopkg.in/yaml.v3"
)

// Roster is the file format.
type Roster struct {
	Sites []SiteEntry `yaml:"sites" validate:"dive"`
}

// SiteEntry describes one site and, optionally, its supply history.
type SiteEntry struct {
	Code       string        `yaml:"code" validate:"required,max=20"`
	Name       string        `yaml:"name" validate:"required"`
	Active     *bool         `yaml:"active,omitempty"`
	Technician Technician    `yaml:"technician"`
	Supplies   []SupplyEntry `yaml:"supplies,omitempty" validate:"dive"`
}

// Technician is the person notified about the site.
type Technician struct {
	Name  string `yaml:"name"`
	Email string `yaml:"email" validate:"omitempty,email"`
}

// SupplyEntry is one historical refueling.
type SupplyEntry struct {
	WorkOrder    string    `yaml:"work_order" validate:"max=40"`
	Timestamp    time.Time `yaml:"timestamp" validate:"required"`
	FuelBefore   float64   `yaml:"fuel_before" validate:"gte=0"`
	FuelAdded    float64   `yaml:"fuel_added" validate:"gte=0"`
	RuntimeHours float64   `yaml:"runtime_hours" validate:"gte=0"`
	Cancelled    bool      `yaml:"cancelled,omitempty"`
}

// Parse decodes and validates a roster.
func Parse(r io.Reader) (*Roster, error) {
	var roster Roster
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&roster); err != nil {
		if err == io.EOF {
			return &roster, nil
		}
		return nil, fmt.Errorf("parse roster: %w", err)
	}

	if err := validator.New().Struct(&roster); err != nil {
		return nil, fmt.Errorf("invalid roster: %w", err)
	}

	seen := make(map[string]bool, len(roster.Sites))
	for _, s := range roster.Sites {
		if seen[s.Code] {
			return nil, fmt.Errorf("invalid roster: duplicate site code %q", s.Code)
		}
		seen[s.Code] = true
	}
	return &roster, nil
}

// Load reads a roster file.
func Load(path string) (*Roster, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open roster: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Result counts what an import changed.
type Result struct {
	Sites           int
	SuppliesAdded   int
	SuppliesSkipped int
}

// Importer writes rosters to storage.
type Importer struct {
	storage  storage.Storage
	supplies *tracker.SupplyTracker
	logger   *slog.Logger
}

// NewImporter creates an importer.
func NewImporter(store storage.Storage, supplies *tracker.SupplyTracker, logger *slog.Logger) *Importer {
	return &Importer{storage: store, supplies: supplies, logger: logger}
}

// Import upserts every site by code and adds its supply records. Records
// already present, matched on timestamp and hour-meter, are skipped whatever
// their stored status, so re-importing never revives a cancelled record.
func (im *Importer) Import(ctx context.Context, r *Roster) (*Result, error) {
	result := &Result{}

	for _, entry := range r.Sites {
		active := true
		if entry.Active != nil {
			active = *entry.Active
		}
		site := &model.Site{
			Code:            entry.Code,
			Name:            entry.Name,
			Active:          active,
			TechnicianName:  entry.Technician.Name,
			TechnicianEmail: entry.Technician.Email,
		}
		if err := im.storage.UpsertSite(ctx, site); err != nil {
			return result, fmt.Errorf("site %s: %w", entry.Code, err)
		}
		result.Sites++

		if len(entry.Supplies) == 0 {
			continue
		}

		history, err := im.supplies.AllHistory(ctx, site.ID)
		if err != nil {
			return result, fmt.Errorf("site %s history: %w", entry.Code, err)
		}
		existing := make(map[supplyKey]bool, len(history))
		for _, h := range history {
			existing[keyOf(h.Timestamp, h.RuntimeHours)] = true
		}

		for _, s := range entry.Supplies {
			key := keyOf(s.Timestamp, s.RuntimeHours)
			if existing[key] {
				result.SuppliesSkipped++
				continue
			}
			existing[key] = true
			status := model.SupplyActive
			if s.Cancelled {
				status = model.SupplyCancelled
			}
			record := &model.SupplyRecord{
				SiteID:       site.ID,
				WorkOrder:    s.WorkOrder,
				Timestamp:    s.Timestamp.UTC(),
				FuelBefore:   s.FuelBefore,
				FuelAdded:    s.FuelAdded,
				RuntimeHours: s.RuntimeHours,
				Status:       status,
			}
			if err := im.supplies.Record(ctx, record); err != nil {
				return result, fmt.Errorf("site %s supply at %s: %w", entry.Code, s.Timestamp.Format(time.RFC3339), err)
			}
			result.SuppliesAdded++
		}
	}

	im.logger.Info("roster imported",
		"sites", result.Sites,
		"supplies_added", result.SuppliesAdded,
		"supplies_skipped", result.SuppliesSkipped,
	)
	return result, nil
}

type supplyKey struct {
	unix    int64
	runtime float64
}

func keyOf(ts time.Time, runtime float64) supplyKey {
	return supplyKey{unix: ts.UTC().UnixNano(), runtime: runtime}
}
