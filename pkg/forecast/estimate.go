// Package forecast estimates when a generator runs out of fuel from its
// refueling history. It is pure: no storage, no clock.
package forecast

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/ogulcanaydogan/fuel-guardian/pkg/model"
)

// Method is how the hourly consumption rate was consolidated.
type Method string

const (
	MethodSingle     Method = "single"
	MethodMean       Method = "mean"
	MethodRegression Method = "regression"
)

// Options tunes the estimator. Zero fields fall back to DefaultOptions.
type Options struct {
	MinRecords        int     `mapstructure:"min_records"`
	MinIntervals      int     `mapstructure:"min_intervals"`
	OutlierMinSamples int     `mapstructure:"outlier_min_samples"`
	IQRMultiplier     float64 `mapstructure:"iqr_multiplier"`
	DefaultDailyHours float64 `mapstructure:"default_daily_hours"`
	MaxDailyHours     float64 `mapstructure:"max_daily_hours"`
	MinDailyHours     float64 `mapstructure:"min_daily_hours"`
}

// DefaultOptions returns the standard estimator settings.
func DefaultOptions() Options {
	return Options{
		MinRecords:        3,
		MinIntervals:      2,
		OutlierMinSamples: 4,
		IQRMultiplier:     1.5,
		DefaultDailyHours: 8,
		MaxDailyHours:     24,
		MinDailyHours:     0.1,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.MinRecords <= 0 {
		o.MinRecords = d.MinRecords
	}
	if o.MinIntervals <= 0 {
		o.MinIntervals = d.MinIntervals
	}
	if o.OutlierMinSamples <= 0 {
		o.OutlierMinSamples = d.OutlierMinSamples
	}
	if o.IQRMultiplier <= 0 {
		o.IQRMultiplier = d.IQRMultiplier
	}
	if o.DefaultDailyHours <= 0 {
		o.DefaultDailyHours = d.DefaultDailyHours
	}
	if o.MaxDailyHours <= 0 {
		o.MaxDailyHours = d.MaxDailyHours
	}
	if o.MinDailyHours <= 0 {
		o.MinDailyHours = d.MinDailyHours
	}
	return o
}

// Interval is the consumption between two chronologically adjacent supplies.
type Interval struct {
	FromID       string
	ToID         string
	RuntimeDelta float64
	FuelConsumed float64
}

// Valid reports whether the interval can contribute a rate sample.
func (iv Interval) Valid() bool {
	return iv.RuntimeDelta > 0 && iv.FuelConsumed > 0
}

// Rate returns fuel consumed per runtime hour.
func (iv Interval) Rate() float64 {
	return iv.FuelConsumed / iv.RuntimeDelta
}

// Estimate is a forward-looking fuel forecast with its intermediates.
type Estimate struct {
	Anchor          model.SupplyRecord
	Records         int
	ValidIntervals  int
	RetainedSamples int
	Method          Method
	HourlyRate      float64
	CurrentFuel     float64
	RemainingHours  float64
	DailyUsage      float64
	UsageDefaulted  bool
	DaysRemaining   float64

	ExhaustionAt      time.Time
	ExhaustionRuntime float64
}

// Intervals pairs every chronologically adjacent record. The result includes
// invalid intervals; callers filter with Valid.
func Intervals(sorted []model.SupplyRecord) []Interval {
	if len(sorted) < 2 {
		return nil
	}
	out := make([]Interval, 0, len(sorted)-1)
	for i := 1; i < len(sorted); i++ {
		prev, curr := sorted[i-1], sorted[i]
		out = append(out, Interval{
			FromID:       prev.ID,
			ToID:         curr.ID,
			RuntimeDelta: curr.RuntimeHours - prev.RuntimeHours,
			FuelConsumed: prev.FuelAfter() - curr.FuelBefore,
		})
	}
	return out
}

// Compute forecasts fuel exhaustion from a site's supply history. Cancelled
// records are ignored and the input slice is never modified.
func Compute(history []model.SupplyRecord, opts Options) (*Estimate, error) {
	opts = opts.withDefaults()

	records := activeSorted(history)
	if len(records) < opts.MinRecords {
		return nil, fmt.Errorf("%w: have %d active records, need %d",
			ErrInsufficientHistory, len(records), opts.MinRecords)
	}

	var valid []Interval
	for _, iv := range Intervals(records) {
		if iv.Valid() {
			valid = append(valid, iv)
		}
	}
	if len(valid) < opts.MinIntervals {
		return nil, fmt.Errorf("%w: have %d, need %d",
			ErrInsufficientValidIntervals, len(valid), opts.MinIntervals)
	}

	kept := filterOutliers(valid, opts.OutlierMinSamples, opts.IQRMultiplier)
	if len(kept) == 0 {
		return nil, fmt.Errorf("%w: all %d samples rejected", ErrNoValidConsumptionRate, len(valid))
	}

	rate, method := consolidateRate(kept)
	if !(rate > 0) {
		return nil, fmt.Errorf("%w: %.4f gal/h (%s)", ErrNonPositiveRate, rate, method)
	}

	first, last := records[0], records[len(records)-1]
	currentFuel := last.FuelAfter()
	if currentFuel <= 0 {
		return nil, fmt.Errorf("%w: %.2f gal after record %s", ErrNoRemainingFuel, currentFuel, last.ID)
	}

	remainingHours := currentFuel / rate
	usage, defaulted := DailyUsage(first, last, opts)
	daysRemaining := remainingHours / usage

	return &Estimate{
		Anchor:            last,
		Records:           len(records),
		ValidIntervals:    len(valid),
		RetainedSamples:   len(kept),
		Method:            method,
		HourlyRate:        rate,
		CurrentFuel:       currentFuel,
		RemainingHours:    remainingHours,
		DailyUsage:        usage,
		UsageDefaulted:    defaulted,
		DaysRemaining:     daysRemaining,
		ExhaustionAt:      last.Timestamp.Add(daysToDuration(daysRemaining)),
		ExhaustionRuntime: last.RuntimeHours + remainingHours,
	}, nil
}

// DailyUsage estimates runtime hours per day between the first and last
// record. It reports true when the default had to be used.
func DailyUsage(first, last model.SupplyRecord, opts Options) (float64, bool) {
	opts = opts.withDefaults()

	days := last.Timestamp.Sub(first.Timestamp).Hours() / 24
	hoursUsed := last.RuntimeHours - first.RuntimeHours
	if days < 1 || hoursUsed <= 0 {
		return opts.DefaultDailyHours, true
	}

	usage := math.Min(hoursUsed/days, opts.MaxDailyHours)
	if usage <= 0 {
		usage = opts.MinDailyHours
	}
	return usage, false
}

func activeSorted(history []model.SupplyRecord) []model.SupplyRecord {
	records := make([]model.SupplyRecord, 0, len(history))
	for _, r := range history {
		if r.IsActive() {
			records = append(records, r)
		}
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Timestamp.Before(records[j].Timestamp)
	})
	return records
}

// daysToDuration converts fractional days, saturating instead of overflowing.
func daysToDuration(days float64) time.Duration {
	ns := days * float64(24*time.Hour)
	if ns >= math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(ns)
}
