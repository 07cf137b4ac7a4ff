package forecast_test

import (
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/ogulcanaydogan/fuel-guardian/pkg/forecast"
	"github.com/ogulcanaydogan/fuel-guardian/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

// supply builds an active record dayOffset days after t0.
func supply(dayOffset float64, before, added, runtime float64) model.SupplyRecord {
	return model.SupplyRecord{
		ID:           fmt.Sprintf("rec-%.1f", dayOffset),
		SiteID:       "site-1",
		Timestamp:    t0.Add(time.Duration(dayOffset * float64(24*time.Hour))),
		FuelBefore:   before,
		FuelAdded:    added,
		RuntimeHours: runtime,
		Status:       model.SupplyActive,
	}
}

func TestCompute_MeanOfUniformIntervals(t *testing.T) {
	history := []model.SupplyRecord{
		supply(0, 50, 100, 1000),  // 150 after
		supply(5, 100, 50, 1010),  // 50 gal over 10h
		supply(10, 98, 50, 1020),  // 52 gal over 10h
	}

	est, err := forecast.Compute(history, forecast.DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, forecast.MethodMean, est.Method)
	assert.InDelta(t, 5.1, est.HourlyRate, 1e-9)
	assert.Equal(t, 3, est.Records)
	assert.Equal(t, 2, est.ValidIntervals)
	assert.Equal(t, 2, est.RetainedSamples)
	assert.InDelta(t, 148.0, est.CurrentFuel, 1e-9)
	assert.InDelta(t, 148.0/5.1, est.RemainingHours, 1e-9)
	assert.InDelta(t, 2.0, est.DailyUsage, 1e-9)
	assert.False(t, est.UsageDefaulted)
	assert.InDelta(t, 148.0/5.1/2.0, est.DaysRemaining, 1e-9)
	assert.InDelta(t, 1020+148.0/5.1, est.ExhaustionRuntime, 1e-9)
	assert.Equal(t, "rec-10.0", est.Anchor.ID)

	wantAt := history[2].Timestamp.Add(time.Duration(est.DaysRemaining * float64(24*time.Hour)))
	assert.WithinDuration(t, wantAt, est.ExhaustionAt, time.Millisecond)
}

func TestCompute_RegressionOnVaryingIntervals(t *testing.T) {
	history := []model.SupplyRecord{
		supply(0, 100, 200, 0),   // 300 after
		supply(2, 250, 50, 10),   // 50 over 10h
		supply(5, 200, 100, 30),  // 100 over 20h
		supply(9, 150, 150, 60),  // 150 over 30h
	}

	est, err := forecast.Compute(history, forecast.DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, forecast.MethodRegression, est.Method)
	assert.InDelta(t, 5.0, est.HourlyRate, 1e-9)
	assert.Equal(t, 3, est.RetainedSamples)
}

func TestCompute_SingleSurvivingSample(t *testing.T) {
	opts := forecast.DefaultOptions()
	opts.MinIntervals = 1

	history := []model.SupplyRecord{
		supply(0, 100, 100, 0),
		supply(3, 200, 0, 10),  // no consumption: invalid
		supply(6, 160, 40, 20), // 40 over 10h
	}

	est, err := forecast.Compute(history, opts)
	require.NoError(t, err)
	assert.Equal(t, forecast.MethodSingle, est.Method)
	assert.InDelta(t, 4.0, est.HourlyRate, 1e-9)
}

func TestCompute_DropsOutliers(t *testing.T) {
	history := []model.SupplyRecord{
		supply(0, 100, 500, 0),
		supply(1, 550, 50, 10),  // 5.0
		supply(2, 549, 51, 20),  // 5.1
		supply(3, 551, 49, 30),  // 4.9
		supply(4, 550, 50, 40),  // 5.0
		supply(5, 100, 500, 50), // 50.0, outlier
	}

	est, err := forecast.Compute(history, forecast.DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 5, est.ValidIntervals)
	assert.Equal(t, 4, est.RetainedSamples)
	assert.Equal(t, forecast.MethodMean, est.Method)
	assert.InDelta(t, 5.0, est.HourlyRate, 1e-9)
}

func TestCompute_SkipsOutlierFilterOnSmallSamples(t *testing.T) {
	history := []model.SupplyRecord{
		supply(0, 100, 500, 0),
		supply(1, 550, 50, 10),  // 5
		supply(2, 550, 50, 20),  // 5
		supply(3, 100, 500, 30), // 50
	}

	est, err := forecast.Compute(history, forecast.DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 3, est.RetainedSamples)
	assert.InDelta(t, 20.0, est.HourlyRate, 1e-9)
}

func TestCompute_InsufficientHistory(t *testing.T) {
	tests := []struct {
		name    string
		history []model.SupplyRecord
	}{
		{"empty", nil},
		{"two records", []model.SupplyRecord{supply(0, 10, 10, 0), supply(1, 10, 10, 5)}},
		{"cancelled do not count", func() []model.SupplyRecord {
			h := []model.SupplyRecord{supply(0, 10, 100, 0), supply(1, 60, 50, 10), supply(2, 60, 50, 20)}
			h[1].Status = model.SupplyCancelled
			return h
		}()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			est, err := forecast.Compute(tt.history, forecast.DefaultOptions())
			assert.Nil(t, est)
			assert.ErrorIs(t, err, forecast.ErrInsufficientHistory)
			assert.Equal(t, "insufficient_history", forecast.ReasonOf(err))
		})
	}
}

func TestCompute_InsufficientValidIntervals(t *testing.T) {
	history := []model.SupplyRecord{
		supply(0, 100, 100, 50),
		supply(1, 150, 50, 40), // runtime went backwards
		supply(2, 250, 0, 40),  // no runtime, fuel went up
	}

	_, err := forecast.Compute(history, forecast.DefaultOptions())
	assert.ErrorIs(t, err, forecast.ErrInsufficientValidIntervals)
}

func TestCompute_NoValidConsumptionRate(t *testing.T) {
	inf := math.Inf(1)
	history := []model.SupplyRecord{
		supply(0, 10, inf, 0),
		supply(1, 10, inf, 10),
		supply(2, 10, inf, 20),
		supply(3, 10, inf, 30),
		supply(4, 10, inf, 40),
	}

	_, err := forecast.Compute(history, forecast.DefaultOptions())
	assert.ErrorIs(t, err, forecast.ErrNoValidConsumptionRate)
}

func TestCompute_NonPositiveRate(t *testing.T) {
	history := []model.SupplyRecord{
		supply(0, 100, 100, 0),  // 200 after
		supply(1, 100, 100, 10), // 100 over 10h
		supply(2, 150, 50, 30),  // 50 over 20h
		supply(3, 190, 10, 60),  // 10 over 30h
	}

	_, err := forecast.Compute(history, forecast.DefaultOptions())
	assert.ErrorIs(t, err, forecast.ErrNonPositiveRate)
}

func TestCompute_NoRemainingFuel(t *testing.T) {
	history := []model.SupplyRecord{
		supply(0, 50, 50, 0),  // 100 after
		supply(2, 50, 50, 10), // 50 over 10h
		supply(5, 0, 0, 30),   // 100 over 20h, tank empty
	}

	_, err := forecast.Compute(history, forecast.DefaultOptions())
	assert.ErrorIs(t, err, forecast.ErrNoRemainingFuel)
}

func TestCompute_LowFuelWithoutRefillStillForecasts(t *testing.T) {
	history := []model.SupplyRecord{
		supply(0, 50, 50, 0),
		supply(2, 50, 50, 10),
		supply(5, 10, 0, 28), // 90 over 18h
	}

	est, err := forecast.Compute(history, forecast.DefaultOptions())
	require.NoError(t, err)
	assert.InDelta(t, 10.0, est.CurrentFuel, 1e-9)
}

func TestCompute_SortsWithoutMutatingInput(t *testing.T) {
	history := []model.SupplyRecord{
		supply(10, 98, 50, 1020),
		supply(0, 50, 100, 1000),
		supply(5, 100, 50, 1010),
	}
	snapshot := append([]model.SupplyRecord(nil), history...)

	est, err := forecast.Compute(history, forecast.DefaultOptions())
	require.NoError(t, err)
	assert.InDelta(t, 5.1, est.HourlyRate, 1e-9)
	assert.Equal(t, snapshot, history)
}

func TestCompute_ExhaustionNeverBeforeAnchor(t *testing.T) {
	histories := [][]model.SupplyRecord{
		{supply(0, 50, 100, 1000), supply(5, 100, 50, 1010), supply(10, 98, 50, 1020)},
		{supply(0, 100, 200, 0), supply(2, 250, 50, 10), supply(5, 200, 100, 30), supply(9, 150, 150, 60)},
		{supply(0, 50, 50, 0), supply(0.2, 50, 50, 10), supply(0.4, 10, 0, 28)},
		{supply(0, 1, 1e6, 0), supply(400, 1e6-1e-3, 0, 1), supply(800, 1e6-2e-3, 1e6, 2)},
	}

	for i, h := range histories {
		est, err := forecast.Compute(h, forecast.DefaultOptions())
		require.NoError(t, err, "history %d", i)
		assert.False(t, est.ExhaustionAt.Before(est.Anchor.Timestamp), "history %d", i)
		assert.GreaterOrEqual(t, est.ExhaustionRuntime, est.Anchor.RuntimeHours, "history %d", i)
	}
}

func TestDailyUsage(t *testing.T) {
	opts := forecast.DefaultOptions()

	tests := []struct {
		name          string
		first, last   model.SupplyRecord
		want          float64
		wantDefaulted bool
	}{
		{"regular", supply(0, 0, 0, 100), supply(10, 0, 0, 160), 6, false},
		{"short span", supply(0, 0, 0, 100), supply(0.5, 0, 0, 110), 8, true},
		{"no runtime", supply(0, 0, 0, 100), supply(10, 0, 0, 100), 8, true},
		{"runtime backwards", supply(0, 0, 0, 100), supply(10, 0, 0, 90), 8, true},
		{"capped at a full day", supply(0, 0, 0, 0), supply(2, 0, 0, 100), 24, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, defaulted := forecast.DailyUsage(tt.first, tt.last, opts)
			assert.InDelta(t, tt.want, got, 1e-9)
			assert.Equal(t, tt.wantDefaulted, defaulted)
		})
	}
}

func TestIntervals(t *testing.T) {
	records := []model.SupplyRecord{
		supply(0, 50, 100, 1000),
		supply(5, 100, 50, 1010),
		supply(10, 160, 50, 1010),
	}

	ivs := forecast.Intervals(records)
	require.Len(t, ivs, 2)
	assert.True(t, ivs[0].Valid())
	assert.InDelta(t, 5.0, ivs[0].Rate(), 1e-9)
	assert.False(t, ivs[1].Valid())
	assert.Nil(t, forecast.Intervals(records[:1]))
}

func TestOptions_ZeroValueUsesDefaults(t *testing.T) {
	history := []model.SupplyRecord{
		supply(0, 50, 100, 1000),
		supply(5, 100, 50, 1010),
		supply(10, 98, 50, 1020),
	}

	withZero, err := forecast.Compute(history, forecast.Options{})
	require.NoError(t, err)
	withDefaults, err := forecast.Compute(history, forecast.DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, withDefaults, withZero)
}
