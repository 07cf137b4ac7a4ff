package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/ogulcanaydogan/fuel-guardian/pkg/forecast"
	"github.com/ogulcanaydogan/fuel-guardian/pkg/metrics"
	"github.com/ogulcanaydogan/fuel-guardian/pkg/model"
	"github.com/ogulcanaydogan/fuel-guardian/pkg/storage"
)

// ErrPersistence marks a storage failure while producing a prediction.
var ErrPersistence = errors.New("persistence failure")

// Predictor runs the forecast for a site and stores the result.
type Predictor struct {
	storage storage.Storage
	opts    forecast.Options
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewPredictor creates a predictor. m may be nil.
func NewPredictor(store storage.Storage, opts forecast.Options, m *metrics.Metrics, logger *slog.Logger) *Predictor {
	return &Predictor{
		storage: store,
		opts:    opts,
		metrics: m,
		logger:  logger,
	}
}

// Predict loads the site's active history, forecasts exhaustion and upserts
// the site's prediction. Forecast failures are returned as the forecast
// sentinel errors and write nothing.
func (p *Predictor) Predict(ctx context.Context, siteID string) (*model.Prediction, *forecast.Estimate, error) {
	history, err := p.storage.ActiveHistory(ctx, siteID)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: load history: %w", ErrPersistence, err)
	}

	est, err := forecast.Compute(history, p.opts)
	if err != nil {
		reason := forecast.ReasonOf(err)
		p.metrics.PredictionFailed(reason)
		p.logger.Info("site not forecastable", "site", siteID, "reason", reason, "detail", err)
		return nil, nil, err
	}

	prediction := &model.Prediction{
		SiteID:            siteID,
		ExhaustionAt:      est.ExhaustionAt.UTC(),
		ExhaustionRuntime: round2(est.ExhaustionRuntime),
		AnchorRecordID:    est.Anchor.ID,
	}
	if err := p.storage.UpsertPrediction(ctx, prediction); err != nil {
		return nil, nil, fmt.Errorf("%w: store prediction: %w", ErrPersistence, err)
	}

	p.metrics.PredictionGenerated()
	p.logger.Debug("prediction stored",
		"site", siteID,
		"method", est.Method,
		"rate_gph", est.HourlyRate,
		"days_remaining", est.DaysRemaining,
		"exhaustion_at", prediction.ExhaustionAt,
	)

	return prediction, est, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
