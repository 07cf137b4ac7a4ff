package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/ogulcanaydogan/fuel-guardian/pkg/alerts"
	"github.com/ogulcanaydogan/fuel-guardian/pkg/forecast"
	"github.com/ogulcanaydogan/fuel-guardian/pkg/lock"
	"github.com/ogulcanaydogan/fuel-guardian/pkg/metrics"
	"github.com/ogulcanaydogan/fuel-guardian/pkg/model"
	"github.com/ogulcanaydogan/fuel-guardian/pkg/storage"
	"golang.org/x/sync/errgroup"
)

// Skip reasons reported for sites that were not reconciled. Forecast
// failures use forecast.ReasonOf labels.
const (
	SkipLocked      = "locked"
	SkipPersistence = "persistence"
)

// Predictor forecasts and stores the prediction for a site.
type Predictor interface {
	Predict(ctx context.Context, siteID string) (*model.Prediction, *forecast.Estimate, error)
}

// Dispatcher delivers notifications. It never fails the caller.
type Dispatcher interface {
	Dispatch(ctx context.Context, n alerts.Notification) []alerts.Delivery
}

// Config tunes a Manager.
type Config struct {
	Thresholds Thresholds
	Workers    int
	// Now returns the reference time of a cycle. Defaults to time.Now.
	Now func() time.Time
}

// Manager runs reconciliation cycles over every active site.
type Manager struct {
	store      storage.Storage
	predictor  Predictor
	dispatcher Dispatcher
	locker     lock.Locker
	metrics    *metrics.Metrics
	logger     *slog.Logger
	cfg        Config
}

// NewManager creates a manager. m may be nil.
func NewManager(store storage.Storage, predictor Predictor, dispatcher Dispatcher, locker lock.Locker, m *metrics.Metrics, logger *slog.Logger, cfg Config) *Manager {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Thresholds == (Thresholds{}) {
		cfg.Thresholds = DefaultThresholds()
	}
	return &Manager{
		store:      store,
		predictor:  predictor,
		dispatcher: dispatcher,
		locker:     locker,
		metrics:    m,
		logger:     logger,
		cfg:        cfg,
	}
}

// SiteResult is what happened to one site in a cycle.
type SiteResult struct {
	SiteID     string
	SiteCode   string
	Severity   model.Severity
	Days       int
	Action     Action
	AlertID    string
	SkipReason string
	Err        error
	Deliveries []alerts.Delivery
}

// CycleReport summarizes a reconciliation cycle.
type CycleReport struct {
	Sites     int
	Predicted int
	Skipped   map[string]int

	Created   int
	Updated   int
	Replaced  int
	Closed    int
	Unchanged int

	NotificationsSent    int
	NotificationsFailed  int
	NotificationsSkipped int

	Duration time.Duration
	Results  []SiteResult
}

func (r *CycleReport) add(res SiteResult) {
	r.Results = append(r.Results, res)
	if res.SkipReason != "" {
		r.Skipped[res.SkipReason]++
		return
	}

	r.Predicted++
	switch res.Action {
	case ActionCreate:
		r.Created++
	case ActionUpdate:
		r.Updated++
	case ActionReplace:
		r.Replaced++
	case ActionClose:
		r.Closed++
	default:
		r.Unchanged++
	}

	for _, d := range res.Deliveries {
		switch d.Status {
		case model.DeliverySent:
			r.NotificationsSent++
		case model.DeliveryFailed:
			r.NotificationsFailed++
		case model.DeliverySkipped:
			r.NotificationsSkipped++
		}
	}
}

// Run reconciles every active site once. One site's failure never stops the
// others; the returned error is only for failing to list sites.
func (m *Manager) Run(ctx context.Context) (*CycleReport, error) {
	start := time.Now()
	now := m.cfg.Now()

	sites, err := m.store.ListSites(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("list sites: %w", err)
	}

	report := &CycleReport{Sites: len(sites), Skipped: make(map[string]int)}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.cfg.Workers)

	for _, site := range sites {
		g.Go(func() error {
			res := m.reconcile(gctx, site, now)
			mu.Lock()
			report.add(res)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(report.Results, func(i, j int) bool {
		return report.Results[i].SiteCode < report.Results[j].SiteCode
	})
	report.Duration = time.Since(start)
	m.metrics.ObserveCycle(report.Duration)

	m.logger.Info("cycle completed",
		"sites", report.Sites,
		"predicted", report.Predicted,
		"created", report.Created,
		"updated", report.Updated,
		"replaced", report.Replaced,
		"closed", report.Closed,
		"notifications_sent", report.NotificationsSent,
		"notifications_failed", report.NotificationsFailed,
		"duration", report.Duration,
	)
	return report, nil
}

// reconcile runs predict, decide and apply for one site under its lock, then
// notifies once the lock is released.
func (m *Manager) reconcile(ctx context.Context, site model.Site, now time.Time) SiteResult {
	res, notification := m.reconcileLocked(ctx, site, now)
	if notification != nil {
		res.Deliveries = m.dispatcher.Dispatch(ctx, *notification)
	}
	return res
}

func (m *Manager) reconcileLocked(ctx context.Context, site model.Site, now time.Time) (SiteResult, *alerts.Notification) {
	res := SiteResult{SiteID: site.ID, SiteCode: site.Code, Action: ActionNone}
	logger := m.logger.With("site", site.Code)

	release, err := m.locker.Acquire(ctx, lock.SiteKey(site.ID))
	if err != nil {
		if errors.Is(err, lock.ErrLocked) {
			logger.Info("site skipped, another cycle holds it")
			return m.skip(res, SkipLocked, err), nil
		}
		logger.Error("acquire site lock", "error", err)
		return m.skip(res, SkipPersistence, err), nil
	}
	defer release()

	prediction, _, err := m.predictor.Predict(ctx, site.ID)
	if err != nil {
		if forecast.IsNotForecastable(err) {
			res.SkipReason = forecast.ReasonOf(err)
			res.Err = err
			return res, nil
		}
		logger.Error("predict", "error", err)
		return m.skip(res, SkipPersistence, err), nil
	}

	existing, err := m.store.OpenAlert(ctx, site.ID)
	if err != nil {
		logger.Error("load open alert", "error", err)
		return m.skip(res, SkipPersistence, err), nil
	}

	outcome := Evaluate(prediction, existing, now, m.cfg.Thresholds)
	res.Severity = outcome.Severity
	res.Days = outcome.Days
	res.Action = outcome.Action

	alertID, err := m.apply(ctx, site, prediction, existing, outcome)
	if err != nil {
		logger.Error("apply alert transition", "action", outcome.Action, "error", err)
		res.Action = ActionNone
		return m.skip(res, SkipPersistence, err), nil
	}
	res.AlertID = alertID

	if outcome.Action != ActionNone {
		m.metrics.Transition(string(outcome.Action))
		logger.Info("alert transition",
			"action", outcome.Action,
			"severity", outcome.Severity,
			"days_remaining", outcome.Days,
			"alert", alertID,
		)
	}

	if !outcome.Notify {
		return res, nil
	}
	return res, &alerts.Notification{
		AlertID:   alertID,
		SiteID:    site.ID,
		SiteCode:  site.Code,
		SiteName:  site.Name,
		Recipient: alerts.Recipient{Name: site.TechnicianName, Email: site.TechnicianEmail},
		Severity:  outcome.Severity,
		Message:   outcome.Message,
	}
}

func (m *Manager) apply(ctx context.Context, site model.Site, prediction *model.Prediction, existing *model.Alert, o Outcome) (string, error) {
	newAlert := func() *model.Alert {
		return &model.Alert{
			SiteID:       site.ID,
			PredictionID: prediction.ID,
			Severity:     o.Severity,
			Message:      o.Message,
		}
	}

	switch o.Action {
	case ActionCreate:
		a := newAlert()
		if err := m.store.CreateAlert(ctx, a); err != nil {
			return "", err
		}
		return a.ID, nil
	case ActionUpdate:
		if err := m.store.UpdateAlert(ctx, existing.ID, o.Message, prediction.ID); err != nil {
			return "", err
		}
		return existing.ID, nil
	case ActionReplace:
		a := newAlert()
		if err := m.store.ReplaceAlert(ctx, existing.ID, a); err != nil {
			return "", err
		}
		return a.ID, nil
	case ActionClose:
		if err := m.store.CloseAlert(ctx, existing.ID); err != nil {
			return "", err
		}
		return existing.ID, nil
	default:
		if existing != nil {
			return existing.ID, nil
		}
		return "", nil
	}
}

func (m *Manager) skip(res SiteResult, reason string, err error) SiteResult {
	res.SkipReason = reason
	res.Err = err
	m.metrics.SiteSkipped(reason)
	return res
}
