package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/ogulcanaydogan/fuel-guardian/pkg/lifecycle"
	"github.com/ogulcanaydogan/fuel-guardian/pkg/model"
	"github.com/ogulcanaydogan/fuel-guardian/pkg/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server provides the read-only status API.
type Server struct {
	storage    storage.Storage
	thresholds lifecycle.Thresholds
	mux        *http.ServeMux
	logger     *slog.Logger
	now        func() time.Time
}

// NewServer creates a status server. Metrics are served from gatherer.
func NewServer(store storage.Storage, gatherer prometheus.Gatherer, thresholds lifecycle.Thresholds, logger *slog.Logger) *Server {
	s := &Server{
		storage:    store,
		thresholds: thresholds,
		mux:        http.NewServeMux(),
		logger:     logger,
		now:        time.Now,
	}
	s.routes(gatherer)
	return s
}

func (s *Server) routes(gatherer prometheus.Gatherer) {
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	s.mux.HandleFunc("GET /api/v1/alerts", s.handleAlerts)
	s.mux.HandleFunc("GET /api/v1/sites/{code}/prediction", s.handlePrediction)
}

// Handler returns the HTTP handler for this server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleAlerts lists open alerts. ?state=closed or ?state=all widen the
// listing; ?severity and ?site narrow it.
func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	q := r.URL.Query()
	filter := model.AlertFilter{
		State:    model.AlertOpen,
		Severity: model.Severity(q.Get("severity")),
	}
	switch state := q.Get("state"); state {
	case "", "open":
	case "closed":
		filter.State = model.AlertClosed
	case "all":
		filter.State = ""
	default:
		http.Error(w, "unknown state "+state, http.StatusBadRequest)
		return
	}

	if code := q.Get("site"); code != "" {
		site, err := s.storage.GetSiteByCode(ctx, code)
		if err != nil {
			s.notFoundOr500(w, err, "lookup site")
			return
		}
		filter.SiteID = site.ID
	}

	list, err := s.storage.ListAlerts(ctx, filter)
	if err != nil {
		s.logger.Error("list alerts", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if list == nil {
		list = []model.Alert{}
	}
	writeJSON(w, http.StatusOK, list)
}

type predictionResponse struct {
	SiteCode      string            `json:"site_code"`
	SiteName      string            `json:"site_name"`
	Prediction    *model.Prediction `json:"prediction"`
	DaysRemaining int               `json:"days_remaining"`
	Severity      model.Severity    `json:"severity"`
}

func (s *Server) handlePrediction(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	site, err := s.storage.GetSiteByCode(ctx, r.PathValue("code"))
	if err != nil {
		s.notFoundOr500(w, err, "lookup site")
		return
	}

	prediction, err := s.storage.GetPrediction(ctx, site.ID)
	if err != nil {
		s.notFoundOr500(w, err, "get prediction")
		return
	}

	a := lifecycle.Classify(prediction.ExhaustionAt, s.now(), s.thresholds)
	writeJSON(w, http.StatusOK, predictionResponse{
		SiteCode:      site.Code,
		SiteName:      site.Name,
		Prediction:    prediction,
		DaysRemaining: a.Days,
		Severity:      a.Severity,
	})
}

func (s *Server) notFoundOr500(w http.ResponseWriter, err error, what string) {
	if errors.Is(err, storage.ErrNotFound) {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	s.logger.Error(what, "error", err)
	http.Error(w, "internal error", http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
