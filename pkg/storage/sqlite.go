package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/ogulcanaydogan/fuel-guardian/pkg/model"

	_ "modernc.org/sqlite"
)

// ErrConflict is returned when a write violates a uniqueness rule, such as
// opening a second alert for a site.
var ErrConflict = errors.New("conflict")

// SQLite implements the Storage interface using an SQLite database.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens or creates an SQLite database at the given path.
func NewSQLite(dbPath string) (*SQLite, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite has a single writer; one connection keeps transactions from
	// tripping over each other when cycles run sites in parallel.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db}, nil
}

func (s *SQLite) UpsertSite(ctx context.Context, site *model.Site) error {
	if site.ID == "" {
		site.ID = uuid.New().String()
	}
	if site.CreatedAt.IsZero() {
		site.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sites (id, code, name, active, technician_name, technician_email, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(code) DO UPDATE SET
		   name = excluded.name,
		   active = excluded.active,
		   technician_name = excluded.technician_name,
		   technician_email = excluded.technician_email`,
		site.ID, site.Code, site.Name, site.Active,
		site.TechnicianName, site.TechnicianEmail, site.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert site: %w", err)
	}

	// The row may predate this call; reload its identity.
	return s.db.QueryRowContext(ctx,
		`SELECT id, created_at FROM sites WHERE code = ?`, site.Code,
	).Scan(&site.ID, &site.CreatedAt)
}

const siteColumns = `id, code, name, active, technician_name, technician_email, created_at`

func scanSite(row interface{ Scan(...any) error }) (*model.Site, error) {
	var site model.Site
	err := row.Scan(&site.ID, &site.Code, &site.Name, &site.Active,
		&site.TechnicianName, &site.TechnicianEmail, &site.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &site, nil
}

func (s *SQLite) GetSite(ctx context.Context, id string) (*model.Site, error) {
	site, err := scanSite(s.db.QueryRowContext(ctx,
		`SELECT `+siteColumns+` FROM sites WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("site %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get site: %w", err)
	}
	return site, nil
}

func (s *SQLite) GetSiteByCode(ctx context.Context, code string) (*model.Site, error) {
	site, err := scanSite(s.db.QueryRowContext(ctx,
		`SELECT `+siteColumns+` FROM sites WHERE code = ?`, code))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("site %q: %w", code, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get site by code: %w", err)
	}
	return site, nil
}

func (s *SQLite) ListSites(ctx context.Context, activeOnly bool) ([]model.Site, error) {
	query := `SELECT ` + siteColumns + ` FROM sites`
	if activeOnly {
		query += ` WHERE active = 1`
	}
	query += ` ORDER BY code`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list sites: %w", err)
	}
	defer rows.Close()

	var sites []model.Site
	for rows.Next() {
		site, err := scanSite(rows)
		if err != nil {
			return nil, fmt.Errorf("scan site row: %w", err)
		}
		sites = append(sites, *site)
	}
	return sites, rows.Err()
}

func (s *SQLite) RecordSupply(ctx context.Context, record *model.SupplyRecord) error {
	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now().UTC()
	}
	if record.Status == "" {
		record.Status = model.SupplyActive
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO supply_records (id, site_id, work_order, timestamp, fuel_before, fuel_added, runtime_hours, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID, record.SiteID, record.WorkOrder, record.Timestamp.UTC(),
		record.FuelBefore, record.FuelAdded, record.RuntimeHours,
		record.Status, record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert supply record: %w", err)
	}
	return nil
}

func (s *SQLite) SetSupplyStatus(ctx context.Context, id string, status model.SupplyStatus) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE supply_records SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("update supply status: %w", err)
	}
	return requireAffected(result, "supply record", id)
}

func (s *SQLite) ActiveHistory(ctx context.Context, siteID string) ([]model.SupplyRecord, error) {
	return s.querySupplies(ctx,
		`WHERE site_id = ? AND status = 'active' ORDER BY timestamp ASC, rowid ASC`, siteID)
}

func (s *SQLite) SupplyHistory(ctx context.Context, siteID string) ([]model.SupplyRecord, error) {
	return s.querySupplies(ctx, `WHERE site_id = ? ORDER BY timestamp ASC, rowid ASC`, siteID)
}

func (s *SQLite) querySupplies(ctx context.Context, where string, args ...any) ([]model.SupplyRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, site_id, work_order, timestamp, fuel_before, fuel_added, runtime_hours, status, created_at
		 FROM supply_records `+where, args...)
	if err != nil {
		return nil, fmt.Errorf("query supply history: %w", err)
	}
	defer rows.Close()

	var records []model.SupplyRecord
	for rows.Next() {
		var r model.SupplyRecord
		if err := rows.Scan(&r.ID, &r.SiteID, &r.WorkOrder, &r.Timestamp,
			&r.FuelBefore, &r.FuelAdded, &r.RuntimeHours, &r.Status, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan supply row: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func (s *SQLite) UpsertPrediction(ctx context.Context, p *model.Prediction) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin prediction upsert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	var existingID string
	var createdAt time.Time
	err = tx.QueryRowContext(ctx,
		`SELECT id, created_at FROM predictions WHERE site_id = ?`, p.SiteID,
	).Scan(&existingID, &createdAt)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		if p.ID == "" {
			p.ID = uuid.New().String()
		}
		p.CreatedAt = now
		p.UpdatedAt = now
		_, err = tx.ExecContext(ctx,
			`INSERT INTO predictions (id, site_id, exhaustion_at, exhaustion_runtime, anchor_record_id, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			p.ID, p.SiteID, p.ExhaustionAt.UTC(), p.ExhaustionRuntime, p.AnchorRecordID, p.CreatedAt, p.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert prediction: %w", err)
		}
	case err != nil:
		return fmt.Errorf("read prediction: %w", err)
	default:
		p.ID = existingID
		p.CreatedAt = createdAt
		p.UpdatedAt = now
		_, err = tx.ExecContext(ctx,
			`UPDATE predictions
			 SET exhaustion_at = ?, exhaustion_runtime = ?, anchor_record_id = ?, updated_at = ?
			 WHERE id = ?`,
			p.ExhaustionAt.UTC(), p.ExhaustionRuntime, p.AnchorRecordID, p.UpdatedAt, p.ID,
		)
		if err != nil {
			return fmt.Errorf("update prediction: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit prediction: %w", err)
	}
	return nil
}

func (s *SQLite) GetPrediction(ctx context.Context, siteID string) (*model.Prediction, error) {
	var p model.Prediction
	err := s.db.QueryRowContext(ctx,
		`SELECT id, site_id, exhaustion_at, exhaustion_runtime, anchor_record_id, created_at, updated_at
		 FROM predictions WHERE site_id = ?`, siteID,
	).Scan(&p.ID, &p.SiteID, &p.ExhaustionAt, &p.ExhaustionRuntime, &p.AnchorRecordID, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("prediction for site %q: %w", siteID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get prediction: %w", err)
	}
	return &p, nil
}

const alertColumns = `id, site_id, prediction_id, severity, message, state, created_at, updated_at, closed_at`

func scanAlert(row interface{ Scan(...any) error }) (*model.Alert, error) {
	var a model.Alert
	var predictionID sql.NullString
	var closedAt sql.NullTime
	if err := row.Scan(&a.ID, &a.SiteID, &predictionID, &a.Severity, &a.Message,
		&a.State, &a.CreatedAt, &a.UpdatedAt, &closedAt); err != nil {
		return nil, err
	}
	a.PredictionID = predictionID.String
	if closedAt.Valid {
		t := closedAt.Time
		a.ClosedAt = &t
	}
	return &a, nil
}

func (s *SQLite) OpenAlert(ctx context.Context, siteID string) (*model.Alert, error) {
	a, err := scanAlert(s.db.QueryRowContext(ctx,
		`SELECT `+alertColumns+` FROM alerts WHERE site_id = ? AND state = 'open'`, siteID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get open alert: %w", err)
	}
	return a, nil
}

func (s *SQLite) CreateAlert(ctx context.Context, alert *model.Alert) error {
	return insertAlert(ctx, s.db, alert)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertAlert(ctx context.Context, db execer, alert *model.Alert) error {
	if alert.ID == "" {
		alert.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	alert.State = model.AlertOpen
	alert.CreatedAt = now
	alert.UpdatedAt = now
	alert.ClosedAt = nil

	_, err := db.ExecContext(ctx,
		`INSERT INTO alerts (id, site_id, prediction_id, severity, message, state, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		alert.ID, alert.SiteID, nullString(alert.PredictionID), alert.Severity,
		alert.Message, alert.State, alert.CreatedAt, alert.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("site %q already has an open alert: %w", alert.SiteID, ErrConflict)
		}
		return fmt.Errorf("insert alert: %w", err)
	}
	return nil
}

func (s *SQLite) UpdateAlert(ctx context.Context, id, message, predictionID string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE alerts SET message = ?, prediction_id = ?, updated_at = ?
		 WHERE id = ? AND state = 'open'`,
		message, nullString(predictionID), time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("update alert: %w", err)
	}
	return requireAffected(result, "open alert", id)
}

func (s *SQLite) CloseAlert(ctx context.Context, id string) error {
	return closeAlert(ctx, s.db, id)
}

func closeAlert(ctx context.Context, db execer, id string) error {
	now := time.Now().UTC()
	result, err := db.ExecContext(ctx,
		`UPDATE alerts SET state = 'closed', closed_at = ?, updated_at = ?
		 WHERE id = ? AND state = 'open'`, now, now, id)
	if err != nil {
		return fmt.Errorf("close alert: %w", err)
	}
	return requireAffected(result, "open alert", id)
}

func (s *SQLite) ReplaceAlert(ctx context.Context, oldID string, alert *model.Alert) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin alert replace: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := closeAlert(ctx, tx, oldID); err != nil {
		return err
	}
	if err := insertAlert(ctx, tx, alert); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit alert replace: %w", err)
	}
	return nil
}

func (s *SQLite) ListAlerts(ctx context.Context, filter model.AlertFilter) ([]model.Alert, error) {
	var conditions []string
	var args []any
	if filter.SiteID != "" {
		conditions = append(conditions, "site_id = ?")
		args = append(args, filter.SiteID)
	}
	if filter.State != "" {
		conditions = append(conditions, "state = ?")
		args = append(args, filter.State)
	}
	if filter.Severity != "" {
		conditions = append(conditions, "severity = ?")
		args = append(args, filter.Severity)
	}

	query := `SELECT ` + alertColumns + ` FROM alerts`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC, rowid DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	defer rows.Close()

	var alerts []model.Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("scan alert row: %w", err)
		}
		alerts = append(alerts, *a)
	}
	return alerts, rows.Err()
}

func (s *SQLite) LogNotification(ctx context.Context, entry *model.NotificationLog) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	entry.Detail = truncate(entry.Detail, maxDetailBytes)

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO notification_log (id, alert_id, site_id, channel, recipient, status, detail, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.AlertID, entry.SiteID, entry.Channel, entry.Recipient,
		entry.Status, entry.Detail, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert notification log: %w", err)
	}
	return nil
}

func (s *SQLite) ListNotifications(ctx context.Context, alertID string) ([]model.NotificationLog, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, alert_id, site_id, channel, recipient, status, detail, created_at
		 FROM notification_log WHERE alert_id = ? ORDER BY created_at, rowid`, alertID)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var entries []model.NotificationLog
	for rows.Next() {
		var e model.NotificationLog
		if err := rows.Scan(&e.ID, &e.AlertID, &e.SiteID, &e.Channel, &e.Recipient,
			&e.Status, &e.Detail, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification row: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func requireAffected(result sql.Result, what, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%s %q: %w", what, id, ErrNotFound)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

const maxDetailBytes = 255

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
