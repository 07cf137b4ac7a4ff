package storage

import (
	"database/sql"
	"fmt"
)

var migrations = []string{
	// Migration 1: Initial schema
	`CREATE TABLE IF NOT EXISTS sites (
		id               TEXT PRIMARY KEY,
		code             TEXT NOT NULL UNIQUE,
		name             TEXT NOT NULL,
		active           INTEGER NOT NULL DEFAULT 1,
		technician_name  TEXT NOT NULL DEFAULT '',
		technician_email TEXT NOT NULL DEFAULT '',
		created_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS supply_records (
		id            TEXT PRIMARY KEY,
		site_id       TEXT NOT NULL REFERENCES sites(id),
		work_order    TEXT NOT NULL DEFAULT '',
		timestamp     DATETIME NOT NULL,
		fuel_before   REAL NOT NULL,
		fuel_added    REAL NOT NULL,
		runtime_hours REAL NOT NULL,
		status        TEXT NOT NULL DEFAULT 'active' CHECK(status IN ('active', 'cancelled')),
		created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_supply_site_ts ON supply_records(site_id, timestamp);

	CREATE TABLE IF NOT EXISTS predictions (
		id                 TEXT PRIMARY KEY,
		site_id            TEXT NOT NULL UNIQUE REFERENCES sites(id),
		exhaustion_at      DATETIME NOT NULL,
		exhaustion_runtime REAL NOT NULL,
		anchor_record_id   TEXT NOT NULL REFERENCES supply_records(id),
		created_at         DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at         DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS alerts (
		id            TEXT PRIMARY KEY,
		site_id       TEXT NOT NULL REFERENCES sites(id),
		prediction_id TEXT REFERENCES predictions(id),
		severity      TEXT NOT NULL CHECK(severity IN ('critical', 'warning')),
		message       TEXT NOT NULL DEFAULT '',
		state         TEXT NOT NULL DEFAULT 'open' CHECK(state IN ('open', 'closed')),
		created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		closed_at     DATETIME
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_alerts_one_open ON alerts(site_id) WHERE state = 'open';
	CREATE INDEX IF NOT EXISTS idx_alerts_state ON alerts(state);

	CREATE TABLE IF NOT EXISTS notification_log (
		id         TEXT PRIMARY KEY,
		alert_id   TEXT NOT NULL REFERENCES alerts(id),
		site_id    TEXT NOT NULL REFERENCES sites(id),
		channel    TEXT NOT NULL,
		recipient  TEXT NOT NULL DEFAULT '',
		status     TEXT NOT NULL CHECK(status IN ('sent', 'failed', 'skipped')),
		detail     TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_notification_alert ON notification_log(alert_id);`,
}

// runMigrations applies pending schema migrations.
func runMigrations(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version    INTEGER PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		return fmt.Errorf("create migration table: %w", err)
	}

	var currentVersion int
	row := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("check migration version: %w", err)
	}

	for i := currentVersion; i < len(migrations); i++ {
		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", i+1, err)
		}

		if _, err := tx.Exec(migrations[i]); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("run migration %d: %w", i+1, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", i+1); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %d: %w", i+1, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", i+1, err)
		}
	}

	return nil
}
