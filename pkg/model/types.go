package model

import "time"

// Site is a remote location with a diesel generator.
type Site struct {
	ID              string    `json:"id" db:"id"`
	Code            string    `json:"code" db:"code"`
	Name            string    `json:"name" db:"name"`
	Active          bool      `json:"active" db:"active"`
	TechnicianName  string    `json:"technician_name,omitempty" db:"technician_name"`
	TechnicianEmail string    `json:"technician_email,omitempty" db:"technician_email"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
}

// SupplyStatus marks whether a supply record takes part in forecasting.
type SupplyStatus string

const (
	SupplyActive    SupplyStatus = "active"
	SupplyCancelled SupplyStatus = "cancelled"
)

// SupplyRecord is one refueling event on a site's generator.
type SupplyRecord struct {
	ID           string       `json:"id" db:"id"`
	SiteID       string       `json:"site_id" db:"site_id" validate:"required"`
	WorkOrder    string       `json:"work_order,omitempty" db:"work_order" validate:"max=40"`
	Timestamp    time.Time    `json:"timestamp" db:"timestamp"`
	FuelBefore   float64      `json:"fuel_before" db:"fuel_before" validate:"gte=0"`
	FuelAdded    float64      `json:"fuel_added" db:"fuel_added" validate:"gte=0"`
	RuntimeHours float64      `json:"runtime_hours" db:"runtime_hours" validate:"gte=0"`
	Status       SupplyStatus `json:"status" db:"status" validate:"oneof=active cancelled"`
	CreatedAt    time.Time    `json:"created_at" db:"created_at"`
}

// FuelAfter returns the tank level right after the supply.
func (r SupplyRecord) FuelAfter() float64 {
	return r.FuelBefore + r.FuelAdded
}

// IsActive reports whether the record counts towards a site's history.
func (r SupplyRecord) IsActive() bool {
	return r.Status == SupplyActive
}

// Prediction is the forward-looking fuel estimate for a site.
// There is at most one per site.
type Prediction struct {
	ID                string    `json:"id" db:"id"`
	SiteID            string    `json:"site_id" db:"site_id"`
	ExhaustionAt      time.Time `json:"exhaustion_at" db:"exhaustion_at"`
	ExhaustionRuntime float64   `json:"exhaustion_runtime" db:"exhaustion_runtime"`
	AnchorRecordID    string    `json:"anchor_record_id" db:"anchor_record_id"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time `json:"updated_at" db:"updated_at"`
}

// Severity classifies how urgently a site needs refueling.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeveritySafe     Severity = "safe"
)

// RequiresAlert reports whether the severity needs an open alert.
func (s Severity) RequiresAlert() bool {
	return s == SeverityCritical || s == SeverityWarning
}

// AlertState is the lifecycle state of an alert instance.
type AlertState string

const (
	AlertOpen   AlertState = "open"
	AlertClosed AlertState = "closed"
)

// Alert is a site-level urgency condition. Closed is terminal.
type Alert struct {
	ID           string     `json:"id" db:"id"`
	SiteID       string     `json:"site_id" db:"site_id"`
	PredictionID string     `json:"prediction_id,omitempty" db:"prediction_id"`
	Severity     Severity   `json:"severity" db:"severity"`
	Message      string     `json:"message" db:"message"`
	State        AlertState `json:"state" db:"state"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" db:"updated_at"`
	ClosedAt     *time.Time `json:"closed_at,omitempty" db:"closed_at"`
}

// IsOpen reports whether the alert is still unresolved.
func (a *Alert) IsOpen() bool {
	return a != nil && a.State == AlertOpen
}

// DeliveryStatus is the outcome of one notification attempt.
type DeliveryStatus string

const (
	DeliverySent    DeliveryStatus = "sent"
	DeliveryFailed  DeliveryStatus = "failed"
	DeliverySkipped DeliveryStatus = "skipped"
)

// NotificationLog records a single delivery attempt on one channel.
type NotificationLog struct {
	ID        string         `json:"id" db:"id"`
	AlertID   string         `json:"alert_id" db:"alert_id"`
	SiteID    string         `json:"site_id" db:"site_id"`
	Channel   string         `json:"channel" db:"channel"`
	Recipient string         `json:"recipient,omitempty" db:"recipient"`
	Status    DeliveryStatus `json:"status" db:"status"`
	Detail    string         `json:"detail,omitempty" db:"detail"`
	CreatedAt time.Time      `json:"created_at" db:"created_at"`
}

// AlertFilter controls which alerts are listed.
type AlertFilter struct {
	SiteID   string     `json:"site_id,omitempty"`
	State    AlertState `json:"state,omitempty"`
	Severity Severity   `json:"severity,omitempty"`
}
