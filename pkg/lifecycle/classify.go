// Package lifecycle reconciles fuel predictions against the open alert of
// each site: it classifies urgency, decides the alert transition and applies
// it for a batch of sites.
package lifecycle

import (
	"fmt"
	"math"
	"time"

	"github.com/ogulcanaydogan/fuel-guardian/pkg/model"
)

// Thresholds are the day limits of each severity tier, inclusive.
type Thresholds struct {
	CriticalDays int `mapstructure:"critical_days" validate:"gte=0"`
	WarningDays  int `mapstructure:"warning_days" validate:"gtefield=CriticalDays"`
}

// DefaultThresholds returns 7 days for critical and 14 for warning.
func DefaultThresholds() Thresholds {
	return Thresholds{CriticalDays: 7, WarningDays: 14}
}

// Assessment is the urgency of a site at a point in time.
type Assessment struct {
	Severity model.Severity
	Days     int
	Message  string
}

// DaysRemaining returns whole days until exhaustion, floored toward negative
// infinity so that anything already overdue is negative.
func DaysRemaining(exhaustionAt, now time.Time) int {
	return int(math.Floor(exhaustionAt.Sub(now).Hours() / 24))
}

// Classify maps the predicted exhaustion time to a severity and message.
func Classify(exhaustionAt, now time.Time, th Thresholds) Assessment {
	days := DaysRemaining(exhaustionAt, now)
	date := exhaustionAt.UTC().Format("2006-01-02")

	switch {
	case days < 0:
		return Assessment{
			Severity: model.SeverityCritical,
			Days:     days,
			Message:  fmt.Sprintf("CRITICAL level. Estimated fuel exhaustion date already passed (%s). Check urgently.", date),
		}
	case days <= th.CriticalDays:
		return Assessment{
			Severity: model.SeverityCritical,
			Days:     days,
			Message:  fmt.Sprintf("CRITICAL level. An estimated %d days of fuel remain (until %s).", days, date),
		}
	case days <= th.WarningDays:
		return Assessment{
			Severity: model.SeverityWarning,
			Days:     days,
			Message:  fmt.Sprintf("WARNING level. An estimated %d days of fuel remain (until %s).", days, date),
		}
	default:
		return Assessment{Severity: model.SeveritySafe, Days: days}
	}
}
