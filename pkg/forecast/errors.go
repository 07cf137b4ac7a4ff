package forecast

import "errors"

// Reasons a site cannot be forecast yet. They are recoverable: the site simply
// needs more (or cleaner) history.
var (
	ErrInsufficientHistory        = errors.New("insufficient supply history")
	ErrInsufficientValidIntervals = errors.New("insufficient valid consumption intervals")
	ErrNoValidConsumptionRate     = errors.New("no valid consumption rate after outlier filtering")
	ErrNonPositiveRate            = errors.New("non-positive consumption rate")
	ErrNoRemainingFuel            = errors.New("no remaining fuel after last supply")
)

var reasons = []struct {
	err   error
	label string
}{
	{ErrInsufficientHistory, "insufficient_history"},
	{ErrInsufficientValidIntervals, "insufficient_valid_intervals"},
	{ErrNoValidConsumptionRate, "no_valid_consumption_rate"},
	{ErrNonPositiveRate, "non_positive_rate"},
	{ErrNoRemainingFuel, "no_remaining_fuel"},
}

// ReasonOf returns a stable label for a forecast failure, or "" if err is not
// one of the forecast errors.
func ReasonOf(err error) string {
	for _, r := range reasons {
		if errors.Is(err, r.err) {
			return r.label
		}
	}
	return ""
}

// IsNotForecastable reports whether err means the site cannot be forecast yet.
func IsNotForecastable(err error) bool {
	return ReasonOf(err) != ""
}
