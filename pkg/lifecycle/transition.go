package lifecycle

import (
	"time"

	"github.com/ogulcanaydogan/fuel-guardian/pkg/model"
)

// Action is what happens to a site's alerts in one reconciliation.
type Action string

const (
	ActionNone    Action = "none"
	ActionCreate  Action = "create"
	ActionUpdate  Action = "update"
	ActionReplace Action = "replace" // close the open alert, open a new one
	ActionClose   Action = "close"
)

// Transition is a decided action and whether it owes a notification.
type Transition struct {
	Action Action
	Notify bool
}

type existingKind int

const (
	existingNone existingKind = iota
	existingSameTier
	existingOtherTier
)

// transitions is indexed by [required tier needs an alert][existing alert].
var transitions = [2][3]Transition{
	{ // safe
		existingNone:      {Action: ActionNone},
		existingSameTier:  {Action: ActionClose},
		existingOtherTier: {Action: ActionClose},
	},
	{ // critical or warning
		existingNone:      {Action: ActionCreate, Notify: true},
		existingSameTier:  {Action: ActionUpdate},
		existingOtherTier: {Action: ActionReplace, Notify: true},
	},
}

// Decide returns the transition from the site's open alert, or nil, to the
// required severity.
func Decide(existing *model.Alert, required model.Severity) Transition {
	kind := existingNone
	if existing.IsOpen() {
		kind = existingOtherTier
		if existing.Severity == required {
			kind = existingSameTier
		}
	}

	row := 0
	if required.RequiresAlert() {
		row = 1
	}
	return transitions[row][kind]
}

// Outcome is the full per-site decision.
type Outcome struct {
	Assessment
	Transition
}

// Evaluate classifies the prediction and decides the transition. An update
// that would rewrite the alert with identical content is reported as no
// action, so repeated runs over unchanged data stay quiet.
func Evaluate(prediction *model.Prediction, existing *model.Alert, now time.Time, th Thresholds) Outcome {
	a := Classify(prediction.ExhaustionAt, now, th)
	t := Decide(existing, a.Severity)

	if t.Action == ActionUpdate &&
		existing.Message == a.Message &&
		existing.PredictionID == prediction.ID {
		t = Transition{Action: ActionNone}
	}

	return Outcome{Assessment: a, Transition: t}
}
