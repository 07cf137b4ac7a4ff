package lifecycle_test

import (
	"testing"
	"time"

	"github.com/ogulcanaydogan/fuel-guardian/pkg/lifecycle"
	"github.com/ogulcanaydogan/fuel-guardian/pkg/model"
	"github.com/stretchr/testify/assert"
)

func openAlert(sev model.Severity) *model.Alert {
	return &model.Alert{ID: "alert-1", SiteID: "site-1", Severity: sev, State: model.AlertOpen, Message: "old", PredictionID: "pred-1"}
}

func TestDecide_Table(t *testing.T) {
	closed := openAlert(model.SeverityWarning)
	closed.State = model.AlertClosed

	tests := []struct {
		name     string
		existing *model.Alert
		required model.Severity
		want     lifecycle.Transition
	}{
		{"new critical", nil, model.SeverityCritical, lifecycle.Transition{Action: lifecycle.ActionCreate, Notify: true}},
		{"new warning", nil, model.SeverityWarning, lifecycle.Transition{Action: lifecycle.ActionCreate, Notify: true}},
		{"closed alert counts as none", closed, model.SeverityWarning, lifecycle.Transition{Action: lifecycle.ActionCreate, Notify: true}},
		{"same tier", openAlert(model.SeverityCritical), model.SeverityCritical, lifecycle.Transition{Action: lifecycle.ActionUpdate}},
		{"escalation", openAlert(model.SeverityWarning), model.SeverityCritical, lifecycle.Transition{Action: lifecycle.ActionReplace, Notify: true}},
		{"de-escalation", openAlert(model.SeverityCritical), model.SeverityWarning, lifecycle.Transition{Action: lifecycle.ActionReplace, Notify: true}},
		{"safe with nothing open", nil, model.SeveritySafe, lifecycle.Transition{Action: lifecycle.ActionNone}},
		{"safe closes critical", openAlert(model.SeverityCritical), model.SeveritySafe, lifecycle.Transition{Action: lifecycle.ActionClose}},
		{"safe closes warning", openAlert(model.SeverityWarning), model.SeveritySafe, lifecycle.Transition{Action: lifecycle.ActionClose}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, lifecycle.Decide(tt.existing, tt.required))
		})
	}
}

func TestEvaluate_UnchangedUpdateIsNoop(t *testing.T) {
	th := lifecycle.DefaultThresholds()
	prediction := &model.Prediction{ID: "pred-1", ExhaustionAt: now.Add(3*24*time.Hour + time.Hour)}

	first := lifecycle.Evaluate(prediction, openAlert(model.SeverityCritical), now, th)
	assert.Equal(t, lifecycle.ActionUpdate, first.Action)
	assert.Equal(t, 3, first.Days)

	current := openAlert(model.SeverityCritical)
	current.Message = first.Message
	second := lifecycle.Evaluate(prediction, current, now, th)
	assert.Equal(t, lifecycle.ActionNone, second.Action)
	assert.False(t, second.Notify)

	// A new prediction row is still an update.
	current.PredictionID = "pred-0"
	assert.Equal(t, lifecycle.ActionUpdate, lifecycle.Evaluate(prediction, current, now, th).Action)
}

func TestEvaluate_Scenarios(t *testing.T) {
	th := lifecycle.DefaultThresholds()
	day := 24 * time.Hour

	// Warning open, now critical: replace and notify.
	c := lifecycle.Evaluate(&model.Prediction{ID: "p", ExhaustionAt: now.Add(3 * day)}, openAlert(model.SeverityWarning), now, th)
	assert.Equal(t, lifecycle.ActionReplace, c.Action)
	assert.True(t, c.Notify)
	assert.Equal(t, model.SeverityCritical, c.Severity)

	// Critical open, still critical with other days: update, no notify.
	d := lifecycle.Evaluate(&model.Prediction{ID: "p", ExhaustionAt: now.Add(5 * day)}, openAlert(model.SeverityCritical), now, th)
	assert.Equal(t, lifecycle.ActionUpdate, d.Action)
	assert.False(t, d.Notify)

	// Critical open, 20 days left: close, no notify.
	e := lifecycle.Evaluate(&model.Prediction{ID: "p", ExhaustionAt: now.Add(20 * day)}, openAlert(model.SeverityCritical), now, th)
	assert.Equal(t, lifecycle.ActionClose, e.Action)
	assert.False(t, e.Notify)
	assert.Equal(t, 20, e.Days)
}
