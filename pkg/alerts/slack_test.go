package alerts_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ogulcanaydogan/fuel-guardian/pkg/alerts"
	"github.com/ogulcanaydogan/fuel-guardian/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testNotification() alerts.Notification {
	return alerts.Notification{
		AlertID:   "alert-1",
		SiteID:    "site-1",
		SiteCode:  "GT-0042",
		SiteName:  "Cerro Alto",
		Recipient: alerts.Recipient{Name: "Ana", Email: "ana@example.com"},
		Severity:  model.SeverityWarning,
		Message:   "WARNING level. An estimated 10 days of fuel remain.",
	}
}

func TestSlackNotifier_Name(t *testing.T) {
	n := alerts.NewSlackNotifier("https://hooks.slack.com/test", "#test")
	assert.Equal(t, "slack", n.Name())
}

func TestSlackNotifier_Send(t *testing.T) {
	var received map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, http.MethodPost, r.Method)

		err := json.NewDecoder(r.Body).Decode(&received)
		require.NoError(t, err)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	n := alerts.NewSlackNotifier(server.URL, "#fuel")

	err := n.Send(context.Background(), testNotification())
	require.NoError(t, err)
	assert.Equal(t, "#fuel", received["channel"])

	attachments, ok := received["attachments"].([]any)
	require.True(t, ok)
	require.Len(t, attachments, 1)
	first := attachments[0].(map[string]any)
	assert.Equal(t, "#ff9900", first["color"])
	assert.Contains(t, first["title"], "GT-0042")
	assert.Equal(t, testNotification().Message, first["text"])
}

func TestSlackNotifier_Send_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	n := alerts.NewSlackNotifier(server.URL, "#test")
	err := n.Send(context.Background(), testNotification())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}

func TestSlackNotifier_SeverityColors(t *testing.T) {
	tests := []struct {
		severity model.Severity
		color    string
	}{
		{model.SeverityWarning, "#ff9900"},
		{model.SeverityCritical, "#ff0000"},
	}

	for _, tt := range tests {
		t.Run(string(tt.severity), func(t *testing.T) {
			var received struct {
				Attachments []struct {
					Color string `json:"color"`
				} `json:"attachments"`
			}
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_ = json.NewDecoder(r.Body).Decode(&received)
				w.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			n := alerts.NewSlackNotifier(server.URL, "#test")
			notification := testNotification()
			notification.Severity = tt.severity
			require.NoError(t, n.Send(context.Background(), notification))
			require.Len(t, received.Attachments, 1)
			assert.Equal(t, tt.color, received.Attachments[0].Color)
		})
	}
}
