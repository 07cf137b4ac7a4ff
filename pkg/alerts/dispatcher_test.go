package alerts_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/ogulcanaydogan/fuel-guardian/pkg/alerts"
	"github.com/ogulcanaydogan/fuel-guardian/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeNotifier struct {
	name string
	err  error

	mu    sync.Mutex
	calls int
}

func (f *fakeNotifier) Name() string { return f.name }

func (f *fakeNotifier) Send(_ context.Context, _ alerts.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.err
}

type memoryLogs struct {
	mu      sync.Mutex
	entries []model.NotificationLog
}

func (m *memoryLogs) LogNotification(_ context.Context, e *model.NotificationLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, *e)
	return nil
}

func (m *memoryLogs) byChannel() map[string]model.NotificationLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]model.NotificationLog, len(m.entries))
	for _, e := range m.entries {
		out[e.Channel] = e
	}
	return out
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDispatcher_RecordsEveryChannel(t *testing.T) {
	logs := &memoryLogs{}
	ok := &fakeNotifier{name: "slack"}
	broken := &fakeNotifier{name: "webhook", err: errors.New("connection refused")}
	noMail := &fakeNotifier{name: "email", err: fmt.Errorf("site GT-0042: %w", alerts.ErrNoRecipient)}

	var observed []string
	var mu sync.Mutex
	d := alerts.NewDispatcher(logs, testLogger(), ok, broken, noMail)
	d.OnDelivery = func(channel string, status model.DeliveryStatus) {
		mu.Lock()
		defer mu.Unlock()
		observed = append(observed, channel+":"+string(status))
	}
	assert.Equal(t, []string{"slack", "webhook", "email"}, d.Channels())

	results := d.Dispatch(context.Background(), testNotification())
	require.Len(t, results, 3)
	assert.Equal(t, model.DeliverySent, results[0].Status)
	assert.Equal(t, model.DeliveryFailed, results[1].Status)
	assert.Equal(t, model.DeliverySkipped, results[2].Status)
	assert.ElementsMatch(t, []string{"slack:sent", "webhook:failed", "email:skipped"}, observed)

	entries := logs.byChannel()
	require.Len(t, entries, 3)
	assert.Equal(t, "alert-1", entries["slack"].AlertID)
	assert.Equal(t, "site-1", entries["slack"].SiteID)
	assert.Equal(t, "connection refused", entries["webhook"].Detail)
	assert.Equal(t, "ana@example.com", entries["email"].Recipient)
}

func TestDispatcher_NoNotifiers(t *testing.T) {
	d := alerts.NewDispatcher(nil, testLogger())
	assert.Empty(t, d.Dispatch(context.Background(), testNotification()))
}

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	inner := &fakeNotifier{name: "webhook", err: errors.New("boom")}
	b := alerts.NewBreaker(inner, alerts.BreakerSettings{MaxFailures: 2, Timeout: time.Minute})
	assert.Equal(t, "webhook", b.Name())

	ctx := context.Background()
	assert.Error(t, b.Send(ctx, testNotification()))
	assert.Error(t, b.Send(ctx, testNotification()))
	assert.Equal(t, "open", b.State())

	// Open breaker short-circuits without calling the channel.
	assert.Error(t, b.Send(ctx, testNotification()))
	assert.Equal(t, 2, inner.calls)
}

func TestBreaker_IgnoresMissingRecipient(t *testing.T) {
	inner := &fakeNotifier{name: "email", err: alerts.ErrNoRecipient}
	b := alerts.NewBreaker(inner, alerts.BreakerSettings{MaxFailures: 1})

	for range 3 {
		assert.ErrorIs(t, b.Send(context.Background(), testNotification()), alerts.ErrNoRecipient)
	}
	assert.Equal(t, "closed", b.State())
	assert.Equal(t, 3, inner.calls)
}
