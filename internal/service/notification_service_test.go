package service

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spec-kit/referral-service/internal/config"
	"github.com/spec-kit/referral-service/internal/domain"
	"github.com/spec-kit/referral-service/internal/events"
)

type webhookSink struct {
	mu       sync.Mutex
	status   int
	received []map[string]any
	server   *httptest.Server
}

func newWebhookSink(t *testing.T, status int) *webhookSink {
	t.Helper()
	sink := &webhookSink{status: status}
	sink.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var doc map[string]any
		if err := json.Unmarshal(body, &doc); err == nil {
			sink.mu.Lock()
			sink.received = append(sink.received, doc)
			sink.mu.Unlock()
		}
		w.WriteHeader(sink.status)
	}))
	t.Cleanup(sink.server.Close)
	return sink
}

func (s *webhookSink) messages() []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]map[string]any{}, s.received...)
}

func newNotifier(t *testing.T, webhookURL string) (events.Dispatcher, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zap.InfoLevel)
	dispatcher := events.NewInMemoryDispatcher()
	NewNotificationService(dispatcher, zap.New(core), config.NotificationConfig{WebhookURL: webhookURL}).RegisterHandlers()
	return dispatcher, logs
}

func TestNotificationLogsTypedReferralFields(t *testing.T) {
	dispatcher, logs := newNotifier(t, "")

	require.NoError(t, dispatcher.Publish(context.Background(), events.Event{
		Type:       events.EventReferralCreated,
		ReferralID: "ref-1",
		Payload: events.ReferralCreatedPayload{
			OwnerEmail: "ana@partner.com",
			Developer:  "Acme",
			Status:     domain.ReferralStatus("Indicação Enviada"),
		},
	}))

	entries := logs.FilterMessage("referral registered").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "ref-1", fields["referral_id"])
	assert.Equal(t, "ana@partner.com", fields["owner_email"])
	assert.Equal(t, "Acme", fields["developer"])
	assert.Equal(t, "Indicação Enviada", fields["status"])
	assert.NotContains(t, fields, "payload")
}

func TestNotificationPostsReferralEventsToWebhook(t *testing.T) {
	sink := newWebhookSink(t, http.StatusNoContent)
	dispatcher, logs := newNotifier(t, sink.server.URL)
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, dispatcher.Publish(context.Background(), events.Event{
		ID:         "evt-1",
		Type:       events.EventReferralStatusChanged,
		ReferralID: "ref-9",
		Actor:      events.Actor{Email: "admin@example.com", Role: domain.RoleAdmin},
		Timestamp:  at,
		Payload: events.ReferralStatusChangedPayload{
			OldStatus: domain.ReferralStatus("Indicação Enviada"),
			NewStatus: domain.ReferralStatus("Reunião Realizada"),
		},
	}))

	msgs := sink.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "evt-1", msgs[0]["id"])
	assert.Equal(t, string(events.EventReferralStatusChanged), msgs[0]["event"])
	assert.Equal(t, "ref-9", msgs[0]["referralId"])
	assert.Equal(t, "admin@example.com", msgs[0]["actorEmail"])
	data, ok := msgs[0]["data"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Indicação Enviada", data["old_status"])
	assert.Equal(t, "Reunião Realizada", data["new_status"])

	entries := logs.FilterMessage("referral status changed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "admin@example.com", entries[0].ContextMap()["changed_by"])
}

func TestNotificationSkipsNoOpEvents(t *testing.T) {
	sink := newWebhookSink(t, http.StatusOK)
	dispatcher, logs := newNotifier(t, sink.server.URL)

	require.NoError(t, dispatcher.Publish(context.Background(), events.Event{
		Type:    events.EventReferralsExpired,
		Payload: events.ReferralsExpiredPayload{Modified: 0},
	}))
	require.NoError(t, dispatcher.Publish(context.Background(), events.Event{
		Type:    events.EventUserSetupCompleted,
		Actor:   events.Actor{Email: "ana@partner.com"},
		Payload: events.UserSetupCompletedPayload{UserID: "u-1", AcceptedAt: time.Now().UTC()},
	}))

	assert.Empty(t, sink.messages())
	assert.Zero(t, logs.FilterMessage("stale referrals expired").Len())
	assert.Equal(t, 1, logs.FilterMessage("partner finished first access").Len())
}

func TestNotificationReportsWebhookRejection(t *testing.T) {
	sink := newWebhookSink(t, http.StatusBadGateway)
	dispatcher, logs := newNotifier(t, sink.server.URL)

	err := dispatcher.Publish(context.Background(), events.Event{
		Type:    events.EventReferralsExpired,
		Payload: events.ReferralsExpiredPayload{Modified: 3, Cutoff: time.Now().UTC()},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 502")
	assert.Len(t, sink.messages(), 1)
	assert.Equal(t, 1, logs.FilterMessage("webhook rejected event").Len())
}

func TestNotificationRejectsUnexpectedPayload(t *testing.T) {
	dispatcher, _ := newNotifier(t, "")

	err := dispatcher.Publish(context.Background(), events.Event{
		Type:    events.EventReferralCreated,
		Payload: map[string]string{"developer": "Acme"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected payload")
}
