package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishRunsEveryHandler(t *testing.T) {
	d := NewInMemoryDispatcher()

	var seen []Event
	d.Subscribe(EventReferralCreated, func(_ context.Context, e Event) error {
		return errors.New("boom")
	})
	d.Subscribe(EventReferralCreated, func(_ context.Context, e Event) error {
		seen = append(seen, e)
		return nil
	})

	err := d.Publish(context.Background(), Event{Type: EventReferralCreated, ReferralID: "r1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")

	require.Len(t, seen, 1)
	assert.NotEmpty(t, seen[0].ID)
	assert.False(t, seen[0].Timestamp.IsZero())
	assert.Equal(t, "r1", seen[0].ReferralID)
}

func TestPublishWithoutSubscribers(t *testing.T) {
	d := NewInMemoryDispatcher()
	assert.NoError(t, d.Publish(context.Background(), Event{Type: EventReferralsExpired}))
}
