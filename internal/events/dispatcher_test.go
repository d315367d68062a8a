package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcherDeliversToSubscribers(t *testing.T) {
	d := NewInMemoryDispatcher()
	var got []string
	d.Subscribe(EventIncidentAssigned, func(_ context.Context, e Event) error {
		got = append(got, "first:"+e.IncidentID)
		return nil
	})
	d.Subscribe(EventIncidentAssigned, func(_ context.Context, e Event) error {
		got = append(got, "second:"+e.IncidentID)
		return nil
	})
	d.Subscribe(EventIncidentEscalated, func(_ context.Context, e Event) error {
		got = append(got, "escalated")
		return nil
	})

	require.NoError(t, d.Publish(context.Background(), Event{Type: EventIncidentAssigned, IncidentID: "inc-1"}))
	assert.Equal(t, []string{"first:inc-1", "second:inc-1"}, got)
}

func TestDispatcherContinuesAfterHandlerError(t *testing.T) {
	d := NewInMemoryDispatcher()
	boom := errors.New("boom")
	called := false
	d.Subscribe(EventIncidentCreated, func(context.Context, Event) error { return boom })
	d.Subscribe(EventIncidentCreated, func(context.Context, Event) error {
		called = true
		return nil
	})

	err := d.Publish(context.Background(), Event{Type: EventIncidentCreated})
	assert.ErrorIs(t, err, boom)
	assert.True(t, called)
}

func TestDispatcherWithoutSubscribers(t *testing.T) {
	d := NewInMemoryDispatcher()
	assert.NoError(t, d.Publish(context.Background(), Event{Type: EventIncidentStatusChanged}))
}
