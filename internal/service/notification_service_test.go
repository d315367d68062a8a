package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/incident-service/internal/domain"
	"github.com/spec-kit/incident-service/internal/events"
	"github.com/spec-kit/incident-service/internal/notify"
)

func TestNotificationService_RoutesEventsToRecipients(t *testing.T) {
	ctx := context.Background()
	dispatcher := events.NewInMemoryDispatcher()
	notifier := &captureNotifier{}
	NewNotificationService(dispatcher, notifier, nil).RegisterHandlers()

	prev := "tech-old"
	require.NoError(t, dispatcher.Publish(ctx, events.Event{
		Type:       events.EventIncidentAssigned,
		IncidentID: "inc-1",
		Payload: events.IncidentAssignedPayload{
			TechnicianID:         "tech-new",
			PreviousTechnicianID: &prev,
			Title:                "mail bounce",
			SupportLevel:         domain.SupportLevel2,
		},
	}))
	require.NoError(t, dispatcher.Publish(ctx, events.Event{
		Type:       events.EventIncidentEscalated,
		IncidentID: "inc-1",
		Payload: events.IncidentEscalatedPayload{
			ReporterID: "reporter-5",
			Title:      "mail bounce",
			LevelFrom:  domain.SupportLevel1,
			LevelTo:    domain.SupportLevel2,
			Reason:     "level 1 dwell time of 24h0m0s exceeded",
		},
	}))

	assigned := notifier.ofKind(notify.KindAssignment)
	require.Len(t, assigned, 1)
	assert.Equal(t, "tech-new", assigned[0].UserID)
	assert.Contains(t, assigned[0].Message, "inc-1")
	assert.Contains(t, assigned[0].Message, "mail bounce")

	escalated := notifier.ofKind(notify.KindEscalation)
	require.Len(t, escalated, 1)
	assert.Equal(t, "reporter-5", escalated[0].UserID)
	assert.Contains(t, escalated[0].Message, "from level 1 to level 2")
}

func TestNotificationService_RejectsUnexpectedPayload(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher()
	notifier := &captureNotifier{}
	NewNotificationService(dispatcher, notifier, nil).RegisterHandlers()

	err := dispatcher.Publish(context.Background(), events.Event{Type: events.EventIncidentCreated, Payload: "oops"})
	assert.Error(t, err)
	assert.Empty(t, notifier.sent)
}
