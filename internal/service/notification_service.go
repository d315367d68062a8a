package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/incident-service/internal/events"
	"github.com/spec-kit/incident-service/internal/notify"
)

// NotificationService turns domain events into user notifications.
type NotificationService struct {
	dispatcher events.Dispatcher
	notifier   notify.Notifier
	logger     *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, notifier notify.Notifier, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher: dispatcher,
		notifier:   notifier,
		logger:     logger,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil || n.notifier == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventIncidentCreated, n.handleIncidentCreated)
	n.dispatcher.Subscribe(events.EventIncidentAssigned, n.handleIncidentAssigned)
	n.dispatcher.Subscribe(events.EventIncidentEscalated, n.handleIncidentEscalated)
	n.dispatcher.Subscribe(events.EventIncidentStatusChanged, n.handleIncidentStatusChanged)
}

func (n *NotificationService) handleIncidentCreated(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.IncidentCreatedPayload)
	if !ok {
		return n.unexpected(event)
	}
	msg := fmt.Sprintf("Your incident %q was registered with priority %s", payload.Title, payload.Priority)
	return n.send(ctx, event, payload.ReporterID, msg, notify.KindAcknowledgement)
}

func (n *NotificationService) handleIncidentAssigned(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.IncidentAssignedPayload)
	if !ok {
		return n.unexpected(event)
	}
	msg := fmt.Sprintf("Incident %s %q has been assigned to you (level %d)", event.IncidentID, payload.Title, payload.SupportLevel)
	return n.send(ctx, event, payload.TechnicianID, msg, notify.KindAssignment)
}

func (n *NotificationService) handleIncidentEscalated(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.IncidentEscalatedPayload)
	if !ok {
		return n.unexpected(event)
	}
	msg := fmt.Sprintf("Your incident %q was escalated from level %d to level %d: %s",
		payload.Title, payload.LevelFrom, payload.LevelTo, payload.Reason)
	return n.send(ctx, event, payload.ReporterID, msg, notify.KindEscalation)
}

func (n *NotificationService) handleIncidentStatusChanged(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.IncidentStatusChangedPayload)
	if !ok {
		return n.unexpected(event)
	}
	msg := fmt.Sprintf("Your incident %q is now %s", payload.Title, payload.NewStatus)
	return n.send(ctx, event, payload.ReporterID, msg, notify.KindStatus)
}

func (n *NotificationService) send(ctx context.Context, event events.Event, userID, message string, kind notify.Kind) error {
	if userID == "" {
		return nil
	}
	if err := n.notifier.Notify(ctx, userID, message, kind); err != nil {
		n.logger.Warn("notification delivery failed",
			zap.String("incident_id", event.IncidentID),
			zap.String("user_id", userID),
			zap.String("kind", string(kind)),
			zap.Error(err))
		return err
	}
	return nil
}

func (n *NotificationService) unexpected(event events.Event) error {
	return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
}
