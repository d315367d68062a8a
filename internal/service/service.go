package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/incident-service/internal/domain"
	"github.com/spec-kit/incident-service/internal/events"
	"github.com/spec-kit/incident-service/internal/repository"
	apperrors "github.com/spec-kit/incident-service/pkg/util/errorutil"
)

// Clock returns the current instant. Services take one so tests can pin time.
type Clock func() time.Time

func (c Clock) now() time.Time {
	if c == nil {
		return time.Now().UTC()
	}
	return c()
}

// mapRepoError converts repository sentinels into domain errors. Domain
// errors raised inside a transaction pass through untouched.
func mapRepoError(err error, resource string, details map[string]any) error {
	if err == nil {
		return nil
	}
	var domainErr *apperrors.DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return apperrors.NewNotFound(resource, details)
	case errors.Is(err, repository.ErrConflict):
		return apperrors.NewConcurrencyConflict(details, err)
	}
	return apperrors.NewInternalError(err)
}

// retryOnConflict runs fn again once, with a fresh read, if it lost a race.
func retryOnConflict(ctx context.Context, fn func(ctx context.Context) error) error {
	err := fn(ctx)
	if err == nil || !apperrors.HasCode(err, apperrors.CodeConcurrencyConflict) {
		return err
	}
	if ctx.Err() != nil {
		return err
	}
	return fn(ctx)
}

func closedIncidentError(incident *domain.Incident, operation string) error {
	return apperrors.NewInvalidTransition("incident is closed", map[string]any{
		"incident_id": incident.ID,
		"operation":   operation,
	})
}

func publish(ctx context.Context, dispatcher events.Dispatcher, logger *zap.Logger, event events.Event) {
	if dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if err := dispatcher.Publish(ctx, event); err != nil {
		logger.Warn("event handler failed",
			zap.String("event_type", string(event.Type)),
			zap.String("incident_id", event.IncidentID),
			zap.Error(err))
	}
}

func systemActor() events.Actor {
	return events.Actor{Type: domain.SubjectTypeTechnician}
}

func technicianActor(id string) events.Actor {
	if id == "" {
		return systemActor()
	}
	return events.Actor{Type: domain.SubjectTypeTechnician, ID: &id}
}

func timePtr(t time.Time) *time.Time {
	return &t
}
