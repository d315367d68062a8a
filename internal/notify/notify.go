// Package notify delivers user-facing notifications produced by the
// incident engine. Delivery is fire-and-forget from the engine's view.
package notify

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// Kind classifies a notification.
type Kind string

const (
	KindAcknowledgement Kind = "ACKNOWLEDGEMENT"
	KindAssignment      Kind = "ASSIGNMENT"
	KindEscalation      Kind = "ESCALATION"
	KindStatus          Kind = "STATUS"
)

// Notifier sends a message to a user.
type Notifier interface {
	Notify(ctx context.Context, userID, message string, kind Kind) error
}

// Multi fans a notification out to every sink. All sinks are attempted.
type Multi []Notifier

// Notify implements Notifier.
func (m Multi) Notify(ctx context.Context, userID, message string, kind Kind) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, userID, message, kind); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogNotifier writes notifications to the structured log.
type LogNotifier struct {
	logger *zap.Logger
	from   string
}

// NewLogNotifier returns a sink that logs at info level.
func NewLogNotifier(logger *zap.Logger, from string) *LogNotifier {
	return &LogNotifier{logger: logger, from: from}
}

// Notify implements Notifier.
func (l *LogNotifier) Notify(_ context.Context, userID, message string, kind Kind) error {
	l.logger.Info("notification",
		zap.String("user_id", userID),
		zap.String("kind", string(kind)),
		zap.String("from", l.from),
		zap.String("message", message))
	return nil
}
