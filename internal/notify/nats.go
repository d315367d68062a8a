package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Publisher is the subset of *nats.Conn used for delivery.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Message is the wire form published to NATS.
type Message struct {
	UserID  string    `json:"user_id"`
	Kind    Kind      `json:"kind"`
	Message string    `json:"message"`
	SentAt  time.Time `json:"sent_at"`
}

// NATSNotifier publishes each notification on <prefix>.<kind>.
type NATSNotifier struct {
	pub    Publisher
	prefix string
	now    func() time.Time
}

// NewNATSNotifier builds the sink.
func NewNATSNotifier(pub Publisher, prefix string) *NATSNotifier {
	return &NATSNotifier{pub: pub, prefix: strings.TrimSuffix(prefix, "."), now: time.Now}
}

// Subject returns the subject a kind is published on.
func (n *NATSNotifier) Subject(kind Kind) string {
	return n.prefix + "." + strings.ToLower(string(kind))
}

// Notify implements Notifier.
func (n *NATSNotifier) Notify(ctx context.Context, userID, message string, kind Kind) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(Message{
		UserID:  userID,
		Kind:    kind,
		Message: message,
		SentAt:  n.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	if err := n.pub.Publish(n.Subject(kind), data); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}
