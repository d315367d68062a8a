package notify

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"
)

// SlackNotifier posts notifications to a Slack incoming webhook.
type SlackNotifier struct {
	url string
}

// NewSlackNotifier returns a sink posting to url.
func NewSlackNotifier(url string) *SlackNotifier {
	return &SlackNotifier{url: url}
}

// Notify implements Notifier.
func (s *SlackNotifier) Notify(ctx context.Context, userID, message string, kind Kind) error {
	msg := &slack.WebhookMessage{
		Text: fmt.Sprintf("[%s] %s", kind, message),
		Attachments: []slack.Attachment{{
			Fields: []slack.AttachmentField{
				{Title: "Recipient", Value: userID, Short: true},
				{Title: "Kind", Value: string(kind), Short: true},
			},
		}},
	}
	if err := slack.PostWebhookContext(ctx, s.url, msg); err != nil {
		return fmt.Errorf("slack webhook: %w", err)
	}
	return nil
}
