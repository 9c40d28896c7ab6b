package notify

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"
)

// SlackChannel delivers notifications to a Slack incoming webhook,
// grounded on the slack-go/slack dependency carried in the pack's go.mod
// (jordigilh-kubernaut), using its public PostWebhookContext API.
type SlackChannel struct {
	webhookURL string
}

// NewSlackChannel constructs a SlackChannel posting to webhookURL.
func NewSlackChannel(webhookURL string) *SlackChannel {
	return &SlackChannel{webhookURL: webhookURL}
}

func (c *SlackChannel) Name() string { return "slack" }

// Send renders p as a simple Slack message and posts it via the incoming
// webhook.
func (c *SlackChannel) Send(ctx context.Context, p Payload) error {
	msg := &slack.WebhookMessage{
		Text: fmt.Sprintf(
			"decision: %s %s (%s) confidence=%.2f advisory_signals=%d",
			p.Symbol, p.Timeframe, p.CorrelationID, p.Confidence, len(p.AdvisorySignals),
		),
	}
	if err := slack.PostWebhookContext(ctx, c.webhookURL, msg); err != nil {
		return fmt.Errorf("post slack webhook: %w", err)
	}
	return nil
}
