// Package slack sends triage notifications to Slack via incoming webhooks.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/linnemanlabs/docbox/internal/triage"
)

const httpTimeout = 10 * time.Second

// Notifier posts notable triage outcomes to a Slack webhook.
type Notifier struct {
	webhookURL string
	client     *http.Client
}

// New creates a new Slack notifier. If webhookURL is empty, Notify is a no-op.
func New(webhookURL string) *Notifier {
	return &Notifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: httpTimeout},
	}
}

// Notify posts the notification to the configured webhook. Best-effort: the
// service fires it asynchronously and only logs failures.
func (n *Notifier) Notify(ctx context.Context, note *triage.Notification) error {
	if n.webhookURL == "" {
		return nil
	}

	body, err := json.Marshal(buildMessage(note))
	if err != nil {
		return fmt.Errorf("slack: marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("slack: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req) //nolint:gosec // G704: webhookURL is from trusted config, not user input
	if err != nil {
		return fmt.Errorf("slack: post webhook: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("slack: webhook returned %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

func buildMessage(note *triage.Notification) map[string]any {
	return map[string]any{
		"blocks": []map[string]any{
			headerBlock(note),
			{"type": "divider"},
			fieldsBlock(note),
		},
	}
}

func headerBlock(note *triage.Notification) map[string]any {
	title := "Triage Notification"
	switch note.Event {
	case triage.NotifyStatIngested:
		title = ":rotating_light: STAT message ingested"
	case triage.NotifyEscalated:
		title = ":arrow_double_up: Message escalated"
	}

	subject := note.Vector.Context.Subject
	if subject == "" {
		subject = note.Vector.Summary
	}

	return map[string]any{
		"type": "header",
		"text": map[string]any{
			"type": "plain_text",
			"text": fmt.Sprintf("%s: %s", title, subject),
		},
	}
}

func fieldsBlock(note *triage.Notification) map[string]any {
	v := note.Vector
	fields := []map[string]any{
		{"type": "mrkdwn", "text": fmt.Sprintf("*Zone:* %s", note.Zone)},
		{"type": "mrkdwn", "text": fmt.Sprintf("*Intent:* %s", v.Intent)},
		{"type": "mrkdwn", "text": fmt.Sprintf("*Risk:* %.2f", v.RiskScore)},
		{"type": "mrkdwn", "text": fmt.Sprintf("*Owner:* %s", v.OwnerRole)},
		{"type": "mrkdwn", "text": fmt.Sprintf("*Lifecycle:* %s", v.Lifecycle)},
	}
	if v.DeadlineAt != nil {
		fields = append(fields, map[string]any{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Deadline:* %s", v.DeadlineAt.Format(time.RFC3339)),
		})
	}
	return map[string]any{"type": "section", "fields": fields}
}
