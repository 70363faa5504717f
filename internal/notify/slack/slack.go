// Package slack announces created and updated tickets to Slack via
// incoming webhooks.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/linnemanlabs/phalerts/internal/reconcile"
)

const (
	maxHeaderLen = 150 // Slack plain_text header limit
	maxTitleLen  = 2000
	httpTimeout  = 10 * time.Second
)

var _ reconcile.Notifier = (*Notifier)(nil)

// Notifier posts ticket writes to a Slack webhook.
type Notifier struct {
	webhookURL string
	client     *http.Client
	now        func() time.Time
}

// New creates a new Slack notifier. If webhookURL is empty, Send is a no-op.
func New(webhookURL string) *Notifier {
	return &Notifier{
		webhookURL: webhookURL,
		client: &http.Client{
			Timeout:   httpTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		now: time.Now,
	}
}

// Send posts a notification to the configured Slack webhook.
// If no webhook URL is configured, it returns nil immediately.
func (n *Notifier) Send(ctx context.Context, note *reconcile.Notification) error {
	if n.webhookURL == "" {
		return nil
	}

	msg := buildMessage(note, n.now())

	body, err := json.Marshal(msg)
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

func buildMessage(note *reconcile.Notification, ts time.Time) map[string]any {
	return map[string]any{
		"text": fallbackText(note),
		"blocks": []map[string]any{
			headerBlock(note),
			titleBlock(note),
			fieldsBlock(note),
			contextBlock(note, ts),
		},
	}
}

// fallbackText is shown in notifications and clients without Block Kit.
func fallbackText(note *reconcile.Notification) string {
	return fmt.Sprintf("Ticket %s: %s", note.Outcome, note.Title)
}

func headerBlock(note *reconcile.Notification) map[string]any {
	text := fmt.Sprintf("%s Ticket %s", outcomeEmoji(note.Outcome), outcomeVerb(note.Outcome))
	if note.Ticket != nil && note.Ticket.ID != "" {
		text += " T" + note.Ticket.ID
	}

	return map[string]any{
		"type": "header",
		"text": map[string]any{
			"type": "plain_text",
			"text": truncate(text, maxHeaderLen),
		},
	}
}

func titleBlock(note *reconcile.Notification) map[string]any {
	return map[string]any{
		"type": "section",
		"text": map[string]any{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*%s*", escape(truncate(note.Title, maxTitleLen))),
		},
	}
}

func fieldsBlock(note *reconcile.Notification) map[string]any {
	ticket := "_unknown_"
	if note.Ticket != nil {
		switch {
		case note.Ticket.URL != "":
			ticket = fmt.Sprintf("<%s|T%s>", note.Ticket.URL, note.Ticket.ID)
		case note.Ticket.ID != "":
			ticket = "T" + note.Ticket.ID
		}
	}

	return map[string]any{
		"type": "section",
		"fields": []map[string]any{
			{
				"type": "mrkdwn",
				"text": fmt.Sprintf("*Outcome:* %s", note.Outcome),
			},
			{
				"type": "mrkdwn",
				"text": fmt.Sprintf("*Ticket:* %s", ticket),
			},
		},
	}
}

func contextBlock(note *reconcile.Notification, ts time.Time) map[string]any {
	elements := []map[string]any{
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("phalerts • reconcile %s • %s", note.ReconcileID, ts.UTC().Format("2006-01-02 15:04 UTC")),
		},
	}

	return map[string]any{
		"type":     "context",
		"elements": elements,
	}
}

func outcomeEmoji(o reconcile.Outcome) string {
	switch o {
	case reconcile.OutcomeCreated:
		return "\U0001f534" // red circle
	case reconcile.OutcomeUpdated:
		return "\U0001f7e1" // yellow circle
	default:
		return "\U0001f7e2" // green circle
	}
}

func outcomeVerb(o reconcile.Outcome) string {
	switch o {
	case reconcile.OutcomeCreated:
		return "Created"
	case reconcile.OutcomeUpdated:
		return "Updated"
	default:
		return "Unchanged"
	}
}

var mrkdwnEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

// escape makes user text safe for Slack mrkdwn.
func escape(s string) string {
	return mrkdwnEscaper.Replace(s)
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit-3] + "..."
}
