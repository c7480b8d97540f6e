package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"
)

// Slack posts run notifications to a Slack incoming webhook.
type Slack struct {
	client     *http.Client
	webhookURL string
}

// NewSlack creates a new Slack notifier.
func NewSlack(webhookURL string) *Slack {
	return &Slack{
		client:     &http.Client{Timeout: 10 * time.Second},
		webhookURL: webhookURL,
	}
}

func (s *Slack) Name() string { return "slack" }

func (s *Slack) Send(ctx context.Context, n *Notification) error {
	body, err := json.Marshal(map[string]any{"blocks": slackBlocks(n)})
	if err != nil {
		return fmt.Errorf("marshal slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send slack webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack webhook status %d", resp.StatusCode)
	}
	return nil
}

func slackBlocks(n *Notification) []map[string]any {
	header := fmt.Sprintf("hnpipe %s run %s", n.Deployment, n.Status)

	tables := make([]string, 0, len(n.Tables))
	for name, rows := range n.Tables {
		tables = append(tables, fmt.Sprintf("*%s:* %d rows", name, rows))
	}
	sort.Strings(tables)

	detail := strings.Join(tables, " | ")
	if n.Error != "" {
		detail = "```" + n.Error + "```"
	}
	if detail == "" {
		detail = "no tables written"
	}

	return []map[string]any{
		{
			"type": "header",
			"text": map[string]any{"type": "plain_text", "text": header},
		},
		{
			"type": "section",
			"text": map[string]any{"type": "mrkdwn", "text": detail},
		},
		{
			"type": "context",
			"elements": []map[string]any{
				{"type": "mrkdwn", "text": fmt.Sprintf("run `%s` took %s", n.RunID, n.Duration)},
			},
		},
	}
}
