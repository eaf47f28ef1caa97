package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"foodlog"
)

type doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client posts to a Slack incoming webhook.
type Client struct {
	webhookURL string
	httpClient doer
}

func NewClient(webhookURL string, httpClient doer) *Client {
	return &Client{
		webhookURL: webhookURL,
		httpClient: httpClient,
	}
}

func (c *Client) PostMessage(ctx context.Context, channel string, message string) error {
	payload, err := json.Marshal(map[string]any{
		"channel": channel,
		"text":    message,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to post message: %s", resp.Status)
	}

	return nil
}

// Notifier announces reconciled ingestions on a channel.
type Notifier struct {
	client  foodlog.SlackClient
	channel string
}

func NewNotifier(client foodlog.SlackClient, channel string) *Notifier {
	return &Notifier{client: client, channel: channel}
}

func (n *Notifier) Notify(ctx context.Context, s foodlog.Summary) error {
	return n.client.PostMessage(ctx, n.channel, FormatSummary(s))
}

// FormatSummary renders the one-line announcement for s.
func FormatSummary(s foodlog.Summary) string {
	confidence := "n/a"
	if s.Confidence != nil {
		confidence = fmt.Sprintf("%d%%", *s.Confidence)
	}
	return fmt.Sprintf("Food log %d (user %d): %d ingredients logged, confidence %s",
		s.LogID, s.OwnerID, s.Count, confidence)
}
