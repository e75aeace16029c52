package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

var ErrSlackDisabled = errors.New("slack: no webhook configured")

// Slack posts alerts to an incoming webhook as a colored attachment.
type Slack struct {
	Webhook string
	Client  *http.Client
}

// NewSlack returns nil when webhook is empty so callers can skip wiring it.
func NewSlack(webhook string) *Slack {
	if webhook == "" {
		return nil
	}
	return &Slack{
		Webhook: webhook,
		Client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type slackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

type slackAttachment struct {
	Fallback string       `json:"fallback"`
	Color    string       `json:"color"`
	Title    string       `json:"title"`
	Fields   []slackField `json:"fields"`
	TS       int64        `json:"ts"`
}

type slackMessage struct {
	Text        string            `json:"text"`
	Attachments []slackAttachment `json:"attachments"`
}

func slackMessageFor(a Alert) slackMessage {
	color := "good"
	if a.Down {
		color = "danger"
	}
	reason := a.Reason
	if reason == "" {
		reason = "ok"
	}
	return slackMessage{
		Text: "*" + a.Title() + "* " + a.Target,
		Attachments: []slackAttachment{{
			Fallback: a.Text(),
			Color:    color,
			Title:    a.Target,
			Fields: []slackField{
				{Title: "Address", Value: a.Address, Short: true},
				{Title: "Latency", Value: strconv.FormatFloat(a.LatencyMS, 'f', 0, 64) + " ms", Short: true},
				{Title: "Reason", Value: reason},
			},
			TS: a.CheckedAt.Unix(),
		}},
	}
}

func (s *Slack) Notify(ctx context.Context, a Alert) error {
	if s == nil || s.Webhook == "" {
		return ErrSlackDisabled
	}
	body, err := json.Marshal(slackMessageFor(a))
	if err != nil {
		return fmt.Errorf("slack: encode: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.Webhook, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("slack: request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.Client.Do(req)
	if err != nil {
		return fmt.Errorf("slack: post: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("slack: unexpected status %d", resp.StatusCode)
	}
	return nil
}
