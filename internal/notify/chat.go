package notify

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"infra-monitor/internal/config"
	"infra-monitor/internal/model"
)

// SlackMessage is the incoming-webhook payload.
type SlackMessage struct {
	Text        string            `json:"text,omitempty"`
	Attachments []SlackAttachment `json:"attachments"`
}

// SlackAttachment is a single message attachment.
type SlackAttachment struct {
	Title  string       `json:"title"`
	Text   string       `json:"text"`
	Color  string       `json:"color"`
	Fields []SlackField `json:"fields"`
	TS     int64        `json:"ts"`
}

// SlackField is a short key/value field of an attachment.
type SlackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

// ChatNotifier posts Slack-compatible webhook messages.
type ChatNotifier struct {
	httpClient *resty.Client
	logger     zerolog.Logger
}

// NewChatNotifier creates a new ChatNotifier.
func NewChatNotifier(cfg *config.ChatConfig, logger zerolog.Logger) *ChatNotifier {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	return &ChatNotifier{
		httpClient: resty.New().
			SetTimeout(timeout).
			SetHeader("Content-Type", "application/json"),
		logger: logger.With().Str("component", "chat-notifier").Logger(),
	}
}

// Name implements Notifier.
func (n *ChatNotifier) Name() string {
	return "slack"
}

// Notify posts the event to the webhook URL in target.
func (n *ChatNotifier) Notify(ctx context.Context, target string, event Event) error {
	resp, err := n.httpClient.R().
		SetContext(ctx).
		SetBody(BuildSlackMessage(event)).
		Post(target)
	if err != nil {
		return fmt.Errorf("failed to post webhook: %w", err)
	}

	if !resp.IsSuccess() {
		n.logger.Error().
			Int("status_code", resp.StatusCode()).
			Str("body", string(resp.Body())).
			Msg("webhook returned non-2xx status")
		return fmt.Errorf("webhook returned status %d: %s", resp.StatusCode(), string(resp.Body()))
	}

	n.logger.Info().Int64("alert_id", event.Rule.ID).Msg("alert webhook sent")
	return nil
}

// BuildSlackMessage renders the webhook payload for an event.
func BuildSlackMessage(event Event) SlackMessage {
	ts := event.TriggeredAt
	if ts.IsZero() {
		ts = time.Now()
	}

	return SlackMessage{
		Attachments: []SlackAttachment{{
			Title: "Monitor Alert: " + event.Node.Name,
			Text:  event.Message,
			Color: AlertColor(event.Value, event.Rule.Threshold),
			Fields: []SlackField{
				{Title: "Node", Value: event.Node.Name, Short: true},
				{Title: "Type", Value: string(event.Node.Type), Short: true},
				{Title: "Metric", Value: event.Rule.MetricType, Short: true},
				{Title: "Value", Value: model.FormatValue(event.Value), Short: true},
				{Title: "Threshold", Value: event.Rule.ThresholdText(), Short: true},
			},
			TS: ts.Unix(),
		}},
	}
}

// AlertColor is danger when the value deviates from the threshold by more
// than 20%, otherwise warning. A zero threshold counts as danger.
func AlertColor(value, threshold float64) string {
	if threshold == 0 {
		return "danger"
	}
	if math.Abs((value-threshold)/threshold)*100 > 20 {
		return "danger"
	}
	return "warning"
}
