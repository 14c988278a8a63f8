package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"text/template"

	"github.com/rs/zerolog"

	"infra-monitor/internal/config"
	"infra-monitor/internal/model"
)

// ErrMailNotConfigured is returned when a mail rule fires without an SMTP host.
var ErrMailNotConfigured = errors.New("mail relay is not configured")

// sendFunc matches smtp.SendMail.
type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

var mailBody = template.Must(template.New("mail").Parse(`Monitor Alert Triggered

{{.Message}}

Node: {{.NodeName}}
Type: {{.NodeType}}
Metric: {{.Metric}}
Value: {{.Value}}
Threshold: {{.Threshold}}
{{if .DetailsURL}}
View Node Details: {{.DetailsURL}}
{{end}}
This alert will not fire again for {{.CooldownMinutes}} minutes.
`))

type mailData struct {
	Message         string
	NodeName        string
	NodeType        string
	Metric          string
	Value           string
	Threshold       string
	DetailsURL      string
	CooldownMinutes int
}

// MailNotifier sends alert mail through an SMTP relay.
type MailNotifier struct {
	config *config.MailConfig
	send   sendFunc
	logger zerolog.Logger
}

// NewMailNotifier creates a new MailNotifier.
func NewMailNotifier(cfg *config.MailConfig, logger zerolog.Logger) *MailNotifier {
	return &MailNotifier{
		config: cfg,
		send:   smtp.SendMail,
		logger: logger.With().Str("component", "mail-notifier").Logger(),
	}
}

// Name implements Notifier.
func (n *MailNotifier) Name() string {
	return "mail"
}

// Notify sends one message to every comma-separated address in target.
func (n *MailNotifier) Notify(_ context.Context, target string, event Event) error {
	if n.config.Host == "" {
		return ErrMailNotConfigured
	}

	to := splitAddresses(target)
	if len(to) == 0 {
		return nil
	}

	msg, err := n.compose(to, event)
	if err != nil {
		return err
	}

	var auth smtp.Auth
	if n.config.Username != "" {
		auth = smtp.PlainAuth("", n.config.Username, n.config.Password, n.config.Host)
	}

	port := n.config.Port
	if port == 0 {
		port = 25
	}
	addr := net.JoinHostPort(n.config.Host, strconv.Itoa(port))

	if err := n.send(addr, auth, n.config.From, to, msg); err != nil {
		return fmt.Errorf("failed to send mail: %w", err)
	}

	n.logger.Info().Strs("to", to).Int64("alert_id", event.Rule.ID).Msg("alert mail sent")
	return nil
}

// Subject returns the mail subject for an event.
func Subject(event Event) string {
	return fmt.Sprintf("Monitor Alert: %s on %s", event.Rule.MetricType, event.Node.Name)
}

func (n *MailNotifier) compose(to []string, event Event) ([]byte, error) {
	data := mailData{
		Message:         event.Message,
		NodeName:        event.Node.Name,
		NodeType:        string(event.Node.Type),
		Metric:          event.Rule.MetricType,
		Value:           model.FormatValue(event.Value),
		Threshold:       event.Rule.ThresholdText(),
		CooldownMinutes: int(event.Rule.EffectiveCooldown().Minutes()),
	}
	if base := strings.TrimRight(n.config.BaseURL, "/"); base != "" {
		data.DetailsURL = fmt.Sprintf("%s/monitor/nodes/%d", base, event.Node.ID)
	}

	var body bytes.Buffer
	if err := mailBody.Execute(&body, data); err != nil {
		return nil, fmt.Errorf("failed to render mail body: %w", err)
	}

	headers := [][2]string{
		{"From", n.config.From},
		{"To", strings.Join(to, ", ")},
		{"Subject", Subject(event)},
		{"MIME-Version", "1.0"},
		{"Content-Type", "text/plain; charset=UTF-8"},
	}

	var msg bytes.Buffer
	for _, h := range headers {
		fmt.Fprintf(&msg, "%s: %s\r\n", h[0], h[1])
	}
	msg.WriteString("\r\n")
	msg.WriteString(strings.ReplaceAll(body.String(), "\n", "\r\n"))

	return msg.Bytes(), nil
}

func splitAddresses(target string) []string {
	var out []string
	for _, addr := range strings.Split(target, ",") {
		if addr = strings.TrimSpace(addr); addr != "" {
			out = append(out, addr)
		}
	}
	return out
}
