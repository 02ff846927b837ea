package telemetry

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"
	"github.com/stake-plus/geo-sink/src/logging"
)

const maxMessageLen = 2000

// Discord posts captures to a webhook. Delivery failures are logged and
// never reach the caller.
type Discord struct {
	session     *discordgo.Session
	webhookID   string
	token       string
	environment string
	log         zerolog.Logger
}

// NewDiscord accepts a webhook URL of the form
// https://discord.com/api/webhooks/<id>/<token>.
func NewDiscord(webhookURL, environment string) (*Discord, error) {
	id, token, err := parseWebhookURL(webhookURL)
	if err != nil {
		return nil, err
	}
	session, err := discordgo.New("")
	if err != nil {
		return nil, err
	}
	return &Discord{
		session:     session,
		webhookID:   id,
		token:       token,
		environment: environment,
		log:         logging.Component("telemetry"),
	}, nil
}

func parseWebhookURL(raw string) (id, token string, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("parse webhook url: %w", err)
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := 0; i+2 < len(parts); i++ {
		if parts[i] == "webhooks" && parts[i+1] != "" && parts[i+2] != "" {
			return parts[i+1], parts[i+2], nil
		}
	}
	return "", "", fmt.Errorf("webhook url %q has no webhooks/<id>/<token> path", u.Redacted())
}

func (d *Discord) CaptureException(ctx context.Context, err error) {
	if err == nil {
		return
	}
	d.send(ctx, fmt.Sprintf("**error**%s\n```\n%s\n```", d.tag(), err.Error()))
}

func (d *Discord) CaptureMessage(ctx context.Context, msg string) {
	d.send(ctx, msg+d.tag())
}

func (d *Discord) tag() string {
	if d.environment == "" {
		return ""
	}
	return " [" + d.environment + "]"
}

func (d *Discord) send(ctx context.Context, content string) {
	params := &discordgo.WebhookParams{
		Content:  truncate(content, maxMessageLen),
		Username: "geo-sink",
	}
	if _, err := d.session.WebhookExecute(d.webhookID, d.token, false, params, discordgo.WithContext(ctx)); err != nil {
		d.log.Warn().Err(err).Msg("telemetry delivery failed")
	}
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	const marker = "\n...(truncated)"
	cut := n - len(marker)
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + marker
}
