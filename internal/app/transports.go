package app

import (
	"fmt"
	"strings"

	"maillog/internal/config"
	"maillog/internal/transport"
	"maillog/internal/transport/kafka"
	"maillog/internal/transport/mqtt"
	"maillog/internal/transport/natsbus"
	"maillog/internal/transport/pushover"
	"maillog/internal/transport/smtp"
	"maillog/internal/transport/telegram"
	"maillog/internal/transport/webhook"
	"maillog/pkg/logx"
)

// OpenTransports builds every enabled transport, each wrapped in
// transport.Named. On error, transports opened so far are closed.
func OpenTransports(cfg *config.Config, log logx.Logger) (transport.Multi, error) {
	t := cfg.Transport
	var out transport.Multi
	fail := func(name string, err error) (transport.Multi, error) {
		_ = out.Close()
		return nil, fmt.Errorf("transport %s: %w", name, err)
	}

	if c := t.SMTP; c != nil && c.Enabled {
		from, err := config.ParseAddress(cfg.Mail.From)
		if err != nil {
			return fail("smtp", err)
		}
		tr, err := smtp.New(smtp.Config{Host: c.Host, Port: c.Port, Username: c.Username, Password: c.Password, From: from})
		if err != nil {
			return fail("smtp", err)
		}
		out = append(out, transport.Named{Name: "smtp", Transport: tr})
	}
	if c := t.Telegram; c != nil && c.Enabled {
		timeout, err := config.Duration("transport.telegram.timeout", c.Timeout, 0)
		if err != nil {
			return fail("telegram", err)
		}
		tr, err := telegram.New(telegram.Config{
			Token:          c.Token,
			ChatIDs:        c.ChatIDs,
			ThreadID:       c.ThreadID,
			DisablePreview: c.DisablePreview,
			URL:            c.URL,
			Timeout:        timeout,
		})
		if err != nil {
			return fail("telegram", err)
		}
		out = append(out, transport.Named{Name: "telegram", Transport: tr})
	}
	if c := t.Webhook; c != nil && c.Enabled {
		opts := []webhook.Option{webhook.WithHeaders(c.Headers)}
		timeout, err := config.Duration("transport.webhook.timeout", c.Timeout, 0)
		if err != nil {
			return fail("webhook", err)
		}
		if timeout > 0 {
			opts = append(opts, webhook.WithTimeout(timeout))
		}
		out = append(out, transport.Named{Name: "webhook", Transport: webhook.New(c.URL, opts...)})
	}
	if c := t.Pushover; c != nil && c.Enabled {
		tr := pushover.Transport{Token: c.Token, User: c.User, Priority: c.Priority}
		out = append(out, transport.Named{Name: "pushover", Transport: tr})
	}
	if c := t.NATS; c != nil && c.Enabled {
		tr, err := natsbus.Connect(natsbus.Config{URL: c.URL, Subject: c.Subject, Name: "maillog"}, log.With(logx.String("comp", "nats")))
		if err != nil {
			return fail("nats", err)
		}
		out = append(out, transport.Named{Name: "nats", Transport: tr})
	}
	if c := t.Kafka; c != nil && c.Enabled {
		tr, err := kafka.New(kafka.Config{Brokers: c.Brokers, Topic: c.Topic, Key: c.Key})
		if err != nil {
			return fail("kafka", err)
		}
		out = append(out, transport.Named{Name: "kafka", Transport: tr})
	}
	if c := t.MQTT; c != nil && c.Enabled {
		tr, err := mqtt.Connect(mqtt.Config{
			Broker:   c.Broker,
			ClientID: c.ClientID,
			Username: c.Username,
			Password: c.Password,
			Topic:    c.Topic,
			QoS:      c.QoS,
			Retained: c.Retained,
		})
		if err != nil {
			return fail("mqtt", err)
		}
		out = append(out, transport.Named{Name: "mqtt", Transport: tr})
	}

	if len(out) == 0 {
		return nil, config.ErrNoTransport
	}
	return out, nil
}

// transportName labels delivery records, e.g. "smtp+webhook".
func transportName(m transport.Multi) string {
	names := make([]string, 0, len(m))
	for _, t := range m {
		if n, ok := t.(transport.Named); ok {
			names = append(names, n.Name)
		}
	}
	return strings.Join(names, "+")
}
