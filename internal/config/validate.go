package config

import (
	"errors"
	"fmt"
	netmail "net/mail"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"maillog/internal/mail"
	"maillog/internal/severity"
)

var ErrNoTransport = errors.New("no transport enabled")

// Validate reports every problem found in cfg, joined.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	var errs []error
	add := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	if _, err := Threshold(cfg.Logger); err != nil {
		add(fmt.Errorf("logger.threshold: %w", err))
	}
	if cfg.Logger.MaxEvents < 0 {
		add(errors.New("logger.max_events: must be >= 0"))
	}
	_, err := Duration("logger.flush_timeout", cfg.Logger.FlushTimeout, 0)
	add(err)

	if strings.TrimSpace(cfg.Mail.From) != "" {
		_, err := ParseAddress(cfg.Mail.From)
		add(err)
	}
	for _, list := range [][]string{cfg.Mail.To, cfg.Mail.Cc, cfg.Mail.Bcc} {
		_, err := ParseAddresses(list)
		add(err)
	}

	add(validateTransport(cfg))

	if n := cfg.Notifier; n != nil {
		for path, raw := range map[string]string{
			"notifier.retry_base":      n.RetryBase,
			"notifier.retry_max_delay": n.RetryMaxDelay,
			"notifier.send_timeout":    n.SendTimeout,
			"notifier.dedup_window":    n.DedupWindow,
		} {
			_, err := Duration(path, raw, 0)
			add(err)
		}
		if n.PersistDedup && cfg.Storage == nil {
			add(errors.New("notifier.persist_dedup: requires storage"))
		}
	}
	if s := cfg.Storage; s != nil {
		switch strings.ToLower(strings.TrimSpace(s.Driver)) {
		case "", "none", "file", "sqlite", "sqlite3":
		default:
			add(fmt.Errorf("storage.driver: unknown driver %q", s.Driver))
		}
		_, err := Duration("storage.busy_timeout", s.BusyTimeout, 0)
		add(err)
	}

	if spec := strings.TrimSpace(cfg.Cycle.Schedule); spec != "" {
		if _, err := cron.ParseStandard(spec); err != nil {
			add(fmt.Errorf("cycle.schedule: %w", err))
		}
	}
	if tz := strings.TrimSpace(cfg.Cycle.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			add(fmt.Errorf("cycle.timezone: %w", err))
		}
	}

	return errors.Join(errs...)
}

func validateTransport(cfg *Config) error {
	t := cfg.Transport
	var errs []error
	enabled := 0
	need := func(ok bool, msg string) {
		if !ok {
			errs = append(errs, errors.New(msg))
		}
	}

	if c := t.SMTP; c != nil && c.Enabled {
		enabled++
		need(strings.TrimSpace(c.Host) != "", "transport.smtp.host: required")
		need(len(cfg.Mail.To)+len(cfg.Mail.Cc)+len(cfg.Mail.Bcc) > 0, "mail.to: smtp requires at least one recipient")
		need(strings.TrimSpace(cfg.Mail.From) != "", "mail.from: required by smtp")
	}
	if c := t.Telegram; c != nil && c.Enabled {
		enabled++
		need(strings.TrimSpace(c.Token) != "", "transport.telegram.token: required")
		need(len(c.ChatIDs) > 0, "transport.telegram.chat_ids: required")
		if _, err := Duration("transport.telegram.timeout", c.Timeout, 0); err != nil {
			errs = append(errs, err)
		}
	}
	if c := t.Webhook; c != nil && c.Enabled {
		enabled++
		need(strings.HasPrefix(c.URL, "http://") || strings.HasPrefix(c.URL, "https://"), "transport.webhook.url: must be http(s)")
		if _, err := Duration("transport.webhook.timeout", c.Timeout, 0); err != nil {
			errs = append(errs, err)
		}
	}
	if c := t.Pushover; c != nil && c.Enabled {
		enabled++
		need(c.Token != "" && c.User != "", "transport.pushover: token and user required")
	}
	if c := t.NATS; c != nil && c.Enabled {
		enabled++
		need(strings.TrimSpace(c.URL) != "", "transport.nats.url: required")
	}
	if c := t.Kafka; c != nil && c.Enabled {
		enabled++
		need(len(c.Brokers) > 0, "transport.kafka.brokers: required")
	}
	if c := t.MQTT; c != nil && c.Enabled {
		enabled++
		need(strings.TrimSpace(c.Broker) != "", "transport.mqtt.broker: required")
		need(strings.Trim(c.Topic, "/ ") != "", "transport.mqtt.topic: required")
		need(c.QoS <= 2, "transport.mqtt.qos: must be 0, 1 or 2")
	}

	if enabled == 0 {
		errs = append(errs, ErrNoTransport)
	}
	return errors.Join(errs...)
}

// Threshold resolves logger.threshold, defaulting to WARN.
func Threshold(c LoggerConfig) (severity.Severity, error) {
	if strings.TrimSpace(c.Threshold) == "" {
		return severity.Warn, nil
	}
	return severity.Parse(c.Threshold)
}

// ParseAddress parses `Name <email>` or a bare address.
func ParseAddress(raw string) (mail.Address, error) {
	a, err := netmail.ParseAddress(strings.TrimSpace(raw))
	if err != nil {
		return mail.Address{}, fmt.Errorf("address %q: %w", raw, err)
	}
	return mail.Address{Email: a.Address, Name: a.Name}, nil
}

func ParseAddresses(raw []string) ([]mail.Address, error) {
	out := make([]mail.Address, 0, len(raw))
	for _, r := range raw {
		a, err := ParseAddress(r)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}
