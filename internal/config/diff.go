package config

import (
	"reflect"
	"sort"
	"strings"

	"maillog/pkg/logx"
)

// Diff returns the changed top-level sections and log fields summarizing
// the new values. Secrets (passwords, tokens, header values) never appear.
func Diff(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}
	var (
		changed []string
		attrs   []logx.Field
	)

	if !reflect.DeepEqual(oldCfg.Logger, newCfg.Logger) {
		l := newCfg.Logger
		changed = append(changed, "logger")
		attrs = append(attrs,
			logx.String("logger.threshold", strings.ToUpper(strings.TrimSpace(l.Threshold))),
			logx.Bool("logger.aggregate", l.Aggregates()),
			logx.Int("logger.max_events", l.MaxEvents),
		)
	}

	if !reflect.DeepEqual(oldCfg.Mail, newCfg.Mail) {
		changed = append(changed, "mail")
		attrs = append(attrs, logx.Int("mail.recipients", len(newCfg.Mail.To)+len(newCfg.Mail.Cc)+len(newCfg.Mail.Bcc)))
	}

	if !reflect.DeepEqual(oldCfg.Transport, newCfg.Transport) {
		changed = append(changed, "transport")
		attrs = append(attrs, logx.Strs("transport.enabled", EnabledTransports(newCfg.Transport)))
	}

	if !reflect.DeepEqual(oldCfg.Notifier, newCfg.Notifier) {
		changed = append(changed, "notifier")
		n := NotifierConfig{}
		if newCfg.Notifier != nil {
			n = *newCfg.Notifier
		}
		attrs = append(attrs,
			logx.Bool("notifier.enabled", n.Enabled),
			logx.Int("notifier.workers", n.Workers),
			logx.Int("notifier.rate_per_sec", n.RatePerSec),
			logx.Int("notifier.retry_max", n.RetryMax),
		)
	}

	if !reflect.DeepEqual(oldCfg.Storage, newCfg.Storage) {
		changed = append(changed, "storage")
		driver := ""
		if newCfg.Storage != nil {
			driver = strings.TrimSpace(newCfg.Storage.Driver)
		}
		attrs = append(attrs, logx.String("storage.driver", driver))
	}

	if oldCfg.Cycle != newCfg.Cycle {
		changed = append(changed, "cycle")
		attrs = append(attrs, logx.String("cycle.schedule", newCfg.Cycle.Schedule))
	}

	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
		)
	}

	if oldCfg.Metrics != newCfg.Metrics {
		changed = append(changed, "metrics")
		attrs = append(attrs, logx.Bool("metrics.enabled", newCfg.Metrics.Enabled))
	}

	sort.Strings(changed)
	return changed, attrs
}

// EnabledTransports lists enabled transport names in a fixed order.
func EnabledTransports(t TransportConfig) []string {
	var out []string
	if t.SMTP != nil && t.SMTP.Enabled {
		out = append(out, "smtp")
	}
	if t.Telegram != nil && t.Telegram.Enabled {
		out = append(out, "telegram")
	}
	if t.Webhook != nil && t.Webhook.Enabled {
		out = append(out, "webhook")
	}
	if t.Pushover != nil && t.Pushover.Enabled {
		out = append(out, "pushover")
	}
	if t.NATS != nil && t.NATS.Enabled {
		out = append(out, "nats")
	}
	if t.Kafka != nil && t.Kafka.Enabled {
		out = append(out, "kafka")
	}
	if t.MQTT != nil && t.MQTT.Enabled {
		out = append(out, "mqtt")
	}
	return out
}
