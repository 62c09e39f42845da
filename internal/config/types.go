package config

// Config is the on-disk configuration (JSON or YAML).
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
type Config struct {
	Logger    LoggerConfig    `json:"logger"`
	Mail      MailConfig      `json:"mail"`
	Transport TransportConfig `json:"transport"`

	// Notifier wraps the transports in an async queue when enabled.
	Notifier *NotifierConfig `json:"notifier,omitempty"`
	Storage  *StorageConfig  `json:"storage,omitempty"`

	Cycle   CycleConfig   `json:"cycle"`
	Logging LoggingConfig `json:"logging"`
	Metrics MetricsConfig `json:"metrics"`
}

// LoggerConfig controls the diagnostic mail logger.
//
// Defaults:
//   - threshold: "WARN"
//   - aggregate: true (one digest per cycle)
//   - max_events: 30
//   - flush_timeout: "30s"
type LoggerConfig struct {
	Threshold   string `json:"threshold"`
	Aggregate   *bool  `json:"aggregate,omitempty"`
	MaxEvents   int    `json:"max_events,omitempty"`
	TitlePrefix string `json:"title_prefix,omitempty"`

	// AutoText derives the text body from the markup body when true.
	AutoText   bool     `json:"auto_text,omitempty"`
	KeepTags   []string `json:"keep_tags,omitempty"`
	ExpandTags []string `json:"expand_tags,omitempty"`

	FlushTimeout string `json:"flush_timeout,omitempty"`
}

// Aggregates reports whether events are collected into one digest per
// cycle. An omitted aggregate means true.
func (c LoggerConfig) Aggregates() bool {
	return c.Aggregate == nil || *c.Aggregate
}

// MailConfig is the message template. Addresses use RFC 5322 syntax,
// e.g. `Ops <ops@example.com>`.
type MailConfig struct {
	From     string   `json:"from"`
	To       []string `json:"to"`
	Cc       []string `json:"cc,omitempty"`
	Bcc      []string `json:"bcc,omitempty"`
	Encoding string   `json:"encoding,omitempty"`
}

// TransportConfig lists the delivery channels. Every enabled section
// receives every message.
type TransportConfig struct {
	SMTP     *SMTPConfig     `json:"smtp,omitempty"`
	Telegram *TelegramConfig `json:"telegram,omitempty"`
	Webhook  *WebhookConfig  `json:"webhook,omitempty"`
	Pushover *PushoverConfig `json:"pushover,omitempty"`
	NATS     *NATSConfig     `json:"nats,omitempty"`
	Kafka    *KafkaConfig    `json:"kafka,omitempty"`
	MQTT     *MQTTConfig     `json:"mqtt,omitempty"`
}

type SMTPConfig struct {
	Enabled  bool   `json:"enabled"`
	Host     string `json:"host"`
	Port     int    `json:"port,omitempty"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"` // do not log
}

type TelegramConfig struct {
	Enabled        bool    `json:"enabled"`
	Token          string  `json:"token"` // do not log
	ChatIDs        []int64 `json:"chat_ids"`
	ThreadID       int     `json:"thread_id,omitempty"`
	DisablePreview bool    `json:"disable_preview,omitempty"`
	URL            string  `json:"url,omitempty"`
	Timeout        string  `json:"timeout,omitempty"`
}

type WebhookConfig struct {
	Enabled bool              `json:"enabled"`
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers,omitempty"` // values not logged
	Timeout string            `json:"timeout,omitempty"`
}

type PushoverConfig struct {
	Enabled  bool   `json:"enabled"`
	Token    string `json:"token"` // do not log
	User     string `json:"user"`
	Priority int    `json:"priority,omitempty"`
}

type NATSConfig struct {
	Enabled bool   `json:"enabled"`
	URL     string `json:"url"`
	Subject string `json:"subject,omitempty"`
}

type KafkaConfig struct {
	Enabled bool     `json:"enabled"`
	Brokers []string `json:"brokers"`
	Topic   string   `json:"topic,omitempty"`
	Key     string   `json:"key,omitempty"`
}

type MQTTConfig struct {
	Enabled  bool   `json:"enabled"`
	Broker   string `json:"broker"`
	ClientID string `json:"client_id,omitempty"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"` // do not log
	Topic    string `json:"topic"`
	QoS      byte   `json:"qos,omitempty"`
	Retained bool   `json:"retained,omitempty"`
}

// NotifierConfig controls the async notification pipeline.
//
// Defaults (when fields are omitted/zero):
//   - workers: 2
//   - queue_size: 256
//   - rate_per_sec: 2
//   - retry_base: "500ms", retry_max_delay: "30s"
//   - send_timeout: "30s"
//   - dedup_window: "0s" (disabled)
type NotifierConfig struct {
	Enabled         bool   `json:"enabled"`
	Workers         int    `json:"workers,omitempty"`
	QueueSize       int    `json:"queue_size,omitempty"`
	RatePerSec      int    `json:"rate_per_sec,omitempty"`
	RetryMax        int    `json:"retry_max,omitempty"`
	RetryBase       string `json:"retry_base,omitempty"`
	RetryMaxDelay   string `json:"retry_max_delay,omitempty"`
	SendTimeout     string `json:"send_timeout,omitempty"`
	DedupWindow     string `json:"dedup_window,omitempty"`
	DedupMaxEntries int    `json:"dedup_max_entries,omitempty"`
	PersistDedup    bool   `json:"persist_dedup,omitempty"`
}

// StorageConfig controls the optional persistence layer.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./maillog.db" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite only
}

// CycleConfig schedules digest rotation in daemon mode.
// Schedule is a cron spec ("0 * * * *") or descriptor ("@every 15m").
type CycleConfig struct {
	Schedule string `json:"schedule,omitempty"`
	Timezone string `json:"timezone,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	JSON    bool        `json:"json,omitempty"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// MetricsConfig controls the Prometheus endpoint served in daemon mode.
//
// Security note:
//   - Prefer binding to localhost.
//   - A non-loopback addr needs a token or an explicit allow_insecure.
type MetricsConfig struct {
	Enabled       bool   `json:"enabled"`
	Addr          string `json:"addr,omitempty"`  // default: "127.0.0.1:9464"
	Path          string `json:"path,omitempty"`  // default: "/metrics"
	Token         string `json:"token,omitempty"` // bearer token (do not log)
	AllowInsecure bool   `json:"allow_insecure,omitempty"`
	Pprof         bool   `json:"pprof,omitempty"`
}
