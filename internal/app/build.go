package app

import (
	"errors"
	"strings"
	"time"

	"maillog/internal/config"
	"maillog/internal/mail"
	"maillog/internal/markup"
	"maillog/internal/notifier"
	"maillog/internal/storage"
	"maillog/pkg/logx"
)

// Template builds the message template from the mail and logger sections.
func Template(cfg *config.Config) (*mail.Message, error) {
	m := mail.New()
	if strings.TrimSpace(cfg.Mail.From) != "" {
		from, err := config.ParseAddress(cfg.Mail.From)
		if err != nil {
			return nil, err
		}
		m.SetFrom(from)
	}
	for _, l := range []struct {
		raw []string
		set func([]mail.Address)
	}{
		{cfg.Mail.To, m.SetTo},
		{cfg.Mail.Cc, m.SetCc},
		{cfg.Mail.Bcc, m.SetBcc},
	} {
		as, err := config.ParseAddresses(l.raw)
		if err != nil {
			return nil, err
		}
		l.set(as)
	}
	if cfg.Mail.Encoding != "" {
		m.SetEncoding(cfg.Mail.Encoding)
	}

	m.AutoCreateBodyText(cfg.Logger.AutoText)
	expand := cfg.Logger.ExpandTags
	if len(expand) == 0 {
		expand = markup.DefaultExpand
	}
	m.SetStripTags(cfg.Logger.KeepTags, expand)
	return m, nil
}

func notifierConfig(c *config.NotifierConfig) (notifier.Config, error) {
	if c == nil || !c.Enabled {
		return notifier.Config{}, nil
	}
	out := notifier.Config{
		Enabled:         true,
		Workers:         c.Workers,
		QueueSize:       c.QueueSize,
		RatePerSec:      c.RatePerSec,
		RetryMax:        c.RetryMax,
		DedupMaxEntries: c.DedupMaxEntries,
		PersistDedup:    c.PersistDedup,
	}
	var err error
	if out.RetryBase, err = config.Duration("notifier.retry_base", c.RetryBase, 0); err != nil {
		return out, err
	}
	if out.RetryMaxDelay, err = config.Duration("notifier.retry_max_delay", c.RetryMaxDelay, 0); err != nil {
		return out, err
	}
	if out.SendTimeout, err = config.Duration("notifier.send_timeout", c.SendTimeout, 0); err != nil {
		return out, err
	}
	if out.DedupWindow, err = config.Duration("notifier.dedup_window", c.DedupWindow, 0); err != nil {
		return out, err
	}
	return out, nil
}

// openStorage returns (nil, nil) when storage is omitted or "none".
func openStorage(c *config.StorageConfig, log logx.Logger) (storage.Store, error) {
	if c == nil {
		return nil, nil
	}
	driver := strings.ToLower(strings.TrimSpace(c.Driver))
	path := strings.TrimSpace(c.Path)
	if (driver == "sqlite" || driver == "sqlite3") && path == "" {
		return nil, errors.New("storage.path is required when storage.driver=sqlite")
	}
	busy, err := config.Duration("storage.busy_timeout", c.BusyTimeout, time.Second)
	if err != nil {
		return nil, err
	}
	return storage.Open(storage.Config{Driver: driver, Path: path, BusyTimeout: busy}, log.With(logx.String("comp", "storage")))
}

func logxConfig(c config.LoggingConfig) logx.Config {
	return logx.Config{
		Level:   c.Level,
		Console: c.Console,
		JSON:    c.JSON,
		File:    logx.FileConfig{Enabled: c.File.Enabled, Path: c.File.Path},
	}
}
