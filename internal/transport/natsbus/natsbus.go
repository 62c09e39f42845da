// Package natsbus publishes notifications as JSON envelopes on NATS.
package natsbus

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"maillog/internal/mail"
	"maillog/internal/transport"
	"maillog/pkg/logx"
)

// DefaultSubject is used when Config.Subject is empty.
const DefaultSubject = "maillog.notifications"

type Config struct {
	URL     string
	Subject string
	Name    string
}

// publisher is the subset of *nats.Conn used here.
type publisher interface {
	PublishMsg(m *nats.Msg) error
	FlushWithContext(ctx context.Context) error
}

type Transport struct {
	conn    publisher
	closeFn func()
	subject string
}

// Connect dials NATS and keeps reconnecting for the lifetime of the
// transport.
func Connect(cfg Config, log logx.Logger) (*Transport, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	url := cfg.URL
	if url == "" {
		url = nats.DefaultURL
	}
	opts := []nats.Option{
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.RetryOnFailedConnect(true),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn("nats disconnected", logx.Err(err))
				return
			}
			log.Warn("nats disconnected")
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			log.Info("nats reconnected")
		}),
	}
	if cfg.Name != "" {
		opts = append(opts, nats.Name(cfg.Name))
	}
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("natsbus: connect %s: %w", url, err)
	}
	return &Transport{conn: nc, closeFn: nc.Close, subject: subjectOrDefault(cfg.Subject)}, nil
}

func subjectOrDefault(s string) string {
	s = strings.TrimSuffix(strings.TrimSpace(s), ".")
	if s == "" {
		return DefaultSubject
	}
	return s
}

func (t *Transport) Send(ctx context.Context, msg *mail.Message) error {
	if msg == nil {
		return transport.ErrNilMessage
	}
	env := transport.NewEnvelope(msg)
	payload, err := env.Marshal()
	if err != nil {
		return err
	}
	hdr := nats.Header{}
	hdr.Set("Maillog-Id", env.ID)
	if deadline, ok := ctx.Deadline(); ok {
		hdr.Set("Deadline", deadline.UTC().Format(time.RFC3339Nano))
	}
	if err := t.conn.PublishMsg(&nats.Msg{Subject: t.subject, Data: payload, Header: hdr}); err != nil {
		return fmt.Errorf("natsbus: publish: %w", err)
	}
	// Flush so a process that exits right after Flush of the logger does
	// not lose the notification.
	if err := t.conn.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("natsbus: flush: %w", err)
	}
	return nil
}

func (t *Transport) Close() error {
	if t.closeFn != nil {
		t.closeFn()
	}
	return nil
}
