// Package smtp delivers notifications as MIME mail over SMTP.
package smtp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	netmail "net/mail"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	gomail "github.com/wneessen/go-mail"

	"maillog/internal/mail"
	"maillog/internal/transport"
)

const defaultTimeout = 30 * time.Second

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	// From is used when a message carries no sender.
	From mail.Address
	// Timeout bounds the connection. 0 means 30s.
	Timeout time.Duration
}

// sender is the part of *gomail.Client the transport uses.
type sender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*gomail.Msg) error
}

type Transport struct {
	cfg    Config
	client sender
	now    func() time.Time
}

func New(cfg Config) (*Transport, error) {
	if strings.TrimSpace(cfg.Host) == "" {
		return nil, errors.New("smtp: host is required")
	}
	if cfg.Port == 0 {
		cfg.Port = 25
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	opts := []gomail.Option{
		gomail.WithPort(cfg.Port),
		gomail.WithTimeout(cfg.Timeout),
		gomail.WithTLSPolicy(gomail.TLSOpportunistic),
	}
	if cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(cfg.Username),
			gomail.WithPassword(cfg.Password),
		)
	}
	client, err := gomail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("smtp: %w", err)
	}
	return &Transport{cfg: cfg, client: client, now: time.Now}, nil
}

func (t *Transport) Send(ctx context.Context, msg *mail.Message) error {
	if msg == nil {
		return transport.ErrNilMessage
	}
	if len(msg.Recipients()) == 0 {
		return transport.ErrNoRecipients
	}
	from := msg.From()
	if from.IsZero() {
		from = t.cfg.From
	}
	if from.IsZero() {
		return errors.New("smtp: no sender address")
	}

	if err := t.client.DialAndSendWithContext(ctx, t.compose(msg, from)); err != nil {
		return fmt.Errorf("smtp: %w", err)
	}
	return nil
}

// compose maps msg onto a go-mail message. Bcc recipients only reach the
// envelope; go-mail never writes a Bcc header.
func (t *Transport) compose(msg *mail.Message, from mail.Address) *gomail.Msg {
	m := gomail.NewMsg(
		gomail.WithCharset(gomail.Charset(msg.Encoding())),
		gomail.WithEncoding(gomail.EncodingQP),
	)
	m.FromMailAddress(address(from))
	if to := msg.To(); len(to) > 0 {
		m.ToMailAddress(addresses(to)...)
	}
	if cc := msg.Cc(); len(cc) > 0 {
		m.CcMailAddress(addresses(cc)...)
	}
	if bcc := msg.Bcc(); len(bcc) > 0 {
		m.BccMailAddress(addresses(bcc)...)
	}
	m.Subject(msg.Title())
	m.SetDateWithValue(t.now())
	m.SetMessageIDWithValue(uuid.NewString() + "@" + hostname())

	text, html := msg.BodyText(), msg.BodyHTML()
	switch {
	case html == "":
		m.SetBodyString(gomail.TypeTextPlain, text)
	case text == "":
		m.SetBodyString(gomail.TypeTextHTML, html)
	default:
		m.SetBodyString(gomail.TypeTextPlain, text)
		m.AddAlternativeString(gomail.TypeTextHTML, html)
	}

	for _, a := range msg.Attachments() {
		var opts []gomail.FileOption
		if a.ContentType != "" {
			opts = append(opts, gomail.WithFileContentType(gomail.ContentType(a.ContentType)))
		}
		m.AttachReadSeeker(a.Name, bytes.NewReader(a.Data), opts...)
	}
	return m
}

func address(a mail.Address) *netmail.Address {
	return &netmail.Address{Name: strings.TrimSpace(a.Name), Address: a.Email}
}

func addresses(as []mail.Address) []*netmail.Address {
	out := make([]*netmail.Address, len(as))
	for i, a := range as {
		out[i] = address(a)
	}
	return out
}

func hostname() string {
	h, err := os.Hostname()
	if err != nil || h == "" {
		return "localhost"
	}
	return h
}
