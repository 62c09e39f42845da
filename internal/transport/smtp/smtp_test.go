package smtp

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	netmail "net/mail"
	"strings"
	"sync"
	"testing"
	"time"

	gomail "github.com/wneessen/go-mail"

	"maillog/internal/mail"
	"maillog/internal/transport"
)

type capture struct {
	mu   sync.Mutex
	msgs []*gomail.Msg
	err  error
}

func (c *capture) DialAndSendWithContext(ctx context.Context, msgs ...*gomail.Msg) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, msgs...)
	return c.err
}

func (c *capture) last(t *testing.T) *gomail.Msg {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.msgs) != 1 {
		t.Fatalf("sent %d messages", len(c.msgs))
	}
	return c.msgs[0]
}

func newTestTransport(t *testing.T, cfg Config, c *capture) *Transport {
	t.Helper()
	tr, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	tr.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	tr.client = c
	return tr
}

func baseMessage() *mail.Message {
	m := mail.New()
	m.SetTitle("[prod] Errors occurred in your application.")
	m.AddTo(mail.Address{Email: "ops@example.com", Name: "Ops"})
	m.AddCc(mail.Address{Email: "dev@example.com"})
	m.AddBcc(mail.Address{Email: "audit@example.com"})
	return m
}

func parse(t *testing.T, m *gomail.Msg) *netmail.Message {
	t.Helper()
	var buf bytes.Buffer
	if _, err := m.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}
	parsed, err := netmail.ReadMessage(&buf)
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	return parsed
}

func TestSendAlternative(t *testing.T) {
	t.Parallel()
	var c capture
	tr := newTestTransport(t, Config{Host: "mx.example.com", Port: 587, Username: "u", Password: "p",
		From: mail.Address{Email: "app@example.com"}}, &c)

	m := baseMessage()
	m.SetBodyText("ERROR: boom")
	m.SetBodyHTML("<b>ERROR</b>: boom")
	if err := tr.Send(context.Background(), m); err != nil {
		t.Fatalf("Send: %v", err)
	}
	sent := c.last(t)
	if from, err := sent.GetSender(false); err != nil || from != "app@example.com" {
		t.Fatalf("sender = %q, %v", from, err)
	}
	rcpts, err := sent.GetRecipients()
	if err != nil || strings.Join(rcpts, ",") != "ops@example.com,dev@example.com,audit@example.com" {
		t.Fatalf("rcpt = %v, %v", rcpts, err)
	}

	parsed := parse(t, sent)
	if parsed.Header.Get("Subject") != m.Title() {
		t.Fatalf("Subject = %q", parsed.Header.Get("Subject"))
	}
	if parsed.Header.Get("Bcc") != "" {
		t.Fatal("Bcc header must not be written")
	}
	if !strings.Contains(parsed.Header.Get("Cc"), "dev@example.com") {
		t.Fatalf("Cc = %q", parsed.Header.Get("Cc"))
	}
	if parsed.Header.Get("Date") != "Wed, 01 May 2024 12:00:00 +0000" {
		t.Fatalf("Date = %q", parsed.Header.Get("Date"))
	}

	mt, params, err := mime.ParseMediaType(parsed.Header.Get("Content-Type"))
	if err != nil || mt != "multipart/alternative" {
		t.Fatalf("Content-Type = %q (%v)", mt, err)
	}
	mr := multipart.NewReader(parsed.Body, params["boundary"])
	var bodies []string
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
		b, _ := io.ReadAll(p)
		bodies = append(bodies, strings.TrimSpace(string(b)))
	}
	if len(bodies) != 2 || bodies[0] != "ERROR: boom" || bodies[1] != "<b>ERROR</b>: boom" {
		t.Fatalf("bodies = %q", bodies)
	}
}

func TestSendWithAttachment(t *testing.T) {
	t.Parallel()
	var c capture
	tr := newTestTransport(t, Config{Host: "localhost", From: mail.Address{Email: "app@example.com"}}, &c)

	m := baseMessage()
	m.SetBodyText("see attached")
	m.AddAttachment(mail.Attachment{Name: "trace.txt", Data: []byte("frame 1")})
	if err := tr.Send(context.Background(), m); err != nil {
		t.Fatalf("Send: %v", err)
	}

	parsed := parse(t, c.last(t))
	mt, params, _ := mime.ParseMediaType(parsed.Header.Get("Content-Type"))
	if mt != "multipart/mixed" {
		t.Fatalf("Content-Type = %q", mt)
	}
	mr := multipart.NewReader(parsed.Body, params["boundary"])
	first, err := mr.NextPart()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(first.Header.Get("Content-Type"), "text/plain") {
		t.Fatalf("first part = %q", first.Header.Get("Content-Type"))
	}
	body, _ := io.ReadAll(first)
	if strings.TrimSpace(string(body)) != "see attached" {
		t.Fatalf("body = %q", body)
	}
	att, err := mr.NextPart()
	if err != nil {
		t.Fatal(err)
	}
	if att.FileName() != "trace.txt" {
		t.Fatalf("filename = %q", att.FileName())
	}
}

func TestSendErrors(t *testing.T) {
	t.Parallel()
	var c capture
	tr := newTestTransport(t, Config{Host: "localhost"}, &c)

	if err := tr.Send(context.Background(), nil); !errors.Is(err, transport.ErrNilMessage) {
		t.Fatalf("nil message: %v", err)
	}
	if err := tr.Send(context.Background(), mail.New()); !errors.Is(err, transport.ErrNoRecipients) {
		t.Fatalf("no recipients: %v", err)
	}
	if err := tr.Send(context.Background(), baseMessage()); err == nil {
		t.Fatal("expected missing sender error")
	}

	m := baseMessage()
	m.SetFrom(mail.Address{Email: "x@example.com"})

	c.err = errors.New("550 mailbox unavailable")
	if err := tr.Send(context.Background(), m); !errors.Is(err, c.err) {
		t.Fatalf("send error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := tr.Send(ctx, m); !errors.Is(err, context.Canceled) {
		t.Fatalf("canceled send: %v", err)
	}
}

func TestNewRequiresHost(t *testing.T) {
	t.Parallel()
	if _, err := New(Config{}); err == nil {
		t.Fatal("expected error")
	}
}
