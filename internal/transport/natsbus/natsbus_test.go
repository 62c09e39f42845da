package natsbus

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/nats-io/nats.go"

	"maillog/internal/mail"
	"maillog/internal/transport"
)

type fakeConn struct {
	msgs    []*nats.Msg
	pubErr  error
	flushed int
}

func (f *fakeConn) PublishMsg(m *nats.Msg) error {
	if f.pubErr != nil {
		return f.pubErr
	}
	f.msgs = append(f.msgs, m)
	return nil
}

func (f *fakeConn) FlushWithContext(context.Context) error {
	f.flushed++
	return nil
}

func TestSendPublishesEnvelope(t *testing.T) {
	t.Parallel()
	fc := &fakeConn{}
	tr := &Transport{conn: fc, subject: subjectOrDefault("alerts.app.")}

	m := mail.New()
	m.SetTitle("title")
	m.SetBodyText("WARN: low disk")
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := tr.Send(ctx, m); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(fc.msgs) != 1 || fc.flushed != 1 {
		t.Fatalf("msgs=%d flushed=%d", len(fc.msgs), fc.flushed)
	}
	got := fc.msgs[0]
	if got.Subject != "alerts.app" {
		t.Fatalf("subject = %q", got.Subject)
	}
	var env transport.Envelope
	if err := json.Unmarshal(got.Data, &env); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if env.Text != "WARN: low disk" || got.Header.Get("Maillog-Id") != env.ID {
		t.Fatalf("envelope %+v header %v", env, got.Header)
	}
	if got.Header.Get("Deadline") == "" {
		t.Fatal("deadline header missing")
	}
}

func TestSendPublishError(t *testing.T) {
	t.Parallel()
	boom := errors.New("no responders")
	tr := &Transport{conn: &fakeConn{pubErr: boom}, subject: DefaultSubject}
	m := mail.New()
	m.SetBodyText("x")
	if err := tr.Send(context.Background(), m); !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
}

func TestSubjectDefault(t *testing.T) {
	t.Parallel()
	if subjectOrDefault("  ") != DefaultSubject {
		t.Fatal("blank subject should fall back to default")
	}
}
