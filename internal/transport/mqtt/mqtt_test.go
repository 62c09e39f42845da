package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"maillog/internal/mail"
	"maillog/internal/transport"
)

type fakeToken struct {
	done chan struct{}
	err  error
}

func doneToken(err error) *fakeToken {
	t := &fakeToken{done: make(chan struct{}), err: err}
	close(t.done)
	return t
}

func (t *fakeToken) Wait() bool                     { <-t.done; return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{}          { return t.done }
func (t *fakeToken) Error() error                   { return t.err }

type published struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

type fakeClient struct {
	pubs         []published
	token        pahomqtt.Token
	disconnected bool
}

func (f *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) pahomqtt.Token {
	f.pubs = append(f.pubs, published{topic: topic, qos: qos, retained: retained, payload: payload.([]byte)})
	if f.token != nil {
		return f.token
	}
	return doneToken(nil)
}

func (f *fakeClient) Disconnect(uint) { f.disconnected = true }

func testMessage() *mail.Message {
	m := mail.New()
	m.SetTitle("t")
	m.SetBodyText("ERROR: x")
	return m
}

func TestSendPublishes(t *testing.T) {
	t.Parallel()
	fc := &fakeClient{}
	tr := newTransport(fc, Config{Topic: "/alerts/app/", QoS: 1, Retained: true})
	if err := tr.Send(context.Background(), testMessage()); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(fc.pubs) != 1 {
		t.Fatalf("pubs = %d", len(fc.pubs))
	}
	p := fc.pubs[0]
	if p.topic != "alerts/app" || p.qos != 1 || !p.retained {
		t.Fatalf("publish = %+v", p)
	}
	var env transport.Envelope
	if err := json.Unmarshal(p.payload, &env); err != nil || env.Text != "ERROR: x" {
		t.Fatalf("env=%+v err=%v", env, err)
	}

	_ = tr.Close()
	if !fc.disconnected {
		t.Fatal("Close should disconnect")
	}
}

func TestSendTokenError(t *testing.T) {
	t.Parallel()
	boom := errors.New("not authorized")
	tr := newTransport(&fakeClient{token: doneToken(boom)}, Config{})
	if err := tr.Send(context.Background(), testMessage()); !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
}

func TestSendHonoursContext(t *testing.T) {
	t.Parallel()
	pending := &fakeToken{done: make(chan struct{})}
	tr := newTransport(&fakeClient{token: pending}, Config{})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := tr.Send(ctx, testMessage())
	if !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, ErrPublishTimeout) {
		t.Fatalf("err = %v", err)
	}
}

func TestConnectRejectsBadQoS(t *testing.T) {
	t.Parallel()
	if _, err := Connect(Config{Broker: "tcp://localhost:1883", QoS: 3}); !errors.Is(err, ErrInvalidQoS) {
		t.Fatalf("err = %v", err)
	}
	if tr := newTransport(&fakeClient{}, Config{}); tr.topic != DefaultTopic {
		t.Fatalf("topic = %q", tr.topic)
	}
}
