// Package transport defines how a composed notification leaves the process.
//
// The logger only ever sees Transport. Concrete backends live in
// subpackages (smtp, telegram, webhook, pushover, natsbus, kafka, mqtt) and
// can be combined with Multi.
package transport

import (
	"context"
	"errors"
	"fmt"

	"maillog/internal/mail"
)

var (
	ErrNilMessage   = errors.New("transport: nil message")
	ErrNoRecipients = errors.New("transport: message has no recipients")
)

// Transport delivers one message. It owns msg after the call; callers
// must not mutate it afterwards.
type Transport interface {
	Send(ctx context.Context, msg *mail.Message) error
}

// Func adapts a function to Transport.
type Func func(ctx context.Context, msg *mail.Message) error

func (f Func) Send(ctx context.Context, msg *mail.Message) error { return f(ctx, msg) }

// Nop discards every message.
type Nop struct{}

func (Nop) Send(_ context.Context, _ *mail.Message) error { return nil }

// Named attaches a name to a transport for error messages and metrics.
type Named struct {
	Name string
	Transport
}

func (n Named) Send(ctx context.Context, msg *mail.Message) error {
	if err := n.Transport.Send(ctx, msg); err != nil {
		return fmt.Errorf("%s: %w", n.Name, err)
	}
	return nil
}

// Closer is implemented by transports that hold connections.
type Closer interface {
	Close() error
}

// Close closes t if it holds resources.
func Close(t Transport) error {
	if c, ok := t.(Closer); ok {
		return c.Close()
	}
	return nil
}
