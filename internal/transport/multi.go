package transport

import (
	"context"
	"errors"

	"maillog/internal/mail"
)

// Multi fans a message out to every transport. Each transport gets its own
// clone. All transports are attempted; failures are joined.
type Multi []Transport

func (m Multi) Send(ctx context.Context, msg *mail.Message) error {
	if msg == nil {
		return ErrNilMessage
	}
	var errs []error
	for _, t := range m {
		if t == nil {
			continue
		}
		if err := t.Send(ctx, msg.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, t := range m {
		if err := Close(t); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
