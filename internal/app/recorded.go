package app

import (
	"context"
	"time"

	"github.com/google/uuid"

	"maillog/internal/mail"
	"maillog/internal/storage"
	"maillog/internal/transport"
)

// recorded stores one delivery record per synchronous send. The notifier
// records its own deliveries when enabled.
type recorded struct {
	next  transport.Transport
	name  string
	store storage.Store
}

func (r recorded) Send(ctx context.Context, msg *mail.Message) error {
	started := time.Now()
	err := r.next.Send(ctx, msg)
	d := storage.Delivery{
		At:        time.Now(),
		ID:        uuid.NewString(),
		Transport: r.name,
		Attempts:  1,
		OK:        err == nil,
		TookMS:    time.Since(started).Milliseconds(),
	}
	if msg != nil {
		d.Title = msg.Title()
	}
	if err != nil {
		d.Error = err.Error()
	}
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
	defer cancel()
	_ = r.store.AppendDelivery(sctx, d)
	return err
}
