package cycle

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"maillog/pkg/logx"
)

type countingRotator struct {
	n   atomic.Int32
	err error
}

func (r *countingRotator) Rotate(context.Context) error {
	r.n.Add(1)
	return r.err
}

func TestNewRejectsBadInput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name, spec, tz string
	}{
		{"empty", "", ""},
		{"garbage", "now and then", ""},
		{"seconds field", "*/5 * * * * *", ""},
		{"bad timezone", "@hourly", "Mars/Olympus"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := New(tt.spec, tt.tz, &countingRotator{}, logx.Nop()); err == nil {
				t.Fatal("expected error")
			}
		})
	}
	if _, err := New("  ", "", &countingRotator{}, logx.Nop()); !errors.Is(err, ErrNoSchedule) {
		t.Fatalf("err = %v", err)
	}
}

func TestSchedulerRotates(t *testing.T) {
	t.Parallel()

	r := &countingRotator{err: errors.New("smtp down")}
	s, err := New("@every 1s", "UTC", r, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	s.Start()
	if s.Next().IsZero() {
		t.Fatal("Next() is zero after Start")
	}

	deadline := time.Now().Add(5 * time.Second)
	for r.n.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("Stop() = %v", err)
	}

	runs, failed := s.Counts()
	if runs == 0 || failed != runs {
		t.Fatalf("runs = %d failed = %d", runs, failed)
	}
}
