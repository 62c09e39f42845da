package notifier

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"maillog/internal/eventbus"
	"maillog/internal/mail"
	"maillog/internal/storage"
	"maillog/pkg/logx"
)

type fakeTransport struct {
	mu    sync.Mutex
	fails int
	sent  []string
	calls int
}

func (f *fakeTransport) Send(_ context.Context, msg *mail.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fails > 0 {
		f.fails--
		return errors.New("unavailable")
	}
	f.sent = append(f.sent, msg.Title())
	return nil
}

func (f *fakeTransport) snapshot() (calls int, sent []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls, append([]string(nil), f.sent...)
}

func message(title, body string) *mail.Message {
	m := mail.New()
	m.SetTitle(title)
	m.SetBodyText(body)
	return m
}

func testConfig() Config {
	return Config{
		Enabled:       true,
		Workers:       1,
		QueueSize:     8,
		RatePerSec:    1000,
		RetryMax:      2,
		RetryBase:     time.Millisecond,
		RetryMaxDelay: 2 * time.Millisecond,
		SendTimeout:   time.Second,
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestServiceDeliversAndRecords(t *testing.T) {
	t.Parallel()

	store, err := storage.Open(storage.Config{Driver: "file", Path: filepath.Join(t.TempDir(), "state")}, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	next := &fakeTransport{fails: 1}
	bus := eventbus.New()
	events, unsub := bus.Subscribe(16)
	defer unsub()

	s := New(testConfig(), next, "test", logx.Nop(), bus, store)
	ctx := context.Background()
	s.Start(ctx)

	if err := s.Send(ctx, message("disk full", "body")); err != nil {
		t.Fatalf("Send() = %v", err)
	}
	waitFor(t, func() bool { return len(s.Snapshot()) == 1 })

	stopCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	s.Stop(stopCtx)

	calls, sent := next.snapshot()
	if calls != 2 || len(sent) != 1 || sent[0] != "disk full" {
		t.Fatalf("calls = %d sent = %v", calls, sent)
	}

	recs, err := store.RecentDeliveries(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 || !recs[0].OK || recs[0].Attempts != 2 || recs[0].Transport != "test" {
		t.Fatalf("deliveries = %+v", recs)
	}

	seen := map[string]int{}
	for len(events) > 0 {
		seen[(<-events).Type]++
	}
	if len(seen) != 2 || seen[eventbus.NotifyQueued] != 1 || seen[eventbus.NotifySent] != 1 {
		t.Fatalf("events = %v", seen)
	}
}

func TestServiceGivesUpAfterRetries(t *testing.T) {
	t.Parallel()

	next := &fakeTransport{fails: 10}
	bus := eventbus.New()
	events, unsub := bus.Subscribe(16)
	defer unsub()

	s := New(testConfig(), next, "test", logx.Nop(), bus, nil)
	ctx := context.Background()
	s.Start(ctx)
	if err := s.Send(ctx, message("t", "b")); err != nil {
		t.Fatal(err)
	}

	var failed *NotificationEvent
	timeout := time.After(3 * time.Second)
	for failed == nil {
		select {
		case ev := <-events:
			if ev.Type == eventbus.NotifyFailed {
				n := ev.Data.(NotificationEvent)
				failed = &n
			}
		case <-timeout:
			t.Fatal("no failure event")
		}
	}
	if failed.Attempts != 3 || failed.Error == "" {
		t.Fatalf("failed event = %+v", failed)
	}
	s.Stop(ctx)
	if calls, _ := next.snapshot(); calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
}

func TestServiceDedup(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.DedupWindow = time.Minute
	next := &fakeTransport{}
	s := New(cfg, next, "test", logx.Nop(), nil, nil)
	ctx := context.Background()
	s.Start(ctx)

	for range 3 {
		if err := s.Send(ctx, message("same", "body")); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.Send(ctx, message("same", "other body")); err != nil {
		t.Fatal(err)
	}
	s.Stop(ctx)

	if _, sent := next.snapshot(); len(sent) != 2 {
		t.Fatalf("sent = %v, want 2 distinct", sent)
	}
}

func TestServicePersistedDedupSurvivesRestart(t *testing.T) {
	t.Parallel()

	store, err := storage.Open(storage.Config{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "state.db")}, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	cfg := testConfig()
	cfg.DedupWindow = time.Hour
	cfg.PersistDedup = true
	ctx := context.Background()

	first := &fakeTransport{}
	s := New(cfg, first, "a", logx.Nop(), nil, store)
	s.Start(ctx)
	if err := s.Send(ctx, message("once", "x")); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool {
		_, ok, _ := store.GetDedup(ctx, dedupKey(message("once", "x")))
		return ok
	})
	s.Stop(ctx)

	second := &fakeTransport{}
	s2 := New(cfg, second, "a", logx.Nop(), nil, store)
	s2.Start(ctx)
	if err := s2.Send(ctx, message("once", "x")); err != nil {
		t.Fatal(err)
	}
	s2.Stop(ctx)
	if calls, _ := second.snapshot(); calls != 0 {
		t.Fatalf("duplicate delivered after restart, calls = %d", calls)
	}
}

func TestServiceStates(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	cfg := testConfig()
	cfg.Enabled = false
	s := New(cfg, &fakeTransport{}, "x", logx.Nop(), nil, nil)
	if err := s.Send(ctx, message("a", "b")); !errors.Is(err, ErrDisabled) {
		t.Fatalf("disabled Send() = %v", err)
	}

	s.Apply(testConfig())
	if err := s.Send(ctx, message("a", "b")); !errors.Is(err, ErrStopped) {
		t.Fatalf("not started Send() = %v", err)
	}
	s.Start(ctx)
	s.Start(ctx)
	s.Stop(ctx)
	if err := s.Send(ctx, message("a", "b")); !errors.Is(err, ErrStopped) {
		t.Fatalf("stopped Send() = %v", err)
	}
	if err := s.Send(ctx, nil); err == nil {
		t.Fatal("nil message accepted")
	}
}

func TestRetryDelayBounded(t *testing.T) {
	t.Parallel()

	cfg := Config{RetryBase: 100 * time.Millisecond, RetryMaxDelay: time.Second}
	for attempt := 1; attempt <= 10; attempt++ {
		d := retryDelay(cfg, attempt)
		if d <= 0 || d > cfg.RetryMaxDelay {
			t.Fatalf("retryDelay(%d) = %v", attempt, d)
		}
	}
	if d := retryDelay(cfg, 1); d < 70*time.Millisecond || d > 130*time.Millisecond {
		t.Fatalf("first delay = %v", d)
	}
}
