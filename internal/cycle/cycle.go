// Package cycle rotates a long-lived logger on a cron schedule so each
// cycle ends with one digest.
package cycle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"maillog/pkg/logx"
)

var ErrNoSchedule = errors.New("cycle: empty schedule")

// Rotator ends the current cycle and starts a new one.
type Rotator interface {
	Rotate(ctx context.Context) error
}

// Scheduler calls Rotate on every tick. A tick that arrives while the
// previous rotation is still running is skipped.
type Scheduler struct {
	mu      sync.Mutex
	c       *cron.Cron
	spec    string
	log     logx.Logger
	r       Rotator
	timeout time.Duration

	runs   int
	failed int
}

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// New parses spec ("0 * * * *", "@hourly", "@every 15m") in timezone tz
// (empty means local).
func New(spec, tz string, r Rotator, log logx.Logger) (*Scheduler, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, ErrNoSchedule
	}
	if _, err := parser.Parse(spec); err != nil {
		return nil, fmt.Errorf("cycle: schedule %q: %w", spec, err)
	}
	loc := time.Local
	if tz = strings.TrimSpace(tz); tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			return nil, fmt.Errorf("cycle: timezone: %w", err)
		}
		loc = l
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Scheduler{spec: spec, log: log, r: r, timeout: time.Minute}
	cl := cronLogger{log: log}
	s.c = cron.New(
		cron.WithParser(parser),
		cron.WithLocation(loc),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	if _, err := s.c.AddFunc(spec, s.tick); err != nil {
		return nil, fmt.Errorf("cycle: %w", err)
	}
	return s, nil
}

func (s *Scheduler) Spec() string { return s.spec }

func (s *Scheduler) Start() {
	s.c.Start()
	s.log.Info("cycle scheduler started", logx.String("schedule", s.spec), logx.String("next", s.Next().Format(time.RFC3339)))
}

// Stop prevents new ticks and waits for a running rotation until ctx ends.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.c.Stop().Done()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Next returns the next scheduled rotation, zero before Start.
func (s *Scheduler) Next() time.Time {
	entries := s.c.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

// Counts returns completed and failed rotations.
func (s *Scheduler) Counts() (runs, failed int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runs, s.failed
}

func (s *Scheduler) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	err := s.r.Rotate(ctx)

	s.mu.Lock()
	s.runs++
	if err != nil {
		s.failed++
	}
	s.mu.Unlock()

	if err != nil {
		s.log.Warn("cycle rotation failed", logx.Err(err))
		return
	}
	s.log.Debug("cycle rotated")
}

// cronLogger adapts logx to cron.Logger.
type cronLogger struct{ log logx.Logger }

func (l cronLogger) Info(msg string, kv ...any) {
	l.log.Debug("cron: "+msg, kvFields(kv)...)
}

func (l cronLogger) Error(err error, msg string, kv ...any) {
	l.log.Error("cron: "+msg, append(kvFields(kv), logx.Err(err))...)
}

func kvFields(kv []any) []logx.Field {
	out := make([]logx.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out = append(out, logx.Any(fmt.Sprint(kv[i]), kv[i+1]))
	}
	return out
}
