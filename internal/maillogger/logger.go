package maillogger

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"maillog/internal/mail"
	"maillog/internal/render"
	"maillog/internal/severity"
	"maillog/internal/transport"
	"maillog/pkg/logx"
)

var (
	ErrNoThreshold = errors.New("maillogger: severity threshold is not set")
	ErrNoTransport = errors.New("maillogger: transport is not set")
	ErrNoTemplate  = errors.New("maillogger: message template is not set")
)

const defaultFlushTimeout = 30 * time.Second

// Lifecycle runs callbacks when a unit of work ends. A Logger registers
// its flush with it at most once per cycle.
type Lifecycle interface {
	OnEnd(fn func())
}

type Config struct {
	Threshold severity.Severity

	// Aggregate collects events into one digest per cycle instead of
	// sending one notification per event.
	Aggregate bool

	// MaxEvents bounds the events kept per cycle. <= 0 means 30.
	MaxEvents   int
	TitlePrefix string

	Transport transport.Transport

	// Template supplies sender, recipients, encoding and text derivation
	// settings. It is cloned for every notification.
	Template *mail.Message

	// Context defaults to ScriptContext.
	Context ContextProvider

	// Lifecycle, when set, flushes the digest at the end of the unit of
	// work. Without it the owner calls Flush or Close.
	Lifecycle Lifecycle

	// Fallback receives failures that have no caller to return to.
	Fallback logx.Logger

	Observer     Observer
	FlushTimeout time.Duration
}

// Logger gates, renders and dispatches diagnostic events. It is safe for
// concurrent use.
type Logger struct {
	threshold    severity.Severity
	aggregate    bool
	prefix       string
	tr           transport.Transport
	template     *mail.Message
	ctxp         ContextProvider
	lifecycle    Lifecycle
	fallback     logx.Logger
	obs          Observer
	flushTimeout time.Duration

	// mu guards admission, rendering and accumulation as one step so the
	// count, the content and the flush registration stay consistent.
	mu     sync.Mutex
	buf    *Buffer
	header *Header
}

func New(cfg Config) (*Logger, error) {
	if !cfg.Threshold.Valid() {
		return nil, fmt.Errorf("%w (got %d)", ErrNoThreshold, int(cfg.Threshold))
	}
	if cfg.Transport == nil {
		return nil, ErrNoTransport
	}
	if cfg.Template == nil {
		return nil, ErrNoTemplate
	}
	ctxp := cfg.Context
	if ctxp == nil {
		ctxp = ScriptContext{}
	}
	fallback := cfg.Fallback
	if fallback.IsZero() {
		fallback = logx.NewConsole("error")
	}
	obs := cfg.Observer
	if obs == nil {
		obs = nopObserver{}
	}
	timeout := cfg.FlushTimeout
	if timeout <= 0 {
		timeout = defaultFlushTimeout
	}
	return &Logger{
		threshold:    cfg.Threshold,
		aggregate:    cfg.Aggregate,
		prefix:       cfg.TitlePrefix,
		tr:           cfg.Transport,
		template:     cfg.Template.Clone(),
		ctxp:         ctxp,
		lifecycle:    cfg.Lifecycle,
		fallback:     fallback,
		obs:          obs,
		flushTimeout: timeout,
		buf:          NewBuffer(cfg.MaxEvents),
	}, nil
}

func (l *Logger) Trace(ctx context.Context, src Source, opts ...EventOption) error {
	return l.log(ctx, severity.Trace, src, opts)
}

func (l *Logger) Debug(ctx context.Context, src Source, opts ...EventOption) error {
	return l.log(ctx, severity.Debug, src, opts)
}

func (l *Logger) Info(ctx context.Context, src Source, opts ...EventOption) error {
	return l.log(ctx, severity.Info, src, opts)
}

func (l *Logger) Warn(ctx context.Context, src Source, opts ...EventOption) error {
	return l.log(ctx, severity.Warn, src, opts)
}

func (l *Logger) Error(ctx context.Context, src Source, opts ...EventOption) error {
	return l.log(ctx, severity.Error, src, opts)
}

func (l *Logger) Fatal(ctx context.Context, src Source, opts ...EventOption) error {
	return l.log(ctx, severity.Fatal, src, opts)
}

// Log logs at an explicit level.
func (l *Logger) Log(ctx context.Context, level severity.Severity, src Source, opts ...EventOption) error {
	return l.log(ctx, level, src, opts)
}

// log must be called directly from the exported logging methods: the
// caller frame of a caused event is two frames up.
func (l *Logger) log(ctx context.Context, level severity.Severity, src Source, opts []EventOption) error {
	if l == nil || !l.threshold.Valid() {
		return ErrNoThreshold
	}
	ok, err := severity.ShouldProcess(level, l.threshold)
	if err != nil {
		return err
	}
	if !ok {
		l.obs.Filtered(level)
		return nil
	}

	ev := event{level: level, source: src}
	for _, opt := range opts {
		opt(&ev)
	}
	if ev.cause != nil {
		if frames := render.Capture(2); len(frames) > 0 {
			ev.caller = frames[0]
		}
	}

	if l.aggregate {
		l.accumulate(ev)
		return nil
	}
	return l.dispatchEvent(ctx, ev)
}

func (l *Logger) accumulate(ev event) {
	out, arm := l.add(ev)
	l.observe(ev.level, out)
	if arm && l.lifecycle != nil {
		l.lifecycle.OnEnd(l.endOfWork)
	}
}

// add stores ev in the digest. The context provider may panic.
func (l *Logger) add(ev event) (Outcome, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.contextHeader()
	out := l.buf.Add(ev.Render)
	return out, l.buf.Schedule()
}

func (l *Logger) admit() (Header, Outcome) {
	l.mu.Lock()
	defer l.mu.Unlock()
	hdr := l.contextHeader()
	return hdr, l.buf.Admit()
}

func (l *Logger) take() (text, markup string, count int, hdr Header, ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.buf.Count() > 0 {
		hdr = l.contextHeader()
	}
	text, markup, ok = l.buf.Take()
	count = l.buf.Count()
	return text, markup, count, hdr, ok
}

func (l *Logger) dispatchEvent(ctx context.Context, ev event) error {
	hdr, out := l.admit()

	l.observe(ev.level, out)

	var text, markup string
	switch out {
	case Appended:
		text, markup = ev.Render()
	case Truncated:
		text, markup = TruncationNotice, TruncationNotice
	default:
		return nil
	}

	msg := l.template.Clone()
	msg.SetTitle(l.title("An error occurred in your application. Error level: " + ev.level.String() + ". " + excerpt(ev.source.Message())))
	msg.SetBodyText(hdr.Text + text)
	msg.SetBodyHTML(hdr.Markup + markup)

	err := l.tr.Send(ctx, msg)
	l.obs.Dispatched(KindEvent, 1, err)
	if err != nil {
		return fmt.Errorf("maillogger: send: %w", err)
	}
	return nil
}

func (l *Logger) observe(level severity.Severity, out Outcome) {
	switch out {
	case Appended:
		l.obs.Accepted(level)
	case Truncated:
		l.obs.Accepted(level)
		l.obs.Truncated()
	default:
		l.obs.Discarded(level)
	}
}

// contextHeader computes the header once. Callers hold l.mu.
func (l *Logger) contextHeader() Header {
	if l.header == nil {
		h := l.ctxp.Header()
		l.header = &h
	}
	return *l.header
}

func (l *Logger) title(s string) string {
	if strings.TrimSpace(l.prefix) == "" {
		return s
	}
	return l.prefix + " " + s
}

// Flush sends the digest of the current cycle, if any, and closes the
// cycle: later events are dropped until Rotate. Failures are reported to
// the fallback logger and returned.
func (l *Logger) Flush(ctx context.Context) error {
	text, markup, count, hdr, ok := l.take()
	if !ok {
		return nil
	}

	kept := min(count, l.buf.MaxEvents())

	msg := l.template.Clone()
	msg.SetTitle(l.title("Errors occurred in your application."))
	msg.SetBodyText(hdr.Text + text)
	msg.SetBodyHTML(hdr.Markup + markup)

	err := l.tr.Send(ctx, msg)
	l.obs.Dispatched(KindDigest, kept, err)
	if err != nil {
		l.fallback.Error("maillogger: digest not delivered",
			logx.Int("events", count),
			logx.String("title", msg.Title()),
			logx.Err(err),
		)
		return fmt.Errorf("maillogger: flush: %w", err)
	}
	return nil
}

// Rotate flushes the current cycle and starts a new one.
func (l *Logger) Rotate(ctx context.Context) error {
	err := l.Flush(ctx)
	l.mu.Lock()
	l.buf.Reset()
	l.mu.Unlock()
	return err
}

// Close flushes with the configured timeout.
func (l *Logger) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), l.flushTimeout)
	defer cancel()
	return l.Flush(ctx)
}

func (l *Logger) endOfWork() {
	_ = l.Close()
}

// Recover logs a panic as a FATAL event and re-panics. Defer it after the
// call that flushes (Close or the scope end) so the flush sees the event.
func (l *Logger) Recover() {
	r := recover()
	if r == nil {
		return
	}
	if r == http.ErrAbortHandler {
		panic(r)
	}
	err, ok := r.(error)
	if !ok {
		err = fmt.Errorf("panic: %v", r)
	}
	frames := render.Capture(0)
	if len(frames) > 0 {
		frames = frames[1:]
	}
	traced := &render.TracedError{Err: err, Frames: frames}
	if lerr := l.log(context.Background(), severity.Fatal, CausedBy(traced), nil); lerr != nil {
		l.fallback.Error("maillogger: panic not reported", logx.Err(lerr))
	}
	panic(r)
}

// Stats is a snapshot of the current cycle.
type Stats struct {
	State  State
	Events int
	Late   int
}

func (l *Logger) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Stats{State: l.buf.State(), Events: l.buf.Count(), Late: l.buf.Late()}
}

func (l *Logger) Threshold() severity.Severity { return l.threshold }
