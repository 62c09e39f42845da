package maillogger

import (
	"context"
	"net/http"
	"sync"

	"maillog/pkg/logx"
)

// Hooks is a Lifecycle whose callbacks run when End is called.
type Hooks struct {
	mu    sync.Mutex
	fns   []func()
	ended bool
}

// OnEnd registers fn. After End, fn runs immediately.
func (h *Hooks) OnEnd(fn func()) {
	h.mu.Lock()
	if h.ended {
		h.mu.Unlock()
		fn()
		return
	}
	h.fns = append(h.fns, fn)
	h.mu.Unlock()
}

// End runs registered callbacks in reverse order of registration, once.
func (h *Hooks) End() {
	h.mu.Lock()
	if h.ended {
		h.mu.Unlock()
		return
	}
	h.ended = true
	fns := h.fns
	h.fns = nil
	h.mu.Unlock()

	for i := len(fns) - 1; i >= 0; i-- {
		fns[i]()
	}
}

// Scope runs fn with a Logger bound to a fresh cycle. The digest is flushed
// when fn returns, including when it panics; a panic is also logged as a
// FATAL event before it propagates.
func Scope(ctx context.Context, cfg Config, fn func(ctx context.Context, l *Logger) error) error {
	hooks := &Hooks{}
	cfg.Lifecycle = hooks
	l, err := New(cfg)
	if err != nil {
		return err
	}
	defer hooks.End()
	defer l.Recover()
	return fn(WithLogger(ctx, l), l)
}

// Middleware gives every request its own Logger with a request context
// header. Handlers reach it with FromContext.
func Middleware(cfg Config, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hooks := &Hooks{}
		c := cfg
		c.Lifecycle = hooks
		c.Context = RequestContext{Request: r}
		l, err := New(c)
		if err != nil {
			fallback := cfg.Fallback
			if fallback.IsZero() {
				fallback = logx.NewConsole("error")
			}
			fallback.Error("maillogger: request logger disabled", logx.Err(err))
			next.ServeHTTP(w, r)
			return
		}
		defer hooks.End()
		defer l.Recover()
		next.ServeHTTP(w, r.WithContext(WithLogger(r.Context(), l)))
	})
}
