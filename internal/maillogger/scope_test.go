package maillogger

import (
	"context"
	"crypto/tls"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"maillog/internal/render"
)

func TestRequestURL(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		target string
		host   string
		tls    bool
		want   string
	}{
		{name: "plain", target: "/a?b=1", host: "example.com", want: "http://example.com/a?b=1"},
		{name: "port 80", target: "/a", host: "example.com:80", want: "http://example.com/a"},
		{name: "other port", target: "/a", host: "example.com:8080", want: "http://example.com:8080/a"},
		{name: "tls", target: "/secure", host: "example.com:8443", tls: true, want: "https://example.com/secure"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := httptest.NewRequest(http.MethodGet, tt.target, nil)
			r.Host = tt.host
			if tt.tls {
				r.TLS = &tls.ConnectionState{}
			} else {
				r.TLS = nil
			}
			if got := RequestURL(r); got != tt.want {
				t.Fatalf("RequestURL = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRequestContextHeaderEscapes(t *testing.T) {
	t.Parallel()
	r := httptest.NewRequest(http.MethodGet, "/q", nil)
	r.RequestURI = "/q?x='<y>'"
	r.Host = "example.com"
	h := RequestContext{Request: r}.Header()
	if h.Text != "URL: http://example.com/q?x='<y>'\n\n" {
		t.Fatalf("text = %q", h.Text)
	}
	if strings.Contains(h.Markup, "<y>") || strings.Contains(h.Markup, "x='") {
		t.Fatalf("markup not escaped: %q", h.Markup)
	}
	if !strings.HasPrefix(h.Markup, "URL: <a href='") || !strings.HasSuffix(h.Markup, "</a><br/><br/>") {
		t.Fatalf("markup = %q", h.Markup)
	}
}

func TestScriptContextDefaultsToExecutable(t *testing.T) {
	t.Parallel()
	h := ScriptContext{}.Header()
	if !strings.HasPrefix(h.Text, "Script: ") || h.Text == "Script: \n\n" {
		t.Fatalf("text = %q", h.Text)
	}
}

func TestHooksRunOnceInReverse(t *testing.T) {
	t.Parallel()
	var h Hooks
	var order []int
	h.OnEnd(func() { order = append(order, 1) })
	h.OnEnd(func() { order = append(order, 2) })
	h.End()
	h.End()
	if len(order) != 2 || order[0] != 2 || order[1] != 1 {
		t.Fatalf("order = %v", order)
	}
	h.OnEnd(func() { order = append(order, 3) })
	if len(order) != 3 {
		t.Fatal("callbacks registered after End run immediately")
	}
}

func TestScopeFlushesOnReturn(t *testing.T) {
	t.Parallel()
	tr := &recorder{}
	sentinel := errors.New("job failed")
	err := Scope(context.Background(), testConfig(tr), func(ctx context.Context, l *Logger) error {
		if FromContext(ctx) != l {
			t.Error("logger not stored in context")
		}
		_ = l.Error(ctx, Text("step 1"))
		_ = l.Error(ctx, Text("step 2"))
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("err = %v", err)
	}
	sent := tr.sent()
	if len(sent) != 1 || !strings.Contains(sent[0].BodyText(), "ERROR: step 1\nERROR: step 2\n") {
		t.Fatalf("sent = %d", len(sent))
	}
}

func TestScopeWithoutEventsSendsNothing(t *testing.T) {
	t.Parallel()
	tr := &recorder{}
	_ = Scope(context.Background(), testConfig(tr), func(ctx context.Context, l *Logger) error {
		_ = l.Info(ctx, Text("below threshold"))
		return nil
	})
	if len(tr.sent()) != 0 {
		t.Fatal("no digest expected")
	}
}

func TestScopeReportsPanic(t *testing.T) {
	t.Parallel()
	tr := &recorder{}
	defer func() {
		if r := recover(); r != "kaboom" {
			t.Fatalf("recovered %v", r)
		}
		sent := tr.sent()
		if len(sent) != 1 {
			t.Fatalf("sent %d", len(sent))
		}
		if !strings.Contains(sent[0].BodyText(), "Message: panic: kaboom\n") {
			t.Fatalf("body = %q", sent[0].BodyText())
		}
		if !strings.Contains(sent[0].BodyText(), "TestScopeReportsPanic") {
			t.Fatalf("panicking frame missing: %q", sent[0].BodyText())
		}
	}()
	_ = Scope(context.Background(), testConfig(tr), func(ctx context.Context, l *Logger) error {
		panic("kaboom")
	})
}

func TestMiddleware(t *testing.T) {
	t.Parallel()
	tr := &recorder{}
	h := Middleware(testConfig(tr), http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		l := FromContext(r.Context())
		if l == nil {
			t.Error("no logger in request context")
			return
		}
		_ = l.Warn(r.Context(), Text("slow query"))
		w.WriteHeader(http.StatusNoContent)
	}))

	srv := httptest.NewServer(h)
	defer srv.Close()
	resp, err := http.Get(srv.URL + "/orders?id=7")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	sent := tr.sent()
	if len(sent) != 1 {
		t.Fatalf("sent %d", len(sent))
	}
	body := sent[0].BodyText()
	if !strings.HasPrefix(body, "URL: http://127.0.0.1:") || !strings.Contains(body, "/orders?id=7\n\nWARN: slow query\n") {
		t.Fatalf("body = %q", body)
	}
}

// flakyContext panics on its first Header call.
type flakyContext struct {
	mu    sync.Mutex
	calls int
}

func (c *flakyContext) Header() Header {
	c.mu.Lock()
	c.calls++
	first := c.calls == 1
	c.mu.Unlock()
	if first {
		panic("context unavailable")
	}
	return Header{Text: "Script: job\n\n", Markup: "Script: job<br/><br/>"}
}

func TestScopeSurvivesPanicWhileLocked(t *testing.T) {
	t.Parallel()
	tr := &recorder{}
	cfg := testConfig(tr)
	cfg.Context = &flakyContext{}

	done := make(chan any, 1)
	go func() {
		defer func() { done <- recover() }()
		_ = Scope(context.Background(), cfg, func(ctx context.Context, l *Logger) error {
			return l.Error(ctx, Text("first"))
		})
	}()

	select {
	case r := <-done:
		if r != "context unavailable" {
			t.Fatalf("recovered %v", r)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("scope did not return")
	}
	sent := tr.sent()
	if len(sent) != 1 {
		t.Fatalf("sent %d", len(sent))
	}
	body := sent[0].BodyText()
	if !strings.HasPrefix(body, "Script: job\n\n") || !strings.Contains(body, "Message: panic: context unavailable\n") {
		t.Fatalf("body = %q", body)
	}
}

type nilPtrError struct{}

func (e *nilPtrError) Error() string { return "never" }

func TestNilErrorSourcesDoNotPanic(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		err  error
	}{
		{name: "typed nil", err: (*nilPtrError)(nil)},
		{name: "empty traced", err: &render.TracedError{}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			tr := &recorder{}
			err := Scope(context.Background(), testConfig(tr), func(ctx context.Context, l *Logger) error {
				if err := l.Error(ctx, CausedBy(tt.err)); err != nil {
					return err
				}
				return l.Error(ctx, Text("after"), WithCause(tt.err))
			})
			if err != nil {
				t.Fatalf("Scope: %v", err)
			}
			sent := tr.sent()
			if len(sent) != 1 {
				t.Fatalf("sent %d", len(sent))
			}
			if !strings.Contains(sent[0].BodyText(), "Message: \n") || !strings.Contains(sent[0].BodyText(), "-> after\n") {
				t.Fatalf("body = %q", sent[0].BodyText())
			}
		})
	}
}
