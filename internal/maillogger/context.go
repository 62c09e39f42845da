package maillogger

import (
	"context"
	"html"
	"net"
	"net/http"
	"os"
)

// Header is the context block placed before the events of a notification.
type Header struct {
	Text   string
	Markup string
}

// ContextProvider tells where the events of a Logger come from. It is
// asked once, on the first accepted event.
type ContextProvider interface {
	Header() Header
}

// RequestContext describes an HTTP request by its URL.
type RequestContext struct {
	Request *http.Request
}

func (c RequestContext) Header() Header {
	if c.Request == nil {
		return ScriptContext{}.Header()
	}
	url := RequestURL(c.Request)
	esc := html.EscapeString(url)
	return Header{
		Text:   "URL: " + url + "\n\n",
		Markup: "URL: <a href='" + esc + "'>" + esc + "</a><br/><br/>",
	}
}

// RequestURL rebuilds the URL a client used: https for TLS requests,
// otherwise http with the port spelled out when it is not 80.
func RequestURL(r *http.Request) string {
	host, port := splitHostPort(r)
	uri := r.RequestURI
	if uri == "" && r.URL != nil {
		uri = r.URL.RequestURI()
	}
	switch {
	case r.TLS != nil:
		return "https://" + host + uri
	case port != "" && port != "80":
		return "http://" + host + ":" + port + uri
	default:
		return "http://" + host + uri
	}
}

// splitHostPort takes the port from the Host header, falling back to the
// local address the server accepted the request on.
func splitHostPort(r *http.Request) (host, port string) {
	host = r.Host
	if host == "" && r.URL != nil {
		host = r.URL.Host
	}
	if h, p, err := net.SplitHostPort(host); err == nil {
		return h, p
	}
	if addr, ok := r.Context().Value(http.LocalAddrContextKey).(net.Addr); ok {
		if _, p, err := net.SplitHostPort(addr.String()); err == nil {
			return host, p
		}
	}
	return host, ""
}

// ScriptContext describes a process by its executable path. An empty Path
// is resolved with os.Executable, then os.Args[0].
type ScriptContext struct {
	Path string
}

func (c ScriptContext) Header() Header {
	path := c.Path
	if path == "" {
		path = executablePath()
	}
	return Header{
		Text:   "Script: " + path + "\n\n",
		Markup: "Script: " + html.EscapeString(path) + "<br/><br/>",
	}
}

func executablePath() string {
	if p, err := os.Executable(); err == nil && p != "" {
		return p
	}
	if len(os.Args) > 0 {
		return os.Args[0]
	}
	return ""
}

type loggerKey struct{}

// WithLogger stores l in ctx.
func WithLogger(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, l)
}

// FromContext returns the Logger stored by WithLogger, or nil.
func FromContext(ctx context.Context) *Logger {
	l, _ := ctx.Value(loggerKey{}).(*Logger)
	return l
}
