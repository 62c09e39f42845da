package maillogger

import (
	"html"
	"sort"
	"strconv"
	"strings"

	"maillog/internal/render"
	"maillog/internal/severity"
)

// Source is what a log call reports: either plain text or an error.
type Source struct {
	text string
	err  error
}

// Text is a plain message source.
func Text(s string) Source { return Source{text: s} }

// CausedBy is an error source. A nil error renders as an empty message.
func CausedBy(err error) Source { return Source{err: err} }

// Message is the source as a single line of text.
func (s Source) Message() string {
	if s.err != nil {
		return render.ErrorMessage(s.err)
	}
	return s.text
}

// Err returns the wrapped error of a CausedBy source.
func (s Source) Err() error { return s.err }

// Fields is extra context attached to an event.
type Fields map[string]any

// EventOption adds optional data to a log call.
type EventOption func(*event)

// WithCause attaches the error that caused the event.
func WithCause(err error) EventOption {
	return func(e *event) { e.cause = err }
}

// WithFields attaches extra context. Repeated use merges, later keys win.
func WithFields(f Fields) EventOption {
	return func(e *event) {
		if len(f) == 0 {
			return
		}
		if e.fields == nil {
			e.fields = make(Fields, len(f))
		}
		for k, v := range f {
			e.fields[k] = v
		}
	}
}

const unrenderable = "(event could not be rendered)"

type event struct {
	level  severity.Severity
	source Source
	cause  error
	fields Fields
	// caller is the frame that issued the log call. Only captured when a
	// cause is present.
	caller render.Frame
}

// Render returns the text and markup forms of e. It never panics.
func (e event) Render() (text, markup string) {
	level := e.level.String()
	defer func() {
		if r := recover(); r != nil {
			text = level + ": " + unrenderable
			markup = level + ": " + html.EscapeString(unrenderable)
		}
	}()

	switch {
	case e.cause != nil:
		ex := render.FromError(e.cause)
		where := e.caller.File + "(" + strconv.Itoa(e.caller.Line) + ") " + e.caller.Context + e.caller.Type + e.caller.Function
		msg := e.source.Message()
		text = level + ": " + where + " -> " + msg + "\n" + render.ExceptionText(ex)
		markup = level + ": " + html.EscapeString(where) + " -> " + html.EscapeString(msg) + "\n" + render.ExceptionMarkup(ex)
	case e.source.err != nil:
		ex := render.FromError(e.source.err)
		text = render.ExceptionText(ex)
		markup = render.ExceptionMarkup(ex)
	default:
		text = level + ": " + e.source.text
		markup = level + ": " + html.EscapeString(e.source.text)
	}

	if len(e.fields) > 0 {
		ft, fm := renderFields(e.fields)
		text += "\n" + ft
		markup += "<br/>" + fm
	}
	return text, markup
}

func renderFields(f Fields) (text, markup string) {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	tl := make([]string, len(keys))
	ml := make([]string, len(keys))
	for i, k := range keys {
		v := render.Value(f[k])
		tl[i] = k + "=" + v
		ml[i] = html.EscapeString(k) + "=" + html.EscapeString(v)
	}
	return strings.Join(tl, "\n"), strings.Join(ml, "<br/>")
}

// excerpt shortens msg for a title: messages under 20 characters are kept,
// longer ones are cut to 19 characters plus "...".
func excerpt(msg string) string {
	r := []rune(msg)
	if len(r) < 20 {
		return msg
	}
	return string(r[:19]) + "..."
}
