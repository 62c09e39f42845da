package render

import (
	"html"
	"runtime"
	"strconv"
	"strings"
)

// Frame is one call-stack entry. Every field is optional.
type Frame struct {
	Context  string // receiver or package, e.g. "maillogger.(*Logger)"
	Type     string // call-type marker between Context and Function
	Function string
	File     string
	Line     int
	Args     []any
}

// SkipFunctions lists function names that never appear in rendered
// backtraces: the renderers themselves and the panic entry point.
var SkipFunctions = map[string]bool{
	"BacktraceText":   true,
	"BacktraceMarkup": true,
	"Recover":         true,
}

const cellStyle = `style="border-bottom: 1px solid #EEEEEE"`

// Capture records the calling goroutine's stack, skipping skip frames above
// the caller of Capture.
func Capture(skip int) []Frame {
	pcs := make([]uintptr, 64)
	n := runtime.Callers(skip+2, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	out := make([]Frame, 0, n)
	for {
		fr, more := frames.Next()
		if fr.Function != "" && !strings.HasPrefix(fr.Function, "runtime.") {
			f := splitFunction(fr.Function)
			f.File = fr.File
			f.Line = fr.Line
			out = append(out, f)
		}
		if !more {
			break
		}
	}
	return out
}

// splitFunction turns "maillog/internal/x.(*T).Method" into
// Context "x.(*T)", Type ".", Function "Method".
func splitFunction(full string) Frame {
	name := full
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	dot := strings.Index(name, ".")
	if dot < 0 {
		return Frame{Function: name}
	}
	pkg, rest := name[:dot], name[dot+1:]
	if i := strings.LastIndex(rest, "."); i >= 0 && strings.HasPrefix(rest, "(") {
		return Frame{Context: pkg + "." + rest[:i], Type: ".", Function: rest[i+1:]}
	}
	return Frame{Context: pkg, Type: ".", Function: rest}
}

func (f Frame) signature() string {
	var b strings.Builder
	b.WriteString(f.Context)
	b.WriteString(f.Type)
	b.WriteString(f.Function)
	b.WriteString("(")
	for i, a := range f.Args {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(Value(a))
	}
	b.WriteString(")")
	return b.String()
}

// BacktraceText renders one line per retained frame:
// "In <file> at line <line>: <signature>\n".
func BacktraceText(trace []Frame) string {
	var b strings.Builder
	for _, f := range trace {
		if SkipFunctions[f.Function] {
			continue
		}
		if f.File != "" && f.Line > 0 {
			b.WriteString("In ")
			b.WriteString(f.File)
			b.WriteString(" at line ")
			b.WriteString(strconv.Itoa(f.Line))
			b.WriteString(": ")
		}
		b.WriteString(f.signature())
		b.WriteString("\n")
	}
	return b.String()
}

// BacktraceMarkup renders retained frames as three-column table rows
// (signature | file | line). Cells are escaped.
func BacktraceMarkup(trace []Frame) string {
	var b strings.Builder
	for _, f := range trace {
		if SkipFunctions[f.Function] {
			continue
		}
		b.WriteString(`<tr><td ` + cellStyle + `>`)
		b.WriteString(html.EscapeString(f.signature()))
		b.WriteString(`</td><td ` + cellStyle + `>`)
		b.WriteString(html.EscapeString(f.File))
		b.WriteString(`</td><td ` + cellStyle + `>`)
		if f.Line > 0 {
			b.WriteString(strconv.Itoa(f.Line))
		}
		b.WriteString(`</td></tr>`)
	}
	return b.String()
}
