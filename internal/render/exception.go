package render

import (
	"errors"
	"fmt"
	"html"
	"reflect"
	"strconv"
	"strings"
)

// Exception is the renderable view of an error: its type, message, optional
// code, creation site and the stack above it.
type Exception struct {
	Type    string
	Message string
	Code    string // empty means "no code"
	File    string
	Line    int
	Trace   []Frame
}

// TracedError carries the stack captured where it was created.
type TracedError struct {
	Err    error
	Frames []Frame
}

func (e *TracedError) Error() string {
	if e == nil {
		return ""
	}
	return ErrorMessage(e.Err)
}

func (e *TracedError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// ErrorMessage is err.Error() that never panics. Nil errors, including
// typed nil pointers, yield "".
func ErrorMessage(err error) (msg string) {
	if isNilError(err) {
		return ""
	}
	defer func() {
		if r := recover(); r != nil {
			msg = unprintableError
		}
	}()
	return err.Error()
}

const unprintableError = "(Error method panicked)"

func isNilError(err error) bool {
	if err == nil {
		return true
	}
	v := reflect.ValueOf(err)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		return v.IsNil()
	}
	return false
}

// WithStack annotates err with the caller's stack. A nil err stays nil and
// an already traced error is returned unchanged.
func WithStack(err error) error {
	if err == nil {
		return nil
	}
	var te *TracedError
	if errors.As(err, &te) {
		return err
	}
	return &TracedError{Err: err, Frames: Capture(1)}
}

// Errorf is fmt.Errorf plus WithStack.
func Errorf(format string, args ...any) error {
	return &TracedError{Err: fmt.Errorf(format, args...), Frames: Capture(1)}
}

// FromError builds an Exception from err. The first traced frame becomes
// File/Line, the rest become Trace. A nil error yields the zero Exception
// and a typed nil only carries its type. Panics raised by the error's own
// methods are contained.
func FromError(err error) (ex Exception) {
	if err == nil {
		return Exception{}
	}
	if isNilError(err) {
		return Exception{Type: typeName(reflect.TypeOf(err))}
	}
	defer func() {
		if r := recover(); r != nil {
			ex = Exception{Type: typeName(reflect.TypeOf(err)), Message: ErrorMessage(err)}
		}
	}()
	ex = Exception{Message: ErrorMessage(err), Code: errorCode(err)}

	inner := err
	var te *TracedError
	if errors.As(err, &te) && te != nil {
		if te.Err != nil && te == err {
			inner = te.Err
		}
		if len(te.Frames) > 0 {
			ex.File = te.Frames[0].File
			ex.Line = te.Frames[0].Line
			ex.Trace = te.Frames[1:]
		}
	}
	ex.Type = typeName(reflect.TypeOf(inner))
	return ex
}

// errorCode looks for Code() on err or anything it wraps. Zero and empty
// codes count as absent, and so does a Code method that panics.
func errorCode(err error) (code string) {
	defer func() {
		if recover() != nil {
			code = ""
		}
	}()
	var ic interface{ Code() int }
	if errors.As(err, &ic) {
		if c := ic.Code(); c != 0 {
			return strconv.Itoa(c)
		}
		return ""
	}
	var sc interface{ Code() string }
	if errors.As(err, &sc) {
		return sc.Code()
	}
	return ""
}

func (e Exception) lineText() string {
	if e.Line <= 0 {
		return ""
	}
	return strconv.Itoa(e.Line)
}

// ExceptionText renders:
//
//	Message: <msg>
//	File: <file>
//	Line: <line>
//	Stacktrace:
//	<backtrace>
func ExceptionText(e Exception) string {
	var b strings.Builder
	b.WriteString("Message: " + e.Message + "\n")
	b.WriteString("File: " + e.File + "\n")
	b.WriteString("Line: " + e.lineText() + "\n")
	b.WriteString("Stacktrace:\n")
	b.WriteString(BacktraceText(e.Trace))
	return b.String()
}

// ExceptionMarkup renders e as an HTML table: a red title row, a header row,
// the message row and then the backtrace rows.
func ExceptionMarkup(e Exception) string {
	title := "Uncaught " + e.Type
	if e.Code != "" {
		title += " with error code " + e.Code
	}

	const (
		head = `style='background-color:#AAAAAA; color:white; text-align:center'`
		body = `style='background-color:#EEEEEE; color:black'`
	)

	var b strings.Builder
	b.WriteString("<table>")
	b.WriteString("<tr><td colspan='3' style='background-color:#FF0000; color:white; text-align:center'><b>")
	b.WriteString(html.EscapeString(title))
	b.WriteString("</b></td></tr>")

	b.WriteString("<tr><td " + head + ">Context/Message</td>")
	b.WriteString("<td " + head + ">File</td>")
	b.WriteString("<td " + head + ">Line</td></tr>")

	b.WriteString("<tr><td " + body + "><b>" + nl2br(html.EscapeString(e.Message)) + "</b></td>")
	b.WriteString("<td " + body + ">" + html.EscapeString(e.File) + "</td>")
	b.WriteString("<td " + body + ">" + e.lineText() + "</td></tr>")
	b.WriteString(BacktraceMarkup(e.Trace))
	b.WriteString("</table>")
	return b.String()
}

var nl2brReplacer = strings.NewReplacer("\r\n", "<br />\r\n", "\n\r", "<br />\n\r", "\n", "<br />\n", "\r", "<br />\r")

// nl2br inserts a line-break tag before every newline sequence.
func nl2br(s string) string { return nl2brReplacer.Replace(s) }
