package app

import (
	"bufio"
	"context"
	"io"
	"strings"
	"unicode"

	"maillog/internal/severity"
)

const maxLine = 1 << 20

// ParseLine splits "LEVEL message" input. The level token may be written
// as WARN, warn:, [WARN] or <warn>. Lines without a recognized level keep
// their full text and get def.
func ParseLine(line string, def severity.Severity) (severity.Severity, string) {
	line = strings.TrimSpace(line)
	head, rest, _ := strings.Cut(line, " ")
	tok := strings.TrimRight(head, ":")
	tok = strings.Trim(tok, "[]<>")
	if tok == "" || !unicode.IsLetter(rune(tok[0])) {
		return def, line
	}
	lvl, err := severity.Parse(tok)
	if err != nil {
		return def, line
	}
	return lvl, strings.TrimSpace(rest)
}

// ReadLines calls handle for every non-blank line of r until EOF or until
// ctx ends. handle errors do not stop reading.
func ReadLines(ctx context.Context, r io.Reader, handle func(ctx context.Context, line string)) error {
	lines := make(chan string)
	errc := make(chan error, 1)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(r)
		sc.Buffer(make([]byte, 0, 64*1024), maxLine)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		errc <- sc.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-errc:
					return err
				default:
					return ctx.Err()
				}
			}
			if strings.TrimSpace(line) != "" {
				handle(ctx, line)
			}
		}
	}
}
