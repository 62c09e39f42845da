// Package severity defines the six ordered log levels and the gate that
// decides whether an event is processed at all.
package severity

import (
	"errors"
	"fmt"
	"strings"
)

// Severity is an ordered log level. Comparisons are by rank.
// The zero value is Unset and never passes the gate as a threshold.
type Severity int

const (
	Unset Severity = iota
	Trace
	Debug
	Info
	Warn
	Error
	Fatal
)

var (
	ErrUnset   = errors.New("severity threshold is not set")
	ErrInvalid = errors.New("invalid event severity")
)

var names = [...]string{"", "TRACE", "DEBUG", "INFO", "WARN", "ERROR", "FATAL"}

// All lists every valid severity, lowest first.
var All = []Severity{Trace, Debug, Info, Warn, Error, Fatal}

func (s Severity) String() string {
	if s.Valid() {
		return names[s]
	}
	return fmt.Sprintf("Severity(%d)", int(s))
}

// Rank returns the numeric rank (TRACE=1 .. FATAL=6).
func (s Severity) Rank() int { return int(s) }

func (s Severity) Valid() bool { return s >= Trace && s <= Fatal }

// Parse accepts level names (case-insensitive, WARNING as an alias) and
// the numeric ranks "1".."6".
func Parse(raw string) (Severity, error) {
	v := strings.ToUpper(strings.TrimSpace(raw))
	switch v {
	case "":
		return Unset, ErrUnset
	case "WARNING":
		return Warn, nil
	}
	for i := 1; i < len(names); i++ {
		if v == names[i] || v == fmt.Sprint(i) {
			return Severity(i), nil
		}
	}
	return Unset, fmt.Errorf("unknown severity %q", raw)
}

// ShouldProcess reports whether an event at level event passes threshold.
// An unset or invalid threshold is a configuration error, never a silent drop.
// An event level outside TRACE..FATAL is rejected with ErrInvalid.
func ShouldProcess(event, threshold Severity) (bool, error) {
	if !threshold.Valid() {
		return false, ErrUnset
	}
	if !event.Valid() {
		return false, fmt.Errorf("%w: %d", ErrInvalid, int(event))
	}
	return event.Rank() >= threshold.Rank(), nil
}

func (s Severity) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid severity %d", int(s))
	}
	return []byte(s.String()), nil
}

func (s *Severity) UnmarshalText(b []byte) error {
	v, err := Parse(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}
