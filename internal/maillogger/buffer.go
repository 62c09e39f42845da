package maillogger

import "strings"

// DefaultMaxEvents is used when a non-positive maximum is configured.
const DefaultMaxEvents = 30

// TruncationNotice replaces every event past the configured maximum.
const TruncationNotice = "Maximum number of events reached, further events discarded"

const (
	textSeparator   = "\n"
	markupSeparator = "<br/>\n"
)

// State is the lifecycle position of a Buffer.
type State int

const (
	Idle State = iota
	Accumulating
	FlushScheduled
	Flushed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Accumulating:
		return "accumulating"
	case FlushScheduled:
		return "flush_scheduled"
	case Flushed:
		return "flushed"
	default:
		return "unknown"
	}
}

// Outcome says what a Buffer did with an event.
type Outcome int

const (
	// Appended: the event is within the maximum and must be kept.
	Appended Outcome = iota
	// Truncated: the first event past the maximum; the notice replaces it.
	Truncated
	// Discarded: the event is past the notice and is dropped silently.
	Discarded
	// Late: the cycle was already flushed.
	Late
)

// Buffer accumulates rendered events for one cycle. It is not safe for
// concurrent use; Logger serializes access.
type Buffer struct {
	max    int
	count  int
	late   int
	state  State
	text   strings.Builder
	markup strings.Builder
}

func NewBuffer(maxEvents int) *Buffer {
	if maxEvents <= 0 {
		maxEvents = DefaultMaxEvents
	}
	return &Buffer{max: maxEvents}
}

// Admit counts one accepted event and reports whether it should be kept.
// It does not store anything.
func (b *Buffer) Admit() Outcome {
	if b.state == Flushed {
		b.late++
		return Late
	}
	if b.state == Idle {
		b.state = Accumulating
	}
	b.count++
	switch {
	case b.count <= b.max:
		return Appended
	case b.count == b.max+1:
		return Truncated
	default:
		return Discarded
	}
}

// Append stores one rendered event followed by its separator.
func (b *Buffer) Append(text, markup string) {
	b.text.WriteString(text)
	b.text.WriteString(textSeparator)
	b.markup.WriteString(markup)
	b.markup.WriteString(markupSeparator)
}

// Add admits an event and stores it, or the truncation notice, as the
// outcome requires. render is only called for Appended events.
func (b *Buffer) Add(render func() (text, markup string)) Outcome {
	out := b.Admit()
	switch out {
	case Appended:
		b.Append(render())
	case Truncated:
		b.Append(TruncationNotice, TruncationNotice)
	}
	return out
}

// Schedule reports true exactly once per cycle: the first time it is
// called after an event was admitted.
func (b *Buffer) Schedule() bool {
	if b.state != Accumulating {
		return false
	}
	b.state = FlushScheduled
	return true
}

// Take returns the accumulated content and closes the cycle. ok is false
// when the cycle holds nothing or was already flushed.
func (b *Buffer) Take() (text, markup string, ok bool) {
	if b.state != Accumulating && b.state != FlushScheduled {
		return "", "", false
	}
	b.state = Flushed
	return b.text.String(), b.markup.String(), b.text.Len() > 0
}

// Reset starts a new cycle.
func (b *Buffer) Reset() {
	b.count = 0
	b.late = 0
	b.state = Idle
	b.text.Reset()
	b.markup.Reset()
}

func (b *Buffer) Text() string   { return b.text.String() }
func (b *Buffer) Markup() string { return b.markup.String() }
func (b *Buffer) Count() int     { return b.count }
func (b *Buffer) Late() int      { return b.late }
func (b *Buffer) State() State   { return b.state }
func (b *Buffer) MaxEvents() int { return b.max }
