package maillogger

import (
	"maillog/internal/eventbus"
	"maillog/internal/severity"
)

// Kind distinguishes per-event notifications from digests.
type Kind string

const (
	KindEvent  Kind = "event"
	KindDigest Kind = "digest"
)

// Observer receives logger activity for metrics and event publishing.
// Methods are called synchronously and must not block.
type Observer interface {
	Accepted(level severity.Severity)
	Filtered(level severity.Severity)
	// Discarded is called for events dropped past the truncation notice
	// or after the cycle was flushed.
	Discarded(level severity.Severity)
	Truncated()
	Dispatched(kind Kind, events int, err error)
}

type nopObserver struct{}

func (nopObserver) Accepted(severity.Severity)  {}
func (nopObserver) Filtered(severity.Severity)  {}
func (nopObserver) Discarded(severity.Severity) {}
func (nopObserver) Truncated()                  {}
func (nopObserver) Dispatched(Kind, int, error) {}

// Observers fans out to several observers in order.
type Observers []Observer

func (o Observers) Accepted(level severity.Severity) {
	for _, x := range o {
		x.Accepted(level)
	}
}

func (o Observers) Filtered(level severity.Severity) {
	for _, x := range o {
		x.Filtered(level)
	}
}

func (o Observers) Discarded(level severity.Severity) {
	for _, x := range o {
		x.Discarded(level)
	}
}

func (o Observers) Truncated() {
	for _, x := range o {
		x.Truncated()
	}
}

func (o Observers) Dispatched(kind Kind, events int, err error) {
	for _, x := range o {
		x.Dispatched(kind, events, err)
	}
}

// LoggerEvent is the payload of logger topics on the event bus.
type LoggerEvent struct {
	Kind   Kind   `json:"kind"`
	Events int    `json:"events"`
	Error  string `json:"error,omitempty"`
}

// BusObserver publishes truncations and dispatches on an event bus.
type BusObserver struct {
	nopObserver
	Bus eventbus.Bus
}

func (o BusObserver) Truncated() {
	o.Bus.Publish(eventbus.Event{Type: eventbus.LoggerTruncated})
}

func (o BusObserver) Dispatched(kind Kind, events int, err error) {
	ev := LoggerEvent{Kind: kind, Events: events}
	if err != nil {
		ev.Error = err.Error()
	}
	o.Bus.Publish(eventbus.Event{Type: eventbus.LoggerFlushed, Data: ev})
}
