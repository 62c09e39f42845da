// Package maillogger is a severity-gated logger that turns diagnostic
// events into notifications.
//
// Events below the configured threshold are ignored. Accepted events are
// rendered in text and markup form and either dispatched one by one or
// accumulated into a digest that is sent once when the unit of work ends.
// A unit of work is whatever owns the Logger: a Scope, an HTTP request
// (Middleware) or a cycle of a long-lived process (Rotate).
package maillogger
