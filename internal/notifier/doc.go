// Package notifier delivers notifications asynchronously.
//
// Service wraps a transport.Transport and implements it: Send only
// enqueues. Workers drain the queue under a rate limit, retry failures
// with jittered exponential backoff and record every outcome in storage.
// Identical notifications inside the dedup window are suppressed.
//
// # History
//
// For operator visibility the service keeps the titles of recently
// delivered notifications in memory.
package notifier
