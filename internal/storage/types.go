package storage

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage.
//
// Driver values:
//   - "file": JSON Lines backend
//   - "sqlite": SQLite database file
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Delivery records one attempt to hand a notification to a transport.
// Keep it compact and schema-stable.
type Delivery struct {
	At        time.Time `json:"at"`
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Transport string    `json:"transport,omitempty"`
	Key       string    `json:"key,omitempty"`
	Attempts  int       `json:"attempts"`
	OK        bool      `json:"ok"`
	Error     string    `json:"error,omitempty"`
	TookMS    int64     `json:"took_ms"`
}
