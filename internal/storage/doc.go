// Package storage persists notification delivery records and notifier
// dedup state.
//
// Two drivers exist: "file" (JSON Lines plus a snapshot) and "sqlite"
// (modernc.org/sqlite, no cgo).
package storage
