// Package app wires configuration into a running pipeline: transports,
// the optional async notifier, storage, metrics and the mail logger. It
// also owns hot reload and cycle rotation for daemon mode.
package app
