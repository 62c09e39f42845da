// Package logx configures maillog's own structured logging.
//
// This repo uses a small wrapper (logx.Logger) on top of zerolog to keep:
//   - Console output readable (short timestamp + short caller)
//   - File output JSON-structured
//   - A stable fallback sink for notifications that could not be delivered
package logx
