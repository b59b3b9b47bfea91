// Package logx configures arksched's structured logging.
//
// This repo uses a small wrapper (logx.Logger) on top of zerolog to keep:
//   - Console output readable (short timestamp + short caller)
//   - File output JSON-structured
//   - Runtime-swappable sinks/levels via Service.Apply
package logx
