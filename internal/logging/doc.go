// Package logging configures structured slog output for qabrain.
//
// Logs are JSON lines written to a size-rotated file under ~/.qabrain/logs/,
// optionally mirrored to stderr. MCP stdio mode never writes to stderr or
// stdout because stdout carries the JSON-RPC stream.
package logging
