// Package logging provides structured logging built on log/slog.
//
// The Logger adds service/version default fields and configuration-driven
// level, format, and output selection. Components derive their own loggers
// via With("component", ...) so every line carries its origin.
package logging
