// Package slogext adds small slog.Attr helpers used by internal/httpapi
// and cmd/omnifsd.
package slogext

import "log/slog"

// Err wraps an error as a slog attribute under the conventional "error" key.
func Err(err error) slog.Attr {
	return slog.Any("error", err)
}
