package mohyung

import "log/slog"

// loggerOrDiscard returns logger, or a logger that drops every record if
// logger is nil.
func loggerOrDiscard(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return logger
}
