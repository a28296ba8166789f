package zeros

// Logger defines the interface for bootloader logging.
// The bootloader uses structured logging with key-value pairs so that boot
// progress, module state transitions and self-check results can be parsed.
//
// The Logger interface uses variadic arguments in key-value pairs:
//
//	logger.Info("message", "key1", "value1", "key2", "value2")
//
// *slog.Logger from the standard library satisfies this interface directly.
type Logger interface {
	// Info logs an informational message, e.g. a layer finished loading.
	Info(msg string, args ...any)

	// Error logs an error message, e.g. a fatal script load failure.
	Error(msg string, args ...any)

	// Warn logs a warning message, e.g. a ready signal that never arrived.
	Warn(msg string, args ...any)

	// Debug logs a debug message, e.g. individual state transitions.
	Debug(msg string, args ...any)
}

// nopLogger discards everything. Used when no logger is configured.
type nopLogger struct{}

func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Debug(string, ...any) {}

func loggerOrNop(l Logger) Logger {
	if l == nil {
		return nopLogger{}
	}
	return l
}
