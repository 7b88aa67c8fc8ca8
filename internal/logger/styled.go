package logger

import "log/slog"

// StyledLogger is the logging surface components receive. It hides the
// concrete slog handler wiring so tests can swap in a plain logger.
type StyledLogger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	With(args ...any) StyledLogger
}

type plainStyledLogger struct {
	logger *slog.Logger
}

func NewPlainStyledLogger(logger *slog.Logger) StyledLogger {
	return &plainStyledLogger{logger: logger}
}

func (sl *plainStyledLogger) Debug(msg string, args ...any) {
	sl.logger.Debug(msg, args...)
}

func (sl *plainStyledLogger) Info(msg string, args ...any) {
	sl.logger.Info(msg, args...)
}

func (sl *plainStyledLogger) Warn(msg string, args ...any) {
	sl.logger.Warn(msg, args...)
}

func (sl *plainStyledLogger) Error(msg string, args ...any) {
	sl.logger.Error(msg, args...)
}

func (sl *plainStyledLogger) With(args ...any) StyledLogger {
	return &plainStyledLogger{logger: sl.logger.With(args...)}
}
