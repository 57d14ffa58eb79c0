package telemetry

import (
	"log/slog"
	"os"
)

// LogLevel определяет уровень логирования из переменной окружения.
// Возможные значения: DEBUG, INFO, WARN, ERROR
// По умолчанию: INFO
func LogLevel() slog.Level {
	level := os.Getenv("LOG_LEVEL")
	switch level {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetupLogger инициализирует глобальный логгер.
//
// Формат вывода определяется переменной LOG_FORMAT:
//   - "json" (по умолчанию) — JSON формат для production
//   - "text" — человекочитаемый формат для разработки
func SetupLogger() *slog.Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level:     LogLevel(),
		AddSource: LogLevel() == slog.LevelDebug,
	}

	format := os.Getenv("LOG_FORMAT")
	if format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)

	return logger
}

// WithWorkflow возвращает логгер с добавленным workflow.
func WithWorkflow(logger *slog.Logger, workflow string) *slog.Logger {
	return logger.With("workflow", workflow)
}

// WithInstanceID возвращает логгер с добавленным instance_id.
func WithInstanceID(logger *slog.Logger, instanceID string) *slog.Logger {
	return logger.With("instance_id", instanceID)
}

// WithStepID возвращает логгер с добавленным step_id.
func WithStepID(logger *slog.Logger, stepID string) *slog.Logger {
	return logger.With("step_id", stepID)
}
