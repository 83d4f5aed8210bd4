package slogx

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

const (
	KeyLoggerName = "logger"
	KeyRunID      = "run_id"
	KeyFlow       = "flow"
	KeyStep       = "step"
)

// Error returns an attribute with the key "error" holding the error message.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "<nil>")
	}
	return slog.String("error", err.Error())
}

func ByteString(key string, value []byte) slog.Attr {
	return slog.String(key, string(value))
}

func Stringer(key string, value fmt.Stringer) slog.Attr {
	return slog.String(key, value.String())
}

// LoggerName names the component that owns a logger, e.g. "telegram" or "flow".
func LoggerName(name string) slog.Attr {
	return slog.String(KeyLoggerName, name)
}

func RunID(id uuid.UUID) slog.Attr {
	return slog.String(KeyRunID, id.String())
}

func Flow(name string) slog.Attr {
	return slog.String(KeyFlow, name)
}

func Step(name string) slog.Attr {
	return slog.String(KeyStep, name)
}
