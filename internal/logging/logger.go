package logging

import (
	"io"
	"os"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
)

// LogLevel represents the logging level
type LogLevel string

const (
	DebugLevel LogLevel = "debug"
	InfoLevel  LogLevel = "info"
	WarnLevel  LogLevel = "warn"
	ErrorLevel LogLevel = "error"
)

// UserIDLocal is the fiber Locals key holding the authenticated remote user id
const UserIDLocal = "shared_user_id"

// Logger wraps the zerolog logger shared by the library, importer and server
type Logger struct {
	logger zerolog.Logger
}

// NewLogger creates a logger writing to output (stdout when nil). Unknown levels fall back to info.
func NewLogger(level LogLevel, output io.Writer) *Logger {
	if output == nil {
		output = os.Stdout
	}
	return &Logger{
		logger: zerolog.New(output).Level(parseLevel(level)).With().Timestamp().Logger(),
	}
}

func parseLevel(level LogLevel) zerolog.Level {
	parsed, err := zerolog.ParseLevel(string(level))
	if err != nil || parsed == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return parsed
}

// Zerolog exposes the underlying logger
func (l *Logger) Zerolog() *zerolog.Logger {
	return &l.logger
}

// module returns a child logger tagged with module
func (l *Logger) module(name string) *zerolog.Logger {
	child := l.logger.With().Str("module", name).Logger()
	return &child
}

// LogImportBatch logs the outcome of one import batch
func (l *Logger) LogImportBatch(libraryRoot string, requested, imported int, duration time.Duration) {
	event := l.logger.Info()
	if imported < requested {
		event = l.logger.Warn()
	}
	event.
		Str("library", libraryRoot).
		Int("requested", requested).
		Int("imported", imported).
		Int("skipped", requested-imported).
		Dur("took", duration).
		Msg("Import batch finished")
}

// LogSecurityEvent logs a rejected remote access attempt
func (l *Logger) LogSecurityEvent(ip, reason, route string) {
	l.logger.Warn().
		Str("event", "security").
		Str("ip", ip).
		Str("reason", reason).
		Str("route", route).
		Msg("Remote access rejected")
}

// RequestLogger logs one line per HTTP request once the handler chain returns.
// Server errors log at error, client errors at warn.
func (l *Logger) RequestLogger() fiber.Handler {
	log := l.module("http")
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			status = fiber.StatusInternalServerError
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			}
		}
		event := log.Info()
		switch {
		case status >= fiber.StatusInternalServerError:
			event = log.Error()
		case status >= fiber.StatusBadRequest:
			event = log.Warn()
		}
		if userID, ok := c.Locals(UserIDLocal).(string); ok {
			event = event.Str("user_id", userID)
		}
		event.
			Str("ip", c.IP()).
			Str("method", c.Method()).
			Str("path", c.Path()).
			Int("status", status).
			Int64("duration_ms", time.Since(start).Milliseconds()).
			Msg("request")
		return err
	}
}
