// Package logging builds the bot's logrus logger. Every entry carries the
// service name and deployment environment; bot handlers add the chat and
// command they are serving, booking code adds the interval it touched.
package logging

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rc4lifting/rc4-facilities-bot/internal/config"
)

const serviceName = "facilities-bot"

var (
	mu   sync.RWMutex
	base *logrus.Entry
)

// Context names the Telegram update a log line belongs to.
type Context struct {
	TelegramID int64
	ChatID     int64
	Command    string
	Event      string
}

// Fields is a shorthand alias for structured log fields.
type Fields = logrus.Fields

// Setup replaces the process logger with one at cfg.LogLevel: text in
// development, JSON everywhere else. On error the previous logger
// stays in place.
func Setup(cfg config.Config) (*logrus.Entry, error) {
	level, err := logrus.ParseLevel(strings.ToLower(strings.TrimSpace(cfg.LogLevel)))
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}

	entry := newEntry(level, cfg.AppEnv)
	use(entry)
	return entry, nil
}

// Logger returns the process logger. Before Setup runs it is an info-level
// logger for the default environment, so configuration errors still get
// reported.
func Logger() *logrus.Entry {
	mu.RLock()
	entry := base
	mu.RUnlock()
	if entry != nil {
		return entry
	}

	mu.Lock()
	defer mu.Unlock()
	if base == nil {
		base = newEntry(logrus.InfoLevel, config.DefaultAppEnv)
	}
	return base
}

// WithContext tags the process logger with the update's identifiers.
func WithContext(ctx Context) *logrus.Entry {
	return with(ctx.Fields())
}

// Fields drops zero identifiers and blank strings.
func (c Context) Fields() Fields {
	fields := Fields{}
	if c.TelegramID != 0 {
		fields["telegram_id"] = c.TelegramID
	}
	if c.ChatID != 0 {
		fields["chat_id"] = c.ChatID
	}
	if cmd := strings.TrimSpace(c.Command); cmd != "" {
		fields["command"] = cmd
	}
	if event := strings.TrimSpace(c.Event); event != "" {
		fields["event"] = event
	}
	return fields
}

// Span returns the fields describing a requested or booked interval, rendered
// in UTC so entries from different components line up.
func Span(begin, end time.Time) Fields {
	return Fields{
		"time_begin": begin.UTC().Format(time.RFC3339),
		"time_end":   end.UTC().Format(time.RFC3339),
	}
}

// Info writes msg at info level.
func Info(msg string, fields Fields) {
	with(fields).Info(msg)
}

// Error writes msg at error level.
func Error(msg string, fields Fields) {
	with(fields).Error(msg)
}

func with(fields Fields) *logrus.Entry {
	entry := Logger()
	if len(fields) == 0 {
		return entry
	}
	return entry.WithFields(fields)
}

func use(entry *logrus.Entry) {
	mu.Lock()
	base = entry
	mu.Unlock()
}

func newEntry(level logrus.Level, appEnv string) *logrus.Entry {
	logger := logrus.New()
	logger.SetLevel(level)
	logger.SetFormatter(formatterFor(appEnv))
	return logger.WithFields(Fields{
		"service": serviceName,
		"env":     appEnv,
	})
}

func formatterFor(appEnv string) logrus.Formatter {
	keys := logrus.FieldMap{
		logrus.FieldKeyTime:  "ts",
		logrus.FieldKeyMsg:   "msg",
		logrus.FieldKeyLevel: "level",
	}

	if appEnv == config.EnvDevelopment {
		return &logrus.TextFormatter{
			FullTimestamp:          true,
			TimestampFormat:        time.RFC3339Nano,
			FieldMap:               keys,
			DisableLevelTruncation: true,
		}
	}
	return &logrus.JSONFormatter{
		TimestampFormat: time.RFC3339Nano,
		FieldMap:        keys,
	}
}
