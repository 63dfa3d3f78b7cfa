package logging

import (
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/rc4lifting/rc4-facilities-bot/internal/config"
)

func reset(t *testing.T) {
	t.Helper()
	use(nil)
	t.Cleanup(func() { use(nil) })
}

func TestSetupPicksFormatterByEnvironment(t *testing.T) {
	tests := []struct {
		env   string
		level string
		json  bool
	}{
		{config.EnvProduction, "info", true},
		{config.EnvDevelopment, "debug", false},
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			reset(t)

			entry, err := Setup(config.Config{AppEnv: tt.env, LogLevel: tt.level})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			switch f := entry.Logger.Formatter.(type) {
			case *logrus.JSONFormatter:
				if !tt.json || f.FieldMap[logrus.FieldKeyTime] != "ts" {
					t.Fatalf("unexpected JSON formatter %+v", f)
				}
			case *logrus.TextFormatter:
				if tt.json {
					t.Fatalf("expected JSON formatter in %s", tt.env)
				}
			default:
				t.Fatalf("unexpected formatter %T", f)
			}
			if entry.Data["service"] != serviceName || entry.Data["env"] != tt.env {
				t.Fatalf("expected service and env fields, got %v", entry.Data)
			}
			if Logger() != entry {
				t.Fatalf("expected Setup to replace the process logger")
			}
		})
	}
}

func TestSetupRejectsInvalidLogLevel(t *testing.T) {
	reset(t)
	before := Logger()

	if _, err := Setup(config.Config{AppEnv: config.EnvDevelopment, LogLevel: "loud"}); err == nil {
		t.Fatalf("expected error for invalid log level")
	}
	if Logger() != before {
		t.Fatalf("expected previous logger to stay in place")
	}
}

func TestLoggerDefaultsBeforeSetup(t *testing.T) {
	reset(t)

	var (
		wg      sync.WaitGroup
		entries [8]*logrus.Entry
	)
	for i := range entries {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			entries[i] = Logger()
		}(i)
	}
	wg.Wait()

	for _, entry := range entries {
		if entry != entries[0] {
			t.Fatalf("expected a single default logger")
		}
	}
	if entries[0].Logger.GetLevel() != logrus.InfoLevel || entries[0].Data["env"] != config.DefaultAppEnv {
		t.Fatalf("unexpected default logger level=%s data=%v", entries[0].Logger.GetLevel(), entries[0].Data)
	}
}

func TestHelpersCarryContextFields(t *testing.T) {
	reset(t)

	logger, hook := test.NewNullLogger()
	use(logger.WithFields(Fields{"service": serviceName, "env": config.EnvDevelopment}))

	Info("starting", Fields{"event": "startup"})
	Error("boom", Fields{"error": "fail"})

	entries := hook.AllEntries()
	if len(entries) != 2 {
		t.Fatalf("expected 2 log entries, got %d", len(entries))
	}
	if entries[0].Level != logrus.InfoLevel || entries[0].Data["event"] != "startup" {
		t.Fatalf("unexpected info entry level=%s data=%v", entries[0].Level, entries[0].Data)
	}
	if entries[1].Level != logrus.ErrorLevel || entries[1].Data["error"] != "fail" {
		t.Fatalf("unexpected error entry level=%s data=%v", entries[1].Level, entries[1].Data)
	}

	WithContext(Context{TelegramID: 42, ChatID: -1001, Command: " book ", Event: "ping"}).Info("ctx log")

	last := hook.LastEntry()
	if last.Data["telegram_id"] != int64(42) || last.Data["chat_id"] != int64(-1001) || last.Data["event"] != "ping" {
		t.Fatalf("expected context fields, got %v", last.Data)
	}
	if last.Data["command"] != "book" || last.Data["service"] != serviceName {
		t.Fatalf("expected trimmed command and base fields, got %v", last.Data)
	}

	if fields := (Context{Command: "  "}).Fields(); len(fields) != 0 {
		t.Fatalf("expected blank context to add no fields, got %v", fields)
	}
}

func TestSpanRendersUTC(t *testing.T) {
	sgt := time.FixedZone("SGT", 8*60*60)
	begin := time.Date(2026, 10, 19, 8, 0, 0, 0, sgt)

	fields := Span(begin, begin.Add(time.Hour))

	if fields["time_begin"] != "2026-10-19T00:00:00Z" {
		t.Fatalf("unexpected time_begin %v", fields["time_begin"])
	}
	if fields["time_end"] != "2026-10-19T01:00:00Z" {
		t.Fatalf("unexpected time_end %v", fields["time_end"])
	}
}
