package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/gemcraft/gemcms/internal/model"
)

// memorySink collects events in memory.
type memorySink struct {
	mu     sync.Mutex
	events []*model.EventLog
}

func (s *memorySink) Add(_ context.Context, e *model.EventLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

func (s *memorySink) all() []*model.EventLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*model.EventLog(nil), s.events...)
}

// discardHandler is a slog.Handler that discards all logs.
type discardHandler struct{}

func (h discardHandler) Enabled(context.Context, slog.Level) bool  { return true }
func (h discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (h discardHandler) WithAttrs([]slog.Attr) slog.Handler        { return h }
func (h discardHandler) WithGroup(string) slog.Handler             { return h }

func TestEventLogHandler_Handle_ErrorLevel(t *testing.T) {
	sink := &memorySink{}
	logger := slog.New(NewEventLogHandler(discardHandler{}, sink))

	logger.Error("payment provider unreachable", "category", model.EventCategorySystem, "attempt", 3)

	events := sink.all()
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	e := events[0]
	if e.Level != model.EventLevelError {
		t.Errorf("Level = %q, want %q", e.Level, model.EventLevelError)
	}
	if e.Category != model.EventCategorySystem {
		t.Errorf("Category = %q, want %q", e.Category, model.EventCategorySystem)
	}

	var meta map[string]any
	if err := json.Unmarshal(e.Metadata, &meta); err != nil {
		t.Fatalf("metadata is not JSON: %v", err)
	}
	if meta["attempt"] != float64(3) {
		t.Errorf("metadata attempt = %v, want 3", meta["attempt"])
	}
	if _, ok := meta["category"]; ok {
		t.Error("category should not be duplicated into metadata")
	}
}

func TestEventLogHandler_Handle_InfoNotPersisted(t *testing.T) {
	sink := &memorySink{}
	logger := slog.New(NewEventLogHandler(discardHandler{}, sink))

	logger.Info("server started")
	logger.Debug("noise")

	if n := len(sink.all()); n != 0 {
		t.Errorf("got %d events, want 0", n)
	}
}

func TestEventLogHandler_CustomLevel(t *testing.T) {
	sink := &memorySink{}
	logger := slog.New(NewEventLogHandlerWithLevel(discardHandler{}, sink, slog.LevelInfo))

	logger.Info("cache warmed")

	events := sink.all()
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	if events[0].Level != model.EventLevelInfo {
		t.Errorf("Level = %q, want %q", events[0].Level, model.EventLevelInfo)
	}
	if events[0].Category != model.EventCategoryCache {
		t.Errorf("Category = %q, want %q", events[0].Category, model.EventCategoryCache)
	}
}

func TestEventLogHandler_WithAttrs(t *testing.T) {
	sink := &memorySink{}
	logger := slog.New(NewEventLogHandler(discardHandler{}, sink)).With("admin_id", int64(5), "request_id", "abc")

	logger.Warn("failed login")

	events := sink.all()
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	e := events[0]
	if e.AdminID == nil || *e.AdminID != 5 {
		t.Errorf("AdminID = %v, want 5", e.AdminID)
	}
	if e.Category != model.EventCategoryAuth {
		t.Errorf("Category = %q, want %q", e.Category, model.EventCategoryAuth)
	}
	if !strings.Contains(string(e.Metadata), `"request_id":"abc"`) {
		t.Errorf("Metadata = %s, want request_id", e.Metadata)
	}
}

func TestEventLogHandler_SkipsDatabaseLogs(t *testing.T) {
	sink := &memorySink{}
	logger := slog.New(NewEventLogHandler(discardHandler{}, sink))

	logger.Warn("slow query", "component", "gorm", "elapsed", "2s")

	if n := len(sink.all()); n != 0 {
		t.Errorf("got %d events, want 0", n)
	}
}

func TestEventLogHandler_ForwardsToInner(t *testing.T) {
	var buf bytes.Buffer
	inner := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})
	logger := slog.New(NewEventLogHandler(inner, &memorySink{}))

	logger.Info("hello", "k", "v")

	if !strings.Contains(buf.String(), "msg=hello") || !strings.Contains(buf.String(), "k=v") {
		t.Errorf("inner handler output = %q", buf.String())
	}
}

func TestInferCategory(t *testing.T) {
	tests := map[string]string{
		"login failed":         model.EventCategoryAuth,
		"admin deleted":        model.EventCategoryAdmin,
		"lead purge finished":  model.EventCategoryLead,
		"redis cache fallback": model.EventCategoryCache,
		"image upload failed":  model.EventCategoryContent,
		"something else":       model.EventCategorySystem,
	}
	for msg, want := range tests {
		if got := inferCategory(msg); got != want {
			t.Errorf("inferCategory(%q) = %q, want %q", msg, got, want)
		}
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewHandler_File(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "gemcms.log")

	h, closer := NewHandler(Options{Level: "info", File: path, Output: &buf})
	slog.New(h).Info("written twice")
	if err := closer.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if !strings.Contains(string(data), "written twice") {
		t.Errorf("log file = %q", data)
	}
	if !strings.Contains(buf.String(), "written twice") {
		t.Errorf("stdout copy = %q", buf.String())
	}
}
