// Package logging provides the slog setup for gemcms and a handler that
// mirrors warnings and errors into the event_logs table for admins.
package logging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gemcraft/gemcms/internal/model"
)

// EventSink persists event log records.
type EventSink interface {
	Add(ctx context.Context, e *model.EventLog) error
}

// writeTimeout bounds a single event log insert.
const writeTimeout = 3 * time.Second

// EventLogHandler is a slog.Handler that wraps another handler and also writes
// WARN and ERROR level logs to the event log.
type EventLogHandler struct {
	inner slog.Handler
	sink  EventSink
	level slog.Level // Minimum level to forward to the event log (default: WARN)
	attrs []slog.Attr
}

// NewEventLogHandler creates a new EventLogHandler that wraps the given handler.
func NewEventLogHandler(inner slog.Handler, sink EventSink) *EventLogHandler {
	return NewEventLogHandlerWithLevel(inner, sink, slog.LevelWarn)
}

// NewEventLogHandlerWithLevel creates a new EventLogHandler with a custom minimum level.
func NewEventLogHandlerWithLevel(inner slog.Handler, sink EventSink, level slog.Level) *EventLogHandler {
	return &EventLogHandler{inner: inner, sink: sink, level: level}
}

// Enabled implements slog.Handler.
func (h *EventLogHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// Handle implements slog.Handler.
func (h *EventLogHandler) Handle(ctx context.Context, r slog.Record) error {
	// Always forward to the inner handler first
	if err := h.inner.Handle(ctx, r); err != nil {
		return err
	}

	if r.Level >= h.level {
		h.writeToEventLog(r)
	}
	return nil
}

// WithAttrs implements slog.Handler.
func (h *EventLogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &EventLogHandler{
		inner: h.inner.WithAttrs(attrs),
		sink:  h.sink,
		level: h.level,
		attrs: append(append([]slog.Attr{}, h.attrs...), attrs...),
	}
}

// WithGroup implements slog.Handler.
func (h *EventLogHandler) WithGroup(name string) slog.Handler {
	return &EventLogHandler{
		inner: h.inner.WithGroup(name),
		sink:  h.sink,
		level: h.level,
		attrs: h.attrs,
	}
}

func (h *EventLogHandler) collectAttrs(r slog.Record) []slog.Attr {
	attrs := make([]slog.Attr, 0, len(h.attrs)+r.NumAttrs())
	attrs = append(attrs, h.attrs...)
	r.Attrs(func(a slog.Attr) bool {
		attrs = append(attrs, a)
		return true
	})
	return attrs
}

// writeToEventLog writes a log record to the event log.
// Database driver logs are skipped so that a failing insert cannot recurse.
func (h *EventLogHandler) writeToEventLog(r slog.Record) {
	attrs := h.collectAttrs(r)

	var category string
	var adminID *int64
	metadata := make(map[string]any, len(attrs))
	for _, a := range attrs {
		switch a.Key {
		case "component":
			if a.Value.String() == "gorm" {
				return
			}
			metadata[a.Key] = a.Value.String()
		case "category":
			category = a.Value.String()
		case "admin_id":
			if id, ok := attrInt64(a.Value); ok {
				adminID = &id
			}
		default:
			metadata[a.Key] = attrValue(a.Value)
		}
	}
	if category == "" {
		category = inferCategory(r.Message)
	}

	e := &model.EventLog{
		Level:     slogLevelToEventLevel(r.Level),
		Category:  category,
		Message:   r.Message,
		AdminID:   adminID,
		CreatedAt: r.Time.UTC(),
	}
	if len(metadata) > 0 {
		if data, err := json.Marshal(metadata); err == nil {
			e.Metadata = data
		}
	}

	// A fresh context so the event is logged even if the request was cancelled.
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	_ = h.sink.Add(ctx, e)
}

// slogLevelToEventLevel converts a slog.Level to an event level.
func slogLevelToEventLevel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return model.EventLevelError
	case level >= slog.LevelWarn:
		return model.EventLevelWarning
	default:
		return model.EventLevelInfo
	}
}

// inferCategory guesses a category from the message when none was given.
func inferCategory(msg string) string {
	msg = strings.ToLower(msg)
	switch {
	case strings.Contains(msg, "auth") || strings.Contains(msg, "login") || strings.Contains(msg, "token"):
		return model.EventCategoryAuth
	case strings.Contains(msg, "admin"):
		return model.EventCategoryAdmin
	case strings.Contains(msg, "lead"):
		return model.EventCategoryLead
	case strings.Contains(msg, "cache"):
		return model.EventCategoryCache
	case strings.Contains(msg, "upload") || strings.Contains(msg, "image") || strings.Contains(msg, "content"):
		return model.EventCategoryContent
	default:
		return model.EventCategorySystem
	}
}

func attrValue(v slog.Value) any {
	v = v.Resolve()
	switch v.Kind() {
	case slog.KindInt64:
		return v.Int64()
	case slog.KindUint64:
		return v.Uint64()
	case slog.KindFloat64:
		return v.Float64()
	case slog.KindBool:
		return v.Bool()
	case slog.KindGroup:
		group := make(map[string]any)
		for _, a := range v.Group() {
			group[a.Key] = attrValue(a.Value)
		}
		return group
	default:
		return v.String()
	}
}

func attrInt64(v slog.Value) (int64, bool) {
	v = v.Resolve()
	switch v.Kind() {
	case slog.KindInt64:
		return v.Int64(), true
	case slog.KindUint64:
		return int64(v.Uint64()), true
	case slog.KindString:
		var id int64
		if _, err := fmt.Sscan(v.String(), &id); err == nil {
			return id, true
		}
	}
	return 0, false
}
