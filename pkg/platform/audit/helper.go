package audit

import (
	"context"
	"fmt"
	"log/slog"

	"gatekeeper/pkg/requestcontext"
)

//go:generate mockgen -source=helper.go -destination=mocks/mocks.go -package=mocks Emitter

// Emitter receives security events for out-of-process recording.
// Satisfied by publisher.Publisher.
type Emitter interface {
	Emit(ctx context.Context, event Event) error
}

// Logger writes an audit line for every security event and forwards it to an optional
// emitter. Emit failures are logged and swallowed: recording an event never fails a request.
type Logger struct {
	textLogger *slog.Logger
	emitter    Emitter
}

// NewLogger creates an audit logger. Both arguments may be nil.
func NewLogger(textLogger *slog.Logger, emitter Emitter) *Logger {
	return &Logger{textLogger: textLogger, emitter: emitter}
}

// Log records event enriched with request id, client ip and timestamp from ctx.
// Known attribute keys ("subject", "reason", "device", "client_ip") populate the emitted Event.
//
// Usage:
//
//	auditLogger.Log(ctx, audit.EventRateLimited, "subject", key, "reason", policy.Name)
func (l *Logger) Log(ctx context.Context, event EventType, attributes ...any) {
	if l == nil {
		return
	}
	requestID := requestcontext.RequestID(ctx)
	if requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}

	if l.textLogger != nil {
		args := append(attributes, "event", string(event), "log_type", "audit")
		l.textLogger.InfoContext(ctx, string(event), args...)
	}

	if l.emitter == nil {
		return
	}
	err := l.emitter.Emit(ctx, Event{
		Timestamp: requestcontext.Now(ctx),
		Type:      event,
		Subject:   extract(attributes, "subject"),
		ClientIP:  extract(attributes, "client_ip"),
		Device:    extract(attributes, "device"),
		Reason:    extract(attributes, "reason"),
		RequestID: requestID,
	})
	if err != nil && l.textLogger != nil {
		l.textLogger.WarnContext(ctx, "failed to emit audit event",
			"error", err,
			"event", string(event),
		)
	}
}

// extract returns the value following key in a slog-style key/value list.
func extract(attributes []any, key string) string {
	for i := 0; i+1 < len(attributes); i += 2 {
		if k, ok := attributes[i].(string); ok && k == key {
			switch v := attributes[i+1].(type) {
			case string:
				return v
			case fmt.Stringer:
				return v.String()
			default:
				return fmt.Sprint(v)
			}
		}
	}
	return ""
}
