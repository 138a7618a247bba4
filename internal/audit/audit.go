// Package audit implements the gateway's fire-and-forget audit logger
// (spec.md §4.E): every event is always written to the structured log
// sink, and best-effort persisted to audit_logs; a storage failure is
// caught and logged as a warning, never propagated to the caller.
package audit

import (
	"context"

	"github.com/relaygate/gateway/infrastructure/logging"
	"github.com/relaygate/gateway/infrastructure/security"
	"github.com/relaygate/gateway/internal/storage"
)

// Store is the subset of storage.Backend the audit logger needs.
type Store interface {
	LogAuditEvent(ctx context.Context, e *storage.AuditEvent) error
	GetAuditLogs(ctx context.Context, filter storage.AuditFilter) ([]*storage.AuditEvent, error)
}

// Logger fires audit events. All of its methods return immediately;
// the storage write happens on a bounded background goroutine pool.
type Logger struct {
	store  Store
	logger *logging.Logger
	events chan *storage.AuditEvent
}

// NewLogger starts a Logger backed by store, with queue workers
// draining into it. logger is the ambient structured sink every event
// is always written to, independent of store's availability.
func NewLogger(store Store, logger *logging.Logger) *Logger {
	l := &Logger{
		store:  store,
		logger: logger,
		events: make(chan *storage.AuditEvent, 1024),
	}
	go l.drain()
	return l
}

func (l *Logger) drain() {
	for event := range l.events {
		ctx := context.Background()
		if err := l.store.LogAuditEvent(ctx, event); err != nil && l.logger != nil {
			l.logger.WithError(err).WithFields(map[string]interface{}{
				"event_type": event.EventType,
				"user_id":    event.UserID,
			}).Warn("audit: failed to persist event")
		}
	}
}

// Log records event to the structured sink immediately and enqueues it
// for a best-effort, non-blocking storage write. A full queue drops the
// storage write (never blocks the caller) but the structured log line
// still lands.
func (l *Logger) Log(ctx context.Context, event *storage.AuditEvent) {
	if l.logger != nil {
		l.logger.LogAudit(ctx, string(event.EventType), event.Resource, event.ResourceID, "recorded")
	}
	select {
	case l.events <- event:
	default:
		if l.logger != nil {
			l.logger.WithFields(map[string]interface{}{"event_type": event.EventType}).Warn("audit: queue full, dropping persistence")
		}
	}
}

// Event constructs a storage.AuditEvent without firing it. Helper kept
// alongside the sugar methods below to avoid repeating struct literals
// at every call site. details is redacted through security.SanitizeMap
// before storage: audit events are retained far longer than request
// logs, so a stray token/password ending up in Details must never
// happen even if a caller passes raw request fields through.
func Event(eventType storage.AuditEventType, userID, resource, resourceID string, details map[string]interface{}) *storage.AuditEvent {
	return &storage.AuditEvent{
		EventType:  eventType,
		UserID:     userID,
		Resource:   resource,
		ResourceID: resourceID,
		Details:    security.SanitizeMap(details),
	}
}

func (l *Logger) AuthSuccess(ctx context.Context, userID string) {
	l.Log(ctx, Event(storage.EventAuthSuccess, userID, "", "", nil))
}

func (l *Logger) AuthFailure(ctx context.Context, username, reason string) {
	l.Log(ctx, Event(storage.EventAuthFailure, "", "user", username, map[string]interface{}{"reason": reason}))
}

func (l *Logger) PermissionDenied(ctx context.Context, userID, resource, resourceID string) {
	l.Log(ctx, Event(storage.EventPermissionDenied, userID, resource, resourceID, nil))
}

func (l *Logger) ResourceAccess(ctx context.Context, userID, resource, resourceID string) {
	l.Log(ctx, Event(storage.EventResourceAccess, userID, resource, resourceID, nil))
}

// GetLogs reads back audit history for the auth/audit/logs endpoint.
func (l *Logger) GetLogs(ctx context.Context, filter storage.AuditFilter) ([]*storage.AuditEvent, error) {
	return l.store.GetAuditLogs(ctx, filter)
}
