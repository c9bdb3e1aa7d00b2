package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event types emitted by the ledger.
const (
	EventFileRegistered = "file_registered"
	EventFileVerified   = "file_verified"
	EventFileTampered   = "file_tampered"
	EventChainValidated = "chain_validated"
	EventChainInvalid   = "chain_invalid"
)

// AuditEvent represents a registration, verification or validation outcome.
type AuditEvent struct {
	ID        string            `json:"id"`
	Timestamp time.Time         `json:"timestamp"`
	EventType string            `json:"eventType"`
	EntityID  string            `json:"entityId"` // filename, or "chain"
	Result    string            `json:"result"`   // "success", "failure"
	Reason    string            `json:"reason,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// NewEvent stamps an event with a fresh ID and the current time.
func NewEvent(eventType, entityID, result string) AuditEvent {
	return AuditEvent{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		EntityID:  entityID,
		Result:    result,
		Metadata:  map[string]string{},
	}
}

// AuditLogger is the interface for logging audit events.
type AuditLogger interface {
	LogEvent(event AuditEvent)
}

// SlogAuditLogger writes events to a structured logger.
type SlogAuditLogger struct {
	log *slog.Logger
}

func NewSlogAuditLogger(log *slog.Logger) AuditLogger {
	return &SlogAuditLogger{log: log.With(slog.String("component", "audit"))}
}

func (l *SlogAuditLogger) LogEvent(event AuditEvent) {
	attrs := []slog.Attr{
		slog.String("id", event.ID),
		slog.String("event", event.EventType),
		slog.String("entity", event.EntityID),
		slog.String("result", event.Result),
	}
	if event.Reason != "" {
		attrs = append(attrs, slog.String("reason", event.Reason))
	}
	for k, v := range event.Metadata {
		attrs = append(attrs, slog.String(k, v))
	}
	level := slog.LevelInfo
	if event.Result != "success" {
		level = slog.LevelWarn
	}
	l.log.LogAttrs(context.Background(), level, "audit", attrs...)
}

// FileAuditLogger appends events as JSON lines to a file.
type FileAuditLogger struct {
	mu   sync.Mutex
	path string
	log  *slog.Logger
}

func NewFileAuditLogger(path string, log *slog.Logger) *FileAuditLogger {
	return &FileAuditLogger{path: path, log: log}
}

func (l *FileAuditLogger) LogEvent(event AuditEvent) {
	if err := l.Append(event); err != nil && l.log != nil {
		l.log.Error("audit write failed", slog.String("path", l.path), slog.String("error", err.Error()))
	}
}

// Append writes one event and reports write failures.
func (l *FileAuditLogger) Append(event AuditEvent) error {
	b, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o640)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.Write(append(b, '\n'))
	return err
}

// Multi fans an event out to several loggers. Nil entries are skipped.
type Multi []AuditLogger

func (m Multi) LogEvent(event AuditEvent) {
	for _, l := range m {
		if l != nil {
			l.LogEvent(event)
		}
	}
}

type nopLogger struct{}

func (nopLogger) LogEvent(AuditEvent) {}

// Nop discards every event.
func Nop() AuditLogger { return nopLogger{} }
