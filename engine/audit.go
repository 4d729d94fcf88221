package engine

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"
)

// AuditLogger records one entry per tool execution, so every web_search
// call the weekly pipeline makes is accounted for, not just the job-level
// summary counters.
type AuditLogger interface {
	// Log records an audit entry for a tool execution.
	Log(ctx context.Context, entry *AuditEntry) error
}

// AuditEntry is a single tool-execution record.
type AuditEntry struct {
	// ID is the unique identifier for this audit entry.
	ID string `json:"id"`

	// UserID is the user the run was on behalf of.
	UserID string `json:"user_id"`

	// SessionID identifies the engine run.
	SessionID string `json:"session_id"`

	// AgentName identifies which agent executed the tool.
	AgentName string `json:"agent_name"`

	// ToolName is the name of the tool that was executed.
	ToolName string `json:"tool_name"`

	// ToolInput contains the tool parameters as JSON.
	ToolInput json.RawMessage `json:"tool_input"`

	// ToolOutput contains the tool result as JSON.
	ToolOutput json.RawMessage `json:"tool_output,omitempty"`

	// Error contains any error message if the tool failed.
	Error *string `json:"error,omitempty"`

	// DurationMs is the execution time in milliseconds.
	DurationMs int64 `json:"duration_ms"`

	// Timestamp is when the tool execution started (Unix timestamp).
	Timestamp int64 `json:"timestamp"`
}

// NoOpAuditLogger discards all entries.
type NoOpAuditLogger struct{}

// Log discards the audit entry.
func (n *NoOpAuditLogger) Log(ctx context.Context, entry *AuditEntry) error {
	return nil
}

// MemoryAuditLogger stores audit entries in memory, for tests.
type MemoryAuditLogger struct {
	entries []*AuditEntry
}

// NewMemoryAuditLogger creates a new in-memory audit logger.
func NewMemoryAuditLogger() *MemoryAuditLogger {
	return &MemoryAuditLogger{
		entries: make([]*AuditEntry, 0),
	}
}

// Log stores the audit entry in memory.
func (m *MemoryAuditLogger) Log(ctx context.Context, entry *AuditEntry) error {
	m.entries = append(m.entries, entry)
	return nil
}

// Entries returns all stored audit entries.
func (m *MemoryAuditLogger) Entries() []*AuditEntry {
	return m.entries
}

// ZapAuditLogger writes audit entries as structured zap log lines, one per
// tool execution — the production collaborator a deployment wires in place
// of MemoryAuditLogger, same interface, durable sink.
type ZapAuditLogger struct {
	log *zap.Logger
}

// NewZapAuditLogger builds a ZapAuditLogger writing through log.
func NewZapAuditLogger(log *zap.Logger) *ZapAuditLogger {
	return &ZapAuditLogger{log: log}
}

func (z *ZapAuditLogger) Log(ctx context.Context, entry *AuditEntry) error {
	fields := []zap.Field{
		zap.String("audit_id", entry.ID),
		zap.String("user_id", entry.UserID),
		zap.String("agent_name", entry.AgentName),
		zap.String("tool_name", entry.ToolName),
		zap.Int64("duration_ms", entry.DurationMs),
	}
	if entry.Error != nil {
		fields = append(fields, zap.String("error", *entry.Error))
		z.log.Warn("tool execution audit", fields...)
		return nil
	}
	z.log.Info("tool execution audit", fields...)
	return nil
}
