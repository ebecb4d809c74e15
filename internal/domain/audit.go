package domain

import "time"

// AuditKind captures what an audit log entry records.
type AuditKind string

const (
	AuditTicketCreated     AuditKind = "ticket_created"
	AuditTicketClosed      AuditKind = "ticket_closed"
	AuditTranscriptCreated AuditKind = "transcript_created"
)

// AuditLogEntry is an append-only record of a lifecycle action.
type AuditLogEntry struct {
	ID        string         `json:"id"`
	Kind      AuditKind      `json:"kind"`
	ActorID   string         `json:"actor_id"`
	Payload   map[string]any `json:"payload,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}
