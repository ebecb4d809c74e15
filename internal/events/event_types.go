package events

import (
	"time"

	"github.com/spec-kit/support-desk/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated     EventType = "ticket_created"
	EventTicketClosed      EventType = "ticket_closed"
	EventTranscriptCreated EventType = "transcript_created"
)

// Event represents a domain event emitted by the lifecycle engine.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  int64       `json:"ticket_id"`
	VenueID   string      `json:"venue_id"`
	ActorID   string      `json:"actor_id"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	UserID string `json:"user_id"`
	Reason string `json:"reason,omitempty"`
}

// TicketClosedPayload payload.
type TicketClosedPayload struct {
	UserID       string                    `json:"user_id"`
	ClosedBy     string                    `json:"closed_by"`
	Satisfaction domain.SatisfactionRating `json:"satisfaction"`
}

// TranscriptCreatedPayload payload.
type TranscriptCreatedPayload struct {
	TranscriptID string `json:"transcript_id"`
	Content      string `json:"content"`
	CreatedBy    string `json:"created_by"`
}
