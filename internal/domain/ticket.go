package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen          TicketStatus = "OPEN"
	TicketStatusPendingSurvey TicketStatus = "PENDING_SURVEY"
	TicketStatusClosed        TicketStatus = "CLOSED"
)

// Ticket is the aggregate for one support request, bound 1:1 to a venue.
type Ticket struct {
	ID           int64              `json:"id"`
	VenueID      string             `json:"venue_id"`
	UserID       string             `json:"user_id"`
	Reason       string             `json:"reason,omitempty"`
	Status       TicketStatus       `json:"status"`
	Satisfaction SatisfactionRating `json:"satisfaction,omitempty"`
	Messages     []Message          `json:"messages"`
	CreatedAt    time.Time          `json:"created_at"`
	ClosedAt     *time.Time         `json:"closed_at,omitempty"`
	ClosedBy     *string            `json:"closed_by,omitempty"`
}

// Occupied reports whether the ticket still holds its venue. A ticket in
// PENDING_SURVEY has not been finalized, so its owner may not open another.
func (t *Ticket) Occupied() bool {
	return t.Status != TicketStatusClosed
}
