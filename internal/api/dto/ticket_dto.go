package dto

import (
	"time"

	"github.com/spec-kit/support-desk/internal/domain"
)

// LoginRequest payload.
type LoginRequest struct {
	Key string `json:"key"`
}

// AuthResponse payload.
type AuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// TicketResponse is the reporting view of a ticket.
type TicketResponse struct {
	ID           int64      `json:"id"`
	VenueID      string     `json:"venue_id"`
	UserID       string     `json:"user_id"`
	Reason       string     `json:"reason,omitempty"`
	Status       string     `json:"status"`
	Satisfaction string     `json:"satisfaction,omitempty"`
	MessageCount int        `json:"message_count"`
	CreatedAt    time.Time  `json:"created_at"`
	ClosedAt     *time.Time `json:"closed_at,omitempty"`
	ClosedBy     *string    `json:"closed_by,omitempty"`
}

// FromTicket maps a domain ticket into its reporting view.
func FromTicket(t domain.Ticket) TicketResponse {
	return TicketResponse{
		ID:           t.ID,
		VenueID:      t.VenueID,
		UserID:       t.UserID,
		Reason:       t.Reason,
		Status:       string(t.Status),
		Satisfaction: string(t.Satisfaction),
		MessageCount: len(t.Messages),
		CreatedAt:    t.CreatedAt,
		ClosedAt:     t.ClosedAt,
		ClosedBy:     t.ClosedBy,
	}
}
