package domain

import "time"

// Transcript is the immutable rendered record of one closed ticket.
type Transcript struct {
	ID        string    `json:"id"`
	TicketID  int64     `json:"ticket_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	CreatedBy string    `json:"created_by"`
}
