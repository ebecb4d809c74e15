package domain

import "time"

// Message captures one inbound venue message while a ticket is open.
// Messages are owned by their ticket and immutable once appended.
type Message struct {
	ID          string    `json:"id"`
	AuthorID    string    `json:"author_id"`
	Content     string    `json:"content"`
	Timestamp   time.Time `json:"timestamp"`
	Attachments []string  `json:"attachments,omitempty"`
}
