package transcript

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/support-desk/internal/domain"
)

func TestRender(t *testing.T) {
	createdAt := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	closedAt := createdAt.Add(2 * time.Hour)
	closedBy := "user-1"
	now := closedAt.Add(time.Minute)

	ticket := &domain.Ticket{
		ID:      42,
		VenueID: "venue-1",
		UserID:  "user-1",
		Reason:  "payment failed",
		Status:  domain.TicketStatusClosed,
		Messages: []domain.Message{
			{AuthorID: "user-1", Content: "my card was declined", Timestamp: createdAt.Add(time.Minute)},
			{AuthorID: "staff-1", Content: "looking into it", Timestamp: createdAt.Add(5 * time.Minute),
				Attachments: []string{"https://files.example/receipt.png"}},
		},
		CreatedAt: createdAt,
		ClosedAt:  &closedAt,
		ClosedBy:  &closedBy,
	}

	out := Render(ticket, now)

	assert.Contains(t, out, "TICKET TRANSCRIPT - 42")
	assert.Contains(t, out, "Ticket ID: 42")
	assert.Contains(t, out, "User ID: user-1")
	assert.Contains(t, out, "Created: 14/03/2026 09:30:00")
	assert.Contains(t, out, "Reason: payment failed")
	assert.Contains(t, out, "Closed: 14/03/2026 11:30:00")
	assert.Contains(t, out, "Closed by: user-1")
	assert.Contains(t, out, "[14/03/2026 09:31:00] user-1: my card was declined")
	assert.Contains(t, out, "[14/03/2026 09:35:00] staff-1: looking into it")
	assert.Contains(t, out, "[ATTACHMENT] https://files.example/receipt.png")
	assert.Contains(t, out, "Transcript created: 14/03/2026 11:31:00")

	// Messages appear in arrival order inside the MESSAGES section.
	section := out[strings.Index(out, "MESSAGES"):]
	assert.Less(t,
		strings.Index(section, "my card was declined"),
		strings.Index(section, "looking into it"))
}

func TestRenderOmitsOptionalMetadata(t *testing.T) {
	ticket := &domain.Ticket{
		ID:        7,
		VenueID:   "venue-7",
		UserID:    "user-7",
		Status:    domain.TicketStatusOpen,
		CreatedAt: time.Date(2026, 1, 2, 8, 0, 0, 0, time.UTC),
	}

	out := Render(ticket, time.Date(2026, 1, 2, 9, 0, 0, 0, time.UTC))

	require.NotContains(t, out, "Reason:")
	require.NotContains(t, out, "Closed:")
	require.NotContains(t, out, "Closed by:")
	assert.Contains(t, out, "Status: OPEN")
}
