package transcript

import (
	"fmt"
	"strings"
	"time"

	"github.com/spec-kit/support-desk/internal/domain"
)

const (
	timeLayout = "02/01/2006 15:04:05"
	rule       = "=================================================="
)

// Render produces the immutable plain-text record of a ticket: header,
// open/close metadata, then every message in arrival order.
func Render(ticket *domain.Ticket, now time.Time) string {
	var b strings.Builder

	b.WriteString(rule + "\n")
	fmt.Fprintf(&b, "TICKET TRANSCRIPT - %d\n", ticket.ID)
	b.WriteString(rule + "\n\n")

	fmt.Fprintf(&b, "Ticket ID: %d\n", ticket.ID)
	fmt.Fprintf(&b, "User ID: %s\n", ticket.UserID)
	fmt.Fprintf(&b, "Created: %s\n", ticket.CreatedAt.Format(timeLayout))
	fmt.Fprintf(&b, "Status: %s\n", ticket.Status)
	if ticket.Reason != "" {
		fmt.Fprintf(&b, "Reason: %s\n", ticket.Reason)
	}
	if ticket.ClosedAt != nil {
		fmt.Fprintf(&b, "Closed: %s\n", ticket.ClosedAt.Format(timeLayout))
		if ticket.ClosedBy != nil {
			fmt.Fprintf(&b, "Closed by: %s\n", *ticket.ClosedBy)
		}
	}

	b.WriteString("\n" + rule + "\n")
	b.WriteString("MESSAGES\n")
	b.WriteString(rule + "\n\n")

	for _, msg := range ticket.Messages {
		fmt.Fprintf(&b, "[%s] %s: %s\n", msg.Timestamp.Format(timeLayout), msg.AuthorID, msg.Content)
		for _, attachment := range msg.Attachments {
			fmt.Fprintf(&b, "[ATTACHMENT] %s\n", attachment)
		}
		b.WriteString("\n")
	}

	b.WriteString(rule + "\n")
	fmt.Fprintf(&b, "Transcript created: %s\n", now.Format(timeLayout))
	b.WriteString(rule + "\n")

	return b.String()
}
