package handlers

import (
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-desk/internal/api/dto"
	"github.com/spec-kit/support-desk/internal/store"
	"github.com/spec-kit/support-desk/pkg/util"
)

// TicketsHandler exposes read access to tickets, transcripts and audit logs.
type TicketsHandler struct {
	store *store.Store
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(s *store.Store) *TicketsHandler {
	return &TicketsHandler{store: s}
}

// List handles GET /tickets.
func (h *TicketsHandler) List(c *fiber.Ctx) error {
	tickets := h.store.ListAllTickets()
	out := make([]dto.TicketResponse, 0, len(tickets))
	for _, t := range tickets {
		out = append(out, dto.FromTicket(t))
	}
	return c.JSON(fiber.Map{"data": out, "total": len(out)})
}

// GetByVenue handles GET /tickets/venue/:venueID.
func (h *TicketsHandler) GetByVenue(c *fiber.Ctx) error {
	venueID := c.Params("venueID")
	ticket, ok := h.store.GetTicketByVenue(venueID)
	if !ok {
		return util.NewNotFound("ticket", map[string]any{"venue_id": venueID})
	}
	return c.JSON(fiber.Map{"data": dto.FromTicket(*ticket)})
}

// GetTranscript handles GET /tickets/:ticketID/transcript.
func (h *TicketsHandler) GetTranscript(c *fiber.Ctx) error {
	ticketID, err := strconv.ParseInt(c.Params("ticketID"), 10, 64)
	if err != nil {
		return util.NewValidationError("invalid ticket id", nil)
	}
	transcript, ok := h.store.GetTranscript(ticketID)
	if !ok {
		return util.NewNotFound("transcript", map[string]any{"ticket_id": ticketID})
	}
	return c.JSON(fiber.Map{"data": transcript})
}

// DeleteTranscript handles DELETE /transcripts/:transcriptID.
func (h *TicketsHandler) DeleteTranscript(c *fiber.Ctx) error {
	transcriptID := c.Params("transcriptID")
	removed, err := h.store.DeleteTranscript(c.UserContext(), transcriptID)
	if err != nil {
		return err
	}
	if !removed {
		return util.NewNotFound("transcript", map[string]any{"transcript_id": transcriptID})
	}
	return c.SendStatus(http.StatusNoContent)
}

// AuditLogs handles GET /audit-logs.
func (h *TicketsHandler) AuditLogs(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 50)
	if limit < 1 || limit > 500 {
		return util.NewValidationError("limit must be between 1 and 500", nil)
	}
	logs := h.store.RecentAuditLogs(limit)
	return c.JSON(fiber.Map{"data": logs, "total": len(logs)})
}
