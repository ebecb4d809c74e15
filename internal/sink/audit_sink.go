package sink

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/config"
	"github.com/spec-kit/support-desk/internal/events"
	"github.com/spec-kit/support-desk/internal/platform"
)

// AuditSink forwards lifecycle events to the configured log venue. Delivery
// is best effort; the ticket record is already durable by the time events
// reach the sink.
type AuditSink struct {
	dispatcher events.Dispatcher
	venues     platform.VenueClient
	logger     *zap.Logger
	cfg        config.DeskConfig
}

// NewAuditSink creates the sink.
func NewAuditSink(dispatcher events.Dispatcher, venues platform.VenueClient, logger *zap.Logger, cfg config.DeskConfig) *AuditSink {
	return &AuditSink{
		dispatcher: dispatcher,
		venues:     venues,
		logger:     logger,
		cfg:        cfg,
	}
}

// RegisterHandlers subscribes to events.
func (s *AuditSink) RegisterHandlers() {
	if s.dispatcher == nil {
		return
	}
	s.dispatcher.Subscribe(events.EventTicketCreated, s.handleTicketCreated)
	s.dispatcher.Subscribe(events.EventTicketClosed, s.handleTicketClosed)
	s.dispatcher.Subscribe(events.EventTranscriptCreated, s.handleTranscriptCreated)
}

func (s *AuditSink) handleTicketCreated(ctx context.Context, event events.Event) error {
	s.logger.Info("TicketCreated",
		zap.Int64("ticket_id", event.TicketID),
		zap.String("venue_id", event.VenueID),
		zap.String("actor_id", event.ActorID))
	s.forward(ctx, fmt.Sprintf("Ticket #%d opened by %s", event.TicketID, event.ActorID))
	return nil
}

func (s *AuditSink) handleTicketClosed(ctx context.Context, event events.Event) error {
	s.logger.Info("TicketClosed",
		zap.Int64("ticket_id", event.TicketID),
		zap.String("venue_id", event.VenueID),
		zap.Any("payload", event.Payload))
	payload, _ := event.Payload.(events.TicketClosedPayload)
	s.forward(ctx, fmt.Sprintf("Ticket #%d closed by %s (satisfaction: %s)",
		event.TicketID, payload.ClosedBy, payload.Satisfaction))
	return nil
}

func (s *AuditSink) handleTranscriptCreated(ctx context.Context, event events.Event) error {
	s.logger.Info("TranscriptCreated",
		zap.Int64("ticket_id", event.TicketID),
		zap.String("venue_id", event.VenueID))
	payload, ok := event.Payload.(events.TranscriptCreatedPayload)
	if !ok {
		return nil
	}
	s.forward(ctx, fmt.Sprintf("Transcript %s for ticket #%d:\n%s",
		payload.TranscriptID, event.TicketID, payload.Content))
	return nil
}

func (s *AuditSink) forward(ctx context.Context, text string) {
	if s.cfg.LogVenueID == "" {
		return
	}
	if _, err := s.venues.SendMessage(ctx, s.cfg.LogVenueID, platform.OutboundMessage{Text: text}); err != nil {
		s.logger.Warn("audit forward failed",
			zap.String("log_venue_id", s.cfg.LogVenueID), zap.Error(err))
	}
}
