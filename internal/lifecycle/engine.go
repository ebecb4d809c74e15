package lifecycle

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/config"
	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/events"
	"github.com/spec-kit/support-desk/internal/platform"
	"github.com/spec-kit/support-desk/internal/store"
	"github.com/spec-kit/support-desk/internal/transcript"
	apperrors "github.com/spec-kit/support-desk/pkg/util"
)

// Rejection reasons carried in validation error details so callers can tell
// the guards apart.
const (
	ReasonDuplicateOpen = "duplicate_open"
	ReasonTicketLimit   = "ticket_limit"
	ReasonInvalidRating = "invalid_rating"
	ReasonInvalidAction = "invalid_action"
	ReasonNotOpen       = "not_open"
	ReasonNoSurvey      = "no_survey_pending"
)

// MemberAction enumerates the allowed membership mutations.
const (
	MemberActionAdd    = "add"
	MemberActionRemove = "remove"
)

// Engine owns the ticket state machine:
// NoTicket -> Open -> PendingSurvey -> Closed -> venue deleted.
type Engine struct {
	store      *store.Store
	venues     platform.VenueClient
	roster     platform.RosterClient
	scheduler  *Scheduler
	dispatcher events.Dispatcher
	cfg        config.DeskConfig
	logger     *zap.Logger
}

// Dependencies bundles collaborators for the engine.
type Dependencies struct {
	Store      *store.Store
	Venues     platform.VenueClient
	Roster     platform.RosterClient
	Scheduler  *Scheduler
	Dispatcher events.Dispatcher
	Config     config.DeskConfig
	Logger     *zap.Logger
}

// NewEngine constructs the engine.
func NewEngine(deps Dependencies) *Engine {
	return &Engine{
		store:      deps.Store,
		venues:     deps.Venues,
		roster:     deps.Roster,
		scheduler:  deps.Scheduler,
		dispatcher: deps.Dispatcher,
		cfg:        deps.Config,
		logger:     deps.Logger,
	}
}

// CheckCreateGuards evaluates the creation guards without side effects. The
// dispatcher runs this before showing the reason form, because showing a
// form is mutually exclusive with having deferred the acknowledgment.
//
// The duplicate guard looks at OPEN tickets only; the count guard also
// charges tickets awaiting their survey, since those still hold a venue.
func (e *Engine) CheckCreateGuards(userID string) error {
	for _, t := range e.store.GetTicketsForUser(userID) {
		if t.Status == domain.TicketStatusOpen {
			return apperrors.NewValidationError("user already has an open ticket",
				map[string]any{"reason": ReasonDuplicateOpen, "venue_id": t.VenueID})
		}
	}
	if e.store.OpenTicketCountForUser(userID) >= e.cfg.MaxTicketsPerUser {
		return apperrors.NewValidationError("maximum open ticket count reached",
			map[string]any{"reason": ReasonTicketLimit, "limit": e.cfg.MaxTicketsPerUser})
	}
	return nil
}

// OpenTicket validates the creation guards, provisions a venue, writes the
// ticket, posts the welcome notice and records the audit entry.
func (e *Engine) OpenTicket(ctx context.Context, guildID, userID, username, reason string) (*domain.Ticket, error) {
	if err := e.CheckCreateGuards(userID); err != nil {
		return nil, err
	}

	rules := []platform.AccessRule{
		{RoleID: guildID, Allow: false},
		{MemberID: userID, Allow: true},
		{RoleID: e.cfg.StaffRoleID, Allow: true, AllowManage: true},
	}
	venueName := "ticket-" + strings.ToLower(username)
	venueID, err := e.venues.CreateVenue(ctx, venueName, e.cfg.CategoryID, rules)
	if err != nil {
		return nil, apperrors.NewCollaboratorError("venue creation", err)
	}

	ticket, err := e.store.CreateTicket(ctx, userID, venueID, reason)
	if err != nil {
		return nil, err
	}

	welcome := platform.OutboundMessage{
		Text:       e.welcomeText(ticket),
		MentionID:  userID,
		Components: []string{platform.ComponentCloseTicket, platform.ComponentManageMembers},
	}
	if _, err := e.venues.SendMessage(ctx, venueID, welcome); err != nil {
		e.logger.Warn("welcome notice failed",
			zap.String("venue_id", venueID), zap.Error(err))
	}

	if err := e.store.AppendAuditLog(ctx, domain.AuditTicketCreated, userID, map[string]any{
		"ticket_id": ticket.ID,
		"venue_id":  venueID,
		"reason":    reason,
	}); err != nil {
		e.logger.Warn("audit append failed", zap.Error(err))
	}
	e.publish(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		VenueID:  venueID,
		ActorID:  userID,
		Payload:  events.TicketCreatedPayload{UserID: userID, Reason: reason},
	})

	return ticket, nil
}

// AuthorizeClose re-validates at event time that the actor may close
// tickets: management capability or the configured staff role.
func (e *Engine) AuthorizeClose(ctx context.Context, guildID, actorID string) (bool, error) {
	manages, err := e.roster.HasManagementCapability(ctx, guildID, actorID)
	if err != nil {
		return false, apperrors.NewCollaboratorError("capability lookup", err)
	}
	if manages {
		return true, nil
	}
	if e.cfg.StaffRoleID == "" {
		return false, nil
	}
	hasRole, err := e.roster.MemberHasRole(ctx, guildID, actorID, e.cfg.StaffRoleID)
	if err != nil {
		return false, apperrors.NewCollaboratorError("role lookup", err)
	}
	return hasRole, nil
}

// RequestClose moves an open ticket into PENDING_SURVEY and posts the
// satisfaction prompt. A repeat close request while the survey is pending
// re-sends the prompt without another state change.
func (e *Engine) RequestClose(ctx context.Context, venueID, actorID string) error {
	ticket, ok := e.store.GetTicketByVenue(venueID)
	if !ok {
		return apperrors.NewNotFound("ticket", map[string]any{"venue_id": venueID})
	}
	if ticket.Status == domain.TicketStatusClosed {
		return apperrors.NewValidationError("ticket is not open",
			map[string]any{"reason": ReasonNotOpen})
	}

	if ticket.Status == domain.TicketStatusOpen {
		if _, ok, err := e.store.MarkPendingSurvey(ctx, venueID); err != nil {
			return err
		} else if !ok {
			return apperrors.NewValidationError("ticket is not open",
				map[string]any{"reason": ReasonNotOpen})
		}
	}

	prompt := platform.OutboundMessage{
		Text:       "Please rate our support before this ticket is closed.",
		Components: []string{platform.MenuSatisfaction},
	}
	if _, err := e.venues.SendMessage(ctx, venueID, prompt); err != nil {
		return apperrors.NewCollaboratorError("survey prompt", err)
	}
	return nil
}

// RecordSatisfaction finalizes the ticket. The rating is stored, the ticket
// closed, the transcript created, the thank-you notice sent and the venue
// deletion scheduled, strictly in that order. Redelivered selections for an
// already-closed ticket are a no-op; finalized reports whether this call
// performed the sequence.
func (e *Engine) RecordSatisfaction(ctx context.Context, venueID, actorID string, rating domain.SatisfactionRating) (finalized bool, err error) {
	if !rating.Valid() {
		return false, apperrors.NewValidationError("unknown satisfaction rating",
			map[string]any{"reason": ReasonInvalidRating, "rating": string(rating)})
	}

	ticket, ok := e.store.GetTicketByVenue(venueID)
	if !ok {
		return false, apperrors.NewNotFound("ticket", map[string]any{"venue_id": venueID})
	}
	if ticket.Status == domain.TicketStatusClosed {
		return false, nil
	}
	if ticket.Status != domain.TicketStatusPendingSurvey {
		return false, apperrors.NewValidationError("no survey is pending for this ticket",
			map[string]any{"reason": ReasonNoSurvey})
	}
	if ticket.UserID != actorID {
		return false, apperrors.NewForbidden("only the ticket owner can rate")
	}

	if _, ok, err := e.store.RecordSatisfaction(ctx, venueID, rating); err != nil {
		return false, err
	} else if !ok {
		return false, apperrors.NewNotFound("ticket", map[string]any{"venue_id": venueID})
	}

	closed, ok, err := e.store.CloseTicket(ctx, venueID, actorID)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, apperrors.NewNotFound("ticket", map[string]any{"venue_id": venueID})
	}

	// Downstream side effects are each best effort; a failure is logged and
	// the sequence continues.
	content := transcript.Render(closed, time.Now().UTC())
	createdBy := actorID
	if closed.ClosedBy != nil {
		createdBy = *closed.ClosedBy
	}
	record, err := e.store.CreateTranscript(ctx, closed.ID, content, createdBy)
	if err != nil {
		e.logger.Error("transcript persist failed",
			zap.Int64("ticket_id", closed.ID), zap.Error(err))
	} else {
		if err := e.store.AppendAuditLog(ctx, domain.AuditTranscriptCreated, createdBy, map[string]any{
			"transcript_id": record.ID,
			"ticket_id":     closed.ID,
			"venue_id":      venueID,
		}); err != nil {
			e.logger.Warn("audit append failed", zap.Error(err))
		}
		e.publish(ctx, events.Event{
			Type:     events.EventTranscriptCreated,
			TicketID: closed.ID,
			VenueID:  venueID,
			ActorID:  createdBy,
			Payload: events.TranscriptCreatedPayload{
				TranscriptID: record.ID,
				Content:      record.Content,
				CreatedBy:    createdBy,
			},
		})
	}

	thanks := platform.OutboundMessage{
		Text: "Thank you for your feedback. This channel will be deleted shortly.",
	}
	if _, err := e.venues.SendMessage(ctx, venueID, thanks); err != nil {
		e.logger.Warn("thank-you notice failed",
			zap.String("venue_id", venueID), zap.Error(err))
	}

	e.scheduler.Schedule(venueID, e.cfg.FinalizeDelay(), func() {
		deleteCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := e.venues.DeleteVenue(deleteCtx, venueID); err != nil {
			// Terminal for this attempt; the ticket stays closed regardless.
			e.logger.Error("venue deletion failed",
				zap.String("venue_id", venueID), zap.Error(err))
		}
	})

	if err := e.store.AppendAuditLog(ctx, domain.AuditTicketClosed, actorID, map[string]any{
		"ticket_id":    closed.ID,
		"venue_id":     venueID,
		"user_id":      closed.UserID,
		"satisfaction": string(rating),
	}); err != nil {
		e.logger.Warn("audit append failed", zap.Error(err))
	}
	e.publish(ctx, events.Event{
		Type:     events.EventTicketClosed,
		TicketID: closed.ID,
		VenueID:  venueID,
		ActorID:  actorID,
		Payload: events.TicketClosedPayload{
			UserID:       closed.UserID,
			ClosedBy:     actorID,
			Satisfaction: rating,
		},
	})

	return true, nil
}

// AppendMessage records an inbound venue message while the ticket is open.
func (e *Engine) AppendMessage(ctx context.Context, venueID string, msg domain.Message) error {
	return e.store.AppendMessage(ctx, venueID, msg)
}

// TicketInfo returns the ticket bound to a venue.
func (e *Engine) TicketInfo(venueID string) (*domain.Ticket, bool) {
	return e.store.GetTicketByVenue(venueID)
}

// OpenTicketCount reports how many venues the user currently occupies.
func (e *Engine) OpenTicketCount(userID string) int {
	return e.store.OpenTicketCountForUser(userID)
}

// ManageMember grants or revokes a member's access on a ticket venue. The
// action value is restricted to add/remove; anything else is rejected
// without touching state.
func (e *Engine) ManageMember(ctx context.Context, guildID, venueID, memberID, action string) (platform.Member, error) {
	action = strings.ToLower(strings.TrimSpace(action))
	if action != MemberActionAdd && action != MemberActionRemove {
		return platform.Member{}, apperrors.NewValidationError(`action must be "add" or "remove"`,
			map[string]any{"reason": ReasonInvalidAction, "action": action})
	}
	if _, ok := e.store.GetTicketByVenue(venueID); !ok {
		return platform.Member{}, apperrors.NewNotFound("ticket", map[string]any{"venue_id": venueID})
	}

	member, found, err := e.roster.FetchMember(ctx, guildID, memberID)
	if err != nil {
		return platform.Member{}, apperrors.NewCollaboratorError("member lookup", err)
	}
	if !found {
		return platform.Member{}, apperrors.NewNotFound("member", map[string]any{"member_id": memberID})
	}

	if err := e.venues.SetMemberAccess(ctx, venueID, memberID, action == MemberActionAdd); err != nil {
		return platform.Member{}, apperrors.NewCollaboratorError("member access update", err)
	}
	return member, nil
}

func (e *Engine) welcomeText(ticket *domain.Ticket) string {
	text := fmt.Sprintf("Welcome! Ticket #%d has been created. Please describe your issue; our staff will respond as soon as possible.", ticket.ID)
	if ticket.Reason != "" {
		text += "\nReason: " + ticket.Reason
	}
	return text
}

func (e *Engine) publish(ctx context.Context, event events.Event) {
	if e.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_ = e.dispatcher.Publish(ctx, event)
}
