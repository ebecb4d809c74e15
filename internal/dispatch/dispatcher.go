package dispatch

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/lifecycle"
	"github.com/spec-kit/support-desk/internal/observability"
	"github.com/spec-kit/support-desk/internal/platform"
	apperrors "github.com/spec-kit/support-desk/pkg/util"
)

const dedupTTL = 15 * time.Minute

type handlerFunc func(ctx context.Context, ev *InteractionEvent) error

// Dispatcher routes interaction events to exactly one handler each, applying
// dedup, authorization and acknowledgment handling before the lifecycle
// engine is invoked. No error escapes a single event's processing.
type Dispatcher struct {
	engine  *lifecycle.Engine
	logger  *zap.Logger
	metrics *observability.Metrics
	dedup   Deduper
	locks   *venueLocks

	components map[string]handlerFunc
	forms      map[string]handlerFunc
	menus      map[string]handlerFunc
}

// Dependencies bundles collaborators for the dispatcher.
type Dependencies struct {
	Engine  *lifecycle.Engine
	Logger  *zap.Logger
	Metrics *observability.Metrics
	Dedup   Deduper
}

// New constructs the dispatcher with its typed routing tables.
func New(deps Dependencies) *Dispatcher {
	d := &Dispatcher{
		engine:  deps.Engine,
		logger:  deps.Logger,
		metrics: deps.Metrics,
		dedup:   deps.Dedup,
		locks:   newVenueLocks(),
	}
	if d.dedup == nil {
		d.dedup = newMemoryDeduper()
	}

	d.components = map[string]handlerFunc{
		platform.ComponentCreateTicket:  d.handleCreateTicket,
		platform.ComponentCloseTicket:   d.handleCloseTicket,
		platform.ComponentManageMembers: d.handleManageMembers,
	}
	d.forms = map[string]handlerFunc{
		platform.FormTicketReason:  d.handleTicketReasonForm,
		platform.FormManageMembers: d.handleManageMembersForm,
	}
	d.menus = map[string]handlerFunc{
		platform.MenuSatisfaction: d.handleSatisfactionSelect,
	}
	return d
}

// HandleEvent processes one interaction event. It never returns an error:
// all failures are contained, logged, and at most surfaced to the actor as a
// generic notice.
func (d *Dispatcher) HandleEvent(ctx context.Context, ev *InteractionEvent) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("handler panic",
				zap.String("kind", ev.Kind.String()),
				zap.String("component", ev.ComponentID),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()))
			d.metrics.RecordInteraction(ev.Kind.String(), "panic")
		}
	}()

	// Components owned by the reporting pagination collector are not ours
	// to acknowledge.
	if strings.HasPrefix(ev.ComponentID, platform.PaginationPrefix) ||
		ev.ParentCommand == platform.ReportingCommand {
		return
	}

	if ev.Kind != KindMessage && ev.ID != "" {
		first, err := d.dedup.MarkOnce(ctx, "interaction:"+ev.ID, dedupTTL)
		if err != nil {
			d.logger.Warn("dedup check failed", zap.String("event_id", ev.ID), zap.Error(err))
		} else if !first {
			d.logger.Debug("dropping redelivered event", zap.String("event_id", ev.ID))
			d.metrics.RecordInteraction(ev.Kind.String(), "redelivered")
			return
		}
	}

	handler, ok := d.route(ev)
	if !ok {
		d.metrics.RecordInteraction(ev.Kind.String(), "unknown")
		d.notify(ctx, ev, "Unknown interaction.")
		return
	}

	var release func()
	if ev.VenueID != "" {
		release = d.locks.acquire(ev.VenueID)
	}
	err := handler(ctx, ev)
	if release != nil {
		release()
	}

	if err != nil {
		d.containError(ctx, ev, err)
		d.metrics.RecordInteraction(ev.Kind.String(), "error")
		return
	}
	d.metrics.RecordInteraction(ev.Kind.String(), "ok")
}

func (d *Dispatcher) route(ev *InteractionEvent) (handlerFunc, bool) {
	switch ev.Kind {
	case KindComponent:
		h, ok := d.components[ev.ComponentID]
		return h, ok
	case KindFormSubmit:
		h, ok := d.forms[ev.ComponentID]
		return h, ok
	case KindMenuSelect:
		h, ok := d.menus[ev.ComponentID]
		return h, ok
	case KindMessage:
		return d.handleMessage, true
	default:
		return nil, false
	}
}

// containError converts a handler failure into at most a user-visible
// notice. Ack races and expired handles are swallowed after logging.
func (d *Dispatcher) containError(ctx context.Context, ev *InteractionEvent, err error) {
	if errors.Is(err, platform.ErrAlreadyAcknowledged) || errors.Is(err, platform.ErrHandleExpired) {
		d.logger.Debug("acknowledgment race",
			zap.String("component", ev.ComponentID), zap.Error(err))
		return
	}

	domainErr := apperrors.ToDomainError(err)
	switch domainErr.Code {
	case "VALIDATION_FAILED", "NOT_FOUND", "FORBIDDEN":
		// Guard rejections go to the actor verbatim; they are not faults.
		d.notify(ctx, ev, domainErr.Message)
	default:
		d.logger.Error("handler failed",
			zap.String("kind", ev.Kind.String()),
			zap.String("component", ev.ComponentID),
			zap.String("venue_id", ev.VenueID),
			zap.Error(err))
		d.notify(ctx, ev, "Something went wrong. Please try again.")
	}
}

// notify sends a short private notice through whichever ack path is still
// valid. Failures here are logged and dropped.
func (d *Dispatcher) notify(ctx context.Context, ev *InteractionEvent, text string) {
	if ev.Ack == nil {
		return
	}
	reply := platform.Reply{Content: text, Private: true}

	var err error
	switch ev.Ack.State() {
	case platform.StateUnacknowledged:
		err = ev.Ack.Respond(ctx, reply)
		if errors.Is(err, platform.ErrAlreadyAcknowledged) {
			err = ev.Ack.FollowUp(ctx, reply)
		}
	case platform.StateAcknowledged:
		err = ev.Ack.FollowUp(ctx, reply)
	default:
		return
	}
	if err != nil {
		d.logger.Debug("notice delivery failed",
			zap.String("component", ev.ComponentID), zap.Error(err))
	}
}

// handleCreateTicket runs the creation guards synchronously and then shows
// the reason form. The guards must run before any acknowledgment: showing a
// form is mutually exclusive with having deferred.
func (d *Dispatcher) handleCreateTicket(ctx context.Context, ev *InteractionEvent) error {
	if err := d.engine.CheckCreateGuards(ev.ActorID); err != nil {
		return err
	}

	form := platform.Form{
		ID:    platform.FormTicketReason,
		Title: "Create Ticket",
		Fields: []platform.FormField{{
			ID:          FieldReason,
			Label:       "Reason",
			Placeholder: "Describe why you are opening this ticket",
			MinLength:   10,
			MaxLength:   1000,
			Paragraph:   true,
			Required:    true,
		}},
	}
	return ev.Ack.ShowForm(ctx, form)
}

// handleCloseTicket re-validates authorization at event time and moves the
// ticket into the survey-pending state.
func (d *Dispatcher) handleCloseTicket(ctx context.Context, ev *InteractionEvent) error {
	if _, ok := d.engine.TicketInfo(ev.VenueID); !ok {
		return apperrors.NewNotFound("ticket", map[string]any{"venue_id": ev.VenueID})
	}

	allowed, err := d.engine.AuthorizeClose(ctx, ev.GuildID, ev.ActorID)
	if err != nil {
		return err
	}
	if !allowed {
		return apperrors.NewForbidden("only staff can close tickets")
	}

	if err := d.engine.RequestClose(ctx, ev.VenueID, ev.ActorID); err != nil {
		return err
	}
	// The survey prompt is already visible; acknowledge quietly.
	if err := ev.Ack.Defer(ctx, true); err != nil {
		d.logger.Debug("close acknowledge failed", zap.Error(err))
	}
	return nil
}

// handleManageMembers shows the membership form. The actual mutation happens
// only on the paired form submission.
func (d *Dispatcher) handleManageMembers(ctx context.Context, ev *InteractionEvent) error {
	if _, ok := d.engine.TicketInfo(ev.VenueID); !ok {
		return apperrors.NewNotFound("ticket", map[string]any{"venue_id": ev.VenueID})
	}

	form := platform.Form{
		ID:    platform.FormManageMembers,
		Title: "Add/Remove Member",
		Fields: []platform.FormField{
			{
				ID:          FieldUserID,
				Label:       "User ID",
				Placeholder: "ID of the member to add or remove",
				MinLength:   17,
				MaxLength:   20,
				Required:    true,
			},
			{
				ID:          FieldAction,
				Label:       "Action (add/remove)",
				Placeholder: `Type "add" or "remove"`,
				MinLength:   3,
				MaxLength:   6,
				Required:    true,
			},
		},
	}
	return ev.Ack.ShowForm(ctx, form)
}

// handleTicketReasonForm acknowledges first to keep the response window
// open, then creates the ticket; the result is delivered via the follow-up
// edit path.
func (d *Dispatcher) handleTicketReasonForm(ctx context.Context, ev *InteractionEvent) error {
	if err := ev.Ack.Defer(ctx, true); err != nil &&
		!errors.Is(err, platform.ErrAlreadyAcknowledged) {
		return err
	}

	ticket, err := d.engine.OpenTicket(ctx, ev.GuildID, ev.ActorID, ev.ActorName, ev.Values[FieldReason])
	if err != nil {
		if apperrors.ToDomainError(err).Code == "VALIDATION_FAILED" {
			d.edit(ctx, ev, apperrors.ToDomainError(err).Message)
			return nil
		}
		d.logger.Error("ticket creation failed", zap.String("actor_id", ev.ActorID), zap.Error(err))
		d.edit(ctx, ev, "Could not create your ticket.")
		return nil
	}

	d.edit(ctx, ev, fmt.Sprintf("Ticket #%d created: <#%s>", ticket.ID, ticket.VenueID))
	return nil
}

// handleManageMembersForm acknowledges first, then applies the membership
// change. The action value is validated before any state is touched.
func (d *Dispatcher) handleManageMembersForm(ctx context.Context, ev *InteractionEvent) error {
	if err := ev.Ack.Defer(ctx, true); err != nil &&
		!errors.Is(err, platform.ErrAlreadyAcknowledged) {
		return err
	}

	memberID := strings.TrimSpace(ev.Values[FieldUserID])
	action := ev.Values[FieldAction]
	member, err := d.engine.ManageMember(ctx, ev.GuildID, ev.VenueID, memberID, action)
	if err != nil {
		domainErr := apperrors.ToDomainError(err)
		switch domainErr.Code {
		case "VALIDATION_FAILED", "NOT_FOUND":
			d.edit(ctx, ev, domainErr.Message)
		default:
			d.logger.Error("member management failed",
				zap.String("venue_id", ev.VenueID), zap.Error(err))
			d.edit(ctx, ev, "Member update failed.")
		}
		return nil
	}

	if strings.EqualFold(strings.TrimSpace(action), lifecycle.MemberActionAdd) {
		d.edit(ctx, ev, fmt.Sprintf("%s added to the ticket.", member.DisplayName))
	} else {
		d.edit(ctx, ev, fmt.Sprintf("%s removed from the ticket.", member.DisplayName))
	}
	return nil
}

// handleSatisfactionSelect strips the menu from the originating message,
// finalizes the ticket, then thanks the actor via follow-up.
func (d *Dispatcher) handleSatisfactionSelect(ctx context.Context, ev *InteractionEvent) error {
	// Strip the menu so a second click cannot happen. The platform may have
	// acknowledged this token already under redelivery; that is fine.
	if err := ev.Ack.Update(ctx, platform.Reply{Content: "Closing ticket..."}); err != nil &&
		!errors.Is(err, platform.ErrAlreadyAcknowledged) {
		if errors.Is(err, platform.ErrHandleExpired) {
			d.logger.Debug("satisfaction ack expired", zap.String("venue_id", ev.VenueID))
		} else {
			return err
		}
	}

	rating := domain.SatisfactionRating(ev.Values[FieldSelection])
	finalized, err := d.engine.RecordSatisfaction(ctx, ev.VenueID, ev.ActorID, rating)
	if err != nil {
		return err
	}
	if !finalized {
		d.logger.Debug("ticket already finalized", zap.String("venue_id", ev.VenueID))
		return nil
	}

	if err := ev.Ack.FollowUp(ctx, platform.Reply{
		Content: "Thank you for your feedback! The ticket is closing.",
		Private: true,
	}); err != nil {
		// The handle may have expired by now; that is expected.
		d.logger.Debug("satisfaction follow-up failed", zap.Error(err))
	}
	return nil
}

// handleMessage appends plain venue messages to open tickets.
func (d *Dispatcher) handleMessage(ctx context.Context, ev *InteractionEvent) error {
	if ev.ActorIsBot || ev.Message == nil {
		return nil
	}
	return d.engine.AppendMessage(ctx, ev.VenueID, *ev.Message)
}

// edit finalizes a deferred reply, logging instead of propagating failures.
func (d *Dispatcher) edit(ctx context.Context, ev *InteractionEvent, text string) {
	if err := ev.Ack.Edit(ctx, platform.Reply{Content: text, Private: true}); err != nil {
		d.logger.Debug("reply edit failed",
			zap.String("component", ev.ComponentID), zap.Error(err))
	}
}
