package platform

import (
	"context"
	"errors"
	"sync"
	"time"
)

// The platform hands out one single-use response token per interaction
// event. Exactly one first action is allowed; follow-ups are unlimited but
// only valid after acknowledgment. The platform may race our own
// acknowledgment under retry, so these errors can also surface from the
// underlying responder.
var (
	ErrAlreadyAcknowledged = errors.New("interaction already acknowledged")
	ErrHandleExpired       = errors.New("interaction handle expired")
	ErrNotAcknowledged     = errors.New("interaction not yet acknowledged")
)

// AckState tracks the handle's lifecycle.
type AckState int

const (
	StateUnacknowledged AckState = iota
	StateAcknowledged
	StateExpired
)

// Reply is a user-visible response.
type Reply struct {
	Content string
	Private bool
}

// FormField describes one input of a secondary form.
type FormField struct {
	ID          string
	Label       string
	Placeholder string
	MinLength   int
	MaxLength   int
	Paragraph   bool
	Required    bool
}

// Form describes a secondary form shown as a first action.
type Form struct {
	ID     string
	Title  string
	Fields []FormField
}

// Responder is the raw platform response token.
type Responder interface {
	Respond(ctx context.Context, reply Reply) error
	Defer(ctx context.Context, private bool) error
	ShowForm(ctx context.Context, form Form) error
	Update(ctx context.Context, reply Reply) error
	FollowUp(ctx context.Context, reply Reply) error
	Edit(ctx context.Context, reply Reply) error
}

// Ack wraps a Responder with an explicit state machine so every action is
// validated against the current state before reaching the platform, instead
// of relying on catching platform errors after the fact.
type Ack struct {
	mu        sync.Mutex
	state     AckState
	expiresAt time.Time
	responder Responder
	now       func() time.Time
}

// NewAck builds a handle with the given validity window.
func NewAck(responder Responder, window time.Duration) *Ack {
	return NewAckAt(responder, window, time.Now)
}

// NewAckAt is NewAck with an injectable clock.
func NewAckAt(responder Responder, window time.Duration, now func() time.Time) *Ack {
	return &Ack{
		state:     StateUnacknowledged,
		expiresAt: now().Add(window),
		responder: responder,
		now:       now,
	}
}

// State reports the handle's current state.
func (a *Ack) State() AckState {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.refreshLocked()
	return a.state
}

func (a *Ack) refreshLocked() {
	if a.state == StateUnacknowledged && a.now().After(a.expiresAt) {
		a.state = StateExpired
	}
}

// firstAction validates and performs one of the mutually exclusive first
// actions.
func (a *Ack) firstAction(do func() error) error {
	a.mu.Lock()
	a.refreshLocked()
	switch a.state {
	case StateAcknowledged:
		a.mu.Unlock()
		return ErrAlreadyAcknowledged
	case StateExpired:
		a.mu.Unlock()
		return ErrHandleExpired
	}
	a.mu.Unlock()

	if err := do(); err != nil {
		// The platform may have acknowledged this token already (event
		// redelivery); record that so later follow-ups are still possible.
		if errors.Is(err, ErrAlreadyAcknowledged) {
			a.mu.Lock()
			a.state = StateAcknowledged
			a.mu.Unlock()
		}
		return err
	}

	a.mu.Lock()
	a.state = StateAcknowledged
	a.mu.Unlock()
	return nil
}

// followUpAction validates a best-effort send after acknowledgment.
func (a *Ack) followUpAction(do func() error) error {
	a.mu.Lock()
	a.refreshLocked()
	state := a.state
	a.mu.Unlock()
	switch state {
	case StateUnacknowledged:
		return ErrNotAcknowledged
	case StateExpired:
		return ErrHandleExpired
	}
	return do()
}

// Respond sends an immediate reply. First action.
func (a *Ack) Respond(ctx context.Context, reply Reply) error {
	return a.firstAction(func() error { return a.responder.Respond(ctx, reply) })
}

// Defer acknowledges without content; the reply is finalized later via Edit.
// First action.
func (a *Ack) Defer(ctx context.Context, private bool) error {
	return a.firstAction(func() error { return a.responder.Defer(ctx, private) })
}

// ShowForm presents a secondary form. First action; mutually exclusive with
// Defer, which is why creation guards run before any deferral.
func (a *Ack) ShowForm(ctx context.Context, form Form) error {
	return a.firstAction(func() error { return a.responder.ShowForm(ctx, form) })
}

// Update edits the originating message (e.g. stripping a used menu). First
// action.
func (a *Ack) Update(ctx context.Context, reply Reply) error {
	return a.firstAction(func() error { return a.responder.Update(ctx, reply) })
}

// FollowUp sends an additional message after acknowledgment. Best effort.
func (a *Ack) FollowUp(ctx context.Context, reply Reply) error {
	return a.followUpAction(func() error { return a.responder.FollowUp(ctx, reply) })
}

// Edit finalizes a deferred reply. Best effort.
func (a *Ack) Edit(ctx context.Context, reply Reply) error {
	return a.followUpAction(func() error { return a.responder.Edit(ctx, reply) })
}
