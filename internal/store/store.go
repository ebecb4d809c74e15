package store

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/persistence"
	apperrors "github.com/spec-kit/support-desk/pkg/util"
)

// document is the single durable record the store owns. Every mutating
// operation rewrites the whole document through the snapshot backend.
type document struct {
	Tickets     []domain.Ticket        `json:"tickets"`
	Transcripts []domain.Transcript    `json:"transcripts"`
	Logs        []domain.AuditLogEntry `json:"logs"`
	Settings    settings               `json:"settings"`
}

type settings struct {
	LastTicketID     int64 `json:"last_ticket_id"`
	LastTranscriptID int64 `json:"last_transcript_id"`
}

// MonthFilter restricts stats to tickets closed in one calendar month.
type MonthFilter struct {
	Month time.Month
	Year  int
}

// Store is the single source of truth for tickets, transcripts and the audit
// log. It assumes a single process; the mutex serializes writers so callers
// observe either a fully-applied mutation or none.
type Store struct {
	mu        sync.Mutex
	backend   persistence.SnapshotBackend
	logger    *zap.Logger
	data      document
	lastSaved []byte
}

// New loads the persisted document or initializes an empty one.
func New(ctx context.Context, backend persistence.SnapshotBackend, logger *zap.Logger) (*Store, error) {
	s := &Store{backend: backend, logger: logger}

	raw, err := backend.Load(ctx)
	switch {
	case err == persistence.ErrNoSnapshot:
		if err := s.persistLocked(ctx); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, apperrors.NewStorageError(err)
	default:
		if err := json.Unmarshal(raw, &s.data); err != nil {
			return nil, apperrors.NewStorageError(fmt.Errorf("decode snapshot: %w", err))
		}
		s.lastSaved = raw
	}
	return s, nil
}

// persistLocked rewrites the whole document. On failure the in-memory state
// is rolled back to the last persisted document so the mutation is not
// observable. Caller must hold s.mu.
func (s *Store) persistLocked(ctx context.Context) error {
	raw, err := json.Marshal(s.data)
	if err != nil {
		s.rollbackLocked()
		return apperrors.NewStorageError(err)
	}
	if err := s.backend.Save(ctx, raw); err != nil {
		s.rollbackLocked()
		return apperrors.NewStorageError(err)
	}
	s.lastSaved = raw
	return nil
}

func (s *Store) rollbackLocked() {
	if s.lastSaved == nil {
		s.data = document{}
		return
	}
	var restored document
	if err := json.Unmarshal(s.lastSaved, &restored); err != nil {
		s.logger.Error("snapshot rollback failed", zap.Error(err))
		return
	}
	s.data = restored
}

func (s *Store) findByVenueLocked(venueID string) *domain.Ticket {
	for i := range s.data.Tickets {
		if s.data.Tickets[i].VenueID == venueID {
			return &s.data.Tickets[i]
		}
	}
	return nil
}

func cloneTicket(t *domain.Ticket) *domain.Ticket {
	if t == nil {
		return nil
	}
	out := *t
	out.Messages = append([]domain.Message(nil), t.Messages...)
	if t.ClosedAt != nil {
		closedAt := *t.ClosedAt
		out.ClosedAt = &closedAt
	}
	if t.ClosedBy != nil {
		closedBy := *t.ClosedBy
		out.ClosedBy = &closedBy
	}
	return &out
}

// CreateTicket allocates the next ticket id and persists the new record.
// A venue carries at most one ticket ever; a second creation for the same
// venue is rejected.
func (s *Store) CreateTicket(ctx context.Context, userID, venueID, reason string) (*domain.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing := s.findByVenueLocked(venueID); existing != nil {
		return nil, apperrors.NewValidationError("venue already has a ticket",
			map[string]any{"venue_id": venueID})
	}

	s.data.Settings.LastTicketID++
	ticket := domain.Ticket{
		ID:        s.data.Settings.LastTicketID,
		VenueID:   venueID,
		UserID:    userID,
		Reason:    reason,
		Status:    domain.TicketStatusOpen,
		Messages:  []domain.Message{},
		CreatedAt: time.Now().UTC(),
	}
	s.data.Tickets = append(s.data.Tickets, ticket)

	if err := s.persistLocked(ctx); err != nil {
		return nil, err
	}
	return cloneTicket(&ticket), nil
}

// GetTicketByVenue returns the ticket bound to the venue, if any.
func (s *Store) GetTicketByVenue(venueID string) (*domain.Ticket, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ticket := s.findByVenueLocked(venueID)
	if ticket == nil {
		return nil, false
	}
	return cloneTicket(ticket), true
}

// GetTicketsForUser returns all tickets owned by the user, oldest first.
func (s *Store) GetTicketsForUser(userID string) []domain.Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []domain.Ticket
	for i := range s.data.Tickets {
		if s.data.Tickets[i].UserID == userID {
			result = append(result, *cloneTicket(&s.data.Tickets[i]))
		}
	}
	return result
}

// OpenTicketCountForUser counts the user's tickets still occupying a venue.
func (s *Store) OpenTicketCountForUser(userID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for i := range s.data.Tickets {
		if s.data.Tickets[i].UserID == userID && s.data.Tickets[i].Occupied() {
			count++
		}
	}
	return count
}

// MarkPendingSurvey moves an open ticket into the survey-pending state.
// Returns false when the venue has no ticket or the ticket is not open.
func (s *Store) MarkPendingSurvey(ctx context.Context, venueID string) (*domain.Ticket, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ticket := s.findByVenueLocked(venueID)
	if ticket == nil || ticket.Status != domain.TicketStatusOpen {
		return nil, false, nil
	}
	ticket.Status = domain.TicketStatusPendingSurvey
	if err := s.persistLocked(ctx); err != nil {
		return nil, false, err
	}
	return cloneTicket(ticket), true, nil
}

// CloseTicket marks the ticket closed with timestamp and closer identity.
// Already-closed tickets are returned unchanged so redelivered close events
// stay idempotent.
func (s *Store) CloseTicket(ctx context.Context, venueID, closedBy string) (*domain.Ticket, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ticket := s.findByVenueLocked(venueID)
	if ticket == nil {
		return nil, false, nil
	}
	if ticket.Status == domain.TicketStatusClosed {
		return cloneTicket(ticket), true, nil
	}
	now := time.Now().UTC()
	ticket.Status = domain.TicketStatusClosed
	ticket.ClosedAt = &now
	ticket.ClosedBy = &closedBy
	if err := s.persistLocked(ctx); err != nil {
		return nil, false, err
	}
	return cloneTicket(ticket), true, nil
}

// AppendMessage records an inbound message. Absent tickets and tickets no
// longer open are a silent no-op.
func (s *Store) AppendMessage(ctx context.Context, venueID string, msg domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ticket := s.findByVenueLocked(venueID)
	if ticket == nil || ticket.Status != domain.TicketStatusOpen {
		return nil
	}
	ticket.Messages = append(ticket.Messages, msg)
	return s.persistLocked(ctx)
}

// RecordSatisfaction persists the survey rating. The first recorded rating
// wins; redelivered selections observe the already-updated record.
func (s *Store) RecordSatisfaction(ctx context.Context, venueID string, rating domain.SatisfactionRating) (*domain.Ticket, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ticket := s.findByVenueLocked(venueID)
	if ticket == nil {
		return nil, false, nil
	}
	if ticket.Satisfaction != "" {
		return cloneTicket(ticket), true, nil
	}
	ticket.Satisfaction = rating
	if err := s.persistLocked(ctx); err != nil {
		return nil, false, err
	}
	return cloneTicket(ticket), true, nil
}

// CreateTranscript stores the rendered transcript for a ticket. A transcript
// is created exactly once per ticket; repeat calls return the existing one.
func (s *Store) CreateTranscript(ctx context.Context, ticketID int64, content, createdBy string) (*domain.Transcript, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.data.Transcripts {
		if s.data.Transcripts[i].TicketID == ticketID {
			existing := s.data.Transcripts[i]
			return &existing, nil
		}
	}

	s.data.Settings.LastTranscriptID++
	transcript := domain.Transcript{
		ID:        "TRANSCRIPT-" + strconv.FormatInt(s.data.Settings.LastTranscriptID, 10),
		TicketID:  ticketID,
		Content:   content,
		CreatedAt: time.Now().UTC(),
		CreatedBy: createdBy,
	}
	s.data.Transcripts = append(s.data.Transcripts, transcript)
	if err := s.persistLocked(ctx); err != nil {
		return nil, err
	}
	return &transcript, nil
}

// GetTranscript returns the transcript for a ticket, if any.
func (s *Store) GetTranscript(ticketID int64) (*domain.Transcript, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.data.Transcripts {
		if s.data.Transcripts[i].TicketID == ticketID {
			transcript := s.data.Transcripts[i]
			return &transcript, true
		}
	}
	return nil, false
}

// DeleteTranscript removes a transcript by its generated id. Administrative
// maintenance only; the lifecycle core never deletes records.
func (s *Store) DeleteTranscript(ctx context.Context, transcriptID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.data.Transcripts {
		if s.data.Transcripts[i].ID == transcriptID {
			s.data.Transcripts = append(s.data.Transcripts[:i], s.data.Transcripts[i+1:]...)
			if err := s.persistLocked(ctx); err != nil {
				return false, err
			}
			return true, nil
		}
	}
	return false, nil
}

// AppendAuditLog records a lifecycle action. Entries are append-only.
func (s *Store) AppendAuditLog(ctx context.Context, kind domain.AuditKind, actorID string, payload map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := domain.AuditLogEntry{
		ID:        uuid.NewString(),
		Kind:      kind,
		ActorID:   actorID,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}
	s.data.Logs = append(s.data.Logs, entry)
	return s.persistLocked(ctx)
}

// RecentAuditLogs returns the newest entries, up to limit.
func (s *Store) RecentAuditLogs(limit int) []domain.AuditLogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit <= 0 || limit > len(s.data.Logs) {
		limit = len(s.data.Logs)
	}
	out := make([]domain.AuditLogEntry, limit)
	copy(out, s.data.Logs[len(s.data.Logs)-limit:])
	return out
}

// AuditCount returns how many entries of the given kind reference the venue.
func (s *Store) AuditCount(kind domain.AuditKind, venueID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for i := range s.data.Logs {
		if s.data.Logs[i].Kind != kind {
			continue
		}
		if venueID == "" || s.data.Logs[i].Payload["venue_id"] == venueID {
			count++
		}
	}
	return count
}

// ListAllTickets returns every ticket for reporting.
func (s *Store) ListAllTickets() []domain.Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Ticket, 0, len(s.data.Tickets))
	for i := range s.data.Tickets {
		out = append(out, *cloneTicket(&s.data.Tickets[i]))
	}
	return out
}

// SatisfactionStats aggregates closed-with-rating tickets, optionally
// restricted to one calendar month of closure.
func (s *Store) SatisfactionStats(filter *MonthFilter) domain.SatisfactionStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	var stats domain.SatisfactionStats
	score := 0
	for i := range s.data.Tickets {
		t := &s.data.Tickets[i]
		if t.Status != domain.TicketStatusClosed || t.Satisfaction == "" {
			continue
		}
		if filter != nil {
			if t.ClosedAt == nil {
				continue
			}
			closed := t.ClosedAt.UTC()
			if closed.Month() != filter.Month || closed.Year() != filter.Year {
				continue
			}
		}
		stats.Total++
		score += t.Satisfaction.Score()
		switch t.Satisfaction {
		case domain.SatisfactionVerySatisfied:
			stats.VerySatisfied++
		case domain.SatisfactionSatisfied:
			stats.Satisfied++
		case domain.SatisfactionNeutral:
			stats.Neutral++
		case domain.SatisfactionDissatisfied:
			stats.Dissatisfied++
		case domain.SatisfactionVeryDissatisfied:
			stats.VeryDissatisfied++
		}
	}
	if stats.Total > 0 {
		stats.Average = math.Round(float64(score)/float64(stats.Total)*10) / 10
	}
	return stats
}

// MonthlyStats summarizes one calendar month: tickets created, closed, the
// average first-response time, and the month's satisfaction aggregate.
func (s *Store) MonthlyStats(month time.Month, year int) domain.MonthlyStats {
	s.mu.Lock()
	created := 0
	var closedTickets []domain.Ticket
	for i := range s.data.Tickets {
		t := &s.data.Tickets[i]
		createdAt := t.CreatedAt.UTC()
		if createdAt.Month() != month || createdAt.Year() != year {
			continue
		}
		created++
		if t.Status == domain.TicketStatusClosed {
			closedTickets = append(closedTickets, *cloneTicket(t))
		}
	}
	s.mu.Unlock()

	return domain.MonthlyStats{
		TotalCreated:               created,
		TotalClosed:                len(closedTickets),
		AverageResponseTimeMinutes: averageResponseMinutes(closedTickets),
		Satisfaction:               s.SatisfactionStats(&MonthFilter{Month: month, Year: year}),
	}
}

// averageResponseMinutes measures first staff reply minus first requester
// message, over tickets with at least two messages.
func averageResponseMinutes(tickets []domain.Ticket) int {
	var total time.Duration
	samples := 0
	for i := range tickets {
		t := &tickets[i]
		if len(t.Messages) < 2 {
			continue
		}
		var userAt, staffAt *time.Time
		for j := range t.Messages {
			msg := &t.Messages[j]
			if msg.AuthorID == t.UserID {
				if userAt == nil {
					userAt = &msg.Timestamp
				}
			} else if staffAt == nil {
				staffAt = &msg.Timestamp
			}
		}
		if userAt == nil || staffAt == nil {
			continue
		}
		delta := staffAt.Sub(*userAt)
		if delta <= 0 {
			continue
		}
		total += delta
		samples++
	}
	if samples == 0 {
		return 0
	}
	return int(math.Round(float64(total/time.Duration(samples)) / float64(time.Minute)))
}
