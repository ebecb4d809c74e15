package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/persistence"
	apperrors "github.com/spec-kit/support-desk/pkg/util"
)

// flakyBackend persists in memory and starts failing saves on demand.
type flakyBackend struct {
	data []byte
	fail bool
}

func (b *flakyBackend) Load(ctx context.Context) ([]byte, error) {
	if b.data == nil {
		return nil, persistence.ErrNoSnapshot
	}
	return b.data, nil
}

func (b *flakyBackend) Save(ctx context.Context, data []byte) error {
	if b.fail {
		return errors.New("disk full")
	}
	b.data = append([]byte(nil), data...)
	return nil
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(context.Background(), &flakyBackend{}, zap.NewNop())
	require.NoError(t, err)
	return s
}

func TestCreateTicket(t *testing.T) {
	ctx := context.Background()

	t.Run("assigns sequential ids", func(t *testing.T) {
		s := newTestStore(t)

		first, err := s.CreateTicket(ctx, "user-1", "venue-1", "billing")
		require.NoError(t, err)
		second, err := s.CreateTicket(ctx, "user-2", "venue-2", "")
		require.NoError(t, err)

		assert.Equal(t, int64(1), first.ID)
		assert.Equal(t, int64(2), second.ID)
		assert.Equal(t, domain.TicketStatusOpen, first.Status)
		assert.Equal(t, "billing", first.Reason)
	})

	t.Run("rejects a second ticket on the same venue", func(t *testing.T) {
		s := newTestStore(t)

		_, err := s.CreateTicket(ctx, "user-1", "venue-1", "")
		require.NoError(t, err)

		_, err = s.CreateTicket(ctx, "user-2", "venue-1", "")
		require.Error(t, err)
		assert.True(t, apperrors.IsValidation(err))
	})
}

func TestFileBackendRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "desk.json")
	backend := persistence.NewFileBackend(path)

	s, err := New(ctx, backend, zap.NewNop())
	require.NoError(t, err)

	ticket, err := s.CreateTicket(ctx, "user-1", "venue-1", "login issue")
	require.NoError(t, err)
	require.NoError(t, s.AppendMessage(ctx, "venue-1", domain.Message{
		ID: "m1", AuthorID: "user-1", Content: "hello", Timestamp: time.Now().UTC(),
	}))

	reopened, err := New(ctx, backend, zap.NewNop())
	require.NoError(t, err)

	got, ok := reopened.GetTicketByVenue("venue-1")
	require.True(t, ok)
	assert.Equal(t, ticket.ID, got.ID)
	assert.Equal(t, "login issue", got.Reason)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "hello", got.Messages[0].Content)
}

func TestSaveFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	backend := &flakyBackend{}
	s, err := New(ctx, backend, zap.NewNop())
	require.NoError(t, err)

	_, err = s.CreateTicket(ctx, "user-1", "venue-1", "")
	require.NoError(t, err)

	backend.fail = true
	_, err = s.CreateTicket(ctx, "user-2", "venue-2", "")
	require.Error(t, err)
	assert.True(t, apperrors.IsStorage(err))

	// The failed mutation must not be observable.
	_, ok := s.GetTicketByVenue("venue-2")
	assert.False(t, ok)

	backend.fail = false
	third, err := s.CreateTicket(ctx, "user-3", "venue-3", "")
	require.NoError(t, err)
	assert.Equal(t, int64(2), third.ID)
}

func TestStatusTransitions(t *testing.T) {
	ctx := context.Background()

	t.Run("pending survey requires open", func(t *testing.T) {
		s := newTestStore(t)
		_, err := s.CreateTicket(ctx, "user-1", "venue-1", "")
		require.NoError(t, err)

		ticket, ok, err := s.MarkPendingSurvey(ctx, "venue-1")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, domain.TicketStatusPendingSurvey, ticket.Status)

		// Not open anymore; a second transition is refused.
		_, ok, err = s.MarkPendingSurvey(ctx, "venue-1")
		require.NoError(t, err)
		assert.False(t, ok)

		_, ok, err = s.MarkPendingSurvey(ctx, "venue-missing")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("close is idempotent", func(t *testing.T) {
		s := newTestStore(t)
		_, err := s.CreateTicket(ctx, "user-1", "venue-1", "")
		require.NoError(t, err)

		closed, ok, err := s.CloseTicket(ctx, "venue-1", "staff-1")
		require.NoError(t, err)
		require.True(t, ok)
		require.NotNil(t, closed.ClosedAt)
		require.NotNil(t, closed.ClosedBy)
		assert.Equal(t, "staff-1", *closed.ClosedBy)
		firstClosedAt := *closed.ClosedAt

		again, ok, err := s.CloseTicket(ctx, "venue-1", "staff-2")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, firstClosedAt, *again.ClosedAt)
		assert.Equal(t, "staff-1", *again.ClosedBy)
	})

	t.Run("messages only append while open", func(t *testing.T) {
		s := newTestStore(t)
		_, err := s.CreateTicket(ctx, "user-1", "venue-1", "")
		require.NoError(t, err)

		msg := domain.Message{ID: "m1", AuthorID: "user-1", Content: "hi", Timestamp: time.Now()}
		require.NoError(t, s.AppendMessage(ctx, "venue-1", msg))

		_, _, err = s.MarkPendingSurvey(ctx, "venue-1")
		require.NoError(t, err)
		require.NoError(t, s.AppendMessage(ctx, "venue-1", domain.Message{ID: "m2"}))
		require.NoError(t, s.AppendMessage(ctx, "venue-none", domain.Message{ID: "m3"}))

		ticket, ok := s.GetTicketByVenue("venue-1")
		require.True(t, ok)
		require.Len(t, ticket.Messages, 1)
		assert.Equal(t, "m1", ticket.Messages[0].ID)
	})
}

func TestRecordSatisfactionFirstRatingWins(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	_, err := s.CreateTicket(ctx, "user-1", "venue-1", "")
	require.NoError(t, err)

	ticket, ok, err := s.RecordSatisfaction(ctx, "venue-1", domain.SatisfactionSatisfied)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, domain.SatisfactionSatisfied, ticket.Satisfaction)

	ticket, ok, err = s.RecordSatisfaction(ctx, "venue-1", domain.SatisfactionVeryDissatisfied)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, domain.SatisfactionSatisfied, ticket.Satisfaction)

	_, ok, err = s.RecordSatisfaction(ctx, "venue-none", domain.SatisfactionNeutral)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCreateTranscriptExactlyOnce(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	ticket, err := s.CreateTicket(ctx, "user-1", "venue-1", "")
	require.NoError(t, err)

	first, err := s.CreateTranscript(ctx, ticket.ID, "content one", "staff-1")
	require.NoError(t, err)
	assert.Equal(t, "TRANSCRIPT-1", first.ID)

	second, err := s.CreateTranscript(ctx, ticket.ID, "content two", "staff-2")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "content one", second.Content)

	got, ok := s.GetTranscript(ticket.ID)
	require.True(t, ok)
	assert.Equal(t, first.ID, got.ID)
}

func TestDeleteTranscript(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	ticket, err := s.CreateTicket(ctx, "user-1", "venue-1", "")
	require.NoError(t, err)
	record, err := s.CreateTranscript(ctx, ticket.ID, "content", "staff-1")
	require.NoError(t, err)

	removed, err := s.DeleteTranscript(ctx, record.ID)
	require.NoError(t, err)
	assert.True(t, removed)

	_, ok := s.GetTranscript(ticket.ID)
	assert.False(t, ok)

	removed, err = s.DeleteTranscript(ctx, record.ID)
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestAuditLogs(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	for i := 0; i < 5; i++ {
		require.NoError(t, s.AppendAuditLog(ctx, domain.AuditTicketCreated, "user-1",
			map[string]any{"venue_id": "venue-1", "seq": i}))
	}
	require.NoError(t, s.AppendAuditLog(ctx, domain.AuditTicketClosed, "staff-1",
		map[string]any{"venue_id": "venue-1"}))

	recent := s.RecentAuditLogs(2)
	require.Len(t, recent, 2)
	assert.Equal(t, domain.AuditTicketClosed, recent[1].Kind)

	all := s.RecentAuditLogs(0)
	assert.Len(t, all, 6)

	assert.Equal(t, 5, s.AuditCount(domain.AuditTicketCreated, "venue-1"))
	assert.Equal(t, 1, s.AuditCount(domain.AuditTicketClosed, ""))
	assert.Equal(t, 0, s.AuditCount(domain.AuditTicketClosed, "venue-other"))
}

func TestSatisfactionStats(t *testing.T) {
	ctx := context.Background()

	t.Run("empty store yields zero average", func(t *testing.T) {
		s := newTestStore(t)
		stats := s.SatisfactionStats(nil)
		assert.Equal(t, 0, stats.Total)
		assert.Equal(t, 0.0, stats.Average)
	})

	t.Run("average rounds to one decimal", func(t *testing.T) {
		s := newTestStore(t)
		rate := func(venue string, rating domain.SatisfactionRating) {
			_, err := s.CreateTicket(ctx, "user-"+venue, venue, "")
			require.NoError(t, err)
			_, _, err = s.RecordSatisfaction(ctx, venue, rating)
			require.NoError(t, err)
			_, _, err = s.CloseTicket(ctx, venue, "staff-1")
			require.NoError(t, err)
		}
		rate("venue-1", domain.SatisfactionVerySatisfied)
		rate("venue-2", domain.SatisfactionSatisfied)

		stats := s.SatisfactionStats(nil)
		assert.Equal(t, 2, stats.Total)
		assert.Equal(t, 1, stats.VerySatisfied)
		assert.Equal(t, 1, stats.Satisfied)
		assert.Equal(t, 4.5, stats.Average)
	})

	t.Run("open and unrated tickets are excluded", func(t *testing.T) {
		s := newTestStore(t)
		_, err := s.CreateTicket(ctx, "user-1", "venue-1", "")
		require.NoError(t, err)
		_, err = s.CreateTicket(ctx, "user-2", "venue-2", "")
		require.NoError(t, err)
		_, _, err = s.CloseTicket(ctx, "venue-2", "staff-1")
		require.NoError(t, err)

		stats := s.SatisfactionStats(nil)
		assert.Equal(t, 0, stats.Total)
	})
}

func TestMonthlyStats(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	now := time.Now().UTC()
	base := time.Date(now.Year(), now.Month(), 10, 9, 0, 0, 0, time.UTC)

	_, err := s.CreateTicket(ctx, "user-1", "venue-1", "")
	require.NoError(t, err)
	require.NoError(t, s.AppendMessage(ctx, "venue-1", domain.Message{
		ID: "m1", AuthorID: "user-1", Content: "help", Timestamp: base,
	}))
	require.NoError(t, s.AppendMessage(ctx, "venue-1", domain.Message{
		ID: "m2", AuthorID: "staff-1", Content: "on it", Timestamp: base.Add(10 * time.Minute),
	}))
	_, _, err = s.RecordSatisfaction(ctx, "venue-1", domain.SatisfactionVerySatisfied)
	require.NoError(t, err)
	_, _, err = s.CloseTicket(ctx, "venue-1", "staff-1")
	require.NoError(t, err)

	// Still open this month; counted as created only.
	_, err = s.CreateTicket(ctx, "user-2", "venue-2", "")
	require.NoError(t, err)

	stats := s.MonthlyStats(now.Month(), now.Year())
	assert.Equal(t, 2, stats.TotalCreated)
	assert.Equal(t, 1, stats.TotalClosed)
	assert.Equal(t, 10, stats.AverageResponseTimeMinutes)
	assert.Equal(t, 1, stats.Satisfaction.Total)
	assert.Equal(t, 5.0, stats.Satisfaction.Average)

	previous := s.MonthlyStats(now.AddDate(0, -2, 0).Month(), now.AddDate(0, -2, 0).Year())
	assert.Equal(t, 0, previous.TotalCreated)
}
