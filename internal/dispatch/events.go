package dispatch

import (
	"context"
	"sync"
	"time"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/platform"
)

// EventKind is the closed enumeration of interaction event kinds. Routing is
// keyed on it so unknown kinds fail at the dispatch table, not deep inside a
// handler.
type EventKind int

const (
	KindComponent EventKind = iota
	KindFormSubmit
	KindMenuSelect
	KindMessage
)

func (k EventKind) String() string {
	switch k {
	case KindComponent:
		return "component"
	case KindFormSubmit:
		return "form_submit"
	case KindMenuSelect:
		return "menu_select"
	case KindMessage:
		return "message"
	default:
		return "unknown"
	}
}

// Well-known form field and menu value keys.
const (
	FieldReason    = "reason"
	FieldUserID    = "user_id"
	FieldAction    = "action"
	FieldSelection = "selection"
)

// InteractionEvent is one inbound external event. The platform may redeliver
// events; ID is the dedup key.
type InteractionEvent struct {
	ID            string
	Kind          EventKind
	ComponentID   string
	ParentCommand string
	GuildID       string
	VenueID       string
	ActorID       string
	ActorName     string
	ActorIsBot    bool
	Values        map[string]string
	Message       *domain.Message
	Ack           *platform.Ack
}

// Deduper drops redelivered events. Satisfied by persistence.Redis.
type Deduper interface {
	MarkOnce(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// memoryDeduper is the fallback when no redis is configured.
type memoryDeduper struct {
	mu   sync.Mutex
	seen map[string]time.Time
}

func newMemoryDeduper() *memoryDeduper {
	return &memoryDeduper{seen: make(map[string]time.Time)}
}

func (d *memoryDeduper) MarkOnce(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	now := time.Now()
	d.mu.Lock()
	defer d.mu.Unlock()
	for k, expiry := range d.seen {
		if now.After(expiry) {
			delete(d.seen, k)
		}
	}
	if _, exists := d.seen[key]; exists {
		return false, nil
	}
	d.seen[key] = now.Add(ttl)
	return true, nil
}

// venueLocks hands out one mutex per venue so two handlers touching the same
// venue cannot interleave their store-mutating sequences, while handlers on
// different venues stay concurrent. Entries are reference counted and evicted
// once the last holder releases, so deleted venues leave nothing behind.
type venueLocks struct {
	mu    sync.Mutex
	locks map[string]*venueLock
}

type venueLock struct {
	sync.Mutex
	refs int
}

func newVenueLocks() *venueLocks {
	return &venueLocks{locks: make(map[string]*venueLock)}
}

func (l *venueLocks) acquire(venueID string) func() {
	l.mu.Lock()
	lock, exists := l.locks[venueID]
	if !exists {
		lock = &venueLock{}
		l.locks[venueID] = lock
	}
	lock.refs++
	l.mu.Unlock()

	lock.Lock()
	return func() {
		lock.Unlock()
		l.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(l.locks, venueID)
		}
		l.mu.Unlock()
	}
}
