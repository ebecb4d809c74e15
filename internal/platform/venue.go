package platform

import (
	"context"
	"time"
)

// AccessRule grants or denies a member or role visibility on a venue.
type AccessRule struct {
	MemberID    string
	RoleID      string
	Allow       bool
	AllowManage bool
}

// OutboundMessage is the content the core asks the platform to post.
// Presentation (embeds, styling) is the adapter's concern; the core only
// names which interactive components the message should carry.
type OutboundMessage struct {
	Text       string
	MentionID  string
	Components []string
}

// VenueMessage is a message fetched back from a venue.
type VenueMessage struct {
	ID        string
	AuthorID  string
	Text      string
	Timestamp time.Time
	FromSelf  bool
}

// VenueClient provisions and manipulates the chat venues backing tickets.
// Implemented by the surrounding platform adapter.
type VenueClient interface {
	CreateVenue(ctx context.Context, name, parentGroup string, rules []AccessRule) (string, error)
	DeleteVenue(ctx context.Context, venueID string) error
	SendMessage(ctx context.Context, venueID string, msg OutboundMessage) (string, error)
	FetchRecentMessages(ctx context.Context, venueID string, limit int) ([]VenueMessage, error)
	EditMessage(ctx context.Context, venueID, messageID string, msg OutboundMessage) error
	SetMemberAccess(ctx context.Context, venueID, memberID string, allow bool) error
}
