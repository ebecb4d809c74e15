package platform

import "context"

// Member is a resolved guild member.
type Member struct {
	ID          string
	DisplayName string
}

// RosterClient answers identity and capability questions about actors.
// Implemented by the surrounding platform adapter.
type RosterClient interface {
	// HasManagementCapability reports whether the actor holds the platform's
	// channel-management permission.
	HasManagementCapability(ctx context.Context, guildID, actorID string) (bool, error)
	// MemberHasRole reports whether the actor holds the given role.
	MemberHasRole(ctx context.Context, guildID, actorID, roleID string) (bool, error)
	// FetchMember resolves a member; ok is false when absent.
	FetchMember(ctx context.Context, guildID, userID string) (Member, bool, error)
}
