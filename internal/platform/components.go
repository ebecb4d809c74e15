package platform

// Component identifiers shared between the messages the core posts and the
// interaction events it receives back. The dispatcher routes on these; the
// platform adapter renders them.
const (
	ComponentCreateTicket  = "create_ticket"
	ComponentCloseTicket   = "close_ticket"
	ComponentManageMembers = "manage_members"

	FormTicketReason  = "ticket_reason_modal"
	FormManageMembers = "manage_members_modal"

	MenuSatisfaction = "satisfaction_select"
)

// PaginationPrefix marks components owned by the reporting pagination
// collector. The dispatcher must not touch them: ownership of their
// short-lived response tokens is exclusive to the collector that created
// them.
const PaginationPrefix = "stats_"

// ReportingCommand is the parent command whose follow-up components are
// likewise excluded from dispatch.
const ReportingCommand = "stats"
