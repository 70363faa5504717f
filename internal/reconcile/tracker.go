package reconcile

import "context"

// TransactionType names a single field change in an edit.
type TransactionType string

const (
	// TxTitle sets the ticket title.
	TxTitle TransactionType = "title"
	// TxDescription replaces the ticket description.
	TxDescription TransactionType = "description"
	// TxAddGroups adds the ticket to the given group ids, keeping existing ones.
	TxAddGroups TransactionType = "groups.add"
)

// Transaction is one field change submitted in an edit.
type Transaction struct {
	Type  TransactionType
	Value any
}

// GroupPage is a single page of group search results. More reports that
// the tracker holds results beyond this page.
type GroupPage struct {
	Groups []Group
	More   bool
}

// TicketQuery searches open tickets by title. Title is matched full-text by
// the tracker, so results must be filtered by the caller.
type TicketQuery struct {
	Title    string
	GroupIDs []string
}

// TicketPage is a single page of ticket search results.
type TicketPage struct {
	Tickets []Ticket
	More    bool
}

// EditRequest creates a ticket when ObjectKey is empty and edits the
// ticket with that key otherwise.
type EditRequest struct {
	ObjectKey    string
	Transactions []Transaction
}

// EditResult is the tracker's acknowledgement of an edit. Object is nil when
// the tracker returned no object; Transactions echoes the applied
// transaction ids.
type EditResult struct {
	Object       *TicketRef
	Transactions []string
	// Raw is the undecoded response, kept for error reporting.
	Raw string
}

// Tracker is the remote issue tracker capability the engine depends on.
type Tracker interface {
	SearchGroups(ctx context.Context, name string) (*GroupPage, error)
	SearchTickets(ctx context.Context, q TicketQuery) (*TicketPage, error)
	EditTicket(ctx context.Context, req *EditRequest) (*EditResult, error)
}
