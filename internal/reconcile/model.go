package reconcile

// Outcome is the result of a single reconciliation.
type Outcome string

const (
	// OutcomeCreated means no matching open ticket existed and one was created
	OutcomeCreated Outcome = "created"

	// OutcomeUpdated means the matching ticket's description was replaced
	OutcomeUpdated Outcome = "updated"

	// OutcomeUnchanged means the matching ticket already had the desired description
	OutcomeUnchanged Outcome = "unchanged"
)

// Request is the desired state for one alert group.
type Request struct {
	Title       string
	Description string
	// GroupNames are resolved to ids and appended to GroupIDs.
	GroupNames []string
	GroupIDs   []string
}

// Result describes what Reconcile did.
type Result struct {
	ID       string     `json:"reconcile_id"`
	Outcome  Outcome    `json:"outcome"`
	Ticket   *TicketRef `json:"ticket,omitempty"`
	GroupIDs []string   `json:"group_ids,omitempty"`
}

// Group is a tracker-side tag (a Phabricator project). Never mutated here.
type Group struct {
	ID   string
	Name string
}

// Ticket is an open tracker ticket as returned by a search.
type Ticket struct {
	ID          string
	Key         string
	Title       string
	Description string
	Status      string
	GroupIDs    []string
	URL         string
}

// Ref returns a reference to the ticket.
func (t *Ticket) Ref() *TicketRef {
	return &TicketRef{ID: t.ID, Key: t.Key, URL: t.URL}
}

// TicketRef identifies a ticket without its content.
type TicketRef struct {
	ID  string `json:"id"`
	Key string `json:"key"`
	URL string `json:"url,omitempty"`
}
