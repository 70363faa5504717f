package reconcile

import (
	"context"
	"fmt"

	"github.com/linnemanlabs/go-core/log"
)

// Locator finds the canonical open ticket for a title and group set.
type Locator struct {
	tracker Tracker
	logger  log.Logger
}

// NewLocator creates a Locator backed by tracker.
func NewLocator(tracker Tracker, logger log.Logger) *Locator {
	if logger == nil {
		logger = log.Nop()
	}
	return &Locator{tracker: tracker, logger: logger}
}

// Find returns the first open ticket titled exactly title whose groups
// include every id in required, or nil if there is none. An empty required
// set matches any group assignment.
func (l *Locator) Find(ctx context.Context, title string, required []string) (*Ticket, error) {
	page, err := l.tracker.SearchTickets(ctx, TicketQuery{Title: title, GroupIDs: required})
	if err != nil {
		return nil, fmt.Errorf("search tickets %q: %w", title, err)
	}
	if page.More {
		return nil, &ProtocolError{
			Op:     "search tickets " + title,
			Detail: "more than one page of results",
		}
	}

	for i := range page.Tickets {
		t := &page.Tickets[i]
		// title search is full-text, so near misses come back too
		if t.Title != title {
			continue
		}
		if !containsAll(t.GroupIDs, required) {
			l.logger.Info(ctx, "skipping ticket missing required groups",
				"ticket_id", t.ID,
				"ticket_groups", t.GroupIDs,
				"required_groups", required,
			)
			continue
		}
		return t, nil
	}
	return nil, nil
}

func containsAll(have, want []string) bool {
	set := make(map[string]struct{}, len(have))
	for _, id := range have {
		set[id] = struct{}{}
	}
	for _, id := range want {
		if _, ok := set[id]; !ok {
			return false
		}
	}
	return true
}
