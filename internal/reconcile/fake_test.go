package reconcile

import (
	"context"
	"sync"
)

// fakeTracker returns canned pages and records every call.
type fakeTracker struct {
	mu sync.Mutex

	groupPage  *GroupPage
	ticketPage *TicketPage
	editResult *EditResult

	groupErr  error
	ticketErr error
	editErr   error

	groupSearches  []string
	ticketSearches []TicketQuery
	edits          []*EditRequest
}

// newFakeTracker is seeded with two projects ("foobar-extra" and "foobar")
// and two open tasks, one whose title only contains the other's.
func newFakeTracker() *fakeTracker {
	return &fakeTracker{
		groupPage: &GroupPage{Groups: []Group{
			{ID: "PHID-11", Name: "foobar-extra"},
			{ID: "PHID-12", Name: "foobar"},
		}},
		ticketPage: &TicketPage{Tickets: []Ticket{
			{
				ID:          "21",
				Key:         "PHID-21",
				Title:       "title SomethingIsBroken some other text",
				Description: "task description is here",
				Status:      "open",
				GroupIDs:    []string{"PHID-11", "PHID-12"},
			},
			{
				ID:          "22",
				Key:         "PHID-22",
				Title:       "title SomethingIsBroken",
				Description: "desc SomethingIsBroken",
				Status:      "open",
				GroupIDs:    []string{"PHID-12"},
			},
		}},
		editResult: &EditResult{
			Object:       &TicketRef{ID: "1234", Key: "PHID-TASK-xxx"},
			Transactions: []string{"PHID-XACT-1", "PHID-XACT-2", "PHID-XACT-3", "PHID-XACT-4"},
		},
	}
}

func (f *fakeTracker) SearchGroups(_ context.Context, name string) (*GroupPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.groupSearches = append(f.groupSearches, name)
	if f.groupErr != nil {
		return nil, f.groupErr
	}
	return f.groupPage, nil
}

func (f *fakeTracker) SearchTickets(_ context.Context, q TicketQuery) (*TicketPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ticketSearches = append(f.ticketSearches, q)
	if f.ticketErr != nil {
		return nil, f.ticketErr
	}
	return f.ticketPage, nil
}

func (f *fakeTracker) EditTicket(_ context.Context, req *EditRequest) (*EditResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits = append(f.edits, req)
	if f.editErr != nil {
		return nil, f.editErr
	}
	return f.editResult, nil
}
