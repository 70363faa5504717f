// Package memtracker provides an in-memory implementation of
// reconcile.Tracker with the same search behavior as the remote tracker:
// substring matching, open tickets only, newest first, one page.
package memtracker

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/linnemanlabs/phalerts/internal/reconcile"
)

// DefaultPageSize matches the tracker's default search limit.
const DefaultPageSize = 100

// Tracker holds groups and tickets in memory. Suitable for dev/testing.
type Tracker struct {
	mu       sync.RWMutex
	groups   []reconcile.Group
	tickets  map[string]*reconcile.Ticket // key -> ticket
	nextID   int
	pageSize int
	edits    []reconcile.EditRequest

	// failEdits makes EditTicket answer without applying anything.
	failEdits bool
}

// New initializes an empty Tracker.
func New() *Tracker {
	return &Tracker{
		tickets:  make(map[string]*reconcile.Ticket),
		nextID:   1,
		pageSize: DefaultPageSize,
	}
}

// SetPageSize changes how many results fit in one search page.
func (t *Tracker) SetPageSize(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pageSize = n
}

// SetFailEdits makes subsequent edits produce no object and no applied
// transactions.
func (t *Tracker) SetFailEdits(fail bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failEdits = fail
}

// AddGroup registers a group and returns its id.
func (t *Tracker) AddGroup(name string) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	id := fmt.Sprintf("PHID-PROJ-%d", len(t.groups)+1)
	t.groups = append(t.groups, reconcile.Group{ID: id, Name: name})
	return id
}

// AddTicket stores a copy of tk, assigning an id and key when missing,
// and returns the stored ticket's key.
func (t *Tracker) AddTicket(tk reconcile.Ticket) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.insert(tk)
}

func (t *Tracker) insert(tk reconcile.Ticket) string {
	id := t.nextID
	t.nextID++
	if tk.ID == "" {
		tk.ID = strconv.Itoa(id)
	}
	if tk.Key == "" {
		tk.Key = "PHID-TASK-" + tk.ID
	}
	if tk.Status == "" {
		tk.Status = "open"
	}
	tk.GroupIDs = slices.Clone(tk.GroupIDs)
	t.tickets[tk.Key] = &tk
	return tk.Key
}

// Get returns a copy of the ticket with the given key.
func (t *Tracker) Get(key string) (reconcile.Ticket, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	tk, ok := t.tickets[key]
	if !ok {
		return reconcile.Ticket{}, false
	}
	cp := *tk
	cp.GroupIDs = slices.Clone(tk.GroupIDs)
	return cp, true
}

// Len returns the number of stored tickets.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.tickets)
}

// Edits returns every edit request received so far.
func (t *Tracker) Edits() []reconcile.EditRequest {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return slices.Clone(t.edits)
}

// SearchGroups returns groups whose name contains name.
func (t *Tracker) SearchGroups(_ context.Context, name string) (*reconcile.GroupPage, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var out []reconcile.Group
	for _, g := range t.groups {
		if strings.Contains(g.Name, name) {
			out = append(out, g)
		}
	}
	more := len(out) > t.pageSize
	if more {
		out = out[:t.pageSize]
	}
	return &reconcile.GroupPage{Groups: out, More: more}, nil
}

// SearchTickets returns open tickets whose title contains q.Title and that
// belong to every group in q.GroupIDs, newest first.
func (t *Tracker) SearchTickets(_ context.Context, q reconcile.TicketQuery) (*reconcile.TicketPage, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var out []reconcile.Ticket
	for _, tk := range t.tickets {
		if tk.Status != "open" || !strings.Contains(tk.Title, q.Title) {
			continue
		}
		if !hasAll(tk.GroupIDs, q.GroupIDs) {
			continue
		}
		cp := *tk
		cp.GroupIDs = slices.Clone(tk.GroupIDs)
		out = append(out, cp)
	}
	slices.SortFunc(out, func(a, b reconcile.Ticket) int {
		ai, _ := strconv.Atoi(a.ID)
		bi, _ := strconv.Atoi(b.ID)
		return bi - ai
	})

	more := len(out) > t.pageSize
	if more {
		out = out[:t.pageSize]
	}
	return &reconcile.TicketPage{Tickets: out, More: more}, nil
}

// EditTicket creates a ticket when req.ObjectKey is empty and updates it
// otherwise.
func (t *Tracker) EditTicket(_ context.Context, req *reconcile.EditRequest) (*reconcile.EditResult, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.edits = append(t.edits, *req)
	if t.failEdits {
		return &reconcile.EditResult{Raw: "[]"}, nil
	}

	var tk reconcile.Ticket
	if req.ObjectKey != "" {
		existing, ok := t.tickets[req.ObjectKey]
		if !ok {
			return nil, fmt.Errorf("memtracker: no ticket %q", req.ObjectKey)
		}
		tk = *existing
	}

	applied := make([]string, 0, len(req.Transactions))
	for i, tx := range req.Transactions {
		switch tx.Type {
		case reconcile.TxTitle:
			tk.Title, _ = tx.Value.(string)
		case reconcile.TxDescription:
			tk.Description, _ = tx.Value.(string)
		case reconcile.TxAddGroups:
			ids, _ := tx.Value.([]string)
			for _, id := range ids {
				if !slices.Contains(tk.GroupIDs, id) {
					tk.GroupIDs = append(tk.GroupIDs, id)
				}
			}
		default:
			return nil, fmt.Errorf("memtracker: unknown transaction type %q", tx.Type)
		}
		applied = append(applied, fmt.Sprintf("PHID-XACT-%d", i))
	}

	var key string
	if req.ObjectKey == "" {
		key = t.insert(tk)
	} else {
		key = req.ObjectKey
		t.tickets[key] = &tk
	}
	stored := t.tickets[key]
	return &reconcile.EditResult{
		Object:       stored.Ref(),
		Transactions: applied,
	}, nil
}

func hasAll(have, want []string) bool {
	for _, id := range want {
		if !slices.Contains(have, id) {
			return false
		}
	}
	return true
}
