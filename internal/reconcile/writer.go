package reconcile

import (
	"context"
	"fmt"
)

// Writer creates tickets and replaces their descriptions. Each call is a
// single edit round trip with no retry.
type Writer struct {
	tracker Tracker
}

// NewWriter creates a Writer backed by tracker.
func NewWriter(tracker Tracker) *Writer {
	return &Writer{tracker: tracker}
}

// Create opens a new ticket. Groups are only assigned when groupIDs is
// non-empty.
func (w *Writer) Create(ctx context.Context, title, description string, groupIDs []string) (*TicketRef, error) {
	txns := []Transaction{
		{Type: TxTitle, Value: title},
		{Type: TxDescription, Value: description},
	}
	if len(groupIDs) > 0 {
		txns = append(txns, Transaction{Type: TxAddGroups, Value: groupIDs})
	}

	res, err := w.tracker.EditTicket(ctx, &EditRequest{Transactions: txns})
	if err != nil {
		return nil, fmt.Errorf("create ticket %q: %w", title, err)
	}
	if res.Object == nil || res.Object.Key == "" {
		return nil, &WriteError{
			Op:       "create ticket " + title,
			Detail:   "tracker accepted the request but produced no object",
			Response: res.Raw,
		}
	}
	return res.Object, nil
}

// Update replaces the description of the ticket identified by key.
func (w *Writer) Update(ctx context.Context, key, description string) error {
	txns := []Transaction{{Type: TxDescription, Value: description}}

	res, err := w.tracker.EditTicket(ctx, &EditRequest{ObjectKey: key, Transactions: txns})
	if err != nil {
		return fmt.Errorf("update ticket %s: %w", key, err)
	}
	if len(res.Transactions) < len(txns) {
		return &WriteError{
			Op:       "update ticket " + key,
			Detail:   fmt.Sprintf("partial transaction application: %d of %d applied", len(res.Transactions), len(txns)),
			Response: res.Raw,
		}
	}
	return nil
}
