package reconcile_test

import (
	"context"
	"errors"
	"testing"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/phalerts/internal/reconcile"
	"github.com/linnemanlabs/phalerts/internal/reconcile/memtracker"
)

func reconcileOK(t *testing.T, e *reconcile.Engine, req *reconcile.Request) *reconcile.Result {
	t.Helper()
	res, err := e.Reconcile(context.Background(), req)
	if err != nil {
		t.Fatalf("Reconcile(%q): %v", req.Title, err)
	}
	return res
}

func TestReconcile_Idempotent(t *testing.T) {
	t.Parallel()

	tr := memtracker.New()
	tr.AddGroup("ops")
	e := reconcile.NewEngine(tr, log.Nop(), reconcile.EngineHooks{}, nil)

	req := &reconcile.Request{Title: "DiskFull", Description: "d", GroupNames: []string{"ops"}}

	if got := reconcileOK(t, e, req).Outcome; got != reconcile.OutcomeCreated {
		t.Errorf("first outcome = %q, want %q", got, reconcile.OutcomeCreated)
	}
	if got := reconcileOK(t, e, req).Outcome; got != reconcile.OutcomeUnchanged {
		t.Errorf("second outcome = %q, want %q", got, reconcile.OutcomeUnchanged)
	}
	if tr.Len() != 1 {
		t.Errorf("tickets = %d, want 1", tr.Len())
	}
	if n := len(tr.Edits()); n != 1 {
		t.Errorf("edits = %d, want 1", n)
	}
}

func TestReconcile_ChangedDescriptionUpdates(t *testing.T) {
	t.Parallel()

	for _, title := range []string{"X", "X extra text", "", "title with \"quotes\""} {
		t.Run(title, func(t *testing.T) {
			t.Parallel()

			tr := memtracker.New()
			e := reconcile.NewEngine(tr, log.Nop(), reconcile.EngineHooks{}, nil)

			first := reconcileOK(t, e, &reconcile.Request{Title: title, Description: "D1"})
			if first.Outcome != reconcile.OutcomeCreated {
				t.Errorf("first outcome = %q, want %q", first.Outcome, reconcile.OutcomeCreated)
			}
			second := reconcileOK(t, e, &reconcile.Request{Title: title, Description: "D2"})
			if second.Outcome != reconcile.OutcomeUpdated {
				t.Errorf("second outcome = %q, want %q", second.Outcome, reconcile.OutcomeUpdated)
			}

			found, err := reconcile.NewLocator(tr, nil).Find(context.Background(), title, nil)
			if err != nil {
				t.Fatalf("Find: %v", err)
			}
			if found == nil || found.Description != "D2" {
				t.Fatalf("Find = %+v, want description D2", found)
			}
			if found.Key != first.Ticket.Key {
				t.Errorf("updated key = %q, want created key %q", found.Key, first.Ticket.Key)
			}
		})
	}
}

func TestReconcile_GroupResolutionAllOrNothing(t *testing.T) {
	t.Parallel()

	tr := memtracker.New()
	tr.AddGroup("ops")
	tr.AddGroup("db")
	e := reconcile.NewEngine(tr, log.Nop(), reconcile.EngineHooks{}, nil)

	_, err := e.Reconcile(context.Background(), &reconcile.Request{
		Title:       "DiskFull",
		Description: "d",
		GroupNames:  []string{"ops", "missing-team", "db"},
	})
	var nf *reconcile.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("err = %v, want *NotFoundError", err)
	}
	if nf.Name != "missing-team" {
		t.Errorf("failing group = %q, want %q", nf.Name, "missing-team")
	}
	if tr.Len() != 0 {
		t.Errorf("tickets = %d, want 0", tr.Len())
	}
	if n := len(tr.Edits()); n != 0 {
		t.Errorf("edits = %d, want 0", n)
	}
}

func TestReconcile_ExactTitleNotSubstring(t *testing.T) {
	t.Parallel()

	tr := memtracker.New()
	tr.AddTicket(reconcile.Ticket{Title: "X extra text", Description: "d"})
	e := reconcile.NewEngine(tr, log.Nop(), reconcile.EngineHooks{}, nil)

	res := reconcileOK(t, e, &reconcile.Request{Title: "X", Description: "d"})
	if res.Outcome != reconcile.OutcomeCreated {
		t.Errorf("outcome = %q, want %q", res.Outcome, reconcile.OutcomeCreated)
	}
	if tr.Len() != 2 {
		t.Errorf("tickets = %d, want 2", tr.Len())
	}
}

func TestReconcile_GroupScopedTickets(t *testing.T) {
	t.Parallel()

	tr := memtracker.New()
	a := tr.AddGroup("team-a")
	b := tr.AddGroup("team-b")
	tr.AddGroup("team-c")
	tr.AddTicket(reconcile.Ticket{Title: "X", Description: "d", GroupIDs: []string{a, b}})
	e := reconcile.NewEngine(tr, log.Nop(), reconcile.EngineHooks{}, nil)

	tests := []struct {
		groups []string
		want   reconcile.Outcome
	}{
		{nil, reconcile.OutcomeUnchanged},
		{[]string{"team-a"}, reconcile.OutcomeUnchanged},
		{[]string{"team-a", "team-b"}, reconcile.OutcomeUnchanged},
	}
	for _, tt := range tests {
		if got := reconcileOK(t, e, &reconcile.Request{Title: "X", Description: "d", GroupNames: tt.groups}).Outcome; got != tt.want {
			t.Errorf("groups %v: outcome = %q, want %q", tt.groups, got, tt.want)
		}
	}

	// {team-a, team-c} is not covered by the existing ticket
	res := reconcileOK(t, e, &reconcile.Request{Title: "X", Description: "d", GroupNames: []string{"team-a", "team-c"}})
	if res.Outcome != reconcile.OutcomeCreated {
		t.Errorf("outcome = %q, want %q", res.Outcome, reconcile.OutcomeCreated)
	}
}

func TestReconcile_WriteFailureSurfaces(t *testing.T) {
	t.Parallel()

	tr := memtracker.New()
	tr.SetFailEdits(true)
	e := reconcile.NewEngine(tr, log.Nop(), reconcile.EngineHooks{}, nil)

	_, err := e.Reconcile(context.Background(), &reconcile.Request{Title: "X", Description: "d"})
	if got := reconcile.ErrorKind(err); got != reconcile.KindWrite {
		t.Errorf("ErrorKind = %q, want %q (err %v)", got, reconcile.KindWrite, err)
	}
}
