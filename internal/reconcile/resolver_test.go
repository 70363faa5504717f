package reconcile

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/linnemanlabs/go-core/log"
)

func TestResolve_ExactMatch(t *testing.T) {
	t.Parallel()

	ft := newFakeTracker()
	r := NewResolver(ft, log.Nop())

	// "foobar-extra" comes first in the search results but is not an exact match
	id, err := r.Resolve(context.Background(), "foobar")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if id != "PHID-12" {
		t.Errorf("id = %q, want %q", id, "PHID-12")
	}
}

func TestResolve_NotFound(t *testing.T) {
	t.Parallel()

	ft := newFakeTracker()
	ft.groupPage = &GroupPage{}
	r := NewResolver(ft, nil)

	_, err := r.Resolve(context.Background(), "foobar")
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("err = %v, want *NotFoundError", err)
	}
	if nf.Name != "foobar" {
		t.Errorf("Name = %q, want %q", nf.Name, "foobar")
	}
	if !strings.Contains(err.Error(), `"foobar"`) {
		t.Errorf("error = %q, want it to name the group", err)
	}
}

func TestResolve_SubstringOnlyIsNotFound(t *testing.T) {
	t.Parallel()

	ft := newFakeTracker()
	ft.groupPage = &GroupPage{Groups: []Group{{ID: "PHID-11", Name: "foobar-extra"}}}
	r := NewResolver(ft, nil)

	_, err := r.Resolve(context.Background(), "foobar")
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("err = %v, want *NotFoundError", err)
	}
}

func TestResolve_MorePagesIsProtocolError(t *testing.T) {
	t.Parallel()

	ft := newFakeTracker()
	ft.groupPage.More = true
	r := NewResolver(ft, nil)

	_, err := r.Resolve(context.Background(), "foobar")
	var pe *ProtocolError
	if !errors.As(err, &pe) {
		t.Fatalf("err = %v, want *ProtocolError", err)
	}
}

func TestResolve_TrackerError(t *testing.T) {
	t.Parallel()

	boom := errors.New("connection refused")
	ft := newFakeTracker()
	ft.groupErr = boom
	r := NewResolver(ft, nil)

	_, err := r.Resolve(context.Background(), "foobar")
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped %v", err, boom)
	}
	if got := ErrorKind(err); got != KindTracker {
		t.Errorf("ErrorKind = %q, want %q", got, KindTracker)
	}
}

func TestResolveAll_PreservesOrder(t *testing.T) {
	t.Parallel()

	ft := newFakeTracker()
	r := NewResolver(ft, nil)

	ids, err := r.ResolveAll(context.Background(), []string{"foobar", "foobar-extra", "foobar"})
	if err != nil {
		t.Fatalf("ResolveAll: %v", err)
	}
	if diff := cmp.Diff([]string{"PHID-12", "PHID-11", "PHID-12"}, ids); diff != "" {
		t.Errorf("ids mismatch (-want +got):\n%s", diff)
	}
	if len(ft.groupSearches) != 3 {
		t.Errorf("group searches = %d, want 3", len(ft.groupSearches))
	}
}

func TestResolveAll_Empty(t *testing.T) {
	t.Parallel()

	ft := newFakeTracker()
	ids, err := NewResolver(ft, nil).ResolveAll(context.Background(), nil)
	if err != nil {
		t.Fatalf("ResolveAll: %v", err)
	}
	if ids != nil {
		t.Errorf("ids = %v, want nil", ids)
	}
	if len(ft.groupSearches) != 0 {
		t.Errorf("group searches = %d, want 0", len(ft.groupSearches))
	}
}

func TestResolveAll_OneMissingFailsAll(t *testing.T) {
	t.Parallel()

	ft := newFakeTracker()
	r := NewResolver(ft, nil)

	_, err := r.ResolveAll(context.Background(), []string{"foobar", "missing"})
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("err = %v, want *NotFoundError", err)
	}
	if nf.Name != "missing" {
		t.Errorf("Name = %q, want %q", nf.Name, "missing")
	}
}

func TestResolveAll_ReportsFirstFailureAndStops(t *testing.T) {
	t.Parallel()

	ft := newFakeTracker()
	ft.groupPage = &GroupPage{}
	r := NewResolver(ft, nil)

	_, err := r.ResolveAll(context.Background(), []string{"first-missing", "second-missing", "third-missing"})
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("err = %v, want *NotFoundError", err)
	}
	if nf.Name != "first-missing" {
		t.Errorf("Name = %q, want %q", nf.Name, "first-missing")
	}
	if diff := cmp.Diff([]string{"first-missing"}, ft.groupSearches); diff != "" {
		t.Errorf("group searches mismatch (-want +got):\n%s", diff)
	}
}

func TestResolveAll_SearchesInRequestOrder(t *testing.T) {
	t.Parallel()

	ft := newFakeTracker()
	r := NewResolver(ft, nil)

	if _, err := r.ResolveAll(context.Background(), []string{"foobar-extra", "foobar"}); err != nil {
		t.Fatalf("ResolveAll: %v", err)
	}
	if diff := cmp.Diff([]string{"foobar-extra", "foobar"}, ft.groupSearches); diff != "" {
		t.Errorf("group searches mismatch (-want +got):\n%s", diff)
	}
}
