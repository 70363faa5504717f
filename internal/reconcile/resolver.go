package reconcile

import (
	"context"
	"fmt"

	"github.com/linnemanlabs/go-core/log"
)

// Resolver maps group names to tracker ids. It assumes group names are
// unique and few enough to fit in one search page.
type Resolver struct {
	tracker Tracker
	logger  log.Logger
}

// NewResolver creates a Resolver backed by tracker.
func NewResolver(tracker Tracker, logger log.Logger) *Resolver {
	if logger == nil {
		logger = log.Nop()
	}
	return &Resolver{tracker: tracker, logger: logger}
}

// Resolve returns the id of the group whose name is exactly name.
func (r *Resolver) Resolve(ctx context.Context, name string) (string, error) {
	page, err := r.tracker.SearchGroups(ctx, name)
	if err != nil {
		return "", fmt.Errorf("search group %q: %w", name, err)
	}
	if page.More {
		return "", &ProtocolError{
			Op:     "search group " + name,
			Detail: "more than one page of results",
		}
	}

	// the search is fuzzy, only an exact name counts
	for _, g := range page.Groups {
		if g.Name == name {
			r.logger.Info(ctx, "resolved group", "group", name, "group_id", g.ID)
			return g.ID, nil
		}
	}
	return "", &NotFoundError{Kind: "group", Name: name}
}

// ResolveAll resolves names in order, returning ids in name order. The first
// failure stops the walk and fails the whole call.
func (r *Resolver) ResolveAll(ctx context.Context, names []string) ([]string, error) {
	if len(names) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(names))
	for _, name := range names {
		id, err := r.Resolve(ctx, name)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
