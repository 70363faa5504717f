package phab

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/linnemanlabs/phalerts/internal/reconcile"
)

var _ reconcile.Tracker = (*Client)(nil)

// phpObject decodes a JSON object, accepting the [] PHP emits for an empty
// associative array. Set is false for null, [] and {}.
type phpObject[T any] struct {
	V   T
	Set bool
}

func (o *phpObject[T]) UnmarshalJSON(b []byte) error {
	switch strings.TrimSpace(string(b)) {
	case "null", "[]", "{}":
		return nil
	}
	o.Set = true
	return json.Unmarshal(b, &o.V)
}

type cursor struct {
	After json.RawMessage `json:"after"`
}

func (c cursor) more() bool {
	s := strings.TrimSpace(string(c.After))
	return s != "" && s != "null"
}

type projectSearchResult struct {
	Data []struct {
		ID     int    `json:"id"`
		PHID   string `json:"phid"`
		Fields struct {
			Name string `json:"name"`
		} `json:"fields"`
	} `json:"data"`
	Cursor cursor `json:"cursor"`
}

type taskAttachments struct {
	Projects phpObject[struct {
		ProjectPHIDs []string `json:"projectPHIDs"`
	}] `json:"projects"`
}

type taskSearchResult struct {
	Data []struct {
		ID     int    `json:"id"`
		PHID   string `json:"phid"`
		Fields struct {
			Name        string `json:"name"`
			Description struct {
				Raw string `json:"raw"`
			} `json:"description"`
			Status struct {
				Value string `json:"value"`
			} `json:"status"`
		} `json:"fields"`
		Attachments phpObject[taskAttachments] `json:"attachments"`
	} `json:"data"`
	Cursor cursor `json:"cursor"`
}

type editObject struct {
	ID   int    `json:"id"`
	PHID string `json:"phid"`
}

type editResult struct {
	Object       phpObject[editObject] `json:"object"`
	Transactions []struct {
		PHID string `json:"phid"`
	} `json:"transactions"`
}

// SearchGroups runs project.search for name. Conduit matches names by
// substring so callers must filter.
func (c *Client) SearchGroups(ctx context.Context, name string) (*reconcile.GroupPage, error) {
	raw, err := c.call(ctx, "project.search", map[string]any{
		"constraints": map[string]any{"name": name},
	})
	if err != nil {
		return nil, err
	}
	var res projectSearchResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("project.search: decode result: %w", err)
	}

	page := &reconcile.GroupPage{
		Groups: make([]reconcile.Group, 0, len(res.Data)),
		More:   res.Cursor.more(),
	}
	for _, p := range res.Data {
		page.Groups = append(page.Groups, reconcile.Group{ID: p.PHID, Name: p.Fields.Name})
	}
	return page, nil
}

// SearchTickets runs maniphest.search for open tasks whose title contains
// q.Title, restricted to q.GroupIDs when set.
func (c *Client) SearchTickets(ctx context.Context, q reconcile.TicketQuery) (*reconcile.TicketPage, error) {
	constraints := map[string]any{
		"query":    `title:"` + q.Title + `"`,
		"statuses": []string{"open"},
	}
	if len(q.GroupIDs) > 0 {
		constraints["projects"] = q.GroupIDs
	}
	raw, err := c.call(ctx, "maniphest.search", map[string]any{
		"constraints": constraints,
		"attachments": map[string]any{"projects": true},
		"order":       "title",
	})
	if err != nil {
		return nil, err
	}
	var res taskSearchResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("maniphest.search: decode result: %w", err)
	}

	page := &reconcile.TicketPage{
		Tickets: make([]reconcile.Ticket, 0, len(res.Data)),
		More:    res.Cursor.more(),
	}
	for _, t := range res.Data {
		var groups []string
		if t.Attachments.Set && t.Attachments.V.Projects.Set {
			groups = t.Attachments.V.Projects.V.ProjectPHIDs
		}
		page.Tickets = append(page.Tickets, reconcile.Ticket{
			ID:          strconv.Itoa(t.ID),
			Key:         t.PHID,
			Title:       t.Fields.Name,
			Description: t.Fields.Description.Raw,
			Status:      t.Fields.Status.Value,
			GroupIDs:    groups,
			URL:         c.TaskURL(t.ID),
		})
	}
	return page, nil
}

// EditTicket runs maniphest.edit. An empty ObjectKey creates a task.
func (c *Client) EditTicket(ctx context.Context, req *reconcile.EditRequest) (*reconcile.EditResult, error) {
	txs := make([]map[string]any, 0, len(req.Transactions))
	for _, tx := range req.Transactions {
		txs = append(txs, map[string]any{"type": conduitTxType(tx.Type), "value": tx.Value})
	}
	params := map[string]any{"transactions": txs}
	if req.ObjectKey != "" {
		params["objectIdentifier"] = req.ObjectKey
	}

	raw, err := c.call(ctx, "maniphest.edit", params)
	if err != nil {
		return nil, err
	}
	var res phpObject[editResult]
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("maniphest.edit: decode result: %w", err)
	}

	out := &reconcile.EditResult{Raw: string(raw)}
	if !res.Set {
		return out, nil
	}
	if obj := res.V.Object; obj.Set && obj.V.PHID != "" {
		out.Object = &reconcile.TicketRef{
			ID:  strconv.Itoa(obj.V.ID),
			Key: obj.V.PHID,
			URL: c.TaskURL(obj.V.ID),
		}
	}
	for _, tx := range res.V.Transactions {
		out.Transactions = append(out.Transactions, tx.PHID)
	}
	return out, nil
}

func conduitTxType(t reconcile.TransactionType) string {
	if t == reconcile.TxAddGroups {
		return "projects.add"
	}
	return string(t)
}
