package alertapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"slices"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/linnemanlabs/phalerts/internal/alert"
	"github.com/linnemanlabs/phalerts/internal/phab"
	"github.com/linnemanlabs/phalerts/internal/reconcile"
)

// Query parameters accepted on POST /alerts.
const (
	paramProject = "project"
	paramPHID    = "phid"
	paramTitle   = "title"
)

type alertsResponse struct {
	Status string `json:"status"`
	*reconcile.Result
}

func (a *API) handleAlerts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	var unexpected []string
	for k := range q {
		if k != paramProject && k != paramPHID && k != paramTitle {
			unexpected = append(unexpected, k)
		}
	}
	if len(unexpected) > 0 {
		slices.Sort(unexpected)
		a.logger.Warn(ctx, "unexpected query parameters", "params", unexpected)
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "unexpected query parameters", Params: unexpected})
		return
	}

	var wh alert.Webhook
	if err := json.NewDecoder(r.Body).Decode(&wh); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid payload"})
		return
	}
	if !wh.HasSupportedVersion() {
		a.logger.Warn(ctx, "unknown message version", "version", wh.VersionString())
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "unknown message version " + wh.VersionString()})
		return
	}

	// same alerts in a different order must render the same description
	wh.SortAlerts()
	data := wh.TemplateData()

	var (
		title string
		err   error
	)
	if _, ok := q[paramTitle]; ok {
		title, err = a.renderer.TitleFrom(q.Get(paramTitle), data)
	} else {
		title, err = a.renderer.Title(data)
	}
	if err != nil {
		a.logger.Warn(ctx, "unable to render title", "err", err)
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("unable to render title: %v", err)})
		return
	}

	description, err := a.renderer.Description(data)
	if err != nil {
		a.logger.Error(ctx, err, "unable to render description", "title", title)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}

	req := &reconcile.Request{
		Title:       title,
		Description: description,
		GroupNames:  q[paramProject],
		GroupIDs:    q[paramPHID],
	}

	span := trace.SpanFromContext(ctx)
	span.SetAttributes(
		attribute.String("phalerts.ticket.title", title),
		attribute.Int("phalerts.alerts.count", len(wh.Alerts)),
	)

	res, err := a.svc.Reconcile(ctx, req)
	if err != nil {
		a.logger.Error(ctx, err, "reconcile failed",
			"title", title,
			"projects", req.GroupNames,
			"phids", req.GroupIDs,
			"kind", reconcile.ErrorKind(err),
			"auth_failed", phab.IsInvalidAuth(err),
		)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}

	span.SetAttributes(
		attribute.String("phalerts.reconcile.id", res.ID),
		attribute.String("phalerts.reconcile.outcome", string(res.Outcome)),
	)

	w.Header().Set(ReconcileIDHeader, res.ID)
	writeJSON(w, http.StatusOK, alertsResponse{Status: "ok", Result: res})
}
