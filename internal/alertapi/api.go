package alertapi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"

	"github.com/linnemanlabs/phalerts/internal/reconcile"
	"github.com/linnemanlabs/phalerts/internal/render"
)

// ReconcileIDHeader carries the reconciliation id on successful responses.
const ReconcileIDHeader = "X-Reconcile-Id"

// Reconciler defines the business operation alertapi needs.
type Reconciler interface {
	Reconcile(ctx context.Context, req *reconcile.Request) (*reconcile.Result, error)
}

// API holds dependencies for HTTP handlers.
type API struct {
	logger   log.Logger
	svc      Reconciler
	renderer *render.Renderer
}

// New creates a new API handler.
func New(logger log.Logger, svc Reconciler, renderer *render.Renderer) *API {
	if logger == nil {
		logger = log.Nop()
	}
	if svc == nil {
		panic(xerrors.New("reconciler is required"))
	}
	if renderer == nil {
		panic(xerrors.New("renderer is required"))
	}
	return &API{
		logger:   logger,
		svc:      svc,
		renderer: renderer,
	}
}

// RegisterRoutes attaches API endpoints to the router.
func (a *API) RegisterRoutes(r chi.Router) {
	r.Post("/alerts", a.handleAlerts)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// nothing to do with errors here
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error  string   `json:"error"`
	Params []string `json:"params,omitempty"`
}
