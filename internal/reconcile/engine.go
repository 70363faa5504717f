package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"
)

var tracer = otel.Tracer("github.com/linnemanlabs/phalerts/internal/reconcile")

// Notifier is told about tickets the engine created or updated.
type Notifier interface {
	Send(ctx context.Context, n *Notification) error
}

// Notification describes a write performed by the engine.
type Notification struct {
	ReconcileID string
	Outcome     Outcome
	Title       string
	Ticket      *TicketRef
}

// CompleteEvent is passed to EngineHooks.OnComplete once per Reconcile.
type CompleteEvent struct {
	Outcome  Outcome
	Err      error
	Duration float64
}

// EngineHooks are optional callbacks for instrumentation.
type EngineHooks struct {
	OnComplete func(e *CompleteEvent)
}

// Engine decides whether an alert group needs a new ticket, an updated
// ticket, or nothing. It holds no mutable state; all state lives in the
// tracker.
type Engine struct {
	resolver *Resolver
	locator  *Locator
	writer   *Writer
	notifier Notifier
	logger   log.Logger
	hooks    EngineHooks
}

// NewEngine creates an Engine backed by tracker. notifier may be nil.
func NewEngine(tracker Tracker, logger log.Logger, hooks EngineHooks, notifier Notifier) *Engine {
	if tracker == nil {
		panic(xerrors.New("tracker is required"))
	}
	if logger == nil {
		logger = log.Nop()
	}
	return &Engine{
		resolver: NewResolver(tracker, logger),
		locator:  NewLocator(tracker, logger),
		writer:   NewWriter(tracker),
		notifier: notifier,
		logger:   logger,
		hooks:    hooks,
	}
}

// Reconcile makes the tracker hold exactly one open ticket titled
// req.Title, assigned to all requested groups, with req.Description as its
// body. Two concurrent calls for the same title and groups may both create
// a ticket; nothing here serializes them.
func (e *Engine) Reconcile(ctx context.Context, req *Request) (res *Result, err error) {
	start := time.Now()
	id := ulid.Make().String()

	ctx, span := tracer.Start(ctx, "reconcile.run", trace.WithAttributes(
		attribute.String("phalerts.reconcile.id", id),
		attribute.String("phalerts.ticket.title", req.Title),
		attribute.StringSlice("phalerts.group.names", req.GroupNames),
	))
	defer func() {
		var outcome Outcome
		if res != nil {
			outcome = res.Outcome
			span.SetAttributes(attribute.String("phalerts.reconcile.outcome", string(outcome)))
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		if e.hooks.OnComplete != nil {
			e.hooks.OnComplete(&CompleteEvent{
				Outcome:  outcome,
				Err:      err,
				Duration: time.Since(start).Seconds(),
			})
		}
	}()

	L := e.logger.With("reconcile_id", id, "title", req.Title)

	resolved, err := e.resolver.ResolveAll(ctx, req.GroupNames)
	if err != nil {
		return nil, err
	}
	groupIDs := make([]string, 0, len(req.GroupIDs)+len(resolved))
	groupIDs = append(groupIDs, req.GroupIDs...)
	groupIDs = append(groupIDs, resolved...)
	span.SetAttributes(attribute.StringSlice("phalerts.group.ids", groupIDs))

	L.Info(ctx, "looking for ticket", "group_ids", groupIDs)

	ticket, err := e.locator.Find(ctx, req.Title, groupIDs)
	if err != nil {
		return nil, err
	}

	res = &Result{ID: id, GroupIDs: groupIDs}

	switch {
	case ticket == nil:
		L.Info(ctx, "creating ticket", "group_ids", groupIDs)
		ref, err := e.writer.Create(ctx, req.Title, req.Description, groupIDs)
		if err != nil {
			return nil, err
		}
		res.Outcome = OutcomeCreated
		res.Ticket = ref
		L.Info(ctx, "created ticket", "ticket_id", ref.ID, "ticket_url", ref.URL)

	case ticket.Description == req.Description:
		res.Outcome = OutcomeUnchanged
		res.Ticket = ticket.Ref()
		L.Info(ctx, "ticket already has correct description", "ticket_id", ticket.ID, "ticket_url", ticket.URL)
		return res, nil

	default:
		L.Info(ctx, "updating ticket", "ticket_id", ticket.ID, "ticket_url", ticket.URL)
		if err := e.writer.Update(ctx, ticket.Key, req.Description); err != nil {
			return nil, err
		}
		res.Outcome = OutcomeUpdated
		res.Ticket = ticket.Ref()
	}

	e.notify(ctx, L, req, res)
	return res, nil
}

func (e *Engine) notify(ctx context.Context, L log.Logger, req *Request, res *Result) {
	if e.notifier == nil {
		return
	}
	err := e.notifier.Send(ctx, &Notification{
		ReconcileID: res.ID,
		Outcome:     res.Outcome,
		Title:       req.Title,
		Ticket:      res.Ticket,
	})
	if err != nil {
		L.Error(ctx, fmt.Errorf("notify: %w", err), "failed to send notification", "outcome", res.Outcome)
	}
}
