package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/linnemanlabs/go-core/httpmw"
	"github.com/linnemanlabs/go-core/log"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/linnemanlabs/phalerts/internal/alertapi"
	"github.com/linnemanlabs/phalerts/internal/authmw"
)

// maxBodyBytes bounds webhook payloads; alertmanager groups can carry many alerts.
const maxBodyBytes = 1 << 20

// handlerDeps is everything the main listener serves.
type handlerDeps struct {
	logger    log.Logger
	api       *alertapi.API
	apiToken  string
	healthz   http.HandlerFunc
	readyz    http.HandlerFunc
	metrics   http.Handler
	metricsMW func(http.Handler) http.Handler
	clientIP  httpmw.ClientIPOptions
}

// untraced paths are polled by infrastructure and would only add noise.
func untraced(path string) bool {
	switch path {
	case "/-/healthy", "/-/ready", "/metrics":
		return true
	}
	return false
}

// newHandler builds the main listener's router and middleware stack.
func newHandler(d handlerDeps) http.Handler {
	r := chi.NewRouter()

	// Compress text responses (we are JSON only for now)
	r.Use(middleware.Compress(5, "application/json"))

	// Annotate logger (and tracer if trace is recording) with http.route from chi route pattern
	r.Use(httpmw.AnnotateHTTPRoute)

	r.Use(httpmw.AccessLog())

	// returns 413 if exceeded
	r.Use(httpmw.MaxBody(maxBodyBytes))

	r.Get("/-/healthy", d.healthz)
	r.Get("/-/ready", d.readyz)

	// scrape endpoint on the main listener too, for single-port deployments
	r.Handle("/metrics", d.metrics)

	// webhook routes, behind the optional bearer token
	r.Group(func(r chi.Router) {
		r.Use(authmw.Require(d.apiToken, d.logger))
		d.api.RegisterRoutes(r)
	})

	// middleware stack for main listener, order matters these are wrappers, outermost sees raw request
	// first and is last to see response
	var h http.Handler = r

	// Request-scoped logging (inner so it sees trace_id, chi route, etc)
	h = httpmw.WithLogger(d.logger)(h)

	h = httpmw.TraceResponseHeaders("X-Trace-Id", "X-Span-Id")(h)

	h = otelhttp.NewHandler(h, "http.server",
		otelhttp.WithFilter(func(r *http.Request) bool {
			return !untraced(r.URL.Path)
		}),
		// AnnotateHTTPRoute will rename the span later to the final route pattern
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
		otelhttp.WithPublicEndpointFn(func(_ *http.Request) bool { return true }),
	)

	if d.metricsMW != nil {
		h = d.metricsMW(h)
	}

	// outer so downstream middleware and handlers see the resolved client ip
	h = httpmw.ClientIPWithOptions(d.clientIP)(h)

	h = httpmw.RequestID("X-Request-Id")(h)

	// Outer to catch panics from any downstream middleware or handlers
	h = httpmw.Recover(d.logger, nil)(h)

	// Security headers outermost to ensure they are served on every response
	h = httpmw.SecurityHeaders(h)

	return h
}
