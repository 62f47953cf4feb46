package router

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/erraggy/oastools/parser"
	"github.com/go-chi/chi/v5"

	"github.com/erraggy/oasrouter/internal/httputil"
	"github.com/erraggy/oasrouter/internal/pathtemplate"
	"github.com/erraggy/oasrouter/schema"
)

// RouteEntry is one compiled (path, method) route.
type RouteEntry struct {
	// Pattern is the path in chi syntax (e.g. "/pets/{petId}")
	Pattern string
	// Template is the OpenAPI path template
	Template string
	// Method is the upper-case HTTP method
	Method string
	// OperationID is empty for synthetic entries
	OperationID string
	// Security is the effective security requirement list
	Security []parser.SecurityRequirement
	// Synthetic marks the generated OPTIONS preflight entries
	Synthetic bool
	// Validators are the compiled validators; nil for synthetic entries
	Validators *schema.Validators

	template *pathtemplate.Template
}

// RouteTable is the result of Router.Routes: host pattern -> method ->
// handler, plus the catch-all not-found handler. It is read-only and safe
// for concurrent use.
type RouteTable struct {
	routes   map[string]map[string]http.HandlerFunc
	entries  []*RouteEntry
	notFound http.HandlerFunc

	once    sync.Once
	handler http.Handler
}

// Handlers returns a copy of the host pattern -> method -> handler mapping,
// including the synthetic OPTIONS handlers.
func (t *RouteTable) Handlers() map[string]map[string]http.HandlerFunc {
	out := make(map[string]map[string]http.HandlerFunc, len(t.routes))
	for pattern, methods := range t.routes {
		copied := make(map[string]http.HandlerFunc, len(methods))
		for method, h := range methods {
			copied[method] = h
		}
		out[pattern] = copied
	}
	return out
}

// NotFound returns the catch-all handler for requests that match no route.
func (t *RouteTable) NotFound() http.HandlerFunc { return t.notFound }

// Entries returns the compiled routes ordered by template, then method.
func (t *RouteTable) Entries() []*RouteEntry {
	return append([]*RouteEntry(nil), t.entries...)
}

// Patterns returns the host patterns, sorted.
func (t *RouteTable) Patterns() []string {
	patterns := make([]string, 0, len(t.routes))
	for pattern := range t.routes {
		patterns = append(patterns, pattern)
	}
	sort.Strings(patterns)
	return patterns
}

// Mount registers every route of the table on r, and the not-found handler
// for unmatched paths and methods. A method the contract does not declare
// for a path gets the 404 response, HEAD included: HEAD is not derived from
// GET. Install chi's middleware.GetHead on r before mounting to serve HEAD
// through the GET handlers.
//
// Example:
//
//	mux := chi.NewRouter()
//	mux.Use(middleware.RequestID, middleware.GetHead)
//	table.Mount(mux)
func (t *RouteTable) Mount(r chi.Router) {
	for _, pattern := range t.Patterns() {
		methods := t.routes[pattern]
		for _, method := range httputil.Methods {
			if h, ok := methods[method]; ok {
				r.MethodFunc(method, pattern, h)
			}
		}
	}
	r.NotFound(t.notFound)
	r.MethodNotAllowed(t.notFound)
}

// Handler returns an http.Handler serving the table on its own chi router.
func (t *RouteTable) Handler() http.Handler {
	t.once.Do(func() {
		mux := chi.NewRouter()
		t.Mount(mux)
		t.handler = mux
	})
	return t.handler
}

// build compiles the contract into a new RouteTable.
func (r *Router) build(ctx context.Context) (*RouteTable, error) {
	logger := r.cfg.logger
	registry, err := schema.FromContract(r.contract, logger)
	if err != nil {
		return nil, err
	}

	table := &RouteTable{
		routes:   make(map[string]map[string]http.HandlerFunc),
		notFound: r.notFoundHTTPHandler(),
	}
	seen := make(map[string]string) // shape -> first template

	for _, raw := range r.contract.Templates() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		tpl, err := pathtemplate.Parse(raw)
		if err != nil {
			logger.Warn("invalid path template skipped", "template", raw, "error", err)
			continue
		}
		if first, ok := seen[tpl.Shape()]; ok {
			logger.Warn("route conflict: template skipped", "template", raw, "kept", first, "pattern", tpl.Pattern())
			continue
		}
		seen[tpl.Shape()] = raw

		methods := make(map[string]http.HandlerFunc)
		var allowed []string
		for _, op := range r.contract.Operations(raw) {
			if op.ID == "" {
				logger.Warn("operation without operationId skipped", "template", raw, "method", op.Method)
				continue
			}
			entry := &RouteEntry{
				Pattern:     tpl.Pattern(),
				Template:    raw,
				Method:      op.Method,
				OperationID: op.ID,
				Security:    op.Security,
				Validators:  registry.CompileOperation(op),
				template:    tpl,
			}
			methods[op.Method] = r.operationHandler(entry)
			allowed = append(allowed, op.Method)
			table.entries = append(table.entries, entry)
		}

		if _, declared := methods[http.MethodOptions]; !declared {
			allowed = append(allowed, http.MethodOptions)
			methods[http.MethodOptions] = r.preflightHandler(strings.Join(allowed, ", "))
			table.entries = append(table.entries, &RouteEntry{
				Pattern:   tpl.Pattern(),
				Template:  raw,
				Method:    http.MethodOptions,
				Synthetic: true,
				template:  tpl,
			})
		}
		table.routes[tpl.Pattern()] = methods
	}

	logger.Debug("route table built", "source", r.contract.Source(), "patterns", len(table.routes), "entries", len(table.entries))
	return table, nil
}

// preflightHandler answers OPTIONS requests with 204 and CORS headers.
func (r *Router) preflightHandler(allow string) http.HandlerFunc {
	return func(w http.ResponseWriter, hr *http.Request) {
		p := &pipeline{router: r}
		p.write(w, hr, newRequestID(hr), NoContent().Header("Allow", allow))
	}
}

// notFoundHTTPHandler renders requests that match no route. The registered
// NotFoundFunc is looked up per request.
func (r *Router) notFoundHTTPHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, hr *http.Request) {
		p := &pipeline{router: r}
		requestID := newRequestID(hr)

		if nf := r.notFoundHandler(); nf != nil {
			resp, err := callNotFound(nf, hr)
			switch {
			case err != nil:
				r.cfg.logger.Warn("not-found handler failed, using built-in 404", "requestId", requestID, "error", err)
			case resp != nil:
				p.write(w, hr, requestID, resp)
				return
			}
		}

		p.writeError(w, hr, requestID, ErrorInfo{
			Status:  http.StatusNotFound,
			Code:    ErrCodeNotFound,
			Message: fmt.Sprintf("no route matches %s %s", hr.Method, hr.URL.Path),
		})
	}
}

func callNotFound(nf NotFoundFunc, hr *http.Request) (resp Response, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = panicError(rec)
		}
	}()
	return nf(hr)
}
