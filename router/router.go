package router

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/erraggy/oasrouter/contract"
	"github.com/erraggy/oasrouter/oaserrors"
)

// HandlerFunc is the signature for operation handlers. req carries the
// validated and coerced request data; sec carries what the security handlers
// established. A returned error or a panic becomes 500 HANDLER_ERROR; a nil
// Response with a nil error becomes 204 No Content.
type HandlerFunc func(ctx context.Context, req *Request, sec *SecurityContext) (Response, error)

// SecurityHandlerFunc evaluates one security scheme for a request. scopes
// are the scopes the requirement lists for the scheme.
//
// Return Accept() to continue, Reject() for 401 or RejectWith(resp) to reply
// with resp. A returned error (or a panic) becomes 403 FORBIDDEN unless it
// wraps a *ResponseError, whose response is returned verbatim.
type SecurityHandlerFunc func(ctx context.Context, req *Request, scopes []string, sec *SecurityContext) (SecurityResult, error)

// ErrorFormatter replaces the built-in error body. It receives the full
// ErrorInfo in development mode and a redacted one otherwise. Returning a
// nil Response or an error falls back to the built-in format.
type ErrorFormatter func(ctx context.Context, info ErrorInfo) (Response, error)

// NotFoundFunc renders the response for requests that match no route.
// Returning a nil Response or an error falls back to the built-in 404.
type NotFoundFunc func(r *http.Request) (Response, error)

// Router compiles a contract into route tables and owns the handler
// registries they dispatch to.
//
// Registration is safe for concurrent use, including while requests are
// being served; a change becomes visible to requests that start after it.
// Routes is not meant to run concurrently with itself.
type Router struct {
	contract *contract.Contract
	cfg      config
	cors     *corsPolicy

	mu        sync.RWMutex
	handlers  map[string]HandlerFunc
	security  map[string]SecurityHandlerFunc
	formatter ErrorFormatter
	notFound  NotFoundFunc

	buildMu sync.Mutex
	table   atomic.Pointer[RouteTable]
}

// New creates a Router for c.
//
// Example:
//
//	c, err := contract.Load(ctx, contract.WithFilePath("openapi.yaml"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	r, err := router.New(c, router.WithStrictMode(true))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	_ = r.Register("getItem", getItem)
//	if _, err := r.Routes(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	http.ListenAndServe(":8080", r)
func New(c *contract.Contract, opts ...Option) (*Router, error) {
	if c == nil {
		return nil, &oaserrors.ConfigError{Option: "contract", Message: "cannot be nil"}
	}
	cfg := defaultConfig()
	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}
	return &Router{
		contract: c,
		cfg:      cfg,
		cors:     newCORSPolicy(cfg.cors),
		handlers: make(map[string]HandlerFunc),
		security: make(map[string]SecurityHandlerFunc),
	}, nil
}

// Contract returns the contract the router was created with.
func (r *Router) Contract() *contract.Contract { return r.contract }

// Register registers the handler for operationID. A nil handler removes the
// registration.
//
// Returns a *oaserrors.RegistrationError if operationID is empty.
func (r *Router) Register(operationID string, handler HandlerFunc) error {
	if operationID == "" {
		return &oaserrors.RegistrationError{Kind: "handler", Message: "operationId cannot be empty"}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if handler == nil {
		delete(r.handlers, operationID)
		return nil
	}
	r.handlers[operationID] = handler
	return nil
}

// RegisterSecurity registers the handler for a security scheme name. A nil
// handler removes the registration.
//
// Returns a *oaserrors.RegistrationError if scheme is empty.
func (r *Router) RegisterSecurity(scheme string, handler SecurityHandlerFunc) error {
	if scheme == "" {
		return &oaserrors.RegistrationError{Kind: "security handler", Message: "scheme name cannot be empty"}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if handler == nil {
		delete(r.security, scheme)
		return nil
	}
	r.security[scheme] = handler
	return nil
}

// RegisterErrorHandler sets the custom error formatter. nil restores the
// built-in format.
func (r *Router) RegisterErrorHandler(formatter ErrorFormatter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.formatter = formatter
}

// RegisterNotFound sets the not-found renderer. nil restores the built-in
// 404.
func (r *Router) RegisterNotFound(handler NotFoundFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notFound = handler
}

func (r *Router) handler(operationID string) HandlerFunc {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.handlers[operationID]
}

func (r *Router) securityHandler(scheme string) SecurityHandlerFunc {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.security[scheme]
}

func (r *Router) errorFormatter() ErrorFormatter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.formatter
}

func (r *Router) notFoundHandler() NotFoundFunc {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.notFound
}

// Routes compiles the contract into a fresh route table and makes it the
// table served by ServeHTTP. The previous table is replaced as a whole.
func (r *Router) Routes(ctx context.Context) (*RouteTable, error) {
	r.buildMu.Lock()
	defer r.buildMu.Unlock()

	table, err := r.build(ctx)
	if err != nil {
		return nil, err
	}
	r.table.Store(table)
	return table, nil
}

// Table returns the route table currently served, or nil before the first
// Routes call.
func (r *Router) Table() *RouteTable { return r.table.Load() }

// ServeHTTP serves req with the most recently built route table, building
// one first if Routes was never called.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	table := r.table.Load()
	if table == nil {
		var err error
		if table, err = r.lazyTable(req.Context()); err != nil {
			r.cfg.logger.Error("route table build failed", "error", err)
			p := &pipeline{router: r}
			p.writeError(w, req, newRequestID(req), ErrorInfo{
				Status:  http.StatusInternalServerError,
				Code:    ErrCodeConfig,
				Message: "route table could not be built: " + err.Error(),
			})
			return
		}
	}
	table.Handler().ServeHTTP(w, req)
}

func (r *Router) lazyTable(ctx context.Context) (*RouteTable, error) {
	r.buildMu.Lock()
	defer r.buildMu.Unlock()
	if table := r.table.Load(); table != nil {
		return table, nil
	}
	table, err := r.build(ctx)
	if err != nil {
		return nil, err
	}
	r.table.Store(table)
	return table, nil
}
