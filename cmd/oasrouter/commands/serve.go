package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/erraggy/oasrouter/contract"
	"github.com/erraggy/oasrouter/logging"
	"github.com/erraggy/oasrouter/router"
	"github.com/erraggy/oasrouter/security"
)

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve an OpenAPI contract over HTTP",
		Long: `Serve compiles the contract into a route table and serves it.

Every request is validated against the contract. Without --echo no
operation has a handler, so valid requests are answered with 501.
Security schemes listed under "security:" in the config file get the
built-in API key, bearer JWT or Basic handlers.`,
		Example: `  oasrouter serve --spec openapi.yaml --echo
  oasrouter serve --spec openapi.yaml --listen :9000 --strict --development`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := LoadConfig(configFile(cmd), cmd)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			zl, err := NewLogger(cfg.LogLevel, cfg.Development)
			if err != nil {
				return err
			}
			defer func() { _ = zl.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return Serve(ctx, cfg, logging.NewZapAdapter(zl))
		},
	}

	flags := cmd.Flags()
	flags.String("spec", "", "path of the OpenAPI 3.x contract")
	flags.String("listen", ":8080", "address to listen on")
	flags.Bool("strict", false, "validate responses against the contract")
	flags.Bool("development", false, "verbose error bodies; response violations become 500s")
	flags.Bool("echo", false, "answer every operation with a JSON echo of the validated request")
	flags.Int64("max-body-size", router.DefaultMaxBodySize, "request body limit in bytes")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.Duration("shutdown-timeout", 30*time.Second, "how long to wait for in-flight requests on shutdown")
	flags.String("cors-origin", "*", "Access-Control-Allow-Origin value")
	return cmd
}

// Serve serves the contract until ctx is done, then shuts down gracefully.
func Serve(ctx context.Context, cfg *Config, logger logging.Logger) error {
	logger = logging.OrNop(logger)
	handler, table, err := BuildHandler(ctx, cfg, logger)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.Listen, "routes", len(table.Entries()), "spec", cfg.Spec)
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down", "timeout", cfg.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// BuildHandler loads the contract, builds its route table and mounts it on a
// chi mux with request logging and panic recovery.
func BuildHandler(ctx context.Context, cfg *Config, logger logging.Logger) (http.Handler, *router.RouteTable, error) {
	logger = logging.OrNop(logger)

	c, err := contract.Load(ctx, contract.WithFilePath(cfg.Spec), contract.WithLogger(logger))
	if err != nil {
		return nil, nil, err
	}

	r, err := router.New(c, append(cfg.RouterOptions(), router.WithLogger(logger))...)
	if err != nil {
		return nil, nil, err
	}
	if err := RegisterSecurity(r, c, cfg.Security, logger); err != nil {
		return nil, nil, err
	}
	if cfg.Echo {
		if err := registerEcho(r, c); err != nil {
			return nil, nil, err
		}
	}

	table, err := r.Routes(ctx)
	if err != nil {
		return nil, nil, err
	}

	mux := chi.NewRouter()
	mux.Use(middleware.RealIP)
	mux.Use(requestLogger(logger))
	mux.Use(middleware.Recoverer)
	table.Mount(mux)
	return mux, table, nil
}

// RegisterSecurity registers the built-in handler of every contract security
// scheme that cfg configures. Schemes without configuration are left
// unregistered and logged; requests that need them fail with 500.
func RegisterSecurity(r *router.Router, c *contract.Contract, cfg SecurityConfig, logger logging.Logger) error {
	logger = logging.OrNop(logger)
	used := make(map[string]bool)

	for _, name := range c.SecuritySchemeNames() {
		scheme, _ := c.SecurityScheme(name)
		key := strings.ToLower(name)

		var handler router.SecurityHandlerFunc
		switch {
		case scheme.Type == "apiKey" && cfg.APIKeys[key] != nil:
			h, err := security.APIKey(scheme.In, scheme.Name, security.StaticKeys(cfg.APIKeys[key]...))
			if err != nil {
				return fmt.Errorf("security scheme %q: %w", name, err)
			}
			handler = h
		case isHTTPScheme(scheme.Type, scheme.Scheme, "bearer") && lookup(cfg.JWT, key):
			handler = security.BearerJWT(security.HMACKey([]byte(cfg.JWT[key].Secret)), jwtOptions(cfg.JWT[key])...)
		case isHTTPScheme(scheme.Type, scheme.Scheme, "basic") && cfg.Basic[key] != nil:
			handler = security.Basic(staticUsers(cfg.Basic[key]))
		default:
			logger.Warn("security scheme has no handler", "scheme", name, "type", scheme.Type)
			continue
		}

		if err := r.RegisterSecurity(name, handler); err != nil {
			return err
		}
		used[key] = true
		logger.Info("security scheme enabled", "scheme", name, "type", scheme.Type)
	}

	for _, key := range configuredSchemes(cfg) {
		if !used[key] {
			logger.Warn("configured security scheme not used by the contract", "scheme", key)
		}
	}
	return nil
}

func isHTTPScheme(typ, scheme, want string) bool {
	return typ == "http" && strings.EqualFold(scheme, want)
}

func lookup[V any](m map[string]V, key string) bool {
	_, ok := m[key]
	return ok
}

func jwtOptions(cfg JWTConfig) []security.JWTOption {
	var opts []security.JWTOption
	if cfg.Issuer != "" {
		opts = append(opts, security.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, security.WithAudience(cfg.Audience))
	}
	return opts
}

func staticUsers(users []BasicUser) security.CredentialsValidator {
	passwords := make(map[string]string, len(users))
	for _, u := range users {
		passwords[u.Username] = u.Password
	}
	return security.StaticCredentials(passwords)
}

func configuredSchemes(cfg SecurityConfig) []string {
	seen := make(map[string]bool)
	for k := range cfg.APIKeys {
		seen[k] = true
	}
	for k := range cfg.JWT {
		seen[k] = true
	}
	for k := range cfg.Basic {
		seen[k] = true
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, strings.ToLower(k))
	}
	sort.Strings(keys)
	return keys
}

// registerEcho registers echoHandler for every operation with an
// operationId.
func registerEcho(r *router.Router, c *contract.Contract) error {
	for _, tpl := range c.Templates() {
		for _, op := range c.Operations(tpl) {
			if op.ID == "" {
				continue
			}
			if err := r.Register(op.ID, echoHandler); err != nil {
				return err
			}
		}
	}
	return nil
}

func echoHandler(_ context.Context, req *router.Request, sec *router.SecurityContext) (router.Response, error) {
	return router.JSON(http.StatusOK, map[string]any{
		"operationId": req.OperationID,
		"path":        req.MatchedPath,
		"pathParams":  req.PathParams,
		"query":       req.QueryParams,
		"body":        req.Body,
		"schemes":     sec.Schemes(),
	}), nil
}

func requestLogger(logger logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"remote", r.RemoteAddr,
				"requestId", ww.Header().Get("X-Request-ID"),
			)
		})
	}
}
